// Package gormstore keeps the ledger in a relational database through gorm.
// sqlite and postgres are supported.
package gormstore

import (
	"context"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/glebarez/sqlite"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

type Store struct {
	db *gorm.DB
}

var _ core.StateStore = (*Store)(nil)

// Open connects to the database and migrates the ledger tables.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSqlite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, errors.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}
	return New(db)
}

func New(db *gorm.DB) (*Store, error) {
	if err := AutoMigrate(db); err != nil {
		return nil, errors.Wrap(err, "migrate")
	}
	return &Store{db: db}, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.RecordNotFound
	}
	return err
}

func (s *Store) GetConfig(ctx context.Context) (*core.ProtocolConfig, error) {
	var row configRow
	if err := s.db.WithContext(ctx).First(&row, singletonId).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toCore(), nil
}

func (s *Store) GetPool(ctx context.Context) (*core.LendingPool, error) {
	var row poolRow
	if err := s.db.WithContext(ctx).First(&row, singletonId).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toCore(), nil
}

func (s *Store) GetInsuranceFund(ctx context.Context) (*core.InsuranceFund, error) {
	var row fundRow
	if err := s.db.WithContext(ctx).First(&row, singletonId).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toCore(), nil
}

func (s *Store) GetAccount(ctx context.Context, key string) (*core.Account, error) {
	var row accountRow
	if err := s.db.WithContext(ctx).Where("account_key = ?", key).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toCore(), nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]*core.Account, error) {
	var rows []*accountRow
	if err := s.db.WithContext(ctx).Order("account_key").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*core.Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

func (s *Store) GetProposal(ctx context.Context, id uint64) (*core.Proposal, error) {
	var row proposalRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toCore(), nil
}

func (s *Store) ListProposals(ctx context.Context) ([]*core.Proposal, error) {
	var rows []*proposalRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*core.Proposal, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

func (s *Store) ListIntents(ctx context.Context, status core.IntentStatus) ([]*core.TransferIntent, error) {
	q := s.db.WithContext(ctx).Order("created_at")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var rows []*intentRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*core.TransferIntent, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

func (s *Store) UpdateIntentStatus(ctx context.Context, id uuid.UUID, status core.IntentStatus, message string, updatedAt int64) error {
	tx := s.db.WithContext(ctx).Model(&intentRow{}).Where("id = ?", id).Updates(map[string]any{
		"status":     status,
		"message":    message,
		"updated_at": updatedAt,
	})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return core.RecordNotFound
	}
	return nil
}

func (s *Store) ListOperates(ctx context.Context, actor string, op core.ActionType, createdBeforeAt, limit int64) ([]*core.Operate, error) {
	q := s.db.WithContext(ctx).Order("seq DESC")
	if actor != "" {
		q = q.Where("actor = ?", actor)
	}
	if op != 0 {
		q = q.Where("op = ?", op)
	}
	if createdBeforeAt > 0 {
		q = q.Where("created_at < ?", createdBeforeAt)
	}
	if limit > 0 {
		q = q.Limit(int(limit))
	}

	var rows []*operateRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*core.Operate, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

// Commit writes the change set in one database transaction.
func (s *Store) Commit(ctx context.Context, changes *core.ChangeSet) error {
	if changes.IsEmpty() {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if changes.Config != nil {
			if err := tx.Save(fromConfig(changes.Config)).Error; err != nil {
				return errors.Wrap(err, "save config")
			}
		}
		if changes.Pool != nil {
			if err := tx.Save(fromPool(changes.Pool)).Error; err != nil {
				return errors.Wrap(err, "save pool")
			}
		}
		if changes.Fund != nil {
			if err := tx.Save(fromFund(changes.Fund)).Error; err != nil {
				return errors.Wrap(err, "save insurance fund")
			}
		}
		for _, a := range changes.Accounts {
			if err := tx.Save(fromAccount(a)).Error; err != nil {
				return errors.Wrapf(err, "save account %s", a.Key)
			}
		}
		for _, p := range changes.Proposals {
			if err := tx.Save(fromProposal(p)).Error; err != nil {
				return errors.Wrapf(err, "save proposal %d", p.Id)
			}
		}
		for _, i := range changes.Intents {
			if err := tx.Create(fromIntent(i)).Error; err != nil {
				return errors.Wrapf(err, "create intent %s", i.Id)
			}
		}
		for _, o := range changes.Operates {
			if err := tx.Create(fromOperate(o)).Error; err != nil {
				return errors.Wrapf(err, "create operate %s", o.Id)
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
