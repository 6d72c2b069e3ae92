package protocol

import (
	"context"

	"github.com/DomeLiquid/lendcore/core"
)

// LogCustodian records transfer intents in the log and reports them as
// executed. It stands in for a real custody integration.
type LogCustodian struct {
	log core.Log
}

var _ core.Custodian = (*LogCustodian)(nil)

func NewLogCustodian(log core.Log) *LogCustodian {
	return &LogCustodian{log: log}
}

func (c *LogCustodian) Transfer(ctx context.Context, intents []*core.TransferIntent) error {
	for _, i := range intents {
		c.log.Info().
			Str("intent", i.Id.String()).
			Str("operation", i.Operation.String()).
			Str("account", i.Account).
			Str("asset", i.Asset.String()).
			Str("direction", string(i.Direction)).
			Str("amount", i.Amount.String()).
			Msg("transfer intent")
	}
	return nil
}
