package gormstore

import (
	"path/filepath"
	"testing"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) core.StateStore {
	t.Helper()
	s, err := Open(DriverSqlite, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, openTestStore)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "")
	assert.Error(t, err)
}
