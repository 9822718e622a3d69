package extension

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/wordledger"
	"github.com/xraph/wordledger/store/memory"
	"github.com/xraph/wordledger/store/sqlite"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wordledger.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
user_id      = "user-42"
sqlite_path  = "/tmp/wordledger.db"
grace_window = "48h"
queue_size   = 8
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "user-42", cfg.UserID)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, 48*time.Hour, cfg.GraceWindow)
	assert.Equal(t, 8, cfg.QueueSize)
	// Unset fields take defaults.
	assert.Equal(t, 90, cfg.DefaultValidDays)
	assert.Equal(t, int64(500_000), cfg.VIPGiftWords)
	assert.Equal(t, 3, cfg.SyncRetries)
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, `
user_id   = "user-42"
meter_batch_size = 100
`)

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "meter_batch_size")
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestMergeConfigurations(t *testing.T) {
	file := Config{UserID: "from-file", QueueSize: 16}
	prog := Config{UserID: "from-code", GraceWindow: time.Hour, Remote: RemoteMongo}

	got := mergeConfigurations(file, prog)

	assert.Equal(t, "from-file", got.UserID)
	assert.Equal(t, 16, got.QueueSize)
	assert.Equal(t, time.Hour, got.GraceWindow)
	assert.Equal(t, RemoteMongo, got.Remote)
	assert.Equal(t, StoreMemory, got.Store)
	assert.Equal(t, 10*time.Second, got.ConnectTimeout)
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		e := New(WithUserID("user-1"))
		e.config = withDefaults(e.config)
		require.NoError(t, e.openBackends(ctx))
		assert.IsType(t, &memory.Store{}, e.store)
		assert.Nil(t, e.remote)
		assert.Empty(t, e.owned)
	})

	t.Run("sqlite", func(t *testing.T) {
		e := New(WithUserID("user-1"), WithSQLitePath(":memory:"))
		e.config = withDefaults(e.config)
		require.NoError(t, e.openBackends(ctx))
		assert.IsType(t, &sqlite.Store{}, e.store)
		require.Len(t, e.owned, 1)
		e.closeOwned(nil)
		assert.Empty(t, e.owned)
	})

	t.Run("programmatic store wins", func(t *testing.T) {
		s := memory.New()
		e := New(WithStore(s), WithSQLitePath(":memory:"))
		e.config = withDefaults(e.config)
		require.NoError(t, e.openBackends(ctx))
		assert.Same(t, s, e.store)
		assert.Empty(t, e.owned)
	})

	t.Run("mongo requires uri", func(t *testing.T) {
		e := New()
		e.config = withDefaults(Config{Remote: RemoteMongo})
		require.Error(t, e.openBackends(ctx))
	})

	t.Run("unknown backend", func(t *testing.T) {
		e := New()
		e.config = withDefaults(Config{Store: "etcd"})
		require.Error(t, e.openBackends(ctx))
	})
}

func TestBuildEngineOptsDriveEngine(t *testing.T) {
	ctx := context.Background()
	e := New(WithUserID("user-1"))
	e.config = withDefaults(Config{UserID: "user-1", DefaultValidDays: 30, VIPGiftWords: 1000})
	require.NoError(t, e.openBackends(ctx))

	eng := wordledger.New(e.config.UserID, e.store, e.buildEngineOpts()...)
	require.NoError(t, eng.Start(ctx))
	defer eng.Stop()

	res, err := eng.CreditVIPGift(ctx, 0, nil)
	require.NoError(t, err)
	assert.True(t, res.Credited)
	assert.Equal(t, wordledger.Words(1000), res.Balance.Total)
	assert.Equal(t, wordledger.Words(1000), eng.TotalAvailable())
}
