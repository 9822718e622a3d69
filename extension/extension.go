// Package extension provides the Forge extension adapter for the word ledger.
//
// It implements the forge.Extension interface to integrate the entitlement
// engine into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions,
// via config files under "extensions.wordledger" or "wordledger" keys, or
// from a standalone TOML file with LoadFile.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/wordledger"
	"github.com/xraph/wordledger/cloudsync"
	"github.com/xraph/wordledger/store"
	"github.com/xraph/wordledger/store/memory"
	"github.com/xraph/wordledger/store/mongo"
	"github.com/xraph/wordledger/store/sqlite"
	"github.com/xraph/wordledger/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "wordledger"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Offline-first word entitlement ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the word ledger engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *wordledger.Engine
	store      store.Store
	remote     cloudsync.Remote
	engineOpts []wordledger.Option

	// owned are backends opened from config; Stop closes them.
	owned []store.Store
}

// New creates a new word ledger Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *wordledger.Engine { return e.engine }

// ResolvedConfig returns the configuration after defaults and file merging.
func (e *Extension) ResolvedConfig() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration, opens
// the configured backends and registers the engine in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.config.ConnectTimeout)
	defer cancel()
	if err := e.openBackends(ctx); err != nil {
		e.closeOwned(nil)
		return err
	}

	e.engine = wordledger.New(e.config.UserID, e.store, e.buildEngineOpts()...)

	return vessel.Provide(fapp.Container(), func() (*wordledger.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("wordledger: extension not initialized")
	}
	if err := e.engine.Start(ctx); err != nil {
		return err
	}
	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	var err error
	var closed store.Store
	if e.engine != nil {
		// The engine closes its own store.
		err = e.engine.Stop()
		closed = e.store
	}
	e.closeOwned(closed)
	e.MarkStopped()
	return err
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("wordledger: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs wordledger.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []wordledger.Option {
	opts := make([]wordledger.Option, 0, len(e.engineOpts)+7)
	opts = append(opts,
		wordledger.WithGraceWindow(e.config.GraceWindow),
		wordledger.WithDefaultValidDays(e.config.DefaultValidDays),
		wordledger.WithVIPGiftWords(types.Words(e.config.VIPGiftWords)),
		wordledger.WithQueueSize(e.config.QueueSize),
		wordledger.WithSyncRetries(e.config.SyncRetries),
	)
	if e.remote != nil {
		opts = append(opts, wordledger.WithRemote(e.remote))
	}

	// Pass-through options win over config.
	return append(opts, e.engineOpts...)
}

// openBackends resolves the local store and the remote from config unless
// they were supplied programmatically.
func (e *Extension) openBackends(ctx context.Context) error {
	var mdb *mongo.Store
	dialMongo := func() (*mongo.Store, error) {
		if mdb != nil {
			return mdb, nil
		}
		if e.config.MongoURI == "" {
			return nil, errors.New("wordledger: mongo_uri is required for the mongo backend")
		}
		s, err := mongo.Connect(ctx, e.config.MongoURI, e.config.MongoDatabase)
		if err != nil {
			return nil, err
		}
		mdb = s
		e.owned = append(e.owned, s)
		return s, nil
	}

	if e.store == nil {
		switch e.config.Store {
		case StoreMemory:
			e.store = memory.New()
		case StoreSQLite:
			s, err := sqlite.Open(e.config.SQLitePath)
			if err != nil {
				return err
			}
			e.owned = append(e.owned, s)
			e.store = s
		case StoreMongo:
			s, err := dialMongo()
			if err != nil {
				return err
			}
			e.store = s
		default:
			return fmt.Errorf("wordledger: unknown store backend %q", e.config.Store)
		}
	}

	if e.remote == nil {
		switch e.config.Remote {
		case RemoteNone:
		case RemoteMongo:
			s, err := dialMongo()
			if err != nil {
				return err
			}
			e.remote = s.Remote()
		default:
			return fmt.Errorf("wordledger: unknown remote backend %q", e.config.Remote)
		}
	}
	return nil
}

func (e *Extension) closeOwned(except store.Store) {
	for _, s := range e.owned {
		if s == except {
			continue
		}
		if err := s.Close(); err != nil {
			e.Logger().Warn("wordledger: failed to close backend",
				forge.F("error", err.Error()),
			)
		}
	}
	e.owned = nil
}

// --- Config Loading ---

// loadConfiguration loads config from files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("wordledger: configuration is required but not found in config files; " +
				"ensure 'extensions.wordledger' or 'wordledger' key exists in your config")
		}
		e.config = withDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	if e.config.UserID == "" {
		return fmt.Errorf("%w: user_id is not configured", wordledger.ErrInvalidUser)
	}

	e.Logger().Debug("wordledger: configuration loaded",
		forge.F("user_id", e.config.UserID),
		forge.F("store", e.config.Store),
		forge.F("remote", e.config.Remote),
		forge.F("grace_window", e.config.GraceWindow),
		forge.F("default_valid_days", e.config.DefaultValidDays),
		forge.F("queue_size", e.config.QueueSize),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from config files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.wordledger", "wordledger"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("wordledger: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("wordledger: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}
