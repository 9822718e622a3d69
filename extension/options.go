package extension

import (
	"time"

	"github.com/xraph/wordledger"
	"github.com/xraph/wordledger/cloudsync"
	"github.com/xraph/wordledger/plugin"
	"github.com/xraph/wordledger/store"
)

// Option configures the word ledger Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine. It overrides Config.Store.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithRemote sets the cloud copy used by Sync. It overrides Config.Remote.
func WithRemote(r cloudsync.Remote) Option {
	return func(e *Extension) {
		e.remote = r
	}
}

// WithEngineOption passes a wordledger.Option through to the underlying engine.
func WithEngineOption(opt wordledger.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, wordledger.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithUserID sets the account the engine serves.
func WithUserID(userID string) Option {
	return func(e *Extension) { e.config.UserID = userID }
}

// WithSQLitePath selects the sqlite backend at path.
func WithSQLitePath(path string) Option {
	return func(e *Extension) {
		e.config.Store = StoreSQLite
		e.config.SQLitePath = path
	}
}

// WithMongo sets the mongo deployment used by the mongo store and remote.
func WithMongo(uri, database string) Option {
	return func(e *Extension) {
		e.config.MongoURI = uri
		e.config.MongoDatabase = database
	}
}

// WithGraceWindow sets how long exhausted grants are retained.
func WithGraceWindow(d time.Duration) Option {
	return func(e *Extension) { e.config.GraceWindow = d }
}

// WithRequireConfig requires config to be present in config files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
