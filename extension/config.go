package extension

import "time"

// Store backends understood by Config.Store.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
)

// Remote backends understood by Config.Remote.
const (
	RemoteNone  = ""
	RemoteMongo = "mongo"
)

// Config holds the word ledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// configuration files (under "extensions.wordledger" or "wordledger" keys).
type Config struct {
	// UserID is the account whose ledger this process owns. Required.
	UserID string `json:"user_id" mapstructure:"user_id" yaml:"user_id" toml:"user_id"`

	// Store selects the local backend: "memory", "sqlite" or "mongo"
	// (default: "sqlite" when SQLitePath is set, otherwise "memory").
	Store string `json:"store" mapstructure:"store" yaml:"store" toml:"store"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `json:"sqlite_path" mapstructure:"sqlite_path" yaml:"sqlite_path" toml:"sqlite_path"`

	// MongoURI and MongoDatabase locate the mongo deployment used by the
	// mongo store and the mongo remote.
	MongoURI      string `json:"mongo_uri" mapstructure:"mongo_uri" yaml:"mongo_uri" toml:"mongo_uri"`
	MongoDatabase string `json:"mongo_database" mapstructure:"mongo_database" yaml:"mongo_database" toml:"mongo_database"`

	// Remote selects the cloud copy used by Sync: "" (none) or "mongo".
	Remote string `json:"remote" mapstructure:"remote" yaml:"remote" toml:"remote"`

	// ConnectTimeout bounds dialing remote backends (default: 10s).
	ConnectTimeout time.Duration `json:"connect_timeout" mapstructure:"connect_timeout" yaml:"connect_timeout" toml:"connect_timeout"`

	// GraceWindow is how long exhausted grants are retained (default: 168h).
	GraceWindow time.Duration `json:"grace_window" mapstructure:"grace_window" yaml:"grace_window" toml:"grace_window"`

	// DefaultValidDays applies to credits that do not name a validity (default: 90).
	DefaultValidDays int `json:"default_valid_days" mapstructure:"default_valid_days" yaml:"default_valid_days" toml:"default_valid_days"`

	// VIPGiftWords is the size of the one-time VIP gift (default: 500000).
	VIPGiftWords int64 `json:"vip_gift_words" mapstructure:"vip_gift_words" yaml:"vip_gift_words" toml:"vip_gift_words"`

	// QueueSize is the mutation queue capacity (default: 64).
	QueueSize int `json:"queue_size" mapstructure:"queue_size" yaml:"queue_size" toml:"queue_size"`

	// SyncRetries bounds merge retries after a concurrent local write (default: 3).
	SyncRetries int `json:"sync_retries" mapstructure:"sync_retries" yaml:"sync_retries" toml:"sync_retries"`

	// RequireConfig requires config to be present in config files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-" toml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Store:            StoreMemory,
		MongoDatabase:    "wordledger",
		ConnectTimeout:   10 * time.Second,
		GraceWindow:      7 * 24 * time.Hour,
		DefaultValidDays: 90,
		VIPGiftWords:     500_000,
		QueueSize:        64,
		SyncRetries:      3,
	}
}

// withDefaults fills zero-valued fields with defaults.
func withDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Store == "" {
		if cfg.SQLitePath != "" {
			cfg.Store = StoreSQLite
		} else {
			cfg.Store = defaults.Store
		}
	}
	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = defaults.MongoDatabase
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.GraceWindow == 0 {
		cfg.GraceWindow = defaults.GraceWindow
	}
	if cfg.DefaultValidDays == 0 {
		cfg.DefaultValidDays = defaults.DefaultValidDays
	}
	if cfg.VIPGiftWords == 0 {
		cfg.VIPGiftWords = defaults.VIPGiftWords
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.SyncRetries == 0 {
		cfg.SyncRetries = defaults.SyncRetries
	}
	return cfg
}

// mergeConfigurations merges file config with programmatic options.
// File config takes precedence; programmatic values fill gaps.
func mergeConfigurations(fileConfig, programmaticConfig Config) Config {
	if fileConfig.UserID == "" {
		fileConfig.UserID = programmaticConfig.UserID
	}
	if fileConfig.Store == "" {
		fileConfig.Store = programmaticConfig.Store
	}
	if fileConfig.SQLitePath == "" {
		fileConfig.SQLitePath = programmaticConfig.SQLitePath
	}
	if fileConfig.MongoURI == "" {
		fileConfig.MongoURI = programmaticConfig.MongoURI
	}
	if fileConfig.MongoDatabase == "" {
		fileConfig.MongoDatabase = programmaticConfig.MongoDatabase
	}
	if fileConfig.Remote == "" {
		fileConfig.Remote = programmaticConfig.Remote
	}

	if fileConfig.ConnectTimeout == 0 {
		fileConfig.ConnectTimeout = programmaticConfig.ConnectTimeout
	}
	if fileConfig.GraceWindow == 0 {
		fileConfig.GraceWindow = programmaticConfig.GraceWindow
	}
	if fileConfig.DefaultValidDays == 0 {
		fileConfig.DefaultValidDays = programmaticConfig.DefaultValidDays
	}
	if fileConfig.VIPGiftWords == 0 {
		fileConfig.VIPGiftWords = programmaticConfig.VIPGiftWords
	}
	if fileConfig.QueueSize == 0 {
		fileConfig.QueueSize = programmaticConfig.QueueSize
	}
	if fileConfig.SyncRetries == 0 {
		fileConfig.SyncRetries = programmaticConfig.SyncRetries
	}

	return withDefaults(fileConfig)
}
