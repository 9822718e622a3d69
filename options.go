package wordledger

import (
	"log/slog"
	"time"

	"github.com/xraph/wordledger/cloudsync"
	"github.com/xraph/wordledger/plugin"
	"github.com/xraph/wordledger/types"
)

// Defaults for the engine policy knobs.
const (
	DefaultGraceWindow      = 7 * 24 * time.Hour
	DefaultValidDays        = 90
	DefaultVIPGiftWords     = types.Words500K
	DefaultQueueSize        = 64
	DefaultSyncRetries      = 3
	DefaultSubscriberBuffer = 16
)

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger == nil {
			return
		}
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		if err := e.plugins.Register(p); err != nil {
			e.logger.Warn("plugin registration failed", "plugin", p.Name(), "error", err)
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock types.Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithGraceWindow sets how long expired or exhausted grants are retained
// before ExpireAndCollect removes them.
func WithGraceWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.graceWindow = d
		}
	}
}

// WithDefaultValidDays sets the validity applied when a credit passes
// validDays <= 0.
func WithDefaultValidDays(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.defaultValidDays = days
		}
	}
}

// WithVIPGiftWords sets the size of the one-time VIP gift.
func WithVIPGiftWords(w types.Words) Option {
	return func(e *Engine) {
		if w.IsPositive() {
			e.vipGiftWords = w
		}
	}
}

// WithQueueSize sets the capacity of the mutation queue.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

// WithRemote enables Sync against r.
func WithRemote(r cloudsync.Remote) Option {
	return func(e *Engine) {
		e.remote = r
	}
}

// WithSyncRetries bounds how often a merge is recomputed after the local
// ledger moved underneath it.
func WithSyncRetries(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.syncRetries = n
		}
	}
}

// WithKey overrides the store key the ledger is persisted under.
func WithKey(key string) Option {
	return func(e *Engine) {
		if key != "" {
			e.key = key
		}
	}
}
