// Package plugin provides an extensible plugin system for the word ledger.
// Plugins can hook into engine lifecycle and ledger events to extend
// functionality (metrics, auditing, analytics).
package plugin

import (
	"context"

	"github.com/xraph/wordledger/event"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnPurchaseCredited is called once per newly credited purchase.
type OnPurchaseCredited interface {
	Plugin
	OnPurchaseCredited(ctx context.Context, ev event.PurchaseCredited) error
}

// OnRewardAwarded is called once per newly credited reward.
type OnRewardAwarded interface {
	Plugin
	OnRewardAwarded(ctx context.Context, ev event.RewardAwarded) error
}

// OnVIPGiftIssued is called the one time the VIP gift is granted.
type OnVIPGiftIssued interface {
	Plugin
	OnVIPGiftIssued(ctx context.Context, ev event.VIPGiftIssued) error
}

// ──────────────────────────────────────────────────
// Consumption hooks
// ──────────────────────────────────────────────────

// OnWordsConsumed is called after a successful draw-down.
type OnWordsConsumed interface {
	Plugin
	OnWordsConsumed(ctx context.Context, ev event.WordsConsumed) error
}

// OnInsufficientBalance is called when a consume request is rejected.
type OnInsufficientBalance interface {
	Plugin
	OnInsufficientBalance(ctx context.Context, ev event.InsufficientBalance) error
}

// OnBalanceChanged is called after every balance-affecting mutation.
type OnBalanceChanged interface {
	Plugin
	OnBalanceChanged(ctx context.Context, ev event.BalanceChanged) error
}

// ──────────────────────────────────────────────────
// Maintenance and sync hooks
// ──────────────────────────────────────────────────

// OnGrantsCollected is called when garbage collection removed grants.
type OnGrantsCollected interface {
	Plugin
	OnGrantsCollected(ctx context.Context, ev event.GrantsCollected) error
}

// OnLedgerMerged is called after a sync or import merge was persisted.
type OnLedgerMerged interface {
	Plugin
	OnLedgerMerged(ctx context.Context, ev event.LedgerMerged) error
}

// OnIntegrityConflict is called for each field two ledger copies disagreed on.
type OnIntegrityConflict interface {
	Plugin
	OnIntegrityConflict(ctx context.Context, ev event.IntegrityConflict) error
}

// OnStoreError is called when persisting or loading the ledger failed.
type OnStoreError interface {
	Plugin
	OnStoreError(ctx context.Context, op string, err error) error
}
