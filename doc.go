// Package wordledger tracks how many words a user may spend and keeps that
// answer correct under concurrent purchase, restore, consume and sync events.
//
// Wordledger is designed as a library, not a service. One Engine owns one
// user's ledger. It provides:
//
//   - At-most-once crediting per purchase transaction or award id
//   - First-expiring-first-out consumption across all grants
//   - A one-time VIP gift that survives sync races
//   - Expiry and garbage collection with a retention grace window
//   - Conflict-free reconciliation of two independently mutated copies
//   - Pluggable durable storage (memory, SQLite, MongoDB)
//   - Plugins for metrics (Prometheus) and auditing
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/wordledger"
//	    "github.com/xraph/wordledger/store/sqlite"
//	)
//
//	st, err := sqlite.Open("wordledger.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	eng := wordledger.New("user-42", st)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
//	// A purchase completed; duplicate deliveries are harmless.
//	eng.CreditPurchase(ctx, "txn-1001", wordledger.Words2M, 90)
//
//	// Spend words for a generated text.
//	if _, err := eng.ConsumeText(ctx, output); errors.Is(err, wordledger.ErrInsufficientWords) {
//	    // prompt for a purchase
//	}
//
// # Core Concepts
//
// A Grant is one quantity of words from one source: the VIP gift, a
// purchased pack (keyed by transaction id) or a reward (keyed by award id).
// Grants may expire. Consumption only ever grows and never exceeds the
// granted amount.
//
// The Ledger holds the grants, the set of applied transaction ids, the VIP
// flag, a lifetime consumption counter and a version. It is a value: every
// operation computes a new ledger, which the engine persists before making
// it visible.
//
// # Sync
//
// Engine.Sync downloads the remote copy, merges it with the local ledger via
// reconcile.Merge, persists the result and uploads it. The merge is
// commutative and idempotent in everything but the version, so devices
// converge regardless of sync order. A remote that cannot be reached yields
// ErrSyncUnavailable; local operation continues.
//
// # Events
//
// After each committed mutation the engine publishes events (BalanceChanged,
// PurchaseCredited, InsufficientBalance and more, see package event) to
// registered plugins and to channels obtained from Engine.Subscribe.
//
// # TypeID
//
// Generated identifiers use TypeID:
//
//	evt_01h2xcejqtf2nbrexx3vqjhp41  // Event ID
//	rev_01h455vb4pex5vsknk084sn02q  // Snapshot revision
package wordledger
