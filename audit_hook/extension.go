// Package audithook bridges word ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/wordledger/event"
	"github.com/xraph/wordledger/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnPurchaseCredited    = (*Extension)(nil)
	_ plugin.OnRewardAwarded       = (*Extension)(nil)
	_ plugin.OnVIPGiftIssued       = (*Extension)(nil)
	_ plugin.OnWordsConsumed       = (*Extension)(nil)
	_ plugin.OnInsufficientBalance = (*Extension)(nil)
	_ plugin.OnGrantsCollected     = (*Extension)(nil)
	_ plugin.OnLedgerMerged        = (*Extension)(nil)
	_ plugin.OnIntegrityConflict   = (*Extension)(nil)
	_ plugin.OnStoreError          = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It matches chronicle.Emitter but is defined locally so this package does
// not import Chronicle.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnPurchaseCredited implements plugin.OnPurchaseCredited.
func (e *Extension) OnPurchaseCredited(ctx context.Context, ev event.PurchaseCredited) error {
	return e.record(ctx, ev.UserID, ActionPurchaseCredited, SeverityInfo, OutcomeSuccess,
		ResourceGrant, ev.TransactionID, CategoryCredit, nil,
		"product_id", ev.ProductID,
		"words", ev.Words.Int64(),
	)
}

// OnRewardAwarded implements plugin.OnRewardAwarded.
func (e *Extension) OnRewardAwarded(ctx context.Context, ev event.RewardAwarded) error {
	return e.record(ctx, ev.UserID, ActionRewardAwarded, SeverityInfo, OutcomeSuccess,
		ResourceGrant, ev.AwardID, CategoryCredit, nil,
		"words", ev.Words.Int64(),
	)
}

// OnVIPGiftIssued implements plugin.OnVIPGiftIssued.
func (e *Extension) OnVIPGiftIssued(ctx context.Context, ev event.VIPGiftIssued) error {
	return e.record(ctx, ev.UserID, ActionVIPGiftIssued, SeverityInfo, OutcomeSuccess,
		ResourceGrant, "", CategoryCredit, nil,
		"words", ev.Words.Int64(),
	)
}

// ──────────────────────────────────────────────────
// Consumption hooks
// ──────────────────────────────────────────────────

// OnWordsConsumed implements plugin.OnWordsConsumed.
func (e *Extension) OnWordsConsumed(ctx context.Context, ev event.WordsConsumed) error {
	split := make(map[string]int64, len(ev.ByGrant))
	for gid, w := range ev.ByGrant {
		split[gid] = w.Int64()
	}
	return e.record(ctx, ev.UserID, ActionWordsConsumed, SeverityInfo, OutcomeSuccess,
		ResourceLedger, "", CategoryConsumption, nil,
		"words", ev.Words.Int64(),
		"by_grant", split,
	)
}

// OnInsufficientBalance implements plugin.OnInsufficientBalance.
func (e *Extension) OnInsufficientBalance(ctx context.Context, ev event.InsufficientBalance) error {
	return e.record(ctx, ev.UserID, ActionInsufficientBalance, SeverityWarning, OutcomeFailure,
		ResourceLedger, "", CategoryConsumption, nil,
		"requested", ev.Requested.Int64(),
		"available", ev.Available.Int64(),
	)
}

// ──────────────────────────────────────────────────
// Maintenance and sync hooks
// ──────────────────────────────────────────────────

// OnGrantsCollected implements plugin.OnGrantsCollected.
func (e *Extension) OnGrantsCollected(ctx context.Context, ev event.GrantsCollected) error {
	return e.record(ctx, ev.UserID, ActionGrantsCollected, SeverityInfo, OutcomeSuccess,
		ResourceGrant, "", CategoryMaintenance, nil,
		"grant_ids", ev.GrantIDs,
	)
}

// OnLedgerMerged implements plugin.OnLedgerMerged.
func (e *Extension) OnLedgerMerged(ctx context.Context, ev event.LedgerMerged) error {
	outcome := OutcomeSuccess
	if ev.Conflicts > 0 {
		outcome = OutcomePartial
	}
	return e.record(ctx, ev.UserID, ActionLedgerMerged, SeverityInfo, outcome,
		ResourceLedger, "", CategorySync, nil,
		"source", ev.Source,
		"added", ev.Added,
		"dropped", ev.Dropped,
		"conflicts", ev.Conflicts,
		"version", ev.Version,
	)
}

// OnIntegrityConflict implements plugin.OnIntegrityConflict.
func (e *Extension) OnIntegrityConflict(ctx context.Context, ev event.IntegrityConflict) error {
	return e.record(ctx, ev.UserID, ActionIntegrityConflict, SeverityWarning, OutcomeSuccess,
		ResourceGrant, ev.GrantID, CategorySync, nil,
		"field", ev.Field,
		"local", ev.Local,
		"remote", ev.Remote,
		"resolved", ev.Resolved,
	)
}

// OnStoreError implements plugin.OnStoreError.
func (e *Extension) OnStoreError(ctx context.Context, op string, err error) error {
	return e.record(ctx, "", ActionStoreError, SeverityCritical, OutcomeFailure,
		ResourceStore, "", CategoryStorage, err,
		"op", op,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	userID string,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		UserID:     userID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
