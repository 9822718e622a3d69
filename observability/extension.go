// Package observability provides a metrics extension for the word ledger
// that records event counts and sizes through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/wordledger/event"
	"github.com/xraph/wordledger/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseCredited    = (*MetricsExtension)(nil)
	_ plugin.OnRewardAwarded       = (*MetricsExtension)(nil)
	_ plugin.OnVIPGiftIssued       = (*MetricsExtension)(nil)
	_ plugin.OnWordsConsumed       = (*MetricsExtension)(nil)
	_ plugin.OnInsufficientBalance = (*MetricsExtension)(nil)
	_ plugin.OnBalanceChanged      = (*MetricsExtension)(nil)
	_ plugin.OnGrantsCollected     = (*MetricsExtension)(nil)
	_ plugin.OnLedgerMerged        = (*MetricsExtension)(nil)
	_ plugin.OnIntegrityConflict   = (*MetricsExtension)(nil)
	_ plugin.OnStoreError          = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// Gauge interface for metric gauges.
type Gauge interface {
	Set(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Gauge(name string) Gauge
}

// MetricsExtension records ledger metrics.
// Register it as an engine plugin to track credits and consumption.
type MetricsExtension struct {
	factory MetricFactory

	// Credit metrics
	PurchasesCredited Counter
	RewardsAwarded    Counter
	VIPGiftsIssued    Counter
	WordsCredited     Counter

	// Consumption metrics
	ConsumeRequests     Counter
	WordsConsumed       Counter
	ConsumeSize         Histogram
	InsufficientBalance Counter
	WordsAvailable      Gauge

	// Maintenance and sync metrics
	GrantsCollected    Counter
	LedgerMerges       Counter
	IntegrityConflicts Counter

	// Error metrics
	StoreErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		PurchasesCredited: factory.Counter("wordledger.purchase.credited"),
		RewardsAwarded:    factory.Counter("wordledger.reward.awarded"),
		VIPGiftsIssued:    factory.Counter("wordledger.vip_gift.issued"),
		WordsCredited:     factory.Counter("wordledger.words.credited"),

		ConsumeRequests:     factory.Counter("wordledger.consume.requests"),
		WordsConsumed:       factory.Counter("wordledger.words.consumed"),
		ConsumeSize:         factory.Histogram("wordledger.consume.size"),
		InsufficientBalance: factory.Counter("wordledger.consume.insufficient"),
		WordsAvailable:      factory.Gauge("wordledger.words.available"),

		GrantsCollected:    factory.Counter("wordledger.grants.collected"),
		LedgerMerges:       factory.Counter("wordledger.ledger.merges"),
		IntegrityConflicts: factory.Counter("wordledger.ledger.conflicts"),

		StoreErrors: factory.Counter("wordledger.store.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnPurchaseCredited implements plugin.OnPurchaseCredited.
func (m *MetricsExtension) OnPurchaseCredited(_ context.Context, ev event.PurchaseCredited) error {
	m.PurchasesCredited.Inc()
	m.WordsCredited.Add(float64(ev.Words))
	return nil
}

// OnRewardAwarded implements plugin.OnRewardAwarded.
func (m *MetricsExtension) OnRewardAwarded(_ context.Context, ev event.RewardAwarded) error {
	m.RewardsAwarded.Inc()
	m.WordsCredited.Add(float64(ev.Words))
	return nil
}

// OnVIPGiftIssued implements plugin.OnVIPGiftIssued.
func (m *MetricsExtension) OnVIPGiftIssued(_ context.Context, ev event.VIPGiftIssued) error {
	m.VIPGiftsIssued.Inc()
	m.WordsCredited.Add(float64(ev.Words))
	return nil
}

// ──────────────────────────────────────────────────
// Consumption hooks
// ──────────────────────────────────────────────────

// OnWordsConsumed implements plugin.OnWordsConsumed.
func (m *MetricsExtension) OnWordsConsumed(_ context.Context, ev event.WordsConsumed) error {
	m.ConsumeRequests.Inc()
	m.WordsConsumed.Add(float64(ev.Words))
	m.ConsumeSize.Observe(float64(ev.Words))
	return nil
}

// OnInsufficientBalance implements plugin.OnInsufficientBalance.
func (m *MetricsExtension) OnInsufficientBalance(_ context.Context, _ event.InsufficientBalance) error {
	m.ConsumeRequests.Inc()
	m.InsufficientBalance.Inc()
	return nil
}

// OnBalanceChanged implements plugin.OnBalanceChanged.
func (m *MetricsExtension) OnBalanceChanged(_ context.Context, ev event.BalanceChanged) error {
	m.WordsAvailable.Set(float64(ev.TotalAvailable))
	return nil
}

// ──────────────────────────────────────────────────
// Maintenance and sync hooks
// ──────────────────────────────────────────────────

// OnGrantsCollected implements plugin.OnGrantsCollected.
func (m *MetricsExtension) OnGrantsCollected(_ context.Context, ev event.GrantsCollected) error {
	m.GrantsCollected.Add(float64(len(ev.GrantIDs)))
	return nil
}

// OnLedgerMerged implements plugin.OnLedgerMerged.
func (m *MetricsExtension) OnLedgerMerged(_ context.Context, _ event.LedgerMerged) error {
	m.LedgerMerges.Inc()
	return nil
}

// OnIntegrityConflict implements plugin.OnIntegrityConflict.
func (m *MetricsExtension) OnIntegrityConflict(_ context.Context, _ event.IntegrityConflict) error {
	m.IntegrityConflicts.Inc()
	return nil
}

// OnStoreError implements plugin.OnStoreError.
func (m *MetricsExtension) OnStoreError(_ context.Context, _ string, _ error) error {
	m.StoreErrors.Inc()
	return nil
}
