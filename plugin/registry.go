package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/wordledger/event"
)

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so dispatch never inspects plugins.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onPurchaseCredited    []OnPurchaseCredited
	onRewardAwarded       []OnRewardAwarded
	onVIPGiftIssued       []OnVIPGiftIssued
	onWordsConsumed       []OnWordsConsumed
	onInsufficientBalance []OnInsufficientBalance
	onBalanceChanged      []OnBalanceChanged
	onGrantsCollected     []OnGrantsCollected
	onLedgerMerged        []OnLedgerMerged
	onIntegrityConflict   []OnIntegrityConflict
	onStoreError          []OnStoreError
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnPurchaseCredited); ok {
		r.onPurchaseCredited = append(r.onPurchaseCredited, v)
	}
	if v, ok := p.(OnRewardAwarded); ok {
		r.onRewardAwarded = append(r.onRewardAwarded, v)
	}
	if v, ok := p.(OnVIPGiftIssued); ok {
		r.onVIPGiftIssued = append(r.onVIPGiftIssued, v)
	}
	if v, ok := p.(OnWordsConsumed); ok {
		r.onWordsConsumed = append(r.onWordsConsumed, v)
	}
	if v, ok := p.(OnInsufficientBalance); ok {
		r.onInsufficientBalance = append(r.onInsufficientBalance, v)
	}
	if v, ok := p.(OnBalanceChanged); ok {
		r.onBalanceChanged = append(r.onBalanceChanged, v)
	}
	if v, ok := p.(OnGrantsCollected); ok {
		r.onGrantsCollected = append(r.onGrantsCollected, v)
	}
	if v, ok := p.(OnLedgerMerged); ok {
		r.onLedgerMerged = append(r.onLedgerMerged, v)
	}
	if v, ok := p.(OnIntegrityConflict); ok {
		r.onIntegrityConflict = append(r.onIntegrityConflict, v)
	}
	if v, ok := p.(OnStoreError); ok {
		r.onStoreError = append(r.onStoreError, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnPurchaseCredited", reflect.TypeOf((*OnPurchaseCredited)(nil)).Elem()},
	{"OnRewardAwarded", reflect.TypeOf((*OnRewardAwarded)(nil)).Elem()},
	{"OnVIPGiftIssued", reflect.TypeOf((*OnVIPGiftIssued)(nil)).Elem()},
	{"OnWordsConsumed", reflect.TypeOf((*OnWordsConsumed)(nil)).Elem()},
	{"OnInsufficientBalance", reflect.TypeOf((*OnInsufficientBalance)(nil)).Elem()},
	{"OnBalanceChanged", reflect.TypeOf((*OnBalanceChanged)(nil)).Elem()},
	{"OnGrantsCollected", reflect.TypeOf((*OnGrantsCollected)(nil)).Elem()},
	{"OnLedgerMerged", reflect.TypeOf((*OnLedgerMerged)(nil)).Elem()},
	{"OnIntegrityConflict", reflect.TypeOf((*OnIntegrityConflict)(nil)).Elem()},
	{"OnStoreError", reflect.TypeOf((*OnStoreError)(nil)).Elem()},
}

// implementedInterfaces returns the hook names implemented by the plugin.
func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// dispatch runs fn for every plugin in list, logging failures.
func dispatch[T Plugin](r *Registry, ctx context.Context, hook string, list []T, fn func(T) error) {
	for _, p := range list {
		if err := r.callWithTimeout(ctx, p.Name(), func() error { return fn(p) }); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// load reads a cached hook list under the read lock.
func load[T any](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()
	dispatch(r, ctx, "OnInit", plugins, func(p OnInit) error { return p.OnInit(ctx, engine) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()
	dispatch(r, ctx, "OnShutdown", plugins, func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

// EmitStoreError reports a persistence failure.
func (r *Registry) EmitStoreError(ctx context.Context, op string, err error) {
	r.mu.RLock()
	plugins := r.onStoreError
	r.mu.RUnlock()
	dispatch(r, ctx, "OnStoreError", plugins, func(p OnStoreError) error { return p.OnStoreError(ctx, op, err) })
}

// Emit routes ev to the hook matching its type.
func (r *Registry) Emit(ctx context.Context, ev event.Event) {
	switch e := ev.(type) {
	case event.BalanceChanged:
		dispatch(r, ctx, "OnBalanceChanged", load(r, &r.onBalanceChanged), func(p OnBalanceChanged) error { return p.OnBalanceChanged(ctx, e) })
	case event.PurchaseCredited:
		dispatch(r, ctx, "OnPurchaseCredited", load(r, &r.onPurchaseCredited), func(p OnPurchaseCredited) error { return p.OnPurchaseCredited(ctx, e) })
	case event.RewardAwarded:
		dispatch(r, ctx, "OnRewardAwarded", load(r, &r.onRewardAwarded), func(p OnRewardAwarded) error { return p.OnRewardAwarded(ctx, e) })
	case event.VIPGiftIssued:
		dispatch(r, ctx, "OnVIPGiftIssued", load(r, &r.onVIPGiftIssued), func(p OnVIPGiftIssued) error { return p.OnVIPGiftIssued(ctx, e) })
	case event.WordsConsumed:
		dispatch(r, ctx, "OnWordsConsumed", load(r, &r.onWordsConsumed), func(p OnWordsConsumed) error { return p.OnWordsConsumed(ctx, e) })
	case event.InsufficientBalance:
		dispatch(r, ctx, "OnInsufficientBalance", load(r, &r.onInsufficientBalance), func(p OnInsufficientBalance) error { return p.OnInsufficientBalance(ctx, e) })
	case event.GrantsCollected:
		dispatch(r, ctx, "OnGrantsCollected", load(r, &r.onGrantsCollected), func(p OnGrantsCollected) error { return p.OnGrantsCollected(ctx, e) })
	case event.LedgerMerged:
		dispatch(r, ctx, "OnLedgerMerged", load(r, &r.onLedgerMerged), func(p OnLedgerMerged) error { return p.OnLedgerMerged(ctx, e) })
	case event.IntegrityConflict:
		dispatch(r, ctx, "OnIntegrityConflict", load(r, &r.onIntegrityConflict), func(p OnIntegrityConflict) error { return p.OnIntegrityConflict(ctx, e) })
	default:
		r.logger.Debug("no plugin hook for event", "type", fmt.Sprintf("%T", ev))
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the mutation queue.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
