package wordledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xraph/wordledger/cloudsync"
	"github.com/xraph/wordledger/event"
	"github.com/xraph/wordledger/id"
	"github.com/xraph/wordledger/ledger"
	"github.com/xraph/wordledger/plugin"
	"github.com/xraph/wordledger/store"
	"github.com/xraph/wordledger/types"
)

// Engine owns one user's ledger. Every mutation is funneled through a
// single FIFO queue served by one goroutine, persisted through the store,
// and only then made visible and announced.
type Engine struct {
	userID  string
	key     string
	store   store.Store
	remote  cloudsync.Remote
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   types.Clock

	// Policy
	graceWindow      time.Duration
	defaultValidDays int
	vipGiftWords     types.Words
	queueSize        int
	syncRetries      int

	// Current ledger; written only by the queue worker.
	mu      sync.RWMutex
	current ledger.Ledger

	// Lifecycle
	lifeMu   sync.RWMutex
	started  bool
	stopped  bool
	queue    chan *mutation
	stopChan chan struct{}
	wg       sync.WaitGroup

	subMu   sync.Mutex
	subs    map[int]chan event.Event
	nextSub int

	syncGroup singleflight.Group
}

// New creates an engine for userID persisting through s.
func New(userID string, s store.Store, opts ...Option) *Engine {
	e := &Engine{
		userID:           strings.TrimSpace(userID),
		store:            s,
		plugins:          plugin.NewRegistry(),
		logger:           slog.Default(),
		clock:            types.SystemClock,
		graceWindow:      DefaultGraceWindow,
		defaultValidDays: DefaultValidDays,
		vipGiftWords:     DefaultVIPGiftWords,
		queueSize:        DefaultQueueSize,
		syncRetries:      DefaultSyncRetries,
		stopChan:         make(chan struct{}),
		subs:             make(map[int]chan event.Event),
	}
	e.key = store.LedgerKey(e.userID)

	for _, opt := range opts {
		opt(e)
	}

	e.queue = make(chan *mutation, e.queueSize)
	return e
}

// UserID returns the user whose ledger this engine owns.
func (e *Engine) UserID() string { return e.userID }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start migrates the store, loads the persisted ledger (or initializes an
// empty one) and starts the mutation worker.
func (e *Engine) Start(ctx context.Context) error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	switch {
	case e.stopped:
		return ErrStopped
	case e.started:
		return nil
	case e.userID == "":
		return ErrInvalidUser
	}

	if err := e.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: migrate: %w", ErrPersistence, err)
	}

	l, err := e.load(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.current = l
	e.mu.Unlock()

	e.plugins.EmitInit(ctx, e)

	e.wg.Add(1)
	go e.worker()
	e.started = true

	e.logger.Info("wordledger engine started",
		"user_id", e.userID,
		"version", l.Version,
		"grants", len(l.Grants),
		"queue_size", e.queueSize,
		"grace_window", e.graceWindow,
	)
	return nil
}

// Stop drains the mutation queue, rejecting anything still waiting with
// ErrStopped, and closes the store.
func (e *Engine) Stop() error {
	e.lifeMu.Lock()
	if e.stopped {
		e.lifeMu.Unlock()
		return nil
	}
	wasStarted := e.started
	e.stopped = true
	close(e.stopChan)
	e.lifeMu.Unlock()

	e.wg.Wait()

	e.subMu.Lock()
	for n, ch := range e.subs {
		close(ch)
		delete(e.subs, n)
	}
	e.subMu.Unlock()

	if wasStarted {
		e.plugins.EmitShutdown(context.Background())
		e.logger.Info("wordledger engine stopped", "user_id", e.userID)
	}
	return e.store.Close()
}

func (e *Engine) load(ctx context.Context) (ledger.Ledger, error) {
	data, err := e.store.Get(ctx, e.key)
	if errors.Is(err, store.ErrNotFound) {
		e.logger.Debug("no persisted ledger, starting empty", "user_id", e.userID)
		return ledger.New(e.userID, e.clock()), nil
	}
	if err != nil {
		e.plugins.EmitStoreError(ctx, "load", err)
		return ledger.Ledger{}, fmt.Errorf("%w: load: %w", ErrPersistence, err)
	}

	l, _, err := ledger.Unmarshal(data)
	if err != nil {
		e.logger.Error("persisted ledger unreadable", "user_id", e.userID, "error", err)
		return ledger.Ledger{}, err
	}
	if l.UserID != e.userID {
		return ledger.Ledger{}, fmt.Errorf("%w: stored ledger belongs to %q", ErrIntegrity, l.UserID)
	}
	return l, nil
}

// ──────────────────────────────────────────────────
// Mutation queue
// ──────────────────────────────────────────────────

// outcome is what a mutation computes from the current snapshot. When
// changed is false nothing is persisted.
type outcome struct {
	next    ledger.Ledger
	changed bool
	events  []event.Event
	value   any
}

type mutation struct {
	op   string
	ctx  context.Context
	fn   func(cur ledger.Ledger, now time.Time) (outcome, error)
	done chan reply
}

type reply struct {
	out outcome
	err error
}

// submit enqueues fn and waits for the worker to apply it. A mutation that
// was admitted always completes; cancellation only prevents admission or a
// mutation that has not started yet.
func (e *Engine) submit(ctx context.Context, op string, fn func(ledger.Ledger, time.Time) (outcome, error)) (outcome, error) {
	m := &mutation{op: op, ctx: ctx, fn: fn, done: make(chan reply, 1)}

	e.lifeMu.RLock()
	switch {
	case e.stopped:
		e.lifeMu.RUnlock()
		return outcome{}, ErrStopped
	case !e.started:
		e.lifeMu.RUnlock()
		return outcome{}, ErrNotStarted
	}
	select {
	case e.queue <- m:
	case <-ctx.Done():
		e.lifeMu.RUnlock()
		return outcome{}, ctx.Err()
	}
	e.lifeMu.RUnlock()

	r := <-m.done
	return r.out, r.err
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for {
		select {
		case m := <-e.queue:
			e.apply(m)
		case <-e.stopChan:
			for {
				select {
				case m := <-e.queue:
					m.done <- reply{err: ErrStopped}
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) apply(m *mutation) {
	if err := m.ctx.Err(); err != nil {
		m.done <- reply{err: err}
		return
	}

	cur := e.Snapshot()
	now := e.clock()
	out, err := m.fn(cur, now)

	if err == nil && out.changed {
		err = e.commit(m.ctx, m.op, out.next)
	}
	if err == nil || (!errors.Is(err, ErrPersistence) && !errors.Is(err, ErrIntegrity)) {
		e.publish(m.ctx, out.events)
	}
	m.done <- reply{out: out, err: err}
}

// commit validates and persists next, then swaps it in. On failure the
// current ledger is left untouched.
func (e *Engine) commit(ctx context.Context, op string, next ledger.Ledger) error {
	if faults := next.Validate(); len(faults) > 0 {
		e.logger.Error("mutation would violate ledger invariants, rejected",
			"user_id", e.userID,
			"op", op,
			"error", errors.Join(faults...),
		)
		return fmt.Errorf("%w: %w", ErrIntegrity, errors.Join(faults...))
	}

	data, err := ledger.Marshal(next, id.NewRevisionID().String())
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersistence, err)
	}
	if err := e.store.Set(ctx, e.key, data); err != nil {
		e.logger.Error("failed to persist ledger",
			"user_id", e.userID,
			"op", op,
			"version", next.Version,
			"error", err,
		)
		e.plugins.EmitStoreError(context.WithoutCancel(ctx), op, err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	e.mu.Lock()
	e.current = next
	e.mu.Unlock()

	e.logger.Debug("ledger committed",
		"user_id", e.userID,
		"op", op,
		"version", next.Version,
	)
	return nil
}

// ──────────────────────────────────────────────────
// Events
// ──────────────────────────────────────────────────

// Subscribe returns a channel receiving every published event and a func
// that cancels the subscription. Delivery never blocks the engine: when the
// channel is full the event is dropped for that subscriber.
func (e *Engine) Subscribe(buffer int) (<-chan event.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan event.Event, buffer)

	e.lifeMu.RLock()
	stopped := e.stopped
	e.lifeMu.RUnlock()
	if stopped {
		close(ch)
		return ch, func() {}
	}

	e.subMu.Lock()
	n := e.nextSub
	e.nextSub++
	e.subs[n] = ch
	e.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			defer e.subMu.Unlock()
			if c, ok := e.subs[n]; ok {
				close(c)
				delete(e.subs, n)
			}
		})
	}
}

func (e *Engine) publish(ctx context.Context, events []event.Event) {
	if len(events) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, ev := range events {
		e.plugins.Emit(ctx, ev)
	}

	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ev := range events {
		for n, ch := range e.subs {
			select {
			case ch <- ev:
			default:
				e.logger.Warn("subscriber buffer full, event dropped",
					"user_id", e.userID,
					"subscriber", n,
					"event", ev.EventType(),
				)
			}
		}
	}
}

func (e *Engine) header(now time.Time) event.Header {
	return event.NewHeader(e.userID, now)
}

func (e *Engine) balanceChanged(l ledger.Ledger, now time.Time) event.BalanceChanged {
	return event.BalanceChanged{
		Header:         e.header(now),
		TotalAvailable: l.TotalAvailable(now),
		ExpiringByDay:  l.ExpiringWithinDays(now, e.defaultValidDays),
		Version:        l.Version,
	}
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// Snapshot returns a deep copy of the current ledger.
func (e *Engine) Snapshot() ledger.Ledger {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current.Clone()
}

// Balance returns the per-kind balance at the engine clock.
func (e *Engine) Balance() ledger.Balance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current.Balance(e.clock())
}

// TotalAvailable returns the spendable words right now.
func (e *Engine) TotalAvailable() types.Words {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current.TotalAvailable(e.clock())
}

// ExpiringWithinDays buckets the remaining words of expiring grants by whole
// days until expiry; grants expiring after n days fall in bucket n.
func (e *Engine) ExpiringWithinDays(n int) map[int]types.Words {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current.ExpiringWithinDays(e.clock(), n)
}

// HasEnoughWords reports whether w words could be consumed right now.
func (e *Engine) HasEnoughWords(w types.Words) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current.HasEnough(e.clock(), w)
}
