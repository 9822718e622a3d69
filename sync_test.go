package wordledger_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/wordledger"
	"github.com/xraph/wordledger/cloudsync"
	"github.com/xraph/wordledger/event"
	"github.com/xraph/wordledger/grant"
	"github.com/xraph/wordledger/store/memory"
	"github.com/xraph/wordledger/types"
)

// twoDevices returns two engines for the same user sharing one remote.
func twoDevices(t *testing.T) (a, b *wordledger.Engine, clk *testClock) {
	t.Helper()
	clk = newClock()
	remote := cloudsync.FromStore(memory.New())
	a = startEngine(t, memory.New(), clk, wordledger.WithRemote(remote))
	b = startEngine(t, memory.New(), clk, wordledger.WithRemote(remote))
	return a, b, clk
}

func TestSyncConvergesIndependentEdits(t *testing.T) {
	ctx := context.Background()
	a, b, clk := twoDevices(t)

	_, err := a.CreditPurchase(ctx, "tx-1", 1000, 30)
	require.NoError(t, err)
	seed, err := a.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, seed.RemoteFound)
	assert.True(t, seed.Uploaded)

	_, err = b.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Words(1000), b.TotalAvailable())

	// Offline edits on both devices.
	clk.Advance(time.Hour)
	_, err = a.Consume(ctx, 200)
	require.NoError(t, err)
	_, err = b.CreditPurchase(ctx, "tx-2", 1000, 30)
	require.NoError(t, err)

	_, err = b.Sync(ctx)
	require.NoError(t, err)
	_, err = a.Sync(ctx)
	require.NoError(t, err)
	_, err = b.Sync(ctx)
	require.NoError(t, err)

	sa, sb := a.Snapshot(), b.Snapshot()
	assert.True(t, sa.Equal(sb, true), "devices did not converge")
	assert.Equal(t, types.Words(1800), a.TotalAvailable())
	assert.Equal(t, types.Words(1800), b.TotalAvailable())
	assert.Equal(t, types.Words(200), sb.TotalConsumedLifetime)
}

func TestSyncDoesNotDoubleCreditRestoredPurchase(t *testing.T) {
	ctx := context.Background()
	a, b, _ := twoDevices(t)

	// The same transaction restored on both devices before either synced.
	_, err := a.CreditPurchase(ctx, "tx-1", 2000, 30)
	require.NoError(t, err)
	_, err = b.CreditPurchase(ctx, "tx-1", 2000, 30)
	require.NoError(t, err)
	_, err = a.CreditVIPGift(ctx, 0, nil)
	require.NoError(t, err)
	_, err = b.CreditVIPGift(ctx, 0, nil)
	require.NoError(t, err)

	_, err = a.Sync(ctx)
	require.NoError(t, err)
	_, err = b.Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, types.Words(2000)+wordledger.DefaultVIPGiftWords, b.TotalAvailable())
	assert.Len(t, b.Snapshot().Grants, 2)
}

func TestSyncConcurrentConsumptionTakesMax(t *testing.T) {
	ctx := context.Background()
	a, b, _ := twoDevices(t)

	_, err := a.CreditPurchase(ctx, "tx-1", 1000, 30)
	require.NoError(t, err)
	_, err = a.Sync(ctx)
	require.NoError(t, err)
	_, err = b.Sync(ctx)
	require.NoError(t, err)

	_, err = a.Consume(ctx, 300)
	require.NoError(t, err)
	_, err = b.Consume(ctx, 700)
	require.NoError(t, err)

	_, err = a.Sync(ctx)
	require.NoError(t, err)
	_, err = b.Sync(ctx)
	require.NoError(t, err)

	g := b.Snapshot().Grants["tx-1"]
	assert.Equal(t, types.Words(700), g.ConsumedWords)
	assert.Equal(t, types.Words(300), b.TotalAvailable())
}

func TestSyncCollectedGrantIsNotResurrected(t *testing.T) {
	ctx := context.Background()
	a, b, clk := twoDevices(t)

	_, err := a.CreditPurchase(ctx, "tx-1", 1000, 1)
	require.NoError(t, err)
	_, err = a.Sync(ctx)
	require.NoError(t, err)
	_, err = b.Sync(ctx)
	require.NoError(t, err)

	clk.Advance(wordledger.DefaultGraceWindow + 48*time.Hour)
	removed, err := a.ExpireAndCollect(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"tx-1"}, removed)

	_, err = a.Sync(ctx)
	require.NoError(t, err)
	_, err = b.Sync(ctx)
	require.NoError(t, err)

	assert.NotContains(t, b.Snapshot().Grants, "tx-1")
	assert.NotContains(t, a.Snapshot().Grants, "tx-1")
	assert.True(t, b.Snapshot().Applied("tx-1"))
}

func TestSyncUnavailableKeepsLocalState(t *testing.T) {
	ctx := context.Background()
	eng := startEngine(t, memory.New(), newClock(), wordledger.WithRemote(cloudsync.Offline{}))

	_, err := eng.CreditPurchase(ctx, "tx-1", 1000, 30)
	require.NoError(t, err)
	before := eng.Snapshot()

	_, err = eng.Sync(ctx)
	require.ErrorIs(t, err, wordledger.ErrSyncUnavailable)
	assert.True(t, wordledger.IsRetryable(err))
	assert.True(t, before.Equal(eng.Snapshot(), false))

	_, err = eng.Consume(ctx, 100)
	assert.NoError(t, err, "local operation must continue while offline")

	noRemote := startEngine(t, memory.New(), newClock())
	_, err = noRemote.Sync(ctx)
	assert.ErrorIs(t, err, wordledger.ErrSyncUnavailable)
}

func TestSyncReportsConflicts(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	remoteStore := memory.New()
	remote := cloudsync.FromStore(remoteStore)

	// A peer recorded the same grant id with a different size.
	peer := startEngine(t, memory.New(), clk)
	_, err := peer.CreditPurchase(ctx, "tx-1", 5000, 30)
	require.NoError(t, err)
	exported, err := peer.Export(ctx)
	require.NoError(t, err)
	require.NoError(t, remote.Upload(ctx, "user-1", exported))

	eng := startEngine(t, memory.New(), clk, wordledger.WithRemote(remote))
	events, cancel := eng.Subscribe(32)
	defer cancel()
	_, err = eng.CreditPurchase(ctx, "tx-1", 1000, 30)
	require.NoError(t, err)

	res, err := eng.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, res.RemoteFound)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "granted_words", res.Conflicts[0].Field)
	assert.Equal(t, types.Words(1000), eng.Snapshot().Grants["tx-1"].GrantedWords, "conservative size kept")

	var sawConflict, sawMerge bool
	for _, ev := range drain(events, 5) {
		switch ev.(type) {
		case event.IntegrityConflict:
			sawConflict = true
		case event.LedgerMerged:
			sawMerge = true
		}
	}
	assert.True(t, sawConflict)
	assert.True(t, sawMerge)
}

func TestExportImportMerges(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	src := startEngine(t, memory.New(), clk)
	dst := startEngine(t, memory.New(), clk)

	_, err := src.CreditPurchase(ctx, "tx-1", 1000, 30)
	require.NoError(t, err)
	_, err = src.Consume(ctx, 400)
	require.NoError(t, err)
	_, err = dst.AwardBonusWords(ctx, "award-1", 100, 30)
	require.NoError(t, err)

	data, err := src.Export(ctx)
	require.NoError(t, err)
	res, err := dst.Import(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, []string{"tx-1"}, res.Added)

	snap := dst.Snapshot()
	assert.Contains(t, snap.Grants, "tx-1")
	assert.Contains(t, snap.Grants, "award-1")
	assert.Equal(t, types.Words(700), dst.TotalAvailable())
	assert.Equal(t, types.Words(100), snap.Grants["award-1"].GrantedWords)
	assert.Equal(t, grant.KindReward, snap.Grants["award-1"].Kind)

	// Importing the same backup again changes nothing but the version.
	again, err := dst.Import(ctx, data)
	require.NoError(t, err)
	assert.Empty(t, again.Added)
	assert.True(t, snap.Equal(dst.Snapshot(), true))

	_, err = dst.Import(ctx, []byte("not a ledger"))
	assert.ErrorIs(t, err, wordledger.ErrCorruptRecord)
}

// gatedStore parks the next write until released, holding the worker inside
// a commit while the published snapshot still shows the previous version.
type gatedStore struct {
	*memory.Store

	mu      sync.Mutex
	gate    chan struct{}
	entered chan struct{}
}

func (s *gatedStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	gate, entered := s.gate, s.entered
	s.gate, s.entered = nil, nil
	s.mu.Unlock()
	if gate != nil {
		close(entered)
		<-gate
	}
	return s.Store.Set(ctx, key, value)
}

// hold arms the gate for the next Set.
func (s *gatedStore) hold() (entered <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate, s.entered = make(chan struct{}), make(chan struct{})
	gate := s.gate
	return s.entered, func() { close(gate) }
}

// hookRemote runs afterDownload once the copy has been fetched.
type hookRemote struct {
	cloudsync.Remote
	afterDownload func()
}

func (r *hookRemote) Download(ctx context.Context, userID string) ([]byte, error) {
	data, err := r.Remote.Download(ctx, userID)
	if r.afterDownload != nil {
		r.afterDownload()
	}
	return data, err
}

// lockedBuffer collects log output written from several goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// consumeDuringMerge wires eng so that a Consume of w words commits after
// Sync has snapshotted the ledger but before its merge is applied. The
// returned channel yields the Consume error.
func consumeDuringMerge(t *testing.T, eng *wordledger.Engine, st *gatedStore, remote *hookRemote, w types.Words) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	var once sync.Once
	remote.afterDownload = func() {
		once.Do(func() {
			entered, release := st.hold()
			go func() {
				_, err := eng.Consume(context.Background(), w)
				done <- err
			}()
			<-entered
			// Let Sync snapshot and queue its merge behind the parked commit.
			time.AfterFunc(50*time.Millisecond, release)
		})
	}
	return done
}

// syncRace seeds the shared remote with a peer grant and starts an engine
// holding a local grant behind a gated store.
func syncRace(t *testing.T, opts ...wordledger.Option) (eng, peer *wordledger.Engine, st *gatedStore, remote *hookRemote) {
	t.Helper()
	ctx := context.Background()
	clk := newClock()
	shared := cloudsync.FromStore(memory.New())

	peer = startEngine(t, memory.New(), clk, wordledger.WithRemote(shared))
	_, err := peer.CreditPurchase(ctx, "tx-remote", 1000, 30)
	require.NoError(t, err)
	_, err = peer.Sync(ctx)
	require.NoError(t, err)

	st = &gatedStore{Store: memory.New()}
	remote = &hookRemote{Remote: shared}
	opts = append([]wordledger.Option{wordledger.WithRemote(remote)}, opts...)
	eng = startEngine(t, st, clk, opts...)
	_, err = eng.CreditPurchase(ctx, "tx-local", 1000, 30)
	require.NoError(t, err)
	return eng, peer, st, remote
}

func TestSyncRetriesMergeAfterConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	logs := &lockedBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	eng, peer, st, remote := syncRace(t, wordledger.WithLogger(logger))
	consumed := consumeDuringMerge(t, eng, st, remote, 300)

	res, err := eng.Sync(ctx)
	require.NoError(t, err)
	require.NoError(t, <-consumed)
	assert.True(t, res.RemoteFound)
	assert.True(t, res.Uploaded)
	assert.Contains(t, logs.String(), "ledger changed during merge, retrying")

	snap := eng.Snapshot()
	assert.Contains(t, snap.Grants, "tx-remote")
	assert.Equal(t, types.Words(300), snap.TotalConsumedLifetime, "concurrent consumption lost")
	assert.Equal(t, types.Words(1700), eng.TotalAvailable())
	assert.Equal(t, snap.Version, res.Version)

	// The uploaded copy carries the consumption too.
	_, err = peer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Words(1700), peer.TotalAvailable())
	assert.True(t, snap.Equal(peer.Snapshot(), true), "devices did not converge")
}

func TestSyncWithoutRetriesReportsVersionConflict(t *testing.T) {
	ctx := context.Background()
	eng, peer, st, remote := syncRace(t, wordledger.WithSyncRetries(0))
	consumed := consumeDuringMerge(t, eng, st, remote, 300)

	res, err := eng.Sync(ctx)
	require.ErrorIs(t, err, wordledger.ErrVersionConflict)
	require.NoError(t, <-consumed)
	assert.True(t, wordledger.IsRetryable(err))
	assert.False(t, res.Uploaded)

	snap := eng.Snapshot()
	assert.NotContains(t, snap.Grants, "tx-remote", "stale merge must not be applied")
	assert.Equal(t, types.Words(300), snap.TotalConsumedLifetime)
	assert.Equal(t, types.Words(700), eng.TotalAvailable())

	// Nothing was uploaded over the peer's copy.
	_, err = peer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Words(1000), peer.TotalAvailable())

	// A later sync goes through.
	_, err = eng.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Words(1700), eng.TotalAvailable())
}

// blockingRemote holds Download until released and records whether the
// context it ran under was cancelled by then.
type blockingRemote struct {
	cloudsync.Remote
	once    sync.Once
	entered chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (r *blockingRemote) Download(ctx context.Context, userID string) ([]byte, error) {
	r.once.Do(func() { close(r.entered) })
	<-r.release
	r.ctxErr <- ctx.Err()
	return r.Remote.Download(ctx, userID)
}

func TestSyncOutlivesCancelledCaller(t *testing.T) {
	shared := cloudsync.FromStore(memory.New())
	remote := &blockingRemote{
		Remote:  shared,
		entered: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 2),
	}
	eng := startEngine(t, memory.New(), newClock(), wordledger.WithRemote(remote))
	_, err := eng.CreditPurchase(context.Background(), "tx-1", 1000, 30)
	require.NoError(t, err)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := eng.Sync(first)
		firstErr <- err
	}()
	<-remote.entered

	second := make(chan error, 1)
	var secondRes wordledger.MergeResult
	go func() {
		res, err := eng.Sync(context.Background())
		secondRes = res
		second <- err
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(remote.release)
	require.NoError(t, <-second)
	assert.NoError(t, <-remote.ctxErr, "shared sync ran under the cancelled caller's context")
	assert.True(t, secondRes.Uploaded)

	data, err := shared.Download(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	_, err = eng.Sync(first)
	assert.ErrorIs(t, err, context.Canceled)
}
