package wordledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/wordledger/cloudsync"
	"github.com/xraph/wordledger/event"
	"github.com/xraph/wordledger/id"
	"github.com/xraph/wordledger/ledger"
	"github.com/xraph/wordledger/reconcile"
)

// MergeResult describes a reconciliation applied by Sync or Import.
type MergeResult struct {
	// RemoteFound is false when the remote held no copy yet; the local
	// ledger was uploaded as is.
	RemoteFound bool
	Uploaded    bool
	Version     uint64
	Added       []string
	Dropped     []string
	Conflicts   []reconcile.Conflict
}

// Sync reconciles the local ledger with the remote copy and uploads the
// result. A remote that cannot be reached yields ErrSyncUnavailable and
// leaves the local ledger untouched. Concurrent calls share one sync.
//
// The shared sync is detached from every caller's cancellation: a caller
// whose ctx ends stops waiting and gets ctx.Err(), while the sync keeps
// running for the callers still joined to it.
func (e *Engine) Sync(ctx context.Context) (MergeResult, error) {
	if e.remote == nil {
		return MergeResult{}, fmt.Errorf("%w: no remote configured", ErrSyncUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return MergeResult{}, err
	}
	detached := context.WithoutCancel(ctx)
	ch := e.syncGroup.DoChan(e.userID, func() (interface{}, error) {
		return e.sync(detached)
	})
	select {
	case r := <-ch:
		if r.Shared {
			e.logger.Debug("sync request joined an in-flight sync", "user_id", e.userID)
		}
		res, _ := r.Val.(MergeResult)
		return res, r.Err
	case <-ctx.Done():
		return MergeResult{}, ctx.Err()
	}
}

func (e *Engine) sync(ctx context.Context) (MergeResult, error) {
	if err := e.running(); err != nil {
		return MergeResult{}, err
	}

	data, err := e.remote.Download(ctx, e.userID)
	switch {
	case errors.Is(err, cloudsync.ErrNotFound):
		res := MergeResult{Version: e.Snapshot().Version}
		if err := e.upload(ctx, e.Snapshot()); err != nil {
			return res, err
		}
		res.Uploaded = true
		e.logger.Info("remote ledger seeded", "user_id", e.userID, "version", res.Version)
		return res, nil
	case err != nil:
		e.logger.Warn("remote ledger unavailable", "user_id", e.userID, "error", err)
		return MergeResult{}, fmt.Errorf("%w: %w", ErrSyncUnavailable, err)
	}

	remote, _, err := ledger.Unmarshal(data)
	if err != nil {
		e.logger.Warn("remote ledger unreadable, sync skipped", "user_id", e.userID, "error", err)
		return MergeResult{}, fmt.Errorf("%w: remote record: %w", ErrIntegrity, err)
	}

	res, merged, err := e.mergeWithRetry(ctx, "remote", remote)
	if err != nil {
		return res, err
	}
	res.RemoteFound = true

	if err := e.upload(ctx, merged); err != nil {
		return res, err
	}
	res.Uploaded = true
	return res, nil
}

func (e *Engine) upload(ctx context.Context, l ledger.Ledger) error {
	data, err := ledger.Marshal(l, id.NewRevisionID().String())
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersistence, err)
	}
	if err := e.remote.Upload(ctx, e.userID, data); err != nil {
		e.logger.Warn("remote upload failed", "user_id", e.userID, "error", err)
		return fmt.Errorf("%w: upload: %w", ErrSyncUnavailable, err)
	}
	return nil
}

// Export serializes the current ledger for manual backup.
func (e *Engine) Export(_ context.Context) ([]byte, error) {
	return ledger.Marshal(e.Snapshot(), id.NewRevisionID().String())
}

// Import merges a previously exported ledger into the local one. It never
// overwrites: the result is the same reconciliation Sync applies.
func (e *Engine) Import(ctx context.Context, data []byte) (MergeResult, error) {
	other, _, err := ledger.Unmarshal(data)
	if err != nil {
		return MergeResult{}, err
	}
	res, _, err := e.mergeWithRetry(ctx, "import", other)
	return res, err
}

// mergeWithRetry merges other into the snapshot taken at admission. If the
// ledger moved before the merge was applied it is recomputed against the
// fresh state, up to the configured number of retries.
func (e *Engine) mergeWithRetry(ctx context.Context, source string, other ledger.Ledger) (MergeResult, ledger.Ledger, error) {
	for attempt := 0; ; attempt++ {
		expected := e.Snapshot().Version
		res, merged, err := e.merge(ctx, source, other, expected)
		if !errors.Is(err, ErrVersionConflict) || attempt >= e.syncRetries {
			return res, merged, err
		}
		e.logger.Debug("ledger changed during merge, retrying",
			"user_id", e.userID,
			"source", source,
			"attempt", attempt+1,
		)
	}
}

func (e *Engine) merge(ctx context.Context, source string, other ledger.Ledger, expected uint64) (MergeResult, ledger.Ledger, error) {
	out, err := e.submit(ctx, "merge_"+source, func(cur ledger.Ledger, now time.Time) (outcome, error) {
		if cur.Version != expected {
			return outcome{}, fmt.Errorf("%w: expected version %d, found %d", ErrVersionConflict, expected, cur.Version)
		}
		res, err := reconcile.Merge(cur, other)
		if err != nil {
			return outcome{}, err
		}
		next := res.Ledger
		next.Touch(now)

		events := make([]event.Event, 0, len(res.Conflicts)+2)
		for _, c := range res.Conflicts {
			e.logger.Warn("ledger merge conflict",
				"user_id", e.userID,
				"source", source,
				"grant_id", c.GrantID,
				"field", c.Field,
				"local", c.A,
				"remote", c.B,
				"resolved", c.Resolved,
			)
			events = append(events, event.IntegrityConflict{
				Header:   e.header(now),
				GrantID:  c.GrantID,
				Field:    c.Field,
				Local:    c.A,
				Remote:   c.B,
				Resolved: c.Resolved,
			})
		}
		events = append(events,
			event.LedgerMerged{
				Header:    e.header(now),
				Source:    source,
				Added:     res.Added,
				Dropped:   res.Dropped,
				Conflicts: len(res.Conflicts),
				Version:   next.Version,
			},
			e.balanceChanged(next, now),
		)

		return outcome{
			next:    next,
			changed: true,
			value: MergeResult{
				Version:   next.Version,
				Added:     res.Added,
				Dropped:   res.Dropped,
				Conflicts: res.Conflicts,
			},
			events: events,
		}, nil
	})
	if err != nil {
		return MergeResult{}, ledger.Ledger{}, err
	}
	res, _ := out.value.(MergeResult)
	e.logger.Info("ledger merged",
		"user_id", e.userID,
		"source", source,
		"version", res.Version,
		"added", len(res.Added),
		"dropped", len(res.Dropped),
		"conflicts", len(res.Conflicts),
	)
	return res, out.next, nil
}

// running reports ErrNotStarted or ErrStopped when the engine cannot accept
// work.
func (e *Engine) running() error {
	e.lifeMu.RLock()
	defer e.lifeMu.RUnlock()
	switch {
	case e.stopped:
		return ErrStopped
	case !e.started:
		return ErrNotStarted
	}
	return nil
}
