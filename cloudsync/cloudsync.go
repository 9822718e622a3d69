// Package cloudsync defines the remote copy of a user's ledger that the
// engine reconciles against. Sync is opportunistic: a remote that cannot be
// reached reports ErrUnavailable and local operation continues.
package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/wordledger/store"
)

var (
	// ErrUnavailable means the remote could not be reached. Callers treat
	// it as a soft failure.
	ErrUnavailable = errors.New("wordledger: remote unavailable")
	// ErrNotFound means the remote holds no copy for the user yet.
	ErrNotFound = errors.New("wordledger: no remote copy")
)

// Remote is a remote copy of serialized ledgers keyed by user.
type Remote interface {
	// Download returns the remote record for userID, ErrNotFound when there
	// is none, or an error wrapping ErrUnavailable. It has no side effects.
	Download(ctx context.Context, userID string) ([]byte, error)
	// Upload replaces the remote record for userID.
	Upload(ctx context.Context, userID string, data []byte) error
}

// StoreRemote exposes any store.Store as a Remote. Backend failures are
// reported as ErrUnavailable.
type StoreRemote struct {
	store  store.Store
	prefix string
}

// compile-time interface check
var _ Remote = (*StoreRemote)(nil)

// FromStore wraps s. Records are kept under "wordledger/remote/<user>".
func FromStore(s store.Store) *StoreRemote {
	return &StoreRemote{store: s, prefix: "wordledger/remote/"}
}

func (r *StoreRemote) key(userID string) string {
	return r.prefix + strings.TrimSpace(userID)
}

func (r *StoreRemote) Download(ctx context.Context, userID string) ([]byte, error) {
	data, err := r.store.Get(ctx, r.key(userID))
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}

func (r *StoreRemote) Upload(ctx context.Context, userID string, data []byte) error {
	if err := r.store.Set(ctx, r.key(userID), data); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Offline is a Remote that is never reachable.
type Offline struct{}

func (Offline) Download(context.Context, string) ([]byte, error) { return nil, ErrUnavailable }

func (Offline) Upload(context.Context, string, []byte) error { return ErrUnavailable }
