// Package allocator decides how a consumption is drawn down across grants and
// which grants may be garbage-collected.
//
// Draw-down is first-expiring-first-out: grants with a deadline are spent
// before the permanent VIP allotment, so users are not charged breakage on
// words about to lapse. Every function here is pure over a ledger snapshot.
package allocator

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/xraph/wordledger/grant"
	"github.com/xraph/wordledger/ledger"
	"github.com/xraph/wordledger/types"
)

// ErrInsufficient is returned when the active grants cannot cover a request.
var ErrInsufficient = errors.New("wordledger: insufficient words")

// ErrNonPositive is returned when the requested word count is not positive.
var ErrNonPositive = errors.New("wordledger: requested words must be positive")

// InsufficientError carries the shortfall details.
type InsufficientError struct {
	Requested types.Words
	Available types.Words
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("wordledger: insufficient words: requested %d, available %d", e.Requested, e.Available)
}

// Unwrap lets errors.Is match ErrInsufficient.
func (e *InsufficientError) Unwrap() error { return ErrInsufficient }

// Step is the draw-down from one grant.
type Step struct {
	GrantID string      `json:"grant_id"`
	Words   types.Words `json:"words"`
}

// Draw is an ordered draw-down plan.
type Draw struct {
	Requested types.Words `json:"requested"`
	Steps     []Step      `json:"steps"`
	At        time.Time   `json:"at"`
}

// Deltas returns the draw-down keyed by grant id.
func (d Draw) Deltas() map[string]types.Words {
	out := make(map[string]types.Words, len(d.Steps))
	for _, s := range d.Steps {
		out[s.GrantID] += s.Words
	}
	return out
}

// Order returns the active grants of l in draw-down order: ascending
// ExpiresAt with never-expiring grants last, then CreatedAt, then ID.
func Order(l ledger.Ledger, now time.Time) []grant.Grant {
	active := make([]grant.Grant, 0, len(l.Grants))
	for _, g := range l.Grants {
		if g.Active(now) {
			active = append(active, g)
		}
	}
	sort.Slice(active, func(i, j int) bool { return less(active[i], active[j]) })
	return active
}

func less(a, b grant.Grant) bool {
	switch {
	case a.ExpiresAt == nil && b.ExpiresAt != nil:
		return false
	case a.ExpiresAt != nil && b.ExpiresAt == nil:
		return true
	case a.ExpiresAt != nil && !a.ExpiresAt.Equal(*b.ExpiresAt):
		return a.ExpiresAt.Before(*b.ExpiresAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Plan computes the draw-down of w words from l at now. It is all-or-nothing:
// if the active grants hold fewer than w words it returns an
// *InsufficientError and no plan.
func Plan(l ledger.Ledger, w types.Words, now time.Time) (Draw, error) {
	if w <= 0 {
		return Draw{}, ErrNonPositive
	}

	ordered := Order(l, now)
	var available types.Words
	for _, g := range ordered {
		available += g.Remaining()
	}
	if available < w {
		return Draw{}, &InsufficientError{Requested: w, Available: available}
	}

	d := Draw{Requested: w, At: now}
	need := w
	for _, g := range ordered {
		if need == 0 {
			break
		}
		take := g.Remaining().Min(need)
		d.Steps = append(d.Steps, Step{GrantID: g.ID, Words: take})
		need -= take
	}
	return d, nil
}

// Apply returns a copy of l with the draw applied to each grant and the
// lifetime counter advanced. It does not bump the ledger version.
func (d Draw) Apply(l ledger.Ledger) (ledger.Ledger, error) {
	out := l.Clone()
	var total types.Words
	for _, s := range d.Steps {
		g, ok := out.Grants[s.GrantID]
		if !ok {
			return ledger.Ledger{}, fmt.Errorf("wordledger: draw references unknown grant %q", s.GrantID)
		}
		next, err := g.Draw(s.Words, d.At)
		if err != nil {
			return ledger.Ledger{}, err
		}
		out.Grants[s.GrantID] = next
		total += s.Words
	}
	if total != d.Requested {
		return ledger.Ledger{}, fmt.Errorf("wordledger: draw covers %d of %d requested words", total, d.Requested)
	}
	out.TotalConsumedLifetime += total
	return out, nil
}
