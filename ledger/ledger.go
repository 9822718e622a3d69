// Package ledger holds the word ledger of one user: every grant plus the
// audit counters and the idempotency record.
//
// Ledger is a value type. Nothing in this package mutates a Ledger it was
// handed; every transformation works on a Clone and returns it, which keeps
// allocation, merge and test logic equational.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/xraph/wordledger/grant"
	"github.com/xraph/wordledger/types"
)

// Ledger is the aggregate for one user.
type Ledger struct {
	types.Entity

	UserID string
	Grants map[string]grant.Grant

	// VIPGiftIssued is set once per account lifetime.
	VIPGiftIssued bool

	// AppliedTransactions holds every transaction or award id ever credited.
	// Entries outlive their grants.
	AppliedTransactions map[string]struct{}

	// Collected holds the ids of garbage-collected grants and when they were
	// removed, so a merge with a stale copy cannot bring them back.
	Collected map[string]time.Time

	TotalConsumedLifetime types.Words
	Version               uint64
}

// New returns an empty ledger for userID.
func New(userID string, now time.Time) Ledger {
	return Ledger{
		Entity:              types.NewEntity(now),
		UserID:              userID,
		Grants:              make(map[string]grant.Grant),
		AppliedTransactions: make(map[string]struct{}),
		Collected:           make(map[string]time.Time),
	}
}

// Clone returns a deep copy.
func (l Ledger) Clone() Ledger {
	out := l
	out.Grants = make(map[string]grant.Grant, len(l.Grants))
	for k, g := range l.Grants {
		out.Grants[k] = g.Clone()
	}
	out.AppliedTransactions = make(map[string]struct{}, len(l.AppliedTransactions))
	for k := range l.AppliedTransactions {
		out.AppliedTransactions[k] = struct{}{}
	}
	out.Collected = make(map[string]time.Time, len(l.Collected))
	for k, v := range l.Collected {
		out.Collected[k] = v
	}
	return out
}

// Applied reports whether txID has already been credited.
func (l Ledger) Applied(txID string) bool {
	_, ok := l.AppliedTransactions[txID]
	return ok
}

// Remaining sums the available words across non-expired grants, optionally
// restricted to the given kinds.
func (l Ledger) Remaining(now time.Time, kinds ...grant.Kind) types.Words {
	var total types.Words
	for _, g := range l.Grants {
		if len(kinds) > 0 && !hasKind(kinds, g.Kind) {
			continue
		}
		total += g.Available(now)
	}
	return total
}

func hasKind(kinds []grant.Kind, k grant.Kind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}

// TotalAvailable sums the available words across all non-expired grants.
func (l Ledger) TotalAvailable(now time.Time) types.Words {
	return l.Remaining(now)
}

// HasEnough reports whether w words could be consumed at now.
func (l Ledger) HasEnough(now time.Time, w types.Words) bool {
	return l.TotalAvailable(now) >= w
}

// ExpiringWithinDays groups the remaining words of active, expiring grants by
// ceil((ExpiresAt-now)/1day), clipped to [0, n]: grants expiring later than n
// days land in bucket n. Never-expiring grants are not included.
func (l Ledger) ExpiringWithinDays(now time.Time, n int) map[int]types.Words {
	out := make(map[int]types.Words)
	if n < 0 {
		return out
	}
	for _, g := range l.Grants {
		if !g.Active(now) {
			continue
		}
		days, ok := g.DaysUntilExpiry(now)
		if !ok {
			continue
		}
		out[min(max(days, 0), n)] += g.Remaining()
	}
	return out
}

// Balance is a per-kind breakdown of the available words.
type Balance struct {
	Total            types.Words `json:"total"`
	VIPGift          types.Words `json:"vip_gift"`
	Purchased        types.Words `json:"purchased"`
	Reward           types.Words `json:"reward"`
	ConsumedLifetime types.Words `json:"consumed_lifetime"`
	Version          uint64      `json:"version"`
}

// Balance returns the per-kind breakdown at now.
func (l Ledger) Balance(now time.Time) Balance {
	b := Balance{
		ConsumedLifetime: l.TotalConsumedLifetime,
		Version:          l.Version,
	}
	for _, g := range l.Grants {
		avail := g.Available(now)
		switch g.Kind {
		case grant.KindVIPGift:
			b.VIPGift += avail
		case grant.KindPurchased:
			b.Purchased += avail
		case grant.KindReward:
			b.Reward += avail
		}
		b.Total += avail
	}
	return b
}

// SortedGrants returns the grants ordered by id.
func (l Ledger) SortedGrants() []grant.Grant {
	out := make([]grant.Grant, 0, len(l.Grants))
	for _, g := range l.Grants {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WithGrant returns a copy of l holding g, replacing any grant with the same
// id. Invalid grants are rejected.
func (l Ledger) WithGrant(g grant.Grant) (Ledger, error) {
	if err := g.Validate(); err != nil {
		return Ledger{}, err
	}
	out := l.Clone()
	out.Grants[g.ID] = g.Clone()
	return out, nil
}

// Bump returns a copy of l with Version incremented and UpdatedAt touched.
func (l Ledger) Bump(now time.Time) Ledger {
	out := l.Clone()
	out.Version++
	out.Touch(now)
	return out
}

// Validate checks the ledger invariants and returns every violation found.
func (l Ledger) Validate() []error {
	var errs []error
	for key, g := range l.Grants {
		if key != g.ID {
			errs = append(errs, fmt.Errorf("grant keyed %q carries id %q", key, g.ID))
		}
		if err := g.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if l.TotalConsumedLifetime < 0 {
		errs = append(errs, fmt.Errorf("total consumed lifetime is negative: %d", l.TotalConsumedLifetime))
	}
	return errs
}

// Equal compares two ledgers field by field. When ignoreVersion is true the
// Version counter and timestamps are left out of the comparison.
func (l Ledger) Equal(o Ledger, ignoreVersion bool) bool {
	if !ignoreVersion {
		if l.Version != o.Version || !l.CreatedAt.Equal(o.CreatedAt) || !l.UpdatedAt.Equal(o.UpdatedAt) {
			return false
		}
	}
	if l.UserID != o.UserID ||
		l.VIPGiftIssued != o.VIPGiftIssued ||
		l.TotalConsumedLifetime != o.TotalConsumedLifetime ||
		len(l.Grants) != len(o.Grants) ||
		len(l.AppliedTransactions) != len(o.AppliedTransactions) ||
		len(l.Collected) != len(o.Collected) {
		return false
	}
	for k, g := range l.Grants {
		og, ok := o.Grants[k]
		if !ok || !g.Equal(og) {
			return false
		}
	}
	for k := range l.AppliedTransactions {
		if _, ok := o.AppliedTransactions[k]; !ok {
			return false
		}
	}
	for k, v := range l.Collected {
		ov, ok := o.Collected[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
