// Package reconcile merges two independently mutated copies of a user's
// ledger into one conflict-free ledger.
//
// The merge is commutative and idempotent in every field except Version:
// consumption and the audit counter only ever grow, so taking the maximum
// always reflects the more advanced state, and the idempotency record and the
// VIP flag only ever gain members, so taking the union never re-credits.
package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/xraph/wordledger/grant"
	"github.com/xraph/wordledger/ledger"
	"github.com/xraph/wordledger/types"
)

// ErrUserMismatch is returned when the two copies belong to different users.
var ErrUserMismatch = errors.New("wordledger: ledgers belong to different users")

// Conflict records a data-integrity fault found while merging a grant that
// both copies hold.
type Conflict struct {
	GrantID  string `json:"grant_id"`
	Field    string `json:"field"`
	A        string `json:"a"`
	B        string `json:"b"`
	Resolved string `json:"resolved"`
}

func (c Conflict) String() string {
	return fmt.Sprintf("grant %s: %s differs (%s vs %s), kept %s", c.GrantID, c.Field, c.A, c.B, c.Resolved)
}

// Result is the outcome of a merge.
type Result struct {
	Ledger    ledger.Ledger
	Conflicts []Conflict
	// Added lists grant ids that came only from b; Dropped lists ids removed
	// because either side had collected them.
	Added   []string
	Dropped []string
}

// Merge combines a and b. Neither input is modified.
func Merge(a, b ledger.Ledger) (Result, error) {
	if a.UserID != "" && b.UserID != "" && a.UserID != b.UserID {
		return Result{}, fmt.Errorf("%w: %q vs %q", ErrUserMismatch, a.UserID, b.UserID)
	}

	at := latest(a.UpdatedAt, b.UpdatedAt)
	out := ledger.Ledger{
		Entity: types.Entity{
			CreatedAt: earliest(a.CreatedAt, b.CreatedAt),
			UpdatedAt: at,
		},
		UserID:                a.UserID,
		Grants:                make(map[string]grant.Grant, len(a.Grants)+len(b.Grants)),
		VIPGiftIssued:         a.VIPGiftIssued || b.VIPGiftIssued,
		AppliedTransactions:   make(map[string]struct{}, len(a.AppliedTransactions)+len(b.AppliedTransactions)),
		Collected:             make(map[string]time.Time, len(a.Collected)+len(b.Collected)),
		TotalConsumedLifetime: a.TotalConsumedLifetime.Max(b.TotalConsumedLifetime),
		Version:               max(a.Version, b.Version) + 1,
	}
	if out.UserID == "" {
		out.UserID = b.UserID
	}

	for txID := range a.AppliedTransactions {
		out.AppliedTransactions[txID] = struct{}{}
	}
	for txID := range b.AppliedTransactions {
		out.AppliedTransactions[txID] = struct{}{}
	}

	for gid, when := range a.Collected {
		out.Collected[gid] = when
	}
	for gid, when := range b.Collected {
		if prev, ok := out.Collected[gid]; !ok || when.Before(prev) {
			out.Collected[gid] = when
		}
	}

	var res Result
	ids := unionIDs(a.Grants, b.Grants)
	for _, gid := range ids {
		if _, gone := out.Collected[gid]; gone {
			res.Dropped = append(res.Dropped, gid)
			continue
		}
		ga, inA := a.Grants[gid]
		gb, inB := b.Grants[gid]
		switch {
		case inA && !inB:
			out.Grants[gid] = ga.Clone()
		case inB && !inA:
			out.Grants[gid] = gb.Clone()
			res.Added = append(res.Added, gid)
		default:
			merged, conflicts := mergeGrant(ga, gb, a.Version, b.Version)
			out.Grants[gid] = merged
			res.Conflicts = append(res.Conflicts, conflicts...)
		}
	}

	res.Ledger = out
	return res, nil
}

// mergeGrant combines two copies of the same grant. Consumption takes the
// maximum. If the immutable fields disagree the copy from the higher-version
// ledger wins; on equal versions the more conservative copy wins.
func mergeGrant(a, b grant.Grant, va, vb uint64) (grant.Grant, []Conflict) {
	base := a
	if authoritative(b, a, vb, va) {
		base = b
	}
	out := base.Clone()

	var conflicts []Conflict
	note := func(field, x, y, kept string) {
		conflicts = append(conflicts, Conflict{GrantID: a.ID, Field: field, A: x, B: y, Resolved: kept})
	}
	if a.GrantedWords != b.GrantedWords {
		note("granted_words", num(a.GrantedWords), num(b.GrantedWords), num(out.GrantedWords))
	}
	if a.Kind != b.Kind {
		note("kind", string(a.Kind), string(b.Kind), string(out.Kind))
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		note("created_at", fmtTime(&a.CreatedAt), fmtTime(&b.CreatedAt), fmtTime(&out.CreatedAt))
	}
	if !timeEqual(a.ExpiresAt, b.ExpiresAt) {
		note("expires_at", fmtTime(a.ExpiresAt), fmtTime(b.ExpiresAt), fmtTime(out.ExpiresAt))
	}

	consumed := a.ConsumedWords.Max(b.ConsumedWords)
	if consumed > out.GrantedWords {
		note("consumed_words", num(a.ConsumedWords), num(b.ConsumedWords), num(out.GrantedWords))
		consumed = out.GrantedWords
	}
	out.ConsumedWords = consumed

	out.ExhaustedAt = nil
	if out.Exhausted() {
		var stamp *time.Time
		for _, t := range []*time.Time{a.ExhaustedAt, b.ExhaustedAt} {
			if t != nil && (stamp == nil || t.Before(*stamp)) {
				stamp = t
			}
		}
		if stamp == nil {
			stamp = &out.CreatedAt
		}
		when := *stamp
		out.ExhaustedAt = &when
	}
	return out, conflicts
}

// authoritative reports whether x should win over y when their immutable
// fields differ.
func authoritative(x, y grant.Grant, vx, vy uint64) bool {
	if vx != vy {
		return vx > vy
	}
	if x.GrantedWords != y.GrantedWords {
		return x.GrantedWords < y.GrantedWords
	}
	if !timeEqual(x.ExpiresAt, y.ExpiresAt) {
		switch {
		case x.ExpiresAt == nil:
			return false
		case y.ExpiresAt == nil:
			return true
		default:
			return x.ExpiresAt.Before(*y.ExpiresAt)
		}
	}
	if !x.CreatedAt.Equal(y.CreatedAt) {
		return x.CreatedAt.Before(y.CreatedAt)
	}
	return x.Kind < y.Kind
}

func unionIDs(a, b map[string]grant.Grant) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	ids := make([]string, 0, len(a)+len(b))
	for _, m := range []map[string]grant.Grant{a, b} {
		for gid := range m {
			if _, ok := seen[gid]; ok {
				continue
			}
			seen[gid] = struct{}{}
			ids = append(ids, gid)
		}
	}
	sort.Strings(ids)
	return ids
}

func earliest(a, b time.Time) time.Time {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.Before(a):
		return b
	}
	return a
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func num(w types.Words) string { return strconv.FormatInt(w.Int64(), 10) }

func fmtTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}
