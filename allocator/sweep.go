package allocator

import (
	"sort"
	"time"

	"github.com/xraph/wordledger/ledger"
)

// Sweep returns a copy of l without the grants that are collectable at now
// (expired or exhausted at least grace ago), and the ids it removed in order.
// Removed ids are recorded as tombstones. AppliedTransactions and
// TotalConsumedLifetime are left untouched.
func Sweep(l ledger.Ledger, now time.Time, grace time.Duration) (ledger.Ledger, []string) {
	var removed []string
	for gid, g := range l.Grants {
		if g.Collectable(now, grace) {
			removed = append(removed, gid)
		}
	}
	if len(removed) == 0 {
		return l, nil
	}
	sort.Strings(removed)

	out := l.Clone()
	for _, gid := range removed {
		delete(out.Grants, gid)
		out.Collected[gid] = now.UTC()
	}
	return out, removed
}
