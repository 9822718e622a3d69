package ledger

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/xraph/wordledger/grant"
	"github.com/xraph/wordledger/id"
	"github.com/xraph/wordledger/types"
)

var t0 = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func mustGrant(t *testing.T, p grant.Params) grant.Grant {
	t.Helper()
	g, err := grant.New(p)
	if err != nil {
		t.Fatalf("grant.New(%+v): %v", p, err)
	}
	return g
}

func fixture(t *testing.T) Ledger {
	t.Helper()
	l := New("user-1", t0)
	l.Grants[grant.VIPGiftID] = mustGrant(t, grant.Params{ID: grant.VIPGiftID, Kind: grant.KindVIPGift, Words: types.Words500K, CreatedAt: t0})
	l.Grants["tx-1"] = mustGrant(t, grant.Params{ID: "tx-1", Kind: grant.KindPurchased, Words: 2000, Consumed: 500, CreatedAt: t0, ExpiresAt: grant.ExpiresAfter(t0, 3)})
	l.Grants["tx-2"] = mustGrant(t, grant.Params{ID: "tx-2", Kind: grant.KindPurchased, Words: 1000, CreatedAt: t0, ExpiresAt: grant.ExpiresAfter(t0, 10)})
	l.Grants["award-1"] = mustGrant(t, grant.Params{ID: "award-1", Kind: grant.KindReward, Words: 300, CreatedAt: t0, ExpiresAt: grant.ExpiresAfter(t0, 1)})
	l.Grants["old"] = mustGrant(t, grant.Params{ID: "old", Kind: grant.KindReward, Words: 700, CreatedAt: t0.AddDate(0, 0, -30), ExpiresAt: grant.ExpiresAfter(t0.AddDate(0, 0, -30), 7)})
	l.AppliedTransactions["tx-1"] = struct{}{}
	l.AppliedTransactions["tx-2"] = struct{}{}
	l.AppliedTransactions["award-1"] = struct{}{}
	l.TotalConsumedLifetime = 500
	return l
}

func TestRemainingByKind(t *testing.T) {
	l := fixture(t)

	tests := []struct {
		name  string
		kinds []grant.Kind
		want  types.Words
	}{
		{"All", nil, types.Words500K + 1500 + 1000 + 300},
		{"VIP", []grant.Kind{grant.KindVIPGift}, types.Words500K},
		{"Purchased", []grant.Kind{grant.KindPurchased}, 2500},
		{"RewardSkipsExpired", []grant.Kind{grant.KindReward}, 300},
		{"Multiple", []grant.Kind{grant.KindPurchased, grant.KindReward}, 2800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.Remaining(t0, tt.kinds...); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}

	if got := l.TotalAvailable(t0); got != l.Remaining(t0) {
		t.Errorf("TotalAvailable %d != Remaining %d", got, l.Remaining(t0))
	}
}

func TestExpiredGrantContributesNothing(t *testing.T) {
	l := fixture(t)
	before := l.TotalAvailable(t0)
	after := l.TotalAvailable(t0.AddDate(0, 0, 1))

	if before-after != 300 {
		t.Errorf("expected the 1-day reward to drop out, before=%d after=%d", before, after)
	}
	if !l.HasEnough(t0, before) || l.HasEnough(t0, before+1) {
		t.Error("HasEnough disagrees with TotalAvailable")
	}
}

func TestExpiringWithinDays(t *testing.T) {
	l := fixture(t)

	// tx-2 expires in 10 days and is clipped into the last bucket.
	got := l.ExpiringWithinDays(t0, 7)
	want := map[int]types.Words{1: 300, 3: 1500, 7: 1000}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for d, w := range want {
		if got[d] != w {
			t.Errorf("day %d: got %d, want %d", d, got[d], w)
		}
	}

	if wide := l.ExpiringWithinDays(t0, 30); wide[10] != 1000 || len(wide) != 3 {
		t.Errorf("expected tx-2 in the 10-day bucket, got %v", wide)
	}
	if today := l.ExpiringWithinDays(t0, 0); len(today) != 1 || today[0] != 2800 {
		t.Errorf("zero window should clip everything into bucket 0, got %v", today)
	}
	if none := l.ExpiringWithinDays(t0, -1); len(none) != 0 {
		t.Errorf("negative window should be empty, got %v", none)
	}
}

func TestBalanceBreakdown(t *testing.T) {
	l := fixture(t)
	b := l.Balance(t0)

	if b.VIPGift != types.Words500K || b.Purchased != 2500 || b.Reward != 300 {
		t.Errorf("unexpected breakdown: %+v", b)
	}
	if b.Total != b.VIPGift+b.Purchased+b.Reward {
		t.Errorf("total %d is not the sum of kinds", b.Total)
	}
	if b.ConsumedLifetime != 500 {
		t.Errorf("ConsumedLifetime: got %d", b.ConsumedLifetime)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	l := fixture(t)
	c := l.Clone()

	c.Grants["tx-3"] = mustGrant(t, grant.Params{ID: "tx-3", Kind: grant.KindPurchased, Words: 1, CreatedAt: t0})
	c.AppliedTransactions["tx-3"] = struct{}{}
	c.Collected["gone"] = t0

	if _, ok := l.Grants["tx-3"]; ok {
		t.Error("clone shares Grants")
	}
	if l.Applied("tx-3") {
		t.Error("clone shares AppliedTransactions")
	}
	if len(l.Collected) != 0 {
		t.Error("clone shares Collected")
	}
}

func TestWithGrantAndBump(t *testing.T) {
	l := New("user-1", t0)

	if _, err := l.WithGrant(grant.Grant{ID: "bad", Kind: grant.KindReward, GrantedWords: 1, ConsumedWords: 2}); !errors.Is(err, grant.ErrInvalid) {
		t.Fatalf("expected grant.ErrInvalid, got %v", err)
	}

	g := mustGrant(t, grant.Params{ID: "tx-1", Kind: grant.KindPurchased, Words: 10, CreatedAt: t0})
	l2, err := l.WithGrant(g)
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Grants) != 0 {
		t.Error("WithGrant mutated the receiver")
	}

	l3 := l2.Bump(t0.Add(time.Minute))
	if l3.Version != l2.Version+1 || !l3.UpdatedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("Bump: version %d updated %v", l3.Version, l3.UpdatedAt)
	}
}

func TestValidateReportsViolations(t *testing.T) {
	l := New("user-1", t0)
	l.Grants["a"] = grant.Grant{ID: "b", Kind: grant.KindReward, GrantedWords: 1}
	l.Grants["c"] = grant.Grant{ID: "c", Kind: grant.KindReward, GrantedWords: 1, ConsumedWords: 5}
	l.TotalConsumedLifetime = -1

	if errs := l.Validate(); len(errs) != 3 {
		t.Errorf("expected 3 violations, got %d: %v", len(errs), errs)
	}
	if errs := fixture(t).Validate(); len(errs) != 0 {
		t.Errorf("fixture should be valid, got %v", errs)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	l := fixture(t)
	l.VIPGiftIssued = true
	l.Collected["gone"] = t0.Add(-time.Hour)
	l.Version = 7

	revision := id.NewRevisionID().String()
	data, err := Marshal(l, revision)
	if err != nil {
		t.Fatal(err)
	}
	restored, rev, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if rev != revision {
		t.Errorf("revision: got %q", rev)
	}
	if !restored.Equal(l, false) {
		t.Errorf("round trip changed the ledger:\n got %+v\nwant %+v", restored, l)
	}

	again, err := Marshal(restored, revision)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, again) {
		t.Error("encoding is not deterministic")
	}
}

func TestUnmarshalRejectsCorruptRecords(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"NotJSON", "{"},
		{"UnknownSchema", `{"schema_version":99}`},
		{"MissingSchema", `{"user_id":"u"}`},
		{"Overconsumed", `{"schema_version":1,"grants":[{"id":"a","kind":"reward","granted_words":1,"consumed_words":2}]}`},
		{"ForeignRevision", `{"schema_version":1,"revision":"evt_01h2xcejqtf2nbrexx3vqjhp41"}`},
		{"MalformedRevision", `{"schema_version":1,"revision":"rev_1"}`},
		{"DuplicateGrant", `{"schema_version":1,"grants":[{"id":"a","kind":"reward","granted_words":1},{"id":"a","kind":"reward","granted_words":1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Unmarshal([]byte(tt.data)); !errors.Is(err, ErrCorruptRecord) {
				t.Errorf("expected ErrCorruptRecord, got %v", err)
			}
		})
	}
}

func TestUnmarshalStampsUnstampedExhaustion(t *testing.T) {
	data := `{"schema_version":1,"user_id":"u","grants":[` +
		`{"id":"a","kind":"reward","granted_words":5,"consumed_words":5,"created_at":"2026-02-01T09:00:00Z"}]}`

	l, _, err := Unmarshal([]byte(data))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	stamp := l.Grants["a"].ExhaustedAt
	if stamp == nil || !stamp.Equal(t0) {
		t.Errorf("expected ExhaustedAt %v, got %v", t0, stamp)
	}
}
