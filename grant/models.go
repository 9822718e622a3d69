// Package grant defines a single quantity of word allowance with a provenance
// and an optional expiry.
package grant

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/wordledger/types"
)

// Kind is the provenance of a grant.
type Kind string

const (
	KindVIPGift   Kind = "vip_gift"
	KindPurchased Kind = "purchased"
	KindReward    Kind = "reward"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindVIPGift, KindPurchased, KindReward:
		return true
	}
	return false
}

// VIPGiftID is the fixed grant id of the VIP gift within a user's ledger.
const VIPGiftID = "vip_gift"

// ErrInvalid is returned when a grant would violate its invariants.
var ErrInvalid = errors.New("wordledger: invalid grant")

// InvalidError describes which field made a grant invalid.
type InvalidError struct {
	Field   string
	Message string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("wordledger: invalid grant: %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalid.
func (e *InvalidError) Unwrap() error { return ErrInvalid }

func invalid(field, msg string) error {
	return &InvalidError{Field: field, Message: msg}
}

// Grant is one quantity of words. GrantedWords is immutable once created and
// ConsumedWords only ever grows.
type Grant struct {
	ID            string      `json:"id"`
	Kind          Kind        `json:"kind"`
	GrantedWords  types.Words `json:"granted_words"`
	ConsumedWords types.Words `json:"consumed_words"`
	CreatedAt     time.Time   `json:"created_at"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
	// ExhaustedAt is set when ConsumedWords reaches GrantedWords and starts
	// the retention grace window.
	ExhaustedAt *time.Time `json:"exhausted_at,omitempty"`
}

// Params are the inputs to New.
type Params struct {
	ID        string
	Kind      Kind
	Words     types.Words
	Consumed  types.Words
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// New builds a validated Grant.
func New(p Params) (Grant, error) {
	g := Grant{
		ID:            p.ID,
		Kind:          p.Kind,
		GrantedWords:  p.Words,
		ConsumedWords: p.Consumed,
		CreatedAt:     p.CreatedAt.UTC(),
	}
	if p.ExpiresAt != nil {
		exp := p.ExpiresAt.UTC()
		g.ExpiresAt = &exp
	}
	if g.Exhausted() {
		at := g.CreatedAt
		g.ExhaustedAt = &at
	}
	if err := g.Validate(); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// Validate checks the grant invariants.
func (g Grant) Validate() error {
	switch {
	case g.ID == "":
		return invalid("id", "must not be empty")
	case !g.Kind.Valid():
		return invalid("kind", fmt.Sprintf("unknown kind %q", g.Kind))
	case g.GrantedWords < 0:
		return invalid("granted_words", "must not be negative")
	case g.ConsumedWords < 0:
		return invalid("consumed_words", "must not be negative")
	case g.ConsumedWords > g.GrantedWords:
		return invalid("consumed_words", fmt.Sprintf("%d exceeds granted %d", g.ConsumedWords, g.GrantedWords))
	}
	return nil
}

// Remaining returns GrantedWords - ConsumedWords.
func (g Grant) Remaining() types.Words {
	return g.GrantedWords - g.ConsumedWords
}

// Exhausted reports whether nothing remains.
func (g Grant) Exhausted() bool {
	return g.Remaining() <= 0
}

// NeverExpires reports whether the grant has no expiry.
func (g Grant) NeverExpires() bool {
	return g.ExpiresAt == nil
}

// Expired reports whether the grant's expiry has been reached at now.
func (g Grant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && !now.Before(*g.ExpiresAt)
}

// Active reports whether the grant counts toward the available balance.
func (g Grant) Active(now time.Time) bool {
	return !g.Expired(now) && !g.Exhausted()
}

// Available returns the words the grant contributes at now.
func (g Grant) Available(now time.Time) types.Words {
	if !g.Active(now) {
		return 0
	}
	return g.Remaining()
}

// DaysUntilExpiry returns ceil((ExpiresAt-now)/24h), floored at 0. The second
// result is false for never-expiring grants.
func (g Grant) DaysUntilExpiry(now time.Time) (int, bool) {
	if g.ExpiresAt == nil {
		return 0, false
	}
	left := g.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0, true
	}
	days := int(left / (24 * time.Hour))
	if left%(24*time.Hour) != 0 {
		days++
	}
	return days, true
}

// Draw returns a copy of g with n more words consumed. It fails if n is
// negative or larger than what remains.
func (g Grant) Draw(n types.Words, now time.Time) (Grant, error) {
	if n < 0 {
		return Grant{}, invalid("draw", "must not be negative")
	}
	if n > g.Remaining() {
		return Grant{}, invalid("draw", fmt.Sprintf("%d exceeds remaining %d of %s", n, g.Remaining(), g.ID))
	}
	out := g.Clone()
	out.ConsumedWords += n
	if out.Exhausted() && out.ExhaustedAt == nil {
		at := now.UTC()
		out.ExhaustedAt = &at
	}
	return out, nil
}

// Collectable reports whether the grant may be physically removed at now:
// it expired, or was exhausted, at least grace ago.
func (g Grant) Collectable(now time.Time, grace time.Duration) bool {
	if g.ExpiresAt != nil && !now.Before(g.ExpiresAt.Add(grace)) {
		return true
	}
	if !g.Exhausted() {
		return false
	}
	since := g.CreatedAt
	if g.ExhaustedAt != nil {
		since = *g.ExhaustedAt
	}
	return !now.Before(since.Add(grace))
}

// Clone returns a deep copy.
func (g Grant) Clone() Grant {
	out := g
	if g.ExpiresAt != nil {
		t := *g.ExpiresAt
		out.ExpiresAt = &t
	}
	if g.ExhaustedAt != nil {
		t := *g.ExhaustedAt
		out.ExhaustedAt = &t
	}
	return out
}

// Equal reports whether two grants carry the same content.
func (g Grant) Equal(o Grant) bool {
	return g.ID == o.ID &&
		g.Kind == o.Kind &&
		g.GrantedWords == o.GrantedWords &&
		g.ConsumedWords == o.ConsumedWords &&
		g.CreatedAt.Equal(o.CreatedAt) &&
		timePtrEqual(g.ExpiresAt, o.ExpiresAt) &&
		timePtrEqual(g.ExhaustedAt, o.ExhaustedAt)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// ExpiresAfter returns now+days as an expiry, or nil when days <= 0.
func ExpiresAfter(now time.Time, days int) *time.Time {
	if days <= 0 {
		return nil
	}
	t := now.UTC().AddDate(0, 0, days)
	return &t
}
