// Package event defines the notifications the engine publishes after a
// mutation has been durably persisted.
package event

import (
	"time"

	"github.com/xraph/wordledger/id"
	"github.com/xraph/wordledger/types"
)

// Type names an event kind.
type Type string

const (
	TypeBalanceChanged      Type = "balance_changed"
	TypePurchaseCredited    Type = "purchase_credited"
	TypeRewardAwarded       Type = "reward_awarded"
	TypeVIPGiftIssued       Type = "vip_gift_issued"
	TypeInsufficientBalance Type = "insufficient_balance"
	TypeWordsConsumed       Type = "words_consumed"
	TypeGrantsCollected     Type = "grants_collected"
	TypeLedgerMerged        Type = "ledger_merged"
	TypeIntegrityConflict   Type = "integrity_conflict"
)

// Event is implemented by every payload below.
type Event interface {
	EventType() Type
	Meta() Header
}

// Header is common to every event.
type Header struct {
	ID     id.EventID `json:"id"`
	UserID string     `json:"user_id"`
	At     time.Time  `json:"at"`
}

// NewHeader stamps a fresh event id.
func NewHeader(userID string, at time.Time) Header {
	return Header{ID: id.NewEventID(), UserID: userID, At: at}
}

func (h Header) Meta() Header { return h }

// BalanceChanged follows every mutation that changed the spendable total or
// its expiry profile.
type BalanceChanged struct {
	Header
	TotalAvailable types.Words         `json:"total_available"`
	ExpiringByDay  map[int]types.Words `json:"expiring_by_day"`
	Version        uint64              `json:"version"`
}

func (BalanceChanged) EventType() Type { return TypeBalanceChanged }

// PurchaseCredited is published once per newly applied transaction.
type PurchaseCredited struct {
	Header
	TransactionID string      `json:"transaction_id"`
	ProductID     string      `json:"product_id,omitempty"`
	Words         types.Words `json:"words"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
}

func (PurchaseCredited) EventType() Type { return TypePurchaseCredited }

// RewardAwarded is published once per newly applied award.
type RewardAwarded struct {
	Header
	AwardID   string      `json:"award_id"`
	Words     types.Words `json:"words"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

func (RewardAwarded) EventType() Type { return TypeRewardAwarded }

// VIPGiftIssued is published the one time the VIP gift is granted.
type VIPGiftIssued struct {
	Header
	Words     types.Words `json:"words"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

func (VIPGiftIssued) EventType() Type { return TypeVIPGiftIssued }

// InsufficientBalance reports a rejected consume request.
type InsufficientBalance struct {
	Header
	Requested types.Words `json:"requested"`
	Available types.Words `json:"available"`
}

func (InsufficientBalance) EventType() Type { return TypeInsufficientBalance }

// WordsConsumed reports a successful draw-down and how it was split.
type WordsConsumed struct {
	Header
	Words   types.Words            `json:"words"`
	ByGrant map[string]types.Words `json:"by_grant"`
}

func (WordsConsumed) EventType() Type { return TypeWordsConsumed }

// GrantsCollected lists grants removed by garbage collection.
type GrantsCollected struct {
	Header
	GrantIDs []string `json:"grant_ids"`
}

func (GrantsCollected) EventType() Type { return TypeGrantsCollected }

// LedgerMerged reports a completed reconciliation.
type LedgerMerged struct {
	Header
	Source    string   `json:"source"`
	Added     []string `json:"added,omitempty"`
	Dropped   []string `json:"dropped,omitempty"`
	Conflicts int      `json:"conflicts"`
	Version   uint64   `json:"version"`
}

func (LedgerMerged) EventType() Type { return TypeLedgerMerged }

// IntegrityConflict reports one field two ledger copies disagreed on and
// how it was resolved.
type IntegrityConflict struct {
	Header
	GrantID  string `json:"grant_id"`
	Field    string `json:"field"`
	Local    string `json:"local"`
	Remote   string `json:"remote"`
	Resolved string `json:"resolved"`
}

func (IntegrityConflict) EventType() Type { return TypeIntegrityConflict }
