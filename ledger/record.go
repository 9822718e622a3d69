package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/xraph/wordledger/grant"
	"github.com/xraph/wordledger/id"
	"github.com/xraph/wordledger/types"
)

// SchemaVersion is the version of the persisted record layout.
const SchemaVersion = 1

// ErrCorruptRecord is returned when a persisted record cannot be decoded or
// describes an invalid ledger.
var ErrCorruptRecord = errors.New("wordledger: corrupt ledger record")

// Record is the persisted form of a Ledger. Collections are sorted so that
// two equal ledgers always encode to the same bytes.
type Record struct {
	SchemaVersion         int              `json:"schema_version"`
	UserID                string           `json:"user_id"`
	Revision              string           `json:"revision,omitempty"`
	Version               uint64           `json:"version"`
	VIPGiftIssued         bool             `json:"vip_gift_issued"`
	TotalConsumedLifetime types.Words      `json:"total_consumed_lifetime"`
	Grants                []grant.Grant    `json:"grants"`
	AppliedTransactionIDs []string         `json:"applied_transaction_ids"`
	Collected             []CollectedGrant `json:"collected,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// CollectedGrant is a tombstone entry in a Record.
type CollectedGrant struct {
	ID          string    `json:"id"`
	CollectedAt time.Time `json:"collected_at"`
}

// ToRecord converts l to its persisted form.
func (l Ledger) ToRecord(revision string) Record {
	r := Record{
		SchemaVersion:         SchemaVersion,
		UserID:                l.UserID,
		Revision:              revision,
		Version:               l.Version,
		VIPGiftIssued:         l.VIPGiftIssued,
		TotalConsumedLifetime: l.TotalConsumedLifetime,
		Grants:                l.SortedGrants(),
		AppliedTransactionIDs: make([]string, 0, len(l.AppliedTransactions)),
		CreatedAt:             l.CreatedAt,
		UpdatedAt:             l.UpdatedAt,
	}
	for txID := range l.AppliedTransactions {
		r.AppliedTransactionIDs = append(r.AppliedTransactionIDs, txID)
	}
	sort.Strings(r.AppliedTransactionIDs)

	for gid, at := range l.Collected {
		r.Collected = append(r.Collected, CollectedGrant{ID: gid, CollectedAt: at})
	}
	sort.Slice(r.Collected, func(i, j int) bool { return r.Collected[i].ID < r.Collected[j].ID })
	return r
}

// FromRecord rebuilds a Ledger from its persisted form and validates it.
func FromRecord(r Record) (Ledger, error) {
	if r.SchemaVersion < 1 || r.SchemaVersion > SchemaVersion {
		return Ledger{}, fmt.Errorf("%w: unsupported schema version %d", ErrCorruptRecord, r.SchemaVersion)
	}

	l := Ledger{
		Entity:                types.Entity{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		UserID:                r.UserID,
		Grants:                make(map[string]grant.Grant, len(r.Grants)),
		VIPGiftIssued:         r.VIPGiftIssued,
		AppliedTransactions:   make(map[string]struct{}, len(r.AppliedTransactionIDs)),
		Collected:             make(map[string]time.Time, len(r.Collected)),
		TotalConsumedLifetime: r.TotalConsumedLifetime,
		Version:               r.Version,
	}
	for _, g := range r.Grants {
		if _, dup := l.Grants[g.ID]; dup {
			return Ledger{}, fmt.Errorf("%w: duplicate grant id %q", ErrCorruptRecord, g.ID)
		}
		// Records written before exhaustion was stamped carry no ExhaustedAt.
		if g.Exhausted() && g.ExhaustedAt == nil {
			at := g.CreatedAt
			g.ExhaustedAt = &at
		}
		l.Grants[g.ID] = g
	}
	for _, txID := range r.AppliedTransactionIDs {
		l.AppliedTransactions[txID] = struct{}{}
	}
	for _, c := range r.Collected {
		l.Collected[c.ID] = c.CollectedAt
	}

	if errs := l.Validate(); len(errs) > 0 {
		return Ledger{}, fmt.Errorf("%w: %w", ErrCorruptRecord, errors.Join(errs...))
	}
	return l, nil
}

// Marshal encodes l as a versioned record.
func Marshal(l Ledger, revision string) ([]byte, error) {
	data, err := json.Marshal(l.ToRecord(revision))
	if err != nil {
		return nil, fmt.Errorf("wordledger: encode ledger: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a versioned record into a Ledger. It also returns the
// record's revision, which must be empty or a "rev" TypeID.
func Unmarshal(data []byte) (Ledger, string, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Ledger{}, "", fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	if r.Revision != "" {
		if _, err := id.ParseRevisionID(r.Revision); err != nil {
			return Ledger{}, "", fmt.Errorf("%w: %w", ErrCorruptRecord, err)
		}
	}
	l, err := FromRecord(r)
	if err != nil {
		return Ledger{}, "", err
	}
	return l, r.Revision, nil
}
