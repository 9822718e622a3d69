// Package purchase adapts purchase, restore and reward completion
// callbacks from the payment and ad layers into engine credits.
package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xraph/wordledger"
	"github.com/xraph/wordledger/types"
)

// Event is a purchase or restore completion. WordsGranted and ValidDays
// may be zero, in which case they come from the catalog.
type Event struct {
	TransactionID string      `json:"transactionId"`
	ProductID     string      `json:"productId"`
	WordsGranted  types.Words `json:"wordsGranted"`
	ValidDays     int         `json:"validDays"`
}

// RewardEvent is an ad-reward or promotional award.
type RewardEvent struct {
	AwardID   string      `json:"awardId"`
	Words     types.Words `json:"words"`
	ValidDays int         `json:"validDays"`
}

// DecodeEvent parses a JSON purchase callback payload.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, wordledger.ValidationError{Field: "payload", Message: err.Error()}
	}
	return ev, nil
}

// Crediter is the part of the engine the bridge drives.
type Crediter interface {
	ApplyPurchase(ctx context.Context, p wordledger.PurchaseCredit) (wordledger.CreditResult, error)
	AwardBonusWords(ctx context.Context, awardID string, words types.Words, validDays int) (wordledger.CreditResult, error)
}

// Bridge turns completion callbacks into credits. It never initiates a
// payment.
type Bridge struct {
	engine  Crediter
	catalog *Catalog
	logger  *slog.Logger
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithCatalog replaces the default catalog.
func WithCatalog(c *Catalog) BridgeOption {
	return func(b *Bridge) {
		if c != nil {
			b.catalog = c
		}
	}
}

// WithBridgeLogger sets the logger.
func WithBridgeLogger(l *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBridge creates a bridge crediting engine.
func NewBridge(engine Crediter, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		engine:  engine,
		catalog: DefaultCatalog(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Catalog returns the product catalog in use.
func (b *Bridge) Catalog() *Catalog { return b.catalog }

// HandlePurchase credits one completed purchase. Repeated deliveries of
// the same transaction succeed without crediting again.
func (b *Bridge) HandlePurchase(ctx context.Context, ev Event) (wordledger.CreditResult, error) {
	credit, err := b.resolve(ev)
	if err != nil {
		return wordledger.CreditResult{}, err
	}
	res, err := b.engine.ApplyPurchase(ctx, credit)
	if err != nil {
		b.logger.Warn("purchase credit failed",
			"transaction_id", credit.TransactionID,
			"product_id", credit.ProductID,
			"error", err,
		)
		return res, err
	}
	b.logger.Debug("purchase handled",
		"transaction_id", credit.TransactionID,
		"product_id", credit.ProductID,
		"words", credit.Words,
		"credited", res.Credited,
	)
	return res, nil
}

func (b *Bridge) resolve(ev Event) (wordledger.PurchaseCredit, error) {
	credit := wordledger.PurchaseCredit{
		TransactionID: strings.TrimSpace(ev.TransactionID),
		ProductID:     strings.TrimSpace(ev.ProductID),
		Words:         ev.WordsGranted,
		ValidDays:     ev.ValidDays,
	}
	p, known := b.catalog.Lookup(credit.ProductID)
	switch {
	case credit.Words.IsZero() && !known:
		return credit, fmt.Errorf("%w: %q", wordledger.ErrUnknownProduct, credit.ProductID)
	case credit.Words.IsZero():
		credit.Words = p.Words
	case known && credit.Words != p.Words:
		// The event amount wins over the catalog.
		b.logger.Warn("purchase amount differs from catalog",
			"transaction_id", credit.TransactionID,
			"product_id", credit.ProductID,
			"event_words", credit.Words,
			"catalog_words", p.Words,
		)
	}
	if credit.ValidDays <= 0 && known {
		credit.ValidDays = p.ValidDays
	}
	return credit, nil
}

// RestoreReport summarizes a restore batch.
type RestoreReport struct {
	Credited       []string
	AlreadyApplied []string
	Failed         map[string]error
}

// HandleRestore credits a batch of restored transactions. Every event is
// attempted; failures are collected and returned together.
func (b *Bridge) HandleRestore(ctx context.Context, events []Event) (RestoreReport, error) {
	report := RestoreReport{Failed: make(map[string]error)}
	var errs wordledger.MultiError

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			errs.Add(err)
			break
		}
		res, err := b.HandlePurchase(ctx, ev)
		switch {
		case err != nil:
			report.Failed[ev.TransactionID] = err
			errs.Add(fmt.Errorf("restore %q: %w", ev.TransactionID, err))
		case res.Credited:
			report.Credited = append(report.Credited, res.GrantID)
		default:
			report.AlreadyApplied = append(report.AlreadyApplied, res.GrantID)
		}
	}

	b.logger.Info("restore handled",
		"events", len(events),
		"credited", len(report.Credited),
		"already_applied", len(report.AlreadyApplied),
		"failed", len(report.Failed),
	)
	return report, errs.ErrorOrNil()
}

// HandleReward credits an ad-reward or promotional award.
func (b *Bridge) HandleReward(ctx context.Context, ev RewardEvent) (wordledger.CreditResult, error) {
	if !ev.Words.IsPositive() {
		return wordledger.CreditResult{}, wordledger.ValidationError{Field: "words", Message: "reward must grant words"}
	}
	res, err := b.engine.AwardBonusWords(ctx, ev.AwardID, ev.Words, ev.ValidDays)
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Warn("reward credit failed", "award_id", ev.AwardID, "error", err)
	}
	return res, err
}
