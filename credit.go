package wordledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/wordledger/event"
	"github.com/xraph/wordledger/grant"
	"github.com/xraph/wordledger/ledger"
	"github.com/xraph/wordledger/types"
)

// CreditResult reports the outcome of a credit operation. Credited is false
// when the credit had already been applied; that is a success.
type CreditResult struct {
	GrantID  string
	Credited bool
	Balance  ledger.Balance
}

// PurchaseCredit is one purchase or restore delivery.
type PurchaseCredit struct {
	TransactionID string
	ProductID     string
	Words         types.Words
	ValidDays     int
}

// CreditVIPGift issues the one-time VIP gift. words == 0 uses the configured
// gift size; expiresAt nil means the gift never expires. Once issued, later
// calls are no-ops.
func (e *Engine) CreditVIPGift(ctx context.Context, words types.Words, expiresAt *time.Time) (CreditResult, error) {
	if words.IsNegative() {
		return CreditResult{}, ValidationError{Field: "words", Message: "must be positive"}
	}
	if words.IsZero() {
		words = e.vipGiftWords
	}

	out, err := e.submit(ctx, "credit_vip_gift", func(cur ledger.Ledger, now time.Time) (outcome, error) {
		if cur.VIPGiftIssued {
			e.logger.Debug("vip gift already issued", "user_id", e.userID)
			return outcome{value: cur.Balance(now)}, nil
		}
		g, err := grant.New(grant.Params{
			ID:        grant.VIPGiftID,
			Kind:      grant.KindVIPGift,
			Words:     words,
			CreatedAt: now,
			ExpiresAt: expiresAt,
		})
		if err != nil {
			return outcome{}, err
		}
		next, err := cur.WithGrant(g)
		if err != nil {
			return outcome{}, err
		}
		next.VIPGiftIssued = true
		next = next.Bump(now)

		return outcome{
			next:    next,
			changed: true,
			value:   next.Balance(now),
			events: []event.Event{
				event.VIPGiftIssued{Header: e.header(now), Words: words, ExpiresAt: g.ExpiresAt},
				e.balanceChanged(next, now),
			},
		}, nil
	})
	if err != nil {
		return CreditResult{}, err
	}
	bal, _ := out.value.(ledger.Balance)
	return CreditResult{GrantID: grant.VIPGiftID, Credited: out.changed, Balance: bal}, nil
}

// CreditPurchase credits words from a completed purchase. Duplicate
// deliveries of the same transaction id are absorbed: the ledger is left
// unchanged and the call succeeds. validDays <= 0 uses the default validity.
func (e *Engine) CreditPurchase(ctx context.Context, transactionID string, words types.Words, validDays int) (CreditResult, error) {
	return e.ApplyPurchase(ctx, PurchaseCredit{
		TransactionID: transactionID,
		Words:         words,
		ValidDays:     validDays,
	})
}

// ApplyPurchase is CreditPurchase with the product id carried into events.
func (e *Engine) ApplyPurchase(ctx context.Context, p PurchaseCredit) (CreditResult, error) {
	txID := strings.TrimSpace(p.TransactionID)
	return e.credit(ctx, "credit_purchase", txID, grant.KindPurchased, p.Words, p.ValidDays,
		func(h event.Header, g grant.Grant) event.Event {
			return event.PurchaseCredited{
				Header:        h,
				TransactionID: txID,
				ProductID:     p.ProductID,
				Words:         g.GrantedWords,
				ExpiresAt:     g.ExpiresAt,
			}
		})
}

// AwardBonusWords credits a promotional or ad-reward grant under awardID,
// with the same idempotency contract as CreditPurchase. awardID must be the
// stable id of the award event so a redelivered callback credits once.
func (e *Engine) AwardBonusWords(ctx context.Context, awardID string, words types.Words, validDays int) (CreditResult, error) {
	awardID = strings.TrimSpace(awardID)
	return e.credit(ctx, "award_bonus_words", awardID, grant.KindReward, words, validDays,
		func(h event.Header, g grant.Grant) event.Event {
			return event.RewardAwarded{
				Header:    h,
				AwardID:   awardID,
				Words:     g.GrantedWords,
				ExpiresAt: g.ExpiresAt,
			}
		})
}

// credit applies an idempotent, key-addressed grant.
func (e *Engine) credit(
	ctx context.Context,
	op, key string,
	kind grant.Kind,
	words types.Words,
	validDays int,
	announce func(event.Header, grant.Grant) event.Event,
) (CreditResult, error) {
	if key == "" {
		return CreditResult{}, fmt.Errorf("%w: %s: id must not be empty", ErrInvalidGrant, op)
	}
	if !words.IsPositive() {
		return CreditResult{}, ValidationError{Field: "words", Message: fmt.Sprintf("must be positive, got %d", words)}
	}
	if validDays <= 0 {
		validDays = e.defaultValidDays
	}

	out, err := e.submit(ctx, op, func(cur ledger.Ledger, now time.Time) (outcome, error) {
		if cur.Applied(key) {
			e.logger.Debug("credit already applied",
				"user_id", e.userID,
				"op", op,
				"transaction_id", key,
			)
			return outcome{value: cur.Balance(now)}, nil
		}
		if _, taken := cur.Grants[key]; taken || key == grant.VIPGiftID {
			return outcome{}, fmt.Errorf("%w: grant id %q already in use", ErrInvalidGrant, key)
		}
		if _, gone := cur.Collected[key]; gone {
			return outcome{}, fmt.Errorf("%w: grant id %q was collected", ErrInvalidGrant, key)
		}

		g, err := grant.New(grant.Params{
			ID:        key,
			Kind:      kind,
			Words:     words,
			CreatedAt: now,
			ExpiresAt: grant.ExpiresAfter(now, validDays),
		})
		if err != nil {
			return outcome{}, err
		}
		next, err := cur.WithGrant(g)
		if err != nil {
			return outcome{}, err
		}
		next.AppliedTransactions[key] = struct{}{}
		next = next.Bump(now)

		e.logger.Debug("credit applied",
			"user_id", e.userID,
			"op", op,
			"transaction_id", key,
			"words", words,
			"version", next.Version,
		)
		return outcome{
			next:    next,
			changed: true,
			value:   next.Balance(now),
			events:  []event.Event{announce(e.header(now), g), e.balanceChanged(next, now)},
		}, nil
	})
	if err != nil {
		return CreditResult{}, err
	}
	bal, _ := out.value.(ledger.Balance)
	return CreditResult{GrantID: key, Credited: out.changed, Balance: bal}, nil
}
