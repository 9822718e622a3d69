package wordledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/wordledger/allocator"
	"github.com/xraph/wordledger/event"
	"github.com/xraph/wordledger/ledger"
	"github.com/xraph/wordledger/types"
)

// ConsumeResult describes a successful draw-down.
type ConsumeResult struct {
	Words   types.Words
	ByGrant map[string]types.Words
	Balance ledger.Balance
}

// Consume draws w words from the active grants, soonest-expiring first. It
// either consumes all of w or nothing; a short balance returns an
// *InsufficientWordsError that matches ErrInsufficientWords.
func (e *Engine) Consume(ctx context.Context, w types.Words) (ConsumeResult, error) {
	if !w.IsPositive() {
		return ConsumeResult{}, ValidationError{Field: "words", Message: fmt.Sprintf("must be positive, got %d", w)}
	}

	out, err := e.submit(ctx, "consume", func(cur ledger.Ledger, now time.Time) (outcome, error) {
		draw, err := allocator.Plan(cur, w, now)
		if err != nil {
			var short *allocator.InsufficientError
			if errors.As(err, &short) {
				e.logger.Debug("insufficient words",
					"user_id", e.userID,
					"requested", short.Requested,
					"available", short.Available,
				)
				return outcome{events: []event.Event{event.InsufficientBalance{
					Header:    e.header(now),
					Requested: short.Requested,
					Available: short.Available,
				}}}, err
			}
			return outcome{}, err
		}

		next, err := draw.Apply(cur)
		if err != nil {
			return outcome{}, fmt.Errorf("%w: %w", ErrIntegrity, err)
		}
		next = next.Bump(now)

		byGrant := draw.Deltas()
		return outcome{
			next:    next,
			changed: true,
			value: ConsumeResult{
				Words:   w,
				ByGrant: byGrant,
				Balance: next.Balance(now),
			},
			events: []event.Event{
				event.WordsConsumed{Header: e.header(now), Words: w, ByGrant: byGrant},
				e.balanceChanged(next, now),
			},
		}, nil
	})
	if err != nil {
		return ConsumeResult{}, err
	}
	res, _ := out.value.(ConsumeResult)
	return res, nil
}

// ConsumeText charges one word per character of text. Empty text costs
// nothing and does not touch the ledger.
func (e *Engine) ConsumeText(ctx context.Context, text string) (ConsumeResult, error) {
	w := types.CountWords(text)
	if w.IsZero() {
		return ConsumeResult{Balance: e.Balance()}, nil
	}
	return e.Consume(ctx, w)
}

// ExpireAndCollect removes grants that expired, or were exhausted, longer
// than the grace window ago, and returns their ids. Applied transaction ids
// and the lifetime counter are never touched.
func (e *Engine) ExpireAndCollect(ctx context.Context) ([]string, error) {
	out, err := e.submit(ctx, "expire_and_collect", func(cur ledger.Ledger, now time.Time) (outcome, error) {
		next, removed := allocator.Sweep(cur, now, e.graceWindow)
		if len(removed) == 0 {
			return outcome{}, nil
		}
		next = next.Bump(now)

		e.logger.Info("grants collected",
			"user_id", e.userID,
			"grants", removed,
			"version", next.Version,
		)
		return outcome{
			next:    next,
			changed: true,
			value:   removed,
			events: []event.Event{
				event.GrantsCollected{Header: e.header(now), GrantIDs: removed},
				e.balanceChanged(next, now),
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	removed, _ := out.value.([]string)
	return removed, nil
}
