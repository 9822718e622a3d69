package wordledger

import (
	"github.com/xraph/wordledger/grant"
	"github.com/xraph/wordledger/ledger"
	"github.com/xraph/wordledger/reconcile"
	"github.com/xraph/wordledger/types"
)

// Re-export common types for convenience so users don't have to import the
// value packages.

// Words is re-exported from types package.
type Words = types.Words

// Entity is re-exported from types package.
type Entity = types.Entity

// Ledger is re-exported from ledger package.
type Ledger = ledger.Ledger

// Balance is re-exported from ledger package.
type Balance = ledger.Balance

// Grant is re-exported from grant package.
type Grant = grant.Grant

// Conflict is re-exported from reconcile package.
type Conflict = reconcile.Conflict

// Re-export word constants and helpers.
const (
	Words500K = types.Words500K
	Words2M   = types.Words2M
	Words6M   = types.Words6M
)

var (
	CountWords = types.CountWords
	Sum        = types.Sum
)

// Re-export grant kinds.
const (
	KindVIPGift   = grant.KindVIPGift
	KindPurchased = grant.KindPurchased
	KindReward    = grant.KindReward
)
