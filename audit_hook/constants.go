package audithook

// Action constants for audit events.
const (
	// Credit actions
	ActionPurchaseCredited = "purchase.credited"
	ActionRewardAwarded    = "reward.awarded"
	ActionVIPGiftIssued    = "vip_gift.issued"

	// Consumption actions
	ActionWordsConsumed       = "words.consumed"
	ActionInsufficientBalance = "balance.insufficient"

	// Maintenance actions
	ActionGrantsCollected = "grants.collected"

	// Sync actions
	ActionLedgerMerged      = "ledger.merged"
	ActionIntegrityConflict = "integrity.conflict"

	// Storage actions
	ActionStoreError = "store.error"
)

// Resource constants for audit events.
const (
	ResourceGrant  = "grant"
	ResourceLedger = "ledger"
	ResourceStore  = "store"
)

// Category constants for audit events.
const (
	CategoryCredit      = "credit"
	CategoryConsumption = "consumption"
	CategoryMaintenance = "maintenance"
	CategorySync        = "sync"
	CategoryStorage     = "storage"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
