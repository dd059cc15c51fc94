package domain

import "time"

// TransactionType classifies a credit ledger entry.
type TransactionType string

const (
	TransactionAdd    TransactionType = "ADD"
	TransactionRemove TransactionType = "REMOVE"
	TransactionUsage  TransactionType = "USAGE"
	TransactionRefund TransactionType = "REFUND"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionAdd, TransactionRemove, TransactionUsage, TransactionRefund:
		return true
	}
	return false
}

// Sign returns +1 for types that increase the remaining balance and -1 for
// types that decrease it.
func (t TransactionType) Sign() int64 {
	switch t {
	case TransactionAdd, TransactionRefund:
		return 1
	default:
		return -1
	}
}

// SystemActor is the actor ID recorded on system-generated entries
// (USAGE billing, REFUND, plan-change adjustments).
const SystemActor = "system"

// OveragePolicy controls whether USAGE debits may drive the balance negative.
type OveragePolicy string

const (
	// OverageBlock rejects USAGE debits that would make the balance negative.
	OverageBlock OveragePolicy = "block"
	// OverageAllow lets USAGE debits accrue as debt. Operator REMOVE entries
	// are still blocked below zero regardless of policy.
	OverageAllow OveragePolicy = "allow"
)

// CreditTransaction is an immutable, append-only ledger entry. Entries are
// never edited or deleted; corrections are compensating entries (REFUND).
type CreditTransaction struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"accountId"`
	Type           TransactionType `json:"type"`
	Amount         int64           `json:"amount"` // always positive; Type carries the sign
	Reason         string          `json:"reason"`
	ActorID        string          `json:"actorId"`
	EndpointID     *string         `json:"endpointId,omitempty"`
	BalanceAfter   int64           `json:"balanceAfter"`
	IdempotencyKey *string         `json:"-"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// SignedAmount returns the amount with the sign implied by the type.
func (t *CreditTransaction) SignedAmount() int64 {
	return t.Type.Sign() * t.Amount
}

// ReplayBalance applies entries in order and returns the resulting balance,
// starting from zero. For a well-formed ledger this equals the account's
// materialized creditsRemaining.
func ReplayBalance(entries []*CreditTransaction) int64 {
	var balance int64
	for _, e := range entries {
		balance += e.SignedAmount()
	}
	return balance
}

// AdjustCreditsRequest is the validated input for admin credit adjustments.
// A reason is mandatory for operator-initiated ADD/REMOVE.
type AdjustCreditsRequest struct {
	AccountID string `json:"accountId" validate:"required"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"required,min=3,max=500"`
}

// HistoryFilter narrows a ledger history query.
type HistoryFilter struct {
	Type   TransactionType
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// DailyUsagePoint is one calendar day of usage for charting. Days with no
// activity are emitted with zero values so charts have no gaps.
type DailyUsagePoint struct {
	Date            string `json:"date"` // YYYY-MM-DD, UTC
	CreditsConsumed int64  `json:"creditsConsumed"`
	RequestCount    int64  `json:"requestCount"`
}

// EndpointUsage is the per-endpoint rollup of USAGE entries.
type EndpointUsage struct {
	Endpoint          string  `json:"endpoint"`
	Credits           int64   `json:"credits"`
	Requests          int64   `json:"requests"`
	PercentageOfTotal float64 `json:"percentageOfTotal"`
}

// BalanceReconciliation compares the materialized balance with a full
// ledger replay.
type BalanceReconciliation struct {
	AccountID  string `json:"accountId"`
	Cached     int64  `json:"cached"`
	Replayed   int64  `json:"replayed"`
	Consistent bool   `json:"consistent"`
}

// LedgerEvent is broadcast to the admin activity feed on every append.
type LedgerEvent struct {
	AccountID    string          `json:"accountId"`
	Type         TransactionType `json:"type"`
	Amount       int64           `json:"amount"`
	BalanceAfter int64           `json:"balanceAfter"`
	Reason       string          `json:"reason,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}
