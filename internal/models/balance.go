package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TransactionCredit = "credit"
	TransactionDebit  = "debit"
)

// Ledger actions
const (
	ActionRankCheck         = "rank_check"
	ActionAutoTrackingCheck = "auto_tracking_check"
	ActionLiveCheck         = "live_check"
	ActionVolumeLookup      = "volume_lookup"
	ActionRefund            = "refund"
	ActionRecharge          = "recharge"
	ActionCoupon            = "coupon"
)

// UserBalance is the prepaid balance singleton for a user.
type UserBalance struct {
	UserID         uuid.UUID       `json:"user_id"`
	Balance        decimal.Decimal `json:"balance"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	TotalRecharged decimal.Decimal `json:"total_recharged"`
	NotifyEmail    *string         `json:"notify_email,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Covers reports whether the balance can pay amount.
func (b *UserBalance) Covers(amount decimal.Decimal) bool {
	return b.Balance.GreaterThanOrEqual(amount)
}

// Transaction is an immutable ledger entry. Amount is always positive; Type
// carries the sign.
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         string          `json:"type"`
	Action       string          `json:"action"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Signed returns the amount with the sign implied by the transaction type.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Type == TransactionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}
