// Package billing is the balance ledger that funds rank checks. Every debit and
// credit is applied atomically per user by the underlying store and recorded
// as an immutable transaction.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rankwatch/internal/db"
	"rankwatch/internal/metrics"
	"rankwatch/internal/models"
)

// Re-exported so callers need not import the store package.
var (
	ErrInsufficientFunds = db.ErrInsufficientFunds
	ErrInvalidAmount     = db.ErrInvalidAmount
)

// Store is the persistence the ledger needs. Implementations must make
// ApplyDebit and ApplyCredit atomic per user.
type Store interface {
	ApplyDebit(ctx context.Context, userID uuid.UUID, action string, amount decimal.Decimal, metadata map[string]any) (*models.Transaction, error)
	ApplyCredit(ctx context.Context, userID uuid.UUID, action string, amount decimal.Decimal, metadata map[string]any) (*models.Transaction, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error)
}

// Ledger debits and credits user balances.
type Ledger struct {
	store Store
	log   *slog.Logger
}

// New creates a ledger over store.
func New(store Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, log: logger.With("component", "ledger")}
}

// Debit withdraws amount for action. Fails with ErrInsufficientFunds and no
// side effects when the balance does not cover it.
func (l *Ledger) Debit(ctx context.Context, userID uuid.UUID, action string, amount decimal.Decimal, metadata map[string]any) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	t, err := l.store.ApplyDebit(ctx, userID, action, amount, metadata)
	if err != nil {
		if !errors.Is(err, ErrInsufficientFunds) {
			l.log.Error("debit failed", "user_id", userID, "action", action, "amount", amount.String(), "error", err)
		}
		return nil, err
	}

	metrics.RecordTransaction(t)
	l.log.Debug("debited", "user_id", userID, "action", action, "amount", amount.String(), "balance_after", t.BalanceAfter.String())
	return t, nil
}

// Credit adds amount for action (recharge, refund, coupon).
func (l *Ledger) Credit(ctx context.Context, userID uuid.UUID, action string, amount decimal.Decimal, metadata map[string]any) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	t, err := l.store.ApplyCredit(ctx, userID, action, amount, metadata)
	if err != nil {
		l.log.Error("credit failed", "user_id", userID, "action", action, "amount", amount.String(), "error", err)
		return nil, err
	}

	metrics.RecordTransaction(t)
	l.log.Info("credited", "user_id", userID, "action", action, "amount", amount.String(), "balance_after", t.BalanceAfter.String())
	return t, nil
}

// Refund compensates a debit in full. extra is merged into the refund
// metadata.
func (l *Ledger) Refund(ctx context.Context, debit *models.Transaction, reason string, extra map[string]any) (*models.Transaction, error) {
	if debit == nil || debit.Type != models.TransactionDebit {
		return nil, fmt.Errorf("refund requires a debit transaction")
	}

	meta := map[string]any{
		"refunded_transaction_id": debit.ID.String(),
		"refunded_action":         debit.Action,
		"reason":                  reason,
	}
	for _, key := range []string{"keyword_id", "correlation_id"} {
		if v, ok := debit.Metadata[key]; ok {
			meta[key] = v
		}
	}
	for k, v := range extra {
		meta[k] = v
	}

	return l.Credit(ctx, debit.UserID, models.ActionRefund, debit.Amount, meta)
}

// RefundTransaction loads the debit identified by id and refunds it.
func (l *Ledger) RefundTransaction(ctx context.Context, id uuid.UUID, reason string, extra map[string]any) (*models.Transaction, error) {
	debit, err := l.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load debit %s: %w", id, err)
	}
	return l.Refund(ctx, debit, reason, extra)
}

// Balance returns the user's current balance.
func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	return l.store.GetBalance(ctx, userID)
}

// Transactions returns the user's most recent transactions.
func (l *Ledger) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return l.store.ListTransactions(ctx, userID, limit)
}
