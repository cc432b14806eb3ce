package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"rankwatch/internal/models"
)

// appendTransaction inserts a ledger row inside tx.
func appendTransaction(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	meta := t.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	return tx.QueryRow(ctx, `
		INSERT INTO transactions (user_id, type, action, amount, balance_after, metadata)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6)
		RETURNING id, created_at
	`, t.UserID, t.Type, t.Action, t.Amount.String(), t.BalanceAfter.String(), raw).Scan(&t.ID, &t.CreatedAt)
}

// ApplyDebit atomically withdraws amount from a user's balance and appends a
// debit transaction. The balance row is locked for the duration so concurrent
// debits for the same user serialize. Returns ErrInsufficientFunds without
// side effects when the balance does not cover amount.
func (d *DB) ApplyDebit(ctx context.Context, userID uuid.UUID, action string, amount decimal.Decimal, metadata map[string]any) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var raw string
	err = tx.QueryRow(ctx, `SELECT balance::text FROM user_balances WHERE user_id = $1 FOR UPDATE`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInsufficientFunds
	}
	if err != nil {
		return nil, err
	}

	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid stored balance: %w", err)
	}
	if balance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}

	err = tx.QueryRow(ctx, `
		UPDATE user_balances
		SET balance = balance - $2::numeric, total_spent = total_spent + $2::numeric, updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance::text
	`, userID, amount.String()).Scan(&raw)
	if err != nil {
		return nil, err
	}

	t := &models.Transaction{
		UserID:   userID,
		Type:     models.TransactionDebit,
		Action:   action,
		Amount:   amount,
		Metadata: metadata,
	}
	if t.BalanceAfter, err = decimal.NewFromString(raw); err != nil {
		return nil, err
	}
	if err := appendTransaction(ctx, tx, t); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// ApplyCredit atomically adds amount to a user's balance, creating the
// balance row on first credit, and appends a credit transaction.
func (d *DB) ApplyCredit(ctx context.Context, userID uuid.UUID, action string, amount decimal.Decimal, metadata map[string]any) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var raw string
	err = tx.QueryRow(ctx, `
		INSERT INTO user_balances (user_id, balance, total_recharged)
		VALUES ($1, $2::numeric, $2::numeric)
		ON CONFLICT (user_id) DO UPDATE SET
			balance = user_balances.balance + EXCLUDED.balance,
			total_recharged = user_balances.total_recharged + EXCLUDED.total_recharged,
			updated_at = NOW()
		RETURNING balance::text
	`, userID, amount.String()).Scan(&raw)
	if err != nil {
		return nil, err
	}

	t := &models.Transaction{
		UserID:   userID,
		Type:     models.TransactionCredit,
		Action:   action,
		Amount:   amount,
		Metadata: metadata,
	}
	if t.BalanceAfter, err = decimal.NewFromString(raw); err != nil {
		return nil, err
	}
	if err := appendTransaction(ctx, tx, t); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// GetBalance returns the user's balance. Users without a balance row get a
// zero balance rather than an error.
func (d *DB) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	var balance, spent, recharged string
	b := models.UserBalance{UserID: userID}

	err := d.Pool.QueryRow(ctx, `
		SELECT balance::text, total_spent::text, total_recharged::text, notify_email, updated_at
		FROM user_balances WHERE user_id = $1
	`, userID).Scan(&balance, &spent, &recharged, &b.NotifyEmail, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &b, nil
	}
	if err != nil {
		return nil, err
	}

	if b.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, err
	}
	if b.TotalSpent, err = decimal.NewFromString(spent); err != nil {
		return nil, err
	}
	if b.TotalRecharged, err = decimal.NewFromString(recharged); err != nil {
		return nil, err
	}
	return &b, nil
}

// SetNotifyEmail sets the address used for low-balance notifications.
func (d *DB) SetNotifyEmail(ctx context.Context, userID uuid.UUID, email string) error {
	_, err := d.Pool.Exec(ctx, `
		INSERT INTO user_balances (user_id, notify_email) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET notify_email = EXCLUDED.notify_email, updated_at = NOW()
	`, userID, nullIfEmpty(email))
	return err
}

// GetTransaction retrieves a single ledger transaction.
func (d *DB) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	txs, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, ErrTransactionNotFound
	}
	return &txs[0], nil
}

// ListTransactions returns a user's most recent transactions.
func (d *DB) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

const transactionColumns = `id, user_id, type, action, amount::text, balance_after::text, metadata, created_at`

// scanTransactions scans rows selected with transactionColumns.
func scanTransactions(rows pgx.Rows) ([]models.Transaction, error) {
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var amount, after string
		var meta []byte
		var err error
		if err = rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Action, &amount, &after, &meta, &t.CreatedAt); err != nil {
			return nil, err
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if t.BalanceAfter, err = decimal.NewFromString(after); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &t.Metadata); err != nil {
				return nil, err
			}
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
