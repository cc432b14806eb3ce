package db

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"rankwatch/internal/models"
)

// staticRows serves fixed rows through the pgx.Rows interface.
type staticRows struct {
	rows   [][]any
	i      int
	closed bool
}

func (r *staticRows) Close()                                       { r.closed = true }
func (r *staticRows) Err() error                                   { return nil }
func (r *staticRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *staticRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *staticRows) Values() ([]any, error)                       { return r.rows[r.i-1], nil }
func (r *staticRows) RawValues() [][]byte                          { return nil }
func (r *staticRows) Conn() *pgx.Conn                              { return nil }

func (r *staticRows) Next() bool {
	if r.i >= len(r.rows) {
		return false
	}
	r.i++
	return true
}

func (r *staticRows) Scan(dest ...any) error {
	row := r.rows[r.i-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *uuid.UUID:
			*p = row[i].(uuid.UUID)
		case *string:
			*p = row[i].(string)
		case *[]byte:
			*p = row[i].([]byte)
		case *time.Time:
			*p = row[i].(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

func TestScanTransactions(t *testing.T) {
	created := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	id, user := uuid.New(), uuid.New()

	rows := &staticRows{rows: [][]any{
		{id, user, models.TransactionDebit, models.ActionLiveCheck, "0.0500", "9.9500", []byte(`{"keyword_id":"k1"}`), created},
		{uuid.New(), user, models.TransactionCredit, models.ActionRecharge, "10.0000", "10.0000", []byte(nil), created},
	}}

	txs, err := scanTransactions(rows)
	if err != nil {
		t.Fatalf("scanTransactions() error = %v", err)
	}
	if !rows.closed {
		t.Error("rows were not closed")
	}
	if len(txs) != 2 {
		t.Fatalf("scanTransactions() returned %d transactions, want 2", len(txs))
	}

	first := txs[0]
	if first.ID != id || first.UserID != user || first.Action != models.ActionLiveCheck {
		t.Errorf("first = %+v, want id %s action %s", first, id, models.ActionLiveCheck)
	}
	if !first.Amount.Equal(dec("0.05")) || !first.BalanceAfter.Equal(dec("9.95")) {
		t.Errorf("first amounts = %s / %s, want 0.05 / 9.95", first.Amount, first.BalanceAfter)
	}
	if first.Metadata["keyword_id"] != "k1" {
		t.Errorf("first.Metadata = %v, want keyword_id k1", first.Metadata)
	}
	if txs[1].Metadata != nil {
		t.Errorf("second.Metadata = %v, want nil", txs[1].Metadata)
	}
}

func TestScanTransactions_BadAmount(t *testing.T) {
	rows := &staticRows{rows: [][]any{
		{uuid.New(), uuid.New(), models.TransactionDebit, models.ActionLiveCheck, "abc", "1.00", []byte(nil), time.Now()},
	}}
	if _, err := scanTransactions(rows); err == nil {
		t.Error("scanTransactions() error = nil, want parse error")
	}
}
