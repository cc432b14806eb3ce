package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rankwatch/internal/models"
)

// insertPosition appends a position snapshot inside tx.
func insertPosition(ctx context.Context, tx pgx.Tx, pos *models.KeywordPosition) error {
	competitors := pos.Competitors
	if competitors == nil {
		competitors = []string{}
	}
	return tx.QueryRow(ctx, `
		INSERT INTO keyword_positions (keyword_id, position, url, competitors, source, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, pos.KeywordID, pos.Position, pos.URL, competitors, pos.Source, pos.CheckedAt).Scan(&pos.ID)
}

// ResolveKeyword stores a position snapshot and clears the keyword's
// correlation ID in one transaction. The clear is guarded by correlationID so
// overlapping sync runs record the result exactly once; resolved is false
// when another run got there first.
func (d *DB) ResolveKeyword(ctx context.Context, keywordID uuid.UUID, correlationID string, pos *models.KeywordPosition) (resolved bool, err error) {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE keywords SET correlation_id = NULL
		WHERE id = $1 AND correlation_id = $2
	`, keywordID, correlationID)
	if err != nil {
		return false, err
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	pos.KeywordID = keywordID
	if err := insertPosition(ctx, tx, pos); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// AbandonTask clears a correlation ID without recording a position. Used when
// the provider reports the task as permanently failed.
func (d *DB) AbandonTask(ctx context.Context, keywordID uuid.UUID, correlationID string) (bool, error) {
	result, err := d.Pool.Exec(ctx, `
		UPDATE keywords SET correlation_id = NULL
		WHERE id = $1 AND correlation_id = $2
	`, keywordID, correlationID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// RecordLiveCheck stores a live position, stamps last_live_check and releases
// the claim held by token.
func (d *DB) RecordLiveCheck(ctx context.Context, token, keywordID uuid.UUID, pos *models.KeywordPosition) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE keywords SET last_live_check = $1, claim_token = NULL, claimed_at = NULL
		WHERE id = $2 AND claim_token = $3
	`, pos.CheckedAt, keywordID, token)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrKeywordNotClaimed
	}

	pos.KeywordID = keywordID
	if err := insertPosition(ctx, tx, pos); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListPositions returns the most recent position snapshots for a keyword.
func (d *DB) ListPositions(ctx context.Context, keywordID uuid.UUID, limit int) ([]models.KeywordPosition, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT id, keyword_id, position, url, competitors, source, checked_at
		FROM keyword_positions
		WHERE keyword_id = $1
		ORDER BY checked_at DESC
		LIMIT $2
	`, keywordID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []models.KeywordPosition
	for rows.Next() {
		var p models.KeywordPosition
		var checkedAt time.Time
		if err := rows.Scan(&p.ID, &p.KeywordID, &p.Position, &p.URL, &p.Competitors, &p.Source, &checkedAt); err != nil {
			return nil, err
		}
		p.CheckedAt = checkedAt
		positions = append(positions, p)
	}
	return positions, rows.Err()
}
