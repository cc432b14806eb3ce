package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"rankwatch/internal/models"
)

// trackedColumns is the column list for keyword queries joined with projects.
const trackedColumns = `k.id, k.project_id, k.term, k.country, k.device, k.tracking_frequency,
	k.last_auto_check, k.last_live_check, k.correlation_id, k.submitted_at, k.debit_transaction_id,
	k.volume, k.created_at,
	p.user_id, p.domain, p.language`

// scanTracked scans a row into a TrackedKeyword.
func scanTracked(row pgx.Row) (*models.TrackedKeyword, error) {
	var k models.TrackedKeyword
	err := row.Scan(
		&k.ID,
		&k.ProjectID,
		&k.Term,
		&k.Country,
		&k.Device,
		&k.TrackingFrequency,
		&k.LastAutoCheck,
		&k.LastLiveCheck,
		&k.CorrelationID,
		&k.SubmittedAt,
		&k.DebitID,
		&k.Volume,
		&k.CreatedAt,
		&k.UserID,
		&k.ProjectDomain,
		&k.Language,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrKeywordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// scanTrackedRows scans multiple rows into a slice of TrackedKeywords.
func scanTrackedRows(rows pgx.Rows) ([]models.TrackedKeyword, error) {
	defer rows.Close()

	var keywords []models.TrackedKeyword
	for rows.Next() {
		k, err := scanTracked(rows)
		if err != nil {
			return nil, err
		}
		keywords = append(keywords, *k)
	}
	return keywords, rows.Err()
}

// CreateKeyword adds a keyword to a project.
func (d *DB) CreateKeyword(ctx context.Context, k *models.Keyword) error {
	if k.Device == "" {
		k.Device = models.DeviceDesktop
	}
	if k.TrackingFrequency == "" {
		k.TrackingFrequency = models.FrequencyManual
	}

	query := `
		INSERT INTO keywords (project_id, term, country, device, tracking_frequency)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := d.Pool.QueryRow(ctx, query,
		k.ProjectID,
		k.Term,
		strings.ToLower(k.Country),
		k.Device,
		k.TrackingFrequency,
	).Scan(&k.ID, &k.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrDuplicateKeyword
			case "23503":
				return ErrProjectNotFound
			}
		}
		return err
	}
	return nil
}

// GetTrackedKeyword retrieves a keyword with its project fields.
func (d *DB) GetTrackedKeyword(ctx context.Context, id uuid.UUID) (*models.TrackedKeyword, error) {
	query := `SELECT ` + trackedColumns + `
		FROM keywords k JOIN projects p ON p.id = k.project_id
		WHERE k.id = $1`
	return scanTracked(d.Pool.QueryRow(ctx, query, id))
}

// UpdateTrackingFrequency changes a keyword's auto-tracking tier.
func (d *DB) UpdateTrackingFrequency(ctx context.Context, id uuid.UUID, frequency string) error {
	result, err := d.Pool.Exec(ctx, `UPDATE keywords SET tracking_frequency = $1 WHERE id = $2`, frequency, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrKeywordNotFound
	}
	return nil
}

// ClaimKeywords atomically marks idle keywords matching filter with token and
// returns them. Keywords with a correlation ID or an unexpired claim are
// skipped; claims older than staleBefore are taken over.
func (d *DB) ClaimKeywords(ctx context.Context, filter models.KeywordFilter, token uuid.UUID, staleBefore time.Time) ([]models.TrackedKeyword, error) {
	var ids []uuid.UUID
	if len(filter.IDs) > 0 {
		ids = filter.IDs
	}

	query := `
		WITH claimed AS (
			UPDATE keywords k SET claim_token = $1, claimed_at = NOW()
			FROM projects p
			WHERE p.id = k.project_id
			  AND k.correlation_id IS NULL
			  AND (k.claim_token IS NULL OR k.claimed_at < $2)
			  AND ($3::uuid IS NULL OR p.user_id = $3)
			  AND ($4::uuid IS NULL OR k.project_id = $4)
			  AND ($5::uuid[] IS NULL OR k.id = ANY($5))
			RETURNING k.*
		)
		SELECT ` + trackedColumns + `
		FROM claimed k JOIN projects p ON p.id = k.project_id
		ORDER BY p.user_id, k.created_at
	`
	rows, err := d.Pool.Query(ctx, query, token, staleBefore, filter.UserID, filter.ProjectID, ids)
	if err != nil {
		return nil, err
	}
	return scanTrackedRows(rows)
}

// ReleaseClaims clears the claim on keywords still holding token.
func (d *DB) ReleaseClaims(ctx context.Context, token uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := d.Pool.Exec(ctx, `
		UPDATE keywords SET claim_token = NULL, claimed_at = NULL
		WHERE claim_token = $1 AND id = ANY($2)
	`, token, ids)
	return err
}

// ReleaseStaleClaims clears claims older than before that never obtained a
// correlation ID. Returns the number of keywords released.
func (d *DB) ReleaseStaleClaims(ctx context.Context, before time.Time) (int64, error) {
	result, err := d.Pool.Exec(ctx, `
		UPDATE keywords SET claim_token = NULL, claimed_at = NULL
		WHERE claim_token IS NOT NULL AND correlation_id IS NULL AND claimed_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// MarkSubmitted records the provider correlation ID and funding debit for a
// claimed keyword and clears the claim. autoCheck also stamps last_auto_check.
func (d *DB) MarkSubmitted(ctx context.Context, token, keywordID uuid.UUID, correlationID string, debitID uuid.UUID, submittedAt time.Time, autoCheck bool) error {
	result, err := d.Pool.Exec(ctx, `
		UPDATE keywords
		SET correlation_id = $1,
			submitted_at = $2,
			last_auto_check = CASE WHEN $3 THEN $2 ELSE last_auto_check END,
			debit_transaction_id = $6,
			claim_token = NULL,
			claimed_at = NULL
		WHERE id = $4 AND claim_token = $5 AND correlation_id IS NULL
	`, correlationID, submittedAt, autoCheck, keywordID, token, debitID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrKeywordNotClaimed
	}
	return nil
}

// ListPendingKeywords returns keywords with an in-flight provider task,
// oldest submission first.
func (d *DB) ListPendingKeywords(ctx context.Context, limit int) ([]models.TrackedKeyword, error) {
	query := `SELECT ` + trackedColumns + `
		FROM keywords k JOIN projects p ON p.id = k.project_id
		WHERE k.correlation_id IS NOT NULL
		ORDER BY k.submitted_at ASC NULLS FIRST
		LIMIT $1`
	rows, err := d.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return scanTrackedRows(rows)
}

// CountPendingKeywords returns the number of in-flight tasks grouped by
// tracking tier.
func (d *DB) CountPendingKeywords(ctx context.Context) (map[string]int, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT tracking_frequency, COUNT(*) FROM keywords
		WHERE correlation_id IS NOT NULL
		GROUP BY tracking_frequency
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tier string
		var count int
		if err := rows.Scan(&tier, &count); err != nil {
			return nil, err
		}
		counts[tier] = count
	}
	return counts, rows.Err()
}

// ListDueKeywords returns idle auto-tracked keywords whose last auto check is
// missing or at least one tier interval old at now.
func (d *DB) ListDueKeywords(ctx context.Context, now time.Time, intervals map[string]time.Duration) ([]models.TrackedKeyword, error) {
	cutoff := func(tier string) time.Time {
		iv, ok := intervals[tier]
		if !ok {
			iv = models.DefaultTierIntervals[tier]
		}
		return now.Add(-iv)
	}

	query := `SELECT ` + trackedColumns + `
		FROM keywords k JOIN projects p ON p.id = k.project_id
		WHERE k.tracking_frequency <> 'manual'
		  AND k.correlation_id IS NULL
		  AND (
			k.last_auto_check IS NULL
			OR (k.tracking_frequency = 'daily' AND k.last_auto_check <= $1)
			OR (k.tracking_frequency = 'every_2_days' AND k.last_auto_check <= $2)
			OR (k.tracking_frequency = 'weekly' AND k.last_auto_check <= $3)
		  )
		ORDER BY p.user_id, k.last_auto_check ASC NULLS FIRST`
	rows, err := d.Pool.Query(ctx, query,
		cutoff(models.FrequencyDaily),
		cutoff(models.FrequencyEvery2Days),
		cutoff(models.FrequencyWeekly),
	)
	if err != nil {
		return nil, err
	}
	return scanTrackedRows(rows)
}

// SetKeywordVolume caches the search volume for a keyword. An existing value
// is never overwritten; stored reports whether this call wrote it.
func (d *DB) SetKeywordVolume(ctx context.Context, id uuid.UUID, volume int64) (bool, error) {
	tag, err := d.Pool.Exec(ctx, `UPDATE keywords SET volume = $1 WHERE id = $2 AND volume IS NULL`, volume, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
