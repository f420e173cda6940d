package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdantlabs/greenbond/internal/domain"
)

// SubmissionStore implements domain.SubmissionStore, the append-only audit
// trail of final submission outcomes. Rows past the retention window are
// archived to blob storage and deleted by the archiver.
type SubmissionStore struct {
	pool *pgxpool.Pool
}

// NewSubmissionStore creates a SubmissionStore backed by the given client.
func NewSubmissionStore(c *Client) *SubmissionStore {
	return &SubmissionStore{pool: c.Pool()}
}

// Append records one final submission outcome.
func (s *SubmissionStore) Append(ctx context.Context, rec domain.SubmissionRecord) error {
	const query = `
		INSERT INTO submissions (id, account, tx_type, kind, tx_hash, engine_result, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Account, string(rec.TxType), rec.Kind.String(),
		rec.TxHash, rec.EngineResult, rec.Attempts, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append submission %s: %w", rec.ID, err)
	}
	return nil
}

// ListBefore returns up to limit records created before cutoff, oldest first.
func (s *SubmissionStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.SubmissionRecord, error) {
	const query = `
		SELECT id, account, tx_type, kind, tx_hash, engine_result, attempts, created_at
		FROM submissions
		WHERE created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list submissions before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var recs []domain.SubmissionRecord
	for rows.Next() {
		var (
			rec    domain.SubmissionRecord
			txType string
			kind   string
		)
		err := rows.Scan(
			&rec.ID, &rec.Account, &txType, &kind,
			&rec.TxHash, &rec.EngineResult, &rec.Attempts, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan submission: %w", err)
		}
		rec.TxType = domain.TxType(txType)
		rec.Kind = domain.ParseOutcomeKind(kind)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list submissions: %w", err)
	}
	return recs, nil
}

// Delete removes the records with the given ids and returns how many were
// deleted.
func (s *SubmissionStore) Delete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `DELETE FROM submissions WHERE id = ANY($1)`

	tag, err := s.pool.Exec(ctx, query, ids)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete %d submissions: %w", len(ids), err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.SubmissionStore = (*SubmissionStore)(nil)
