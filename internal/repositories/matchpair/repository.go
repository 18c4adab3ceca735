package matchpair

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Table is the match pair table name, shared with the lock helpers.
const Table = "match_pairs"

// upsertChunkSize bounds the rows per insert statement during batch saves.
const upsertChunkSize = 500

// Repository handles match pair persistence. Methods take a database.Queryer
// so the same code runs against the pool and inside the scan's lock-holding
// transaction.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new match pair repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// DB exposes the underlying pool for callers that need a transaction.
func (r *Repository) DB() database.DB {
	return r.db
}

// TryLockExclusive takes the scan's non-blocking exclusive lock on the match
// pair table inside the given transaction.
func (r *Repository) TryLockExclusive(ctx context.Context, tx database.Tx) error {
	return database.TryLockExclusive(ctx, tx, Table)
}

// LockShare takes a brief shared lock for interactive status updates, so
// they serialize against any running scan.
func (r *Repository) LockShare(ctx context.Context, tx database.Tx) error {
	return database.LockShare(ctx, tx, Table)
}

// ListAll retrieves every stored pair regardless of status
func (r *Repository) ListAll(ctx context.Context, q database.Queryer) ([]models.MatchPair, error) {
	ctx, span := tracing.StartSpan(ctx, "matchpair.Repository.ListAll")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("low_id", "high_id", "status", "confidence", "exclude_reason", "timechecked")
	sb.From(Table)

	query, args := sb.Build()
	var pairs []models.MatchPair
	if err := q.SelectContext(ctx, &pairs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list match pairs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match pairs")
	}

	return pairs, nil
}

// List retrieves pairs for review, most confident first, optionally filtered
// by status
func (r *Repository) List(ctx context.Context, q database.Queryer, status string, limit int) ([]models.MatchPair, error) {
	ctx, span := tracing.StartSpan(ctx, "matchpair.Repository.List")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("low_id", "high_id", "status", "confidence", "exclude_reason", "timechecked")
	sb.From(Table)
	if status != "" {
		sb.Where(sb.Equal("status", status))
	}
	sb.OrderBy("confidence DESC NULLS LAST", "low_id", "high_id")
	sb.Limit(limit)

	query, args := sb.Build()
	var pairs []models.MatchPair
	if err := q.SelectContext(ctx, &pairs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list match pairs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match pairs")
	}

	return pairs, nil
}

// Get retrieves a pair by its two person ids, in either order
func (r *Repository) Get(ctx context.Context, q database.Queryer, aID, bID string) (*models.MatchPair, error) {
	ctx, span := tracing.StartSpan(ctx, "matchpair.Repository.Get")
	defer span.End()

	low, high := models.CanonicalIDs(aID, bID)

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("low_id", "high_id", "status", "confidence", "exclude_reason", "timechecked")
	sb.From(Table)
	sb.Where(
		sb.Equal("low_id", low),
		sb.Equal("high_id", high),
	)

	query, args := sb.Build()
	var pair models.MatchPair
	if err := q.GetContext(ctx, &pair, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("match pair (%s, %s) not found", low, high))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get match pair")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get match pair")
	}

	return &pair, nil
}

// LastRun returns the oldest check time across all stored pairs, which is
// the safe lower bound for what an incremental scan can skip. Nil when the
// table is empty.
func (r *Repository) LastRun(ctx context.Context, q database.Queryer) (*time.Time, error) {
	ctx, span := tracing.StartSpan(ctx, "matchpair.Repository.LastRun")
	defer span.End()

	var lastRun *time.Time
	query := fmt.Sprintf("SELECT MIN(timechecked) FROM %s", Table)
	if err := q.GetContext(ctx, &lastRun, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to resolve last scan time")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to resolve last scan time")
	}

	return lastRun, nil
}

// DeleteNonConflict clears every pair except CONFLICT rows, which belong to
// the import pipeline. Full scans call this before writing their result set.
func (r *Repository) DeleteNonConflict(ctx context.Context, q database.Queryer) error {
	ctx, span := tracing.StartSpan(ctx, "matchpair.Repository.DeleteNonConflict")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom(Table)
	sb.Where(sb.NotEqual("status", string(models.MatchPairStatusConflict)))

	query, args := sb.Build()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete match pairs")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete match pairs")
	}

	return nil
}

// UpsertBatch writes pairs in chunks, updating rows that already exist
func (r *Repository) UpsertBatch(ctx context.Context, q database.Queryer, pairs []models.MatchPair) error {
	ctx, span := tracing.StartSpan(ctx, "matchpair.Repository.UpsertBatch")
	defer span.End()

	for start := 0; start < len(pairs); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(pairs) {
			end = len(pairs)
		}

		sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
		sb.InsertInto(Table)
		sb.Cols("low_id", "high_id", "status", "confidence", "exclude_reason", "timechecked")
		for _, pair := range pairs[start:end] {
			sb.Values(pair.LowID, pair.HighID, string(pair.Status), pair.Confidence, pair.ExcludeReason, pair.TimeChecked)
		}

		query, args := sb.Build()
		query += " ON CONFLICT (low_id, high_id) DO UPDATE SET status = EXCLUDED.status, confidence = EXCLUDED.confidence, exclude_reason = EXCLUDED.exclude_reason, timechecked = EXCLUDED.timechecked"

		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to upsert match pairs batch")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save match pairs")
		}
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(pairs)}).Debug("Saved match pairs batch")
	return nil
}

// Exclude marks a pair as reviewed and ruled out
func (r *Repository) Exclude(ctx context.Context, q database.Queryer, aID, bID, reason string) error {
	ctx, span := tracing.StartSpan(ctx, "matchpair.Repository.Exclude")
	defer span.End()

	low, high := models.CanonicalIDs(aID, bID)
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, exclude_reason = $2, timechecked = $3
		WHERE low_id = $4 AND high_id = $5
	`, Table)

	result, err := q.ExecContext(ctx, query, string(models.MatchPairStatusExcluded), reason, time.Now().UTC(), low, high)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to exclude match pair")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to exclude match pair")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("match pair (%s, %s) not found", low, high))
	}

	return nil
}

// MarkConflict records an identifier conflict between two people. The row is
// created when missing; conflicts always carry full confidence.
func (r *Repository) MarkConflict(ctx context.Context, q database.Queryer, aID, bID string) error {
	ctx, span := tracing.StartSpan(ctx, "matchpair.Repository.MarkConflict")
	defer span.End()

	pair := models.NewMatchPair(aID, bID, 0)
	pair.MarkConflict()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto(Table)
	sb.Cols("low_id", "high_id", "status", "confidence", "exclude_reason", "timechecked")
	sb.Values(pair.LowID, pair.HighID, string(pair.Status), pair.Confidence, nil, pair.TimeChecked)

	query, args := sb.Build()
	query += " ON CONFLICT (low_id, high_id) DO UPDATE SET status = EXCLUDED.status, confidence = EXCLUDED.confidence, timechecked = EXCLUDED.timechecked"

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to mark match pair conflict")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark match pair conflict")
	}

	return nil
}
