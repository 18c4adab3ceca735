package person

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Table is the person table populated by the import pipeline.
const Table = "persons"

// Repository is the read-only person source for duplicate scans
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new person repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

type personRow struct {
	ID               string                         `db:"id"`
	UpdatedAt        *time.Time                     `db:"updated_at"`
	Sex              *string                        `db:"sex"`
	DOB              *time.Time                     `db:"dob"`
	DOBPrecisionDays *int                           `db:"dob_precision_days"`
	Data             database.JSONB[map[string]any] `db:"data"`
}

// ListPeople loads the whole population in id order, so scans over the same
// data always compare pairs in the same sequence.
func (r *Repository) ListPeople(ctx context.Context, q database.Queryer) ([]models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.ListPeople")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "updated_at", "sex", "dob", "dob_precision_days", "data")
	sb.From(Table)
	sb.OrderBy("id")

	query, args := sb.Build()
	var rows []personRow
	if err := q.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list people")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list people")
	}

	people := make([]models.Person, 0, len(rows))
	for _, row := range rows {
		people = append(people, models.Person{
			ID:               row.ID,
			UpdatedAt:        row.UpdatedAt,
			Sex:              row.Sex,
			DOB:              row.DOB,
			DOBPrecisionDays: row.DOBPrecisionDays,
			Data:             row.Data.GetValue(),
		})
	}

	return people, nil
}
