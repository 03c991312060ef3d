package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"metersync/internal/reconcile/domain"
)

const defaultStatisticsTable = "meter_statistics"

// StatisticsRepository persists cumulative series rows in Postgres.
//
// Appends are idempotent: the table is keyed on (series_id, start) and
// conflicting rows are ignored, so replaying an overlapping window is safe
// even without the accumulator's own cutoff filtering.
type StatisticsRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*StatisticsRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(r *StatisticsRepository) {
		if table != "" {
			r.table = table
		}
	}
}

// NewStatisticsRepository constructs a repository.
func NewStatisticsRepository(db *sql.DB, opts ...RepositoryOption) *StatisticsRepository {
	repo := &StatisticsRepository{
		db:    db,
		table: defaultStatisticsTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// GetLastPoint returns the newest persisted point of a series, or nil when
// the series has never been written.
func (r *StatisticsRepository) GetLastPoint(ctx context.Context, series domain.SeriesID) (*domain.CumulativePoint, error) {
	if series.MeterID == "" {
		return nil, domain.ErrEmptyMeterID
	}

	query := fmt.Sprintf(`
SELECT start, delta, sum
FROM %s
WHERE series_id = $1
ORDER BY start DESC
LIMIT 1`, r.table)

	var point domain.CumulativePoint
	err := r.db.QueryRowContext(ctx, query, series.String()).Scan(&point.Start, &point.Delta, &point.Sum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	point.Start = point.Start.UTC()
	return &point, nil
}

// AppendPoints inserts new rows for a series. Rows whose timestamp already
// exists are silently ignored.
func (r *StatisticsRepository) AppendPoints(ctx context.Context, series domain.SeriesID, points []domain.CumulativePoint) error {
	if series.MeterID == "" {
		return domain.ErrEmptyMeterID
	}
	if len(points) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (series_id, start, delta, sum)
VALUES ($1, $2, $3, $4)
ON CONFLICT (series_id, start) DO NOTHING`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range points {
		if _, err := tx.ExecContext(ctx, query, series.String(), p.Start.UTC(), p.Delta, p.Sum); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListPoints returns the persisted points of a series in [from, to), oldest
// first.
func (r *StatisticsRepository) ListPoints(ctx context.Context, series domain.SeriesID, from, to time.Time) ([]domain.CumulativePoint, error) {
	if series.MeterID == "" {
		return nil, domain.ErrEmptyMeterID
	}

	query := fmt.Sprintf(`
SELECT start, delta, sum
FROM %s
WHERE series_id = $1
	AND start >= $2
	AND start < $3
ORDER BY start ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, series.String(), from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CumulativePoint
	for rows.Next() {
		var p domain.CumulativePoint
		if err := rows.Scan(&p.Start, &p.Delta, &p.Sum); err != nil {
			return nil, err
		}
		p.Start = p.Start.UTC()
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
