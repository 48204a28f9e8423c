package location

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/mampersat/ratewings2025/internal/ranking"
	"github.com/mampersat/ratewings2025/internal/tracing"
)

const (
	tableLocations = "wing_locations"
	tableReviews   = "wing_reviews"

	// pgForeignKeyViolation is the SQLSTATE for foreign_key_violation.
	pgForeignKeyViolation = "23503"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a store over an open database handle.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

const locationColumns = `id, name, address, lat, lon, created_at`

const reviewColumns = `id, location_id, rating, heat, comment, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (*Location, error) {
	var (
		loc     Location
		address sql.NullString
		lat     sql.NullFloat64
		lon     sql.NullFloat64
	)
	if err := row.Scan(&loc.ID, &loc.Name, &address, &lat, &lon, &loc.CreatedAt); err != nil {
		return nil, err
	}
	if address.Valid {
		loc.Address = &address.String
	}
	if lat.Valid && lon.Valid {
		loc.Lat = &lat.Float64
		loc.Lon = &lon.Float64
	}
	return &loc, nil
}

func scanReview(row rowScanner) (*Review, error) {
	var (
		r         Review
		heat      sql.NullInt64
		comment   sql.NullString
		createdAt sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.LocationID, &r.Rating, &heat, &comment, &createdAt); err != nil {
		return nil, err
	}
	if heat.Valid {
		h := int(heat.Int64)
		r.Heat = &h
	}
	if comment.Valid {
		r.Comment = &comment.String
	}
	if createdAt.Valid {
		t := createdAt.Time.UTC()
		r.CreatedAt = &t
	}
	return &r, nil
}

// CreateLocation inserts a location.
func (s *PostgresStore) CreateLocation(ctx context.Context, loc *Location) (err error) {
	if err := loc.Validate(); err != nil {
		return err
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, tableLocations, tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO wing_locations (name, address, lat, lon)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err = s.db.QueryRowContext(ctx, query, loc.Name, loc.Address, loc.Lat, loc.Lon).Scan(&loc.ID, &loc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert location: %w", err)
	}

	s.logger.DebugContext(ctx, "location created",
		slog.Int64("location_id", loc.ID),
		slog.String("name", loc.Name))
	return nil
}

// GetLocation fetches one location by id.
func (s *PostgresStore) GetLocation(ctx context.Context, id int64) (_ *Location, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, tableLocations, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT ` + locationColumns + ` FROM wing_locations WHERE id = $1`
	loc, err := scanLocation(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return loc, nil
}

// ListLocations runs the id-set and text filters in SQL.
func (s *PostgresStore) ListLocations(ctx context.Context, filter LocationFilter) (_ []*Location, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, tableLocations, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var (
		where []string
		args  []any
	)
	if len(filter.IDs) > 0 {
		args = append(args, pq.Array(filter.IDs))
		where = append(where, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if needle := strings.TrimSpace(filter.Search); needle != "" {
		args = append(args, "%"+escapeLike(needle)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR address ILIKE $%d)", n, n))
	}

	query := `SELECT ` + locationColumns + ` FROM wing_locations`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	out := make([]*Location, 0)
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		out = append(out, loc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate locations: %w", err)
	}
	return out, nil
}

// Aggregates computes per-location review statistics in a single grouped query.
func (s *PostgresStore) Aggregates(ctx context.Context, ids []int64) (_ map[int64]ranking.Aggregate, err error) {
	out := make(map[int64]ranking.Aggregate)
	if len(ids) == 0 {
		return out, nil
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, tableReviews, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT location_id, AVG(rating), AVG(heat), COUNT(*), MAX(created_at)
		FROM wing_reviews
		WHERE location_id = ANY($1)
		GROUP BY location_id
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate reviews: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			locationID int64
			avgRating  float64
			avgHeat    sql.NullFloat64
			count      int
			last       sql.NullTime
		)
		if err := rows.Scan(&locationID, &avgRating, &avgHeat, &count, &last); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}
		agg := ranking.Aggregate{AverageRating: &avgRating, ReviewCount: count}
		if avgHeat.Valid {
			agg.AverageHeat = &avgHeat.Float64
		}
		if last.Valid {
			t := last.Time.UTC()
			agg.LastReviewedAt = &t
		}
		out[locationID] = agg
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate aggregates: %w", err)
	}
	return out, nil
}

// CreateReview inserts a review. A missing location surfaces as ErrLocationNotFound
// through the foreign key.
func (s *PostgresStore) CreateReview(ctx context.Context, review *Review) (err error) {
	if err := review.Validate(); err != nil {
		return err
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, tableReviews, tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO wing_reviews (location_id, rating, heat, comment, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
		RETURNING id, created_at
	`
	var createdAt time.Time
	err = s.db.QueryRowContext(ctx, query,
		review.LocationID, review.Rating, review.Heat, review.Comment, review.CreatedAt,
	).Scan(&review.ID, &createdAt)
	if isForeignKeyViolation(err) {
		return ErrLocationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}

	createdAt = createdAt.UTC()
	review.CreatedAt = &createdAt
	return nil
}

// GetReview fetches one review by id.
func (s *PostgresStore) GetReview(ctx context.Context, id int64) (_ *Review, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, tableReviews, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT ` + reviewColumns + ` FROM wing_reviews WHERE id = $1`
	r, err := scanReview(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return r, nil
}

// ListReviews returns reviews ordered by id.
func (s *PostgresStore) ListReviews(ctx context.Context, filter ReviewFilter) (_ []*Review, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, tableReviews, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var limit sql.NullInt64
	if filter.Limit > 0 {
		limit = sql.NullInt64{Int64: int64(filter.Limit), Valid: true}
	}
	var locationID sql.NullInt64
	if filter.LocationID != nil {
		locationID = sql.NullInt64{Int64: *filter.LocationID, Valid: true}
	}

	query := `
		SELECT ` + reviewColumns + `
		FROM wing_reviews
		WHERE ($1::bigint IS NULL OR location_id = $1)
		ORDER BY id
		OFFSET $2
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, locationID, max(filter.Offset, 0), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	return collectReviews(rows)
}

// UpdateReview applies a partial update inside a transaction.
func (s *PostgresStore) UpdateReview(ctx context.Context, id int64, patch ReviewPatch) (_ *Review, err error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, tableReviews, tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(tx)

	query := `SELECT ` + reviewColumns + ` FROM wing_reviews WHERE id = $1 FOR UPDATE`
	r, err := scanReview(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load review: %w", err)
	}

	if patch.LocationID != nil {
		if err = lockLocations(ctx, tx, *patch.LocationID); err != nil {
			return nil, err
		}
	}

	patch.apply(r)

	_, err = tx.ExecContext(ctx, `
		UPDATE wing_reviews
		SET location_id = $2, rating = $3, heat = $4, comment = $5
		WHERE id = $1
	`, r.ID, r.LocationID, r.Rating, r.Heat, r.Comment)
	if err != nil {
		return nil, fmt.Errorf("failed to update review: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit review update: %w", err)
	}
	return r, nil
}

// MergeLocations moves reviews from fromID to intoID and deletes fromID in one transaction.
func (s *PostgresStore) MergeLocations(ctx context.Context, fromID, intoID int64) (_ MergeResult, err error) {
	if fromID == intoID {
		return MergeResult{}, ErrSameLocation
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, tableLocations, tracing.DBOperationExec)
	defer func() { endSpan(err) }()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to begin merge transaction",
			slog.String("error", err.Error()))
		return MergeResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(tx)

	if err = lockLocations(ctx, tx, fromID, intoID); err != nil {
		return MergeResult{}, err
	}

	res, err := tx.ExecContext(ctx, `UPDATE wing_reviews SET location_id = $1 WHERE location_id = $2`, intoID, fromID)
	if err != nil {
		return MergeResult{}, fmt.Errorf("failed to reassign reviews: %w", err)
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return MergeResult{}, fmt.Errorf("failed to count reassigned reviews: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM wing_locations WHERE id = $1`, fromID); err != nil {
		return MergeResult{}, fmt.Errorf("failed to delete merged location: %w", err)
	}

	if err = tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "failed to commit merge",
			slog.String("error", err.Error()))
		return MergeResult{}, fmt.Errorf("failed to commit merge: %w", err)
	}

	s.logger.InfoContext(ctx, "locations merged",
		slog.Int64("from_id", fromID),
		slog.Int64("into_id", intoID),
		slog.Int64("reviews_moved", moved))

	return MergeResult{ReviewsMoved: moved, LocationDeleted: fromID}, nil
}

// ListReviewsForBackfill returns commented reviews missing heat or created_at.
func (s *PostgresStore) ListReviewsForBackfill(ctx context.Context) (_ []*Review, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, tableReviews, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT ` + reviewColumns + `
		FROM wing_reviews
		WHERE comment IS NOT NULL AND comment <> ''
		  AND (heat IS NULL OR created_at IS NULL)
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews for backfill: %w", err)
	}
	defer rows.Close()

	return collectReviews(rows)
}

// SetReviewHeat fills heat when it is null.
func (s *PostgresStore) SetReviewHeat(ctx context.Context, id int64, heat int) (_ bool, err error) {
	if err := validateHeat(&heat); err != nil {
		return false, err
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, tableReviews, tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	res, err := s.db.ExecContext(ctx, `UPDATE wing_reviews SET heat = $2 WHERE id = $1 AND heat IS NULL`, id, heat)
	if err != nil {
		return false, fmt.Errorf("failed to set review heat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count updated reviews: %w", err)
	}
	return n > 0, nil
}

// SetReviewCreatedAt fills created_at when it is null.
func (s *PostgresStore) SetReviewCreatedAt(ctx context.Context, id int64, t time.Time) (_ bool, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, tableReviews, tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	res, err := s.db.ExecContext(ctx, `UPDATE wing_reviews SET created_at = $2 WHERE id = $1 AND created_at IS NULL`, id, t.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to set review created_at: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count updated reviews: %w", err)
	}
	return n > 0, nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.Warn("failed to rollback transaction",
			slog.String("error", err.Error()))
	}
}

// lockLocations row-locks the given locations and returns ErrLocationNotFound
// unless all of them exist.
func lockLocations(ctx context.Context, tx *sql.Tx, ids ...int64) error {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM wing_locations WHERE id = ANY($1) FOR UPDATE`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to lock locations: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]struct{}, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan location id: %w", err)
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate locations: %w", err)
	}

	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return ErrLocationNotFound
		}
	}
	return nil
}

func collectReviews(rows *sql.Rows) ([]*Review, error) {
	out := make([]*Review, 0)
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}
	return out, nil
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation
}

// escapeLike escapes ILIKE wildcards so search terms match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
