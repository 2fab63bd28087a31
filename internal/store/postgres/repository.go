package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-registry/internal/store"
)

// Repository writes and lists face records.
type Repository struct {
	pool *Pool
}

// NewRepository creates a repository on pool.
func NewRepository(pool *Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Name() string {
	return "postgres"
}

func (r *Repository) Close() error {
	return r.pool.Close()
}

// Submit inserts one row with a single statement; it never retries.
func (r *Repository) Submit(ctx context.Context, record store.FaceRecord) (store.Ack, error) {
	if err := record.Validate(); err != nil {
		return store.Ack{}, store.NewSubmitError("", err)
	}

	row := record.Row()
	var id int64
	err := r.pool.db.QueryRowContext(ctx,
		`INSERT INTO face_recognition (label, image_data, "timestamp") VALUES ($1, $2, $3) RETURNING id`,
		row.Label, row.ImageData, record.CapturedAt.UTC(),
	).Scan(&id)
	if err != nil {
		log.WithField("backend", r.Name()).WithError(err).Warn("insert failed")
		return store.Ack{}, store.NewSubmitError(errorDetail(err), err)
	}

	return store.Ack{
		ID:         strconv.FormatInt(id, 10),
		Label:      record.Label,
		CapturedAt: record.CapturedAt,
	}, nil
}

// errorDetail prefers the server's own message for driver errors.
func errorDetail(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Message
	}
	return err.Error()
}

// List returns the most recent rows first.
func (r *Repository) List(ctx context.Context, opts store.ListOptions) ([]store.Record, error) {
	opts = opts.Normalize()

	query := `SELECT id, label, "timestamp", '' FROM face_recognition ORDER BY "timestamp" DESC, id DESC LIMIT $1`
	if opts.IncludeImages {
		query = `SELECT id, label, "timestamp", image_data FROM face_recognition ORDER BY "timestamp" DESC, id DESC LIMIT $1`
	}

	rows, err := r.pool.db.QueryContext(ctx, query, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]store.Record, error) {
	var records []store.Record
	for rows.Next() {
		var (
			id  int64
			rec store.Record
		)
		if err := rows.Scan(&id, &rec.Label, &rec.CapturedAt, &rec.ImageData); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec.ID = strconv.FormatInt(id, 10)
		rec.CapturedAt = rec.CapturedAt.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// Count returns the number of stored rows.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM face_recognition`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}
