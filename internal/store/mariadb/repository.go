package mariadb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"
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
	return "mariadb"
}

func (r *Repository) Close() error {
	return r.pool.Close()
}

// Submit inserts one row; it never retries.
func (r *Repository) Submit(ctx context.Context, record store.FaceRecord) (store.Ack, error) {
	if err := record.Validate(); err != nil {
		return store.Ack{}, store.NewSubmitError("", err)
	}

	res, err := r.pool.db.ExecContext(ctx,
		"INSERT INTO face_recognition (label, image_data, `timestamp`) VALUES (?, ?, ?)",
		record.Label, record.Image.DataURL(), record.CapturedAt.UTC(),
	)
	if err != nil {
		log.WithField("backend", r.Name()).WithError(err).Warn("insert failed")
		return store.Ack{}, store.NewSubmitError(errorDetail(err), err)
	}

	ack := store.Ack{Label: record.Label, CapturedAt: record.CapturedAt}
	if id, err := res.LastInsertId(); err == nil {
		ack.ID = strconv.FormatInt(id, 10)
	}
	return ack, nil
}

// errorDetail prefers the server's own message for driver errors.
func errorDetail(err error) string {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Message
	}
	return err.Error()
}

// List returns the most recent rows first.
func (r *Repository) List(ctx context.Context, opts store.ListOptions) ([]store.Record, error) {
	opts = opts.Normalize()

	imageColumn := "''"
	if opts.IncludeImages {
		imageColumn = "image_data"
	}
	query := "SELECT id, label, `timestamp`, " + imageColumn +
		" FROM face_recognition ORDER BY `timestamp` DESC, id DESC LIMIT ?"

	rows, err := r.pool.db.QueryContext(ctx, query, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	var records []store.Record
	for rows.Next() {
		var (
			id  uint64
			rec store.Record
		)
		if err := rows.Scan(&id, &rec.Label, &rec.CapturedAt, &rec.ImageData); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec.ID = strconv.FormatUint(id, 10)
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
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM face_recognition").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}
