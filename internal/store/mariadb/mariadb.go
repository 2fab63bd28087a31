// Package mariadb stores face records in MariaDB or MySQL.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/store"
)

const schema = "CREATE TABLE IF NOT EXISTS face_recognition (" +
	"id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY, " +
	"label VARCHAR(255) NOT NULL, " +
	"image_data LONGTEXT NOT NULL, " +
	"`timestamp` DATETIME(3) NOT NULL, " +
	"created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3), " +
	"INDEX idx_face_recognition_timestamp (`timestamp`), " +
	"INDEX idx_face_recognition_label (label)" +
	") CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci"

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// normalizeDSN forces time parsing in UTC so DATETIME columns scan into time.Time.
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MariaDB DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// NewPool creates a new MariaDB connection pool and waits until the server answers.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required (MARIADB_DSN)")
	}

	dsn, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := store.WaitReady(ctx, "mariadb", 5, db.PingContext); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Pool{db: db}, nil
}

// EnsureSchema creates the records table when missing.
func (p *Pool) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create face_recognition table: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Open is the store.Factory for this backend.
func Open(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	pool, err := NewPool(ctx, cfg.MariaDB.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return NewRepository(pool), nil
}
