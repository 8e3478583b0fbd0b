package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a queried entity does not exist.
var ErrNotFound = errors.New("not found")

//go:embed migrations/*.sql
var migrations embed.FS

// DB wraps a pgx connection pool and stores prediction history.
type DB struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect creates a new DB instance, connects to PostgreSQL, and runs migrations.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	db := &DB{Pool: pool, logger: logger}
	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Migrate reads and executes the embedded SQL migration files.
func (db *DB) Migrate(ctx context.Context) error {
	sql, err := migrations.ReadFile("migrations/001_init.sql")
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	db.logger.Info("database migrated")
	return nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// PingContext checks the database connection.
func (db *DB) PingContext(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Record inserts a prediction. The insert trigger publishes it on
// prediction_stream.
func (db *DB) Record(ctx context.Context, e *Entry) error {
	var errText *string
	if e.Error != "" {
		errText = &e.Error
	}
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO predictions (id, input, raw_label, verdict, error, source, response_time_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Input, []byte(e.RawLabel), e.Verdict, errText, e.Source, e.ResponseTimeMs, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// Recent returns up to limit predictions, newest first.
func (db *DB) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, input, raw_label, verdict, error, source, response_time_ms, created_at
		 FROM predictions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var raw []byte
		var errText *string
		if err := rows.Scan(&e.ID, &e.Input, &raw, &e.Verdict, &errText, &e.Source, &e.ResponseTimeMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		e.RawLabel = raw
		if raw == nil {
			e.RawLabel = []byte("null")
		}
		if errText != nil {
			e.Error = *errText
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get fetches a single prediction by id.
func (db *DB) Get(ctx context.Context, id string) (*Entry, error) {
	uid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	var e Entry
	var raw []byte
	var errText *string
	err = db.Pool.QueryRow(ctx,
		`SELECT id, input, raw_label, verdict, error, source, response_time_ms, created_at
		 FROM predictions WHERE id = $1`, uid,
	).Scan(&e.ID, &e.Input, &raw, &e.Verdict, &errText, &e.Source, &e.ResponseTimeMs, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.RawLabel = raw
	if errText != nil {
		e.Error = *errText
	}
	return &e, nil
}

// Prune deletes predictions created before the cutoff.
func (db *DB) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM predictions WHERE created_at < $1`, before)
	return tag.RowsAffected(), err
}
