package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Provider statuses.
const (
	StatusActive = "active"
	StatusBroken = "broken"
)

// brokenAfter is the number of consecutive failed checks that marks a provider broken.
const brokenAfter = 3

// RegisteredProvider is a row in providers.
type RegisteredProvider struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	BinaryPath     string     `json:"binary_path"`
	Description    string     `json:"description"`
	ResponseSchema string     `json:"response_schema,omitempty"` // JSON Schema text; empty = default envelope
	CreatedAt      time.Time  `json:"created_at"`
	Status         string     `json:"status"`
	LastSuccess    *time.Time `json:"last_success,omitempty"`
	FailureCount   int        `json:"failure_count"`
	LastError      string     `json:"last_error,omitempty"`
}

const providerColumns = `id, name, binary_path, description, response_schema, created_at, status, last_success, failure_count, last_error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner) (*RegisteredProvider, error) {
	var p RegisteredProvider
	var description, responseSchema, status, lastError sql.NullString
	var lastSuccess sql.NullTime
	var failureCount sql.NullInt64
	if err := row.Scan(&p.ID, &p.Name, &p.BinaryPath, &description, &responseSchema, &p.CreatedAt, &status, &lastSuccess, &failureCount, &lastError); err != nil {
		return nil, err
	}
	p.Description = description.String
	p.ResponseSchema = responseSchema.String
	p.Status = StatusActive
	if status.Valid && status.String != "" {
		p.Status = status.String
	}
	if lastSuccess.Valid {
		p.LastSuccess = &lastSuccess.Time
	}
	p.FailureCount = int(failureCount.Int64)
	p.LastError = lastError.String
	return &p, nil
}

// InsertProvider registers a provider and returns its id. New providers start active with no failures.
func (db *DB) InsertProvider(ctx context.Context, name, binaryPath, description, responseSchema string) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO providers (name, binary_path, description, response_schema, status, failure_count) VALUES (?, ?, ?, ?, 'active', 0)`,
		name, binaryPath, description, responseSchema,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ProviderByName returns the provider with the given name, or nil if not found.
func (db *DB) ProviderByName(ctx context.Context, name string) (*RegisteredProvider, error) {
	p, err := scanProvider(db.QueryRowContext(ctx, `SELECT `+providerColumns+` FROM providers WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// AllProviders returns all registered providers ordered by name.
func (db *DB) AllProviders(ctx context.Context) ([]RegisteredProvider, error) {
	return db.queryProviders(ctx, `SELECT `+providerColumns+` FROM providers ORDER BY name`)
}

// ListBrokenProviders returns providers with status 'broken'.
func (db *DB) ListBrokenProviders(ctx context.Context) ([]RegisteredProvider, error) {
	return db.queryProviders(ctx, `SELECT `+providerColumns+` FROM providers WHERE status = ? ORDER BY name`, StatusBroken)
}

func (db *DB) queryProviders(ctx context.Context, query string, args ...any) ([]RegisteredProvider, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RegisteredProvider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// DeleteProvider removes a provider by name. Its check history is kept.
func (db *DB) DeleteProvider(ctx context.Context, name string) (bool, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM providers WHERE name = ?", name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RecordProviderSuccess sets last_success, resets failure_count and marks the provider active.
func (db *DB) RecordProviderSuccess(ctx context.Context, name string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE providers SET last_success = ?, failure_count = 0, last_error = NULL, status = 'active' WHERE name = ?`,
		time.Now().UTC(), name,
	)
	return err
}

// RecordProviderFailure increments failure_count and sets last_error. After brokenAfter
// consecutive failures the provider is marked broken.
func (db *DB) RecordProviderFailure(ctx context.Context, name, errMsg string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE providers SET failure_count = failure_count + 1, last_error = ?,
			status = CASE WHEN failure_count + 1 >= ? THEN 'broken' ELSE status END
		WHERE name = ?`,
		errMsg, brokenAfter, name,
	)
	return err
}

// ProviderRegistry is what the register, list and remove commands need.
type ProviderRegistry interface {
	InsertProvider(ctx context.Context, name, binaryPath, description, responseSchema string) (int64, error)
	ProviderByName(ctx context.Context, name string) (*RegisteredProvider, error)
	AllProviders(ctx context.Context) ([]RegisteredProvider, error)
	ListBrokenProviders(ctx context.Context) ([]RegisteredProvider, error)
	DeleteProvider(ctx context.Context, name string) (bool, error)
}

// Ensure *DB implements ProviderRegistry.
var _ ProviderRegistry = (*DB)(nil)
