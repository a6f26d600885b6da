package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"orderbot/internal/db"
)

// DatabaseBackend stores the identity as one row of session_identity in
// PostgreSQL, keyed by the configured storage key.
type DatabaseBackend struct {
	db  *db.DB
	key string
}

func NewDatabaseBackend(database *db.DB, key string) *DatabaseBackend {
	return &DatabaseBackend{db: database, key: key}
}

func (d *DatabaseBackend) Load(ctx context.Context) (string, error) {
	var id string
	err := d.db.QueryRowContext(ctx,
		`SELECT session_id FROM session_identity WHERE storage_key = $1`,
		d.key,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session id: %w", err)
	}
	return id, nil
}

func (d *DatabaseBackend) Save(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO session_identity (storage_key, session_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (storage_key)
		DO UPDATE SET
			session_id = EXCLUDED.session_id,
			updated_at = NOW()
	`, d.key, sessionID)
	if err != nil {
		return fmt.Errorf("failed to save session id: %w", err)
	}
	return nil
}
