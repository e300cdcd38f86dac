package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/autoclaim/internal/application/port"
	"github.com/garyjia/autoclaim/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// KeyValueRepository implements port.KeyValueStore on the kv_entries table
type KeyValueRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewKeyValueRepository creates a new key-value repository
func NewKeyValueRepository(db *sqlite.DB, logger *zap.Logger) port.KeyValueStore {
	return &KeyValueRepository{
		db:     db,
		logger: logger,
	}
}

// Load returns the stored value for key; found is false when the key is absent
func (r *KeyValueRepository) Load(ctx context.Context, key string) (string, bool, error) {
	query := `SELECT value FROM kv_entries WHERE key = ?`

	var value string
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		r.logger.Error("Failed to load entry", zap.String("key", key), zap.Error(err))
		return "", false, fmt.Errorf("failed to load %s: %w", key, err)
	}

	return value, true, nil
}

// Save inserts or replaces the value for key
func (r *KeyValueRepository) Save(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	if _, err := r.db.Executor(ctx).ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		r.logger.Error("Failed to save entry", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to save %s: %w", key, err)
	}

	r.logger.Debug("Entry saved", zap.String("key", key), zap.Int("size", len(value)))
	return nil
}

// Remove deletes key; removing an absent key succeeds
func (r *KeyValueRepository) Remove(ctx context.Context, key string) error {
	if _, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key); err != nil {
		r.logger.Error("Failed to remove entry", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// ClearAll deletes every entry in one transaction
func (r *KeyValueRepository) ClearAll(ctx context.Context) error {
	err := r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		res, err := r.db.Executor(txCtx).ExecContext(txCtx, `DELETE FROM kv_entries`)
		if err != nil {
			return fmt.Errorf("failed to clear entries: %w", err)
		}
		n, _ := res.RowsAffected()
		r.logger.Warn("All stored entries cleared", zap.Int64("count", n))
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to clear store", zap.Error(err))
	}
	return err
}

// Keys lists stored keys starting with prefix, sorted
func (r *KeyValueRepository) Keys(ctx context.Context, prefix string) ([]string, error) {
	query := `SELECT key FROM kv_entries WHERE substr(key, 1, ?) = ? ORDER BY key`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	return keys, rows.Err()
}

// Verify interface compliance
var _ port.KeyValueStore = (*KeyValueRepository)(nil)
