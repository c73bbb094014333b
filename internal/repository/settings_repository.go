package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"storefront/internal/database"
)

// SettingsRepository stores the site settings as key/JSON value rows
type SettingsRepository interface {
	All(ctx context.Context) (map[string]json.RawMessage, error)
	Upsert(ctx context.Context, values map[string]any) error
}

type settingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a new instance of SettingsRepository
func NewSettingsRepository(db *sql.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// All returns every stored setting
func (r *settingsRepository) All(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	bag := make(map[string]json.RawMessage)
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		bag[key] = json.RawMessage(value)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}

	return bag, nil
}

// Upsert writes all values in one transaction
func (r *settingsRepository) Upsert(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	_, err := database.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		query := `
			INSERT INTO settings (key, value)
			VALUES ($1, $2::jsonb)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
		`
		for _, key := range keys {
			value, err := json.Marshal(values[key])
			if err != nil {
				return struct{}{}, fmt.Errorf("failed to marshal setting %s: %w", key, err)
			}
			if _, err := tx.ExecContext(ctx, query, key, string(value)); err != nil {
				return struct{}{}, fmt.Errorf("failed to upsert setting %s: %w", key, err)
			}
		}
		return struct{}{}, nil
	})

	return err
}
