package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

type SettingsSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewSettingsSQLite(db *sql.DB) *SettingsSQLite {
	return &SettingsSQLite{db: db, now: time.Now}
}

var _ SettingsRepo = (*SettingsSQLite)(nil)

const (
	selectSettingsSQL = `SELECT key, value FROM settings`

	upsertSettingSQL = `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at
	`

	seedSettingSQL = `INSERT OR IGNORE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`
)

// LoadAll returns every stored key/value pair.
func (r *SettingsSQLite) LoadAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, selectSettingsSQL)
	if err != nil {
		return nil, fmt.Errorf("select settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveMany upserts kv atomically: either every key is written or none.
func (r *SettingsSQLite) SaveMany(ctx context.Context, kv map[string]string) error {
	return r.writeAll(ctx, upsertSettingSQL, kv)
}

// SeedDefaults inserts keys that do not exist yet and leaves the rest alone.
func (r *SettingsSQLite) SeedDefaults(ctx context.Context, defaults map[string]string) error {
	return r.writeAll(ctx, seedSettingSQL, defaults)
}

func (r *SettingsSQLite) writeAll(ctx context.Context, stmt string, kv map[string]string) error {
	if len(kv) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ts := formatTS(r.now())
	for _, k := range sortedKeys(kv) {
		if _, err := tx.ExecContext(ctx, stmt, k, kv[k], ts); err != nil {
			return fmt.Errorf("write setting %q: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return nil
}

// sortedKeys gives a deterministic write order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
