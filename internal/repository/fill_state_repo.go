package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"hydroponics_controller/internal/models"
)

// FillStateSQLite persists the latched fill alarm in a single row so that a
// restart cannot silently clear it.
type FillStateSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewFillStateSQLite(db *sql.DB) *FillStateSQLite {
	return &FillStateSQLite{db: db, now: time.Now}
}

var _ FillStateRepo = (*FillStateSQLite)(nil)

const (
	fillStateRowID = 1

	upsertFillStateSQL = `
		INSERT INTO fill_state (id, status, alarm_since, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status,
			alarm_since=excluded.alarm_since,
			updated_at=excluded.updated_at
	`

	selectFillStateSQL = `SELECT status, alarm_since FROM fill_state WHERE id=?`
)

// Save writes the single fill_state row (id always 1).
func (r *FillStateSQLite) Save(ctx context.Context, s models.FillState) error {
	var since *string
	if s.AlarmSince != nil {
		v := formatTS(*s.AlarmSince)
		since = &v
	}
	_, err := r.db.ExecContext(ctx, upsertFillStateSQL,
		fillStateRowID,
		string(s.Status),
		since,
		formatTS(r.now()),
	)
	return err
}

// Load returns the stored row; ok is false when nothing was saved yet.
func (r *FillStateSQLite) Load(ctx context.Context) (models.FillState, bool, error) {
	var (
		status string
		since  sql.NullString
	)
	err := r.db.QueryRowContext(ctx, selectFillStateSQL, fillStateRowID).Scan(&status, &since)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.FillState{}, false, nil
		}
		return models.FillState{}, false, err
	}

	st := models.FillState{Status: models.FillStatus(status)}
	st.Alarm = st.Status.Alarm()
	if since.Valid && since.String != "" {
		t, err := parseTS(since.String)
		if err != nil {
			return models.FillState{}, false, err
		}
		st.AlarmSince = &t
	}
	return st, true, nil
}
