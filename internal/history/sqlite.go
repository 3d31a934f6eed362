package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lmaertin/pooldose-go/internal/mapping"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// SQLiteRepository implements Repository on the readings and write_audit
// tables. Timestamps are stored as Unix milliseconds.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordReadings inserts readings in one transaction.
func (r *SQLiteRepository) RecordReadings(ctx context.Context, readings []Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting readings tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO readings (device_id, name, kind, value, unit, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing readings insert: %w", err)
	}
	defer stmt.Close()

	for _, rd := range readings {
		if rd.DeviceID == "" {
			return ErrDeviceIDRequired
		}
		if rd.Name == "" {
			return ErrNameRequired
		}
		at := rd.RecordedAt
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			rd.DeviceID, rd.Name, string(rd.Kind), string(rd.Value), nullable(rd.Unit), at.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("inserting reading %s: %w", rd.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing readings: %w", err)
	}
	return nil
}

// GetHistory returns the newest readings of one value, newest first.
func (r *SQLiteRepository) GetHistory(ctx context.Context, deviceID, name string, limit int) ([]Reading, error) {
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}
	if name == "" {
		return nil, ErrNameRequired
	}
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, name, kind, value, unit, recorded_at
		 FROM readings
		 WHERE device_id = ? AND name = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		deviceID, name, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	out := make([]Reading, 0, limit)
	for rows.Next() {
		var (
			rd    Reading
			kind  string
			value string
			unit  sql.NullString
			at    int64
		)
		if err := rows.Scan(&rd.ID, &rd.DeviceID, &rd.Name, &kind, &value, &unit, &at); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		rd.Kind = mapping.Kind(kind)
		rd.Value = json.RawMessage(value)
		rd.Unit = unit.String
		rd.RecordedAt = time.UnixMilli(at).UTC()
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return out, nil
}

// RecordWrite inserts a write attempt. A missing ID is generated and a
// zero timestamp becomes now.
func (r *SQLiteRepository) RecordWrite(ctx context.Context, rec WriteRecord) (WriteRecord, error) {
	if rec.DeviceID == "" {
		return WriteRecord{}, ErrDeviceIDRequired
	}
	if rec.Name == "" {
		return WriteRecord{}, ErrNameRequired
	}
	switch rec.Outcome {
	case OutcomeAccepted, OutcomeRejected, OutcomeFailed:
	default:
		return WriteRecord{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, rec.Outcome)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	if len(rec.Value) == 0 {
		rec.Value = json.RawMessage("null")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO write_audit (id, device_id, name, value, source, outcome, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DeviceID, rec.Name, string(rec.Value), rec.Source, rec.Outcome,
		nullable(rec.Error), rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return WriteRecord{}, fmt.Errorf("inserting write audit: %w", err)
	}
	return rec, nil
}

// ListWrites returns the newest write attempts, newest first.
func (r *SQLiteRepository) ListWrites(ctx context.Context, deviceID string, limit int) ([]WriteRecord, error) {
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, name, value, source, outcome, error, created_at
		 FROM write_audit
		 WHERE device_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying write audit: %w", err)
	}
	defer rows.Close()

	out := make([]WriteRecord, 0, limit)
	for rows.Next() {
		var (
			rec    WriteRecord
			value  string
			errMsg sql.NullString
			at     int64
		)
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &rec.Name, &value, &rec.Source, &rec.Outcome, &errMsg, &at); err != nil {
			return nil, fmt.Errorf("scanning write audit: %w", err)
		}
		rec.Value = json.RawMessage(value)
		rec.Error = errMsg.String
		rec.CreatedAt = time.UnixMilli(at).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating write audit: %w", err)
	}
	return out, nil
}

// Prune deletes readings recorded before the cutoff.
func (r *SQLiteRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM readings WHERE recorded_at < ?",
		before.UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting readings: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
