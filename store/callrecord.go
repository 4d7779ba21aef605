package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/velora-ai/velora/server/session"
)

// CallRecord is the durable summary of one completed call.
type CallRecord struct {
	CallSID         string
	CallerPhone     string
	StartedAt       time.Time
	EndedAt         time.Time
	DurationSeconds int
	TurnCount       int
	Transcript      []session.Turn
}

// CreateCallRecord inserts the record for a completed call. Writing the same
// call twice replaces the earlier row.
func (s *Store) CreateCallRecord(ctx context.Context, rec *CallRecord) error {
	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return errors.Wrap(err, "failed to encode transcript")
	}

	stmt := `
		INSERT INTO call_record (call_sid, caller_phone, started_at, ended_at, duration_seconds, turn_count, transcript)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (call_sid)
		DO UPDATE SET
			caller_phone = excluded.caller_phone,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			duration_seconds = excluded.duration_seconds,
			turn_count = excluded.turn_count,
			transcript = excluded.transcript
	`
	_, err = s.db.ExecContext(ctx, stmt,
		rec.CallSID, rec.CallerPhone,
		rec.StartedAt.Unix(), rec.EndedAt.Unix(),
		rec.DurationSeconds, rec.TurnCount, string(transcript))
	if err != nil {
		return errors.Wrap(err, "failed to insert call record")
	}
	return nil
}

// GetCallRecord fetches one call by SID. Returns nil when absent.
func (s *Store) GetCallRecord(ctx context.Context, callSID string) (*CallRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT call_sid, caller_phone, started_at, ended_at, duration_seconds, turn_count, transcript
		FROM call_record WHERE call_sid = ?
	`, callSID)

	rec, err := scanCallRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get call record")
	}
	return rec, nil
}

// ListCallRecords returns the most recent calls, newest first.
func (s *Store) ListCallRecords(ctx context.Context, limit int) ([]*CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT call_sid, caller_phone, started_at, ended_at, duration_seconds, turn_count, transcript
		FROM call_record ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list call records")
	}
	defer rows.Close()

	var records []*CallRecord
	for rows.Next() {
		rec, err := scanCallRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan call record")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate call records")
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCallRecord(row scanner) (*CallRecord, error) {
	var (
		rec        CallRecord
		startedAt  int64
		endedAt    int64
		transcript string
	)
	if err := row.Scan(&rec.CallSID, &rec.CallerPhone, &startedAt, &endedAt,
		&rec.DurationSeconds, &rec.TurnCount, &transcript); err != nil {
		return nil, err
	}
	rec.StartedAt = time.Unix(startedAt, 0)
	rec.EndedAt = time.Unix(endedAt, 0)
	if err := json.Unmarshal([]byte(transcript), &rec.Transcript); err != nil {
		rec.Transcript = nil
	}
	return &rec, nil
}
