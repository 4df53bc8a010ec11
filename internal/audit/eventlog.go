// Package audit appends engine events (submissions, recalculations) to
// an append-only log table for after-the-fact inspection.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type Log struct{ db *sql.DB }

func NewLog(db *sql.DB) *Log { return &Log{db: db} }

// Append records one event keyed by its natural id (attempt or test id).
func (l *Log) Append(ctx context.Context, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at) VALUES ($1,$2,$3,$4)`,
		typ, key, string(buf), time.Now().Unix())
	return err
}
