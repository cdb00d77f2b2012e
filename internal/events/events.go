// Package events records every document mutation in an append-only log so
// that changes to the organizational data remain auditable.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Writer struct {
	Now func() time.Time
}

type Payload map[string]any

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	Collection string `json:"collection"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// Append writes one event inside the caller's transaction so the log and
// the mutation commit or roll back together.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, collection, entityID, actorID string, payload Payload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,collection,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339), evtType, collection, nullable(entityID), actorID, string(data))
	return err
}

// TailOptions filter the event log.
type TailOptions struct {
	N          int
	Type       string
	Collection string
	EntityID   string
}

// Tail returns the most recent events, newest first.
func Tail(ctx context.Context, db *sql.DB, opts TailOptions) ([]Event, error) {
	if opts.N <= 0 {
		opts.N = 20
	}
	var (
		where []string
		args  []any
	)
	if opts.Type != "" {
		where = append(where, "type=?")
		args = append(args, opts.Type)
	}
	if opts.Collection != "" {
		where = append(where, "collection=?")
		args = append(args, opts.Collection)
	}
	if opts.EntityID != "" {
		where = append(where, "entity_id=?")
		args = append(args, opts.EntityID)
	}
	query := `SELECT id,ts,type,collection,COALESCE(entity_id,'') AS entity_id,actor_id,payload_json FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, opts.N)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.Collection, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
