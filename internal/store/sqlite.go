package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"opsmap/internal/events"
)

// SQLite persists collections as JSON documents in a single table and
// doubles as the change-notification source: subscribers fire in-process
// after each committed mutation.
type SQLite struct {
	DB     *sql.DB
	Actor  string
	Events events.Writer
	Now    func() time.Time

	mu          sync.Mutex
	subscribers map[string]map[int]func(map[string]Record)
	nextSub     int
}

func NewSQLite(db *sql.DB, actor string) *SQLite {
	return &SQLite{
		DB:          db,
		Actor:       actor,
		Events:      events.Writer{},
		Now:         time.Now,
		subscribers: map[string]map[int]func(map[string]Record){},
	}
}

func (s *SQLite) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLite) GetAll(ctx context.Context, collection string) (map[string]Record, error) {
	return getAll(ctx, s.DB, collection)
}

func getAll(ctx context.Context, q querier, collection string) (map[string]Record, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, body FROM documents WHERE collection=?`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]Record{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		out[id] = Record(body)
	}
	return out, rows.Err()
}

func (s *SQLite) GetByID(ctx context.Context, collection, id string) (Record, error) {
	var body string
	err := s.DB.QueryRowContext(ctx, `SELECT body FROM documents WHERE collection=? AND id=?`, collection, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return Record(body), nil
}

func (s *SQLite) Put(ctx context.Context, collection, id string, rec Record) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx,
		`UPDATE documents SET body=?, updated_at=? WHERE collection=? AND id=?`,
		string(rec), s.now().UTC().Format(time.RFC3339), collection, id)
	if err != nil {
		return err
	}
	evtType := "document.updated"
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents(collection,id,body,updated_at) VALUES (?,?,?,?)`,
			collection, id, string(rec), s.now().UTC().Format(time.RFC3339)); err != nil {
			return err
		}
		evtType = "document.created"
	}
	if err := s.Events.Append(ctx, tx, evtType, collection, id, s.Actor, nil); err != nil {
		return err
	}
	// Read the post-mutation contents inside the transaction so the write's
	// fate never depends on anything after commit.
	snapshot, err := getAll(ctx, tx, collection)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.notify(collection, snapshot)
	return nil
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection=? AND id=?`, collection, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := s.Events.Append(ctx, tx, "document.deleted", collection, id, s.Actor, nil); err != nil {
		return err
	}
	snapshot, err := getAll(ctx, tx, collection)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.notify(collection, snapshot)
	return nil
}

func (s *SQLite) Subscribe(collection string, fn func(map[string]Record)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribers[collection] == nil {
		s.subscribers[collection] = map[int]func(map[string]Record){}
	}
	id := s.nextSub
	s.nextSub++
	s.subscribers[collection][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers[collection], id)
	}
}

func (s *SQLite) notify(collection string, snapshot map[string]Record) {
	s.mu.Lock()
	fns := make([]func(map[string]Record), 0, len(s.subscribers[collection]))
	for _, fn := range s.subscribers[collection] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snapshot)
	}
}
