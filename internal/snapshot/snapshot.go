// Package snapshot materializes the five collections into typed maps. A
// load is the engine's only suspension point: reads fan out concurrently
// and all complete before any derivation starts. The result is a plain
// value, so every downstream computation is a pure function over it.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"opsmap/internal/domain"
	"opsmap/internal/store"
)

type Snapshot struct {
	Areas     map[string]domain.Area
	Roles     map[string]domain.Role
	Employees map[string]domain.Employee
	Processes map[string]domain.Process
	Tasks     map[string]domain.Task
}

// Load fetches all five collections concurrently and decodes them. The
// reads share one consistency window, not a transaction: concurrent
// writers may interleave, and callers are expected to reload on change
// notifications rather than patch incrementally.
func Load(ctx context.Context, s store.Store) (Snapshot, error) {
	raw := make(map[string]map[string]store.Record, len(domain.Collections))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, collection := range domain.Collections {
		g.Go(func() error {
			recs, err := s.GetAll(gctx, collection)
			if err != nil {
				return fmt.Errorf("load %s: %w", collection, err)
			}
			mu.Lock()
			raw[collection] = recs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return Decode(raw), nil
}

// Decode turns raw keyed records into a typed snapshot. Records that fail
// to decode are dropped; a partial snapshot beats no snapshot, and the
// derivations already tolerate missing entities.
func Decode(raw map[string]map[string]store.Record) Snapshot {
	snap := Snapshot{
		Areas:     map[string]domain.Area{},
		Roles:     map[string]domain.Role{},
		Employees: map[string]domain.Employee{},
		Processes: map[string]domain.Process{},
		Tasks:     map[string]domain.Task{},
	}
	for id, rec := range raw[domain.CollectionAreas] {
		var a domain.Area
		if err := json.Unmarshal(rec, &a); err != nil {
			continue
		}
		a.ID = id
		snap.Areas[id] = a
	}
	for id, rec := range raw[domain.CollectionRoles] {
		var r domain.Role
		if err := json.Unmarshal(rec, &r); err != nil {
			continue
		}
		r.ID = id
		snap.Roles[id] = r
	}
	for id, rec := range raw[domain.CollectionEmployees] {
		var e domain.Employee
		if err := json.Unmarshal(rec, &e); err != nil {
			continue
		}
		e.ID = id
		snap.Employees[id] = e
	}
	for id, rec := range raw[domain.CollectionProcesses] {
		var p domain.Process
		if err := json.Unmarshal(rec, &p); err != nil {
			continue
		}
		p.ID = id
		snap.Processes[id] = p
	}
	for id, rec := range raw[domain.CollectionTasks] {
		var t domain.Task
		if err := json.Unmarshal(rec, &t); err != nil {
			continue
		}
		t.ID = id
		snap.Tasks[id] = t
	}
	return snap
}
