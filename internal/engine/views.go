package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"opsmap/internal/cost"
	"opsmap/internal/domain"
	"opsmap/internal/graph"
	"opsmap/internal/metrics"
	"opsmap/internal/search"
	"opsmap/internal/snapshot"
	"opsmap/internal/store"
)

// Organigram derives the Area -> Role -> Employee hierarchy from a fresh
// snapshot.
func (e Engine) Organigram(ctx context.Context) ([]graph.AreaNode, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	idx := graph.BuildIndex(snap)
	return graph.BuildOrganigram(snap, idx), nil
}

// Reports bundles the four health reports computed from one snapshot.
type Reports struct {
	Documentation   metrics.DocumentationReport   `json:"documentation"`
	Standardization metrics.StandardizationReport `json:"standardization"`
	Systematization metrics.SystematizationReport `json:"systematization"`
	Workload        metrics.WorkloadReport        `json:"workload"`
}

func (e Engine) previewLimit() int {
	if e.Config != nil && e.Config.Metrics.PreviewLimit > 0 {
		return e.Config.Metrics.PreviewLimit
	}
	return metrics.DefaultPreviewLimit
}

// Metrics computes all four reports over a single snapshot, so the numbers
// are mutually consistent even while writers mutate the store.
func (e Engine) Metrics(ctx context.Context) (Reports, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return Reports{}, err
	}
	return e.reportsFor(snap), nil
}

func (e Engine) reportsFor(snap snapshot.Snapshot) Reports {
	idx := graph.BuildIndex(snap)
	org := graph.BuildOrganigram(snap, idx)
	return Reports{
		Documentation:   metrics.Documentation(snap, idx),
		Standardization: metrics.Standardization(snap, idx),
		Systematization: metrics.Systematization(snap, idx, e.previewLimit()),
		Workload:        metrics.Workload(snap, idx, org),
	}
}

// TaskCost estimates one task's labor cost; nil means not computable.
func (e Engine) TaskCost(ctx context.Context, taskID string) (*float64, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.Tasks[taskID]; !ok {
		return nil, store.ErrNotFound
	}
	idx := graph.BuildIndex(snap)
	return cost.EstimateTask(taskID, snap, idx), nil
}

// SearchResults groups fuzzy matches per collection, each sorted by name.
type SearchResults struct {
	Areas     []domain.Area     `json:"areas"`
	Roles     []domain.Role     `json:"roles"`
	Employees []domain.Employee `json:"employees"`
	Processes []domain.Process  `json:"processes"`
	Tasks     []domain.Task     `json:"tasks"`
}

// Search filters every collection by the normalized free-text query.
func (e Engine) Search(ctx context.Context, query string) (SearchResults, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return SearchResults{}, err
	}
	var res SearchResults
	for _, a := range snap.Areas {
		if search.Matches(query, a.Name, a.Description) {
			res.Areas = append(res.Areas, a)
		}
	}
	for _, r := range snap.Roles {
		if search.Matches(query, r.Name, r.Description) {
			res.Roles = append(res.Roles, r)
		}
	}
	for _, emp := range snap.Employees {
		if search.Matches(query, emp.Name, emp.Email) {
			res.Employees = append(res.Employees, emp)
		}
	}
	for _, p := range snap.Processes {
		if search.Matches(query, p.Name, p.Objective) {
			res.Processes = append(res.Processes, p)
		}
	}
	for _, t := range snap.Tasks {
		if search.Matches(query, t.Name, t.Description) {
			res.Tasks = append(res.Tasks, t)
		}
	}
	sortByName(res.Areas, func(a domain.Area) (string, string) { return a.Name, a.ID })
	sortByName(res.Roles, func(r domain.Role) (string, string) { return r.Name, r.ID })
	sortByName(res.Employees, func(emp domain.Employee) (string, string) { return emp.Name, emp.ID })
	sortByName(res.Processes, func(p domain.Process) (string, string) { return p.Name, p.ID })
	sortByName(res.Tasks, func(t domain.Task) (string, string) { return t.Name, t.ID })
	return res, nil
}

// Update is one full recomputation delivered to a watcher.
type Update struct {
	Collection string           `json:"collection"`
	Organigram []graph.AreaNode `json:"organigram"`
	Reports    Reports          `json:"reports"`
}

// Watch subscribes to all five collections and delivers a full
// recomputation after every mutation. There is no incremental update path:
// recomputing from scratch is cheap and sidesteps cache invalidation
// entirely. The returned func unsubscribes.
func (e Engine) Watch(ctx context.Context, fn func(Update)) func() {
	unsubs := make([]func(), 0, len(domain.Collections))
	for _, collection := range domain.Collections {
		unsub := e.Store.Subscribe(collection, func(map[string]store.Record) {
			snap, err := e.Snapshot(ctx)
			if err != nil {
				return
			}
			idx := graph.BuildIndex(snap)
			fn(Update{
				Collection: collection,
				Organigram: graph.BuildOrganigram(snap, idx),
				Reports:    e.reportsFor(snap),
			})
		})
		unsubs = append(unsubs, unsub)
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// ExportSnapshot serializes all five collections as one keyed-map JSON
// document.
func (e Engine) ExportSnapshot(ctx context.Context) ([]byte, error) {
	out := map[string]map[string]store.Record{}
	for _, collection := range domain.Collections {
		recs, err := e.Store.GetAll(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", collection, err)
		}
		out[collection] = recs
	}
	return json.MarshalIndent(out, "", "  ")
}

// ImportSnapshot loads collections from a JSON document. Each collection
// may arrive as an array of records or as a keyed map; both normalize
// through the store adapter boundary.
func (e Engine) ImportSnapshot(ctx context.Context, data []byte) (int, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("decode snapshot: %w", err)
	}
	total := 0
	for _, collection := range domain.Collections {
		raw, ok := payload[collection]
		if !ok {
			continue
		}
		recs, err := store.NormalizeCollection(raw)
		if err != nil {
			return total, fmt.Errorf("collection %s: %w", collection, err)
		}
		for id, rec := range recs {
			if err := e.Store.Put(ctx, collection, id, rec); err != nil {
				return total, fmt.Errorf("import %s/%s: %w", collection, id, err)
			}
			total++
		}
	}
	return total, nil
}
