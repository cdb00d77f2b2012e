package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"opsmap/internal/config"
	"opsmap/internal/domain"
	"opsmap/internal/schema"
	"opsmap/internal/snapshot"
	"opsmap/internal/store"
)

// Engine wraps the document store with the organization-level operations:
// entity CRUD with referential guards, and the derived organigram, cost
// and metrics views. It holds no state between invocations; every view is
// recomputed from a fresh snapshot.
type Engine struct {
	Store  store.Store
	Config *config.Config
	Now    func() time.Time
}

func New(s store.Store, cfg *config.Config) Engine {
	return Engine{Store: s, Config: cfg, Now: time.Now}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// Snapshot materializes all five collections.
func (e Engine) Snapshot(ctx context.Context) (snapshot.Snapshot, error) {
	return snapshot.Load(ctx, e.Store)
}

func (e Engine) put(ctx context.Context, collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", collection, err)
	}
	return e.Store.Put(ctx, collection, id, data)
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// --- areas ---

func (e Engine) CreateArea(ctx context.Context, a domain.Area) (domain.Area, error) {
	if a.Name == "" {
		return domain.Area{}, errors.New("name is required")
	}
	a.ID = newID(a.ID)
	a.CreatedAt = e.timestamp()
	a.UpdatedAt = a.CreatedAt
	if err := e.put(ctx, domain.CollectionAreas, a.ID, a); err != nil {
		return domain.Area{}, err
	}
	return a, nil
}

func (e Engine) GetArea(ctx context.Context, id string) (domain.Area, error) {
	rec, err := e.Store.GetByID(ctx, domain.CollectionAreas, id)
	if err != nil {
		return domain.Area{}, err
	}
	var a domain.Area
	if err := json.Unmarshal(rec, &a); err != nil {
		return domain.Area{}, fmt.Errorf("decode area %s: %w", id, err)
	}
	a.ID = id
	return a, nil
}

func (e Engine) UpdateArea(ctx context.Context, a domain.Area) (domain.Area, error) {
	current, err := e.GetArea(ctx, a.ID)
	if err != nil {
		return domain.Area{}, err
	}
	if a.Name == "" {
		a.Name = current.Name
	}
	a.CreatedAt = current.CreatedAt
	a.UpdatedAt = e.timestamp()
	if err := e.put(ctx, domain.CollectionAreas, a.ID, a); err != nil {
		return domain.Area{}, err
	}
	return a, nil
}

// DeleteArea rejects deletion while processes still reference the area.
// The engine otherwise tolerates dangling references, but refusing here
// keeps the graph from degrading on purpose.
func (e Engine) DeleteArea(ctx context.Context, id string) error {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return err
	}
	for _, p := range snap.Processes {
		if p.AreaID == id {
			return fmt.Errorf("area %s is referenced by process %s", id, p.ID)
		}
	}
	return e.Store.Delete(ctx, domain.CollectionAreas, id)
}

func (e Engine) ListAreas(ctx context.Context) ([]domain.Area, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Area, 0, len(snap.Areas))
	for _, a := range snap.Areas {
		out = append(out, a)
	}
	sortByName(out, func(a domain.Area) (string, string) { return a.Name, a.ID })
	return out, nil
}

// --- roles ---

func (e Engine) CreateRole(ctx context.Context, r domain.Role) (domain.Role, error) {
	if r.Name == "" {
		return domain.Role{}, errors.New("name is required")
	}
	r.ID = newID(r.ID)
	r.CreatedAt = e.timestamp()
	r.UpdatedAt = r.CreatedAt
	if err := e.put(ctx, domain.CollectionRoles, r.ID, r); err != nil {
		return domain.Role{}, err
	}
	return r, nil
}

func (e Engine) GetRole(ctx context.Context, id string) (domain.Role, error) {
	rec, err := e.Store.GetByID(ctx, domain.CollectionRoles, id)
	if err != nil {
		return domain.Role{}, err
	}
	var r domain.Role
	if err := json.Unmarshal(rec, &r); err != nil {
		return domain.Role{}, fmt.Errorf("decode role %s: %w", id, err)
	}
	r.ID = id
	return r, nil
}

func (e Engine) UpdateRole(ctx context.Context, r domain.Role) (domain.Role, error) {
	current, err := e.GetRole(ctx, r.ID)
	if err != nil {
		return domain.Role{}, err
	}
	if r.Name == "" {
		r.Name = current.Name
	}
	r.CreatedAt = current.CreatedAt
	r.UpdatedAt = e.timestamp()
	if err := e.put(ctx, domain.CollectionRoles, r.ID, r); err != nil {
		return domain.Role{}, err
	}
	return r, nil
}

func (e Engine) DeleteRole(ctx context.Context, id string) error {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return err
	}
	for _, emp := range snap.Employees {
		for _, rid := range schema.EmployeeRoles(emp) {
			if rid == id {
				return fmt.Errorf("role %s is held by employee %s", id, emp.ID)
			}
		}
	}
	for _, p := range snap.Processes {
		for _, act := range p.Activities {
			if act.RoleID == id {
				return fmt.Errorf("role %s is referenced by process %s", id, p.ID)
			}
		}
	}
	for _, t := range snap.Tasks {
		for _, rid := range schema.TaskRoles(t) {
			if rid == id {
				return fmt.Errorf("role %s is referenced by task %s", id, t.ID)
			}
		}
	}
	return e.Store.Delete(ctx, domain.CollectionRoles, id)
}

func (e Engine) ListRoles(ctx context.Context) ([]domain.Role, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Role, 0, len(snap.Roles))
	for _, r := range snap.Roles {
		out = append(out, r)
	}
	sortByName(out, func(r domain.Role) (string, string) { return r.Name, r.ID })
	return out, nil
}

// --- employees ---

func (e Engine) CreateEmployee(ctx context.Context, emp domain.Employee) (domain.Employee, error) {
	if emp.Name == "" {
		return domain.Employee{}, errors.New("name is required")
	}
	// New records always use the plural form.
	emp.RoleIDs = schema.EmployeeRoles(emp)
	emp.RoleID = ""
	emp.ID = newID(emp.ID)
	emp.CreatedAt = e.timestamp()
	emp.UpdatedAt = emp.CreatedAt
	if err := e.put(ctx, domain.CollectionEmployees, emp.ID, emp); err != nil {
		return domain.Employee{}, err
	}
	return emp, nil
}

func (e Engine) GetEmployee(ctx context.Context, id string) (domain.Employee, error) {
	rec, err := e.Store.GetByID(ctx, domain.CollectionEmployees, id)
	if err != nil {
		return domain.Employee{}, err
	}
	var emp domain.Employee
	if err := json.Unmarshal(rec, &emp); err != nil {
		return domain.Employee{}, fmt.Errorf("decode employee %s: %w", id, err)
	}
	emp.ID = id
	return emp, nil
}

func (e Engine) UpdateEmployee(ctx context.Context, emp domain.Employee) (domain.Employee, error) {
	current, err := e.GetEmployee(ctx, emp.ID)
	if err != nil {
		return domain.Employee{}, err
	}
	if emp.Name == "" {
		emp.Name = current.Name
	}
	emp.RoleIDs = schema.EmployeeRoles(emp)
	emp.RoleID = ""
	emp.CreatedAt = current.CreatedAt
	emp.UpdatedAt = e.timestamp()
	if err := e.put(ctx, domain.CollectionEmployees, emp.ID, emp); err != nil {
		return domain.Employee{}, err
	}
	return emp, nil
}

func (e Engine) DeleteEmployee(ctx context.Context, id string) error {
	return e.Store.Delete(ctx, domain.CollectionEmployees, id)
}

func (e Engine) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Employee, 0, len(snap.Employees))
	for _, emp := range snap.Employees {
		out = append(out, emp)
	}
	sortByName(out, func(emp domain.Employee) (string, string) { return emp.Name, emp.ID })
	return out, nil
}

// --- processes ---

func (e Engine) CreateProcess(ctx context.Context, p domain.Process) (domain.Process, error) {
	if p.Name == "" {
		return domain.Process{}, errors.New("name is required")
	}
	p.ID = newID(p.ID)
	p.CreatedAt = e.timestamp()
	p.UpdatedAt = p.CreatedAt
	if err := e.put(ctx, domain.CollectionProcesses, p.ID, p); err != nil {
		return domain.Process{}, err
	}
	return p, nil
}

func (e Engine) GetProcess(ctx context.Context, id string) (domain.Process, error) {
	rec, err := e.Store.GetByID(ctx, domain.CollectionProcesses, id)
	if err != nil {
		return domain.Process{}, err
	}
	var p domain.Process
	if err := json.Unmarshal(rec, &p); err != nil {
		return domain.Process{}, fmt.Errorf("decode process %s: %w", id, err)
	}
	p.ID = id
	return p, nil
}

func (e Engine) UpdateProcess(ctx context.Context, p domain.Process) (domain.Process, error) {
	current, err := e.GetProcess(ctx, p.ID)
	if err != nil {
		return domain.Process{}, err
	}
	if p.Name == "" {
		p.Name = current.Name
	}
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = e.timestamp()
	if err := e.put(ctx, domain.CollectionProcesses, p.ID, p); err != nil {
		return domain.Process{}, err
	}
	return p, nil
}

func (e Engine) DeleteProcess(ctx context.Context, id string) error {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return err
	}
	for _, t := range snap.Tasks {
		for _, pid := range schema.TaskProcesses(t) {
			if pid == id {
				return fmt.Errorf("process %s is referenced by task %s", id, t.ID)
			}
		}
	}
	return e.Store.Delete(ctx, domain.CollectionProcesses, id)
}

func (e Engine) ListProcesses(ctx context.Context) ([]domain.Process, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Process, 0, len(snap.Processes))
	for _, p := range snap.Processes {
		out = append(out, p)
	}
	sortByName(out, func(p domain.Process) (string, string) { return p.Name, p.ID })
	return out, nil
}

// --- tasks ---

func (e Engine) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if t.Name == "" {
		return domain.Task{}, errors.New("name is required")
	}
	t.ID = newID(t.ID)
	t.CreatedAt = e.timestamp()
	t.UpdatedAt = t.CreatedAt
	if err := e.put(ctx, domain.CollectionTasks, t.ID, t); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	rec, err := e.Store.GetByID(ctx, domain.CollectionTasks, id)
	if err != nil {
		return domain.Task{}, err
	}
	var t domain.Task
	if err := json.Unmarshal(rec, &t); err != nil {
		return domain.Task{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	t.ID = id
	return t, nil
}

func (e Engine) UpdateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	current, err := e.GetTask(ctx, t.ID)
	if err != nil {
		return domain.Task{}, err
	}
	if t.Name == "" {
		t.Name = current.Name
	}
	t.CreatedAt = current.CreatedAt
	t.UpdatedAt = e.timestamp()
	if err := e.put(ctx, domain.CollectionTasks, t.ID, t); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) DeleteTask(ctx context.Context, id string) error {
	return e.Store.Delete(ctx, domain.CollectionTasks, id)
}

func (e Engine) ListTasks(ctx context.Context) ([]domain.Task, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(snap.Tasks))
	for _, t := range snap.Tasks {
		out = append(out, t)
	}
	sortByName(out, func(t domain.Task) (string, string) { return t.Name, t.ID })
	return out, nil
}

func sortByName[T any](items []T, key func(T) (name, id string)) {
	sort.Slice(items, func(i, j int) bool {
		ni, ii := key(items[i])
		nj, ij := key(items[j])
		if ni != nj {
			return ni < nj
		}
		return ii < ij
	})
}
