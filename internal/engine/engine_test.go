package engine_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"opsmap/internal/config"
	"opsmap/internal/db"
	"opsmap/internal/domain"
	"opsmap/internal/engine"
	"opsmap/internal/migrate"
	"opsmap/internal/store"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s := store.NewSQLite(conn, "tester")
	eng := engine.New(s, config.Default("org-1"))
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func TestEntityLifecycle(t *testing.T) {
	env := newTestEnv(t)
	area, err := env.Engine.CreateArea(env.Ctx, domain.Area{Name: "Sales"})
	if err != nil {
		t.Fatalf("create area: %v", err)
	}
	if area.ID == "" || area.CreatedAt == "" {
		t.Fatalf("missing generated fields: %+v", area)
	}
	got, err := env.Engine.GetArea(env.Ctx, area.ID)
	if err != nil || got.Name != "Sales" {
		t.Fatalf("get area: %v %+v", err, got)
	}
	got.Description = "revenue"
	if _, err := env.Engine.UpdateArea(env.Ctx, got); err != nil {
		t.Fatalf("update area: %v", err)
	}
	updated, _ := env.Engine.GetArea(env.Ctx, area.ID)
	if updated.Description != "revenue" || updated.CreatedAt != area.CreatedAt {
		t.Fatalf("update lost fields: %+v", updated)
	}
	if err := env.Engine.DeleteArea(env.Ctx, area.ID); err != nil {
		t.Fatalf("delete area: %v", err)
	}
	if _, err := env.Engine.GetArea(env.Ctx, area.ID); err != store.ErrNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateRequiresName(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateTask(env.Ctx, domain.Task{}); err == nil {
		t.Fatalf("expected name validation error")
	}
}

func TestDeleteGuards(t *testing.T) {
	env := newTestEnv(t)
	area, _ := env.Engine.CreateArea(env.Ctx, domain.Area{Name: "Ops"})
	role, _ := env.Engine.CreateRole(env.Ctx, domain.Role{Name: "Clerk"})
	task, _ := env.Engine.CreateTask(env.Ctx, domain.Task{Name: "File"})
	proc, _ := env.Engine.CreateProcess(env.Ctx, domain.Process{
		Name: "Filing", AreaID: area.ID,
		Activities: []domain.Activity{{Name: "file", TaskID: task.ID, RoleID: role.ID}},
	})
	if _, err := env.Engine.CreateEmployee(env.Ctx, domain.Employee{Name: "Ana", RoleIDs: []string{role.ID}}); err != nil {
		t.Fatalf("create employee: %v", err)
	}

	if err := env.Engine.DeleteArea(env.Ctx, area.ID); err == nil {
		t.Fatalf("area with processes must not delete")
	}
	if err := env.Engine.DeleteRole(env.Ctx, role.ID); err == nil {
		t.Fatalf("role in use must not delete")
	}

	legacy, _ := env.Engine.CreateTask(env.Ctx, domain.Task{Name: "Legacy", ProcessID: proc.ID})
	if err := env.Engine.DeleteProcess(env.Ctx, proc.ID); err == nil {
		t.Fatalf("process referenced by task must not delete")
	}
	if err := env.Engine.DeleteTask(env.Ctx, legacy.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if err := env.Engine.DeleteProcess(env.Ctx, proc.ID); err != nil {
		t.Fatalf("delete process after task gone: %v", err)
	}
}

func TestOrganigramAndCostEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	area, _ := env.Engine.CreateArea(env.Ctx, domain.Area{Name: "Finance"})
	role, _ := env.Engine.CreateRole(env.Ctx, domain.Role{Name: "Accountant"})
	_, _ = env.Engine.CreateEmployee(env.Ctx, domain.Employee{Name: "Maria", Salary: 96000, RoleIDs: []string{role.ID}})
	_, _ = env.Engine.CreateEmployee(env.Ctx, domain.Employee{Name: "Jose", Salary: 64000, RoleID: role.ID})
	task, _ := env.Engine.CreateTask(env.Ctx, domain.Task{Name: "Close books", EstimatedTime: 120})
	_, err := env.Engine.CreateProcess(env.Ctx, domain.Process{
		Name: "Monthly close", AreaID: area.ID,
		Activities: []domain.Activity{{Name: "close", TaskID: task.ID, RoleID: role.ID}},
	})
	if err != nil {
		t.Fatalf("create process: %v", err)
	}

	org, err := env.Engine.Organigram(env.Ctx)
	if err != nil {
		t.Fatalf("organigram: %v", err)
	}
	if len(org) != 1 || org[0].Name != "Finance" || len(org[0].Roles) != 1 {
		t.Fatalf("unexpected organigram: %+v", org)
	}
	emps := org[0].Roles[0].Employees
	if len(emps) != 2 || emps[0].Name != "Jose" || emps[1].Name != "Maria" {
		t.Fatalf("employees: %+v", emps)
	}

	c, err := env.Engine.TaskCost(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if c == nil || *c != 1000 {
		t.Fatalf("cost = %v, want 1000", c)
	}

	if _, err := env.Engine.TaskCost(env.Ctx, "missing"); err != store.ErrNotFound {
		t.Fatalf("expected not found for unknown task, got %v", err)
	}
}

func TestMetricsEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	_, _ = env.Engine.CreateTask(env.Ctx, domain.Task{Name: "Orphan"})
	rep, err := env.Engine.Metrics(env.Ctx)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if rep.Systematization.TasksWithoutProcess.Total != 1 {
		t.Fatalf("systematization: %+v", rep.Systematization)
	}
	if rep.Documentation.Tasks.Rate != 0 {
		t.Fatalf("documentation: %+v", rep.Documentation.Tasks)
	}
}

func TestWatchRecomputesOnMutation(t *testing.T) {
	env := newTestEnv(t)
	var updates []engine.Update
	unsub := env.Engine.Watch(env.Ctx, func(u engine.Update) {
		updates = append(updates, u)
	})
	defer unsub()

	if _, err := env.Engine.CreateArea(env.Ctx, domain.Area{Name: "Sales"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	if updates[0].Collection != domain.CollectionAreas {
		t.Fatalf("update collection: %+v", updates[0])
	}
	if updates[0].Reports.Documentation.Areas.Total != 1 {
		t.Fatalf("update not recomputed from fresh snapshot: %+v", updates[0].Reports.Documentation.Areas)
	}
}

func TestSnapshotImportBothShapes(t *testing.T) {
	env := newTestEnv(t)
	payload := `{
		"areas": {"a1": {"name": "Sales"}},
		"tasks": [{"id": "t1", "name": "Quote", "successCriteria": "sent"}]
	}`
	n, err := env.Engine.ImportSnapshot(env.Ctx, []byte(payload))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported %d records, want 2", n)
	}
	task, err := env.Engine.GetTask(env.Ctx, "t1")
	if err != nil {
		t.Fatalf("get imported task: %v", err)
	}
	if len(task.SuccessCriteria) != 1 || task.SuccessCriteria[0] != "sent" {
		t.Fatalf("string-form successCriteria: %+v", task.SuccessCriteria)
	}

	out, err := env.Engine.ExportSnapshot(env.Ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(string(out), `"areas"`) || !strings.Contains(string(out), `"t1"`) {
		t.Fatalf("export missing data: %s", out)
	}
}

func TestSearchAcrossCollections(t *testing.T) {
	env := newTestEnv(t)
	_, _ = env.Engine.CreateArea(env.Ctx, domain.Area{Name: "Información"})
	_, _ = env.Engine.CreateTask(env.Ctx, domain.Task{Name: "Enviar bazar"})
	res, err := env.Engine.Search(env.Ctx, "informacion")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Areas) != 1 || len(res.Tasks) != 0 {
		t.Fatalf("search results: %+v", res)
	}
	res, _ = env.Engine.Search(env.Ctx, "vasar")
	if len(res.Tasks) != 1 {
		t.Fatalf("b/v fold search: %+v", res.Tasks)
	}
}
