package graph_test

import (
	"reflect"
	"testing"

	"opsmap/internal/domain"
	"opsmap/internal/graph"
	"opsmap/internal/snapshot"
)

func snapWith(mut func(*snapshot.Snapshot)) snapshot.Snapshot {
	snap := snapshot.Snapshot{
		Areas:     map[string]domain.Area{},
		Roles:     map[string]domain.Role{},
		Employees: map[string]domain.Employee{},
		Processes: map[string]domain.Process{},
		Tasks:     map[string]domain.Task{},
	}
	mut(&snap)
	return snap
}

func TestOrganigramFromActivities(t *testing.T) {
	snap := snapWith(func(s *snapshot.Snapshot) {
		s.Areas["a1"] = domain.Area{ID: "a1", Name: "Sales"}
		s.Roles["r1"] = domain.Role{ID: "r1", Name: "Seller"}
		s.Employees["e1"] = domain.Employee{ID: "e1", Name: "Ana", RoleIDs: []string{"r1"}}
		s.Tasks["t1"] = domain.Task{ID: "t1", Name: "Quote"}
		s.Processes["p1"] = domain.Process{
			ID: "p1", Name: "Selling", AreaID: "a1",
			Activities: []domain.Activity{{Name: "quote", TaskID: "t1", RoleID: "r1"}},
		}
	})
	org := graph.BuildOrganigram(snap, graph.BuildIndex(snap))
	if len(org) != 1 || org[0].ID != "a1" {
		t.Fatalf("expected one area, got %+v", org)
	}
	if len(org[0].Roles) != 1 || org[0].Roles[0].ID != "r1" {
		t.Fatalf("expected role r1, got %+v", org[0].Roles)
	}
	if len(org[0].Roles[0].Employees) != 1 || org[0].Roles[0].Employees[0].Name != "Ana" {
		t.Fatalf("expected Ana under r1, got %+v", org[0].Roles[0].Employees)
	}
}

func TestOrganigramRoleWithoutEmployees(t *testing.T) {
	snap := snapWith(func(s *snapshot.Snapshot) {
		s.Areas["a1"] = domain.Area{ID: "a1", Name: "Ops"}
		s.Roles["r1"] = domain.Role{ID: "r1", Name: "Clerk"}
		s.Processes["p1"] = domain.Process{
			ID: "p1", Name: "Filing", AreaID: "a1",
			Activities: []domain.Activity{{Name: "file", TaskID: "tx", RoleID: "r1"}},
		}
	})
	org := graph.BuildOrganigram(snap, graph.BuildIndex(snap))
	if len(org) != 1 || len(org[0].Roles) != 1 {
		t.Fatalf("vacant role must still appear: %+v", org)
	}
	if n := len(org[0].Roles[0].Employees); n != 0 {
		t.Fatalf("expected no employees, got %d", n)
	}
}

func TestOrganigramLegacyTaskLinks(t *testing.T) {
	snap := snapWith(func(s *snapshot.Snapshot) {
		s.Areas["a1"] = domain.Area{ID: "a1", Name: "Finance"}
		s.Roles["r1"] = domain.Role{ID: "r1", Name: "Accountant"}
		s.Processes["p1"] = domain.Process{ID: "p1", Name: "Closing", AreaID: "a1"}
		s.Tasks["t1"] = domain.Task{ID: "t1", Name: "Reconcile", RoleID: "r1", ProcessID: "p1"}
	})
	org := graph.BuildOrganigram(snap, graph.BuildIndex(snap))
	if len(org) != 1 || len(org[0].Roles) != 1 || org[0].Roles[0].ID != "r1" {
		t.Fatalf("legacy singular fields must place the role: %+v", org)
	}
}

func TestOrganigramLegacyProcessTaskIDs(t *testing.T) {
	snap := snapWith(func(s *snapshot.Snapshot) {
		s.Areas["a1"] = domain.Area{ID: "a1", Name: "Support"}
		s.Roles["r1"] = domain.Role{ID: "r1", Name: "Agent"}
		s.Processes["p1"] = domain.Process{ID: "p1", Name: "Intake", AreaID: "a1", TaskIDs: []string{"t1"}}
		s.Tasks["t1"] = domain.Task{ID: "t1", Name: "Triage", RoleIDs: []string{"r1"}}
	})
	org := graph.BuildOrganigram(snap, graph.BuildIndex(snap))
	if len(org) != 1 || len(org[0].Roles) != 1 || org[0].Roles[0].ID != "r1" {
		t.Fatalf("legacy taskIds process must place the task's role: %+v", org)
	}
}

func TestOrphanRolePlacedViaAssignedEmployee(t *testing.T) {
	snap := snapWith(func(s *snapshot.Snapshot) {
		s.Areas["a1"] = domain.Area{ID: "a1", Name: "Admin"}
		s.Areas["a2"] = domain.Area{ID: "a2", Name: "Sales"}
		s.Roles["r1"] = domain.Role{ID: "r1", Name: "Assistant"}
		s.Employees["e1"] = domain.Employee{ID: "e1", Name: "Luis", RoleIDs: []string{"r1"}}
		s.Tasks["t1"] = domain.Task{ID: "t1", Name: "Archive", AssignedEmployeeID: "e1"}
		s.Processes["p1"] = domain.Process{
			ID: "p1", Name: "Paperwork", AreaID: "a1",
			Activities: []domain.Activity{{Name: "archive", TaskID: "t1"}},
		}
		// Unrelated area with its own process, to prove the role does not
		// leak there.
		s.Processes["p2"] = domain.Process{ID: "p2", Name: "Selling", AreaID: "a2"}
	})
	org := graph.BuildOrganigram(snap, graph.BuildIndex(snap))
	if len(org) != 1 {
		t.Fatalf("expected exactly one area in organigram, got %+v", org)
	}
	if org[0].ID != "a1" || len(org[0].Roles) != 1 || org[0].Roles[0].ID != "r1" {
		t.Fatalf("orphan role must surface under a1 only: %+v", org)
	}
}

func TestTaskRoleDeduplication(t *testing.T) {
	snap := snapWith(func(s *snapshot.Snapshot) {
		s.Roles["r1"] = domain.Role{ID: "r1", Name: "Operator"}
		s.Tasks["t1"] = domain.Task{ID: "t1", Name: "Run", RoleID: "r1"}
		s.Processes["p1"] = domain.Process{
			ID: "p1", Name: "Operate",
			Activities: []domain.Activity{{Name: "run", TaskID: "t1", RoleID: "r1"}},
		}
	})
	idx := graph.BuildIndex(snap)
	roles := idx.Links("t1").RoleIDs
	if !reflect.DeepEqual(roles, []string{"r1"}) {
		t.Fatalf("legacy and activity role must deduplicate: %v", roles)
	}
}

func TestActivityPositionAndProcesses(t *testing.T) {
	snap := snapWith(func(s *snapshot.Snapshot) {
		s.Tasks["t1"] = domain.Task{ID: "t1", Name: "Step"}
		s.Processes["p1"] = domain.Process{
			ID: "p1", Name: "Flow",
			Activities: []domain.Activity{
				{Name: "first", TaskID: "t0"},
				{Name: "second", TaskID: "t1", RoleID: "r9"},
			},
		}
	})
	idx := graph.BuildIndex(snap)
	links := idx.Links("t1")
	if !reflect.DeepEqual(links.ProcessIDs, []string{"p1"}) {
		t.Fatalf("processes: %v", links.ProcessIDs)
	}
	if links.Positions["p1"] != 1 {
		t.Fatalf("position: %v", links.Positions)
	}
}

func TestOrganigramSentinelForDanglingReferences(t *testing.T) {
	snap := snapWith(func(s *snapshot.Snapshot) {
		// Neither the area nor the role exist as records.
		s.Processes["p1"] = domain.Process{
			ID: "p1", Name: "Ghost", AreaID: "a-gone",
			Activities: []domain.Activity{{Name: "x", TaskID: "t-gone", RoleID: "r-gone"}},
		}
	})
	org := graph.BuildOrganigram(snap, graph.BuildIndex(snap))
	if len(org) != 1 {
		t.Fatalf("dangling references must not abort derivation: %+v", org)
	}
	if org[0].Name != graph.UnknownName || org[0].Roles[0].Name != graph.UnknownName {
		t.Fatalf("expected sentinel names, got %+v", org)
	}
}

func TestOrganigramDeterministic(t *testing.T) {
	snap := snapWith(func(s *snapshot.Snapshot) {
		s.Areas["a1"] = domain.Area{ID: "a1", Name: "B Area"}
		s.Areas["a2"] = domain.Area{ID: "a2", Name: "A Area"}
		s.Roles["r1"] = domain.Role{ID: "r1", Name: "Zeta"}
		s.Roles["r2"] = domain.Role{ID: "r2", Name: "Alpha"}
		s.Employees["e1"] = domain.Employee{ID: "e1", Name: "Zoe", RoleIDs: []string{"r1", "r2"}}
		s.Employees["e2"] = domain.Employee{ID: "e2", Name: "Abe", RoleIDs: []string{"r1"}}
		s.Processes["p1"] = domain.Process{
			ID: "p1", Name: "One", AreaID: "a1",
			Activities: []domain.Activity{{Name: "x", TaskID: "t1", RoleID: "r1"}, {Name: "y", TaskID: "t2", RoleID: "r2"}},
		}
		s.Processes["p2"] = domain.Process{
			ID: "p2", Name: "Two", AreaID: "a2",
			Activities: []domain.Activity{{Name: "z", TaskID: "t3", RoleID: "r1"}},
		}
	})
	first := graph.BuildOrganigram(snap, graph.BuildIndex(snap))
	for range 10 {
		again := graph.BuildOrganigram(snap, graph.BuildIndex(snap))
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("derivation is not deterministic:\n%+v\n%+v", first, again)
		}
	}
	if first[0].Name != "A Area" || first[1].Name != "B Area" {
		t.Fatalf("areas must sort by name: %+v", first)
	}
	roles := first[1].Roles
	if roles[0].Name != "Alpha" || roles[1].Name != "Zeta" {
		t.Fatalf("roles must sort by name: %+v", roles)
	}
	if emps := roles[1].Employees; emps[0].Name != "Abe" || emps[1].Name != "Zoe" {
		t.Fatalf("employees must sort by name: %+v", emps)
	}
}

func TestEmployeeAppearsInEveryAreaHoldingItsRole(t *testing.T) {
	snap := snapWith(func(s *snapshot.Snapshot) {
		s.Areas["a1"] = domain.Area{ID: "a1", Name: "North"}
		s.Areas["a2"] = domain.Area{ID: "a2", Name: "South"}
		s.Roles["r1"] = domain.Role{ID: "r1", Name: "Driver"}
		s.Employees["e1"] = domain.Employee{ID: "e1", Name: "Mia", RoleID: "r1"}
		s.Processes["p1"] = domain.Process{ID: "p1", Name: "N", AreaID: "a1", Activities: []domain.Activity{{TaskID: "t1", RoleID: "r1"}}}
		s.Processes["p2"] = domain.Process{ID: "p2", Name: "S", AreaID: "a2", Activities: []domain.Activity{{TaskID: "t2", RoleID: "r1"}}}
	})
	org := graph.BuildOrganigram(snap, graph.BuildIndex(snap))
	if len(org) != 2 {
		t.Fatalf("expected two areas: %+v", org)
	}
	for _, area := range org {
		if len(area.Roles) != 1 || len(area.Roles[0].Employees) != 1 || area.Roles[0].Employees[0].ID != "e1" {
			t.Fatalf("employee must appear under both areas: %+v", org)
		}
	}
}
