// Package graph reconstructs the implicit organization chart and the
// task/role/process association index from a snapshot. Nothing here is
// persisted; every caller re-derives from the current snapshot so edits
// elsewhere are reflected immediately.
package graph

import (
	"sort"

	"opsmap/internal/schema"
	"opsmap/internal/snapshot"
)

// UnknownName labels nodes reached through a reference whose target record
// no longer exists. Dangling references never abort a derivation.
const UnknownName = "(unknown)"

// TaskLinks are a task's derived associations: every process that executes
// it, every role that performs it (activity roles unioned with the task's
// own legacy role fields), and its position in each owning process's
// activity order.
type TaskLinks struct {
	ProcessIDs []string       `json:"processIds"`
	RoleIDs    []string       `json:"roleIds"`
	Positions  map[string]int `json:"positions,omitempty"`
}

// Index holds the task-centric view of the graph.
type Index struct {
	Tasks map[string]TaskLinks
	// ProcessTasks lists, per process, the ids of existing tasks it
	// references, in activity order.
	ProcessTasks map[string][]string
}

type EmployeeRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RoleNode struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Employees []EmployeeRef `json:"employees"`
}

type AreaNode struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Roles []RoleNode `json:"roles"`
}

// BuildIndex derives task links for every task in the snapshot.
func BuildIndex(snap snapshot.Snapshot) Index {
	links := make(map[string]*TaskLinks, len(snap.Tasks))
	ensure := func(taskID string) *TaskLinks {
		if l, ok := links[taskID]; ok {
			return l
		}
		l := &TaskLinks{Positions: map[string]int{}}
		links[taskID] = l
		return l
	}

	processTasks := map[string][]string{}
	addProcessTask := func(processID, taskID string) {
		for _, existing := range processTasks[processID] {
			if existing == taskID {
				return
			}
		}
		processTasks[processID] = append(processTasks[processID], taskID)
	}

	for pid, proc := range snap.Processes {
		for i, act := range proc.Activities {
			if act.TaskID == "" {
				continue
			}
			if _, exists := snap.Tasks[act.TaskID]; !exists {
				continue
			}
			l := ensure(act.TaskID)
			l.ProcessIDs = appendUnique(l.ProcessIDs, pid)
			if act.RoleID != "" {
				l.RoleIDs = appendUnique(l.RoleIDs, act.RoleID)
			}
			if _, seen := l.Positions[pid]; !seen {
				l.Positions[pid] = i
			}
			addProcessTask(pid, act.TaskID)
		}
		// Legacy processes carry a bare ordered task list instead of
		// activities; position is still meaningful, the role is not.
		if len(proc.Activities) == 0 {
			for i, tid := range proc.TaskIDs {
				if _, exists := snap.Tasks[tid]; !exists {
					continue
				}
				l := ensure(tid)
				l.ProcessIDs = appendUnique(l.ProcessIDs, pid)
				if _, seen := l.Positions[pid]; !seen {
					l.Positions[pid] = i
				}
				addProcessTask(pid, tid)
			}
		}
	}

	for tid, task := range snap.Tasks {
		legacyRoles := schema.TaskRoles(task)
		legacyProcs := schema.TaskProcesses(task)
		if len(legacyRoles) == 0 && len(legacyProcs) == 0 {
			continue
		}
		l := ensure(tid)
		for _, rid := range legacyRoles {
			l.RoleIDs = appendUnique(l.RoleIDs, rid)
		}
		for _, pid := range legacyProcs {
			if _, exists := snap.Processes[pid]; !exists {
				continue
			}
			l.ProcessIDs = appendUnique(l.ProcessIDs, pid)
			addProcessTask(pid, tid)
		}
	}

	out := Index{Tasks: make(map[string]TaskLinks, len(links)), ProcessTasks: processTasks}
	for tid, l := range links {
		sort.Strings(l.ProcessIDs)
		sort.Strings(l.RoleIDs)
		if len(l.Positions) == 0 {
			l.Positions = nil
		}
		out.Tasks[tid] = *l
	}
	return out
}

// Links returns the derived links for one task, empty when none exist.
func (idx Index) Links(taskID string) TaskLinks {
	if l, ok := idx.Tasks[taskID]; ok {
		return l
	}
	return TaskLinks{}
}

// BuildOrganigram derives the Area -> Role -> Employee hierarchy. The
// role-to-area mapping is resolved in priority order: explicit activity
// links first, then legacy task role/process fields, then a last-resort
// reconciliation that routes otherwise unplaced roles through direct
// employee-task assignments. Output is sorted at every level so identical
// snapshots produce identical structures.
func BuildOrganigram(snap snapshot.Snapshot, idx Index) []AreaNode {
	pairs := map[string]map[string]bool{}
	register := func(areaID, roleID string) {
		if areaID == "" || roleID == "" {
			return
		}
		if pairs[areaID] == nil {
			pairs[areaID] = map[string]bool{}
		}
		pairs[areaID][roleID] = true
	}

	// Primary: processes with activities place their roles directly.
	for _, proc := range snap.Processes {
		if proc.AreaID == "" {
			continue
		}
		for _, act := range proc.Activities {
			register(proc.AreaID, act.RoleID)
		}
	}

	// Legacy processes: a bare taskIds list says nothing about roles, so
	// the executing role is recovered from each task's own legacy fields.
	for _, proc := range snap.Processes {
		if proc.AreaID == "" || len(proc.Activities) > 0 {
			continue
		}
		for _, tid := range proc.TaskIDs {
			task, ok := snap.Tasks[tid]
			if !ok {
				continue
			}
			for _, rid := range schema.TaskRoles(task) {
				register(proc.AreaID, rid)
			}
		}
	}

	// Legacy tasks: a task carrying both role and process links places its
	// roles in every referenced process's area.
	for _, task := range snap.Tasks {
		roles := schema.TaskRoles(task)
		if len(roles) == 0 {
			continue
		}
		for _, pid := range schema.TaskProcesses(task) {
			proc, ok := snap.Processes[pid]
			if !ok || proc.AreaID == "" {
				continue
			}
			for _, rid := range roles {
				register(proc.AreaID, rid)
			}
		}
	}

	// Orphan-role reconciliation: roles held by employees but absent from
	// every (area, role) pair so far. The only remaining trail is the
	// direct assignedEmployeeId field on tasks.
	placed := map[string]bool{}
	for _, roleSet := range pairs {
		for rid := range roleSet {
			placed[rid] = true
		}
	}
	for rid := range snap.Roles {
		if placed[rid] {
			continue
		}
		for _, emp := range snap.Employees {
			if !contains(schema.EmployeeRoles(emp), rid) {
				continue
			}
			for tid, task := range snap.Tasks {
				if task.AssignedEmployeeID != emp.ID {
					continue
				}
				for _, pid := range idx.Links(tid).ProcessIDs {
					proc, ok := snap.Processes[pid]
					if !ok || proc.AreaID == "" {
						continue
					}
					register(proc.AreaID, rid)
				}
			}
		}
	}

	// Employee population: an employee lands in every area bucket that
	// contains one of their roles.
	members := map[string]map[string][]EmployeeRef{}
	for areaID, roleSet := range pairs {
		members[areaID] = map[string][]EmployeeRef{}
		for rid := range roleSet {
			var refs []EmployeeRef
			seen := map[string]bool{}
			for eid, emp := range snap.Employees {
				if seen[eid] || !contains(schema.EmployeeRoles(emp), rid) {
					continue
				}
				seen[eid] = true
				refs = append(refs, EmployeeRef{ID: eid, Name: emp.Name})
			}
			members[areaID][rid] = refs
		}
	}

	out := make([]AreaNode, 0, len(pairs))
	for areaID, roleSet := range pairs {
		area := AreaNode{ID: areaID, Name: UnknownName}
		if a, ok := snap.Areas[areaID]; ok {
			area.Name = a.Name
		}
		for rid := range roleSet {
			node := RoleNode{ID: rid, Name: UnknownName}
			if r, ok := snap.Roles[rid]; ok {
				node.Name = r.Name
			}
			node.Employees = members[areaID][rid]
			sort.Slice(node.Employees, func(i, j int) bool {
				if node.Employees[i].Name != node.Employees[j].Name {
					return node.Employees[i].Name < node.Employees[j].Name
				}
				return node.Employees[i].ID < node.Employees[j].ID
			})
			area.Roles = append(area.Roles, node)
		}
		sort.Slice(area.Roles, func(i, j int) bool {
			if area.Roles[i].Name != area.Roles[j].Name {
				return area.Roles[i].Name < area.Roles[j].Name
			}
			return area.Roles[i].ID < area.Roles[j].ID
		})
		out = append(out, area)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func contains(list []string, v string) bool {
	for _, existing := range list {
		if existing == v {
			return true
		}
	}
	return false
}
