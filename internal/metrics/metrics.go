// Package metrics aggregates documentation, standardization,
// systematization and workload health across the whole organizational
// graph. Each report is an independent pure function of the same snapshot;
// none depends on another report's output.
package metrics

import (
	"math"
	"sort"

	"opsmap/internal/cost"
	"opsmap/internal/graph"
	"opsmap/internal/schema"
	"opsmap/internal/snapshot"
)

// DefaultPreviewLimit caps the actionable lists in the systematization
// report; the remainder shows up as an overflow counter.
const DefaultPreviewLimit = 5

type TaskDocumentation struct {
	Total               int `json:"total"`
	WithDescription     int `json:"with_description"`
	WithExecutionSteps  int `json:"with_execution_steps"`
	WithSuccessCriteria int `json:"with_success_criteria"`
	WithCommonErrors    int `json:"with_common_errors"`
	FullyDocumented     int `json:"fully_documented"`
	DescriptionRate     int `json:"description_rate"`
	ExecutionStepsRate  int `json:"execution_steps_rate"`
	SuccessCriteriaRate int `json:"success_criteria_rate"`
	CommonErrorsRate    int `json:"common_errors_rate"`
	Rate                int `json:"rate"`
}

type ProcessDocumentation struct {
	Total           int `json:"total"`
	WithObjective   int `json:"with_objective"`
	WithTasks       int `json:"with_tasks"`
	FullyDocumented int `json:"fully_documented"`
	ObjectiveRate   int `json:"objective_rate"`
	TasksRate       int `json:"tasks_rate"`
	Rate            int `json:"rate"`
}

type AreaDocumentation struct {
	Total           int `json:"total"`
	WithDescription int `json:"with_description"`
	WithProcesses   int `json:"with_processes"`
	FullyDocumented int `json:"fully_documented"`
	DescriptionRate int `json:"description_rate"`
	ProcessesRate   int `json:"processes_rate"`
	Rate            int `json:"rate"`
}

type DocumentationReport struct {
	Tasks     TaskDocumentation    `json:"tasks"`
	Processes ProcessDocumentation `json:"processes"`
	Areas     AreaDocumentation    `json:"areas"`
}

// Documentation measures how completely each entity kind is described.
func Documentation(snap snapshot.Snapshot, idx graph.Index) DocumentationReport {
	var rep DocumentationReport

	rep.Tasks.Total = len(snap.Tasks)
	for _, t := range snap.Tasks {
		hasDesc := t.Description != ""
		hasSteps := len(t.ExecutionSteps) > 0
		hasCriteria := len(schema.TaskSuccessCriteria(t)) > 0
		hasErrors := len(t.CommonErrors) > 0
		if hasDesc {
			rep.Tasks.WithDescription++
		}
		if hasSteps {
			rep.Tasks.WithExecutionSteps++
		}
		if hasCriteria {
			rep.Tasks.WithSuccessCriteria++
		}
		if hasErrors {
			rep.Tasks.WithCommonErrors++
		}
		if hasDesc && hasSteps && hasCriteria && hasErrors {
			rep.Tasks.FullyDocumented++
		}
	}
	rep.Tasks.DescriptionRate = rate(rep.Tasks.WithDescription, rep.Tasks.Total)
	rep.Tasks.ExecutionStepsRate = rate(rep.Tasks.WithExecutionSteps, rep.Tasks.Total)
	rep.Tasks.SuccessCriteriaRate = rate(rep.Tasks.WithSuccessCriteria, rep.Tasks.Total)
	rep.Tasks.CommonErrorsRate = rate(rep.Tasks.WithCommonErrors, rep.Tasks.Total)
	rep.Tasks.Rate = rate(rep.Tasks.FullyDocumented, rep.Tasks.Total)

	rep.Processes.Total = len(snap.Processes)
	for pid, p := range snap.Processes {
		hasObjective := p.Objective != ""
		hasTasks := len(idx.ProcessTasks[pid]) > 0
		if hasObjective {
			rep.Processes.WithObjective++
		}
		if hasTasks {
			rep.Processes.WithTasks++
		}
		if hasObjective && hasTasks {
			rep.Processes.FullyDocumented++
		}
	}
	rep.Processes.ObjectiveRate = rate(rep.Processes.WithObjective, rep.Processes.Total)
	rep.Processes.TasksRate = rate(rep.Processes.WithTasks, rep.Processes.Total)
	rep.Processes.Rate = rate(rep.Processes.FullyDocumented, rep.Processes.Total)

	areaProcesses := map[string]int{}
	for _, p := range snap.Processes {
		if p.AreaID != "" {
			areaProcesses[p.AreaID]++
		}
	}
	rep.Areas.Total = len(snap.Areas)
	for aid, a := range snap.Areas {
		hasDesc := a.Description != ""
		hasProcs := areaProcesses[aid] > 0
		if hasDesc {
			rep.Areas.WithDescription++
		}
		if hasProcs {
			rep.Areas.WithProcesses++
		}
		if hasDesc && hasProcs {
			rep.Areas.FullyDocumented++
		}
	}
	rep.Areas.DescriptionRate = rate(rep.Areas.WithDescription, rep.Areas.Total)
	rep.Areas.ProcessesRate = rate(rep.Areas.WithProcesses, rep.Areas.Total)
	rep.Areas.Rate = rate(rep.Areas.FullyDocumented, rep.Areas.Total)

	return rep
}

type TaskStandardization struct {
	Total             int `json:"total"`
	WithRole          int `json:"with_role"`
	WithProcess       int `json:"with_process"`
	WithPosition      int `json:"with_position"`
	WithEstimatedTime int `json:"with_estimated_time"`
	Standardized      int `json:"standardized"`
	RoleRate          int `json:"role_rate"`
	ProcessRate       int `json:"process_rate"`
	PositionRate      int `json:"position_rate"`
	EstimatedTimeRate int `json:"estimated_time_rate"`
	Rate              int `json:"rate"`
}

type ProcessStandardization struct {
	Total        int `json:"total"`
	WithArea     int `json:"with_area"`
	WithTasks    int `json:"with_tasks"`
	Standardized int `json:"standardized"`
	Rate         int `json:"rate"`
}

type EmployeeStandardization struct {
	Total    int `json:"total"`
	WithRole int `json:"with_role"`
	Rate     int `json:"rate"`
}

type StandardizationReport struct {
	Tasks     TaskStandardization     `json:"tasks"`
	Processes ProcessStandardization  `json:"processes"`
	Employees EmployeeStandardization `json:"employees"`
}

// Standardization measures how much of the graph follows the current
// schema: tasks fully wired into processes with roles, positions and
// estimates, processes anchored to areas, employees holding roles.
func Standardization(snap snapshot.Snapshot, idx graph.Index) StandardizationReport {
	var rep StandardizationReport

	rep.Tasks.Total = len(snap.Tasks)
	for tid, t := range snap.Tasks {
		links := idx.Links(tid)
		hasRole := len(links.RoleIDs) > 0
		hasProcess := len(links.ProcessIDs) > 0
		hasPosition := len(links.Positions) > 0
		hasTime := t.EstimatedTime > 0
		if hasRole {
			rep.Tasks.WithRole++
		}
		if hasProcess {
			rep.Tasks.WithProcess++
		}
		if hasPosition {
			rep.Tasks.WithPosition++
		}
		if hasTime {
			rep.Tasks.WithEstimatedTime++
		}
		if hasRole && hasProcess && hasPosition && hasTime {
			rep.Tasks.Standardized++
		}
	}
	rep.Tasks.RoleRate = rate(rep.Tasks.WithRole, rep.Tasks.Total)
	rep.Tasks.ProcessRate = rate(rep.Tasks.WithProcess, rep.Tasks.Total)
	rep.Tasks.PositionRate = rate(rep.Tasks.WithPosition, rep.Tasks.Total)
	rep.Tasks.EstimatedTimeRate = rate(rep.Tasks.WithEstimatedTime, rep.Tasks.Total)
	rep.Tasks.Rate = rate(rep.Tasks.Standardized, rep.Tasks.Total)

	rep.Processes.Total = len(snap.Processes)
	for pid, p := range snap.Processes {
		hasArea := p.AreaID != ""
		hasTasks := len(idx.ProcessTasks[pid]) > 0
		if hasArea {
			rep.Processes.WithArea++
		}
		if hasTasks {
			rep.Processes.WithTasks++
		}
		if hasArea && hasTasks {
			rep.Processes.Standardized++
		}
	}
	rep.Processes.Rate = rate(rep.Processes.Standardized, rep.Processes.Total)

	rep.Employees.Total = len(snap.Employees)
	for _, e := range snap.Employees {
		if len(schema.EmployeeRoles(e)) > 0 {
			rep.Employees.WithRole++
		}
	}
	rep.Employees.Rate = rate(rep.Employees.WithRole, rep.Employees.Total)

	return rep
}

// ItemRef names one entity in an actionable gap list.
type ItemRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GapList is a capped preview of entities missing something, with the
// overflow count for "and N more" rendering.
type GapList struct {
	Total    int       `json:"total"`
	Preview  []ItemRef `json:"preview"`
	Overflow int       `json:"overflow"`
}

type SystematizationReport struct {
	Rate                  int     `json:"rate"`
	TasksWithoutProcess   GapList `json:"tasks_without_process"`
	ProcessesWithoutArea  GapList `json:"processes_without_area"`
	ProcessesWithoutTasks GapList `json:"processes_without_tasks"`
	AreasWithoutProcesses GapList `json:"areas_without_processes"`
}

// Systematization is the inverse framing of standardization: it enumerates
// the specific entities breaking the chain so they can be fixed, not just
// counted. previewLimit <= 0 falls back to DefaultPreviewLimit.
func Systematization(snap snapshot.Snapshot, idx graph.Index, previewLimit int) SystematizationReport {
	if previewLimit <= 0 {
		previewLimit = DefaultPreviewLimit
	}
	var rep SystematizationReport

	var orphanTasks []ItemRef
	for tid, t := range snap.Tasks {
		if len(idx.Links(tid).ProcessIDs) == 0 {
			orphanTasks = append(orphanTasks, ItemRef{ID: tid, Name: t.Name})
		}
	}
	var noArea, noTasks []ItemRef
	systematized := 0
	for pid, p := range snap.Processes {
		hasArea := p.AreaID != ""
		hasTasks := len(idx.ProcessTasks[pid]) > 0
		if !hasArea {
			noArea = append(noArea, ItemRef{ID: pid, Name: p.Name})
		}
		if !hasTasks {
			noTasks = append(noTasks, ItemRef{ID: pid, Name: p.Name})
		}
		if hasArea && hasTasks {
			systematized++
		}
	}
	areaProcesses := map[string]bool{}
	for _, p := range snap.Processes {
		if p.AreaID != "" {
			areaProcesses[p.AreaID] = true
		}
	}
	var emptyAreas []ItemRef
	for aid, a := range snap.Areas {
		if !areaProcesses[aid] {
			emptyAreas = append(emptyAreas, ItemRef{ID: aid, Name: a.Name})
		}
	}

	rep.Rate = rate(systematized, len(snap.Processes))
	rep.TasksWithoutProcess = capList(orphanTasks, previewLimit)
	rep.ProcessesWithoutArea = capList(noArea, previewLimit)
	rep.ProcessesWithoutTasks = capList(noTasks, previewLimit)
	rep.AreasWithoutProcesses = capList(emptyAreas, previewLimit)
	return rep
}

type EmployeeLoad struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Minutes float64 `json:"minutes"`
	Cost    float64 `json:"cost"`
}

type RoleLoad struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Members int     `json:"members"`
	Minutes float64 `json:"minutes"`
	Cost    float64 `json:"cost"`
}

type AreaLoad struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Minutes    float64 `json:"minutes"`
	TaskCost   float64 `json:"task_cost"`
	SalaryCost float64 `json:"salary_cost"`
	Cost       float64 `json:"cost"`
}

type WorkloadReport struct {
	Employees []EmployeeLoad `json:"employees"`
	Roles     []RoleLoad     `json:"roles"`
	Areas     []AreaLoad     `json:"areas"`
}

// Workload sums estimated minutes and cost per employee, role and area,
// following the same role/area mapping the organigram derivation produces.
func Workload(snap snapshot.Snapshot, idx graph.Index, org []graph.AreaNode) WorkloadReport {
	var rep WorkloadReport

	// Minutes per role: every task whose derived role set contains it.
	roleMinutes := map[string]float64{}
	for tid, t := range snap.Tasks {
		if t.EstimatedTime <= 0 {
			continue
		}
		for _, rid := range idx.Links(tid).RoleIDs {
			roleMinutes[rid] += t.EstimatedTime
		}
	}

	for eid, emp := range snap.Employees {
		load := EmployeeLoad{ID: eid, Name: emp.Name, Cost: emp.Salary}
		roles := schema.EmployeeRoles(emp)
		for tid, t := range snap.Tasks {
			if t.EstimatedTime <= 0 {
				continue
			}
			if intersects(idx.Links(tid).RoleIDs, roles) {
				load.Minutes += t.EstimatedTime
			}
		}
		rep.Employees = append(rep.Employees, load)
	}

	for rid, role := range snap.Roles {
		load := RoleLoad{ID: rid, Name: role.Name, Minutes: roleMinutes[rid]}
		for _, emp := range snap.Employees {
			if intersects(schema.EmployeeRoles(emp), []string{rid}) {
				load.Members++
				load.Cost += emp.Salary
			}
		}
		rep.Roles = append(rep.Roles, load)
	}

	for _, areaNode := range org {
		load := AreaLoad{ID: areaNode.ID, Name: areaNode.Name}
		seenTasks := map[string]bool{}
		for tid, t := range snap.Tasks {
			for _, pid := range idx.Links(tid).ProcessIDs {
				proc, ok := snap.Processes[pid]
				if !ok || proc.AreaID != areaNode.ID || seenTasks[tid] {
					continue
				}
				seenTasks[tid] = true
				if t.EstimatedTime > 0 {
					load.Minutes += t.EstimatedTime
				}
				if c := cost.EstimateTask(tid, snap, idx); c != nil {
					load.TaskCost += *c
				}
			}
		}
		seenEmployees := map[string]bool{}
		for _, roleNode := range areaNode.Roles {
			for _, ref := range roleNode.Employees {
				if seenEmployees[ref.ID] {
					continue
				}
				seenEmployees[ref.ID] = true
				load.SalaryCost += snap.Employees[ref.ID].Salary
			}
		}
		load.Cost = load.TaskCost + load.SalaryCost
		rep.Areas = append(rep.Areas, load)
	}

	sort.Slice(rep.Employees, func(i, j int) bool {
		if rep.Employees[i].Name != rep.Employees[j].Name {
			return rep.Employees[i].Name < rep.Employees[j].Name
		}
		return rep.Employees[i].ID < rep.Employees[j].ID
	})
	sort.Slice(rep.Roles, func(i, j int) bool {
		if rep.Roles[i].Name != rep.Roles[j].Name {
			return rep.Roles[i].Name < rep.Roles[j].Name
		}
		return rep.Roles[i].ID < rep.Roles[j].ID
	})
	sort.Slice(rep.Areas, func(i, j int) bool {
		if rep.Areas[i].Name != rep.Areas[j].Name {
			return rep.Areas[i].Name < rep.Areas[j].Name
		}
		return rep.Areas[i].ID < rep.Areas[j].ID
	})
	return rep
}

// rate is round(count/total*100) with a zero denominator yielding 0.
func rate(count, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}

func capList(items []ItemRef, limit int) GapList {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})
	out := GapList{Total: len(items), Preview: items}
	if len(items) > limit {
		out.Preview = items[:limit]
		out.Overflow = len(items) - limit
	}
	if out.Preview == nil {
		out.Preview = []ItemRef{}
	}
	return out
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
