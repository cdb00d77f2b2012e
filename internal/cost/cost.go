// Package cost derives a task's labor cost from the salaries of the
// employees holding its derived roles. Cost is never stored: it is
// recomputed from the snapshot on every read so salary edits show up
// immediately without cache invalidation.
package cost

import (
	"opsmap/internal/domain"
	"opsmap/internal/graph"
	"opsmap/internal/schema"
	"opsmap/internal/snapshot"
)

// MinutesPerWorkMonth converts a monthly salary into a per-minute rate:
// 160 hours over 20 working days. The constant is a fixed convention and
// must not change, or historical cost figures stop matching.
const MinutesPerWorkMonth = 9600

// EstimateTask returns the task's labor cost, or nil when it cannot be
// computed: no derivable role, no estimated time, or no salaried employee
// in any derived role. Nil is distinct from zero; callers render it as
// "N/A", never as a free task.
func EstimateTask(task string, snap snapshot.Snapshot, idx graph.Index) *float64 {
	t, ok := snap.Tasks[task]
	if !ok || t.EstimatedTime <= 0 {
		return nil
	}
	roles := idx.Links(task).RoleIDs
	if len(roles) == 0 {
		return nil
	}

	var roleCosts []float64
	for _, rid := range roles {
		var sum float64
		var n int
		for _, emp := range snap.Employees {
			if emp.Salary <= 0 || !containsRole(emp, rid) {
				continue
			}
			sum += emp.Salary
			n++
		}
		// A role with no salaried employees contributes nothing to the
		// average; it is not a zero-cost role.
		if n == 0 {
			continue
		}
		mean := sum / float64(n)
		roleCosts = append(roleCosts, mean/MinutesPerWorkMonth*t.EstimatedTime)
	}
	if len(roleCosts) == 0 {
		return nil
	}
	var total float64
	for _, c := range roleCosts {
		total += c
	}
	result := total / float64(len(roleCosts))
	return &result
}

func containsRole(emp domain.Employee, roleID string) bool {
	for _, rid := range schema.EmployeeRoles(emp) {
		if rid == roleID {
			return true
		}
	}
	return false
}
