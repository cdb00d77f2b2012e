// Package schema resolves legacy singular fields against their current
// plural forms so the rest of the engine only ever sees one canonical
// shape. Every function here is pure and total: absent fields degrade to
// empty slices, never nil-pointer panics, never errors.
package schema

import "opsmap/internal/domain"

// EmployeeRoles returns the role ids an employee holds, folding the legacy
// roleId field into the plural form.
func EmployeeRoles(e domain.Employee) []string {
	return plural(e.RoleIDs, e.RoleID)
}

// TaskRoles returns a task's directly stored role ids. These are legacy
// fallback links only; current-schema tasks carry no role at all and get
// theirs derived from activities.
func TaskRoles(t domain.Task) []string {
	return plural(t.RoleIDs, t.RoleID)
}

// TaskProcesses returns a task's directly stored process ids (legacy only).
func TaskProcesses(t domain.Task) []string {
	return plural(t.ProcessIDs, t.ProcessID)
}

// TaskSuccessCriteria returns the sequence form of successCriteria
// regardless of whether storage held a string or a list.
func TaskSuccessCriteria(t domain.Task) []string {
	if t.SuccessCriteria == nil {
		return []string{}
	}
	return []string(t.SuccessCriteria)
}

// plural treats a present singular value as a one-element collection and
// both-absent as zero elements.
func plural(ids []string, id string) []string {
	if len(ids) > 0 {
		return ids
	}
	if id != "" {
		return []string{id}
	}
	return []string{}
}
