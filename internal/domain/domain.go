package domain

import "encoding/json"

// Collection names understood by the document store.
const (
	CollectionAreas     = "areas"
	CollectionRoles     = "roles"
	CollectionEmployees = "employees"
	CollectionProcesses = "processes"
	CollectionTasks     = "tasks"
)

// Collections lists every collection in fetch order.
var Collections = []string{
	CollectionAreas,
	CollectionRoles,
	CollectionEmployees,
	CollectionProcesses,
	CollectionTasks,
}

type Area struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	ManagerEmployeeID string `json:"managerEmployeeId,omitempty"`
	CreatedAt         string `json:"created_at,omitempty" format:"date-time"`
	UpdatedAt         string `json:"updated_at,omitempty" format:"date-time"`
}

type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty" format:"date-time"`
	UpdatedAt   string `json:"updated_at,omitempty" format:"date-time"`
}

type Employee struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Email   string   `json:"email,omitempty"`
	Phone   string   `json:"phone,omitempty"`
	Salary  float64  `json:"salary,omitempty"`
	RoleIDs []string `json:"roleIds,omitempty"`
	// RoleID is the legacy singular form, superseded by RoleIDs.
	RoleID    string `json:"roleId,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	CreatedAt string `json:"created_at,omitempty" format:"date-time"`
	UpdatedAt string `json:"updated_at,omitempty" format:"date-time"`
}

// Activity is one ordered step of a Process. Slice position is the
// authoritative execution order; there is no separate order field.
type Activity struct {
	Name   string `json:"name"`
	TaskID string `json:"taskId"`
	RoleID string `json:"roleId,omitempty"`
}

type Process struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	AreaID     string     `json:"areaId,omitempty"`
	Objective  string     `json:"objective,omitempty"`
	Activities []Activity `json:"activities,omitempty"`
	// TaskIDs is the legacy pre-activity form; the executing role is not
	// discoverable from the process alone.
	TaskIDs   []string `json:"taskIds,omitempty"`
	CreatedAt string   `json:"created_at,omitempty" format:"date-time"`
	UpdatedAt string   `json:"updated_at,omitempty" format:"date-time"`
}

type Task struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Description     string       `json:"description,omitempty"`
	Frequency       string       `json:"frequency,omitempty"`
	EstimatedTime   float64      `json:"estimatedTime,omitempty"`
	ExecutionSteps  []string     `json:"executionSteps,omitempty"`
	SuccessCriteria StringOrList `json:"successCriteria,omitempty"`
	CommonErrors    []string     `json:"commonErrors,omitempty"`
	// Legacy direct links; current-schema tasks derive role and process
	// from the activities that reference them.
	RoleIDs            []string `json:"roleIds,omitempty"`
	RoleID             string   `json:"roleId,omitempty"`
	ProcessIDs         []string `json:"processIds,omitempty"`
	ProcessID          string   `json:"processId,omitempty"`
	AssignedEmployeeID string   `json:"assignedEmployeeId,omitempty"`
	CreatedAt          string   `json:"created_at,omitempty" format:"date-time"`
	UpdatedAt          string   `json:"updated_at,omitempty" format:"date-time"`
}

// StringOrList accepts either a bare JSON string or an array of strings,
// which is how successCriteria appears across schema generations. It always
// marshals back as an array.
type StringOrList []string

func (s *StringOrList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	if single == "" {
		*s = nil
		return nil
	}
	*s = []string{single}
	return nil
}

func (s StringOrList) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}
