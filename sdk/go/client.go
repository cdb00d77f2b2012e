// Package opsmapsdk is a minimal typed client for the Opsmap HTTP API.
package opsmapsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Opsmap HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	ActorID     string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Area is the API area model.
type Area struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Role is the API role model.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Employee is the API employee model.
type Employee struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Email   string   `json:"email,omitempty"`
	Salary  float64  `json:"salary,omitempty"`
	RoleIDs []string `json:"roleIds,omitempty"`
}

// Activity is one ordered process step.
type Activity struct {
	Name   string `json:"name"`
	TaskID string `json:"taskId"`
	RoleID string `json:"roleId,omitempty"`
}

// Process is the API process model.
type Process struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	AreaID     string     `json:"areaId,omitempty"`
	Activities []Activity `json:"activities,omitempty"`
}

// Task is the API task model (partial).
type Task struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	EstimatedTime float64  `json:"estimatedTime,omitempty"`
	RoleIDs       []string `json:"roleIds,omitempty"`
}

// EmployeeRef is an employee leaf of the organigram.
type EmployeeRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoleNode is a role level of the organigram.
type RoleNode struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Employees []EmployeeRef `json:"employees"`
}

// AreaNode is an area level of the organigram.
type AreaNode struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Roles []RoleNode `json:"roles"`
}

// TaskCost is a task cost estimate; Cost is null when not computable.
type TaskCost struct {
	TaskID string   `json:"task_id"`
	Cost   *float64 `json:"cost"`
}

// SearchResults groups matches per collection.
type SearchResults struct {
	Areas     []Area     `json:"areas"`
	Roles     []Role     `json:"roles"`
	Employees []Employee `json:"employees"`
	Processes []Process  `json:"processes"`
	Tasks     []Task     `json:"tasks"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateArea creates an area.
func (c *Client) CreateArea(ctx context.Context, name, description string) (Area, error) {
	body := map[string]any{"name": name, "description": description}
	var resp Area
	err := c.do(ctx, http.MethodPost, "v0/areas", body, &resp)
	return resp, err
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, t Task) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "v0/tasks", t, &resp)
	return resp, err
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "v0/tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListTasks returns all tasks sorted by name.
func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "v0/tasks", nil, &resp)
	return resp, err
}

// Organigram returns the derived Area -> Role -> Employee hierarchy.
func (c *Client) Organigram(ctx context.Context) ([]AreaNode, error) {
	var resp []AreaNode
	err := c.do(ctx, http.MethodGet, "v0/organigram", nil, &resp)
	return resp, err
}

// Metrics returns all metric reports as raw JSON.
func (c *Client) Metrics(ctx context.Context) (map[string]json.RawMessage, error) {
	var resp map[string]json.RawMessage
	err := c.do(ctx, http.MethodGet, "v0/metrics", nil, &resp)
	return resp, err
}

// Cost returns the estimated labor cost of a task.
func (c *Client) Cost(ctx context.Context, taskID string) (TaskCost, error) {
	var resp TaskCost
	endpoint := fmt.Sprintf("v0/tasks/%s/cost", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Search queries all collections.
func (c *Client) Search(ctx context.Context, query string) (SearchResults, error) {
	var resp SearchResults
	endpoint := "v0/search?q=" + url.QueryEscape(query)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Login mints a dev token and stores it on the client.
func (c *Client) Login(ctx context.Context, actorID string) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "v0/auth/dev/login", map[string]any{"actor_id": actorID}, &resp); err != nil {
		return err
	}
	c.BearerToken = resp.Token
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
