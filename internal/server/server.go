// Package server exposes the engine over HTTP: entity CRUD per
// collection plus the derived organigram, metrics, cost and search views.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"opsmap/internal/domain"
	"opsmap/internal/engine"
	"opsmap/internal/graph"
	"opsmap/internal/store"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"task not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the opsmap API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Opsmap API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerOpenAPI(router, api, basePath)
	registerHealth(group)
	registerDevAuth(group, cfg.Auth)
	registerOrganigram(group, cfg.Engine)
	registerMetrics(group, cfg.Engine)
	registerCost(group, cfg.Engine)
	registerSearch(group, cfg.Engine)
	registerEntities(group, cfg.Engine)
	registerSnapshot(group, cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body:   apiErrorBody{Code: code, Message: message, Details: details},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if err == store.ErrNotFound {
		return newAPIError(http.StatusNotFound, "not_found", "not found", nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "is referenced by"), strings.Contains(lowered, "is held by"):
		return newAPIError(http.StatusConflict, "dependents_exist", msg, nil)
	case strings.Contains(lowered, "required"), strings.Contains(lowered, "invalid"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	specURL := path.Join("/", basePath, "openapi.json")
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <title>Opsmap API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({ url: '%s', dom_id: '#swagger-ui' });
      };
    </script>
  </body>
</html>`, specURL))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

type DevLoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at" format:"date-time"`
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if input.Body.ActorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		now := time.Now()
		ttl := 24 * time.Hour
		token, err := mintToken(input.Body.ActorID, authCfg.JWTSecret, ttl, now)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{
			Token:     token,
			ExpiresAt: now.Add(ttl).UTC().Format(time.RFC3339),
		}}, nil
	})
}

func registerOrganigram(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "organigram",
		Method:      http.MethodGet,
		Path:        "/organigram",
		Summary:     "Derived Area -> Role -> Employee hierarchy",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []graph.AreaNode `json:"body"`
	}, error) {
		org, err := e.Organigram(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if org == nil {
			org = []graph.AreaNode{}
		}
		return &struct {
			Body []graph.AreaNode `json:"body"`
		}{Body: org}, nil
	})
}

func registerMetrics(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "metrics",
		Method:      http.MethodGet,
		Path:        "/metrics",
		Summary:     "Documentation, standardization, systematization and workload reports",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.Reports `json:"body"`
	}, error) {
		rep, err := e.Metrics(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Reports `json:"body"`
		}{Body: rep}, nil
	})
}

type TaskCostResponse struct {
	TaskID string   `json:"task_id"`
	Cost   *float64 `json:"cost"`
}

func registerCost(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "task-cost",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/cost",
		Summary:     "Estimated labor cost of one task; null when not computable",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body TaskCostResponse `json:"body"`
	}, error) {
		c, err := e.TaskCost(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskCostResponse `json:"body"`
		}{Body: TaskCostResponse{TaskID: input.TaskID, Cost: c}}, nil
	})
}

func registerSearch(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/search",
		Summary:     "Fuzzy search across all collections",
	}, func(ctx context.Context, input *struct {
		Query string `query:"q"`
	}) (*struct {
		Body engine.SearchResults `json:"body"`
	}, error) {
		res, err := e.Search(ctx, input.Query)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.SearchResults `json:"body"`
		}{Body: res}, nil
	})
}

// crud wires one entity collection's create/list/get/update/delete.
type crud[T any] struct {
	name   string
	path   string
	create func(context.Context, T) (T, error)
	get    func(context.Context, string) (T, error)
	update func(context.Context, string, T) (T, error)
	del    func(context.Context, string) error
	list   func(context.Context) ([]T, error)
}

func registerCRUD[T any](api huma.API, c crud[T]) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-" + c.name,
		Method:        http.MethodPost,
		Path:          c.path,
		Summary:       "Create " + c.name,
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body T `json:"body"`
	}) (*struct {
		Body T `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		created, err := c.create(ctx, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body T `json:"body"`
		}{Body: created}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-" + c.name + "s",
		Method:      http.MethodGet,
		Path:        c.path,
		Summary:     "List " + c.name + "s sorted by name",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []T `json:"body"`
	}, error) {
		items, err := c.list(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []T{}
		}
		return &struct {
			Body []T `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-" + c.name,
		Method:      http.MethodGet,
		Path:        c.path + "/{id}",
		Summary:     "Get " + c.name,
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body T `json:"body"`
	}, error) {
		item, err := c.get(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body T `json:"body"`
		}{Body: item}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-" + c.name,
		Method:      http.MethodPut,
		Path:        c.path + "/{id}",
		Summary:     "Update " + c.name,
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body T      `json:"body"`
	}) (*struct {
		Body T `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		updated, err := c.update(ctx, input.ID, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body T `json:"body"`
		}{Body: updated}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-" + c.name,
		Method:      http.MethodDelete,
		Path:        c.path + "/{id}",
		Summary:     "Delete " + c.name + "; rejected while dependents reference it",
		Errors:      []int{http.StatusConflict, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if err := c.del(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEntities(api huma.API, e engine.Engine) {
	registerCRUD(api, crud[domain.Area]{
		name:   "area",
		path:   "/areas",
		create: e.CreateArea,
		get:    e.GetArea,
		update: func(ctx context.Context, id string, a domain.Area) (domain.Area, error) {
			a.ID = id
			return e.UpdateArea(ctx, a)
		},
		del:  e.DeleteArea,
		list: e.ListAreas,
	})
	registerCRUD(api, crud[domain.Role]{
		name:   "role",
		path:   "/roles",
		create: e.CreateRole,
		get:    e.GetRole,
		update: func(ctx context.Context, id string, r domain.Role) (domain.Role, error) {
			r.ID = id
			return e.UpdateRole(ctx, r)
		},
		del:  e.DeleteRole,
		list: e.ListRoles,
	})
	registerCRUD(api, crud[domain.Employee]{
		name:   "employee",
		path:   "/employees",
		create: e.CreateEmployee,
		get:    e.GetEmployee,
		update: func(ctx context.Context, id string, emp domain.Employee) (domain.Employee, error) {
			emp.ID = id
			return e.UpdateEmployee(ctx, emp)
		},
		del:  e.DeleteEmployee,
		list: e.ListEmployees,
	})
	registerCRUD(api, crud[domain.Process]{
		name:   "process",
		path:   "/processes",
		create: e.CreateProcess,
		get:    e.GetProcess,
		update: func(ctx context.Context, id string, p domain.Process) (domain.Process, error) {
			p.ID = id
			return e.UpdateProcess(ctx, p)
		},
		del:  e.DeleteProcess,
		list: e.ListProcesses,
	})
	registerCRUD(api, crud[domain.Task]{
		name:   "task",
		path:   "/tasks",
		create: e.CreateTask,
		get:    e.GetTask,
		update: func(ctx context.Context, id string, t domain.Task) (domain.Task, error) {
			t.ID = id
			return e.UpdateTask(ctx, t)
		},
		del:  e.DeleteTask,
		list: e.ListTasks,
	})
}

type SnapshotImportResponse struct {
	Imported int `json:"imported"`
}

func registerSnapshot(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "export-snapshot",
		Method:      http.MethodGet,
		Path:        "/snapshot",
		Summary:     "Export all collections as one JSON document",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body json.RawMessage `json:"body"`
	}, error) {
		data, err := e.ExportSnapshot(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body json.RawMessage `json:"body"`
		}{Body: data}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "import-snapshot",
		Method:      http.MethodPost,
		Path:        "/snapshot",
		Summary:     "Import collections; array and keyed-map shapes both accepted",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body json.RawMessage `json:"body"`
	}) (*struct {
		Body SnapshotImportResponse `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		n, err := e.ImportSnapshot(ctx, input.Body)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		return &struct {
			Body SnapshotImportResponse `json:"body"`
		}{Body: SnapshotImportResponse{Imported: n}}, nil
	})
}
