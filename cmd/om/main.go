package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"opsmap/internal/config"
	"opsmap/internal/db"
	"opsmap/internal/domain"
	"opsmap/internal/engine"
	"opsmap/internal/events"
	"opsmap/internal/migrate"
	"opsmap/internal/server"
	"opsmap/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "om",
	Short: "Opsmap CLI",
	Long: `Opsmap maps how an organization actually runs.
It keeps five collections (areas, roles, employees, processes, tasks) and
derives everything else from them:
- Organigram: the Area -> Role -> Employee hierarchy, inferred from which
  roles execute which process activities. Nothing stores the tree; it is
  recomputed from references.
- Metrics: documentation, standardization, systematization and workload
  reports over the same data.
- Cost: estimated labor cost per task from role salaries and estimated time.
- Search: accent- and spelling-tolerant lookup across all collections.
Data lives in the .opsmap workspace database; 'om serve' exposes the same
engine over HTTP.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("OPSMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(areaCmd())
	rootCmd.AddCommand(roleCmd())
	rootCmd.AddCommand(employeeCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(organigramCmd())
	rootCmd.AddCommand(metricsCmd())
	rootCmd.AddCommand(costCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var orgID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); err == nil {
				fmt.Printf("config already exists at %s\n", cfgPath)
				return nil
			}
			if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault(orgID)), 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Printf("initialized workspace in %s\n", filepath.Join(workspace, ".opsmap"))
			return nil
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "default", "organization id")
	return cmd
}

func areaCmd() *cobra.Command {
	area := &cobra.Command{Use: "area", Short: "Manage areas"}

	var name, desc, manager string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create area",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CreateArea(ctx, domain.Area{Name: name, Description: desc, ManagerEmployeeID: manager})
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "area name")
	create.Flags().StringVar(&desc, "description", "", "area description")
	create.Flags().StringVar(&manager, "manager", "", "manager employee id")

	area.AddCommand(create)
	area.AddCommand(listCmd("areas", func(ctx context.Context, e engine.Engine) (any, error) {
		items, err := e.ListAreas(ctx)
		if err != nil {
			return nil, err
		}
		tw := newTable("ID", "Name", "Description")
		for _, a := range items {
			tw.AppendRow(table.Row{a.ID, a.Name, a.Description})
		}
		return renderable{items, tw}, nil
	}))
	area.AddCommand(showCmd("area", func(ctx context.Context, e engine.Engine, id string) (any, error) {
		return e.GetArea(ctx, id)
	}))
	area.AddCommand(deleteCmd("area", func(ctx context.Context, e engine.Engine, id string) error {
		return e.DeleteArea(ctx, id)
	}))
	return area
}

func roleCmd() *cobra.Command {
	role := &cobra.Command{Use: "role", Short: "Manage roles"}

	var name, desc string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.CreateRole(ctx, domain.Role{Name: name, Description: desc})
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "role name")
	create.Flags().StringVar(&desc, "description", "", "role description")

	role.AddCommand(create)
	role.AddCommand(listCmd("roles", func(ctx context.Context, e engine.Engine) (any, error) {
		items, err := e.ListRoles(ctx)
		if err != nil {
			return nil, err
		}
		tw := newTable("ID", "Name", "Description")
		for _, r := range items {
			tw.AppendRow(table.Row{r.ID, r.Name, r.Description})
		}
		return renderable{items, tw}, nil
	}))
	role.AddCommand(showCmd("role", func(ctx context.Context, e engine.Engine, id string) (any, error) {
		return e.GetRole(ctx, id)
	}))
	role.AddCommand(deleteCmd("role", func(ctx context.Context, e engine.Engine, id string) error {
		return e.DeleteRole(ctx, id)
	}))
	return role
}

func employeeCmd() *cobra.Command {
	emp := &cobra.Command{Use: "employee", Short: "Manage employees"}

	var name, email string
	var salary float64
	var roleIDs []string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create employee",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				created, err := e.CreateEmployee(ctx, domain.Employee{
					Name:    name,
					Email:   email,
					Salary:  salary,
					RoleIDs: roleIDs,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "employee name")
	create.Flags().StringVar(&email, "email", "", "email address")
	create.Flags().Float64Var(&salary, "salary", 0, "monthly salary")
	create.Flags().StringSliceVar(&roleIDs, "role-id", nil, "role ids (repeatable)")

	emp.AddCommand(create)
	emp.AddCommand(listCmd("employees", func(ctx context.Context, e engine.Engine) (any, error) {
		items, err := e.ListEmployees(ctx)
		if err != nil {
			return nil, err
		}
		tw := newTable("ID", "Name", "Email", "Roles")
		for _, item := range items {
			tw.AppendRow(table.Row{item.ID, item.Name, item.Email, strings.Join(item.RoleIDs, ",")})
		}
		return renderable{items, tw}, nil
	}))
	emp.AddCommand(showCmd("employee", func(ctx context.Context, e engine.Engine, id string) (any, error) {
		return e.GetEmployee(ctx, id)
	}))
	emp.AddCommand(deleteCmd("employee", func(ctx context.Context, e engine.Engine, id string) error {
		return e.DeleteEmployee(ctx, id)
	}))
	return emp
}

func processCmd() *cobra.Command {
	proc := &cobra.Command{Use: "process", Short: "Manage processes"}

	var name, areaID, objective string
	var activities []string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create process",
		Long: `Create a process. Activities are given as name:taskId[:roleId]
triples and keep the order they appear in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseActivities(activities)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProcess(ctx, domain.Process{
					Name:       name,
					AreaID:     areaID,
					Objective:  objective,
					Activities: parsed,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "process name")
	create.Flags().StringVar(&areaID, "area-id", "", "owning area id")
	create.Flags().StringVar(&objective, "objective", "", "process objective")
	create.Flags().StringSliceVar(&activities, "activity", nil, "activity as name:taskId[:roleId] (repeatable, ordered)")

	proc.AddCommand(create)
	proc.AddCommand(listCmd("processes", func(ctx context.Context, e engine.Engine) (any, error) {
		items, err := e.ListProcesses(ctx)
		if err != nil {
			return nil, err
		}
		tw := newTable("ID", "Name", "Area", "Activities")
		for _, p := range items {
			tw.AppendRow(table.Row{p.ID, p.Name, p.AreaID, len(p.Activities)})
		}
		return renderable{items, tw}, nil
	}))
	proc.AddCommand(showCmd("process", func(ctx context.Context, e engine.Engine, id string) (any, error) {
		return e.GetProcess(ctx, id)
	}))
	proc.AddCommand(deleteCmd("process", func(ctx context.Context, e engine.Engine, id string) error {
		return e.DeleteProcess(ctx, id)
	}))
	return proc
}

func parseActivities(raw []string) ([]domain.Activity, error) {
	out := make([]domain.Activity, 0, len(raw))
	for _, spec := range raw {
		parts := strings.SplitN(spec, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid activity %q, want name:taskId[:roleId]", spec)
		}
		act := domain.Activity{Name: parts[0], TaskID: parts[1]}
		if len(parts) == 3 {
			act.RoleID = parts[2]
		}
		out = append(out, act)
	}
	return out, nil
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}

	var name, desc, frequency string
	var estimated float64
	var steps, criteria, commonErrors []string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				created, err := e.CreateTask(ctx, domain.Task{
					Name:            name,
					Description:     desc,
					Frequency:       frequency,
					EstimatedTime:   estimated,
					ExecutionSteps:  steps,
					SuccessCriteria: domain.StringOrList(criteria),
					CommonErrors:    commonErrors,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "task name")
	create.Flags().StringVar(&desc, "description", "", "task description")
	create.Flags().StringVar(&frequency, "frequency", "", "how often the task runs")
	create.Flags().Float64Var(&estimated, "estimated-time", 0, "estimated minutes per execution")
	create.Flags().StringSliceVar(&steps, "step", nil, "execution step (repeatable, ordered)")
	create.Flags().StringSliceVar(&criteria, "success-criterion", nil, "success criterion (repeatable)")
	create.Flags().StringSliceVar(&commonErrors, "common-error", nil, "common error (repeatable)")

	task.AddCommand(create)
	task.AddCommand(listCmd("tasks", func(ctx context.Context, e engine.Engine) (any, error) {
		items, err := e.ListTasks(ctx)
		if err != nil {
			return nil, err
		}
		tw := newTable("ID", "Name", "Estimated", "Steps")
		for _, t := range items {
			tw.AppendRow(table.Row{t.ID, t.Name, t.EstimatedTime, len(t.ExecutionSteps)})
		}
		return renderable{items, tw}, nil
	}))
	task.AddCommand(showCmd("task", func(ctx context.Context, e engine.Engine, id string) (any, error) {
		return e.GetTask(ctx, id)
	}))
	task.AddCommand(deleteCmd("task", func(ctx context.Context, e engine.Engine, id string) error {
		return e.DeleteTask(ctx, id)
	}))
	return task
}

func organigramCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "organigram",
		Short: "Show the derived Area -> Role -> Employee hierarchy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				org, err := e.Organigram(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(org)
				}
				for _, area := range org {
					fmt.Printf("%s\n", area.Name)
					for i, role := range area.Roles {
						connector, prefix := "├── ", "│   "
						if i == len(area.Roles)-1 {
							connector, prefix = "└── ", "    "
						}
						fmt.Printf("%s%s\n", connector, role.Name)
						for j, emp := range role.Employees {
							leaf := "├── "
							if j == len(role.Employees)-1 {
								leaf = "└── "
							}
							fmt.Printf("%s%s%s\n", prefix, leaf, emp.Name)
						}
					}
				}
				return nil
			})
		},
	}
}

func metricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics [documentation|standardization|systematization|workload]",
		Short: "Show metric reports",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rep, err := e.Metrics(ctx)
				if err != nil {
					return err
				}
				if len(args) == 0 {
					return printJSONOrTable(rep)
				}
				switch args[0] {
				case "documentation":
					return printJSONOrTable(rep.Documentation)
				case "standardization":
					return printJSONOrTable(rep.Standardization)
				case "systematization":
					return printJSONOrTable(rep.Systematization)
				case "workload":
					return printJSONOrTable(rep.Workload)
				default:
					return fmt.Errorf("unknown report %q", args[0])
				}
			})
		},
	}
	return cmd
}

func costCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cost <task-id>",
		Short: "Estimate the labor cost of one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.TaskCost(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"task_id": args[0], "cost": c})
				}
				if c == nil {
					fmt.Println("cost: not computable (missing estimated time, roles, or salaries)")
					return nil
				}
				fmt.Printf("cost: %.2f\n", *c)
				return nil
			})
		},
	}
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search all collections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Search(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				tw := newTable("Kind", "ID", "Name")
				for _, a := range res.Areas {
					tw.AppendRow(table.Row{"area", a.ID, a.Name})
				}
				for _, r := range res.Roles {
					tw.AppendRow(table.Row{"role", r.ID, r.Name})
				}
				for _, emp := range res.Employees {
					tw.AppendRow(table.Row{"employee", emp.ID, emp.Name})
				}
				for _, p := range res.Processes {
					tw.AppendRow(table.Row{"process", p.ID, p.Name})
				}
				for _, t := range res.Tasks {
					tw.AppendRow(table.Row{"task", t.ID, t.Name})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func snapshotCmd() *cobra.Command {
	snap := &cobra.Command{Use: "snapshot", Short: "Export or import all collections"}

	var out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Export all collections as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				data, err := e.ExportSnapshot(ctx)
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					fmt.Println(string(data))
					return nil
				}
				return os.WriteFile(out, data, 0o644)
			})
		},
	}
	export.Flags().StringVarP(&out, "output", "o", "-", "output file, - for stdout")

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import collections from a JSON document",
		Long: `Import collections from a JSON document. Each collection may be a
keyed map or an array of records with embedded ids; both shapes are accepted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.ImportSnapshot(ctx, data)
				if err != nil {
					return err
				}
				fmt.Printf("imported %d records\n", n)
				return nil
			})
		},
	}

	snap.AddCommand(export)
	snap.AddCommand(importCmd)
	return snap
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, collection, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			evts, err := events.Tail(cmd.Context(), conn, events.TailOptions{
				N:          n,
				Type:       evtType,
				Collection: collection,
				EntityID:   entityID,
			})
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(evts)
			}
			tw := newTable("TS", "Type", "Collection", "Entity", "Actor")
			for _, evt := range evts {
				tw.AppendRow(table.Row{evt.TS, evt.Type, evt.Collection, evt.EntityID, evt.ActorID})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&collection, "collection", "", "collection filter")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowActorHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			authCfg := server.AuthConfig{
				JWTSecret:        os.Getenv("OPSMAP_JWT_SECRET"),
				AllowActorHeader: allowActorHeader,
			}
			if authCfg.JWTSecret == "" {
				authCfg.JWTSecret = cfg.Server.JWTSecret
			}
			if authCfg.JWTSecret == "" && !allowActorHeader {
				return fmt.Errorf("OPSMAP_JWT_SECRET is required for bearer auth")
			}
			e := engine.New(store.NewSQLite(conn, viper.GetString("actor-id")), cfg)
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Opsmap API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	cmd.Flags().BoolVar(&allowActorHeader, "allow-actor-header", false, "accept bare X-Actor-Id (local dev only)")
	return cmd
}

// --- generic subcommands ---

func listCmd(plural string, fetch func(context.Context, engine.Engine) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List " + plural,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := fetch(ctx, e)
				if err != nil {
					return err
				}
				if r, ok := v.(renderable); ok {
					if viper.GetBool("json") {
						return printJSON(r.items)
					}
					r.table.Render()
					return nil
				}
				return printJSONOrTable(v)
			})
		},
	}
}

func showCmd(singular string, fetch func(context.Context, engine.Engine, string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show " + singular,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := fetch(ctx, e, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
}

func deleteCmd(singular string, del func(context.Context, engine.Engine, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete " + singular,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := del(ctx, e, args[0]); err != nil {
					return err
				}
				fmt.Printf("%s %s deleted\n", singular, args[0])
				return nil
			})
		},
	}
}

// --- helpers ---

type renderable struct {
	items any
	table table.Writer
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	e := engine.New(store.NewSQLite(conn, viper.GetString("actor-id")), cfg)
	return fn(ctx, e)
}

func newTable(headers ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(headers))
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
