package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"teamline/internal/app"
	"teamline/internal/config"
	"teamline/internal/db"
	"teamline/internal/domain"
	"teamline/internal/engine"
	"teamline/internal/migrate"
	"teamline/internal/repo"
	"teamline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tl",
	Short: "Teamline CLI",
	Long: `Teamline keeps project teams in sync with the reporting hierarchy.
- Workspace: your .teamline directory holding the database; teamline.yml next to it configures prefixes and webhooks.
- Users: the directory with reporting lines; a manager's subtree is everyone reporting up to them, at any depth.
- Projects: each has one manager and a derived team (the manager plus their subtree); 'tl team sync' reconciles it.
- Modules, tasks, activities: nested under projects with generated ids like PRO-001 / MOD-002 / TSK-003 / ACT-004.
- Access: per-resource grants at module, task, or activity level; revoking at a level also clears the user's grants below it.
- Event log: diary of changes, view with 'tl log tail'.`,
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
	viper.SetEnvPrefix("TEAMLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-admin", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(moduleCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(teamCmd())
	rootCmd.AddCommand(accessCmd())
	rootCmd.AddCommand(timelogCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- users ---

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage the user directory"}
	user.AddCommand(userAddCmd())
	user.AddCommand(userListCmd())
	user.AddCommand(userShowCmd())
	user.AddCommand(userUpdateCmd())
	user.AddCommand(userSubtreeCmd())
	return user
}

func userAddCmd() *cobra.Command {
	var id, name, email, role, status, manager string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, engine.UserCreateOptions{
					ID:                 id,
					Name:               name,
					Email:              email,
					Role:               role,
					Status:             status,
					ReportingManagerID: manager,
					ActorID:            viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "user id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email")
	cmd.Flags().StringVar(&role, "role", "employee", "role (admin, manager, employee)")
	cmd.Flags().StringVar(&status, "status", "active", "status")
	cmd.Flags().StringVar(&manager, "reports-to", "", "reporting manager id")
	return cmd
}

func userListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListUsers(ctx, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Role", "Status", "Reports To"})
				for _, u := range items {
					reportsTo := ""
					if u.ReportingManagerID != nil {
						reportsTo = *u.ReportingManagerID
					}
					tw.AppendRow(table.Row{u.ID, u.Name, u.Role, u.Status, reportsTo})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func userShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				u, err := r.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	return cmd
}

func userUpdateCmd() *cobra.Command {
	var name, email, role, status, manager string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.UserUpdateOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("email") {
					opts.Email = &email
				}
				if cmd.Flags().Changed("role") {
					opts.Role = &role
				}
				if cmd.Flags().Changed("status") {
					opts.Status = &status
				}
				if cmd.Flags().Changed("reports-to") {
					opts.ReportingManagerID = &manager
				}
				u, err := e.UpdateUser(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email")
	cmd.Flags().StringVar(&role, "role", "", "role")
	cmd.Flags().StringVar(&status, "status", "", "status")
	cmd.Flags().StringVar(&manager, "reports-to", "", "reporting manager id (empty clears)")
	return cmd
}

func userSubtreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subtree <id>",
		Short: "List a user's transitive reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.Repo.GetUser(ctx, args[0]); err != nil {
					return err
				}
				ids, err := e.ResolveSubtree(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(ids)
			})
		},
	}
	return cmd
}

// --- projects ---

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectDeleteCmd())
	prj.AddCommand(projectReassignCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var name, desc, manager string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			if manager == "" {
				return fmt.Errorf("--manager required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
					Name:        name,
					Description: desc,
					ManagerID:   manager,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&manager, "manager", "", "manager user id")
	return cmd
}

func projectListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjects(ctx, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Custom ID", "Name", "Manager", "Status", "Start"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.CustomID, p.Name, p.ManagerID, p.Status, p.StartDate})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var name, desc, status, endDate, manager string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.ProjectUpdateOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &desc
				}
				if cmd.Flags().Changed("status") {
					opts.Status = &status
				}
				if cmd.Flags().Changed("end-date") {
					opts.EndDate = &endDate
				}
				if cmd.Flags().Changed("manager") {
					opts.ManagerID = &manager
				}
				p, err := e.UpdateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "status (active, on_hold, completed, canceled)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "end date (RFC3339)")
	cmd.Flags().StringVar(&manager, "manager", "", "new manager user id")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project and everything under it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteProject(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func projectReassignCmd() *cobra.Command {
	var manager string
	cmd := &cobra.Command{
		Use:   "reassign <id>",
		Short: "Reassign the project manager",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if manager == "" {
				return fmt.Errorf("--manager required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.ReassignManager(ctx, args[0], manager, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&manager, "manager", "", "new manager user id")
	return cmd
}

// --- modules / tasks / activities ---

func moduleCmd() *cobra.Command {
	mod := &cobra.Command{Use: "module", Short: "Manage modules"}
	mod.AddCommand(moduleAddCmd())
	mod.AddCommand(moduleListCmd())
	mod.AddCommand(resourceShowCmd("module", func(ctx context.Context, e engine.Engine, id string) (any, error) {
		return e.Repo.GetModule(ctx, id)
	}))
	mod.AddCommand(moduleUpdateCmd())
	mod.AddCommand(resourceDeleteCmd("module", func(ctx context.Context, e engine.Engine, id, actor string) error {
		return e.DeleteModule(ctx, id, actor)
	}))
	return mod
}

func moduleAddCmd() *cobra.Command {
	var projectID, name, desc string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a module to a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" || name == "" {
				return fmt.Errorf("--project and --name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.CreateModule(ctx, engine.ModuleCreateOptions{
					ProjectID:   projectID,
					Name:        name,
					Description: desc,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&name, "name", "", "module name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	return cmd
}

func moduleListCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List modules of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListModules(ctx, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Custom ID", "Name", "Status"})
				for _, m := range items {
					tw.AppendRow(table.Row{m.CustomID, m.Name, m.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func moduleUpdateCmd() *cobra.Command {
	return resourceUpdateCmd("module", func(ctx context.Context, e engine.Engine, opts engine.ResourceUpdateOptions) (any, error) {
		return e.UpdateModule(ctx, opts)
	})
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(resourceShowCmd("task", func(ctx context.Context, e engine.Engine, id string) (any, error) {
		return e.Repo.GetTask(ctx, id)
	}))
	task.AddCommand(resourceUpdateCmd("task", func(ctx context.Context, e engine.Engine, opts engine.ResourceUpdateOptions) (any, error) {
		return e.UpdateTask(ctx, opts)
	}))
	task.AddCommand(resourceDeleteCmd("task", func(ctx context.Context, e engine.Engine, id, actor string) error {
		return e.DeleteTask(ctx, id, actor)
	}))
	return task
}

func taskAddCmd() *cobra.Command {
	var moduleID, name, desc string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task to a module",
		RunE: func(cmd *cobra.Command, args []string) error {
			if moduleID == "" || name == "" {
				return fmt.Errorf("--module and --name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
					ModuleID:    moduleID,
					Name:        name,
					Description: desc,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&moduleID, "module", "", "module id")
	cmd.Flags().StringVar(&name, "name", "", "task name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	return cmd
}

func taskListCmd() *cobra.Command {
	var moduleID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks of a module",
		RunE: func(cmd *cobra.Command, args []string) error {
			if moduleID == "" {
				return fmt.Errorf("--module required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListTasks(ctx, moduleID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Custom ID", "Name", "Status"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.CustomID, t.Name, t.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&moduleID, "module", "", "module id")
	return cmd
}

func activityCmd() *cobra.Command {
	act := &cobra.Command{Use: "activity", Short: "Manage activities"}
	act.AddCommand(activityAddCmd())
	act.AddCommand(activityListCmd())
	act.AddCommand(resourceShowCmd("activity", func(ctx context.Context, e engine.Engine, id string) (any, error) {
		return e.Repo.GetActivity(ctx, id)
	}))
	act.AddCommand(resourceUpdateCmd("activity", func(ctx context.Context, e engine.Engine, opts engine.ResourceUpdateOptions) (any, error) {
		return e.UpdateActivity(ctx, opts)
	}))
	act.AddCommand(resourceDeleteCmd("activity", func(ctx context.Context, e engine.Engine, id, actor string) error {
		return e.DeleteActivity(ctx, id, actor)
	}))
	return act
}

func activityAddCmd() *cobra.Command {
	var taskID, name, desc string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an activity to a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskID == "" || name == "" {
				return fmt.Errorf("--task and --name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CreateActivity(ctx, engine.ActivityCreateOptions{
					TaskID:      taskID,
					Name:        name,
					Description: desc,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.Flags().StringVar(&name, "name", "", "activity name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	return cmd
}

func activityListCmd() *cobra.Command {
	var taskID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List activities of a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskID == "" {
				return fmt.Errorf("--task required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListActivities(ctx, taskID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Custom ID", "Name", "Status"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.CustomID, a.Name, a.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	return cmd
}

// resourceShowCmd, resourceUpdateCmd, and resourceDeleteCmd factor out the
// identical show/update/delete shapes shared by modules, tasks, and activities.

func resourceShowCmd(kind string, get func(context.Context, engine.Engine, string) (any, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a " + kind,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := get(ctx, e, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
	return cmd
}

func resourceUpdateCmd(kind string, update func(context.Context, engine.Engine, engine.ResourceUpdateOptions) (any, error)) *cobra.Command {
	var name, desc, status string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a " + kind,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.ResourceUpdateOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &desc
				}
				if cmd.Flags().Changed("status") {
					opts.Status = &status
				}
				v, err := update(ctx, e, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", kind+" name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "status (active, completed, on_hold)")
	return cmd
}

func resourceDeleteCmd(kind string, del func(context.Context, engine.Engine, string, string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a " + kind,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return del(ctx, e, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

// --- team ---

func teamCmd() *cobra.Command {
	team := &cobra.Command{Use: "team", Short: "Project team membership"}
	team.AddCommand(teamShowCmd())
	team.AddCommand(teamSyncCmd())
	team.AddCommand(teamSyncAllCmd())
	return team
}

func teamShowCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show project members",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetProject(ctx, projectID); err != nil {
					return err
				}
				items, err := r.ListMembers(ctx, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Role", "Status"})
				for _, u := range items {
					tw.AppendRow(table.Row{u.ID, u.Name, u.Role, u.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func teamSyncCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync a project's team with the reporting subtree",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				members, err := e.SyncTeam(ctx, projectID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(members)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func teamSyncAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync-all",
		Short: "Sync every active project's team",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				synced, failed, err := e.SyncAllProjectTeams(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]int{"synced": synced, "failed": failed})
			})
		},
	}
	return cmd
}

// --- access ---

func accessCmd() *cobra.Command {
	access := &cobra.Command{Use: "access", Short: "Resource access grants"}
	access.AddCommand(accessGrantCmd())
	access.AddCommand(accessRevokeCmd())
	access.AddCommand(accessListCmd())
	return access
}

func accessGrantCmd() *cobra.Command {
	var level, resourceID, userID string
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant access to a module, task, or activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if level == "" || resourceID == "" || userID == "" {
				return fmt.Errorf("--level, --resource, and --user required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.GrantAccess(ctx, repo.Level(level), resourceID, userID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(entries)
			})
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "module, task, or activity")
	cmd.Flags().StringVar(&resourceID, "resource", "", "resource id")
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	return cmd
}

func accessRevokeCmd() *cobra.Command {
	var level, resourceID, userID string
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke access (cascades to lower levels)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if level == "" || resourceID == "" || userID == "" {
				return fmt.Errorf("--level, --resource, and --user required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.RevokeAccess(ctx, repo.Level(level), resourceID, userID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(entries)
			})
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "module, task, or activity")
	cmd.Flags().StringVar(&resourceID, "resource", "", "resource id")
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	return cmd
}

func accessListCmd() *cobra.Command {
	var level, resourceID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List grants on a resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			if level == "" || resourceID == "" {
				return fmt.Errorf("--level and --resource required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.ListAccess(ctx, repo.Level(level), resourceID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"User", "Name", "Manager"})
				for _, g := range entries {
					mark := ""
					if g.IsManager {
						mark = "yes"
					}
					tw.AppendRow(table.Row{g.UserID, g.Name, mark})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "module, task, or activity")
	cmd.Flags().StringVar(&resourceID, "resource", "", "resource id")
	return cmd
}

// --- time logs ---

func timelogCmd() *cobra.Command {
	tl := &cobra.Command{Use: "timelog", Short: "Time logs"}
	tl.AddCommand(timelogAddCmd())
	tl.AddCommand(timelogListCmd())
	return tl
}

func timelogAddCmd() *cobra.Command {
	var userID, projectID, moduleID, taskID, activityID, logDate, notes string
	var hours float64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Log hours against a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if userID == "" {
					userID = viper.GetString("actor-id")
				}
				l, err := e.AddTimeLog(ctx, engine.TimeLogOptions{
					UserID:     userID,
					ProjectID:  projectID,
					ModuleID:   moduleID,
					TaskID:     taskID,
					ActivityID: activityID,
					LogDate:    logDate,
					Hours:      hours,
					Notes:      notes,
					ActorID:    viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (defaults to actor)")
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&moduleID, "module", "", "module id")
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.Flags().StringVar(&activityID, "activity", "", "activity id")
	cmd.Flags().StringVar(&logDate, "date", "", "log date (YYYY-MM-DD, defaults to today)")
	cmd.Flags().Float64Var(&hours, "hours", 0, "hours worked")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	return cmd
}

func timelogListCmd() *cobra.Command {
	var projectID, userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List time logs for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListTimeLogs(ctx, projectID, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Date", "User", "Hours", "Notes"})
				for _, l := range items {
					tw.AppendRow(table.Row{l.LogDate, l.UserID, l.Hours, l.Notes})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&userID, "user", "", "user filter")
	return cmd
}

// --- events ---

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var projectID, evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, projectID, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&projectID, "project", "", "project filter")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

// --- api keys ---

func keysCmd() *cobra.Command {
	keys := &cobra.Command{Use: "keys", Short: "API keys"}
	keys.AddCommand(keysCreateCmd())
	keys.AddCommand(keysListCmd())
	keys.AddCommand(keysRevokeCmd())
	return keys
}

func keysCreateCmd() *cobra.Command {
	var actorID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if actorID == "" {
					actorID = viper.GetString("actor-id")
				}
				raw, key, err := newAPIKey(ctx, r, actorID, name)
				if err != nil {
					return err
				}
				out := map[string]string{"id": key.ID, "actor_id": key.ActorID, "key": raw}
				if name != "" {
					out["name"] = name
				}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor id (defaults to --actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "key name")
	return cmd
}

func keysListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range items {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor filter")
	return cmd
}

func keysRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

// --- config ---

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Workspace config"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default teamline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

// --- serve ---

func serveCmd() *cobra.Command {
	var addr, basePath string
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
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			if _, err := app.EnsureActor(cmd.Context(), r, viper.GetString("actor-id")); err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("TEAMLINE_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("TEAMLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg, Context: cmd.Context()})
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
			fmt.Printf("Serving Teamline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

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
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	if _, err := app.EnsureActor(ctx, r, viper.GetString("actor-id")); err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
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

func newAPIKey(ctx context.Context, r repo.Repo, actorID, name string) (string, domain.APIKey, error) {
	raw := uuid.NewString() + uuid.NewString()
	key := domain.APIKey{
		ID:      uuid.NewString(),
		ActorID: actorID,
		Name:    name,
		KeyHash: repo.HashAPIKey(raw),
	}
	if err := r.InsertAPIKey(ctx, nil, key); err != nil {
		return "", domain.APIKey{}, err
	}
	return raw, key, nil
}
