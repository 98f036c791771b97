package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"teamline/internal/config"
	"teamline/internal/db"
	"teamline/internal/domain"
	"teamline/internal/engine"
	"teamline/internal/events"
	"teamline/internal/migrate"
	"teamline/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func mustUser(t *testing.T, env testEnv, id, reportsTo string) domain.User {
	t.Helper()
	u, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		ID:                 id,
		Name:               id,
		ReportingManagerID: reportsTo,
		ActorID:            "tester",
	})
	if err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return u
}

func mustProject(t *testing.T, env testEnv, name, managerID string) domain.Project {
	t.Helper()
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{
		Name:      name,
		ManagerID: managerID,
		ActorID:   "tester",
	})
	if err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}
	return p
}

func mustModule(t *testing.T, env testEnv, projectID, name string) domain.Module {
	t.Helper()
	m, err := env.Engine.CreateModule(env.Ctx, engine.ModuleCreateOptions{
		ProjectID: projectID,
		Name:      name,
		ActorID:   "tester",
	})
	if err != nil {
		t.Fatalf("create module %s: %v", name, err)
	}
	return m
}

func mustTask(t *testing.T, env testEnv, moduleID, name string) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ModuleID: moduleID,
		Name:     name,
		ActorID:  "tester",
	})
	if err != nil {
		t.Fatalf("create task %s: %v", name, err)
	}
	return task
}

func mustActivity(t *testing.T, env testEnv, taskID, name string) domain.Activity {
	t.Helper()
	a, err := env.Engine.CreateActivity(env.Ctx, engine.ActivityCreateOptions{
		TaskID:  taskID,
		Name:    name,
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create activity %s: %v", name, err)
	}
	return a
}

func TestCustomIDGeneration(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "mgr", "")

	p1 := mustProject(t, env, "first", "mgr")
	p2 := mustProject(t, env, "second", "mgr")
	if p1.CustomID != "PRO-001" || p2.CustomID != "PRO-002" {
		t.Fatalf("project ids: got %s, %s", p1.CustomID, p2.CustomID)
	}

	m1 := mustModule(t, env, p1.ID, "m1")
	m2 := mustModule(t, env, p1.ID, "m2")
	m3 := mustModule(t, env, p1.ID, "m3")
	if m1.CustomID != "MOD-001" || m2.CustomID != "MOD-002" || m3.CustomID != "MOD-003" {
		t.Fatalf("module ids: got %s, %s, %s", m1.CustomID, m2.CustomID, m3.CustomID)
	}

	// Sequences restart per parent.
	other := mustModule(t, env, p2.ID, "other")
	if other.CustomID != "MOD-001" {
		t.Fatalf("expected MOD-001 in second project, got %s", other.CustomID)
	}

	task1 := mustTask(t, env, m1.ID, "t1")
	task2 := mustTask(t, env, m2.ID, "t2")
	if task1.CustomID != "TSK-001" || task2.CustomID != "TSK-001" {
		t.Fatalf("task ids: got %s, %s", task1.CustomID, task2.CustomID)
	}

	a1 := mustActivity(t, env, task1.ID, "a1")
	a2 := mustActivity(t, env, task1.ID, "a2")
	if a1.CustomID != "ACT-001" || a2.CustomID != "ACT-002" {
		t.Fatalf("activity ids: got %s, %s", a1.CustomID, a2.CustomID)
	}
}

func TestProjectEndDateAutoSet(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "mgr", "")
	p := mustProject(t, env, "proj", "mgr")

	status := "completed"
	p, err := env.Engine.UpdateProject(env.Ctx, engine.ProjectUpdateOptions{
		ID:      p.ID,
		Status:  &status,
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("update project: %v", err)
	}
	if p.Status != "completed" {
		t.Fatalf("status: got %s", p.Status)
	}
	if p.EndDate == nil || *p.EndDate == "" {
		t.Fatalf("expected end date to be set on leaving active")
	}
}

func TestUpdateProjectCombinedManagerChangeAtomic(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "mgr", "")
	if _, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		ID: "gone", Name: "gone", Status: "resigned", ActorID: "tester",
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	p := mustProject(t, env, "proj", "mgr")

	status := "on_hold"
	manager := "gone"
	_, err := env.Engine.UpdateProject(env.Ctx, engine.ProjectUpdateOptions{
		ID:        p.ID,
		Status:    &status,
		ManagerID: &manager,
		ActorID:   "tester",
	})
	var ims engine.InvalidManagerStatusError
	if !errors.As(err, &ims) {
		t.Fatalf("expected InvalidManagerStatusError, got %v", err)
	}

	// The whole update fails: no field change commits.
	got, err := env.Engine.Repo.GetProject(env.Ctx, p.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got.Status != "active" {
		t.Fatalf("status committed despite failed update: %s", got.Status)
	}
	if got.EndDate != nil {
		t.Fatalf("end date committed despite failed update: %s", *got.EndDate)
	}
	if got.ManagerID != "mgr" {
		t.Fatalf("manager changed despite failed update: %s", got.ManagerID)
	}
}

func TestCreateModuleOnInactiveProject(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "mgr", "")
	p := mustProject(t, env, "proj", "mgr")

	status := "on_hold"
	if _, err := env.Engine.UpdateProject(env.Ctx, engine.ProjectUpdateOptions{ID: p.ID, Status: &status, ActorID: "tester"}); err != nil {
		t.Fatalf("update project: %v", err)
	}
	_, err := env.Engine.CreateModule(env.Ctx, engine.ModuleCreateOptions{ProjectID: p.ID, Name: "m", ActorID: "tester"})
	var pna engine.ProjectNotActiveError
	if !errors.As(err, &pna) {
		t.Fatalf("expected ProjectNotActiveError, got %v", err)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "mgr", "")
	mustUser(t, env, "dev", "mgr")
	p := mustProject(t, env, "proj", "mgr")
	m := mustModule(t, env, p.ID, "m")
	task := mustTask(t, env, m.ID, "t")
	a := mustActivity(t, env, task.ID, "a")

	if _, err := env.Engine.GrantAccess(env.Ctx, repo.LevelModule, m.ID, "dev", "tester"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := env.Engine.AddTimeLog(env.Ctx, engine.TimeLogOptions{
		UserID: "dev", ProjectID: p.ID, Hours: 2, ActorID: "tester",
	}); err != nil {
		t.Fatalf("time log: %v", err)
	}

	if err := env.Engine.DeleteProject(env.Ctx, p.ID, "tester"); err != nil {
		t.Fatalf("delete project: %v", err)
	}

	if _, err := env.Engine.Repo.GetProject(env.Ctx, p.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("project still present: %v", err)
	}
	if _, err := env.Engine.Repo.GetModule(env.Ctx, m.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("module still present: %v", err)
	}
	if _, err := env.Engine.Repo.GetTask(env.Ctx, task.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("task still present: %v", err)
	}
	if _, err := env.Engine.Repo.GetActivity(env.Ctx, a.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("activity still present: %v", err)
	}
	if has, _ := env.Engine.Repo.HasGrant(env.Ctx, repo.LevelModule, m.ID, "dev"); has {
		t.Fatalf("grant survived project deletion")
	}
	logs, err := env.Engine.Repo.ListTimeLogs(env.Ctx, p.ID, "")
	if err != nil {
		t.Fatalf("list time logs: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("expected no time logs, got %d", len(logs))
	}
}

func TestDeleteModuleCascades(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "mgr", "")
	mustUser(t, env, "dev", "mgr")
	p := mustProject(t, env, "proj", "mgr")
	m := mustModule(t, env, p.ID, "m")
	keep := mustModule(t, env, p.ID, "keep")
	task := mustTask(t, env, m.ID, "t")
	a := mustActivity(t, env, task.ID, "a")

	if _, err := env.Engine.GrantAccess(env.Ctx, repo.LevelActivity, a.ID, "dev", "tester"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	if err := env.Engine.DeleteModule(env.Ctx, m.ID, "tester"); err != nil {
		t.Fatalf("delete module: %v", err)
	}

	if _, err := env.Engine.Repo.GetTask(env.Ctx, task.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("task survived module deletion: %v", err)
	}
	if _, err := env.Engine.Repo.GetActivity(env.Ctx, a.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("activity survived module deletion: %v", err)
	}
	if has, _ := env.Engine.Repo.HasGrant(env.Ctx, repo.LevelActivity, a.ID, "dev"); has {
		t.Fatalf("activity grant survived module deletion")
	}
	if _, err := env.Engine.Repo.GetModule(env.Ctx, keep.ID); err != nil {
		t.Fatalf("sibling module should survive: %v", err)
	}
}

func TestAddTimeLogScopeValidation(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "mgr", "")
	p1 := mustProject(t, env, "first", "mgr")
	p2 := mustProject(t, env, "second", "mgr")
	m1 := mustModule(t, env, p1.ID, "m1")
	task1 := mustTask(t, env, m1.ID, "t1")
	a1 := mustActivity(t, env, task1.ID, "a1")
	m2 := mustModule(t, env, p2.ID, "m2")

	// A module from another project is rejected.
	if _, err := env.Engine.AddTimeLog(env.Ctx, engine.TimeLogOptions{
		UserID: "mgr", ProjectID: p1.ID, ModuleID: m2.ID, Hours: 1, ActorID: "tester",
	}); err == nil {
		t.Fatalf("expected cross-project module to be rejected")
	}

	// A task outside the given module is rejected.
	if _, err := env.Engine.AddTimeLog(env.Ctx, engine.TimeLogOptions{
		UserID: "mgr", ProjectID: p1.ID, ModuleID: m2.ID, TaskID: task1.ID, Hours: 1, ActorID: "tester",
	}); err == nil {
		t.Fatalf("expected mismatched task/module to be rejected")
	}

	// The deepest id alone is enough; parents are filled in.
	l, err := env.Engine.AddTimeLog(env.Ctx, engine.TimeLogOptions{
		UserID: "mgr", ProjectID: p1.ID, ActivityID: a1.ID, Hours: 2, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("add time log: %v", err)
	}
	if l.TaskID == nil || *l.TaskID != task1.ID {
		t.Fatalf("task not derived from activity: %+v", l.TaskID)
	}
	if l.ModuleID == nil || *l.ModuleID != m1.ID {
		t.Fatalf("module not derived from activity: %+v", l.ModuleID)
	}
}

func TestEventKindsRecorded(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "mgr", "")
	mustUser(t, env, "new", "")
	p := mustProject(t, env, "proj", "mgr")
	if _, err := env.Engine.ReassignManager(env.Ctx, p.ID, "new", "tester"); err != nil {
		t.Fatalf("reassign: %v", err)
	}

	for _, kind := range []events.Kind{events.ProjectCreated, events.ManagerReassigned} {
		got, err := env.Engine.Repo.LatestEvents(env.Ctx, 1, p.ID, string(kind), "", "")
		if err != nil {
			t.Fatalf("latest events: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected one %s event, got %d", kind, len(got))
		}
	}
}

func TestCreateProjectBlockedManager(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		ID: "gone", Name: "gone", Status: "resigned", ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err = env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{
		Name: "proj", ManagerID: u.ID, ActorID: "tester",
	})
	var ims engine.InvalidManagerStatusError
	if !errors.As(err, &ims) {
		t.Fatalf("expected InvalidManagerStatusError, got %v", err)
	}
	if ims.Status != "resigned" {
		t.Fatalf("status in error: got %s", ims.Status)
	}
}
