package engine_test

import (
	"errors"
	"testing"

	"teamline/internal/engine"
	"teamline/internal/repo"
)

func TestGrantAccessIdempotent(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "mgr", "")
	mustUser(t, env, "dev", "mgr")
	p := mustProject(t, env, "proj", "mgr")
	m := mustModule(t, env, p.ID, "m")

	first, err := env.Engine.GrantAccess(env.Ctx, repo.LevelModule, m.ID, "dev", "tester")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	second, err := env.Engine.GrantAccess(env.Ctx, repo.LevelModule, m.ID, "dev", "tester")
	if err != nil {
		t.Fatalf("re-grant: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("grant list changed on re-grant: %d vs %d", len(first), len(second))
	}
}

func TestRevokeModuleCascades(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "mgr", "")
	mustUser(t, env, "dev", "mgr")
	p := mustProject(t, env, "proj", "mgr")
	m := mustModule(t, env, p.ID, "m")
	other := mustModule(t, env, p.ID, "other")
	task := mustTask(t, env, m.ID, "t")
	a := mustActivity(t, env, task.ID, "a")

	for _, g := range []struct {
		level repo.Level
		id    string
	}{
		{repo.LevelModule, m.ID},
		{repo.LevelTask, task.ID},
		{repo.LevelActivity, a.ID},
		{repo.LevelModule, other.ID},
	} {
		if _, err := env.Engine.GrantAccess(env.Ctx, g.level, g.id, "dev", "tester"); err != nil {
			t.Fatalf("grant %s/%s: %v", g.level, g.id, err)
		}
	}

	if _, err := env.Engine.RevokeAccess(env.Ctx, repo.LevelModule, m.ID, "dev", "tester"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	for _, g := range []struct {
		level repo.Level
		id    string
	}{
		{repo.LevelModule, m.ID},
		{repo.LevelTask, task.ID},
		{repo.LevelActivity, a.ID},
	} {
		if has, _ := env.Engine.Repo.HasGrant(env.Ctx, g.level, g.id, "dev"); has {
			t.Fatalf("%s grant survived module revoke", g.level)
		}
	}
	// The unrelated module grant stays.
	if has, _ := env.Engine.Repo.HasGrant(env.Ctx, repo.LevelModule, other.ID, "dev"); !has {
		t.Fatalf("unrelated module grant was removed")
	}
}

func TestRevokeTaskCascadesToActivities(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "mgr", "")
	mustUser(t, env, "dev", "mgr")
	p := mustProject(t, env, "proj", "mgr")
	m := mustModule(t, env, p.ID, "m")
	task := mustTask(t, env, m.ID, "t")
	a := mustActivity(t, env, task.ID, "a")

	if _, err := env.Engine.GrantAccess(env.Ctx, repo.LevelModule, m.ID, "dev", "tester"); err != nil {
		t.Fatalf("grant module: %v", err)
	}
	if _, err := env.Engine.GrantAccess(env.Ctx, repo.LevelTask, task.ID, "dev", "tester"); err != nil {
		t.Fatalf("grant task: %v", err)
	}
	if _, err := env.Engine.GrantAccess(env.Ctx, repo.LevelActivity, a.ID, "dev", "tester"); err != nil {
		t.Fatalf("grant activity: %v", err)
	}

	if _, err := env.Engine.RevokeAccess(env.Ctx, repo.LevelTask, task.ID, "dev", "tester"); err != nil {
		t.Fatalf("revoke task: %v", err)
	}

	if has, _ := env.Engine.Repo.HasGrant(env.Ctx, repo.LevelActivity, a.ID, "dev"); has {
		t.Fatalf("activity grant survived task revoke")
	}
	// The module-level grant is above the revoked task and stays.
	if has, _ := env.Engine.Repo.HasGrant(env.Ctx, repo.LevelModule, m.ID, "dev"); !has {
		t.Fatalf("module grant was removed by task revoke")
	}
}

func TestRevokeManagerProtected(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "mgr", "")
	p := mustProject(t, env, "proj", "mgr")
	m := mustModule(t, env, p.ID, "m")

	_, err := env.Engine.RevokeAccess(env.Ctx, repo.LevelModule, m.ID, "mgr", "tester")
	var pre engine.ProtectedRoleError
	if !errors.As(err, &pre) {
		t.Fatalf("expected ProtectedRoleError, got %v", err)
	}
	if pre.UserID != "mgr" || pre.ProjectID != p.ID {
		t.Fatalf("error fields: %+v", pre)
	}
	// Manager still holds the baseline grant.
	if has, _ := env.Engine.Repo.HasGrant(env.Ctx, repo.LevelModule, m.ID, "mgr"); !has {
		t.Fatalf("manager grant missing after failed revoke")
	}
}

func TestGrantOnInactiveProject(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "mgr", "")
	mustUser(t, env, "dev", "mgr")
	p := mustProject(t, env, "proj", "mgr")
	m := mustModule(t, env, p.ID, "m")

	status := "completed"
	if _, err := env.Engine.UpdateProject(env.Ctx, engine.ProjectUpdateOptions{ID: p.ID, Status: &status, ActorID: "tester"}); err != nil {
		t.Fatalf("update project: %v", err)
	}
	_, err := env.Engine.GrantAccess(env.Ctx, repo.LevelModule, m.ID, "dev", "tester")
	var pna engine.ProjectNotActiveError
	if !errors.As(err, &pna) {
		t.Fatalf("expected ProjectNotActiveError, got %v", err)
	}
}

func TestListAccessFlagsManager(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "mgr", "")
	mustUser(t, env, "dev", "mgr")
	p := mustProject(t, env, "proj", "mgr")
	m := mustModule(t, env, p.ID, "m")

	if _, err := env.Engine.GrantAccess(env.Ctx, repo.LevelModule, m.ID, "dev", "tester"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	entries, err := env.Engine.ListAccess(env.Ctx, repo.LevelModule, m.ID)
	if err != nil {
		t.Fatalf("list access: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	var sawManager, sawDev bool
	for _, e := range entries {
		switch e.UserID {
		case "mgr":
			sawManager = true
			if !e.IsManager {
				t.Fatalf("manager entry not flagged")
			}
		case "dev":
			sawDev = true
			if e.IsManager {
				t.Fatalf("dev entry flagged as manager")
			}
		}
	}
	if !sawManager || !sawDev {
		t.Fatalf("entries missing expected users: %+v", entries)
	}
}
