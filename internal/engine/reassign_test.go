package engine_test

import (
	"errors"
	"testing"

	"teamline/internal/engine"
	"teamline/internal/repo"
)

func TestReassignManager(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "old", "")
	mustUser(t, env, "olddev", "old")
	mustUser(t, env, "new", "")
	mustUser(t, env, "newdev", "new")
	p := mustProject(t, env, "proj", "old")
	m := mustModule(t, env, p.ID, "m")
	task := mustTask(t, env, m.ID, "t")
	a := mustActivity(t, env, task.ID, "a")

	if _, err := env.Engine.GrantAccess(env.Ctx, repo.LevelModule, m.ID, "olddev", "tester"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	got, err := env.Engine.ReassignManager(env.Ctx, p.ID, "new", "tester")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if got.ManagerID != "new" {
		t.Fatalf("manager: got %s", got.ManagerID)
	}

	// Membership now mirrors the new manager's subtree.
	members := memberIDs(t, env, p.ID)
	want := []string{"new", "newdev"}
	if len(members) != len(want) || members[0] != want[0] || members[1] != want[1] {
		t.Fatalf("members: got %v, want %v", members, want)
	}

	// Every old grant is gone, including the previous manager's baseline.
	for _, user := range []string{"old", "olddev"} {
		if has, _ := env.Engine.Repo.HasGrant(env.Ctx, repo.LevelModule, m.ID, user); has {
			t.Fatalf("%s kept a module grant after reassignment", user)
		}
	}

	// The new manager holds access at every level.
	checks := []struct {
		level repo.Level
		id    string
	}{
		{repo.LevelModule, m.ID},
		{repo.LevelTask, task.ID},
		{repo.LevelActivity, a.ID},
	}
	for _, c := range checks {
		if has, _ := env.Engine.Repo.HasGrant(env.Ctx, c.level, c.id, "new"); !has {
			t.Fatalf("new manager missing %s grant", c.level)
		}
	}
}

func TestReassignManagerBlockedStatus(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "old", "")
	p := mustProject(t, env, "proj", "old")
	if _, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		ID: "leaving", Name: "leaving", Status: "on_notice", ActorID: "tester",
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	_, err := env.Engine.ReassignManager(env.Ctx, p.ID, "leaving", "tester")
	var ims engine.InvalidManagerStatusError
	if !errors.As(err, &ims) {
		t.Fatalf("expected InvalidManagerStatusError, got %v", err)
	}

	// Nothing changed.
	got, err := env.Engine.Repo.GetProject(env.Ctx, p.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got.ManagerID != "old" {
		t.Fatalf("manager changed despite failed reassignment: %s", got.ManagerID)
	}
	members := memberIDs(t, env, p.ID)
	if len(members) != 1 || members[0] != "old" {
		t.Fatalf("members changed despite failed reassignment: %v", members)
	}
}

func TestReassignManagerUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "old", "")
	p := mustProject(t, env, "proj", "old")

	_, err := env.Engine.ReassignManager(env.Ctx, p.ID, "ghost", "tester")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
