package engine_test

import (
	"sort"
	"testing"

	"teamline/internal/engine"
	"teamline/internal/repo"
)

func memberIDs(t *testing.T, env testEnv, projectID string) []string {
	t.Helper()
	members, err := env.Engine.Repo.ListMembers(env.Ctx, projectID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestResolveSubtree(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "mgr", "")
	mustUser(t, env, "lead", "mgr")
	mustUser(t, env, "dev1", "lead")
	mustUser(t, env, "dev2", "lead")
	mustUser(t, env, "intern", "dev1")
	mustUser(t, env, "outsider", "")

	got, err := env.Engine.ResolveSubtree(env.Ctx, "mgr")
	if err != nil {
		t.Fatalf("resolve subtree: %v", err)
	}
	want := []string{"dev1", "dev2", "intern", "lead"}
	if len(got) != len(want) {
		t.Fatalf("subtree: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("subtree: got %v, want %v", got, want)
		}
	}

	leaf, err := env.Engine.ResolveSubtree(env.Ctx, "intern")
	if err != nil {
		t.Fatalf("resolve leaf subtree: %v", err)
	}
	if len(leaf) != 0 {
		t.Fatalf("leaf subtree: got %v", leaf)
	}
}

func TestResolveSubtreeCycleSafe(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "a", "")
	mustUser(t, env, "b", "a")
	// Point a back at b; the walk must still terminate.
	reports := "b"
	if _, err := env.Engine.UpdateUser(env.Ctx, engine.UserUpdateOptions{
		ID: "a", ReportingManagerID: &reports, ActorID: "tester",
	}); err != nil {
		t.Fatalf("update user: %v", err)
	}

	got, err := env.Engine.ResolveSubtree(env.Ctx, "a")
	if err != nil {
		t.Fatalf("resolve subtree: %v", err)
	}
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("subtree: got %v", got)
	}
}

func TestProjectCreationSeedsTeam(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "mgr", "")
	mustUser(t, env, "dev1", "mgr")
	mustUser(t, env, "dev2", "dev1")
	mustUser(t, env, "outsider", "")

	p := mustProject(t, env, "proj", "mgr")
	got := memberIDs(t, env, p.ID)
	want := []string{"dev1", "dev2", "mgr"}
	if len(got) != len(want) {
		t.Fatalf("members: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("members: got %v, want %v", got, want)
		}
	}
}

func TestSyncTeamAfterOrgChange(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "mgr", "")
	mustUser(t, env, "dev", "mgr")
	mustUser(t, env, "newcomer", "")
	p := mustProject(t, env, "proj", "mgr")

	// newcomer moves under mgr, dev moves out.
	under := "mgr"
	if _, err := env.Engine.UpdateUser(env.Ctx, engine.UserUpdateOptions{ID: "newcomer", ReportingManagerID: &under, ActorID: "tester"}); err != nil {
		t.Fatalf("update newcomer: %v", err)
	}
	none := ""
	if _, err := env.Engine.UpdateUser(env.Ctx, engine.UserUpdateOptions{ID: "dev", ReportingManagerID: &none, ActorID: "tester"}); err != nil {
		t.Fatalf("update dev: %v", err)
	}

	if _, err := env.Engine.SyncTeam(env.Ctx, p.ID, "tester"); err != nil {
		t.Fatalf("sync team: %v", err)
	}
	got := memberIDs(t, env, p.ID)
	want := []string{"mgr", "newcomer"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("members after sync: got %v, want %v", got, want)
	}

	// A second sync is a no-op.
	if _, err := env.Engine.SyncTeam(env.Ctx, p.ID, "tester"); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	got = memberIDs(t, env, p.ID)
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("members after second sync: got %v, want %v", got, want)
	}
}

func TestSyncTeamStripsGrantsOfRemovedMembers(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "mgr", "")
	mustUser(t, env, "dev", "mgr")
	p := mustProject(t, env, "proj", "mgr")
	m := mustModule(t, env, p.ID, "m")
	task := mustTask(t, env, m.ID, "t")

	if _, err := env.Engine.GrantAccess(env.Ctx, repo.LevelModule, m.ID, "dev", "tester"); err != nil {
		t.Fatalf("grant module: %v", err)
	}
	if _, err := env.Engine.GrantAccess(env.Ctx, repo.LevelTask, task.ID, "dev", "tester"); err != nil {
		t.Fatalf("grant task: %v", err)
	}

	none := ""
	if _, err := env.Engine.UpdateUser(env.Ctx, engine.UserUpdateOptions{ID: "dev", ReportingManagerID: &none, ActorID: "tester"}); err != nil {
		t.Fatalf("update dev: %v", err)
	}
	if _, err := env.Engine.SyncTeam(env.Ctx, p.ID, "tester"); err != nil {
		t.Fatalf("sync team: %v", err)
	}

	for _, level := range []repo.Level{repo.LevelModule, repo.LevelTask} {
		id := m.ID
		if level == repo.LevelTask {
			id = task.ID
		}
		if has, err := env.Engine.Repo.HasGrant(env.Ctx, level, id, "dev"); err != nil || has {
			t.Fatalf("grant at %s survived removal (has=%v err=%v)", level, has, err)
		}
	}
	got := memberIDs(t, env, p.ID)
	if len(got) != 1 || got[0] != "mgr" {
		t.Fatalf("members after sync: got %v", got)
	}
}
