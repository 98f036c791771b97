package engine

import (
	"context"
	"database/sql"
	"log"
	"sort"
	"time"

	"teamline/internal/domain"
	"teamline/internal/events"
)

// ResolveSubtree walks the reporting forest downward from managerID and
// returns every transitive report. The visited set makes the walk safe even
// if a cycle sneaks into the reporting data.
func (e Engine) ResolveSubtree(ctx context.Context, managerID string) ([]string, error) {
	visited := map[string]bool{managerID: true}
	queue := []string{managerID}
	var out []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		reports, err := e.Repo.DirectReportIDs(ctx, current)
		if err != nil {
			return nil, err
		}
		for _, id := range reports {
			if visited[id] {
				continue
			}
			visited[id] = true
			out = append(out, id)
			queue = append(queue, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (e Engine) resolveSubtreeTx(ctx context.Context, tx *sql.Tx, managerID string) (map[string]bool, error) {
	visited := map[string]bool{managerID: true}
	queue := []string{managerID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		reports, err := e.Repo.DirectReportIDsTx(ctx, tx, current)
		if err != nil {
			return nil, err
		}
		for _, id := range reports {
			if !visited[id] {
				visited[id] = true
				queue = append(queue, id)
			}
		}
	}
	return visited, nil
}

// syncProjectTeamTx reconciles project membership against the manager's
// current subtree: the target set is the manager plus every transitive
// report. Members outside the target set are removed together with all of
// their grants under the project, child levels first.
func (e Engine) syncProjectTeamTx(ctx context.Context, tx *sql.Tx, projectID, managerID, now string) (added, removed int, err error) {
	target, err := e.resolveSubtreeTx(ctx, tx, managerID)
	if err != nil {
		return 0, 0, err
	}
	current, err := e.Repo.MemberIDs(ctx, tx, projectID)
	if err != nil {
		return 0, 0, err
	}
	currentSet := make(map[string]bool, len(current))
	for _, id := range current {
		currentSet[id] = true
	}
	for id := range target {
		if currentSet[id] {
			continue
		}
		if err := e.Repo.EnsureMember(ctx, tx, projectID, id, now); err != nil {
			return 0, 0, err
		}
		added++
	}
	for _, id := range current {
		if target[id] {
			continue
		}
		if err := e.Repo.DeleteGrantsUnderProjectForUser(ctx, tx, projectID, id); err != nil {
			return 0, 0, err
		}
		if err := e.Repo.RemoveMember(ctx, tx, projectID, id); err != nil {
			return 0, 0, err
		}
		removed++
	}
	return added, removed, nil
}

// SyncTeam reconciles one project's membership with its manager's reporting
// subtree. Safe to call any number of times.
func (e Engine) SyncTeam(ctx context.Context, projectID, actorID string) ([]domain.User, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	now := e.now().UTC().Format(time.RFC3339)
	added, removed, err := e.syncProjectTeamTx(ctx, tx, p.ID, p.ManagerID, now)
	if err != nil {
		return nil, err
	}
	if added > 0 || removed > 0 {
		if err := e.Events.Append(ctx, tx, events.TeamSynced, p.ID, "project", p.ID, actorID, events.EventPayload{"added": added, "removed": removed}); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return e.Repo.ListMembers(ctx, p.ID)
}

// SyncAllProjectTeams runs the membership reconciliation over every active
// project, one transaction per project. A failure on one project is logged
// and does not stop the sweep.
func (e Engine) SyncAllProjectTeams(ctx context.Context, actorID string) (synced, failed int, err error) {
	projects, err := e.Repo.ListProjects(ctx, "active")
	if err != nil {
		return 0, 0, err
	}
	for _, p := range projects {
		if _, err := e.SyncTeam(ctx, p.ID, actorID); err != nil {
			log.Printf("team sync failed for project %s: %v", p.CustomID, err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}
