package engine

import (
	"context"
	"fmt"
	"time"

	"teamline/internal/domain"
	"teamline/internal/events"
	"teamline/internal/repo"
)

// ReassignManager hands a project to a new manager in one transaction:
// validate the candidate's status, persist the new manager, wipe every
// grant under the project, resync membership to the new subtree, then
// grant the new manager access to every existing module, task and activity.
func (e Engine) ReassignManager(ctx context.Context, projectID, newManagerID, actorID string) (domain.Project, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProjectTx(ctx, tx, projectID)
	if err != nil {
		return p, err
	}
	status, err := e.Repo.UserStatus(ctx, tx, newManagerID)
	if err != nil {
		return p, fmt.Errorf("new manager: %w", err)
	}
	if e.managerStatusBlocked(status) {
		return p, InvalidManagerStatusError{UserID: newManagerID, Status: status}
	}

	previous := p.ManagerID
	now := e.now().UTC().Format(time.RFC3339)
	p.ManagerID = newManagerID
	p.UpdatedAt = now
	if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
		return p, err
	}

	if err := e.Repo.DeleteGrantsByProject(ctx, tx, p.ID); err != nil {
		return p, err
	}
	if _, _, err := e.syncProjectTeamTx(ctx, tx, p.ID, newManagerID, now); err != nil {
		return p, err
	}

	moduleIDs, err := e.Repo.ModuleIDs(ctx, tx, p.ID)
	if err != nil {
		return p, err
	}
	for _, id := range moduleIDs {
		if err := e.Repo.InsertGrant(ctx, tx, repo.LevelModule, id, newManagerID, actorID, now); err != nil {
			return p, err
		}
	}
	taskIDs, err := e.Repo.TaskIDsUnderProject(ctx, tx, p.ID)
	if err != nil {
		return p, err
	}
	for _, id := range taskIDs {
		if err := e.Repo.InsertGrant(ctx, tx, repo.LevelTask, id, newManagerID, actorID, now); err != nil {
			return p, err
		}
	}
	activityIDs, err := e.Repo.ActivityIDsUnderProject(ctx, tx, p.ID)
	if err != nil {
		return p, err
	}
	for _, id := range activityIDs {
		if err := e.Repo.InsertGrant(ctx, tx, repo.LevelActivity, id, newManagerID, actorID, now); err != nil {
			return p, err
		}
	}

	if err := e.Events.Append(ctx, tx, events.ManagerReassigned, p.ID, "project", p.ID, actorID, events.EventPayload{"from": previous, "to": newManagerID}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	return p, nil
}
