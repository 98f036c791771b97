package engine

import (
	"context"
	"fmt"
	"time"

	"teamline/internal/domain"
	"teamline/internal/events"
	"teamline/internal/repo"
)

// GrantAccess records a grant at the given level and returns the resource's
// resulting grant list. Granting is idempotent; re-granting an existing
// grant changes nothing.
func (e Engine) GrantAccess(ctx context.Context, level repo.Level, resourceID, userID, grantedBy string) ([]domain.GrantEntry, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("unknown access level %q", level)
	}
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("grantee: %w", err)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	chain, err := e.Repo.ResolveOwnerChain(ctx, tx, level, resourceID)
	if err != nil {
		return nil, err
	}
	if chain.ProjectStatus != "active" {
		return nil, ProjectNotActiveError{ProjectID: chain.ProjectID, Status: chain.ProjectStatus}
	}
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.InsertGrant(ctx, tx, level, resourceID, userID, grantedBy, now); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, events.AccessGranted, chain.ProjectID, string(level), resourceID, grantedBy, events.EventPayload{"user_id": userID, "level": string(level)}); err != nil {
		return nil, err
	}
	entries, err := e.Repo.GrantEntries(ctx, tx, level, resourceID, chain.ManagerID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entries, nil
}

// RevokeAccess removes a grant and cascades the removal to the same user's
// grants at every level nested below the resource. The project manager's
// access is protected; revoking it fails with ProtectedRoleError.
func (e Engine) RevokeAccess(ctx context.Context, level repo.Level, resourceID, userID, requestedBy string) ([]domain.GrantEntry, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("unknown access level %q", level)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	chain, err := e.Repo.ResolveOwnerChain(ctx, tx, level, resourceID)
	if err != nil {
		return nil, err
	}
	if chain.ProjectStatus != "active" {
		return nil, ProjectNotActiveError{ProjectID: chain.ProjectID, Status: chain.ProjectStatus}
	}
	if userID == chain.ManagerID {
		return nil, ProtectedRoleError{UserID: userID, ProjectID: chain.ProjectID}
	}
	if _, err := e.Repo.DeleteGrant(ctx, tx, level, resourceID, userID); err != nil {
		return nil, err
	}
	switch level {
	case repo.LevelModule:
		if err := e.Repo.DeleteActivityGrantsUnderModule(ctx, tx, resourceID, userID); err != nil {
			return nil, err
		}
		if err := e.Repo.DeleteTaskGrantsUnderModule(ctx, tx, resourceID, userID); err != nil {
			return nil, err
		}
	case repo.LevelTask:
		if err := e.Repo.DeleteActivityGrantsUnderTask(ctx, tx, resourceID, userID); err != nil {
			return nil, err
		}
	}
	if err := e.Events.Append(ctx, tx, events.AccessRevoked, chain.ProjectID, string(level), resourceID, requestedBy, events.EventPayload{"user_id": userID, "level": string(level)}); err != nil {
		return nil, err
	}
	entries, err := e.Repo.GrantEntries(ctx, tx, level, resourceID, chain.ManagerID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListAccess returns the grant list for a resource with the manager flagged.
func (e Engine) ListAccess(ctx context.Context, level repo.Level, resourceID string) ([]domain.GrantEntry, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("unknown access level %q", level)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	chain, err := e.Repo.ResolveOwnerChain(ctx, tx, level, resourceID)
	if err != nil {
		return nil, err
	}
	entries, err := e.Repo.GrantEntries(ctx, tx, level, resourceID, chain.ManagerID)
	if err != nil {
		return nil, err
	}
	return entries, tx.Commit()
}
