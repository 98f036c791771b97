// Package events is the append-only audit log. Every engine mutation writes
// one entry inside its own transaction, so the log commits or rolls back
// together with the change it describes.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Kind names one entry of the audit vocabulary. Webhook filters and the
// events API match on these strings, so they are part of the external
// surface and must stay stable.
type Kind string

const (
	UserCreated       Kind = "user.created"
	UserUpdated       Kind = "user.updated"
	ProjectCreated    Kind = "project.created"
	ProjectUpdated    Kind = "project.updated"
	ProjectDeleted    Kind = "project.deleted"
	ModuleCreated     Kind = "module.created"
	ModuleUpdated     Kind = "module.updated"
	ModuleDeleted     Kind = "module.deleted"
	TaskCreated       Kind = "task.created"
	TaskUpdated       Kind = "task.updated"
	TaskDeleted       Kind = "task.deleted"
	ActivityCreated   Kind = "activity.created"
	ActivityUpdated   Kind = "activity.updated"
	ActivityDeleted   Kind = "activity.deleted"
	TeamSynced        Kind = "team.synced"
	ManagerReassigned Kind = "manager.reassigned"
	AccessGranted     Kind = "access.granted"
	AccessRevoked     Kind = "access.revoked"
	TimeLogAdded      Kind = "timelog.added"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append records one event inside the caller's transaction. projectID and
// entityID may be empty for directory-level events and are stored as NULL.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, kind Kind, projectID, entityKind, entityID, actorID string, payload EventPayload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	var project, entity any
	if projectID != "" {
		project = projectID
	}
	if entityID != "" {
		entity = entityID
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO events(ts,type,project_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339), string(kind), project, entityKind, entity, actorID, string(data))
	return err
}
