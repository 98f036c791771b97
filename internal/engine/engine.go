package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"teamline/internal/config"
	"teamline/internal/domain"
	"teamline/internal/events"
	"teamline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) cfg() *config.Config {
	if e.Config != nil {
		return e.Config
	}
	return config.Default()
}

// nextCustomID increments the numeric suffix of the last identifier, or
// starts the sequence when none exists. Suffixes are zero-padded to three
// digits and keep growing past 999.
func nextCustomID(prefix, last string) (string, error) {
	if last == "" {
		return fmt.Sprintf("%s-%03d", prefix, 1), nil
	}
	idx := strings.LastIndex(last, "-")
	if idx < 0 {
		return "", fmt.Errorf("malformed custom id %q", last)
	}
	n, err := strconv.Atoi(last[idx+1:])
	if err != nil {
		return "", fmt.Errorf("malformed custom id %q: %w", last, err)
	}
	return fmt.Sprintf("%s-%03d", prefix, n+1), nil
}

// --- users ---

type UserCreateOptions struct {
	ID                 string
	Name               string
	Email              string
	Role               string
	Status             string
	ReportingManagerID string
	ActorID            string
}

func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	if opts.Name == "" {
		return domain.User{}, errors.New("name is required")
	}
	if opts.Role == "" {
		opts.Role = "employee"
	}
	if opts.Status == "" {
		opts.Status = "active"
	}
	if opts.ReportingManagerID != "" {
		if _, err := e.Repo.GetUser(ctx, opts.ReportingManagerID); err != nil {
			return domain.User{}, fmt.Errorf("reporting manager: %w", err)
		}
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	u := domain.User{
		ID:                 id,
		Name:               opts.Name,
		Email:              opts.Email,
		Role:               opts.Role,
		Status:             opts.Status,
		ReportingManagerID: optionalString(opts.ReportingManagerID),
		CreatedAt:          e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUserTx(ctx, tx, u); err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.UserCreated, "", "user", u.ID, opts.ActorID, events.EventPayload{"name": u.Name, "role": u.Role}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// UserUpdateOptions enumerates exactly the fields the engine cares about.
// Reporting-line changes are not propagated here; membership drift is
// repaired by the reconciliation sweep or a per-project sync.
type UserUpdateOptions struct {
	ID                 string
	Name               *string
	Email              *string
	Role               *string
	Status             *string
	ReportingManagerID *string
	ActorID            string
}

func (e Engine) UpdateUser(ctx context.Context, opts UserUpdateOptions) (domain.User, error) {
	u, err := e.Repo.GetUser(ctx, opts.ID)
	if err != nil {
		return u, err
	}
	if opts.Name != nil {
		u.Name = *opts.Name
	}
	if opts.Email != nil {
		u.Email = *opts.Email
	}
	if opts.Role != nil {
		u.Role = *opts.Role
	}
	if opts.Status != nil {
		u.Status = *opts.Status
	}
	if opts.ReportingManagerID != nil {
		if *opts.ReportingManagerID == "" {
			u.ReportingManagerID = nil
		} else {
			if *opts.ReportingManagerID == u.ID {
				return u, errors.New("user cannot report to themselves")
			}
			if _, err := e.Repo.GetUser(ctx, *opts.ReportingManagerID); err != nil {
				return u, fmt.Errorf("reporting manager: %w", err)
			}
			u.ReportingManagerID = opts.ReportingManagerID
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return u, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateUser(ctx, tx, u); err != nil {
		return u, err
	}
	if err := e.Events.Append(ctx, tx, events.UserUpdated, "", "user", u.ID, opts.ActorID, events.EventPayload{"status": u.Status}); err != nil {
		return u, err
	}
	if err := tx.Commit(); err != nil {
		return u, err
	}
	return u, nil
}

// --- projects ---

type ProjectCreateOptions struct {
	Name        string
	Description string
	ManagerID   string
	ActorID     string
}

// CreateProject inserts a project with a generated custom id and seeds its
// membership from the manager's reporting subtree, all in one transaction.
func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if opts.Name == "" {
		return domain.Project{}, errors.New("name is required")
	}
	if opts.ManagerID == "" {
		return domain.Project{}, errors.New("manager is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	status, err := e.Repo.UserStatus(ctx, tx, opts.ManagerID)
	if err != nil {
		return domain.Project{}, fmt.Errorf("manager: %w", err)
	}
	if e.managerStatusBlocked(status) {
		return domain.Project{}, InvalidManagerStatusError{UserID: opts.ManagerID, Status: status}
	}

	prefix := e.cfg().Identifiers.ProjectPrefix
	last, err := e.Repo.LastProjectCustomID(ctx, tx, prefix)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return domain.Project{}, err
	}
	customID, err := nextCustomID(prefix, last)
	if err != nil {
		return domain.Project{}, err
	}

	now := e.now().UTC().Format(time.RFC3339)
	p := domain.Project{
		ID:          uuid.NewString(),
		CustomID:    customID,
		Name:        opts.Name,
		Description: opts.Description,
		ManagerID:   opts.ManagerID,
		Status:      "active",
		StartDate:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		if isUniqueViolation(err) {
			return domain.Project{}, DuplicateIdentifierError{CustomID: customID}
		}
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if _, _, err := e.syncProjectTeamTx(ctx, tx, p.ID, p.ManagerID, now); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, events.ProjectCreated, p.ID, "project", p.ID, opts.ActorID, events.EventPayload{"custom_id": p.CustomID, "manager_id": p.ManagerID}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// ProjectUpdateOptions enumerates the updatable fields; a manager change is
// detected here and routed through the reassignment sequence.
type ProjectUpdateOptions struct {
	ID          string
	Name        *string
	Description *string
	Status      *string
	EndDate     *string
	ManagerID   *string
	ActorID     string
}

func (e Engine) UpdateProject(ctx context.Context, opts ProjectUpdateOptions) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, opts.ID)
	if err != nil {
		return p, err
	}
	managerChange := opts.ManagerID != nil && *opts.ManagerID != "" && *opts.ManagerID != p.ManagerID

	if opts.Name != nil {
		p.Name = *opts.Name
	}
	if opts.Description != nil {
		p.Description = *opts.Description
	}
	if opts.EndDate != nil {
		if *opts.EndDate == "" {
			p.EndDate = nil
		} else {
			p.EndDate = opts.EndDate
		}
	}
	if opts.Status != nil && *opts.Status != p.Status {
		wasActive := p.Status == "active"
		p.Status = *opts.Status
		if wasActive && p.Status != "active" && opts.EndDate == nil && p.EndDate == nil {
			end := e.now().UTC().Format(time.RFC3339)
			p.EndDate = &end
		}
	}
	p.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if managerChange {
		// Reject an ineligible manager candidate before any field change
		// commits, so a combined update fails as a whole.
		status, err := e.Repo.UserStatus(ctx, tx, *opts.ManagerID)
		if err != nil {
			return p, fmt.Errorf("new manager: %w", err)
		}
		if e.managerStatusBlocked(status) {
			return p, InvalidManagerStatusError{UserID: *opts.ManagerID, Status: status}
		}
	}
	if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
		return p, err
	}
	if err := e.Events.Append(ctx, tx, events.ProjectUpdated, p.ID, "project", p.ID, opts.ActorID, events.EventPayload{"status": p.Status}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	if managerChange {
		return e.ReassignManager(ctx, p.ID, *opts.ManagerID, opts.ActorID)
	}
	return p, nil
}

// DeleteProject removes the project and its whole owned subtree in
// dependency order, atomically.
func (e Engine) DeleteProject(ctx context.Context, projectID, actorID string) error {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeleteTimeLogsByProject(ctx, tx, projectID); err != nil {
		return fmt.Errorf("delete time logs: %w", err)
	}
	if err := e.Repo.DeleteGrantsByProject(ctx, tx, projectID); err != nil {
		return fmt.Errorf("delete grants: %w", err)
	}
	if err := e.Repo.DeleteActivitiesByProject(ctx, tx, projectID); err != nil {
		return fmt.Errorf("delete activities: %w", err)
	}
	if err := e.Repo.DeleteTasksByProject(ctx, tx, projectID); err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	if err := e.Repo.DeleteModulesByProject(ctx, tx, projectID); err != nil {
		return fmt.Errorf("delete modules: %w", err)
	}
	if err := e.Repo.DeleteMembersByProject(ctx, tx, projectID); err != nil {
		return fmt.Errorf("delete members: %w", err)
	}
	if err := e.Repo.DeleteProjectRow(ctx, tx, projectID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.ProjectDeleted, projectID, "project", projectID, actorID, events.EventPayload{"custom_id": p.CustomID}); err != nil {
		return err
	}
	return tx.Commit()
}

// --- modules ---

type ModuleCreateOptions struct {
	ProjectID   string
	Name        string
	Description string
	ActorID     string
}

func (e Engine) CreateModule(ctx context.Context, opts ModuleCreateOptions) (domain.Module, error) {
	if opts.Name == "" {
		return domain.Module{}, errors.New("name is required")
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Module{}, err
	}
	if p.Status != "active" {
		return domain.Module{}, ProjectNotActiveError{ProjectID: p.ID, Status: p.Status}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Module{}, err
	}
	defer tx.Rollback()

	prefix := e.cfg().Identifiers.ModulePrefix
	last, err := e.Repo.LastModuleCustomID(ctx, tx, p.ID, prefix)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return domain.Module{}, err
	}
	customID, err := nextCustomID(prefix, last)
	if err != nil {
		return domain.Module{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	m := domain.Module{
		ID:          uuid.NewString(),
		CustomID:    customID,
		ProjectID:   p.ID,
		Name:        opts.Name,
		Description: opts.Description,
		Status:      "active",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertModule(ctx, tx, m); err != nil {
		if isUniqueViolation(err) {
			return domain.Module{}, DuplicateIdentifierError{CustomID: customID}
		}
		return domain.Module{}, fmt.Errorf("insert module: %w", err)
	}
	// The manager holds baseline access to every resource under the project.
	if err := e.Repo.InsertGrant(ctx, tx, repo.LevelModule, m.ID, p.ManagerID, opts.ActorID, now); err != nil {
		return domain.Module{}, err
	}
	if err := e.Events.Append(ctx, tx, events.ModuleCreated, p.ID, "module", m.ID, opts.ActorID, events.EventPayload{"custom_id": m.CustomID}); err != nil {
		return domain.Module{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Module{}, err
	}
	return m, nil
}

type ResourceUpdateOptions struct {
	ID          string
	Name        *string
	Description *string
	Status      *string
	ActorID     string
}

func (e Engine) UpdateModule(ctx context.Context, opts ResourceUpdateOptions) (domain.Module, error) {
	m, err := e.Repo.GetModule(ctx, opts.ID)
	if err != nil {
		return m, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()
	if err := e.requireActiveProject(ctx, tx, repo.LevelModule, m.ID); err != nil {
		return m, err
	}
	applyResourceUpdate(&m.Name, &m.Description, &m.Status, opts)
	m.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateModule(ctx, tx, m); err != nil {
		return m, err
	}
	if err := e.Events.Append(ctx, tx, events.ModuleUpdated, m.ProjectID, "module", m.ID, opts.ActorID, events.EventPayload{"status": m.Status}); err != nil {
		return m, err
	}
	if err := tx.Commit(); err != nil {
		return m, err
	}
	return m, nil
}

func (e Engine) DeleteModule(ctx context.Context, moduleID, actorID string) error {
	m, err := e.Repo.GetModule(ctx, moduleID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteTimeLogsByModule(ctx, tx, moduleID); err != nil {
		return fmt.Errorf("delete time logs: %w", err)
	}
	if err := e.Repo.DeleteActivityAccessByModule(ctx, tx, moduleID); err != nil {
		return err
	}
	if err := e.Repo.DeleteActivitiesByModule(ctx, tx, moduleID); err != nil {
		return err
	}
	if err := e.Repo.DeleteTaskAccessByModule(ctx, tx, moduleID); err != nil {
		return err
	}
	if err := e.Repo.DeleteTasksByModule(ctx, tx, moduleID); err != nil {
		return err
	}
	if err := e.Repo.DeleteModuleAccessByModule(ctx, tx, moduleID); err != nil {
		return err
	}
	if err := e.Repo.DeleteModuleRow(ctx, tx, moduleID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.ModuleDeleted, m.ProjectID, "module", moduleID, actorID, events.EventPayload{"custom_id": m.CustomID}); err != nil {
		return err
	}
	return tx.Commit()
}

// --- tasks ---

type TaskCreateOptions struct {
	ModuleID    string
	Name        string
	Description string
	ActorID     string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Name == "" {
		return domain.Task{}, errors.New("name is required")
	}
	m, err := e.Repo.GetModule(ctx, opts.ModuleID)
	if err != nil {
		return domain.Task{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	chain, err := e.Repo.ResolveOwnerChain(ctx, tx, repo.LevelModule, m.ID)
	if err != nil {
		return domain.Task{}, err
	}
	if chain.ProjectStatus != "active" {
		return domain.Task{}, ProjectNotActiveError{ProjectID: chain.ProjectID, Status: chain.ProjectStatus}
	}
	prefix := e.cfg().Identifiers.TaskPrefix
	last, err := e.Repo.LastTaskCustomID(ctx, tx, m.ID, prefix)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return domain.Task{}, err
	}
	customID, err := nextCustomID(prefix, last)
	if err != nil {
		return domain.Task{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	t := domain.Task{
		ID:          uuid.NewString(),
		CustomID:    customID,
		ModuleID:    m.ID,
		Name:        opts.Name,
		Description: opts.Description,
		Status:      "active",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		if isUniqueViolation(err) {
			return domain.Task{}, DuplicateIdentifierError{CustomID: customID}
		}
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.Repo.InsertGrant(ctx, tx, repo.LevelTask, t.ID, chain.ManagerID, opts.ActorID, now); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TaskCreated, chain.ProjectID, "task", t.ID, opts.ActorID, events.EventPayload{"custom_id": t.CustomID}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) UpdateTask(ctx context.Context, opts ResourceUpdateOptions) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, opts.ID)
	if err != nil {
		return t, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.requireActiveProject(ctx, tx, repo.LevelTask, t.ID); err != nil {
		return t, err
	}
	applyResourceUpdate(&t.Name, &t.Description, &t.Status, opts)
	t.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return t, err
	}
	chain, err := e.Repo.ResolveOwnerChain(ctx, tx, repo.LevelTask, t.ID)
	if err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, events.TaskUpdated, chain.ProjectID, "task", t.ID, opts.ActorID, events.EventPayload{"status": t.Status}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

func (e Engine) DeleteTask(ctx context.Context, taskID, actorID string) error {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	chain, err := e.Repo.ResolveOwnerChain(ctx, tx, repo.LevelTask, taskID)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteTimeLogsByTask(ctx, tx, taskID); err != nil {
		return fmt.Errorf("delete time logs: %w", err)
	}
	if err := e.Repo.DeleteActivityAccessByTask(ctx, tx, taskID); err != nil {
		return err
	}
	if err := e.Repo.DeleteActivitiesByTask(ctx, tx, taskID); err != nil {
		return err
	}
	if err := e.Repo.DeleteTaskAccessByTask(ctx, tx, taskID); err != nil {
		return err
	}
	if err := e.Repo.DeleteTaskRow(ctx, tx, taskID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.TaskDeleted, chain.ProjectID, "task", taskID, actorID, events.EventPayload{"custom_id": t.CustomID}); err != nil {
		return err
	}
	return tx.Commit()
}

// --- activities ---

type ActivityCreateOptions struct {
	TaskID      string
	Name        string
	Description string
	ActorID     string
}

func (e Engine) CreateActivity(ctx context.Context, opts ActivityCreateOptions) (domain.Activity, error) {
	if opts.Name == "" {
		return domain.Activity{}, errors.New("name is required")
	}
	t, err := e.Repo.GetTask(ctx, opts.TaskID)
	if err != nil {
		return domain.Activity{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Activity{}, err
	}
	defer tx.Rollback()
	chain, err := e.Repo.ResolveOwnerChain(ctx, tx, repo.LevelTask, t.ID)
	if err != nil {
		return domain.Activity{}, err
	}
	if chain.ProjectStatus != "active" {
		return domain.Activity{}, ProjectNotActiveError{ProjectID: chain.ProjectID, Status: chain.ProjectStatus}
	}
	prefix := e.cfg().Identifiers.ActivityPrefix
	last, err := e.Repo.LastActivityCustomID(ctx, tx, t.ID, prefix)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return domain.Activity{}, err
	}
	customID, err := nextCustomID(prefix, last)
	if err != nil {
		return domain.Activity{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	a := domain.Activity{
		ID:          uuid.NewString(),
		CustomID:    customID,
		TaskID:      t.ID,
		Name:        opts.Name,
		Description: opts.Description,
		Status:      "active",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertActivity(ctx, tx, a); err != nil {
		if isUniqueViolation(err) {
			return domain.Activity{}, DuplicateIdentifierError{CustomID: customID}
		}
		return domain.Activity{}, fmt.Errorf("insert activity: %w", err)
	}
	if err := e.Repo.InsertGrant(ctx, tx, repo.LevelActivity, a.ID, chain.ManagerID, opts.ActorID, now); err != nil {
		return domain.Activity{}, err
	}
	if err := e.Events.Append(ctx, tx, events.ActivityCreated, chain.ProjectID, "activity", a.ID, opts.ActorID, events.EventPayload{"custom_id": a.CustomID}); err != nil {
		return domain.Activity{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Activity{}, err
	}
	return a, nil
}

func (e Engine) UpdateActivity(ctx context.Context, opts ResourceUpdateOptions) (domain.Activity, error) {
	a, err := e.Repo.GetActivity(ctx, opts.ID)
	if err != nil {
		return a, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()
	if err := e.requireActiveProject(ctx, tx, repo.LevelActivity, a.ID); err != nil {
		return a, err
	}
	applyResourceUpdate(&a.Name, &a.Description, &a.Status, opts)
	a.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateActivity(ctx, tx, a); err != nil {
		return a, err
	}
	chain, err := e.Repo.ResolveOwnerChain(ctx, tx, repo.LevelActivity, a.ID)
	if err != nil {
		return a, err
	}
	if err := e.Events.Append(ctx, tx, events.ActivityUpdated, chain.ProjectID, "activity", a.ID, opts.ActorID, events.EventPayload{"status": a.Status}); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	return a, nil
}

func (e Engine) DeleteActivity(ctx context.Context, activityID, actorID string) error {
	a, err := e.Repo.GetActivity(ctx, activityID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	chain, err := e.Repo.ResolveOwnerChain(ctx, tx, repo.LevelActivity, activityID)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteTimeLogsByActivity(ctx, tx, activityID); err != nil {
		return fmt.Errorf("delete time logs: %w", err)
	}
	if err := e.Repo.DeleteActivityAccessByActivity(ctx, tx, activityID); err != nil {
		return err
	}
	if err := e.Repo.DeleteActivityRow(ctx, tx, activityID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.ActivityDeleted, chain.ProjectID, "activity", activityID, actorID, events.EventPayload{"custom_id": a.CustomID}); err != nil {
		return err
	}
	return tx.Commit()
}

// --- time logs ---

type TimeLogOptions struct {
	UserID     string
	ProjectID  string
	ModuleID   string
	TaskID     string
	ActivityID string
	LogDate    string
	Hours      float64
	Notes      string
	ActorID    string
}

func (e Engine) AddTimeLog(ctx context.Context, opts TimeLogOptions) (domain.TimeLog, error) {
	if opts.UserID == "" {
		return domain.TimeLog{}, errors.New("user is required")
	}
	if opts.Hours <= 0 {
		return domain.TimeLog{}, errors.New("hours must be positive")
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.TimeLog{}, err
	}
	if p.Status != "active" {
		return domain.TimeLog{}, ProjectNotActiveError{ProjectID: p.ID, Status: p.Status}
	}
	// The optional scope ids must form one chain under the project. Missing
	// intermediate levels are filled in from the deepest id given.
	if opts.ActivityID != "" {
		a, err := e.Repo.GetActivity(ctx, opts.ActivityID)
		if err != nil {
			return domain.TimeLog{}, fmt.Errorf("activity: %w", err)
		}
		if opts.TaskID == "" {
			opts.TaskID = a.TaskID
		} else if opts.TaskID != a.TaskID {
			return domain.TimeLog{}, fmt.Errorf("invalid scope: activity %s does not belong to task %s", opts.ActivityID, opts.TaskID)
		}
	}
	if opts.TaskID != "" {
		t, err := e.Repo.GetTask(ctx, opts.TaskID)
		if err != nil {
			return domain.TimeLog{}, fmt.Errorf("task: %w", err)
		}
		if opts.ModuleID == "" {
			opts.ModuleID = t.ModuleID
		} else if opts.ModuleID != t.ModuleID {
			return domain.TimeLog{}, fmt.Errorf("invalid scope: task %s does not belong to module %s", opts.TaskID, opts.ModuleID)
		}
	}
	if opts.ModuleID != "" {
		m, err := e.Repo.GetModule(ctx, opts.ModuleID)
		if err != nil {
			return domain.TimeLog{}, fmt.Errorf("module: %w", err)
		}
		if m.ProjectID != p.ID {
			return domain.TimeLog{}, fmt.Errorf("invalid scope: module %s does not belong to project %s", opts.ModuleID, p.ID)
		}
	}
	now := e.now().UTC()
	logDate := opts.LogDate
	if logDate == "" {
		logDate = now.Format("2006-01-02")
	}
	l := domain.TimeLog{
		ID:         uuid.NewString(),
		UserID:     opts.UserID,
		ProjectID:  p.ID,
		ModuleID:   optionalString(opts.ModuleID),
		TaskID:     optionalString(opts.TaskID),
		ActivityID: optionalString(opts.ActivityID),
		LogDate:    logDate,
		Hours:      opts.Hours,
		Notes:      opts.Notes,
		CreatedAt:  now.Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return l, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTimeLog(ctx, tx, l); err != nil {
		return l, fmt.Errorf("insert time log: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.TimeLogAdded, p.ID, "timelog", l.ID, opts.ActorID, events.EventPayload{"user_id": l.UserID, "hours": l.Hours}); err != nil {
		return l, err
	}
	if err := tx.Commit(); err != nil {
		return l, err
	}
	return l, nil
}

// --- shared helpers ---

func (e Engine) requireActiveProject(ctx context.Context, tx *sql.Tx, level repo.Level, resourceID string) error {
	chain, err := e.Repo.ResolveOwnerChain(ctx, tx, level, resourceID)
	if err != nil {
		return err
	}
	if chain.ProjectStatus != "active" {
		return ProjectNotActiveError{ProjectID: chain.ProjectID, Status: chain.ProjectStatus}
	}
	return nil
}

func (e Engine) managerStatusBlocked(status string) bool {
	for _, blocked := range e.cfg().BlockedManagerStatuses() {
		if status == blocked {
			return true
		}
	}
	return false
}

func applyResourceUpdate(name, description, status *string, opts ResourceUpdateOptions) {
	if opts.Name != nil {
		*name = *opts.Name
	}
	if opts.Description != nil {
		*description = *opts.Description
	}
	if opts.Status != nil {
		*status = *opts.Status
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
