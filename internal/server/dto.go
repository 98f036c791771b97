package server

import (
	"teamline/internal/domain"
)

type CreateUserRequest struct {
	ID                 string `json:"id,omitempty"`
	Name               string `json:"name"`
	Email              string `json:"email,omitempty"`
	Role               string `json:"role,omitempty" enum:"admin,manager,employee"`
	Status             string `json:"status,omitempty" enum:"active,on_notice,resigned,terminated,inactive"`
	ReportingManagerID string `json:"reporting_manager_id,omitempty"`
}

type UpdateUserRequest struct {
	Name               *string `json:"name,omitempty"`
	Email              *string `json:"email,omitempty"`
	Role               *string `json:"role,omitempty"`
	Status             *string `json:"status,omitempty"`
	ReportingManagerID *string `json:"reporting_manager_id,omitempty"`
}

type UserResponse struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email,omitempty"`
	Role               string `json:"role"`
	Status             string `json:"status"`
	ReportingManagerID string `json:"reporting_manager_id,omitempty"`
	CreatedAt          string `json:"created_at"`
}

func userResponse(u domain.User) UserResponse {
	res := UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
	if u.ReportingManagerID != nil {
		res.ReportingManagerID = *u.ReportingManagerID
	}
	return res
}

func mapUsers(items []domain.User) []UserResponse {
	res := make([]UserResponse, 0, len(items))
	for _, u := range items {
		res = append(res, userResponse(u))
	}
	return res
}

type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ManagerID   string `json:"manager_id"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"active,on_hold,completed,canceled"`
	EndDate     *string `json:"end_date,omitempty"`
	ManagerID   *string `json:"manager_id,omitempty"`
}

type ProjectResponse struct {
	ID          string `json:"id"`
	CustomID    string `json:"custom_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ManagerID   string `json:"manager_id"`
	Status      string `json:"status"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func projectResponse(p domain.Project) ProjectResponse {
	res := ProjectResponse{
		ID:          p.ID,
		CustomID:    p.CustomID,
		Name:        p.Name,
		Description: p.Description,
		ManagerID:   p.ManagerID,
		Status:      p.Status,
		StartDate:   p.StartDate,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.EndDate != nil {
		res.EndDate = *p.EndDate
	}
	return res
}

func mapProjects(items []domain.Project) []ProjectResponse {
	res := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		res = append(res, projectResponse(p))
	}
	return res
}

type CreateResourceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type UpdateResourceRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"active,completed,on_hold"`
}

type ModuleResponse struct {
	ID          string `json:"id"`
	CustomID    string `json:"custom_id"`
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func moduleResponse(m domain.Module) ModuleResponse {
	return ModuleResponse{
		ID:          m.ID,
		CustomID:    m.CustomID,
		ProjectID:   m.ProjectID,
		Name:        m.Name,
		Description: m.Description,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func mapModules(items []domain.Module) []ModuleResponse {
	res := make([]ModuleResponse, 0, len(items))
	for _, m := range items {
		res = append(res, moduleResponse(m))
	}
	return res
}

type TaskResponse struct {
	ID          string `json:"id"`
	CustomID    string `json:"custom_id"`
	ModuleID    string `json:"module_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		CustomID:    t.CustomID,
		ModuleID:    t.ModuleID,
		Name:        t.Name,
		Description: t.Description,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func mapTasks(items []domain.Task) []TaskResponse {
	res := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		res = append(res, taskResponse(t))
	}
	return res
}

type ActivityResponse struct {
	ID          string `json:"id"`
	CustomID    string `json:"custom_id"`
	TaskID      string `json:"task_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func activityResponse(a domain.Activity) ActivityResponse {
	return ActivityResponse{
		ID:          a.ID,
		CustomID:    a.CustomID,
		TaskID:      a.TaskID,
		Name:        a.Name,
		Description: a.Description,
		Status:      a.Status,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func mapActivities(items []domain.Activity) []ActivityResponse {
	res := make([]ActivityResponse, 0, len(items))
	for _, a := range items {
		res = append(res, activityResponse(a))
	}
	return res
}

type ReassignManagerRequest struct {
	ManagerID string `json:"manager_id"`
}

type AccessRequest struct {
	UserID string `json:"user_id"`
}

type GrantEntryResponse struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	IsManager bool   `json:"is_manager"`
}

func mapGrantEntries(items []domain.GrantEntry) []GrantEntryResponse {
	res := make([]GrantEntryResponse, 0, len(items))
	for _, e := range items {
		res = append(res, GrantEntryResponse{UserID: e.UserID, Name: e.Name, IsManager: e.IsManager})
	}
	return res
}

type CreateTimeLogRequest struct {
	UserID     string  `json:"user_id"`
	ModuleID   string  `json:"module_id,omitempty"`
	TaskID     string  `json:"task_id,omitempty"`
	ActivityID string  `json:"activity_id,omitempty"`
	LogDate    string  `json:"log_date,omitempty"`
	Hours      float64 `json:"hours"`
	Notes      string  `json:"notes,omitempty"`
}

type TimeLogResponse struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	ProjectID  string  `json:"project_id"`
	ModuleID   string  `json:"module_id,omitempty"`
	TaskID     string  `json:"task_id,omitempty"`
	ActivityID string  `json:"activity_id,omitempty"`
	LogDate    string  `json:"log_date"`
	Hours      float64 `json:"hours"`
	Notes      string  `json:"notes,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

func timeLogResponse(l domain.TimeLog) TimeLogResponse {
	res := TimeLogResponse{
		ID:        l.ID,
		UserID:    l.UserID,
		ProjectID: l.ProjectID,
		LogDate:   l.LogDate,
		Hours:     l.Hours,
		Notes:     l.Notes,
		CreatedAt: l.CreatedAt,
	}
	if l.ModuleID != nil {
		res.ModuleID = *l.ModuleID
	}
	if l.TaskID != nil {
		res.TaskID = *l.TaskID
	}
	if l.ActivityID != nil {
		res.ActivityID = *l.ActivityID
	}
	return res
}

func mapTimeLogs(items []domain.TimeLog) []TimeLogResponse {
	res := make([]TimeLogResponse, 0, len(items))
	for _, l := range items {
		res = append(res, timeLogResponse(l))
	}
	return res
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

func mapEvents(items []domain.Event) []EventResponse {
	res := make([]EventResponse, 0, len(items))
	for _, e := range items {
		res = append(res, EventResponse{
			ID:         e.ID,
			TS:         e.TS,
			Type:       e.Type,
			ProjectID:  e.ProjectID,
			EntityKind: e.EntityKind,
			EntityID:   e.EntityID,
			ActorID:    e.ActorID,
			Payload:    e.Payload,
		})
	}
	return res
}

type CreateAPIKeyRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	Key       string `json:"key,omitempty"`
	CreatedAt string `json:"created_at"`
}
