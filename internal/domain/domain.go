package domain

type User struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Email              string  `json:"email,omitempty"`
	Role               string  `json:"role" enum:"admin,manager,employee"`
	Status             string  `json:"status" enum:"active,on_notice,resigned,terminated,inactive"`
	ReportingManagerID *string `json:"reporting_manager_id,omitempty"`
	CreatedAt          string  `json:"created_at" format:"date-time"`
}

type Project struct {
	ID          string  `json:"id"`
	CustomID    string  `json:"custom_id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	ManagerID   string  `json:"manager_id"`
	Status      string  `json:"status" enum:"active,on_hold,completed,canceled"`
	StartDate   string  `json:"start_date" format:"date-time"`
	EndDate     *string `json:"end_date,omitempty" format:"date-time"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type Module struct {
	ID          string `json:"id"`
	CustomID    string `json:"custom_id"`
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status" enum:"active,completed,on_hold"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type Task struct {
	ID          string `json:"id"`
	CustomID    string `json:"custom_id"`
	ModuleID    string `json:"module_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status" enum:"active,completed,on_hold"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type Activity struct {
	ID          string `json:"id"`
	CustomID    string `json:"custom_id"`
	TaskID      string `json:"task_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status" enum:"active,completed,on_hold"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

// Membership is derived data: a project's team is its manager plus the
// manager's reporting subtree as of the last sync, never edited directly.
type Membership struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	AddedAt   string `json:"added_at" format:"date-time"`
}

type AccessGrant struct {
	ResourceID string `json:"resource_id"`
	UserID     string `json:"user_id"`
	GrantedBy  string `json:"granted_by"`
	GrantedAt  string `json:"granted_at" format:"date-time"`
}

// GrantEntry is one row of the refreshed grant list returned after a grant
// or revoke so callers can repaint state without a second round-trip.
type GrantEntry struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	IsManager bool   `json:"is_manager"`
}

type TimeLog struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	ProjectID  string  `json:"project_id"`
	ModuleID   *string `json:"module_id,omitempty"`
	TaskID     *string `json:"task_id,omitempty"`
	ActivityID *string `json:"activity_id,omitempty"`
	LogDate    string  `json:"log_date" format:"date"`
	Hours      float64 `json:"hours"`
	Notes      string  `json:"notes,omitempty"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
