package teamlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Teamline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Project represents the API project model.
type Project struct {
	ID        string `json:"id"`
	CustomID  string `json:"custom_id"`
	Name      string `json:"name"`
	ManagerID string `json:"manager_id"`
	Status    string `json:"status"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
}

// User represents a directory entry.
type User struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Role               string `json:"role"`
	Status             string `json:"status"`
	ReportingManagerID string `json:"reporting_manager_id,omitempty"`
}

// GrantEntry is one row of a resource's grant list.
type GrantEntry struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	IsManager bool   `json:"is_manager"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateProject creates a project managed by managerID.
func (c *Client) CreateProject(ctx context.Context, name, managerID string) (Project, error) {
	body := map[string]any{
		"name":       name,
		"manager_id": managerID,
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "v0/projects", body, &resp)
	return resp, err
}

// ReassignManager hands a project to a new manager.
func (c *Client) ReassignManager(ctx context.Context, projectID, managerID string) (Project, error) {
	body := map[string]any{"manager_id": managerID}
	var resp Project
	endpoint := fmt.Sprintf("v0/projects/%s/reassign-manager", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// SyncTeam reconciles a project's membership and returns the member list.
func (c *Client) SyncTeam(ctx context.Context, projectID string) ([]User, error) {
	var resp []User
	endpoint := fmt.Sprintf("v0/projects/%s/team/sync", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, struct{}{}, &resp)
	return resp, err
}

// Team returns a project's current members.
func (c *Client) Team(ctx context.Context, projectID string) ([]User, error) {
	var resp []User
	endpoint := fmt.Sprintf("v0/projects/%s/team", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GrantAccess grants a user access to a module, task, or activity and returns
// the refreshed grant list.
func (c *Client) GrantAccess(ctx context.Context, level, resourceID, userID string) ([]GrantEntry, error) {
	body := map[string]any{"user_id": userID}
	var resp []GrantEntry
	endpoint := fmt.Sprintf("v0/access/%s/%s/grant", url.PathEscape(level), url.PathEscape(resourceID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// RevokeAccess revokes a user's access, cascading to nested levels.
func (c *Client) RevokeAccess(ctx context.Context, level, resourceID, userID string) ([]GrantEntry, error) {
	body := map[string]any{"user_id": userID}
	var resp []GrantEntry
	endpoint := fmt.Sprintf("v0/access/%s/%s/revoke", url.PathEscape(level), url.PathEscape(resourceID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
