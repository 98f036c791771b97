package repo

import (
	"context"
	"database/sql"
	"fmt"

	"teamline/internal/domain"
)

// Level selects one of the three grant tables nested under a project.
type Level string

const (
	LevelModule   Level = "module"
	LevelTask     Level = "task"
	LevelActivity Level = "activity"
)

func (l Level) Valid() bool {
	switch l {
	case LevelModule, LevelTask, LevelActivity:
		return true
	}
	return false
}

func grantTable(l Level) (table, idCol string, err error) {
	switch l {
	case LevelModule:
		return "module_access", "module_id", nil
	case LevelTask:
		return "task_access", "task_id", nil
	case LevelActivity:
		return "activity_access", "activity_id", nil
	}
	return "", "", fmt.Errorf("unknown access level %q", l)
}

// --- project membership ---

func (r Repo) EnsureMember(ctx context.Context, tx *sql.Tx, projectID, userID, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO project_members(project_id,user_id,added_at) VALUES (?,?,?)`, projectID, userID, now)
	return err
}

func (r Repo) RemoveMember(ctx context.Context, tx *sql.Tx, projectID, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM project_members WHERE project_id=? AND user_id=?`, projectID, userID)
	return err
}

func (r Repo) MemberIDs(ctx context.Context, tx *sql.Tx, projectID string) ([]string, error) {
	return scanIDs(tx.QueryContext(ctx, `SELECT user_id FROM project_members WHERE project_id=?`, projectID))
}

// ListMembers joins the directory for display purposes.
func (r Repo) ListMembers(ctx context.Context, projectID string) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT u.id,u.name,COALESCE(u.email,''),u.role,u.status,u.reporting_manager_id,u.created_at
FROM project_members pm
JOIN users u ON u.id=pm.user_id
WHERE pm.project_id=?
ORDER BY u.name, u.id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// --- level-scoped grants ---

func (r Repo) InsertGrant(ctx context.Context, tx *sql.Tx, level Level, resourceID, userID, grantedBy, now string) error {
	table, idCol, err := grantTable(level)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO `+table+`(`+idCol+`,user_id,granted_by,granted_at) VALUES (?,?,?,?)`,
		resourceID, userID, grantedBy, now)
	return err
}

// DeleteGrant removes one grant row; reports whether a row existed.
func (r Repo) DeleteGrant(ctx context.Context, tx *sql.Tx, level Level, resourceID, userID string) (bool, error) {
	table, idCol, err := grantTable(level)
	if err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+idCol+`=? AND user_id=?`, resourceID, userID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r Repo) HasGrant(ctx context.Context, level Level, resourceID, userID string) (bool, error) {
	table, idCol, err := grantTable(level)
	if err != nil {
		return false, err
	}
	var n int
	err = r.DB.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE `+idCol+`=? AND user_id=? LIMIT 1`, resourceID, userID).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// GrantEntries returns the current grant list for a resource with the
// is-manager flag computed against the supplied manager id.
func (r Repo) GrantEntries(ctx context.Context, tx *sql.Tx, level Level, resourceID, managerID string) ([]domain.GrantEntry, error) {
	table, idCol, err := grantTable(level)
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, `
SELECT g.user_id, u.name
FROM `+table+` g
JOIN users u ON u.id=g.user_id
WHERE g.`+idCol+`=?
ORDER BY u.name, g.user_id`, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.GrantEntry
	for rows.Next() {
		var e domain.GrantEntry
		if err := rows.Scan(&e.UserID, &e.Name); err != nil {
			return nil, err
		}
		e.IsManager = e.UserID == managerID
		res = append(res, e)
	}
	return res, rows.Err()
}

// --- revoke cascades (same user, child levels) ---

func (r Repo) DeleteTaskGrantsUnderModule(ctx context.Context, tx *sql.Tx, moduleID, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM task_access WHERE user_id=? AND task_id IN (SELECT id FROM tasks WHERE module_id=?)`, userID, moduleID)
	return err
}

func (r Repo) DeleteActivityGrantsUnderModule(ctx context.Context, tx *sql.Tx, moduleID, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM activity_access WHERE user_id=? AND activity_id IN (SELECT a.id FROM activities a JOIN tasks t ON a.task_id=t.id WHERE t.module_id=?)`, userID, moduleID)
	return err
}

func (r Repo) DeleteActivityGrantsUnderTask(ctx context.Context, tx *sql.Tx, taskID, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM activity_access WHERE user_id=? AND activity_id IN (SELECT id FROM activities WHERE task_id=?)`, userID, taskID)
	return err
}

// DeleteGrantsUnderProjectForUser strips a user's grants at every level of
// one project, child levels first.
func (r Repo) DeleteGrantsUnderProjectForUser(ctx context.Context, tx *sql.Tx, projectID, userID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM activity_access WHERE user_id=? AND activity_id IN (SELECT a.id FROM activities a JOIN tasks t ON a.task_id=t.id JOIN modules m ON t.module_id=m.id WHERE m.project_id=?)`, userID, projectID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_access WHERE user_id=? AND task_id IN (SELECT t.id FROM tasks t JOIN modules m ON t.module_id=m.id WHERE m.project_id=?)`, userID, projectID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM module_access WHERE user_id=? AND module_id IN (SELECT id FROM modules WHERE project_id=?)`, userID, projectID)
	return err
}

// DeleteGrantsByProject wipes every grant at every level under a project,
// for all users. Used by manager reassignment and project deletion.
func (r Repo) DeleteGrantsByProject(ctx context.Context, tx *sql.Tx, projectID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM activity_access WHERE activity_id IN (SELECT a.id FROM activities a JOIN tasks t ON a.task_id=t.id JOIN modules m ON t.module_id=m.id WHERE m.project_id=?)`, projectID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_access WHERE task_id IN (SELECT t.id FROM tasks t JOIN modules m ON t.module_id=m.id WHERE m.project_id=?)`, projectID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM module_access WHERE module_id IN (SELECT id FROM modules WHERE project_id=?)`, projectID)
	return err
}

// --- deletion-cascade grant cleanup (all users, one subtree) ---

func (r Repo) DeleteModuleAccessByModule(ctx context.Context, tx *sql.Tx, moduleID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM module_access WHERE module_id=?`, moduleID)
	return err
}

func (r Repo) DeleteTaskAccessByModule(ctx context.Context, tx *sql.Tx, moduleID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM task_access WHERE task_id IN (SELECT id FROM tasks WHERE module_id=?)`, moduleID)
	return err
}

func (r Repo) DeleteActivityAccessByModule(ctx context.Context, tx *sql.Tx, moduleID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM activity_access WHERE activity_id IN (SELECT a.id FROM activities a JOIN tasks t ON a.task_id=t.id WHERE t.module_id=?)`, moduleID)
	return err
}

func (r Repo) DeleteTaskAccessByTask(ctx context.Context, tx *sql.Tx, taskID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM task_access WHERE task_id=?`, taskID)
	return err
}

func (r Repo) DeleteActivityAccessByTask(ctx context.Context, tx *sql.Tx, taskID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM activity_access WHERE activity_id IN (SELECT id FROM activities WHERE task_id=?)`, taskID)
	return err
}

func (r Repo) DeleteActivityAccessByActivity(ctx context.Context, tx *sql.Tx, activityID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM activity_access WHERE activity_id=?`, activityID)
	return err
}

// --- owner chain ---

// OwnerChain resolves, for any grant-level resource, the project that
// transitively owns it along with that project's manager and status. All
// grant/revoke/validate paths use this one join instead of re-deriving it.
type OwnerChain struct {
	ProjectID     string
	ManagerID     string
	ProjectStatus string
}

func (r Repo) ResolveOwnerChain(ctx context.Context, tx *sql.Tx, level Level, resourceID string) (OwnerChain, error) {
	var query string
	switch level {
	case LevelModule:
		query = `SELECT p.id, p.manager_id, p.status FROM modules m JOIN projects p ON p.id=m.project_id WHERE m.id=?`
	case LevelTask:
		query = `SELECT p.id, p.manager_id, p.status FROM tasks t JOIN modules m ON m.id=t.module_id JOIN projects p ON p.id=m.project_id WHERE t.id=?`
	case LevelActivity:
		query = `SELECT p.id, p.manager_id, p.status FROM activities a JOIN tasks t ON t.id=a.task_id JOIN modules m ON m.id=t.module_id JOIN projects p ON p.id=m.project_id WHERE a.id=?`
	default:
		return OwnerChain{}, fmt.Errorf("unknown access level %q", level)
	}
	var c OwnerChain
	err := tx.QueryRowContext(ctx, query, resourceID).Scan(&c.ProjectID, &c.ManagerID, &c.ProjectStatus)
	if err == sql.ErrNoRows {
		return OwnerChain{}, ErrNotFound
	}
	return c, err
}
