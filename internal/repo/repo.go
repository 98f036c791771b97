package repo

import (
	"context"
	"database/sql"
	"errors"

	"teamline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

// --- projects ---

const projectCols = `id,custom_id,name,COALESCE(description,''),manager_id,status,start_date,end_date,created_at,updated_at`

func scanProject(scan func(dest ...any) error) (domain.Project, error) {
	var p domain.Project
	var endDate sql.NullString
	err := scan(&p.ID, &p.CustomID, &p.Name, &p.Description, &p.ManagerID, &p.Status, &p.StartDate, &endDate, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if endDate.Valid {
		p.EndDate = &endDate.String
	}
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,custom_id,name,description,manager_id,status,start_date,end_date,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.CustomID, p.Name, nullable(p.Description), p.ManagerID, p.Status, p.StartDate, nullableStringPtr(p.EndDate), p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id=?`, id)
	return scanProject(row.Scan)
}

func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id=?`, id)
	return scanProject(row.Scan)
}

func (r Repo) ListProjects(ctx context.Context, status string) ([]domain.Project, error) {
	query := `SELECT ` + projectCols + ` FROM projects`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY custom_id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET name=?, description=?, manager_id=?, status=?, start_date=?, end_date=?, updated_at=? WHERE id=?`,
		p.Name, nullable(p.Description), p.ManagerID, p.Status, p.StartDate, nullableStringPtr(p.EndDate), p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProjectRow(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// LastProjectCustomID returns the lexicographically-last project custom id
// with the given prefix, or ErrNotFound when none exists. Must run inside the
// same transaction as the insert that consumes it.
func (r Repo) LastProjectCustomID(ctx context.Context, tx *sql.Tx, prefix string) (string, error) {
	row := tx.QueryRowContext(ctx, `SELECT custom_id FROM projects WHERE custom_id LIKE ? ORDER BY custom_id DESC LIMIT 1`, prefix+"-%")
	var id string
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return id, err
}

// --- modules ---

const moduleCols = `id,custom_id,project_id,name,COALESCE(description,''),status,created_at,updated_at`

func scanModule(scan func(dest ...any) error) (domain.Module, error) {
	var m domain.Module
	err := scan(&m.ID, &m.CustomID, &m.ProjectID, &m.Name, &m.Description, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

func (r Repo) InsertModule(ctx context.Context, tx *sql.Tx, m domain.Module) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO modules(id,custom_id,project_id,name,description,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		m.ID, m.CustomID, m.ProjectID, m.Name, nullable(m.Description), m.Status, m.CreatedAt, m.UpdatedAt)
	return err
}

func (r Repo) GetModule(ctx context.Context, id string) (domain.Module, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+moduleCols+` FROM modules WHERE id=?`, id)
	return scanModule(row.Scan)
}

func (r Repo) ListModules(ctx context.Context, projectID string) ([]domain.Module, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+moduleCols+` FROM modules WHERE project_id=? ORDER BY custom_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Module
	for rows.Next() {
		m, err := scanModule(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) UpdateModule(ctx context.Context, tx *sql.Tx, m domain.Module) error {
	res, err := tx.ExecContext(ctx, `UPDATE modules SET name=?, description=?, status=?, updated_at=? WHERE id=?`,
		m.Name, nullable(m.Description), m.Status, m.UpdatedAt, m.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) LastModuleCustomID(ctx context.Context, tx *sql.Tx, projectID, prefix string) (string, error) {
	row := tx.QueryRowContext(ctx, `SELECT custom_id FROM modules WHERE project_id=? AND custom_id LIKE ? ORDER BY custom_id DESC LIMIT 1`, projectID, prefix+"-%")
	var id string
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return id, err
}

// --- tasks ---

const taskCols = `id,custom_id,module_id,name,COALESCE(description,''),status,created_at,updated_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	err := scan(&t.ID, &t.CustomID, &t.ModuleID, &t.Name, &t.Description, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,custom_id,module_id,name,description,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, t.CustomID, t.ModuleID, t.Name, nullable(t.Description), t.Status, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

func (r Repo) ListTasks(ctx context.Context, moduleID string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE module_id=? ORDER BY custom_id`, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET name=?, description=?, status=?, updated_at=? WHERE id=?`,
		t.Name, nullable(t.Description), t.Status, t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) LastTaskCustomID(ctx context.Context, tx *sql.Tx, moduleID, prefix string) (string, error) {
	row := tx.QueryRowContext(ctx, `SELECT custom_id FROM tasks WHERE module_id=? AND custom_id LIKE ? ORDER BY custom_id DESC LIMIT 1`, moduleID, prefix+"-%")
	var id string
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return id, err
}

// --- activities ---

const activityCols = `id,custom_id,task_id,name,COALESCE(description,''),status,created_at,updated_at`

func scanActivity(scan func(dest ...any) error) (domain.Activity, error) {
	var a domain.Activity
	err := scan(&a.ID, &a.CustomID, &a.TaskID, &a.Name, &a.Description, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) InsertActivity(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO activities(id,custom_id,task_id,name,description,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.CustomID, a.TaskID, a.Name, nullable(a.Description), a.Status, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r Repo) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+activityCols+` FROM activities WHERE id=?`, id)
	return scanActivity(row.Scan)
}

func (r Repo) ListActivities(ctx context.Context, taskID string) ([]domain.Activity, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+activityCols+` FROM activities WHERE task_id=? ORDER BY custom_id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) UpdateActivity(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	res, err := tx.ExecContext(ctx, `UPDATE activities SET name=?, description=?, status=?, updated_at=? WHERE id=?`,
		a.Name, nullable(a.Description), a.Status, a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) LastActivityCustomID(ctx context.Context, tx *sql.Tx, taskID, prefix string) (string, error) {
	row := tx.QueryRowContext(ctx, `SELECT custom_id FROM activities WHERE task_id=? AND custom_id LIKE ? ORDER BY custom_id DESC LIMIT 1`, taskID, prefix+"-%")
	var id string
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return id, err
}

// --- id listings used by reassignment and cascades ---

func (r Repo) ModuleIDs(ctx context.Context, tx *sql.Tx, projectID string) ([]string, error) {
	return scanIDs(tx.QueryContext(ctx, `SELECT id FROM modules WHERE project_id=?`, projectID))
}

func (r Repo) TaskIDsUnderProject(ctx context.Context, tx *sql.Tx, projectID string) ([]string, error) {
	return scanIDs(tx.QueryContext(ctx, `SELECT t.id FROM tasks t JOIN modules m ON t.module_id=m.id WHERE m.project_id=?`, projectID))
}

func (r Repo) ActivityIDsUnderProject(ctx context.Context, tx *sql.Tx, projectID string) ([]string, error) {
	return scanIDs(tx.QueryContext(ctx, `SELECT a.id FROM activities a JOIN tasks t ON a.task_id=t.id JOIN modules m ON t.module_id=m.id WHERE m.project_id=?`, projectID))
}

func scanIDs(rows *sql.Rows, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- deletion cascades (row removal only; the engine owns the ordering) ---

func (r Repo) DeleteMembersByProject(ctx context.Context, tx *sql.Tx, projectID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM project_members WHERE project_id=?`, projectID)
	return err
}

func (r Repo) DeleteModulesByProject(ctx context.Context, tx *sql.Tx, projectID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM modules WHERE project_id=?`, projectID)
	return err
}

func (r Repo) DeleteTasksByProject(ctx context.Context, tx *sql.Tx, projectID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE module_id IN (SELECT id FROM modules WHERE project_id=?)`, projectID)
	return err
}

func (r Repo) DeleteActivitiesByProject(ctx context.Context, tx *sql.Tx, projectID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE task_id IN (SELECT t.id FROM tasks t JOIN modules m ON t.module_id=m.id WHERE m.project_id=?)`, projectID)
	return err
}

func (r Repo) DeleteTasksByModule(ctx context.Context, tx *sql.Tx, moduleID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE module_id=?`, moduleID)
	return err
}

func (r Repo) DeleteActivitiesByModule(ctx context.Context, tx *sql.Tx, moduleID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE task_id IN (SELECT id FROM tasks WHERE module_id=?)`, moduleID)
	return err
}

func (r Repo) DeleteActivitiesByTask(ctx context.Context, tx *sql.Tx, taskID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE task_id=?`, taskID)
	return err
}

func (r Repo) DeleteModuleRow(ctx context.Context, tx *sql.Tx, id string) error {
	return deleteRow(ctx, tx, `DELETE FROM modules WHERE id=?`, id)
}

func (r Repo) DeleteTaskRow(ctx context.Context, tx *sql.Tx, id string) error {
	return deleteRow(ctx, tx, `DELETE FROM tasks WHERE id=?`, id)
}

func (r Repo) DeleteActivityRow(ctx context.Context, tx *sql.Tx, id string) error {
	return deleteRow(ctx, tx, `DELETE FROM activities WHERE id=?`, id)
}

func deleteRow(ctx context.Context, tx *sql.Tx, query, id string) error {
	res, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

