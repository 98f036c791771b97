package repo

import (
	"context"
	"database/sql"

	"teamline/internal/domain"
)

func (r Repo) InsertTimeLog(ctx context.Context, tx *sql.Tx, l domain.TimeLog) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO time_logs(id,user_id,project_id,module_id,task_id,activity_id,log_date,hours,notes,created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		l.ID, l.UserID, l.ProjectID, nullableStringPtr(l.ModuleID), nullableStringPtr(l.TaskID), nullableStringPtr(l.ActivityID),
		l.LogDate, l.Hours, nullable(l.Notes), l.CreatedAt)
	return err
}

func (r Repo) ListTimeLogs(ctx context.Context, projectID, userID string) ([]domain.TimeLog, error) {
	query := `SELECT id,user_id,project_id,module_id,task_id,activity_id,log_date,hours,COALESCE(notes,''),created_at FROM time_logs WHERE project_id=?`
	args := []any{projectID}
	if userID != "" {
		query += ` AND user_id=?`
		args = append(args, userID)
	}
	query += ` ORDER BY log_date DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TimeLog
	for rows.Next() {
		var l domain.TimeLog
		var moduleID, taskID, activityID sql.NullString
		if err := rows.Scan(&l.ID, &l.UserID, &l.ProjectID, &moduleID, &taskID, &activityID, &l.LogDate, &l.Hours, &l.Notes, &l.CreatedAt); err != nil {
			return nil, err
		}
		if moduleID.Valid {
			l.ModuleID = &moduleID.String
		}
		if taskID.Valid {
			l.TaskID = &taskID.String
		}
		if activityID.Valid {
			l.ActivityID = &activityID.String
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

func (r Repo) DeleteTimeLogsByProject(ctx context.Context, tx *sql.Tx, projectID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM time_logs WHERE project_id=?`, projectID)
	return err
}

func (r Repo) DeleteTimeLogsByModule(ctx context.Context, tx *sql.Tx, moduleID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM time_logs WHERE module_id=? OR task_id IN (SELECT id FROM tasks WHERE module_id=?) OR activity_id IN (SELECT a.id FROM activities a JOIN tasks t ON a.task_id=t.id WHERE t.module_id=?)`,
		moduleID, moduleID, moduleID)
	return err
}

func (r Repo) DeleteTimeLogsByTask(ctx context.Context, tx *sql.Tx, taskID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM time_logs WHERE task_id=? OR activity_id IN (SELECT id FROM activities WHERE task_id=?)`, taskID, taskID)
	return err
}

func (r Repo) DeleteTimeLogsByActivity(ctx context.Context, tx *sql.Tx, activityID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM time_logs WHERE activity_id=?`, activityID)
	return err
}
