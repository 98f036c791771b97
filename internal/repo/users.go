package repo

import (
	"context"
	"database/sql"

	"teamline/internal/domain"
)

const userCols = `id,name,COALESCE(email,''),role,status,reporting_manager_id,created_at`

func scanUser(scan func(dest ...any) error) (domain.User, error) {
	var u domain.User
	var manager sql.NullString
	err := scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Status, &manager, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	if manager.Valid {
		u.ReportingManagerID = &manager.String
	}
	return u, nil
}

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(id,name,email,role,status,reporting_manager_id,created_at) VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.Name, nullable(u.Email), u.Role, u.Status, nullableStringPtr(u.ReportingManagerID), u.CreatedAt)
	return err
}

func (r Repo) InsertUserTx(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users(id,name,email,role,status,reporting_manager_id,created_at) VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.Name, nullable(u.Email), u.Role, u.Status, nullableStringPtr(u.ReportingManagerID), u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=?`, id)
	return scanUser(row.Scan)
}

func (r Repo) ListUsers(ctx context.Context, status string) ([]domain.User, error) {
	query := `SELECT ` + userCols + ` FROM users`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY name, id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
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

func (r Repo) UpdateUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	res, err := tx.ExecContext(ctx, `UPDATE users SET name=?, email=?, role=?, status=?, reporting_manager_id=? WHERE id=?`,
		u.Name, nullable(u.Email), u.Role, u.Status, nullableStringPtr(u.ReportingManagerID), u.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DirectReportIDs lists users whose reporting line points at managerID.
func (r Repo) DirectReportIDs(ctx context.Context, managerID string) ([]string, error) {
	return scanIDs(r.DB.QueryContext(ctx, `SELECT id FROM users WHERE reporting_manager_id=?`, managerID))
}

func (r Repo) DirectReportIDsTx(ctx context.Context, tx *sql.Tx, managerID string) ([]string, error) {
	return scanIDs(tx.QueryContext(ctx, `SELECT id FROM users WHERE reporting_manager_id=?`, managerID))
}

// UserStatus fetches just the status column, for manager eligibility checks
// inside a transaction.
func (r Repo) UserStatus(ctx context.Context, tx *sql.Tx, id string) (string, error) {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM users WHERE id=?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return status, err
}
