package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"timeclock.org/internal/auth"
)

// Directory implements the user lookup and heartbeat sink on PostgreSQL.
type Directory struct {
	db *sql.DB
}

var _ auth.Directory = (*Directory)(nil)

func NewDirectory(db *sql.DB) *Directory { return &Directory{db: db} }

const userColumns = `id, organization_id, username, email, role, active, last_seen_at, created_at`

func scanUser(row interface{ Scan(...any) error }) (auth.User, error) {
	var (
		u        auth.User
		lastSeen sql.NullTime
	)
	err := row.Scan(&u.ID, &u.OrganizationID, &u.Username, &u.Email, &u.Role, &u.Active, &lastSeen, &u.CreatedAt)
	if err != nil {
		return auth.User{}, err
	}
	if lastSeen.Valid {
		t := lastSeen.Time.UTC()
		u.LastSeenAt = &t
	}
	return u, nil
}

func (d *Directory) MarkSeen(ctx context.Context, userID string, at time.Time) error {
	res, err := d.db.ExecContext(ctx,
		`update users set last_seen_at=$2 where id=$1`, userID, at.UTC())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (d *Directory) User(ctx context.Context, orgID, userID string) (auth.User, error) {
	row := d.db.QueryRowContext(ctx, `
		select `+userColumns+` from users where id=$1 and organization_id=$2
	`, userID, orgID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, err
	}
	return u, nil
}

func (d *Directory) ListByOrganization(ctx context.Context, orgID string) ([]auth.User, error) {
	rows, err := d.db.QueryContext(ctx, `
		select `+userColumns+` from users
		where organization_id=$1
		order by lower(username) asc
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}
