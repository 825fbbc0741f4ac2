package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"timeclock.org/internal/attendance"
)

const policyColumns = `organization_id, daily_work_minutes, daily_break_minutes, break_mode, fixed_break_start, fixed_break_end, created_at, updated_at`

func scanPolicy(row interface{ Scan(...any) error }) (attendance.Policy, error) {
	var (
		p          attendance.Policy
		fixedStart sql.NullString
		fixedEnd   sql.NullString
	)
	err := row.Scan(
		&p.OrganizationID, &p.DailyWorkMinutes, &p.DailyBreakMinutes,
		&p.BreakMode, &fixedStart, &fixedEnd, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return attendance.Policy{}, err
	}
	if fixedStart.Valid {
		v := fixedStart.String
		p.FixedBreakStart = &v
	}
	if fixedEnd.Valid {
		v := fixedEnd.String
		p.FixedBreakEnd = &v
	}
	return p, nil
}

type querier interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// policyInTx lazily creates the organization's policy with defaults and
// returns it.
func policyInTx(ctx context.Context, q querier, orgID string, now time.Time) (attendance.Policy, error) {
	def := attendance.DefaultPolicy(orgID, now)
	if _, err := q.ExecContext(ctx, `
		insert into work_policies(organization_id, daily_work_minutes, daily_break_minutes, break_mode, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$5)
		on conflict (organization_id) do nothing
	`, orgID, def.DailyWorkMinutes, def.DailyBreakMinutes, def.BreakMode, now); err != nil {
		return attendance.Policy{}, err
	}
	row := q.QueryRowContext(ctx, `
		select `+policyColumns+` from work_policies where organization_id=$1
	`, orgID)
	return scanPolicy(row)
}

func (s *Store) Policy(ctx context.Context, orgID string) (attendance.Policy, error) {
	return policyInTx(ctx, s.db, orgID, time.Now().UTC())
}

func (s *Store) UpdatePolicy(ctx context.Context, orgID string, upd attendance.PolicyUpdate) (attendance.Policy, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return attendance.Policy{}, err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := policyInTx(ctx, tx, orgID, now)
	if err != nil {
		return attendance.Policy{}, err
	}
	updated, err := attendance.ApplyUpdate(current, upd, now)
	if err != nil {
		// Validation failure: the transaction rolls back, nothing is written.
		return attendance.Policy{}, err
	}

	var fixedStart, fixedEnd any
	if updated.FixedBreakStart != nil {
		fixedStart = *updated.FixedBreakStart
	}
	if updated.FixedBreakEnd != nil {
		fixedEnd = *updated.FixedBreakEnd
	}
	res, err := tx.ExecContext(ctx, `
		update work_policies
		set daily_work_minutes=$2, daily_break_minutes=$3, break_mode=$4,
		    fixed_break_start=$5, fixed_break_end=$6, updated_at=$7
		where organization_id=$1
	`, orgID, updated.DailyWorkMinutes, updated.DailyBreakMinutes, updated.BreakMode, fixedStart, fixedEnd, now)
	if err != nil {
		return attendance.Policy{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return attendance.Policy{}, errors.New("policy row vanished during update")
	}
	if err := tx.Commit(); err != nil {
		return attendance.Policy{}, err
	}
	return updated, nil
}
