package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"timeclock.org/internal/attendance"
	"timeclock.org/internal/ids"
)

// Store implements the attendance service on PostgreSQL. Every lifecycle
// transition runs in one transaction holding a per-user advisory lock, which
// maps the single-writer-per-user discipline onto the database: concurrent
// transitions for the same user serialize, different users never contend.
type Store struct {
	db *sql.DB
}

var _ attendance.Service = (*Store)(nil)

// Open connects to PostgreSQL via the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection pool. Used by tests.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const sessionColumns = `id, user_id, organization_id, start_at, end_at, status, break_start, on_break, total_break_seconds, created_at`

func scanSession(row interface{ Scan(...any) error }) (attendance.Session, error) {
	var (
		sess       attendance.Session
		endAt      sql.NullTime
		breakStart sql.NullTime
	)
	err := row.Scan(
		&sess.ID, &sess.UserID, &sess.OrganizationID, &sess.StartAt,
		&endAt, &sess.Status, &breakStart, &sess.OnBreak,
		&sess.TotalBreakSeconds, &sess.CreatedAt,
	)
	if err != nil {
		return attendance.Session{}, err
	}
	if endAt.Valid {
		t := endAt.Time.UTC()
		sess.EndAt = &t
	}
	if breakStart.Valid {
		t := breakStart.Time.UTC()
		sess.BreakStart = &t
	}
	return sess, nil
}

// lockUser takes the per-user advisory lock for the duration of the
// transaction.
func lockUser(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `select pg_advisory_xact_lock(hashtext($1))`, userID)
	return err
}

// openSession fetches the user's open session inside the transaction.
func openSession(ctx context.Context, tx *sql.Tx, userID string) (attendance.Session, bool, error) {
	row := tx.QueryRowContext(ctx, `
		select `+sessionColumns+`
		from work_sessions
		where user_id=$1 and status='OPEN'
		for update
	`, userID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.Session{}, false, nil
	}
	if err != nil {
		return attendance.Session{}, false, err
	}
	return sess, true, nil
}

// sessionsOnDay returns the user's sessions started on the UTC date of day.
func sessionsOnDay(ctx context.Context, q interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}, userID string, day time.Time) ([]attendance.Session, error) {
	y, m, d := day.UTC().Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	rows, err := q.QueryContext(ctx, `
		select `+sessionColumns+`
		from work_sessions
		where user_id=$1 and start_at >= $2 and start_at < $3
		order by start_at asc
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []attendance.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, sess)
	}
	return res, rows.Err()
}

func (s *Store) StartSession(ctx context.Context, userID, orgID string) (attendance.Session, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return attendance.Session{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockUser(ctx, tx, userID); err != nil {
		return attendance.Session{}, err
	}
	if _, open, err := openSession(ctx, tx, userID); err != nil {
		return attendance.Session{}, err
	} else if open {
		return attendance.Session{}, attendance.ErrAlreadyActive
	}

	sess := attendance.Session{
		ID:             ids.New(),
		UserID:         userID,
		OrganizationID: orgID,
		StartAt:        now,
		Status:         attendance.StatusOpen,
		CreatedAt:      now,
	}
	if _, err := tx.ExecContext(ctx, `
		insert into work_sessions(id, user_id, organization_id, start_at, status, on_break, total_break_seconds, created_at)
		values ($1,$2,$3,$4,'OPEN',false,0,$5)
	`, sess.ID, userID, orgID, now, now); err != nil {
		return attendance.Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return attendance.Session{}, err
	}
	return sess, nil
}

func (s *Store) StopSession(ctx context.Context, userID, orgID string) (attendance.Session, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return attendance.Session{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockUser(ctx, tx, userID); err != nil {
		return attendance.Session{}, err
	}
	sess, open, err := openSession(ctx, tx, userID)
	if err != nil {
		return attendance.Session{}, err
	}
	if !open {
		return attendance.Session{}, attendance.ErrNoActiveSession
	}

	// Close a copy first so the daily budget is checked against the final
	// numbers; a rejected stop writes nothing.
	closed := sess
	foldBreak(&closed, now)
	end := now
	closed.EndAt = &end
	closed.Status = attendance.StatusClosed

	policy, err := policyInTx(ctx, tx, orgID, now)
	if err != nil {
		return attendance.Session{}, err
	}
	today, err := sessionsOnDay(ctx, tx, userID, now)
	if err != nil {
		return attendance.Session{}, err
	}
	todayNet := attendance.Account(closed, now).NetSeconds
	for _, other := range today {
		if other.ID == sess.ID {
			continue
		}
		todayNet += attendance.Account(other, now).NetSeconds
	}
	if todayNet > int64(policy.DailyWorkMinutes)*60 {
		return attendance.Session{}, attendance.ErrDailyWorkLimitExceeded
	}

	if _, err := tx.ExecContext(ctx, `
		update work_sessions
		set end_at=$2, status='CLOSED', break_start=null, on_break=false, total_break_seconds=$3
		where id=$1
	`, sess.ID, now, closed.TotalBreakSeconds); err != nil {
		return attendance.Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return attendance.Session{}, err
	}
	return closed, nil
}

func (s *Store) StartBreak(ctx context.Context, userID, orgID string) (attendance.Session, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return attendance.Session{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockUser(ctx, tx, userID); err != nil {
		return attendance.Session{}, err
	}
	sess, open, err := openSession(ctx, tx, userID)
	if err != nil {
		return attendance.Session{}, err
	}
	if !open {
		return attendance.Session{}, attendance.ErrNoActiveSession
	}
	if sess.BreakStart != nil {
		return attendance.Session{}, attendance.ErrBreakAlreadyActive
	}

	if _, err := tx.ExecContext(ctx, `
		update work_sessions set break_start=$2, on_break=true where id=$1
	`, sess.ID, now); err != nil {
		return attendance.Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return attendance.Session{}, err
	}
	sess.BreakStart = &now
	sess.OnBreak = true
	return sess, nil
}

func (s *Store) EndBreak(ctx context.Context, userID, orgID string) (attendance.BreakResult, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return attendance.BreakResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockUser(ctx, tx, userID); err != nil {
		return attendance.BreakResult{}, err
	}
	sess, open, err := openSession(ctx, tx, userID)
	if err != nil {
		return attendance.BreakResult{}, err
	}
	if !open {
		return attendance.BreakResult{}, attendance.ErrNoActiveSession
	}
	if sess.BreakStart == nil {
		return attendance.BreakResult{}, attendance.ErrNoActiveBreak
	}

	foldBreak(&sess, now)
	if _, err := tx.ExecContext(ctx, `
		update work_sessions set break_start=null, on_break=false, total_break_seconds=$2 where id=$1
	`, sess.ID, sess.TotalBreakSeconds); err != nil {
		return attendance.BreakResult{}, err
	}

	// Advisory budget check over today's completed break time, including the
	// break just folded. The break is committed regardless.
	policy, err := policyInTx(ctx, tx, orgID, now)
	if err != nil {
		return attendance.BreakResult{}, err
	}
	today, err := sessionsOnDay(ctx, tx, userID, now)
	if err != nil {
		return attendance.BreakResult{}, err
	}
	var todayBreak int64
	for _, other := range today {
		if other.ID == sess.ID {
			todayBreak += sess.TotalBreakSeconds
			continue
		}
		todayBreak += other.TotalBreakSeconds
	}
	exceeded := todayBreak > int64(policy.DailyBreakMinutes)*60

	if err := tx.Commit(); err != nil {
		return attendance.BreakResult{}, err
	}
	return attendance.BreakResult{Session: sess, LimitExceeded: exceeded}, nil
}

func (s *Store) ActiveSession(ctx context.Context, userID string) (attendance.Session, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+sessionColumns+`
		from work_sessions
		where user_id=$1 and status='OPEN'
	`, userID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.Session{}, false, nil
	}
	if err != nil {
		return attendance.Session{}, false, err
	}
	return sess, true, nil
}

func (s *Store) SessionsInRange(ctx context.Context, orgID, userID string, from, to time.Time) ([]attendance.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+sessionColumns+`
		from work_sessions
		where organization_id=$1 and user_id=$2 and start_at >= $3 and start_at < $4
		order by start_at asc
	`, orgID, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []attendance.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, sess)
	}
	return res, rows.Err()
}

// foldBreak mirrors the in-memory fold: the open break moves into the
// session's counter and the markers clear.
func foldBreak(sess *attendance.Session, now time.Time) {
	if sess.BreakStart == nil {
		return
	}
	elapsed := int64(now.Sub(*sess.BreakStart) / time.Second)
	if elapsed > 0 {
		sess.TotalBreakSeconds += elapsed
	}
	sess.BreakStart = nil
	sess.OnBreak = false
}
