package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"timeclock.org/internal/attendance"
)

// Tasks is the read-only view of the task store consumed by aggregation and
// dashboards. Nothing here mutates tasks.
type Tasks struct {
	db *sql.DB
}

var _ attendance.TaskSource = (*Tasks)(nil)

func NewTasks(db *sql.DB) *Tasks { return &Tasks{db: db} }

func (t *Tasks) Counts(ctx context.Context, orgID, userID string, from, to time.Time) (attendance.TaskSummary, error) {
	var summary attendance.TaskSummary
	err := t.db.QueryRowContext(ctx, `
		select count(*) filter (where status = 'DONE'), count(*)
		from tasks
		where organization_id=$1 and assigned_to=$2 and created_at >= $3 and created_at < $4
	`, orgID, userID, from, to).Scan(&summary.Done, &summary.Total)
	if err != nil {
		return attendance.TaskSummary{}, err
	}
	return summary, nil
}

func (t *Tasks) Current(ctx context.Context, orgID, userID string) (*attendance.CurrentTask, error) {
	var task attendance.CurrentTask
	err := t.db.QueryRowContext(ctx, `
		select id, title, status
		from tasks
		where organization_id=$1 and assigned_to=$2 and status in ('TODO','DOING')
		order by created_at desc
		limit 1
	`, orgID, userID).Scan(&task.ID, &task.Title, &task.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}
