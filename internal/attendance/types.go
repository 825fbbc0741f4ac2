package attendance

import (
	"context"
	"errors"
	"time"
)

// Session status values. Status is stored explicitly but must always agree
// with EndAt: CLOSED iff EndAt is set.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// BreakMode selects how an organization schedules breaks.
type BreakMode string

const (
	BreakModeFlexible BreakMode = "FLEXIBLE"
	BreakModeFixed    BreakMode = "FIXED"
)

// Session is one attendance interval for one user. Break time is tracked
// inline: TotalBreakSeconds accumulates completed breaks, BreakStart marks a
// break still in progress. This inline representation is canonical; there are
// no discrete break rows.
type Session struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	OrganizationID string     `json:"organization_id"`
	StartAt        time.Time  `json:"start_at"`
	EndAt          *time.Time `json:"end_at,omitempty"`
	Status         string     `json:"status"`
	BreakStart     *time.Time `json:"break_start,omitempty"`
	OnBreak        bool       `json:"on_break"`

	// TotalBreakSeconds covers completed break intervals only; an open break
	// is measured against "now" by the accounting helper.
	TotalBreakSeconds int64 `json:"total_break_seconds"`

	CreatedAt time.Time `json:"created_at"`
}

// Open reports whether the session is still running.
func (s Session) Open() bool { return s.Status == StatusOpen }

// Policy is the per-organization attendance configuration. Fixed break times
// use "15:04" wall-clock notation and are required when BreakMode is FIXED.
type Policy struct {
	OrganizationID    string    `json:"organization_id"`
	DailyWorkMinutes  int       `json:"daily_work_minutes"`
	DailyBreakMinutes int       `json:"daily_break_minutes"`
	BreakMode         BreakMode `json:"break_mode"`
	FixedBreakStart   *string   `json:"fixed_break_start,omitempty"`
	FixedBreakEnd     *string   `json:"fixed_break_end,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// PolicyUpdate carries a partial policy change; nil fields keep the stored
// value. The update is applied all-or-nothing.
type PolicyUpdate struct {
	DailyWorkMinutes  *int
	DailyBreakMinutes *int
	BreakMode         *BreakMode
	FixedBreakStart   *string
	FixedBreakEnd     *string
}

// BreakResult is the outcome of ending a break. LimitExceeded flags that the
// organization's daily break budget is now exceeded; the break is recorded
// regardless, the flag is advisory.
type BreakResult struct {
	Session       Session `json:"session"`
	LimitExceeded bool    `json:"break_limit_exceeded"`
}

// TaskSummary is the task completion snapshot read from the external task
// store for a user and window.
type TaskSummary struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// CurrentTask is the newest not-yet-done task assigned to a user.
type CurrentTask struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// TaskSource is the read-only view of the task store consumed by the
// aggregation layer. Tasks are never mutated here.
type TaskSource interface {
	Counts(ctx context.Context, orgID, userID string, from, to time.Time) (TaskSummary, error)
	Current(ctx context.Context, orgID, userID string) (*CurrentTask, error)
}

var (
	// State-conflict errors: caller-correctable, never retried automatically.
	ErrAlreadyActive      = errors.New("active session already exists")
	ErrNoActiveSession    = errors.New("no active session")
	ErrBreakAlreadyActive = errors.New("break already active")
	ErrNoActiveBreak      = errors.New("no active break")

	// Policy-violation errors: rejected atomically, nothing is written.
	ErrDailyWorkLimitExceeded = errors.New("daily work limit exceeded")
	ErrInvalidPolicy          = errors.New("invalid policy")

	ErrNotFound = errors.New("not found")
)
