package attendance

import (
	"context"
	"time"
)

// Service defines the work session lifecycle and policy operations. Every
// transition is atomic against the user's session row; concurrent calls for
// the same user are serialized, calls for different users do not contend.
type Service interface {
	// StartSession opens a new session. Fails with ErrAlreadyActive while
	// another session is open for the user.
	StartSession(ctx context.Context, userID, orgID string) (Session, error)

	// StopSession closes the open session, folding any in-progress break into
	// the session's break counter first. Fails with ErrNoActiveSession when
	// nothing is open, or ErrDailyWorkLimitExceeded when closing would push
	// today's net work over the organization's budget (the session stays
	// open and no time is lost).
	StopSession(ctx context.Context, userID, orgID string) (Session, error)

	// StartBreak marks the open session as on break. Fails with
	// ErrNoActiveSession or ErrBreakAlreadyActive.
	StartBreak(ctx context.Context, userID, orgID string) (Session, error)

	// EndBreak folds the in-progress break into the session's counter. Fails
	// with ErrNoActiveSession or ErrNoActiveBreak. The daily break budget is
	// checked after recording: exceeding it sets LimitExceeded but never
	// rejects the call.
	EndBreak(ctx context.Context, userID, orgID string) (BreakResult, error)

	// ActiveSession returns the user's open session, if any.
	ActiveSession(ctx context.Context, userID string) (Session, bool, error)

	// SessionsInRange returns the user's sessions whose start falls inside
	// [from, to), ordered by start time. A read-only snapshot as of call time.
	SessionsInRange(ctx context.Context, orgID, userID string, from, to time.Time) ([]Session, error)

	// Policy returns the organization's policy, creating it with defaults on
	// first access.
	Policy(ctx context.Context, orgID string) (Policy, error)

	// UpdatePolicy applies a partial update all-or-nothing. Fails with
	// ErrInvalidPolicy; the stored policy is untouched on failure.
	UpdatePolicy(ctx context.Context, orgID string, upd PolicyUpdate) (Policy, error)
}
