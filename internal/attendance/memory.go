package attendance

import (
	"context"
	"sync"
	"time"

	"timeclock.org/internal/ids"
)

// InMemory implements Service with in-process state. Transitions are
// serialized per user through a keyed mutex; different users never contend.
// Production deployments use the Postgres store, which maps the same
// discipline onto row locks.
type InMemory struct {
	clock func() time.Time

	mu       sync.RWMutex
	locks    map[string]*sync.Mutex
	sessions map[string][]*Session
	policies map[string]*Policy
}

var _ Service = (*InMemory)(nil)

// Option configures InMemory.
type Option func(*InMemory)

// WithClock overrides the time source. Intended for tests and simulation.
func WithClock(clock func() time.Time) Option {
	return func(s *InMemory) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewInMemory creates an empty attendance service.
func NewInMemory(opts ...Option) *InMemory {
	s := &InMemory{
		clock:    time.Now,
		locks:    make(map[string]*sync.Mutex),
		sessions: make(map[string][]*Session),
		policies: make(map[string]*Policy),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// userLock returns the mutex serializing transitions for one user.
func (s *InMemory) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

func (s *InMemory) now() time.Time { return s.clock().UTC() }

// openSessionLocked finds the user's open session. Caller holds s.mu.
func (s *InMemory) openSessionLocked(userID string) *Session {
	for _, sess := range s.sessions[userID] {
		if sess.Status == StatusOpen {
			return sess
		}
	}
	return nil
}

// sessionsOnDayLocked returns the user's sessions whose start_at falls on the
// same UTC calendar date as day. Caller holds s.mu.
func (s *InMemory) sessionsOnDayLocked(userID string, day time.Time) []*Session {
	y, m, d := day.UTC().Date()
	var res []*Session
	for _, sess := range s.sessions[userID] {
		sy, sm, sd := sess.StartAt.UTC().Date()
		if sy == y && sm == m && sd == d {
			res = append(res, sess)
		}
	}
	return res
}

// policyLocked lazily creates the organization policy. Caller holds s.mu for
// writing.
func (s *InMemory) policyLocked(orgID string, now time.Time) *Policy {
	p, ok := s.policies[orgID]
	if !ok {
		def := DefaultPolicy(orgID, now)
		p = &def
		s.policies[orgID] = p
	}
	return p
}

func (s *InMemory) StartSession(ctx context.Context, userID, orgID string) (Session, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openSessionLocked(userID) != nil {
		return Session{}, ErrAlreadyActive
	}
	sess := &Session{
		ID:             ids.New(),
		UserID:         userID,
		OrganizationID: orgID,
		StartAt:        now,
		Status:         StatusOpen,
		CreatedAt:      now,
	}
	s.sessions[userID] = append(s.sessions[userID], sess)
	return *sess, nil
}

func (s *InMemory) StopSession(ctx context.Context, userID, orgID string) (Session, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.openSessionLocked(userID)
	if sess == nil {
		return Session{}, ErrNoActiveSession
	}

	// Evaluate the daily budget against a closed copy so that a rejected stop
	// leaves the stored session untouched.
	closed := *sess
	foldBreak(&closed, now)
	end := now
	closed.EndAt = &end
	closed.Status = StatusClosed

	policy := s.policyLocked(orgID, now)
	todayNet := Account(closed, now).NetSeconds
	for _, other := range s.sessionsOnDayLocked(userID, now) {
		if other.ID == sess.ID {
			continue
		}
		todayNet += Account(*other, now).NetSeconds
	}
	if todayNet > int64(policy.DailyWorkMinutes)*60 {
		return Session{}, ErrDailyWorkLimitExceeded
	}

	*sess = closed
	return *sess, nil
}

func (s *InMemory) StartBreak(ctx context.Context, userID, orgID string) (Session, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.openSessionLocked(userID)
	if sess == nil {
		return Session{}, ErrNoActiveSession
	}
	if sess.BreakStart != nil {
		return Session{}, ErrBreakAlreadyActive
	}
	start := now
	sess.BreakStart = &start
	sess.OnBreak = true
	return *sess, nil
}

func (s *InMemory) EndBreak(ctx context.Context, userID, orgID string) (BreakResult, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.openSessionLocked(userID)
	if sess == nil {
		return BreakResult{}, ErrNoActiveSession
	}
	if sess.BreakStart == nil {
		return BreakResult{}, ErrNoActiveBreak
	}
	foldBreak(sess, now)

	// Advisory daily break budget check: the break is already recorded, the
	// flag only reports the overrun.
	policy := s.policyLocked(sess.OrganizationID, now)
	var todayBreak int64
	for _, other := range s.sessionsOnDayLocked(userID, now) {
		todayBreak += other.TotalBreakSeconds
	}
	exceeded := todayBreak > int64(policy.DailyBreakMinutes)*60

	return BreakResult{Session: *sess, LimitExceeded: exceeded}, nil
}

func (s *InMemory) ActiveSession(ctx context.Context, userID string) (Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := s.openSessionLocked(userID)
	if sess == nil {
		return Session{}, false, nil
	}
	return *sess, true, nil
}

func (s *InMemory) SessionsInRange(ctx context.Context, orgID, userID string, from, to time.Time) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Session
	for _, sess := range s.sessions[userID] {
		if sess.OrganizationID != orgID {
			continue
		}
		if sess.StartAt.Before(from) || !sess.StartAt.Before(to) {
			continue
		}
		res = append(res, *sess)
	}
	return res, nil
}

func (s *InMemory) Policy(ctx context.Context, orgID string) (Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.policyLocked(orgID, s.now()), nil
}

func (s *InMemory) UpdatePolicy(ctx context.Context, orgID string, upd PolicyUpdate) (Policy, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.policyLocked(orgID, now)
	updated, err := ApplyUpdate(*current, upd, now)
	if err != nil {
		return Policy{}, err
	}
	*current = updated
	return updated, nil
}

// foldBreak folds an in-progress break into the session's counter and clears
// the break markers. No-op when no break is open.
func foldBreak(sess *Session, now time.Time) {
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
