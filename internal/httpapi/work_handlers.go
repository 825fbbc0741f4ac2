package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"timeclock.org/internal/attendance"
	"timeclock.org/internal/auth"
	"timeclock.org/internal/obs"
	"timeclock.org/internal/stream"
)

type sessionResponse struct {
	Session    attendance.Session    `json:"session"`
	Accounting attendance.Accounting `json:"accounting"`
}

type breakResponse struct {
	Session            attendance.Session    `json:"session"`
	Accounting         attendance.Accounting `json:"accounting"`
	BreakLimitExceeded bool                  `json:"break_limit_exceeded"`
}

func (a *API) handleStartWork(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	id, ok := a.identity(w, r)
	if !ok {
		return
	}

	sess, err := a.svc.StartSession(r.Context(), id.UserID, id.OrganizationID)
	if err != nil {
		obs.CountTransition("start", transitionOutcome(err))
		handleAttendanceError(w, r, err)
		return
	}
	obs.CountTransition("start", "ok")

	a.audit(r.Context(), "work.session.start", "session", sess.ID, nil)
	a.publishPresence(r.Context(), id, attendance.PresenceWorking)

	writeJSON(w, http.StatusCreated, sessionResponse{
		Session:    sess,
		Accounting: attendance.Account(sess, time.Now().UTC()),
	})
}

func (a *API) handleStopWork(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	id, ok := a.identity(w, r)
	if !ok {
		return
	}

	sess, err := a.svc.StopSession(r.Context(), id.UserID, id.OrganizationID)
	if err != nil {
		obs.CountTransition("stop", transitionOutcome(err))
		handleAttendanceError(w, r, err)
		return
	}
	obs.CountTransition("stop", "ok")

	acc := attendance.Account(sess, time.Now().UTC())
	a.audit(r.Context(), "work.session.stop", "session", sess.ID, map[string]string{
		"net_seconds":   strconv.FormatInt(acc.NetSeconds, 10),
		"break_seconds": strconv.FormatInt(acc.BreakSeconds, 10),
	})
	a.publishPresence(r.Context(), id, a.presenceAfterStop(r.Context(), id))

	writeJSON(w, http.StatusOK, sessionResponse{Session: sess, Accounting: acc})
}

func (a *API) handleStartBreak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	id, ok := a.identity(w, r)
	if !ok {
		return
	}

	sess, err := a.svc.StartBreak(r.Context(), id.UserID, id.OrganizationID)
	if err != nil {
		obs.CountTransition("break_start", transitionOutcome(err))
		handleAttendanceError(w, r, err)
		return
	}
	obs.CountTransition("break_start", "ok")

	a.audit(r.Context(), "work.break.start", "session", sess.ID, nil)
	a.publishPresence(r.Context(), id, attendance.PresenceBreak)

	writeJSON(w, http.StatusOK, sessionResponse{
		Session:    sess,
		Accounting: attendance.Account(sess, time.Now().UTC()),
	})
}

func (a *API) handleEndBreak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	id, ok := a.identity(w, r)
	if !ok {
		return
	}

	res, err := a.svc.EndBreak(r.Context(), id.UserID, id.OrganizationID)
	if err != nil {
		obs.CountTransition("break_end", transitionOutcome(err))
		handleAttendanceError(w, r, err)
		return
	}
	obs.CountTransition("break_end", "ok")

	meta := map[string]string{
		"total_break_seconds": strconv.FormatInt(res.Session.TotalBreakSeconds, 10),
	}
	if res.LimitExceeded {
		meta["break_limit_exceeded"] = "true"
	}
	a.audit(r.Context(), "work.break.end", "session", res.Session.ID, meta)
	a.publishPresence(r.Context(), id, attendance.PresenceWorking)

	writeJSON(w, http.StatusOK, breakResponse{
		Session:            res.Session,
		Accounting:         attendance.Account(res.Session, time.Now().UTC()),
		BreakLimitExceeded: res.LimitExceeded,
	})
}

type policyUpdateRequest struct {
	DailyWorkMinutes  *int    `json:"daily_work_minutes"`
	DailyBreakMinutes *int    `json:"daily_break_minutes"`
	BreakMode         *string `json:"break_mode"`
	FixedBreakStart   *string `json:"fixed_break_start"`
	FixedBreakEnd     *string `json:"fixed_break_end"`
}

func (a *API) handlePolicy(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		id, ok := a.identity(w, r)
		if !ok {
			return
		}
		policy, err := a.svc.Policy(r.Context(), id.OrganizationID)
		if err != nil {
			handleAttendanceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, policy)

	case http.MethodPut:
		id, ok := a.requireAdmin(w, r)
		if !ok {
			return
		}
		var req policyUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		upd := attendance.PolicyUpdate{
			DailyWorkMinutes:  req.DailyWorkMinutes,
			DailyBreakMinutes: req.DailyBreakMinutes,
			FixedBreakStart:   req.FixedBreakStart,
			FixedBreakEnd:     req.FixedBreakEnd,
		}
		if req.BreakMode != nil {
			mode := attendance.BreakMode(*req.BreakMode)
			upd.BreakMode = &mode
		}
		policy, err := a.svc.UpdatePolicy(r.Context(), id.OrganizationID, upd)
		if err != nil {
			handleAttendanceError(w, r, err)
			return
		}
		a.audit(r.Context(), "work.policy.update", "policy", id.OrganizationID, map[string]string{
			"daily_work_minutes":  strconv.Itoa(policy.DailyWorkMinutes),
			"daily_break_minutes": strconv.Itoa(policy.DailyBreakMinutes),
			"break_mode":          string(policy.BreakMode),
		})
		writeJSON(w, http.StatusOK, policy)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

// presenceAfterStop resolves what a user's presence becomes once the session
// is closed (idle while the heartbeat is fresh, offline otherwise).
func (a *API) presenceAfterStop(ctx context.Context, id auth.Identity) attendance.PresenceStatus {
	var lastSeen *time.Time
	if u, err := a.directory.User(ctx, id.OrganizationID, id.UserID); err == nil {
		lastSeen = u.LastSeenAt
	}
	return attendance.ResolveStatus(false, false, lastSeen, time.Now().UTC(), a.idleWindow)
}

func (a *API) publishPresence(ctx context.Context, id auth.Identity, status attendance.PresenceStatus) {
	if a.stream == nil {
		return
	}
	username := ""
	if u, err := a.directory.User(ctx, id.OrganizationID, id.UserID); err == nil {
		username = u.Username
	}
	a.stream.Publish(id.OrganizationID, stream.PresenceEvent{
		UserID:    id.UserID,
		Username:  username,
		Status:    string(status),
		Timestamp: time.Now().UTC(),
	})
}

func transitionOutcome(err error) string {
	switch {
	case errors.Is(err, attendance.ErrAlreadyActive),
		errors.Is(err, attendance.ErrNoActiveSession),
		errors.Is(err, attendance.ErrBreakAlreadyActive),
		errors.Is(err, attendance.ErrNoActiveBreak):
		return "conflict"
	case errors.Is(err, attendance.ErrDailyWorkLimitExceeded):
		return "limit"
	default:
		return "error"
	}
}

func handleAttendanceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, attendance.ErrAlreadyActive),
		errors.Is(err, attendance.ErrNoActiveSession),
		errors.Is(err, attendance.ErrBreakAlreadyActive),
		errors.Is(err, attendance.ErrNoActiveBreak):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, attendance.ErrDailyWorkLimitExceeded),
		errors.Is(err, attendance.ErrInvalidPolicy):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, attendance.ErrNotFound), errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
