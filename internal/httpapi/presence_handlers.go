package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"timeclock.org/internal/attendance"
	"timeclock.org/internal/auth"
)

type presenceEntry struct {
	UserID         string                    `json:"user_id"`
	Username       string                    `json:"username"`
	Role           string                    `json:"role"`
	Status         attendance.PresenceStatus `json:"status"`
	LastSeenAt     *time.Time                `json:"last_seen_at,omitempty"`
	OnBreak        bool                      `json:"on_break"`
	SessionStartAt *time.Time                `json:"session_start_at,omitempty"`
	CurrentTask    *attendance.CurrentTask   `json:"current_task,omitempty"`
}

func (a *API) handlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	id, ok := a.identity(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	if err := a.directory.MarkSeen(r.Context(), id.UserID, now); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	status := a.resolvePresence(r.Context(), id.UserID, &now)
	a.publishPresence(r.Context(), id, status)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"timestamp": now.Format(time.RFC3339),
	})
}

func (a *API) handleOnline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}

	users, err := a.directory.ListByOrganization(r.Context(), id.OrganizationID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	now := time.Now().UTC()
	items := make([]presenceEntry, 0, len(users))
	for _, u := range users {
		entry := a.presenceFor(r.Context(), u, now)
		if entry.Status == attendance.PresenceOffline {
			continue
		}
		items = append(items, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"as_of": now.Format(time.RFC3339),
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := a.identity(w, r)
	if !ok {
		return
	}

	user, err := a.directory.User(r.Context(), id.OrganizationID, id.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	now := time.Now().UTC()
	resp := map[string]any{
		"user":   user,
		"status": a.presenceFor(r.Context(), user, now).Status,
	}

	if sess, found, err := a.svc.ActiveSession(r.Context(), id.UserID); err == nil && found {
		resp["session"] = sess
		resp["accounting"] = attendance.Account(sess, now)
	}
	if a.tasks != nil {
		if task, err := a.tasks.Current(r.Context(), id.OrganizationID, id.UserID); err == nil && task != nil {
			resp["current_task"] = task
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Stream handles Server-Sent Events for the organization's presence feed.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	if a.stream == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}
	id, ok := a.identity(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.stream.Subscribe(ctx, id.OrganizationID)

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for event := range ch {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

// resolvePresence derives the user's status from the open session (if any)
// and the given heartbeat time.
func (a *API) resolvePresence(ctx context.Context, userID string, lastSeen *time.Time) attendance.PresenceStatus {
	now := time.Now().UTC()
	if sess, found, err := a.svc.ActiveSession(ctx, userID); err == nil && found {
		return attendance.ResolveSessionStatus(&sess, lastSeen, now, a.idleWindow)
	}
	return attendance.ResolveStatus(false, false, lastSeen, now, a.idleWindow)
}

func (a *API) presenceFor(ctx context.Context, u auth.User, now time.Time) presenceEntry {
	entry := presenceEntry{
		UserID:     u.ID,
		Username:   u.Username,
		Role:       u.Role,
		LastSeenAt: u.LastSeenAt,
	}
	var open *attendance.Session
	if sess, found, err := a.svc.ActiveSession(ctx, u.ID); err == nil && found {
		open = &sess
		entry.OnBreak = sess.OnBreak
		entry.SessionStartAt = &open.StartAt
	}
	entry.Status = attendance.ResolveSessionStatus(open, u.LastSeenAt, now, a.idleWindow)
	if a.tasks != nil && entry.Status != attendance.PresenceOffline {
		if task, err := a.tasks.Current(ctx, u.OrganizationID, u.ID); err == nil {
			entry.CurrentTask = task
		}
	}
	return entry
}
