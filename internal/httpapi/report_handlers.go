package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"timeclock.org/internal/attendance"
	"timeclock.org/internal/auth"
)

const reportWindow = 7 * 24 * time.Hour

type weeklyStatsResponse struct {
	Items []attendance.WeeklyReport `json:"items"`
	From  time.Time                 `json:"from"`
	To    time.Time                 `json:"to"`
}

type alertEntry struct {
	UserID   string             `json:"user_id"`
	Username string             `json:"username"`
	Alerts   []attendance.Alert `json:"alerts"`
	Score    float64            `json:"score"`
}

// orgReports builds the trailing-week report for every user in the
// organization, ordered the way the directory lists them.
func (a *API) orgReports(ctx context.Context, orgID string, now time.Time) ([]attendance.WeeklyReport, error) {
	users, err := a.directory.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	from := now.Add(-reportWindow)

	reports := make([]attendance.WeeklyReport, 0, len(users))
	for _, u := range users {
		sessions, err := a.svc.SessionsInRange(ctx, orgID, u.ID, from, now)
		if err != nil {
			return nil, err
		}
		var tasks attendance.TaskSummary
		if a.tasks != nil {
			if summary, err := a.tasks.Counts(ctx, orgID, u.ID, from, now); err == nil {
				tasks = summary
			}
		}
		report := attendance.BuildWeeklyReport(u.ID, sessions, tasks, now)
		report.Username = u.Username
		reports = append(reports, report)
	}
	return reports, nil
}

func (a *API) handleWeeklyStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	reports, err := a.orgReports(r.Context(), id.OrganizationID, now)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, weeklyStatsResponse{
		Items: reports,
		From:  now.Add(-reportWindow),
		To:    now,
	})
}

func (a *API) handleRankings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	reports, err := a.orgReports(r.Context(), id.OrganizationID, now)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, weeklyStatsResponse{
		Items: attendance.Rank(reports),
		From:  now.Add(-reportWindow),
		To:    now,
	})
}

func (a *API) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	reports, err := a.orgReports(r.Context(), id.OrganizationID, now)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]alertEntry, 0)
	for _, rep := range reports {
		alerts := attendance.Alerts(rep)
		if len(alerts) == 0 {
			continue
		}
		items = append(items, alertEntry{
			UserID:   rep.UserID,
			Username: rep.Username,
			Alerts:   alerts,
			Score:    rep.Score,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"as_of": now.Format(time.RFC3339),
	})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
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
	counts := map[attendance.PresenceStatus]int{}
	var netToday int64
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	for _, u := range users {
		var open *attendance.Session
		if sess, found, err := a.svc.ActiveSession(r.Context(), u.ID); err == nil && found {
			open = &sess
		}
		counts[attendance.ResolveSessionStatus(open, u.LastSeenAt, now, a.idleWindow)]++

		sessions, err := a.svc.SessionsInRange(r.Context(), id.OrganizationID, u.ID, dayStart, now)
		if err != nil {
			continue
		}
		netToday += attendance.SumNet(sessions, now)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_users":       len(users),
		"working":           counts[attendance.PresenceWorking],
		"on_break":          counts[attendance.PresenceBreak],
		"idle":              counts[attendance.PresenceIdle],
		"offline":           counts[attendance.PresenceOffline],
		"net_seconds_today": netToday,
		"as_of":             now.Format(time.RFC3339),
	})
}

func (a *API) handleUserDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/v1/admin/users/")
	userID = strings.TrimSuffix(userID, "/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	user, err := a.directory.User(r.Context(), id.OrganizationID, userID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	now := time.Now().UTC()
	from := now.Add(-reportWindow)
	sessions, err := a.svc.SessionsInRange(r.Context(), id.OrganizationID, userID, from, now)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	var tasks attendance.TaskSummary
	if a.tasks != nil {
		if summary, err := a.tasks.Counts(r.Context(), id.OrganizationID, userID, from, now); err == nil {
			tasks = summary
		}
	}
	report := attendance.BuildWeeklyReport(userID, sessions, tasks, now)
	report.Username = user.Username

	resp := map[string]any{
		"user":   user,
		"status": a.presenceFor(r.Context(), user, now).Status,
		"report": report,
		"daily":  attendance.DailyNetSeconds(sessions, now),
		"alerts": attendance.Alerts(report),
	}
	if sess, found, err := a.svc.ActiveSession(r.Context(), userID); err == nil && found {
		resp["session"] = sess
		resp["accounting"] = attendance.Account(sess, now)
	}
	writeJSON(w, http.StatusOK, resp)
}
