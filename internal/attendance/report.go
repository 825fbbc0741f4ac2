package attendance

import (
	"sort"
	"time"
)

// DayTotal is one bucket of the daily net-seconds series. Sessions are
// attributed entirely to the calendar date of their start; a session spanning
// midnight is not split (known simplification).
type DayTotal struct {
	Date       string `json:"date"` // YYYY-MM-DD, UTC
	NetSeconds int64  `json:"net_seconds"`
}

// WeeklyReport is the per-user rollup over a trailing window.
type WeeklyReport struct {
	UserID         string  `json:"user_id"`
	Username       string  `json:"username,omitempty"`
	TotalSeconds   int64   `json:"total_seconds"`
	BreakSeconds   int64   `json:"break_seconds"`
	NetSeconds     int64   `json:"net_seconds"`
	WeeklyHours    float64 `json:"weekly_hours"`
	BreakRatio     float64 `json:"break_ratio"`
	CompletionRate float64 `json:"completion_rate"`
	Score          float64 `json:"score"`
	ActiveDays     int     `json:"active_days"`
	TasksDone      int     `json:"tasks_done"`
	TasksTotal     int     `json:"tasks_total"`
}

// Alert names one triggered alert rule. Rules are independent and
// non-exclusive.
type Alert string

const (
	AlertLowProductivity Alert = "LOW_PRODUCTIVITY"
	AlertHighBreakRatio  Alert = "HIGH_BREAK_RATIO"
	AlertLowActivity     Alert = "LOW_ACTIVITY"
	AlertInactive        Alert = "INACTIVE"
)

const dateLayout = "2006-01-02"

// DailyNetSeconds buckets net seconds by the UTC calendar date of each
// session's start, ordered by date.
func DailyNetSeconds(sessions []Session, now time.Time) []DayTotal {
	buckets := make(map[string]int64)
	for _, s := range sessions {
		day := s.StartAt.UTC().Format(dateLayout)
		buckets[day] += Account(s, now).NetSeconds
	}
	res := make([]DayTotal, 0, len(buckets))
	for day, net := range buckets {
		res = append(res, DayTotal{Date: day, NetSeconds: net})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date < res[j].Date })
	return res
}

// BuildWeeklyReport rolls a user's sessions and task counts into the scored
// weekly view. Sessions are expected to come from the trailing window.
func BuildWeeklyReport(userID string, sessions []Session, tasks TaskSummary, now time.Time) WeeklyReport {
	r := WeeklyReport{
		UserID:     userID,
		TasksDone:  tasks.Done,
		TasksTotal: tasks.Total,
	}
	days := make(map[string]struct{})
	for _, s := range sessions {
		acc := Account(s, now)
		r.TotalSeconds += acc.TotalSeconds
		r.BreakSeconds += acc.BreakSeconds
		r.NetSeconds += acc.NetSeconds
		days[s.StartAt.UTC().Format(dateLayout)] = struct{}{}
	}
	r.ActiveDays = len(days)
	r.WeeklyHours = float64(r.NetSeconds) / 3600

	if r.TotalSeconds > 0 {
		r.BreakRatio = float64(r.BreakSeconds) / float64(r.TotalSeconds)
	}
	if tasks.Total > 0 {
		r.CompletionRate = float64(tasks.Done) / float64(tasks.Total)
	}

	hoursTerm := r.WeeklyHours / 40
	if hoursTerm > 1 {
		hoursTerm = 1
	}
	r.Score = hoursTerm*50 + (1-r.BreakRatio)*20 + r.CompletionRate*30
	return r
}

// Rank orders reports by descending score. The sort is stable: ties keep
// input order.
func Rank(reports []WeeklyReport) []WeeklyReport {
	ranked := make([]WeeklyReport, len(reports))
	copy(ranked, reports)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

// Alerts evaluates the alert rules over a weekly report.
func Alerts(r WeeklyReport) []Alert {
	var res []Alert
	if r.Score < 50 {
		res = append(res, AlertLowProductivity)
	}
	if r.BreakRatio > 0.35 {
		res = append(res, AlertHighBreakRatio)
	}
	if r.WeeklyHours < 5 {
		res = append(res, AlertLowActivity)
	}
	if r.ActiveDays <= 1 {
		res = append(res, AlertInactive)
	}
	return res
}
