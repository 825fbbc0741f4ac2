package attendance

import (
	"math"
	"testing"
	"time"
)

func closedSession(start time.Time, workSeconds, breakSeconds int64) Session {
	end := start.Add(time.Duration(workSeconds+breakSeconds) * time.Second)
	return Session{
		StartAt:           start,
		EndAt:             &end,
		Status:            StatusClosed,
		TotalBreakSeconds: breakSeconds,
	}
}

func TestDailyNetSecondsBucketsByStartDate(t *testing.T) {
	now := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)
	mon := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	tue := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)

	sessions := []Session{
		closedSession(mon, 3600, 0),
		closedSession(mon.Add(5*time.Hour), 1800, 600),
		closedSession(tue, 7200, 0),
		// Spans midnight: attributed entirely to its start date.
		closedSession(time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC), 7200, 0),
	}

	days := DailyNetSeconds(sessions, now)
	if len(days) != 3 {
		t.Fatalf("expected 3 buckets, got %d: %+v", len(days), days)
	}
	if days[0].Date != "2026-03-02" || days[0].NetSeconds != 5400 {
		t.Fatalf("unexpected monday bucket: %+v", days[0])
	}
	if days[1].Date != "2026-03-03" || days[1].NetSeconds != 7200 {
		t.Fatalf("unexpected tuesday bucket: %+v", days[1])
	}
	if days[2].Date != "2026-03-04" || days[2].NetSeconds != 7200 {
		t.Fatalf("midnight session not attributed to start date: %+v", days[2])
	}
}

func TestBuildWeeklyReportScore(t *testing.T) {
	now := time.Date(2026, 3, 6, 18, 0, 0, 0, time.UTC)
	var sessions []Session
	// 4 days x 8h net + 1h break each day.
	for i := 0; i < 4; i++ {
		day := time.Date(2026, 3, 2+i, 9, 0, 0, 0, time.UTC)
		sessions = append(sessions, closedSession(day, 8*3600, 3600))
	}

	r := BuildWeeklyReport("u1", sessions, TaskSummary{Done: 3, Total: 4}, now)

	if r.NetSeconds != 4*8*3600 {
		t.Fatalf("net = %d", r.NetSeconds)
	}
	if r.ActiveDays != 4 {
		t.Fatalf("active days = %d", r.ActiveDays)
	}

	// weekly_hours = 32 -> 32/40*50 = 40
	// break_ratio = 4h/36h -> (1-1/9)*20
	// completion = 0.75 -> 22.5
	wantBreakRatio := float64(4*3600) / float64(36*3600)
	want := 32.0/40*50 + (1-wantBreakRatio)*20 + 0.75*30
	if math.Abs(r.Score-want) > 1e-9 {
		t.Fatalf("score = %f, want %f", r.Score, want)
	}
}

func TestBuildWeeklyReportZeroDenominators(t *testing.T) {
	now := time.Date(2026, 3, 6, 18, 0, 0, 0, time.UTC)
	r := BuildWeeklyReport("u1", nil, TaskSummary{}, now)
	if r.BreakRatio != 0 || r.CompletionRate != 0 {
		t.Fatalf("expected zero ratios: %+v", r)
	}
	// score = 0*50 + (1-0)*20 + 0*30
	if r.Score != 20 {
		t.Fatalf("score = %f, want 20", r.Score)
	}
}

func TestWeeklyHoursCappedInScore(t *testing.T) {
	now := time.Date(2026, 3, 8, 18, 0, 0, 0, time.UTC)
	var sessions []Session
	for i := 0; i < 6; i++ {
		day := time.Date(2026, 3, 2+i, 8, 0, 0, 0, time.UTC)
		sessions = append(sessions, closedSession(day, 10*3600, 0))
	}
	r := BuildWeeklyReport("u1", sessions, TaskSummary{Done: 1, Total: 1}, now)
	// 60h > 40h cap -> hours term maxes at 50.
	if math.Abs(r.Score-(50+20+30)) > 1e-9 {
		t.Fatalf("score = %f, want 100", r.Score)
	}
}

func TestRankDescendingStable(t *testing.T) {
	reports := []WeeklyReport{
		{UserID: "a", Score: 70},
		{UserID: "b", Score: 90},
		{UserID: "c", Score: 70},
	}
	ranked := Rank(reports)
	if ranked[0].UserID != "b" {
		t.Fatalf("expected b first: %+v", ranked)
	}
	// Stable: a keeps its position ahead of c on a tie.
	if ranked[1].UserID != "a" || ranked[2].UserID != "c" {
		t.Fatalf("tie order not stable: %+v", ranked)
	}
	// Input untouched.
	if reports[0].UserID != "a" {
		t.Fatalf("input mutated: %+v", reports)
	}
}

func TestAlertRules(t *testing.T) {
	cases := []struct {
		name   string
		report WeeklyReport
		want   []Alert
	}{
		{
			"healthy",
			WeeklyReport{Score: 80, BreakRatio: 0.1, WeeklyHours: 38, ActiveDays: 5},
			nil,
		},
		{
			"low productivity and high breaks",
			WeeklyReport{Score: 40, BreakRatio: 0.5, WeeklyHours: 20, ActiveDays: 4},
			[]Alert{AlertLowProductivity, AlertHighBreakRatio},
		},
		{
			"inactive",
			WeeklyReport{Score: 55, BreakRatio: 0.1, WeeklyHours: 2, ActiveDays: 1},
			[]Alert{AlertLowActivity, AlertInactive},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Alerts(tc.report)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}
