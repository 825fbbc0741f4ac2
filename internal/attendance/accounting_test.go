package attendance

import (
	"testing"
	"time"
)

func TestAccountClosedSessionWithCompletedBreak(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(3600 * time.Second)
	s := Session{
		StartAt:           start,
		EndAt:             &end,
		Status:            StatusClosed,
		TotalBreakSeconds: 600,
	}

	acc := Account(s, end.Add(time.Hour))
	if acc.TotalSeconds != 3600 {
		t.Fatalf("total = %d, want 3600", acc.TotalSeconds)
	}
	if acc.BreakSeconds != 600 {
		t.Fatalf("break = %d, want 600", acc.BreakSeconds)
	}
	if acc.NetSeconds != 3000 {
		t.Fatalf("net = %d, want 3000", acc.NetSeconds)
	}
}

func TestAccountOpenSessionWithOpenBreak(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	start := now.Add(-1800 * time.Second)
	breakStart := now.Add(-300 * time.Second)
	s := Session{
		StartAt:    start,
		Status:     StatusOpen,
		BreakStart: &breakStart,
		OnBreak:    true,
	}

	acc := Account(s, now)
	if acc.TotalSeconds != 1800 {
		t.Fatalf("total = %d, want 1800", acc.TotalSeconds)
	}
	if acc.BreakSeconds != 300 {
		t.Fatalf("break = %d, want 300", acc.BreakSeconds)
	}
	if acc.NetSeconds != 1200 {
		t.Fatalf("net = %d, want 1200", acc.NetSeconds)
	}
}

func TestAccountNetClampsToZero(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	end := now.Add(-time.Hour)
	s := Session{
		StartAt:           end.Add(-600 * time.Second),
		EndAt:             &end,
		Status:            StatusClosed,
		TotalBreakSeconds: 900, // more break than elapsed time
	}
	acc := Account(s, now)
	if acc.NetSeconds != 0 {
		t.Fatalf("net = %d, want 0", acc.NetSeconds)
	}
	if acc.TotalSeconds != 600 {
		t.Fatalf("total = %d, want 600", acc.TotalSeconds)
	}
}

func TestSumNet(t *testing.T) {
	now := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	end1 := now.Add(-time.Hour)
	sessions := []Session{
		{StartAt: end1.Add(-3600 * time.Second), EndAt: &end1, Status: StatusClosed, TotalBreakSeconds: 600},
		{StartAt: now.Add(-1800 * time.Second), Status: StatusOpen},
	}
	if got := SumNet(sessions, now); got != 3000+1800 {
		t.Fatalf("SumNet = %d, want %d", got, 3000+1800)
	}
}
