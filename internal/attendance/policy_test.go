package attendance

import (
	"context"
	"errors"
	"testing"
)

func TestPolicyLazyDefaults(t *testing.T) {
	svc := NewInMemory()
	p, err := svc.Policy(context.Background(), "org")
	if err != nil {
		t.Fatalf("Policy: %v", err)
	}
	if p.DailyWorkMinutes != 480 || p.DailyBreakMinutes != 60 || p.BreakMode != BreakModeFlexible {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}

func TestUpdatePolicyFixedModeRequiresTimes(t *testing.T) {
	svc := NewInMemory()
	ctx := context.Background()

	mode := BreakModeFixed
	_, err := svc.UpdatePolicy(ctx, "org", PolicyUpdate{BreakMode: &mode})
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}

	// Rejected update leaves the stored policy unchanged.
	p, _ := svc.Policy(ctx, "org")
	if p.BreakMode != BreakModeFlexible {
		t.Fatalf("policy mutated by rejected update: %+v", p)
	}
}

func TestUpdatePolicyFixedModeEndAfterStart(t *testing.T) {
	svc := NewInMemory()
	ctx := context.Background()

	mode := BreakModeFixed
	start, end := "13:00", "12:00"
	_, err := svc.UpdatePolicy(ctx, "org", PolicyUpdate{
		BreakMode:       &mode,
		FixedBreakStart: &start,
		FixedBreakEnd:   &end,
	})
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy for end <= start, got %v", err)
	}

	end = "13:30"
	p, err := svc.UpdatePolicy(ctx, "org", PolicyUpdate{
		BreakMode:       &mode,
		FixedBreakStart: &start,
		FixedBreakEnd:   &end,
	})
	if err != nil {
		t.Fatalf("valid fixed policy rejected: %v", err)
	}
	if p.BreakMode != BreakModeFixed || p.FixedBreakStart == nil || *p.FixedBreakStart != "13:00" {
		t.Fatalf("unexpected policy: %+v", p)
	}
}

func TestUpdatePolicyRejectsMalformedClock(t *testing.T) {
	svc := NewInMemory()
	bad := "25:99"
	_, err := svc.UpdatePolicy(context.Background(), "org", PolicyUpdate{FixedBreakStart: &bad})
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestUpdatePolicyPartialUpdateKeepsOtherFields(t *testing.T) {
	svc := NewInMemory()
	ctx := context.Background()

	work := 300
	if _, err := svc.UpdatePolicy(ctx, "org", PolicyUpdate{DailyWorkMinutes: &work}); err != nil {
		t.Fatalf("update: %v", err)
	}
	p, _ := svc.Policy(ctx, "org")
	if p.DailyWorkMinutes != 300 {
		t.Fatalf("work minutes not applied: %+v", p)
	}
	if p.DailyBreakMinutes != 60 {
		t.Fatalf("break minutes should keep default: %+v", p)
	}
}
