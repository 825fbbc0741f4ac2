package attendance

import (
	"fmt"
	"time"
)

// Policy defaults applied on lazy creation.
const (
	DefaultDailyWorkMinutes  = 480
	DefaultDailyBreakMinutes = 60
)

const clockLayout = "15:04"

// DefaultPolicy returns the policy an organization gets on first access.
func DefaultPolicy(orgID string, now time.Time) Policy {
	return Policy{
		OrganizationID:    orgID,
		DailyWorkMinutes:  DefaultDailyWorkMinutes,
		DailyBreakMinutes: DefaultDailyBreakMinutes,
		BreakMode:         BreakModeFlexible,
		CreatedAt:         now.UTC(),
		UpdatedAt:         now.UTC(),
	}
}

// ValidatePolicy enforces the policy invariants: positive budgets, a known
// break mode, and for FIXED mode both wall-clock bounds set with end after
// start.
func ValidatePolicy(p Policy) error {
	if p.DailyWorkMinutes <= 0 {
		return fmt.Errorf("%w: daily_work_minutes must be positive", ErrInvalidPolicy)
	}
	if p.DailyBreakMinutes < 0 {
		return fmt.Errorf("%w: daily_break_minutes must not be negative", ErrInvalidPolicy)
	}
	switch p.BreakMode {
	case BreakModeFlexible, BreakModeFixed:
	default:
		return fmt.Errorf("%w: unknown break_mode %q", ErrInvalidPolicy, p.BreakMode)
	}

	var start, end *time.Time
	if p.FixedBreakStart != nil {
		t, err := time.Parse(clockLayout, *p.FixedBreakStart)
		if err != nil {
			return fmt.Errorf("%w: fixed_break_start must be HH:MM", ErrInvalidPolicy)
		}
		start = &t
	}
	if p.FixedBreakEnd != nil {
		t, err := time.Parse(clockLayout, *p.FixedBreakEnd)
		if err != nil {
			return fmt.Errorf("%w: fixed_break_end must be HH:MM", ErrInvalidPolicy)
		}
		end = &t
	}

	if p.BreakMode == BreakModeFixed {
		if start == nil || end == nil {
			return fmt.Errorf("%w: fixed break times required", ErrInvalidPolicy)
		}
	}
	if start != nil && end != nil && !end.After(*start) {
		return fmt.Errorf("%w: break end must be after break start", ErrInvalidPolicy)
	}
	return nil
}

// ApplyUpdate merges a partial update into a policy and validates the result.
// The stored policy is untouched when validation fails.
func ApplyUpdate(p Policy, upd PolicyUpdate, now time.Time) (Policy, error) {
	if upd.DailyWorkMinutes != nil {
		p.DailyWorkMinutes = *upd.DailyWorkMinutes
	}
	if upd.DailyBreakMinutes != nil {
		p.DailyBreakMinutes = *upd.DailyBreakMinutes
	}
	if upd.BreakMode != nil {
		p.BreakMode = *upd.BreakMode
	}
	if upd.FixedBreakStart != nil {
		if *upd.FixedBreakStart == "" {
			p.FixedBreakStart = nil
		} else {
			v := *upd.FixedBreakStart
			p.FixedBreakStart = &v
		}
	}
	if upd.FixedBreakEnd != nil {
		if *upd.FixedBreakEnd == "" {
			p.FixedBreakEnd = nil
		} else {
			v := *upd.FixedBreakEnd
			p.FixedBreakEnd = &v
		}
	}
	if err := ValidatePolicy(p); err != nil {
		return Policy{}, err
	}
	p.UpdatedAt = now.UTC()
	return p, nil
}
