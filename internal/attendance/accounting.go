package attendance

import "time"

// Accounting is the netted time breakdown of a single session. All values are
// whole seconds and never negative.
type Accounting struct {
	TotalSeconds int64 `json:"total_seconds"`
	BreakSeconds int64 `json:"break_seconds"`
	NetSeconds   int64 `json:"net_seconds"`
}

// Account computes the time breakdown of a session as of now. Open sessions
// are measured against now; an in-progress break contributes its elapsed time
// without being folded into the session's counter. Every read path (dashboard,
// reports, live views) must use this one function.
func Account(s Session, now time.Time) Accounting {
	end := now
	if s.EndAt != nil {
		end = *s.EndAt
	}
	total := int64(end.Sub(s.StartAt) / time.Second)
	if total < 0 {
		total = 0
	}

	brk := s.TotalBreakSeconds
	if s.BreakStart != nil {
		open := int64(now.Sub(*s.BreakStart) / time.Second)
		if open > 0 {
			brk += open
		}
	}
	if brk < 0 {
		brk = 0
	}

	net := total - brk
	if net < 0 {
		net = 0
	}
	return Accounting{TotalSeconds: total, BreakSeconds: brk, NetSeconds: net}
}

// SumNet adds up net seconds over a set of sessions as of now.
func SumNet(sessions []Session, now time.Time) int64 {
	var sum int64
	for _, s := range sessions {
		sum += Account(s, now).NetSeconds
	}
	return sum
}
