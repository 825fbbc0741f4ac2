package attendance

import "time"

// PresenceStatus is derived, never stored.
type PresenceStatus string

const (
	PresenceWorking PresenceStatus = "working"
	PresenceBreak   PresenceStatus = "break"
	PresenceIdle    PresenceStatus = "idle"
	PresenceOffline PresenceStatus = "offline"
)

// DefaultIdleWindow is how long after the last heartbeat a user without an
// open session still counts as idle. Deployments tune this via the
// presence_idle_window config option.
const DefaultIdleWindow = 120 * time.Second

// ResolveStatus derives a presence status from session state and the
// heartbeat timestamp. An open session is authoritative: a stale heartbeat
// never demotes a working user to idle, since the session itself proves
// activity intent. Idle covers only the gap between "recently active, no open
// session" and offline.
func ResolveStatus(hasOpenSession, onBreak bool, lastSeen *time.Time, now time.Time, idleWindow time.Duration) PresenceStatus {
	if hasOpenSession {
		if onBreak {
			return PresenceBreak
		}
		return PresenceWorking
	}
	if lastSeen != nil && now.Sub(*lastSeen) < idleWindow {
		return PresenceIdle
	}
	return PresenceOffline
}

// ResolveSessionStatus is a convenience wrapper over ResolveStatus for a
// possibly-absent session.
func ResolveSessionStatus(open *Session, lastSeen *time.Time, now time.Time, idleWindow time.Duration) PresenceStatus {
	if open == nil {
		return ResolveStatus(false, false, lastSeen, now, idleWindow)
	}
	return ResolveStatus(true, open.OnBreak, lastSeen, now, idleWindow)
}
