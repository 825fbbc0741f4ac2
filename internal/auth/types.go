package auth

import "time"

// Role values recognised by the service.
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// Organization is the tenant boundary: every query in the service is scoped
// to an organization id.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User is an employee or admin account. LastSeenAt is owned by the heartbeat
// sink; the presence resolver only reads it.
type User struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	Role           string     `json:"role"`
	Active         bool       `json:"active"`
	LastSeenAt     *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Identity is the resolved caller supplied to every operation. The core never
// authenticates; it trusts this value from the boundary layer.
type Identity struct {
	UserID         string
	OrganizationID string
	Role           string
}

// IsAdmin reports whether the identity carries the admin role.
func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }
