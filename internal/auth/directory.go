package auth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"timeclock.org/internal/ids"
)

// Directory is the user lookup and heartbeat sink consumed by the presence
// read paths. MarkSeen implements the external "mark user seen" contract.
type Directory interface {
	MarkSeen(ctx context.Context, userID string, at time.Time) error
	User(ctx context.Context, orgID, userID string) (User, error)
	ListByOrganization(ctx context.Context, orgID string) ([]User, error)
}

// InMemoryDirectory keeps users in process. Used by tests and the simulator;
// production deployments use the Postgres directory.
type InMemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]*User
}

var _ Directory = (*InMemoryDirectory)(nil)

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{users: make(map[string]*User)}
}

// AddUser registers a user, assigning an id when absent, and returns the
// stored copy.
func (d *InMemoryDirectory) AddUser(u User) User {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u.ID == "" {
		u.ID = ids.New()
	}
	if u.Role == "" {
		u.Role = RoleEmployee
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.Active = true
	stored := u
	d.users[u.ID] = &stored
	return u
}

func (d *InMemoryDirectory) MarkSeen(ctx context.Context, userID string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return ErrNotFound
	}
	seen := at.UTC()
	u.LastSeenAt = &seen
	return nil
}

func (d *InMemoryDirectory) User(ctx context.Context, orgID, userID string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok || u.OrganizationID != orgID {
		return User{}, ErrNotFound
	}
	return *u, nil
}

func (d *InMemoryDirectory) ListByOrganization(ctx context.Context, orgID string) ([]User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var res []User
	for _, u := range d.users {
		if u.OrganizationID == orgID {
			res = append(res, *u)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return strings.ToLower(res[i].Username) < strings.ToLower(res[j].Username)
	})
	return res, nil
}
