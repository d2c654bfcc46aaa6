package access

import (
	"errors"
	"strings"
)

// Role is the permission class of a chat participant.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ErrNotAuthorized is returned by Authorize when the role may not run the operation.
var ErrNotAuthorized = errors.New("not authorized")

// adminOnly lists operations that mutate polls.
var adminOnly = map[string]bool{
	"createPoll":     true,
	"updatePoll":     true,
	"deletePoll":     true,
	"deleteAllPolls": true,
}

// ParseRole maps free-form role text to a Role. Anything that is not "admin" is a regular user.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

func (r Role) IsAdmin() bool { return r == RoleAdmin }

// Caller identifies who sent a chat turn. An empty ID means the caller is not signed in.
type Caller struct {
	ID   string
	Name string
	Role Role
}

func (c Caller) SignedIn() bool { return strings.TrimSpace(c.ID) != "" }

// Authorize is the single enforcement point for role permissions. It never consults prompt text.
func Authorize(operation string, role Role) error {
	if adminOnly[operation] && !role.IsAdmin() {
		return ErrNotAuthorized
	}
	return nil
}
