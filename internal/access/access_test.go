package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		op      string
		role    Role
		allowed bool
	}{
		{"createPoll", RoleAdmin, true},
		{"createPoll", RoleUser, false},
		{"updatePoll", RoleUser, false},
		{"deletePoll", RoleUser, false},
		{"deleteAllPolls", RoleUser, false},
		{"deleteAllPolls", RoleAdmin, true},
		{"getPollResult", RoleUser, true},
		{"getSpecificPollResult", RoleUser, true},
		{"votePoll", RoleUser, true},
		{"votePoll", RoleAdmin, true},
	}

	for _, tt := range tests {
		t.Run(tt.op+"/"+string(tt.role), func(t *testing.T) {
			err := Authorize(tt.op, tt.role)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrNotAuthorized)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("admin"))
	assert.Equal(t, RoleAdmin, ParseRole(" ADMIN "))
	assert.Equal(t, RoleUser, ParseRole("user"))
	assert.Equal(t, RoleUser, ParseRole(""))
	assert.Equal(t, RoleUser, ParseRole("superuser"))
}

func TestCallerSignedIn(t *testing.T) {
	assert.False(t, Caller{Name: "Ann"}.SignedIn())
	assert.False(t, Caller{ID: "  "}.SignedIn())
	assert.True(t, Caller{ID: "u1"}.SignedIn())
}
