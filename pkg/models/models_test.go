package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, s := range []string{"student", "instructor", "admin"} {
		role, ok := ParseRole(s)
		assert.True(t, ok, s)
		assert.Equal(t, Role(s), role)
	}
	for _, s := range []string{"", "Student", "root", "superadmin"} {
		_, ok := ParseRole(s)
		assert.False(t, ok, s)
	}
}

func TestRoleSatisfies(t *testing.T) {
	cases := []struct {
		holder, required Role
		want             bool
	}{
		{RoleStudent, RoleStudent, true},
		{RoleStudent, RoleInstructor, false},
		{RoleStudent, RoleAdmin, false},
		{RoleInstructor, RoleStudent, true},
		{RoleInstructor, RoleInstructor, true},
		{RoleInstructor, RoleAdmin, false},
		{RoleAdmin, RoleStudent, true},
		{RoleAdmin, RoleInstructor, true},
		{RoleAdmin, RoleAdmin, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.holder.Satisfies(tc.required),
			"%s satisfies %s", tc.holder, tc.required)
	}
}

func TestInstructorRequestIDSurvivesJSONRoundTrip(t *testing.T) {
	// generated IDs sit above float64's 2^53 exact-integer range; a
	// numeric encoding would lose the low bits in any JSON client
	req := InstructorRequest{ID: 484280200761737217, UserID: 484280200761737219, Status: StatusPending}

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"484280200761737217"`)
	assert.Contains(t, string(data), `"user_id":"484280200761737219"`)

	var decoded InstructorRequest
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, req.ID, decoded.ID)
	assert.Equal(t, req.UserID, decoded.UserID)
}

func TestMFAEnabled(t *testing.T) {
	assert.False(t, User{}.MFAEnabled())
	assert.True(t, User{TOTPSecret: "JBSWY3DPEHPK3PXP"}.MFAEnabled())
}
