package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_HasUsablePassword(t *testing.T) {
	assert.False(t, (&User{}).HasUsablePassword())
	assert.False(t, (&User{PasswordHash: UnusablePasswordPrefix + "abc"}).HasUsablePassword())
	assert.True(t, (&User{PasswordHash: "$2a$10$hash"}).HasUsablePassword())
}

func TestUser_SetPasswordHash_TruncatesToMicroseconds(t *testing.T) {
	// Arrange
	u := &User{}
	now := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.FixedZone("MSK", 3*3600))

	// Act
	u.SetPasswordHash("hash", now)

	// Assert
	require.NotNil(t, u.PasswordChangedAt)
	assert.Equal(t, "hash", u.PasswordHash)
	assert.Equal(t, 123456000, u.PasswordChangedAt.Nanosecond())
	assert.Equal(t, time.UTC, u.PasswordChangedAt.Location())
}

func TestUser_TokenState(t *testing.T) {
	changed := time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC)
	u := &User{Username: "alice", IsActive: false, IsVerified: false, PasswordChangedAt: &changed}

	assert.Equal(t, []string{"false", "false"}, u.TokenState(PurposeActivation))
	assert.Equal(t, []string{"2026-01-02T03:04:05.000006Z", "alice"}, u.TokenState(PurposePasswordReset))
	assert.Nil(t, u.TokenState(TokenPurpose("unknown")))

	// после активации состояние меняется
	u.IsActive, u.IsVerified = true, true
	assert.Equal(t, []string{"true", "true"}, u.TokenState(PurposeActivation))
}

func TestUser_TokenState_NoPasswordChange(t *testing.T) {
	u := &User{Username: "bob"}

	assert.Equal(t, []string{"", "bob"}, u.TokenState(PurposePasswordReset))
}

func TestRole_Snapshot(t *testing.T) {
	r := &Role{ID: 3, Name: "Manager", Level: 2, Content: ResourceUser, CanAdd: true, CanEdit: true, CanViewAll: true}

	s := r.Snapshot()

	assert.Equal(t, RoleSnapshot{ID: 3, Level: 2, Content: ResourceUser, CanAdd: true, CanEdit: true, CanViewAll: true}, s)
}

func TestNewUserResponse_NilRolesBecomeEmpty(t *testing.T) {
	resp := NewUserResponse(&User{Username: "carol"})

	assert.NotNil(t, resp.RoleIDs)
	assert.Empty(t, resp.RoleIDs)
}

func TestUser_IsDeactivated(t *testing.T) {
	assert.False(t, (&User{IsActive: false, IsVerified: false}).IsDeactivated(), "pending signup")
	assert.False(t, (&User{IsActive: true, IsVerified: true}).IsDeactivated())
	assert.True(t, (&User{IsActive: false, IsVerified: true}).IsDeactivated())
}
