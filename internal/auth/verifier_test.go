package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/catalog-console/catalog-console/internal/shared"
)

func TestUsernameRoles(t *testing.T) {
	ctx := context.Background()
	v := UsernameRoles{}

	id, err := v.Verify(ctx, "admin", "anything")
	require.NoError(t, err)
	assert.Equal(t, []string{RoleAdmin, RoleUser}, id.Roles)

	id, err = v.Verify(ctx, "alice", "x")
	require.NoError(t, err)
	assert.Equal(t, []string{RoleUser}, id.Roles)

	_, err = v.Verify(ctx, " ", "x")
	assert.ErrorIs(t, err, shared.ErrAuthentication)
	_, err = v.Verify(ctx, "alice", "")
	assert.ErrorIs(t, err, shared.ErrAuthentication)
}

func TestStaticUsers(t *testing.T) {
	adminHash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.MinCost)
	require.NoError(t, err)
	userHash, err := bcrypt.GenerateFromPassword([]byte("user"), bcrypt.MinCost)
	require.NoError(t, err)

	users, err := ParseStaticUsers("admin:" + string(adminHash) + ":ADMIN|USER, user:" + string(userHash))
	require.NoError(t, err)

	ctx := context.Background()
	id, err := users.Verify(ctx, "admin", "admin")
	require.NoError(t, err)
	assert.True(t, id.IsAdmin())

	id, err = users.Verify(ctx, "user", "user")
	require.NoError(t, err)
	assert.Equal(t, []string{RoleUser}, id.Roles)

	_, err = users.Verify(ctx, "user", "wrong")
	assert.ErrorIs(t, err, shared.ErrAuthentication)
	_, err = users.Verify(ctx, "ghost", "user")
	assert.ErrorIs(t, err, shared.ErrAuthentication)
}

func TestStaticUsersUnknownNameCostsLikeKnownName(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost+1)
	require.NoError(t, err)
	users, err := ParseStaticUsers("alice:" + string(hash))
	require.NoError(t, err)

	cost, err := bcrypt.Cost(users.unknownHash)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)

	// The placeholder never admits anyone, whatever the password.
	_, err = users.Verify(context.Background(), "ghost", "unknown user")
	assert.ErrorIs(t, err, shared.ErrAuthentication)
}

func TestParseStaticUsersRejectsBadInput(t *testing.T) {
	_, err := ParseStaticUsers("")
	assert.Error(t, err)
	_, err = ParseStaticUsers("admin")
	assert.Error(t, err)
	_, err = ParseStaticUsers("admin:not-a-hash")
	assert.Error(t, err)
}

func TestNewVerifier(t *testing.T) {
	v, err := NewVerifier("", "")
	require.NoError(t, err)
	assert.IsType(t, UsernameRoles{}, v)

	_, err = NewVerifier("static", "")
	assert.Error(t, err)

	_, err = NewVerifier("ldap", "")
	assert.Error(t, err)
}
