package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_GetUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	signedIn, err := f.signIn(ctx, "alice@example.com")
	require.NoError(t, err)

	user, err := f.users.GetUser(ctx, signedIn.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.True(t, user.IsEmailVerified)

	_, err = f.users.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_BlockRevokesSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	signedIn, err := f.signIn(ctx, "alice@example.com")
	require.NoError(t, err)
	_, err = f.sessions.Create(ctx, signedIn.User.ID, testMeta)
	require.NoError(t, err)

	require.NoError(t, f.users.SetBlocked(ctx, signedIn.User.ID, true))

	_, err = f.sessions.Validate(ctx, signedIn.Session.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, f.stores.Sessions.Len())

	user, err := f.users.GetUser(ctx, signedIn.User.ID)
	require.NoError(t, err)
	assert.True(t, user.IsBlocked)
}

func TestUserService_UnblockRestoresSignIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	signedIn, err := f.signIn(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, f.users.SetBlocked(ctx, signedIn.User.ID, true))
	require.NoError(t, f.users.SetBlocked(ctx, signedIn.User.ID, false))

	_, err = f.signIn(ctx, "alice@example.com")
	assert.NoError(t, err)
}

func TestUserService_SetBlockedUnknownUser(t *testing.T) {
	f := newFixture()

	err := f.users.SetBlocked(context.Background(), "missing", true)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
