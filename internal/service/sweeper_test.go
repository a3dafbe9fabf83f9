package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSweeper_Run(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.signIn(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, f.links.RequestSignIn(ctx, "bob@example.com"))
	_, err = f.devices.Initiate(ctx)
	require.NoError(t, err)

	f.clock.Advance(sessionTTL)

	sweeper := NewSweeper(f.sessions, f.links, f.devices, zap.NewNop())
	result, err := sweeper.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Sessions)
	assert.Equal(t, int64(2), result.MagicLinks)
	assert.Equal(t, int64(1), result.DeviceCodes)
}

type failingSweep struct {
	SessionService
}

func (failingSweep) SweepExpired(context.Context) (int64, error) {
	return 0, errors.New("database unavailable")
}

func TestSweeper_RunContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.links.RequestSignIn(ctx, "bob@example.com"))
	f.clock.Advance(magicLinkTTL)

	sweeper := NewSweeper(failingSweep{f.sessions}, f.links, f.devices, zap.NewNop())
	result, err := sweeper.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable")
	assert.Equal(t, int64(1), result.MagicLinks)
}
