package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prperemyshlev/tasklane/internal/domain"
	"github.com/prperemyshlev/tasklane/internal/repository"
	"github.com/prperemyshlev/tasklane/internal/utils"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type DeviceAuthServiceSuite struct {
	suite.Suite
	ctx context.Context
	f   *fixture
}

func TestDeviceAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(DeviceAuthServiceSuite))
}

func (s *DeviceAuthServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.f = newFixture()
}

func (s *DeviceAuthServiceSuite) initiate() *DeviceAuthorization {
	auth, err := s.f.devices.Initiate(s.ctx)
	s.Require().NoError(err)
	return auth
}

func (s *DeviceAuthServiceSuite) poll(deviceCode string) *DevicePollResult {
	result, err := s.f.devices.Poll(s.ctx, deviceCode)
	s.Require().NoError(err)
	return result
}

func (s *DeviceAuthServiceSuite) TestInitiate() {
	auth := s.initiate()

	s.Len(auth.UserCode, utils.UserCodeLength)
	s.True(utils.ValidateUserCode(auth.UserCode))
	s.True(utils.ValidateSecretFormat(auth.DeviceCode))
	s.Equal(testVerificationURL, auth.VerificationURI)
	s.Equal(testVerificationURL+"?code="+auth.UserCode, auth.VerificationURIComplete)
	s.Equal(600, auth.ExpiresIn)
	s.Equal(5, auth.Interval)

	s.Equal(domain.DeviceAuthPending, s.poll(auth.DeviceCode).Status)
}

func (s *DeviceAuthServiceSuite) TestApproveHandsOffTokenOnce() {
	auth := s.initiate()

	s.Require().NoError(s.f.devices.Approve(s.ctx, auth.UserCode, "user-1", testMeta))

	result := s.poll(auth.DeviceCode)
	s.Equal(domain.DeviceAuthApproved, result.Status)
	s.Require().True(utils.ValidateSecretFormat(result.Token))

	session, err := s.f.sessions.Validate(s.ctx, result.Token)
	s.Require().NoError(err)
	s.Equal("user-1", session.UserID)

	again := s.poll(auth.DeviceCode)
	s.Equal(domain.DeviceAuthExpired, again.Status)
	s.Empty(again.Token)
	s.Equal(0, s.f.stores.DeviceCodes.Len())
}

func (s *DeviceAuthServiceSuite) TestApproveAcceptsTypedVariants() {
	auth := s.initiate()
	typed := strings.ToLower(auth.UserCode[:4]) + "-" + strings.ToLower(auth.UserCode[4:])

	info, err := s.f.devices.Lookup(s.ctx, typed)
	s.Require().NoError(err)
	s.Equal(auth.UserCode, info.UserCode)
	s.Equal(s.f.clock.Now().Add(deviceTTL), info.ExpiresAt)

	s.NoError(s.f.devices.Approve(s.ctx, strings.ToLower(auth.UserCode), "user-1", testMeta))
}

func (s *DeviceAuthServiceSuite) TestApproveTwiceFails() {
	auth := s.initiate()

	s.Require().NoError(s.f.devices.Approve(s.ctx, auth.UserCode, "user-1", testMeta))
	err := s.f.devices.Approve(s.ctx, auth.UserCode, "user-2", testMeta)
	s.ErrorIs(err, ErrDeviceCodeNotFound)
	s.Equal(1, s.f.stores.Sessions.Len())
}

func (s *DeviceAuthServiceSuite) TestDenyAfterApproveFails() {
	auth := s.initiate()

	s.Require().NoError(s.f.devices.Approve(s.ctx, auth.UserCode, "user-1", testMeta))
	s.ErrorIs(s.f.devices.Deny(s.ctx, auth.UserCode), ErrDeviceCodeNotFound)
	s.Equal(domain.DeviceAuthApproved, s.poll(auth.DeviceCode).Status)
}

func (s *DeviceAuthServiceSuite) TestDeny() {
	auth := s.initiate()

	s.Require().NoError(s.f.devices.Deny(s.ctx, auth.UserCode))
	s.Equal(domain.DeviceAuthDenied, s.poll(auth.DeviceCode).Status)

	s.ErrorIs(s.f.devices.Approve(s.ctx, auth.UserCode, "user-1", testMeta), ErrDeviceCodeNotFound)
	s.ErrorIs(s.f.devices.Deny(s.ctx, auth.UserCode), ErrDeviceCodeNotFound)
	s.Equal(0, s.f.stores.Sessions.Len())
}

func (s *DeviceAuthServiceSuite) TestExpiry() {
	auth := s.initiate()

	s.f.clock.Advance(deviceTTL)

	s.Equal(domain.DeviceAuthExpired, s.poll(auth.DeviceCode).Status)
	s.ErrorIs(s.f.devices.Approve(s.ctx, auth.UserCode, "user-1", testMeta), ErrDeviceCodeNotFound)
	s.ErrorIs(s.f.devices.Deny(s.ctx, auth.UserCode), ErrDeviceCodeNotFound)
	_, err := s.f.devices.Lookup(s.ctx, auth.UserCode)
	s.ErrorIs(err, ErrDeviceCodeNotFound)
}

func (s *DeviceAuthServiceSuite) TestApprovedSurvivesDeadline() {
	auth := s.initiate()
	s.Require().NoError(s.f.devices.Approve(s.ctx, auth.UserCode, "user-1", testMeta))

	s.f.clock.Advance(deviceTTL + time.Minute)

	result := s.poll(auth.DeviceCode)
	s.Equal(domain.DeviceAuthApproved, result.Status)
	s.NotEmpty(result.Token)
}

func (s *DeviceAuthServiceSuite) TestPollUnknownOrMalformed() {
	for _, code := range []string{"", "garbage", utils.GenerateSecret()} {
		s.Equal(domain.DeviceAuthExpired, s.poll(code).Status, code)
	}
}

func (s *DeviceAuthServiceSuite) TestLookupRejectsBadCodes() {
	for _, code := range []string{"", "SHORT", "0OIL0OIL", "ABCDEFGHJ"} {
		_, err := s.f.devices.Lookup(s.ctx, code)
		s.ErrorIs(err, ErrDeviceCodeNotFound, code)
	}
}

func (s *DeviceAuthServiceSuite) TestConcurrentPollsClaimOnce() {
	auth := s.initiate()
	s.Require().NoError(s.f.devices.Approve(s.ctx, auth.UserCode, "user-1", testMeta))

	const pollers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		tokens []string
	)
	for i := 0; i < pollers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.f.devices.Poll(s.ctx, auth.DeviceCode)
			if err != nil || result.Token == "" {
				return
			}
			mu.Lock()
			tokens = append(tokens, result.Token)
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Len(tokens, 1)
}

func (s *DeviceAuthServiceSuite) TestApproveRaceDeletesOrphanSession() {
	codes := &racingDeviceCodes{DeviceCodeRepository: s.f.stores.DeviceCodes}
	devices := NewDeviceAuthService(codes, s.f.sessions, testVerificationURL, deviceTTL, pollInterval,
		zap.NewNop(), WithClock(s.f.clock.Now))

	auth, err := devices.Initiate(s.ctx)
	s.Require().NoError(err)

	err = devices.Approve(s.ctx, auth.UserCode, "user-1", testMeta)
	s.ErrorIs(err, ErrDeviceCodeNotFound)
	s.Equal(0, s.f.stores.Sessions.Len())
}

func (s *DeviceAuthServiceSuite) TestInitiateRetriesUserCodeCollisions() {
	codes := &collidingDeviceCodes{DeviceCodeRepository: s.f.stores.DeviceCodes, collisions: maxUserCodeAttempts - 1}
	devices := NewDeviceAuthService(codes, s.f.sessions, testVerificationURL, deviceTTL, pollInterval,
		zap.NewNop(), WithClock(s.f.clock.Now))

	_, err := devices.Initiate(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, s.f.stores.DeviceCodes.Len())
}

func (s *DeviceAuthServiceSuite) TestInitiateGivesUpAfterCollisions() {
	codes := &collidingDeviceCodes{DeviceCodeRepository: s.f.stores.DeviceCodes, collisions: maxUserCodeAttempts}
	devices := NewDeviceAuthService(codes, s.f.sessions, testVerificationURL, deviceTTL, pollInterval,
		zap.NewNop(), WithClock(s.f.clock.Now))

	_, err := devices.Initiate(s.ctx)
	s.ErrorIs(err, repository.ErrDuplicateUserCode)
	s.Equal(0, s.f.stores.DeviceCodes.Len())
}

func (s *DeviceAuthServiceSuite) TestSweepExpired() {
	stale := s.initiate()
	s.f.clock.Advance(deviceTTL / 2)
	fresh := s.initiate()
	s.f.clock.Advance(deviceTTL / 2)

	n, err := s.f.devices.SweepExpired(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	s.Equal(domain.DeviceAuthExpired, s.poll(stale.DeviceCode).Status)
	s.Equal(domain.DeviceAuthPending, s.poll(fresh.DeviceCode).Status)
}

// racingDeviceCodes loses every approval, as if another request won first
type racingDeviceCodes struct {
	repository.DeviceCodeRepository
}

func (r *racingDeviceCodes) Approve(context.Context, string, string, string, time.Time) error {
	return repository.ErrNotFound
}

// collidingDeviceCodes reports a user-code collision for the first inserts
type collidingDeviceCodes struct {
	repository.DeviceCodeRepository
	collisions int
}

func (r *collidingDeviceCodes) Create(ctx context.Context, code *domain.DeviceAuthCode) error {
	if r.collisions > 0 {
		r.collisions--
		return repository.ErrDuplicateUserCode
	}
	return r.DeviceCodeRepository.Create(ctx, code)
}
