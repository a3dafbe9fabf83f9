package service

import (
	"context"
	"testing"
	"time"

	"github.com/prperemyshlev/tasklane/internal/utils"
	"github.com/stretchr/testify/suite"
)

type SessionServiceSuite struct {
	suite.Suite
	ctx context.Context
	f   *fixture
}

func TestSessionServiceSuite(t *testing.T) {
	suite.Run(t, new(SessionServiceSuite))
}

func (s *SessionServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.f = newFixture()
}

func (s *SessionServiceSuite) TestCreateStoresOnlyHash() {
	issued, err := s.f.sessions.Create(s.ctx, "user-1", testMeta)
	s.Require().NoError(err)

	s.True(utils.ValidateSecretFormat(issued.Token))
	s.Equal(utils.HashSecret(issued.Token), issued.Session.TokenHash)
	s.NotEqual(issued.Token, issued.Session.TokenHash)
	s.Equal(s.f.clock.Now().Add(sessionTTL), issued.Session.ExpiresAt)
	s.Require().NotNil(issued.Session.UserAgent)
	s.Equal(testMeta.UserAgent, *issued.Session.UserAgent)
}

func (s *SessionServiceSuite) TestCreateIssuesDistinctTokens() {
	first, err := s.f.sessions.Create(s.ctx, "user-1", testMeta)
	s.Require().NoError(err)
	second, err := s.f.sessions.Create(s.ctx, "user-1", testMeta)
	s.Require().NoError(err)

	s.NotEqual(first.Token, second.Token)
	s.NotEqual(first.Session.ID, second.Session.ID)
}

func (s *SessionServiceSuite) TestValidateTouchesWithoutRenewing() {
	issued, err := s.f.sessions.Create(s.ctx, "user-1", testMeta)
	s.Require().NoError(err)

	s.f.clock.Advance(time.Hour)

	session, err := s.f.sessions.Validate(s.ctx, issued.Token)
	s.Require().NoError(err)
	s.Equal("user-1", session.UserID)
	s.Equal(issued.Session.ExpiresAt, session.ExpiresAt)
	s.Equal(s.f.clock.Now(), session.LastUsedAt)
}

func (s *SessionServiceSuite) TestValidateRenewsBelowThreshold() {
	issued, err := s.f.sessions.Create(s.ctx, "user-1", testMeta)
	s.Require().NoError(err)

	s.f.clock.Advance(sessionTTL - renewThreshold + time.Second)

	session, err := s.f.sessions.Validate(s.ctx, issued.Token)
	s.Require().NoError(err)
	s.Equal(s.f.clock.Now().Add(sessionTTL), session.ExpiresAt)

	// The renewed deadline is what the store now holds
	s.f.clock.Advance(sessionTTL - time.Second)
	_, err = s.f.sessions.Validate(s.ctx, issued.Token)
	s.NoError(err)
}

func (s *SessionServiceSuite) TestValidateAtThresholdDoesNotRenew() {
	issued, err := s.f.sessions.Create(s.ctx, "user-1", testMeta)
	s.Require().NoError(err)

	s.f.clock.Advance(sessionTTL - renewThreshold)

	session, err := s.f.sessions.Validate(s.ctx, issued.Token)
	s.Require().NoError(err)
	s.Equal(issued.Session.ExpiresAt, session.ExpiresAt)
}

func (s *SessionServiceSuite) TestValidateRejectsExpired() {
	issued, err := s.f.sessions.Create(s.ctx, "user-1", testMeta)
	s.Require().NoError(err)

	s.f.clock.Advance(sessionTTL)

	_, err = s.f.sessions.Validate(s.ctx, issued.Token)
	s.ErrorIs(err, ErrSessionNotFound)
}

func (s *SessionServiceSuite) TestValidateRejectsUnknownAndMalformed() {
	for _, token := range []string{"", "not-a-token", utils.GenerateSecret()} {
		_, err := s.f.sessions.Validate(s.ctx, token)
		s.ErrorIs(err, ErrSessionNotFound, token)
	}
}

func (s *SessionServiceSuite) TestDeleteBySecret() {
	issued, err := s.f.sessions.Create(s.ctx, "user-1", testMeta)
	s.Require().NoError(err)

	s.Require().NoError(s.f.sessions.DeleteBySecret(s.ctx, issued.Token))
	_, err = s.f.sessions.Validate(s.ctx, issued.Token)
	s.ErrorIs(err, ErrSessionNotFound)

	// Idempotent
	s.NoError(s.f.sessions.DeleteBySecret(s.ctx, issued.Token))
	s.NoError(s.f.sessions.DeleteBySecret(s.ctx, ""))
}

func (s *SessionServiceSuite) TestDeleteByIDIsIdempotent() {
	issued, err := s.f.sessions.Create(s.ctx, "user-1", testMeta)
	s.Require().NoError(err)

	s.NoError(s.f.sessions.DeleteByID(s.ctx, issued.Session.ID))
	s.NoError(s.f.sessions.DeleteByID(s.ctx, issued.Session.ID))
	s.Equal(0, s.f.stores.Sessions.Len())
}

func (s *SessionServiceSuite) TestDeleteAllForUser() {
	for i := 0; i < 3; i++ {
		_, err := s.f.sessions.Create(s.ctx, "user-1", testMeta)
		s.Require().NoError(err)
	}
	other, err := s.f.sessions.Create(s.ctx, "user-2", testMeta)
	s.Require().NoError(err)

	s.Require().NoError(s.f.sessions.DeleteAllForUser(s.ctx, "user-1"))

	s.Equal(1, s.f.stores.Sessions.Len())
	_, err = s.f.sessions.Validate(s.ctx, other.Token)
	s.NoError(err)
}

func (s *SessionServiceSuite) TestListForUserSkipsExpired() {
	_, err := s.f.sessions.Create(s.ctx, "user-1", testMeta)
	s.Require().NoError(err)

	s.f.clock.Advance(sessionTTL - time.Hour)
	fresh, err := s.f.sessions.Create(s.ctx, "user-1", testMeta)
	s.Require().NoError(err)
	_, err = s.f.sessions.Create(s.ctx, "user-2", testMeta)
	s.Require().NoError(err)

	s.f.clock.Advance(time.Hour)

	sessions, err := s.f.sessions.ListForUser(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	s.Equal(fresh.Session.ID, sessions[0].ID)
}

func (s *SessionServiceSuite) TestRevokeForUserChecksOwnership() {
	issued, err := s.f.sessions.Create(s.ctx, "user-1", testMeta)
	s.Require().NoError(err)

	err = s.f.sessions.RevokeForUser(s.ctx, "user-2", issued.Session.ID)
	s.ErrorIs(err, ErrSessionNotFound)

	s.NoError(s.f.sessions.RevokeForUser(s.ctx, "user-1", issued.Session.ID))
	s.ErrorIs(s.f.sessions.RevokeForUser(s.ctx, "user-1", issued.Session.ID), ErrSessionNotFound)
}

func (s *SessionServiceSuite) TestSweepExpired() {
	_, err := s.f.sessions.Create(s.ctx, "user-1", testMeta)
	s.Require().NoError(err)
	s.f.clock.Advance(24 * time.Hour)
	live, err := s.f.sessions.Create(s.ctx, "user-1", testMeta)
	s.Require().NoError(err)

	s.f.clock.Advance(sessionTTL - 24*time.Hour)

	n, err := s.f.sessions.SweepExpired(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	_, err = s.f.sessions.Validate(s.ctx, live.Token)
	s.NoError(err)
}
