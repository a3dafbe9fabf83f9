package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/tasklane/internal/auth"
	"github.com/prperemyshlev/tasklane/internal/domain"
	"github.com/prperemyshlev/tasklane/internal/repository/repotest"
	"github.com/prperemyshlev/tasklane/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const (
	testCookieName  = "tasklane_session"
	testLegacyToken = "legacy-shared-secret-0123456789abcdefghij"
	testLegacyUser  = "legacy-user"
)

type whoami struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Legacy    bool   `json:"legacy"`
	GinUserID string `json:"gin_user_id"`
}

type AuthMiddlewareSuite struct {
	suite.Suite
	ctx      context.Context
	stores   *repotest.Stores
	sessions service.SessionService
	users    service.UserService
	router   *gin.Engine
	user     *domain.User
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareSuite))
}

func (s *AuthMiddlewareSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (s *AuthMiddlewareSuite) SetupTest() {
	s.ctx = context.Background()
	s.stores = repotest.New()
	logger := zap.NewNop()
	s.sessions = service.NewSessionService(s.stores.Sessions, 30*24*time.Hour, 15*24*time.Hour, logger)
	s.users = service.NewUserService(s.stores.Users, s.sessions, logger)

	s.user = &domain.User{Email: "alice@example.com", IsEmailVerified: true}
	s.Require().NoError(s.stores.Users.Create(s.ctx, s.user))

	cookie := SessionCookie{Name: testCookieName, MaxAge: 30 * 24 * time.Hour}
	legacy := LegacyToken{Token: testLegacyToken, UserID: testLegacyUser}

	s.router = gin.New()
	s.router.Use(AuthMiddleware(s.sessions, s.users, cookie, legacy, logger))
	s.router.GET("/whoami", func(c *gin.Context) {
		p := auth.FromContext(c.Request.Context())
		c.JSON(http.StatusOK, whoami{
			UserID:    p.UserID,
			SessionID: p.SessionID,
			Legacy:    p.Legacy,
			GinUserID: c.GetString("user_id"),
		})
	})
	s.router.GET("/admin", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

func (s *AuthMiddlewareSuite) issue(userID string) *service.IssuedSession {
	issued, err := s.sessions.Create(s.ctx, userID, domain.ClientMetadata{})
	s.Require().NoError(err)
	return issued
}

func (s *AuthMiddlewareSuite) do(path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func withCookie(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: testCookieName, Value: token})
	}
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func (s *AuthMiddlewareSuite) decode(rec *httptest.ResponseRecorder) whoami {
	var got whoami
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	return got
}

func (s *AuthMiddlewareSuite) TestCookie() {
	issued := s.issue(s.user.ID)

	rec := s.do("/whoami", withCookie(issued.Token))
	s.Require().Equal(http.StatusOK, rec.Code)

	got := s.decode(rec)
	s.Equal(s.user.ID, got.UserID)
	s.Equal(s.user.ID, got.GinUserID)
	s.Equal(issued.Session.ID, got.SessionID)
	s.False(got.Legacy)
}

func (s *AuthMiddlewareSuite) TestBearer() {
	issued := s.issue(s.user.ID)

	rec := s.do("/whoami", withBearer(issued.Token))
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(issued.Session.ID, s.decode(rec).SessionID)
}

func (s *AuthMiddlewareSuite) TestStaleCookieFallsBackToBearer() {
	issued := s.issue(s.user.ID)

	rec := s.do("/whoami", func(r *http.Request) {
		withCookie("0000000000000000000000000000000000000000000000000000000000000000")(r)
		withBearer(issued.Token)(r)
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(issued.Session.ID, s.decode(rec).SessionID)
}

func (s *AuthMiddlewareSuite) TestNoCredential() {
	rec := s.do("/whoami", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do("/whoami", withBearer("nonsense"))
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *AuthMiddlewareSuite) TestSessionForMissingUser() {
	issued := s.issue("ghost")

	rec := s.do("/whoami", withBearer(issued.Token))
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *AuthMiddlewareSuite) TestBlockedUser() {
	issued := s.issue(s.user.ID)
	s.Require().NoError(s.stores.Users.SetBlocked(s.ctx, s.user.ID, true))

	rec := s.do("/whoami", withCookie(issued.Token))
	s.Require().Equal(http.StatusForbidden, rec.Code)
	s.Contains(rec.Body.String(), "account is blocked")
	s.Equal(0, s.stores.Sessions.Len())

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == testCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	s.True(cleared, "session cookie should be cleared")

	rec = s.do("/whoami", withCookie(issued.Token))
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *AuthMiddlewareSuite) TestLegacyToken() {
	rec := s.do("/whoami", withBearer(testLegacyToken))
	s.Require().Equal(http.StatusOK, rec.Code)

	got := s.decode(rec)
	s.Equal(testLegacyUser, got.UserID)
	s.Empty(got.SessionID)
	s.True(got.Legacy)

	rec = s.do("/whoami", withBearer(testLegacyToken+"x"))
	s.Equal(http.StatusUnauthorized, rec.Code)

	// The shared secret is only accepted as a bearer header
	rec = s.do("/whoami", withCookie(testLegacyToken))
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *AuthMiddlewareSuite) TestRequireAdmin() {
	issued := s.issue(s.user.ID)

	rec := s.do("/admin", withBearer(issued.Token))
	s.Equal(http.StatusForbidden, rec.Code)

	s.Require().NoError(s.stores.Users.SetAdmin(s.user.ID, true))

	rec = s.do("/admin", withBearer(issued.Token))
	s.Equal(http.StatusNoContent, rec.Code)
}

func TestLegacyTokenDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stores := repotest.New()
	logger := zap.NewNop()
	sessions := service.NewSessionService(stores.Sessions, time.Hour, time.Minute, logger)
	users := service.NewUserService(stores.Users, sessions, logger)

	router := gin.New()
	router.Use(AuthMiddleware(sessions, users, SessionCookie{Name: testCookieName}, LegacyToken{}, logger))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+testLegacyToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"Bearer a b", ""},
		{"", ""},
	}

	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set("Authorization", tt.header)
		require.Equal(t, tt.want, bearerToken(c), tt.header)
	}
}
