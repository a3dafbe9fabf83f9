package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/prperemyshlev/tasklane/internal/domain"
	"github.com/prperemyshlev/tasklane/internal/email"
	"github.com/prperemyshlev/tasklane/internal/repository/repotest"
	"go.uber.org/zap"
)

const (
	testBaseURL         = "https://tasklane.test"
	testVerificationURL = "https://tasklane.test/device"
	sessionTTL          = 30 * 24 * time.Hour
	renewThreshold      = 15 * 24 * time.Hour
	magicLinkTTL        = 15 * time.Minute
	deviceTTL           = 10 * time.Minute
	pollInterval        = 5 * time.Second
)

var linkTokenRegex = regexp.MustCompile(`token=([0-9a-f]{64})`)

// fakeMailer records every message and optionally fails
type fakeMailer struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) last() (email.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return email.Message{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// lastToken extracts the raw token from the most recent sign-in email
func (m *fakeMailer) lastToken() string {
	msg, ok := m.last()
	if !ok {
		return ""
	}
	match := linkTokenRegex.FindStringSubmatch(msg.TextBody)
	if match == nil {
		return ""
	}
	return match[1]
}

type fixture struct {
	clock    *repotest.Clock
	stores   *repotest.Stores
	mailer   *fakeMailer
	sessions SessionService
	links    MagicLinkService
	devices  DeviceAuthService
	users    UserService
}

func newFixture() *fixture {
	clock := repotest.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	stores := repotest.New()
	mailer := &fakeMailer{}
	logger := zap.NewNop()
	withClock := WithClock(clock.Now)

	sessions := NewSessionService(stores.Sessions, sessionTTL, renewThreshold, logger, withClock)

	return &fixture{
		clock:    clock,
		stores:   stores,
		mailer:   mailer,
		sessions: sessions,
		links:    NewMagicLinkService(stores.MagicLinks, stores.Users, sessions, mailer, testBaseURL, magicLinkTTL, logger, withClock),
		devices:  NewDeviceAuthService(stores.DeviceCodes, sessions, testVerificationURL, deviceTTL, pollInterval, logger, withClock),
		users:    NewUserService(stores.Users, sessions, logger),
	}
}

// signIn runs a full magic-link round trip for addr
func (f *fixture) signIn(ctx context.Context, addr string) (*SignInResult, error) {
	if err := f.links.RequestSignIn(ctx, addr); err != nil {
		return nil, err
	}
	token := f.mailer.lastToken()
	if token == "" {
		return nil, errors.New("no sign-in email captured")
	}
	return f.links.Redeem(ctx, token, testMeta)
}

var testMeta = domain.ClientMetadata{UserAgent: "tasklane-cli/1.0", IPAddress: "203.0.113.7"}
