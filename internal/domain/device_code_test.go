package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeviceAuthCodeStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		code DeviceAuthCode
		want DeviceAuthStatus
	}{
		{"pending", DeviceAuthCode{ExpiresAt: now.Add(time.Minute)}, DeviceAuthPending},
		{"expired at deadline", DeviceAuthCode{ExpiresAt: now}, DeviceAuthExpired},
		{"denied", DeviceAuthCode{Denied: true, ExpiresAt: now.Add(time.Minute)}, DeviceAuthDenied},
		{"approved", DeviceAuthCode{Approved: true, ExpiresAt: now.Add(time.Minute)}, DeviceAuthApproved},
		{"approved survives deadline", DeviceAuthCode{Approved: true, ExpiresAt: now.Add(-time.Minute)}, DeviceAuthApproved},
		{"denied survives deadline", DeviceAuthCode{Denied: true, ExpiresAt: now.Add(-time.Minute)}, DeviceAuthDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.Status(now))
		})
	}
}
