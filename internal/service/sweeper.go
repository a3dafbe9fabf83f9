package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// SweepResult counts the rows removed by one sweep
type SweepResult struct {
	Sessions    int64
	MagicLinks  int64
	DeviceCodes int64
}

// Sweeper removes expired auth records. It is run by an external scheduler
// and never starts timers of its own.
type Sweeper struct {
	sessions SessionService
	links    MagicLinkService
	devices  DeviceAuthService
	logger   *zap.Logger
}

// NewSweeper creates a new sweeper
func NewSweeper(sessions SessionService, links MagicLinkService, devices DeviceAuthService, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		sessions: sessions,
		links:    links,
		devices:  devices,
		logger:   logger,
	}
}

// Run sweeps every store once. A failing store does not stop the others.
func (s *Sweeper) Run(ctx context.Context) (SweepResult, error) {
	var (
		result SweepResult
		errs   []error
		err    error
	)

	if result.Sessions, err = s.sessions.SweepExpired(ctx); err != nil {
		errs = append(errs, err)
	}
	if result.MagicLinks, err = s.links.SweepExpired(ctx); err != nil {
		errs = append(errs, err)
	}
	if result.DeviceCodes, err = s.devices.SweepExpired(ctx); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info("Sweep finished",
		zap.Int64("sessions", result.Sessions),
		zap.Int64("magic_links", result.MagicLinks),
		zap.Int64("device_codes", result.DeviceCodes),
		zap.Int("errors", len(errs)),
	)

	return result, errors.Join(errs...)
}
