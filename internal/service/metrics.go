package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/prperemyshlev/tasklane/internal/service"

// authMetrics counts auth events. Instruments come from the global meter
// provider, so they export through whatever provider main installed.
type authMetrics struct {
	signInRequests  metric.Int64Counter
	redemptions     metric.Int64Counter
	deviceEvents    metric.Int64Counter
	sessionsCreated metric.Int64Counter
	swept           metric.Int64Counter
}

func newAuthMetrics() *authMetrics {
	meter := otel.Meter(meterName)
	return &authMetrics{
		signInRequests:  counter(meter, "tasklane.auth.sign_in_requests", "Magic-link sign-in requests"),
		redemptions:     counter(meter, "tasklane.auth.magic_link_redemptions", "Magic-link redemption attempts by result"),
		deviceEvents:    counter(meter, "tasklane.auth.device_events", "Device authorization events by kind"),
		sessionsCreated: counter(meter, "tasklane.auth.sessions_created", "Sessions issued"),
		swept:           counter(meter, "tasklane.auth.swept_rows", "Expired rows removed by sweeps"),
	}
}

func counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		otel.Handle(err)
		return noop.Int64Counter{}
	}
	return c
}

func (m *authMetrics) signInRequested(ctx context.Context) {
	m.signInRequests.Add(ctx, 1)
}

func (m *authMetrics) redemption(ctx context.Context, result string) {
	m.redemptions.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *authMetrics) deviceEvent(ctx context.Context, kind string) {
	m.deviceEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event", kind)))
}

func (m *authMetrics) sessionCreated(ctx context.Context) {
	m.sessionsCreated.Add(ctx, 1)
}

func (m *authMetrics) sweptRows(ctx context.Context, kind string, n int64) {
	m.swept.Add(ctx, n, metric.WithAttributes(attribute.String("kind", kind)))
}
