package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// Duration is a time.Duration that also accepts a leading day count, as in
// "30d" or "1d12h". Session lifetimes are configured in days.
type Duration struct {
	time.Duration
}

// EnvDecode implements envconfig.Decoder
func (d *Duration) EnvDecode(_ context.Context, v string) error {
	parsed, err := parseDuration(v)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	return d.EnvDecode(context.Background(), string(text))
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// String renders whole days with the "d" suffix
func (d Duration) String() string {
	if d.Duration > 0 && d.Duration%day == 0 {
		return strconv.FormatInt(int64(d.Duration/day), 10) + "d"
	}
	return d.Duration.String()
}

func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}

	var total time.Duration
	if i := strings.IndexByte(v, 'd'); i >= 0 {
		days, err := strconv.Atoi(v[:i])
		if err != nil || days < 0 {
			return 0, fmt.Errorf("invalid days value in %q", v)
		}
		total = time.Duration(days) * day
		v = v[i+1:]
		if v == "" {
			return total, nil
		}
	}

	rest, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %w", err)
	}
	if rest < 0 {
		return 0, fmt.Errorf("invalid duration %q: must not be negative", v)
	}
	return total + rest, nil
}
