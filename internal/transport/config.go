package transport

import (
	"errors"
	"strings"
	"time"

	"github.com/danmuck/newsletter/internal/protocol/frame"
)

// BackoffConfig defines dial retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines stream connection defaults.
type Config struct {
	Address            string
	ConnectTimeout     time.Duration
	WriteTimeout       time.Duration
	ResponseTimeout    time.Duration
	MaxConnectAttempts int
	Backoff            BackoffConfig
	Limits             frame.Limits
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:     5 * time.Second,
		WriteTimeout:       10 * time.Second,
		ResponseTimeout:    30 * time.Second,
		MaxConnectAttempts: 5,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
		Limits: frame.DefaultLimits(),
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = d.ResponseTimeout
	}
	if c.Backoff.InitialDelay <= 0 && c.Backoff.MaxDelay <= 0 {
		c.Backoff = d.Backoff
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits = d.Limits
	}
	return c
}

var ErrAddressRequired = errors.New("transport: address required")

func (c Config) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return ErrAddressRequired
	}
	if c.MaxConnectAttempts < 0 {
		return errors.New("transport: max_connect_attempts must be >= 0")
	}
	if c.Backoff.Multiplier != 0 && c.Backoff.Multiplier < 1.0 {
		return errors.New("transport: backoff multiplier must be >= 1")
	}
	return nil
}
