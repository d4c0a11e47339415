package transport

import (
	"context"
	"math/rand"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// Dial connects to cfg.Address over TCP, retrying with backoff until
// MaxConnectAttempts is reached (zero retries forever).
func Dial(ctx context.Context, cfg Config, handler NotificationHandler, log zerolog.Logger) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}

	var attempt int
	for {
		attempt++
		raw, err := dialer.DialContext(ctx, "tcp", cfg.Address)
		if err == nil {
			log.Debug().Str("addr", cfg.Address).Int("attempt", attempt).Msg("connected")
			return New(raw, cfg, handler, log), nil
		}
		log.Warn().Err(err).Str("addr", cfg.Address).Int("attempt", attempt).Msg("dial failed")
		if cfg.MaxConnectAttempts > 0 && attempt >= cfg.MaxConnectAttempts {
			return nil, err
		}
		if err := sleepContext(ctx, NextBackoffDelay(cfg.Backoff, attempt, rng)); err != nil {
			return nil, err
		}
	}
}
