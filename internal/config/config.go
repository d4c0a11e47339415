// Package config loads newsletterctl settings from a TOML file layered over
// built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.mau.fi/whatsmeow/types"

	"github.com/danmuck/newsletter/internal/logging"
	"github.com/danmuck/newsletter/internal/newsletter"
	"github.com/danmuck/newsletter/internal/transport"
)

type Config struct {
	Transport   transport.Config
	Self        newsletter.Identity
	MetricsAddr string
	LogLevel    string
	FetchCount  int
}

func DefaultConfig() Config {
	return Config{
		Transport:  transport.DefaultConfig(),
		LogLevel:   "info",
		FetchCount: 20,
	}
}

type fileConfig struct {
	Address            string `toml:"address"`
	SelfJID            string `toml:"self_jid"`
	SelfLID            string `toml:"self_lid"`
	ConnectTimeout     string `toml:"connect_timeout"`
	WriteTimeout       string `toml:"write_timeout"`
	ResponseTimeout    string `toml:"response_timeout"`
	MaxConnectAttempts int    `toml:"max_connect_attempts"`
	MaxPayloadBytes    uint32 `toml:"max_payload_bytes"`
	MetricsAddr        string `toml:"metrics_addr"`
	LogLevel           string `toml:"log_level"`
	FetchCount         int    `toml:"fetch_count"`
}

// Load decodes path and applies every key it defines over DefaultConfig.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load newsletter config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load newsletter config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("address") {
		cfg.Transport.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("self_jid") {
		jid, err := parseJID("self_jid", raw.SelfJID)
		if err != nil {
			return Config{}, err
		}
		cfg.Self.ID = jid
	}
	if meta.IsDefined("self_lid") {
		jid, err := parseJID("self_lid", raw.SelfLID)
		if err != nil {
			return Config{}, err
		}
		cfg.Self.LID = jid
	}
	if meta.IsDefined("connect_timeout") {
		if cfg.Transport.ConnectTimeout, err = parseDuration("connect_timeout", raw.ConnectTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("write_timeout") {
		if cfg.Transport.WriteTimeout, err = parseDuration("write_timeout", raw.WriteTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("response_timeout") {
		if cfg.Transport.ResponseTimeout, err = parseDuration("response_timeout", raw.ResponseTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("max_connect_attempts") {
		cfg.Transport.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	if meta.IsDefined("max_payload_bytes") {
		cfg.Transport.Limits.MaxPayloadBytes = raw.MaxPayloadBytes
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("fetch_count") {
		cfg.FetchCount = raw.FetchCount
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if c.Transport.Limits.MaxPayloadBytes == 0 {
		return errors.New("config: max_payload_bytes must be > 0")
	}
	if c.FetchCount <= 0 {
		return fmt.Errorf("config: fetch_count must be > 0, got %d", c.FetchCount)
	}
	if c.Self.ID.IsEmpty() {
		return errors.New("config: self_jid is required")
	}
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}

func parseJID(key, raw string) (types.JID, error) {
	jid, err := types.ParseJID(strings.TrimSpace(raw))
	if err != nil {
		return types.EmptyJID, fmt.Errorf("parse %s: %w", key, err)
	}
	return jid, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("parse %s: must be positive", key)
	}
	return d, nil
}
