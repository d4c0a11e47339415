package testlog

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/danmuck/newsletter/internal/logging"
)

// Start configures test logging and returns a logger bound to t's output.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	logger := zerolog.New(zerolog.NewTestWriter(t)).With().Str("test", t.Name()).Logger()
	logger.Info().Msg("start")
	return logger
}
