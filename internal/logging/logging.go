package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger: human readable in DEV, JSON elsewhere.
// Loggers taken from a context without one fall back to the global logger.
func Setup(env, level string) {
	SetupWriter(os.Stderr, env, level)
}

func SetupWriter(out io.Writer, env, level string) {
	var logger zerolog.Logger
	if env == "DEV" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(out)
	}
	log.Logger = logger.With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log.Logger

	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
		log.Warn().Str("level", level).Msg("unknown log level, using info")
	}
	zerolog.SetGlobalLevel(logLevel)
}
