package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mkarras/go-entity-store/internal/config"
	"github.com/mkarras/go-entity-store/internal/sysutil"
)

// SetupLogging configures the process-wide zerolog output from the
// loaded configuration and returns the root logger the stack should be
// built with. LogPretty switches to the human-readable console writer
// for development; production keeps the default JSON stream.
func SetupLogging(cfg *config.Config) zerolog.Logger {
	sysutil.SetLogLevel(cfg.LogLevel)

	var out io.Writer = os.Stderr
	if cfg.LogPretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	root := zerolog.New(out).With().
		Timestamp().
		Str("service", cfg.OTEL.ServiceName).
		Logger()

	// Keep the package-global logger in sync for code logging through
	// zerolog/log.
	log.Logger = root
	return root
}
