package cmd

import (
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/ghl-platform/realtime-delivery-service/config"
)

// ProvideLogger builds the process-wide slog logger. The level handle is
// shared with the config watcher so a file edit retunes verbosity live.
func ProvideLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}

	var handler slog.Handler
	switch cfg.Log.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("service", ServiceName)
	slog.SetDefault(logger)
	return logger
}

// ProvideWatermillLogger routes watermill's internal logging through the
// application logger.
func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger.With("component", "watermill"))
}
