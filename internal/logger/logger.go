package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/jwebster45206/parley/internal/config"
)

// Setup configures the global slog logger. Production, or an explicit json
// format, logs JSON; everything else logs text.
func Setup(cfg *config.Config) *slog.Logger {
	return SetupWriter(cfg, os.Stdout)
}

// SetupWriter is Setup with a custom destination. The console uses it to keep
// log lines off the terminal UI.
func SetupWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: cfg.Logging.SlogLevel(),
	}

	if cfg.IsProduction() || cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// WithConversation adds a conversation ID to logger context
func WithConversation(logger *slog.Logger, id uuid.UUID) *slog.Logger {
	return logger.With("conversation_id", id.String())
}

// WithAgent adds an agent to logger context
func WithAgent(logger *slog.Logger, id int64, name string) *slog.Logger {
	return logger.With("agent_id", id, "agent", name)
}

// WithError adds error to logger context
func WithError(logger *slog.Logger, err error) *slog.Logger {
	return logger.With("error", err.Error())
}
