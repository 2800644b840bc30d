// Package logging configures the process-wide slog logger and carries
// job/user identifiers through context so pipeline stages can annotate
// their log lines without threading loggers everywhere.
//
// Output format is text on a TTY and JSON otherwise; LOG_FORMAT and
// LOG_LEVEL override detection.
package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ContextKey is the private key type for logging values stored in a context.
type ContextKey string

const (
	// JobIDKey carries the id of the generation job being processed.
	JobIDKey ContextKey = "log_job_id"
	// UserIDKey carries the id of the user the work belongs to.
	UserIDKey ContextKey = "log_user_id"
)

// WithJobID returns a context annotated with a generation job id.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, JobIDKey, jobID)
}

// WithUserID returns a context annotated with a user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetJobID returns the job id stored in the context, or "".
func GetJobID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(JobIDKey).(string)
	return id
}

// GetUserID returns the user id stored in the context, or "".
func GetUserID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

// FromContext returns the logger with job_id and user_id attributes for any
// identifiers present in the context. With nothing set it returns the logger
// unchanged.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if ctx == nil {
		return logger
	}
	if id := GetJobID(ctx); id != "" {
		logger = logger.With("job_id", id)
	}
	if id := GetUserID(ctx); id != "" {
		logger = logger.With("user_id", id)
	}
	return logger
}

// New builds a logger from the environment. LOG_FORMAT forces text or json;
// without it, a TTY on stdout selects text. LOG_LEVEL defaults to info.
func New() *slog.Logger {
	format := os.Getenv("LOG_FORMAT")
	text := format == "text" || (format == "" && isatty(os.Stdout))

	wd, _ := os.Getwd()
	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(os.Getenv("LOG_LEVEL")),
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Source paths relative to the working directory read better
			// than absolute build paths
			if a.Key == slog.SourceKey {
				if src, ok := a.Value.Any().(*slog.Source); ok {
					if rel, err := filepath.Rel(wd, src.File); err == nil {
						src.File = rel
					} else {
						src.File = filepath.Base(src.File)
					}
				}
			}
			return a
		},
	}

	if text {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// SetDefault builds a logger, installs it as the slog default, and returns it.
func SetDefault() *slog.Logger {
	logger := New()
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isatty(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
