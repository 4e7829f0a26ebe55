package logger

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger returns the application logger for the given mode: colored
// tint output in development, JSON otherwise. When logFile is set, records are
// also written as JSON to that file. The returned func closes the file.
func SetupLogger(mode, logFile string) (*slog.Logger, func() error) {
	console := consoleHandler(os.Stdout, mode)
	if logFile == "" {
		return slog.New(console), func() error { return nil }
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l := slog.New(console)
		l.Error("Failed to open log file, using stdout only", slog.String("file", logFile), slog.Any("error", err))
		return l, func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: levelFor(mode)})
	return slog.New(slogmulti.Fanout(console, fileHandler)), file.Close
}

// SetupLoggerWithWriters is SetupLogger with explicit sinks.
func SetupLoggerWithWriters(mode string, console, file io.Writer) *slog.Logger {
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: levelFor(mode)})
	return slog.New(slogmulti.Fanout(consoleHandler(console, mode), fileHandler))
}

func consoleHandler(w io.Writer, mode string) slog.Handler {
	if isDevelopment(mode) {
		return tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
}

func levelFor(mode string) slog.Level {
	if isDevelopment(mode) {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func isDevelopment(mode string) bool {
	return mode == "" || mode == "development"
}

func StructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// RequestID must run before this middleware
			reqID := middleware.GetReqID(r.Context())

			requestLogger := logger.With(
				slog.String("req_id", reqID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			)

			requestLogger.DebugContext(r.Context(), "Request started")

			next.ServeHTTP(ww, r)

			requestLogger.InfoContext(r.Context(), "Request completed",
				slog.Int("status", ww.Status()),
				slog.Int("bytes_written", ww.BytesWritten()),
				slog.Duration("latency", time.Since(start)),
			)
		})
	}
}
