// Package logger provides structured logging functionality
// using the Uber zap logging library. It supports log levels and
// an HTTP middleware that records every served request.
package logger

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Log is a global SugaredLogger instance from the zap logging library.
// It is a no-op logger until Init() is called, so packages may log
// safely from tests that never initialize it.
var Log = zap.NewNop().Sugar()

// Init initializes the global logger configuration.
// The level is one of the values accepted by zap ("debug", "info",
// "warn"/"warning", "error", "fatal").
func Init(level string) error {
	if level == "warning" {
		level = "warn"
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	zl, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = zl.Sugar()

	return nil
}

// Sync flushes any buffered log entries to the output.
// It should be called when shutting down to ensure all logs are written.
func Sync() error {
	if err := Log.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}

	return nil
}

// WithLoggingHTTPMiddleware wraps an http.Handler and logs method, URI,
// response status, body size, duration and the chi request id.
func WithLoggingHTTPMiddleware(h http.Handler) http.Handler {
	logFn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		h.ServeHTTP(ww, r)

		Log.Infow(
			"request served",
			"request_id", middleware.GetReqID(r.Context()),
			"uri", r.RequestURI,
			"method", r.Method,
			"status", ww.Status(),
			"duration", time.Since(start),
			"size", ww.BytesWritten(),
		)
	}

	return http.HandlerFunc(logFn)
}
