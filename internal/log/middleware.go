package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type contextKey string

const loggerContextKey contextKey = "logger"

// NewContext stores a request-scoped logger in the context.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext returns the request-scoped logger, falling back to the process
// default so callers never get nil.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: ComponentApp,
	}
}

// Middleware injects a logger carrying request_id and client_ip into each
// request context. Handlers retrieve it with FromContext.
func Middleware(logger *Logger, requestID func(*http.Request) string, clientIP func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := logger.With(
				FieldRequestID, requestID(r),
				FieldClientIP, clientIP(r),
			)
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), reqLogger)))
		})
	}
}

// RequestStart logs the beginning of an HTTP request.
func (l *Logger) RequestStart(ctx context.Context, r *http.Request, requestID, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.Header.Get("User-Agent")).
		WithRequestID(requestID).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	l.Logger.InfoContext(ctx, "Request started", fields.ToSlice()...)
}

// RequestEnd logs request completion. 4xx logs at warn, 5xx at error.
func (l *Logger) RequestEnd(ctx context.Context, r *http.Request, requestID, clientIP string, status int, duration time.Duration) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	fields := NewFields().
		WithHTTPResponse(status, duration.Milliseconds()).
		WithRequestID(requestID).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	fields[FieldMethod] = r.Method
	fields[FieldPath] = r.URL.Path
	l.Logger.Log(ctx, level, "Request completed", fields.ToSlice()...)
}
