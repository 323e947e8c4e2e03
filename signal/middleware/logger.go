// Package middleware contains common middleware functions for HTTP handlers.
package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Logger logs requests and responses.
type Logger struct {
}

type logWriter struct {
	http.ResponseWriter
	statusCode int
}

func (l *logWriter) WriteHeader(code int) {
	l.statusCode = code
	l.ResponseWriter.WriteHeader(code)
}

// NewLogger creates a new Logger middleware.
func NewLogger() *Logger {
	return &Logger{}
}

// Intercept logs the request and response.
func (l Logger) Intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := logWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(&rw, r)
		event := log.Info()
		if rw.statusCode >= 400 {
			event = log.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}
