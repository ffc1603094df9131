// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/gradebook/internal/domain/dedupe"
	"github.com/okian/gradebook/pkg/metrics"
)

// HTTP status code constants.
const (
	statusBadRequest    = 400
	statusNotFound      = 404
	statusConflict      = 409
	statusInternalError = 500
	statusUnavailable   = 503
)

// Request headers.
const (
	RequestIDHeader      = "X-Request-ID"
	IdempotencyKeyHeader = "Idempotency-Key"
)

// RequestIDMiddleware echoes a caller-supplied X-Request-ID or assigns a
// fresh UUID.
func RequestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	}
}

// IdempotencyMiddleware applies a request carrying an Idempotency-Key at
// most once. A replay gets 200 with a duplicate ack; a failed attempt
// releases the key so the client can retry. A replay that arrives while
// the first attempt is still running waits for its outcome.
func IdempotencyMiddleware(d dedupe.Deduper, next http.HandlerFunc) http.HandlerFunc {
	var (
		mu       sync.Mutex
		inflight = make(map[string]chan struct{})
	)
	// claim returns a channel to close when done, or nil for a duplicate.
	claim := func(ctx context.Context, scoped string) (chan struct{}, error) {
		for {
			mu.Lock()
			running, busy := inflight[scoped]
			if !busy {
				if d.SeenAndRecord(ctx, scoped) {
					mu.Unlock()
					return nil, nil
				}
				done := make(chan struct{})
				inflight[scoped] = done
				mu.Unlock()
				return done, nil
			}
			mu.Unlock()
			select {
			case <-running:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyKeyHeader)
		if key == "" || d == nil {
			next.ServeHTTP(w, r)
			return
		}
		scoped := r.Method + " " + r.URL.Path + " " + key
		done, err := claim(r.Context(), scoped)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "cancelled", err)
			return
		}
		if done == nil {
			writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
			return
		}
		defer func() {
			mu.Lock()
			delete(inflight, scoped)
			mu.Unlock()
			close(done)
		}()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		if wrapped.statusCode >= statusBadRequest {
			d.Unrecord(r.Context(), scoped)
		}
	}
}

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Microseconds()) / 1000
		statusCodeStr := strconv.Itoa(wrapped.statusCode)

		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCodeStr, durationMs)

		if wrapped.statusCode >= statusBadRequest {
			metrics.RecordError("http", getErrorType(wrapped.statusCode))
		}
	}
}

// getErrorType returns a standardized error type based on HTTP status code.
func getErrorType(statusCode int) string {
	switch {
	case statusCode == statusUnavailable:
		return "storage_unavailable"
	case statusCode >= statusInternalError:
		return "server_error"
	case statusCode == statusConflict:
		return "conflict"
	case statusCode == statusNotFound:
		return "not_found"
	case statusCode >= statusBadRequest:
		return "client_error"
	default:
		return "unknown"
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}
