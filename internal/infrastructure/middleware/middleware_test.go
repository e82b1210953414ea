// internal/infrastructure/middleware/middleware_test.go
package middleware

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDMiddleware(t *testing.T) {
	// Setup
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get request ID from context
		requestID := r.Context().Value(requestIDKey)
		assert.NotNil(t, requestID)

		// Write it to the response for testing
		w.Write([]byte(requestID.(string)))
	})

	middleware := RequestIDMiddleware(nextHandler)

	// Create test request
	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()

	// Test with no existing request ID
	middleware.ServeHTTP(w, req)

	// Verify response
	assert.Equal(t, http.StatusOK, w.Code)
	requestID := w.Header().Get("X-Request-ID")
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, w.Body.String())

	// Test with existing request ID
	req = httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "test-id-123")
	w = httptest.NewRecorder()

	middleware.ServeHTTP(w, req)

	// Verify existing ID was preserved
	assert.Equal(t, "test-id-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "test-id-123", w.Body.String())
}

func TestGetRequestID(t *testing.T) {
	// Test with valid request ID
	ctx := context.WithValue(context.Background(), requestIDKey, "test-id-123")
	assert.Equal(t, "test-id-123", GetRequestID(ctx))

	// Test with no request ID
	assert.Equal(t, "unknown", GetRequestID(context.Background()))
}

func TestMiddlewareChain(t *testing.T) {
	// This test verifies that the middleware chain correctly preserves the request ID
	var buf bytes.Buffer
	log := logger.NewJSONLogger(&buf, logger.InfoLevel)

	// Create a chain of middleware with a handler that returns the request ID
	finalHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := GetRequestID(r.Context())
		w.Write([]byte(requestID))
	})

	// Apply RequestIDMiddleware then LoggingMiddleware
	chain := RequestIDMiddleware(LoggingMiddleware(log)(finalHandler))

	// Create a request with a known ID
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "test-id-123")
	w := httptest.NewRecorder()

	// Process the request
	chain.ServeHTTP(w, req)

	// Check that the final handler received the request ID
	assert.Equal(t, "test-id-123", w.Body.String())

	// Check that the request ID appears in logs
	logs := buf.String()
	assert.Contains(t, logs, "test-id-123", "Request ID should be in logs")
}

func TestLoggingMiddlewareLevels(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewJSONLogger(&buf, logger.InfoLevel)

	handler := LoggingMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/rates/USD/EUR", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), `"status":503`)
}

func TestRecoverMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewJSONLogger(&buf, logger.InfoLevel)

	handler := RecoverMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, buf.String(), "Handler panicked")
}

func TestMetricsMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()

	router := mux.NewRouter()
	router.Use(MetricsMiddleware(reg))
	router.HandleFunc("/rates/{from}/{to}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/rates/USD/EUR", "/rates/USD/JPY"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	count, err := testutil.GatherAndCount(reg, "fxresolver_http_requests_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStandardChain(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewJSONLogger(&buf, logger.InfoLevel)
	reg := prometheus.NewRegistry()

	router := mux.NewRouter()
	router.Use(Standard(log, reg)...)
	router.HandleFunc("/rates/{from}/{to}", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest("GET", "/rates/USD/EUR", nil)
	req.Header.Set("X-Request-ID", "test-id-123")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "test-id-123", w.Header().Get("X-Request-ID"))

	records := map[string]map[string]interface{}{}
	scanner := bufio.NewScanner(&buf)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records[rec["msg"].(string)] = rec
	}

	require.Contains(t, records, "Handler panicked")
	assert.Equal(t, "test-id-123", records["Handler panicked"]["request_id"])
	require.Contains(t, records, "Request completed")
	assert.Equal(t, "test-id-123", records["Request completed"]["request_id"])
	assert.Equal(t, float64(http.StatusInternalServerError), records["Request completed"]["status"])

	count, err := testutil.GatherAndCount(reg, "fxresolver_http_requests_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}
