package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestAccessLogLevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
		msg    string
	}{
		{status: http.StatusOK, level: zapcore.InfoLevel, msg: "request completed"},
		{status: http.StatusBadRequest, level: zapcore.WarnLevel, msg: "request rejected"},
		{status: http.StatusInternalServerError, level: zapcore.ErrorLevel, msg: "request failed"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			handler := withAccessLog(zap.New(core), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/check/db", nil))

			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}
			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("expected one access log entry, got %d", len(entries))
			}
			if entries[0].Level != tt.level || entries[0].Message != tt.msg {
				t.Fatalf("unexpected entry %s %q", entries[0].Level, entries[0].Message)
			}
		})
	}
}

func TestRecoveryReturnsServerError(t *testing.T) {
	handler := withRecovery(zaptest.NewLogger(t), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rec.Code)
	}
}

func TestStatusWriterRecordsStatus(t *testing.T) {
	underlying := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: underlying}
	sw.WriteHeader(http.StatusConflict)

	if sw.status != http.StatusConflict || underlying.Code != http.StatusConflict {
		t.Fatalf("expected status to be recorded and forwarded, got %d/%d", sw.status, underlying.Code)
	}
}

func TestRequestIDGeneratesUUID(t *testing.T) {
	router := newTestRouter(t, WithLogging(false))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	id := rec.Header().Get(requestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected generated request id to be a UUID, got %q", id)
	}
}

func TestRequestIDKeepsClientID(t *testing.T) {
	router := newTestRouter(t, WithLogging(false))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "deploy-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "deploy-42" {
		t.Fatalf("expected client request id to be echoed, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, WithLogging(false))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/config/node", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS headers on preflight")
	}
}

func newTestRouter(t *testing.T, opts ...RouterOption) http.Handler {
	t.Helper()
	return newTestRouterFor(t, &fakeManager{config: map[string]string{}}, opts...)
}

func newTestRouterFor(t *testing.T, mgr *fakeManager, opts ...RouterOption) http.Handler {
	t.Helper()
	return NewRouter(NewHandler(mgr), zaptest.NewLogger(t), opts...)
}
