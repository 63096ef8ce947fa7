package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultRateLimitRPS   = 25
	defaultRateLimitBurst = 50

	requestIDHeader = "X-Request-ID"
)

// RouterOption configures the behaviour of NewRouter.
type RouterOption func(*routerConfig)

// WithLogging controls whether access logs are emitted.
func WithLogging(enabled bool) RouterOption {
	return func(cfg *routerConfig) {
		cfg.enableLogging = enabled
	}
}

// WithRateLimit sizes the bucket shared by the guarded routes. A
// non-positive rps removes the guard.
func WithRateLimit(rps float64, burst int) RouterOption {
	return func(cfg *routerConfig) {
		if rps <= 0 {
			cfg.limiter = nil
			return
		}
		cfg.limiter = newBucket(rps, burst)
	}
}

// WithRateLimiter replaces the guard's limiter (primarily for tests).
func WithRateLimiter(limiter admitter) RouterOption {
	return func(cfg *routerConfig) {
		cfg.limiter = limiter
	}
}

type routerConfig struct {
	enableLogging bool
	limiter       admitter
}

// route binds a pattern to a handler. Guarded routes reach MySQL or Redis,
// rewrite files or write archives; they share the rate limit.
type route struct {
	pattern string
	handle  http.HandlerFunc
	guarded bool
}

func (h *Handler) routes() []route {
	return []route{
		{pattern: "GET /api/health", handle: h.handleHealth},
		{pattern: "GET /api/config", handle: h.handleGetConfig},
		{pattern: "GET /api/properties/exists", handle: h.handlePropertiesExist},
		{pattern: "PUT /api/config/node", handle: h.handlePutNode, guarded: true},
		{pattern: "PUT /api/config/chain-id", handle: h.handlePutChainID, guarded: true},
		{pattern: "PUT /api/config/group", handle: h.handlePutGroup, guarded: true},
		{pattern: "PUT /api/config/db", handle: h.handlePutDB, guarded: true},
		{pattern: "PUT /api/config/cns", handle: h.handlePutCNS, guarded: true},
		{pattern: "GET /api/check/db", handle: h.handleCheckDB, guarded: true},
		{pattern: "GET /api/check/redis", handle: h.handleCheckRedis, guarded: true},
		{pattern: "POST /api/archive", handle: h.handleArchive, guarded: true},
	}
}

// NewRouter creates the API router. Every request gets a request id, CORS
// headers and panic recovery; guarded routes are additionally rate limited.
func NewRouter(handler *Handler, logger *zap.Logger, opts ...RouterOption) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := routerConfig{
		enableLogging: true,
		limiter:       newBucket(defaultRateLimitRPS, defaultRateLimitBurst),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	mux := http.NewServeMux()
	for _, rt := range handler.routes() {
		if rt.guarded {
			mux.Handle(rt.pattern, guard(cfg.limiter, logger, rt.handle))
			continue
		}
		mux.Handle(rt.pattern, rt.handle)
	}

	var root http.Handler = withCORS(mux)
	root = withRecovery(logger, root)
	if cfg.enableLogging {
		root = withAccessLog(logger, root)
	}
	return withRequestID(root)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type,"+requestIDHeader)
		h.Set("Access-Control-Expose-Headers", requestIDHeader+",Retry-After")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAccessLog logs one line per request: info for success, warn for
// client errors and error for server errors.
func withAccessLog(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
			zap.String("request_id", requestIDFromContext(r.Context())),
		}
		switch {
		case sw.status >= http.StatusInternalServerError:
			logger.Error("request failed", fields...)
		case sw.status >= http.StatusBadRequest:
			logger.Warn("request rejected", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	})
}

func withRecovery(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered",
					zap.Any("error", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestIDFromContext(r.Context())),
				)
				writeError(w, http.StatusInternalServerError, "Internal error", "unexpected server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withRequestID reuses a client supplied X-Request-ID or assigns a UUID.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(contextWithRequestID(r.Context(), id)))
	})
}

func contextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}
