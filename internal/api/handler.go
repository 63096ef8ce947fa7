package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/weidtools/weid-config/internal/manager"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// ConfigManager is the set of configuration operations exposed over HTTP.
type ConfigManager interface {
	LoadConfig() map[string]string
	UpdateNodeConfig(settings manager.NodeSettings) bool
	UpdateChainID(chainID string) bool
	SetMasterGroupID(groupID string) bool
	UpdateDBConfig(settings manager.DBSettings) bool
	EnableHash(ctx context.Context, hash string) bool
	PropertiesExist() bool
	CheckDB(ctx context.Context) bool
	CheckRedis(ctx context.Context) bool
	ToZip(src, dst string) bool
}

// Handler wires the configuration manager into HTTP handlers.
type Handler struct {
	manager ConfigManager

	clock func() time.Time

	mu        sync.RWMutex
	updatedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(mgr ConfigManager, opts ...HandlerOption) *Handler {
	h := &Handler{
		manager: mgr,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.updatedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := configResponse{
		Config:    h.manager.LoadConfig(),
		UpdatedAt: h.currentUpdatedAt(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePutNode(w http.ResponseWriter, r *http.Request) {
	var req manager.NodeSettings
	if !decode(w, r, &req) {
		return
	}
	h.writeMutation(w, h.manager.UpdateNodeConfig(req))
}

func (h *Handler) handlePutChainID(w http.ResponseWriter, r *http.Request) {
	var req chainIDRequest
	if !decode(w, r, &req) {
		return
	}
	h.writeMutation(w, h.manager.UpdateChainID(req.ChainID))
}

func (h *Handler) handlePutGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !decode(w, r, &req) {
		return
	}
	h.writeMutation(w, h.manager.SetMasterGroupID(req.GroupID))
}

func (h *Handler) handlePutDB(w http.ResponseWriter, r *http.Request) {
	var req manager.DBSettings
	if !decode(w, r, &req) {
		return
	}
	h.writeMutation(w, h.manager.UpdateDBConfig(req))
}

func (h *Handler) handlePutCNS(w http.ResponseWriter, r *http.Request) {
	var req cnsRequest
	if !decode(w, r, &req) {
		return
	}
	h.writeMutation(w, h.manager.EnableHash(r.Context(), req.Hash))
}

func (h *Handler) handlePropertiesExist(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, resultResponse{Success: h.manager.PropertiesExist()})
}

func (h *Handler) handleCheckDB(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, resultResponse{Success: h.manager.CheckDB(r.Context())})
}

func (h *Handler) handleCheckRedis(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, resultResponse{Success: h.manager.CheckRedis(r.Context())})
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Source) == "" || strings.TrimSpace(req.Target) == "" {
		writeError(w, http.StatusBadRequest, "Invalid request", "src and dst are required")
		return
	}
	if !h.manager.ToZip(req.Source, req.Target) {
		writeJSON(w, http.StatusInternalServerError, resultResponse{Success: false})
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Success: true})
}

func (h *Handler) writeMutation(w http.ResponseWriter, ok bool) {
	if !ok {
		writeJSON(w, http.StatusInternalServerError, resultResponse{Success: false})
		return
	}
	h.markUpdated()
	writeJSON(w, http.StatusOK, resultResponse{Success: true, UpdatedAt: h.currentUpdatedAt()})
}

func (h *Handler) currentUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.updatedAt
}

func (h *Handler) markUpdated() {
	h.mu.Lock()
	h.updatedAt = h.clock()
	h.mu.Unlock()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type chainIDRequest struct {
	ChainID string `json:"chainId"`
}

type groupRequest struct {
	GroupID string `json:"groupId"`
}

type cnsRequest struct {
	Hash string `json:"hash"`
}

type archiveRequest struct {
	Source string `json:"src"`
	Target string `json:"dst"`
}

type configResponse struct {
	Config    map[string]string `json:"config"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type resultResponse struct {
	Success   bool      `json:"success"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{
		Error:   message,
		Details: details,
	})
}
