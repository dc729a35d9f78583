package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/eugenenazirov/sitedev/internal/config"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Handler exposes the resolved site configuration over HTTP.
type Handler struct {
	site    config.ResolvedConfig
	address func() string

	clock     func() time.Time
	startedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithAddress reports the address the dev server actually bound, which may
// differ from the preferred port after a fallback.
func WithAddress(address func() string) HandlerOption {
	return func(h *Handler) {
		h.address = address
	}
}

// NewHandler constructs a Handler for the resolved site configuration.
func NewHandler(site config.ResolvedConfig, opts ...HandlerOption) *Handler {
	h := &Handler{
		site: site,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.address == nil {
		h.address = site.Address
	}
	h.startedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	now := h.clock()
	resp := healthResponse{
		Status:    "ok",
		Timestamp: now,
		Uptime:    now.Sub(h.startedAt).String(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, NewConfigResponse(h.site, h.address()))
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// ConfigResponse is the JSON view of a resolved configuration.
type ConfigResponse struct {
	Port         int      `json:"port"`
	Host         string   `json:"host"`
	PublicDir    string   `json:"publicDir"`
	Integrations []string `json:"integrations"`
	Address      string   `json:"address,omitempty"`
}

// NewConfigResponse renders site; address is the bound address, if known.
func NewConfigResponse(site config.ResolvedConfig, address string) ConfigResponse {
	return ConfigResponse{
		Port:         site.Port(),
		Host:         site.Host(),
		PublicDir:    site.PublicDir(),
		Integrations: site.IntegrationNames(),
		Address:      address,
	}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
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
