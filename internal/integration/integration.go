package integration

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// ReservedPrefix is the URL prefix owned by the dev server itself.
const ReservedPrefix = "/_site/"

var (
	// ErrInvalidContentType is returned when a hook registers an empty extension or MIME type.
	ErrInvalidContentType = errors.New("content type registration requires an extension starting with '.' and a MIME type")
	// ErrInvalidRoute is returned when a hook registers a route the dev server cannot mount.
	ErrInvalidRoute = errors.New("route pattern must start with '/' and stay outside " + ReservedPrefix)
)

// Integration is an opaque unit registered to extend the build/serve pipeline.
type Integration interface {
	Name() string
}

// ServerHook is implemented by integrations that customise the dev server.
type ServerHook interface {
	Integration
	ConfigureServer(setup *ServerSetup) error
}

// Factory produces an Integration from the options written in a declaration.
type Factory func(options map[string]any) (Integration, error)

// Route is an extra handler contributed by an integration.
type Route struct {
	Pattern string
	Handler http.Handler
}

// ServerSetup collects what integrations contribute to the dev server.
type ServerSetup struct {
	Logger *zap.Logger

	contentTypes map[string]string
	routes       []Route
}

// NewServerSetup returns an empty setup bound to logger.
func NewServerSetup(logger *zap.Logger) *ServerSetup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServerSetup{
		Logger:       logger,
		contentTypes: make(map[string]string),
	}
}

// AddContentType maps a file extension to the Content-Type served for it.
// Later registrations for the same extension win.
func (s *ServerSetup) AddContentType(ext, mimeType string) error {
	ext = strings.ToLower(strings.TrimSpace(ext))
	mimeType = strings.TrimSpace(mimeType)
	if len(ext) < 2 || ext[0] != '.' || mimeType == "" {
		return ErrInvalidContentType
	}
	s.contentTypes[ext] = mimeType
	return nil
}

// Handle registers an additional handler on the dev server.
func (s *ServerSetup) Handle(pattern string, handler http.Handler) error {
	path := pattern
	if method, rest, ok := strings.Cut(pattern, " "); ok && method != "" {
		path = strings.TrimSpace(rest)
	}
	if handler == nil || !strings.HasPrefix(path, "/") || strings.HasPrefix(path, ReservedPrefix) {
		return ErrInvalidRoute
	}
	s.routes = append(s.routes, Route{Pattern: pattern, Handler: handler})
	return nil
}

// ContentTypes returns a copy of the registered extension mappings.
func (s *ServerSetup) ContentTypes() map[string]string {
	out := make(map[string]string, len(s.contentTypes))
	for ext, mimeType := range s.contentTypes {
		out[ext] = mimeType
	}
	return out
}

// Routes returns the registered routes in registration order.
func (s *ServerSetup) Routes() []Route {
	out := make([]Route, len(s.routes))
	copy(out, s.routes)
	return out
}

// ConfigureServer runs the server hooks of integrations in order. Integrations
// without a ServerHook are skipped. The first failing hook aborts the run.
func ConfigureServer(setup *ServerSetup, integrations []Integration) error {
	for idx, item := range integrations {
		hook, ok := item.(ServerHook)
		if !ok {
			continue
		}
		setup.Logger.Debug("configuring integration", zap.String("integration", hook.Name()), zap.Int("position", idx))
		if err := hook.ConfigureServer(setup); err != nil {
			return fmt.Errorf("integration %q (#%d): %w", hook.Name(), idx, err)
		}
	}
	return nil
}
