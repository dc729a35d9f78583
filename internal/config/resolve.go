package config

import (
	"fmt"
	"net"
	"reflect"
	"strconv"
	"strings"

	"github.com/eugenenazirov/sitedev/internal/integration"
)

const (
	// DefaultPort is the dev-server port used when the declaration sets none.
	DefaultPort = 4321
	// DefaultHost is the interface the dev server binds when the declaration sets none.
	DefaultHost = "localhost"
	// DefaultPublicDir holds the static files served as-is.
	DefaultPublicDir = "public"

	MinPort = 1
	MaxPort = 65535
)

// ServerDeclaration is the server section of a declaration. Nil fields are absent.
type ServerDeclaration struct {
	Port *int
	Host *string
}

// Declaration is the user-authored configuration before validation.
// A nil Integrations slice means the key was absent.
type Declaration struct {
	Server       ServerDeclaration
	PublicDir    *string
	Integrations []integration.Integration
}

// ResolvedConfig is the validated, defaulted and immutable result of Resolve.
type ResolvedConfig struct {
	port         int
	host         string
	publicDir    string
	integrations []integration.Integration
}

// Resolve validates decl and applies defaults. It either returns a complete
// ResolvedConfig or an error wrapping ErrInvalidPort or ErrMalformedIntegrations.
func Resolve(decl Declaration) (ResolvedConfig, error) {
	port := DefaultPort
	if decl.Server.Port != nil {
		if err := validatePort(*decl.Server.Port); err != nil {
			return ResolvedConfig{}, err
		}
		port = *decl.Server.Port
	}

	host := DefaultHost
	if decl.Server.Host != nil {
		host = strings.TrimSpace(*decl.Server.Host)
	}

	publicDir := DefaultPublicDir
	if decl.PublicDir != nil && strings.TrimSpace(*decl.PublicDir) != "" {
		publicDir = strings.TrimSpace(*decl.PublicDir)
	}

	integrations := make([]integration.Integration, 0, len(decl.Integrations))
	for idx, item := range decl.Integrations {
		if isNil(item) {
			return ResolvedConfig{}, fmt.Errorf("%w: integrations[%d] is null", ErrMalformedIntegrations, idx)
		}
		integrations = append(integrations, item)
	}

	return ResolvedConfig{
		port:         port,
		host:         host,
		publicDir:    publicDir,
		integrations: integrations,
	}, nil
}

// Port returns the preferred dev-server port.
func (c ResolvedConfig) Port() int {
	return c.port
}

// Host returns the interface to bind. An empty host means all interfaces.
func (c ResolvedConfig) Host() string {
	return c.host
}

// PublicDir returns the static directory as declared, relative to the project root.
func (c ResolvedConfig) PublicDir() string {
	return c.publicDir
}

// Address joins host and port.
func (c ResolvedConfig) Address() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Integrations returns a copy of the integrations in declaration order.
func (c ResolvedConfig) Integrations() []integration.Integration {
	out := make([]integration.Integration, len(c.integrations))
	copy(out, c.integrations)
	return out
}

// IntegrationNames lists Name() of every integration in declaration order.
func (c ResolvedConfig) IntegrationNames() []string {
	names := make([]string, 0, len(c.integrations))
	for _, item := range c.integrations {
		names = append(names, item.Name())
	}
	return names
}

func validatePort(port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, port)
	}
	return nil
}

func isNil(item integration.Integration) bool {
	if item == nil {
		return true
	}
	v := reflect.ValueOf(item)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
