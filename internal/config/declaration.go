package config

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/sitedev/internal/integration"
)

// document is the on-disk shape of a declaration file. Port and integrations
// stay raw so their types can be checked instead of coerced.
type document struct {
	Server struct {
		Port yaml.Node `yaml:"port"`
		Host *string   `yaml:"host"`
	} `yaml:"server"`
	PublicDir    *string    `yaml:"public_dir"`
	Integrations yaml.Node  `yaml:"integrations"`
	Dev          devSection `yaml:"dev"`
}

// devSection holds dev-server runtime settings. They never reach ResolvedConfig.
type devSection struct {
	ShutdownGracePeriod  string       `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string       `yaml:"read_header_timeout"`
	WriteTimeout         string       `yaml:"write_timeout"`
	IdleTimeout          string       `yaml:"idle_timeout"`
	EnableRequestLogging *bool        `yaml:"enable_request_logging"`
	PortAttempts         *int         `yaml:"port_attempts"`
	RateLimit            devRateLimit `yaml:"rate_limit"`
}

type devRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

type descriptor struct {
	Name    string         `yaml:"name"`
	Options map[string]any `yaml:"options"`
}

var (
	errNullDescriptor = errors.New("descriptor is null")
	errDescriptorName = errors.New("descriptor name is required")
)

// ParseDeclaration decodes a YAML or JSON declaration. Integration entries are
// built through registry; a nil registry means the built-in integrations only.
func ParseDeclaration(data []byte, registry *integration.Registry) (Declaration, error) {
	decl, _, err := parseDocument(data, registry)
	return decl, err
}

func parseDocument(data []byte, registry *integration.Registry) (Declaration, devSection, error) {
	if registry == nil {
		registry = integration.NewRegistry()
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Declaration{}, devSection{}, fmt.Errorf("parse declaration: %w", err)
	}

	port, err := decodePort(&doc.Server.Port)
	if err != nil {
		return Declaration{}, devSection{}, err
	}

	integrations, err := decodeIntegrations(&doc.Integrations, registry)
	if err != nil {
		return Declaration{}, devSection{}, err
	}

	decl := Declaration{
		Server: ServerDeclaration{
			Port: port,
			Host: doc.Server.Host,
		},
		PublicDir:    doc.PublicDir,
		Integrations: integrations,
	}
	return decl, doc.Dev, nil
}

func decodePort(node *yaml.Node) (*int, error) {
	node = resolveAlias(node)
	if isAbsent(node) {
		return nil, nil
	}
	if node.Kind != yaml.ScalarNode || node.ShortTag() != "!!int" {
		return nil, fmt.Errorf("%w: got %s at line %d", ErrInvalidPort, describe(node), node.Line)
	}

	var port int
	if err := node.Decode(&port); err != nil {
		return nil, fmt.Errorf("%w: %q at line %d", ErrInvalidPort, node.Value, node.Line)
	}
	return &port, nil
}

func decodeIntegrations(node *yaml.Node, registry *integration.Registry) ([]integration.Integration, error) {
	node = resolveAlias(node)
	if isAbsent(node) {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: got %s at line %d", ErrMalformedIntegrations, describe(node), node.Line)
	}

	out := make([]integration.Integration, 0, len(node.Content))
	for idx, item := range node.Content {
		desc, err := decodeDescriptor(item)
		if err != nil {
			return nil, fmt.Errorf("%w: integrations[%d] at line %d: %w", ErrMalformedIntegrations, idx, item.Line, err)
		}
		built, err := registry.Build(desc.Name, desc.Options)
		if err != nil {
			return nil, fmt.Errorf("%w: integrations[%d] at line %d: %w", ErrMalformedIntegrations, idx, item.Line, err)
		}
		out = append(out, built)
	}
	return out, nil
}

// decodeDescriptor accepts either a bare name or a {name, options} mapping.
func decodeDescriptor(node *yaml.Node) (descriptor, error) {
	node = resolveAlias(node)
	switch node.Kind {
	case yaml.ScalarNode:
		if isNull(node) {
			return descriptor{}, errNullDescriptor
		}
		if node.ShortTag() != "!!str" || strings.TrimSpace(node.Value) == "" {
			return descriptor{}, fmt.Errorf("expected a name or mapping, got %s", describe(node))
		}
		return descriptor{Name: strings.TrimSpace(node.Value)}, nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			switch key := node.Content[i].Value; key {
			case "name", "options":
			default:
				return descriptor{}, fmt.Errorf("unknown descriptor key %q", key)
			}
		}
		var desc descriptor
		if err := node.Decode(&desc); err != nil {
			return descriptor{}, err
		}
		if strings.TrimSpace(desc.Name) == "" {
			return descriptor{}, errDescriptorName
		}
		return desc, nil
	default:
		return descriptor{}, fmt.Errorf("expected a name or mapping, got %s", describe(node))
	}
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

func isAbsent(node *yaml.Node) bool {
	return node == nil || node.Kind == 0 || isNull(node)
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null"
}

func describe(node *yaml.Node) string {
	switch node.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return fmt.Sprintf("%s %q", node.ShortTag(), node.Value)
	default:
		return "unsupported node"
	}
}
