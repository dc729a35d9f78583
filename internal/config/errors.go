package config

import "errors"

var (
	// ErrInvalidPort is returned when server.port is not an integer in [1, 65535].
	ErrInvalidPort = errors.New("server.port must be an integer between 1 and 65535")
	// ErrMalformedIntegrations is returned when integrations is not a sequence of
	// non-null integration descriptors.
	ErrMalformedIntegrations = errors.New("integrations must be a sequence of integration descriptors")
)
