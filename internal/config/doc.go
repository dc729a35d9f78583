// Package config turns a site declaration into an immutable ResolvedConfig.
//
// Resolve is the pure core: it validates the server port, applies defaults and
// keeps integrations in declaration order. Load layers the declaration file,
// environment variables and CLI flags (CLI flags > environment > file >
// defaults) on top of it and adds the runtime settings of the dev server.
// Watch reports edits to the declaration file.
package config
