// Package application wires a resolved configuration into a running dev server.
// It runs integration server hooks in declaration order, builds the HTTP
// router, binds the preferred port (falling back to the following ports when
// it is taken) and optionally watches the declaration file.
package application
