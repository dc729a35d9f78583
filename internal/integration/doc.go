// Package integration defines the plugin descriptors registered by a site
// declaration. The configuration resolver treats every Integration as an
// opaque value; optional capabilities such as ServerHook are discovered by the
// dev-server bootstrap through type assertions and run in registration order.
package integration
