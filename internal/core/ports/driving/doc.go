// Package driving provides interfaces implemented by the core services
// (primary/inbound ports). Adapters such as the CLI depend on these
// contracts rather than on concrete service types.
package driving
