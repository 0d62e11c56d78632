// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports). The orchestrator holds references to these
// interfaces only, never to concrete implementations, so providers can
// be swapped between mock, local and remote purely by injection.
package driven
