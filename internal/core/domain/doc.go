// Package domain defines the core business entities for Mailsleuth.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Run: One end-to-end question-answering session
//   - Message: A fetched evidence item
//   - Chunk: A token-bounded ranking unit within a message
//   - Bullet: A cited claim with a traceable citation tuple
//   - Event: An ordered progress notification
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
