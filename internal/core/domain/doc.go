// Package domain defines the core business entities for the Sercha index daemon.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Source: A registered remote corpus with its sync cursor
//   - Document: One remote file tracked by the index
//   - Chunk: An embedded text span of a document
//   - AccessGrant: A raw permission entry on a document
//   - AccessEntry: A materialised "principal may see file" fact
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
