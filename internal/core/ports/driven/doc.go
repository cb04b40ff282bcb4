// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports).
//
// Services depend on these interfaces, never on concrete adapters. The
// external collaborators of the index live here: the change feed, the
// text extractor, the directory used for group expansion, the embedding
// service, and the persistence stores.
package driven
