// Package driving provides interfaces for use-case entry points
// (primary/inbound ports). The CLI adapter talks to services exclusively
// through these interfaces.
package driving
