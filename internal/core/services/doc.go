// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services are pure Go with no CGO; the only external dependencies are
// concurrency and rate-limiting primitives.
package services
