// Package domain contains the core entities and value objects for keel.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (HTTP, file system, logging) and
// contains only pure rules.
//
// # Entities
//
//   - [Identity]: The unprivileged principal that owns the app tree and runs the service
//   - [HealthState]: Externally observed liveness of the service
//   - [Status]: Snapshot of the supervisor persisted for `keel status`
//
// # Design Principles
//
// Domain entities are:
//   - Free of infrastructure dependencies
//   - Focused on invariants (e.g. an identity is never an administrative principal)
//   - Testable without mocks or external systems
package domain
