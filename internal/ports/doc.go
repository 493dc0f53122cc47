// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// In Clean Architecture / Hexagonal Architecture, ports are the boundaries
// between the application core and the outside world. They define what the
// application needs from external systems without specifying how those needs
// are fulfilled.
//
// # Port Interfaces
//
//   - [Logger]: Structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//   - [Prober]: A single liveness attempt against the service
//   - [HealthPolicy]: Decides whether a liveness response counts as success
//   - [ServiceFactory] / [Service]: Launches and stops the supervised service
//   - [StatusRepository]: Persists the supervisor status snapshot
//   - [CommandRunner]: Runs one-shot commands (installer, useradd)
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement these interfaces
// with concrete implementations (exec, HTTP, zerolog, file system, etc.).
//
// This separation enables:
//   - Testing lifecycle and health logic with stub services and fake transports
//   - Swapping the excluded application without touching the supervisor
//   - Clear boundaries and dependency direction
package ports
