// Package identity resolves, creates and enforces the unprivileged identity
// the service runs as.
//
// The identity is a system account with no login shell and no password.
// Ownership of the application and data trees is reassigned to it at every
// provisioning step, and a root caller drops to it before anything
// network-facing runs.
package identity
