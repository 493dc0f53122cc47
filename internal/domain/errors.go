package domain

import "errors"

// Domain errors represent error conditions in the keel domain.
// These errors are returned wrapped and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Run() is called on a running supervisor.
	ErrAlreadyRunning = errors.New("keel: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped supervisor.
	ErrNotRunning = errors.New("keel: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("keel: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("keel: invalid configuration")

	// ErrManifestMissing is returned when no dependency manifest matches.
	ErrManifestMissing = errors.New("keel: dependency manifest missing")

	// ErrInstallFailed is returned when the dependency install command fails.
	ErrInstallFailed = errors.New("keel: dependency install failed")

	// ErrPrivilegedIdentity is returned when an identity resolves to uid 0 or gid 0.
	ErrPrivilegedIdentity = errors.New("keel: identity is an administrative principal")

	// ErrIdentityMissing is returned when the identity does not exist and cannot be created.
	ErrIdentityMissing = errors.New("keel: identity missing")

	// ErrOwnership is returned when a path is not owned by the identity.
	ErrOwnership = errors.New("keel: wrong ownership")

	// ErrProvisioning is returned when the data area cannot be provisioned.
	ErrProvisioning = errors.New("keel: provisioning failed")

	// ErrServiceExited is returned when the service process terminates on its own.
	ErrServiceExited = errors.New("keel: service exited")
)
