package ports

import "context"

// CommandRunner runs a one-shot command to completion.
type CommandRunner interface {
	// Run executes name with args in dir and returns its error, if any.
	// A non-zero exit status is an error.
	Run(ctx context.Context, dir string, name string, args ...string) error
}
