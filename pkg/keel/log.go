package keel

import (
	"github.com/rs/zerolog"

	logAdapter "github.com/bft-labs/keel/internal/adapters/log"
)

// NewZerologLogger adapts a zerolog logger for use with WithLogger.
func NewZerologLogger(logger zerolog.Logger) Logger {
	return logAdapter.NewZerologAdapterWithLogger(logger)
}
