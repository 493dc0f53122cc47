//go:build !linux

package identity

import (
	"errors"

	"github.com/bft-labs/keel/internal/domain"
)

// Drop is only supported on linux.
func Drop(id domain.Identity) error {
	if err := id.Validate(); err != nil {
		return err
	}
	return errors.New("identity: privilege drop is only supported on linux")
}
