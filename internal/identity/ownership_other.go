//go:build !unix

package identity

import (
	"fmt"

	"github.com/bft-labs/keel/internal/domain"
)

// ChownTree is only supported on unix.
func ChownTree(root string, id domain.Identity) (int, error) {
	return 0, fmt.Errorf("%w: ownership changes are not supported on this platform", domain.ErrOwnership)
}

// VerifyTree is only supported on unix.
func VerifyTree(root string, id domain.Identity) error {
	return fmt.Errorf("%w: ownership checks are not supported on this platform", domain.ErrOwnership)
}
