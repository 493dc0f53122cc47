package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bft-labs/keel/internal/domain"
	"github.com/bft-labs/keel/internal/ports"
)

const statusFileName = "status.json"

// StatusFileRepository implements ports.StatusRepository using a JSON file.
type StatusFileRepository struct {
	dir string
}

// NewStatusFileRepository creates a new StatusFileRepository for the given directory.
func NewStatusFileRepository(dir string) *StatusFileRepository {
	return &StatusFileRepository{dir: dir}
}

// Load retrieves the last saved status from disk.
// Returns an empty status and nil error if no status file exists.
func (r *StatusFileRepository) Load(ctx context.Context) (domain.Status, error) {
	data, err := os.ReadFile(r.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Status{}, nil
		}
		return domain.Status{}, err
	}

	var status domain.Status
	if err := json.Unmarshal(data, &status); err != nil {
		return domain.Status{}, err
	}

	return status, nil
}

// Save persists the status atomically.
// Uses atomic write (write to temp file, then rename) so readers never see a torn file.
func (r *StatusFileRepository) Save(ctx context.Context, status domain.Status) error {
	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}

	return WriteFileAtomic(r.Path(), data, 0o640)
}

// Path returns the full path to the status file.
func (r *StatusFileRepository) Path() string {
	return filepath.Join(r.dir, statusFileName)
}

// WriteFileAtomic writes data to a sibling temp file and renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

var _ ports.StatusRepository = (*StatusFileRepository)(nil)
