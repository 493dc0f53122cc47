package installer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	fsadapter "github.com/bft-labs/keel/internal/adapters/fs"
)

// StampFileName is the name of the stamp file in the cache directory.
const StampFileName = "install.stamp"

// Stamp records the last successful install.
type Stamp struct {
	Digest      string    `json:"digest"`
	Command     []string  `json:"command"`
	Manifests   []string  `json:"manifests"`
	InstalledAt time.Time `json:"installed_at"`
}

// Matches reports whether the stamp covers digest installed with command.
func (s Stamp) Matches(digest string, command []string) bool {
	if s.Digest != digest || len(s.Command) != len(command) {
		return false
	}
	for i := range command {
		if s.Command[i] != command[i] {
			return false
		}
	}
	return true
}

func loadStamp(dir string) (Stamp, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, StampFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Stamp{}, false, nil
		}
		return Stamp{}, false, fmt.Errorf("read stamp: %w", err)
	}

	var s Stamp
	if err := json.Unmarshal(data, &s); err != nil {
		// A damaged stamp only costs a reinstall.
		return Stamp{}, false, nil
	}
	return s, true, nil
}

func saveStamp(dir string, s Stamp) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode stamp: %w", err)
	}
	return fsadapter.WriteFileAtomic(filepath.Join(dir, StampFileName), data, 0o644)
}
