package installer

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/zeebo/blake3"
)

// MatchManifests returns the sorted, de-duplicated regular files in fsys
// matching any of patterns.
func MatchManifests(fsys fs.FS, patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string

	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid manifest pattern %q", pattern)
		}
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			info, err := fs.Stat(fsys, m)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", m, err)
			}
			if !info.Mode().IsRegular() {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}

	sort.Strings(out)
	return out, nil
}

// Digest computes the BLAKE3 cache key over the given manifest paths and
// their contents. Each path and content is length-prefixed so that
// renaming content between files changes the key.
func Digest(fsys fs.FS, paths []string) (string, error) {
	h := blake3.New()

	var lenBuf [8]byte
	writeLen := func(n int64) {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(n))
		_, _ = h.Write(lenBuf[:])
	}

	for _, p := range paths {
		writeLen(int64(len(p)))
		_, _ = io.WriteString(h, p)

		f, err := fsys.Open(p)
		if err != nil {
			return "", fmt.Errorf("open %s: %w", p, err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
		writeLen(info.Size())
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("read %s: %w", p, err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
