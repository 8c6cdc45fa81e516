// Package pagefile derives page file paths from ordinals and performs
// whole-page write/read I/O under a durability contract: writes go to a
// sibling temporary path and are atomically renamed over the target,
// never partially overwriting a page in place.
package pagefile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Capacity is the fixed number of records per page. It must not vary
// across the lifetime of a table.
const Capacity = 500_000

// Path returns the page file path for the page containing ordinal pos,
// under table directory dir.
func Path(dir string, pos int) string {
	page := pos / Capacity
	return filepath.Join(dir, fmt.Sprintf("page_%03d.bin", page))
}

// PathForPage returns the page file path for page number page (not an
// ordinal), under table directory dir.
func PathForPage(dir string, page int) string {
	return filepath.Join(dir, fmt.Sprintf("page_%03d.bin", page))
}

// Write durably replaces the contents of path with data: it writes to a
// sibling temporary file (named with a random UUID suffix so concurrent
// writers, even across processes, can never collide on the temp name)
// and renames it over path. If a step fails, the temp file is removed and
// the target is not touched; only a crash before the rename leaves a temp
// file behind. Either way the target is never partially overwritten.
func Write(path string, data []byte) error {
	tmp := path + ".tmp-" + uuid.NewString()
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("pagefile: create temp for %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("pagefile: write temp for %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("pagefile: sync temp for %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("pagefile: close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("pagefile: rename temp for %s: %w", path, err)
	}
	return nil
}

// Read loads the whole contents of path, for the mutation path (update,
// the tail-page read before append) which needs an owned copy rather
// than a read-only mapping.
func Read(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pagefile: read %s: %w", path, err)
	}
	return b, nil
}

// Exists reports whether path names a regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
