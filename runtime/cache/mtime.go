package cache

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"time"
)

// LatestMTime walks dir and returns the most recent modification time
// across every regular file, formatted as the cache version fallback
// string for Action.Version() == nil (§3.3, §6.3, §9 open question:
// "Action-level cross-run caching when version is null relies on a
// latest-project-file-mtime scan").
func LatestMTime(dir string) (string, error) {
	var latest time.Time
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("cache: scan %s for latest mtime: %w", dir, err)
	}
	return fmt.Sprintf("t%d", latest.UnixNano()), nil
}
