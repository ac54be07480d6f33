// Package filex resolves the client's on-disk locations.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDataDir returns <base>/<name>, creating it with 0700 permissions.
// An empty base means the user's config directory.
func EnsureDataDir(base, name string) (string, error) {
	if base == "" {
		cfgDir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("user config dir: %w", err)
		}
		base = cfgDir
	}

	dir := filepath.Join(base, name)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}
