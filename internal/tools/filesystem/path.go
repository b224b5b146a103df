package filesystem

import (
	"fmt"
	"path/filepath"
	"strings"
)

// resolve joins a project-relative path onto the repo root and rejects
// anything that escapes it.
func resolve(repoRoot, relPath string) (string, error) {
	if strings.TrimSpace(relPath) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	abs := filepath.Clean(filepath.Join(repoRoot, relPath))
	root := filepath.Clean(repoRoot)
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside repository root", relPath)
	}
	return abs, nil
}
