package filesystem

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mzeroual/forge/internal/engine"
)

// WriteFile creates or overwrites a file. It backs both the createFile
// and editFile actions; parent directories are created as needed.
type WriteFile struct {
	fs       FileSystem
	repoRoot string
}

// NewWriteFile returns the write capability rooted at repoRoot.
func NewWriteFile(repoRoot string) *WriteFile {
	return &WriteFile{fs: NewOSFileSystem(), repoRoot: repoRoot}
}

func (w *WriteFile) Execute(ctx context.Context, path, content string) (engine.CapabilityResult, error) {
	abs, err := resolve(w.repoRoot, path)
	if err != nil {
		return engine.CapabilityResult{}, err
	}

	if err := w.fs.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return engine.CapabilityResult{}, fmt.Errorf("failed to create directory: %w", err)
	}

	if err := w.fs.WriteFile(abs, []byte(content), 0644); err != nil {
		return engine.CapabilityResult{}, fmt.Errorf("failed to write file: %w", err)
	}

	return engine.CapabilityResult{Success: true}, nil
}
