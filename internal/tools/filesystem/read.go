package filesystem

import (
	"context"
	"fmt"
	"os"

	"github.com/mzeroual/forge/internal/engine"
)

// DefaultMaxReadBytes bounds a single read so one oversized file cannot
// blow the context budget in a single action.
const DefaultMaxReadBytes = 256 * 1024

// ReadFile captures a file's content for the gathering phase.
type ReadFile struct {
	fs       FileSystem
	repoRoot string
	maxBytes int64
}

// NewReadFile returns the read capability rooted at repoRoot.
func NewReadFile(repoRoot string) *ReadFile {
	return &ReadFile{fs: NewOSFileSystem(), repoRoot: repoRoot, maxBytes: DefaultMaxReadBytes}
}

func (r *ReadFile) Execute(ctx context.Context, path, _ string) (engine.CapabilityResult, error) {
	abs, err := resolve(r.repoRoot, path)
	if err != nil {
		return engine.CapabilityResult{}, err
	}

	info, err := r.fs.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return engine.CapabilityResult{}, fmt.Errorf("file not found: %s", path)
		}
		return engine.CapabilityResult{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return engine.CapabilityResult{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > r.maxBytes {
		return engine.CapabilityResult{}, fmt.Errorf("file %s too large to read (%d bytes)", path, info.Size())
	}

	data, err := r.fs.ReadFile(abs)
	if err != nil {
		return engine.CapabilityResult{}, fmt.Errorf("failed to read file: %w", err)
	}

	return engine.CapabilityResult{Success: true, Content: string(data)}, nil
}
