package filesystem

import (
	"context"
	"fmt"
	"os"

	"github.com/mzeroual/forge/internal/engine"
)

// DeleteFile removes a single file. Deleting a path that is already gone
// succeeds; deleting a directory through it does not.
type DeleteFile struct {
	fs       FileSystem
	repoRoot string
}

// NewDeleteFile returns the delete capability rooted at repoRoot.
func NewDeleteFile(repoRoot string) *DeleteFile {
	return &DeleteFile{fs: NewOSFileSystem(), repoRoot: repoRoot}
}

func (d *DeleteFile) Execute(ctx context.Context, path, _ string) (engine.CapabilityResult, error) {
	abs, err := resolve(d.repoRoot, path)
	if err != nil {
		return engine.CapabilityResult{}, err
	}

	info, err := d.fs.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return engine.CapabilityResult{Success: true}, nil
		}
		return engine.CapabilityResult{}, fmt.Errorf("failed to check file: %w", err)
	}
	if info.IsDir() {
		return engine.CapabilityResult{}, fmt.Errorf("cannot delete directory %s as a file", path)
	}

	if err := d.fs.Remove(abs); err != nil {
		return engine.CapabilityResult{}, fmt.Errorf("failed to delete file: %w", err)
	}
	return engine.CapabilityResult{Success: true}, nil
}

// RemoveDirectory deletes a directory and its contents.
type RemoveDirectory struct {
	fs       FileSystem
	repoRoot string
}

// NewRemoveDirectory returns the directory-removal capability.
func NewRemoveDirectory(repoRoot string) *RemoveDirectory {
	return &RemoveDirectory{fs: NewOSFileSystem(), repoRoot: repoRoot}
}

func (r *RemoveDirectory) Execute(ctx context.Context, path, _ string) (engine.CapabilityResult, error) {
	abs, err := resolve(r.repoRoot, path)
	if err != nil {
		return engine.CapabilityResult{}, err
	}

	info, err := r.fs.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return engine.CapabilityResult{Success: true}, nil
		}
		return engine.CapabilityResult{}, fmt.Errorf("failed to check directory: %w", err)
	}
	if !info.IsDir() {
		return engine.CapabilityResult{}, fmt.Errorf("%s is not a directory", path)
	}

	if err := r.fs.RemoveAll(abs); err != nil {
		return engine.CapabilityResult{}, fmt.Errorf("failed to remove directory: %w", err)
	}
	return engine.CapabilityResult{Success: true}, nil
}

// CreateDirectory makes a directory, parents included.
type CreateDirectory struct {
	fs       FileSystem
	repoRoot string
}

// NewCreateDirectory returns the directory-creation capability.
func NewCreateDirectory(repoRoot string) *CreateDirectory {
	return &CreateDirectory{fs: NewOSFileSystem(), repoRoot: repoRoot}
}

func (c *CreateDirectory) Execute(ctx context.Context, path, _ string) (engine.CapabilityResult, error) {
	abs, err := resolve(c.repoRoot, path)
	if err != nil {
		return engine.CapabilityResult{}, err
	}
	if err := c.fs.MkdirAll(abs, 0755); err != nil {
		return engine.CapabilityResult{}, fmt.Errorf("failed to create directory: %w", err)
	}
	return engine.CapabilityResult{Success: true}, nil
}
