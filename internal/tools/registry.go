// Package tools assembles the capability map the executor dispatches to.
package tools

import (
	"fmt"
	"log"

	"github.com/mzeroual/forge/internal/engine"
	"github.com/mzeroual/forge/internal/tools/filesystem"
	"github.com/mzeroual/forge/internal/tools/search"
)

// NewCapabilityMap wires every action kind to its tool. skip filters
// project-relative paths out of the search index (excluded directories,
// binaries); it may be nil.
func NewCapabilityMap(repoRoot string, skip func(rel string) bool) (engine.CapabilityMap, *search.Index, error) {
	idx, err := search.NewIndex(repoRoot, skip)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build search index: %w", err)
	}
	if err := idx.Watch(); err != nil {
		// A stale index still answers queries.
		log.Printf("search index watcher unavailable: %v", err)
	}

	write := filesystem.NewWriteFile(repoRoot)
	caps := engine.CapabilityMap{
		engine.KindCreateFile:      write,
		engine.KindEditFile:        write,
		engine.KindDeleteFile:      filesystem.NewDeleteFile(repoRoot),
		engine.KindCreateDirectory: filesystem.NewCreateDirectory(repoRoot),
		engine.KindRemoveDirectory: filesystem.NewRemoveDirectory(repoRoot),
		engine.KindReadFile:        filesystem.NewReadFile(repoRoot),
		engine.KindSearch:          idx,
	}
	return caps, idx, nil
}
