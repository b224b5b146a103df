// Package search backs the agent's search action with a keyword index
// over the project tree.
package search

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/fsnotify/fsnotify"

	"github.com/mzeroual/forge/internal/engine"
)

// maxIndexedBytes skips files too large to be useful search fodder.
const maxIndexedBytes = 512 * 1024

// maxResults caps one query's hit list.
const maxResults = 20

// fileDoc is the indexed shape of one project file.
type fileDoc struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Index is an in-memory keyword index over project files. A filesystem
// watcher keeps it fresh for the life of the process, so queries issued
// late in a run see the files earlier actions just wrote.
type Index struct {
	mu       sync.Mutex
	index    bleve.Index
	repoRoot string
	skip     func(rel string) bool
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewIndex builds the index from the current tree. skip filters
// project-relative paths (excluded dirs, binaries); nil means index
// everything.
func NewIndex(repoRoot string, skip func(rel string) bool) (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	if skip == nil {
		skip = func(string) bool { return false }
	}

	ix := &Index{index: idx, repoRoot: repoRoot, skip: skip, done: make(chan struct{})}
	if err := ix.indexTree(); err != nil {
		idx.Close()
		return nil, err
	}
	return ix, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	doc := bleve.NewDocumentMapping()

	pathField := bleve.NewTextFieldMapping()
	pathField.Analyzer = keyword.Name
	pathField.Store = true
	doc.AddFieldMappingsAt("path", pathField)

	contentField := bleve.NewTextFieldMapping()
	contentField.Store = false
	doc.AddFieldMappingsAt("content", contentField)

	im.AddDocumentMapping("file", doc)
	im.DefaultMapping = doc
	return im
}

func (ix *Index) indexTree() error {
	batch := ix.index.NewBatch()
	err := filepath.WalkDir(ix.repoRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, rerr := filepath.Rel(ix.repoRoot, path)
		if rerr != nil || rel == "." {
			return nil
		}
		if ix.skip(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if doc, ok := ix.load(rel); ok {
			if err := batch.Index(rel, doc); err != nil {
				log.Printf("failed to index %s: %v", rel, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk project tree: %w", err)
	}
	return ix.index.Batch(batch)
}

// load reads one file for indexing, skipping binaries and oversized files.
func (ix *Index) load(rel string) (fileDoc, bool) {
	abs := filepath.Join(ix.repoRoot, rel)
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() || info.Size() > maxIndexedBytes {
		return fileDoc{}, false
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return fileDoc{}, false
	}
	if strings.ContainsRune(string(data[:min(len(data), 1024)]), '\x00') {
		return fileDoc{}, false
	}
	return fileDoc{Path: rel, Content: string(data)}, true
}

// Watch starts a filesystem watcher that re-indexes changed files until
// Close is called. Best effort: watcher failures degrade to a stale
// index, never to a broken one.
func (ix *Index) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	ix.watcher = w

	err = filepath.WalkDir(ix.repoRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(ix.repoRoot, path)
		if rerr != nil {
			return nil
		}
		if rel != "." && ix.skip(rel) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
	if err != nil {
		w.Close()
		ix.watcher = nil
		return err
	}

	go ix.watchLoop()
	return nil
}

func (ix *Index) watchLoop() {
	for {
		select {
		case <-ix.done:
			return
		case event, ok := <-ix.watcher.Events:
			if !ok {
				return
			}
			ix.handleEvent(event)
		case err, ok := <-ix.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("search watcher error: %v", err)
		}
	}
}

func (ix *Index) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(ix.repoRoot, event.Name)
	if err != nil || ix.skip(rel) {
		return
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			ix.watcher.Add(event.Name)
			return
		}
		if doc, ok := ix.load(rel); ok {
			if err := ix.index.Index(rel, doc); err != nil {
				log.Printf("failed to re-index %s: %v", rel, err)
			}
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if err := ix.index.Delete(rel); err != nil {
			log.Printf("failed to drop %s from index: %v", rel, err)
		}
	}
}

// Execute implements engine.Capability. The pattern arrives in the path
// slot of the action. Completing without error is success: no matches is
// an empty result, not a failure.
func (ix *Index) Execute(ctx context.Context, pattern, _ string) (engine.CapabilityResult, error) {
	q := bleve.NewMatchQuery(pattern)
	req := bleve.NewSearchRequest(q)
	req.Size = maxResults
	req.Fields = []string{"path"}

	ix.mu.Lock()
	res, err := ix.index.SearchInContext(ctx, req)
	ix.mu.Unlock()
	if err != nil {
		return engine.CapabilityResult{}, fmt.Errorf("search failed: %w", err)
	}

	if len(res.Hits) == 0 {
		return engine.CapabilityResult{Success: true, Content: fmt.Sprintf("No matches for %q.", pattern)}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Matches for %q:\n", pattern)
	for _, hit := range res.Hits {
		path := hit.ID
		if p, ok := hit.Fields["path"].(string); ok && p != "" {
			path = p
		}
		fmt.Fprintf(&b, "- %s (score %.2f)\n", path, hit.Score)
	}
	return engine.CapabilityResult{Success: true, Content: b.String()}, nil
}

// Close stops the watcher and releases the index.
func (ix *Index) Close() error {
	close(ix.done)
	if ix.watcher != nil {
		ix.watcher.Close()
	}
	return ix.index.Close()
}
