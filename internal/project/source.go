package project

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Project exposes a repository tree to the agent: a rendered layout,
// size-bounded file contents, and the exclusion filter shared with the
// search index.
type Project struct {
	Root    string
	cfg     *Config
	matcher *gitignore.GitIgnore
}

// Open resolves repoRoot and loads its configuration and ignore rules.
func Open(repoRoot string) (*Project, error) {
	abs, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository path: %w", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("repository path is not a valid directory: %s", abs)
	}

	cfg, err := LoadConfig(abs)
	if err != nil {
		return nil, err
	}

	patterns := append([]string{}, cfg.ExcludeDirs...)
	patterns = append(patterns, cfg.ExcludePatterns...)
	if data, err := os.ReadFile(filepath.Join(abs, ".gitignore")); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				patterns = append(patterns, line)
			}
		}
	}

	return &Project{
		Root:    abs,
		cfg:     cfg,
		matcher: gitignore.CompileIgnoreLines(patterns...),
	}, nil
}

// ID derives a stable project identifier from the repository path,
// scoping persisted messages to this tree.
func (p *Project) ID() string {
	sum := sha256.Sum256([]byte(filepath.Clean(p.Root)))
	return hex.EncodeToString(sum[:])[:12]
}

// Config returns the loaded project configuration.
func (p *Project) Config() *Config { return p.cfg }

// Skip reports whether a project-relative path is excluded.
func (p *Project) Skip(rel string) bool {
	if rel == "" || rel == "." {
		return false
	}
	return p.matcher.MatchesPath(rel)
}

// Layout renders the directory structure as an indented tree, excluded
// paths omitted.
func (p *Project) Layout(ctx context.Context) (string, error) {
	var b strings.Builder
	err := p.walk(ctx, func(rel string, d fs.DirEntry) bool {
		depth := strings.Count(rel, string(filepath.Separator))
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(filepath.Base(rel))
		if d.IsDir() {
			b.WriteString("/")
		}
		b.WriteString("\n")
		return true
	})
	if err != nil {
		return "", err
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// WalkFiles visits regular files in a stable order with size-bounded
// contents. Oversized and binary files are skipped. The walk stops when
// fn returns false.
func (p *Project) WalkFiles(ctx context.Context, fn func(path, content string) bool) error {
	maxSize := p.cfg.MaxFileSizeBytes()

	var paths []string
	err := p.walk(ctx, func(rel string, d fs.DirEntry) bool {
		if !d.IsDir() {
			paths = append(paths, rel)
		}
		return true
	})
	if err != nil {
		return err
	}
	sort.Strings(paths)

	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		abs := filepath.Join(p.Root, rel)
		info, err := os.Stat(abs)
		if err != nil || info.Size() > maxSize {
			continue
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			continue
		}
		if isBinary(data) {
			continue
		}
		if !fn(rel, string(data)) {
			return nil
		}
	}
	return nil
}

// walk traverses the tree depth-first, skipping excluded paths entirely.
func (p *Project) walk(ctx context.Context, fn func(rel string, d fs.DirEntry) bool) error {
	stop := fmt.Errorf("walk stopped")
	err := filepath.WalkDir(p.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		rel, rerr := filepath.Rel(p.Root, path)
		if rerr != nil || rel == "." {
			return nil
		}
		if p.Skip(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !fn(rel, d) {
			return stop
		}
		return nil
	})
	if err == stop {
		return nil
	}
	return err
}

func isBinary(data []byte) bool {
	n := len(data)
	if n > 1024 {
		n = 1024
	}
	return strings.ContainsRune(string(data[:n]), '\x00')
}
