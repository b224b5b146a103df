package search

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestIndex_FindsMatches(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"handler.go":     "package web\n\n// login handler\nfunc HandleLogin() {}\n",
		"storage.go":     "package web\n\nfunc SaveUser() {}\n",
		"docs/notes.txt": "login flow notes",
	})

	ix, err := NewIndex(root, nil)
	if err != nil {
		t.Fatalf("NewIndex() error = %v", err)
	}
	defer ix.Close()

	res, err := ix.Execute(context.Background(), "login", "")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.Success {
		t.Fatal("Execute() reported failure")
	}
	if !strings.Contains(res.Content, "handler.go") || !strings.Contains(res.Content, "docs/notes.txt") {
		t.Errorf("matches missing from:\n%s", res.Content)
	}
	if strings.Contains(res.Content, "storage.go") {
		t.Errorf("unrelated file matched:\n%s", res.Content)
	}
}

func TestIndex_NoMatchesIsSuccess(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.go": "package a"})

	ix, err := NewIndex(root, nil)
	if err != nil {
		t.Fatalf("NewIndex() error = %v", err)
	}
	defer ix.Close()

	res, err := ix.Execute(context.Background(), "nonexistent_symbol_xyz", "")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.Success {
		t.Error("no matches must still be a successful search")
	}
	if !strings.Contains(res.Content, "No matches") {
		t.Errorf("Content = %q", res.Content)
	}
}

func TestIndex_SkipFilter(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"keep.go":           "package keep\n// login handler\n",
		"vendor/skipped.go": "package skipped\n// login handler\n",
	})

	skip := func(rel string) bool {
		return rel == "vendor" || strings.HasPrefix(rel, "vendor"+string(filepath.Separator))
	}
	ix, err := NewIndex(root, skip)
	if err != nil {
		t.Fatalf("NewIndex() error = %v", err)
	}
	defer ix.Close()

	res, err := ix.Execute(context.Background(), "login", "")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.Contains(res.Content, "skipped.go") {
		t.Errorf("excluded file matched:\n%s", res.Content)
	}
	if !strings.Contains(res.Content, "keep.go") {
		t.Errorf("included file missing:\n%s", res.Content)
	}
}

func TestIndex_SkipsBinaries(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.go": "package a // login"})
	if err := os.WriteFile(filepath.Join(root, "blob.bin"), []byte{0, 1, 2, 'l', 'o', 'g', 'i', 'n'}, 0644); err != nil {
		t.Fatal(err)
	}

	ix, err := NewIndex(root, nil)
	if err != nil {
		t.Fatalf("NewIndex() error = %v", err)
	}
	defer ix.Close()

	res, err := ix.Execute(context.Background(), "login", "")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.Contains(res.Content, "blob.bin") {
		t.Errorf("binary file matched:\n%s", res.Content)
	}
}
