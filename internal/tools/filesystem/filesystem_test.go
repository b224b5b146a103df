package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolve_RejectsEscapes(t *testing.T) {
	root := t.TempDir()

	cases := []struct {
		name string
		path string
		ok   bool
	}{
		{"plain", "a.go", true},
		{"nested", "pkg/sub/a.go", true},
		{"dot", "./a.go", true},
		{"empty", "", false},
		{"whitespace", "   ", false},
		{"parent", "../outside.go", false},
		{"sneaky", "pkg/../../outside.go", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			abs, err := resolve(root, tc.path)
			if tc.ok && err != nil {
				t.Errorf("resolve(%q) error = %v", tc.path, err)
			}
			if !tc.ok && err == nil {
				t.Errorf("resolve(%q) = %q, want rejection", tc.path, abs)
			}
		})
	}
}

func TestWriteFile_CreatesParents(t *testing.T) {
	root := t.TempDir()
	w := NewWriteFile(root)

	res, err := w.Execute(context.Background(), "deep/nested/dir/a.go", "package a")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.Success {
		t.Fatal("Execute() reported failure")
	}

	data, err := os.ReadFile(filepath.Join(root, "deep/nested/dir/a.go"))
	if err != nil {
		t.Fatalf("written file unreadable: %v", err)
	}
	if string(data) != "package a" {
		t.Errorf("content = %q", data)
	}
}

func TestWriteFile_Overwrites(t *testing.T) {
	root := t.TempDir()
	w := NewWriteFile(root)

	if _, err := w.Execute(context.Background(), "a.go", "old"); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if _, err := w.Execute(context.Background(), "a.go", "new"); err != nil {
		t.Fatalf("second write: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(root, "a.go"))
	if string(data) != "new" {
		t.Errorf("content = %q, want %q", data, "new")
	}
}

func TestDeleteFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.go"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	d := NewDeleteFile(root)

	res, err := d.Execute(context.Background(), "a.go", "")
	if err != nil || !res.Success {
		t.Fatalf("Execute() = (%+v, %v)", res, err)
	}
	if _, err := os.Stat(filepath.Join(root, "a.go")); !os.IsNotExist(err) {
		t.Error("file still exists after delete")
	}

	// Deleting a path that is already gone succeeds.
	res, err = d.Execute(context.Background(), "a.go", "")
	if err != nil || !res.Success {
		t.Errorf("repeat delete = (%+v, %v), want success", res, err)
	}
}

func TestDeleteFile_RefusesDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "pkg"), 0755); err != nil {
		t.Fatal(err)
	}

	_, err := NewDeleteFile(root).Execute(context.Background(), "pkg", "")
	if err == nil {
		t.Fatal("Execute() deleted a directory through the file capability")
	}
	if !strings.Contains(err.Error(), "directory") {
		t.Errorf("error = %v", err)
	}
}

func TestDirectoryCapabilities(t *testing.T) {
	root := t.TempDir()

	if _, err := NewCreateDirectory(root).Execute(context.Background(), "pkg/sub", ""); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	info, err := os.Stat(filepath.Join(root, "pkg/sub"))
	if err != nil || !info.IsDir() {
		t.Fatalf("directory missing after create: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "pkg/sub/a.go"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRemoveDirectory(root).Execute(context.Background(), "pkg", ""); err != nil {
		t.Fatalf("RemoveDirectory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "pkg")); !os.IsNotExist(err) {
		t.Error("directory still exists after removal")
	}

	// Removing a missing directory succeeds.
	if res, err := NewRemoveDirectory(root).Execute(context.Background(), "pkg", ""); err != nil || !res.Success {
		t.Errorf("repeat removal = (%+v, %v), want success", res, err)
	}
}

func TestReadFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0644); err != nil {
		t.Fatal(err)
	}
	r := NewReadFile(root)

	res, err := r.Execute(context.Background(), "a.go", "")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Content != "package a" {
		t.Errorf("Content = %q", res.Content)
	}
}

func TestReadFile_Errors(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "pkg"), 0755); err != nil {
		t.Fatal(err)
	}
	big := filepath.Join(root, "big.bin")
	if err := os.WriteFile(big, make([]byte, DefaultMaxReadBytes+1), 0644); err != nil {
		t.Fatal(err)
	}
	r := NewReadFile(root)

	if _, err := r.Execute(context.Background(), "missing.go", ""); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing file error = %v", err)
	}
	if _, err := r.Execute(context.Background(), "pkg", ""); err == nil || !strings.Contains(err.Error(), "directory") {
		t.Errorf("directory error = %v", err)
	}
	if _, err := r.Execute(context.Background(), "big.bin", ""); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("oversized file error = %v", err)
	}
}
