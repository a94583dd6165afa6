package fsutil

import (
	"path/filepath"
	"testing"
)

func TestMemoryFileSystemRoundTrip(t *testing.T) {
	fs := NewMemoryFileSystem()
	if fs.Exists("/a/b.json") {
		t.Error("fresh filesystem should be empty")
	}
	if err := fs.WriteFile("/a/b.json", []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	data, err := fs.ReadFile("/a/b.json")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{}" {
		t.Errorf("data = %q", data)
	}
	if !fs.Exists("/a/b.json") {
		t.Error("written file should exist")
	}
	if !fs.IsDir("/a") {
		t.Error("a stored file should imply its parent directory")
	}
	if fs.IsDir("/a/b.json") {
		t.Error("a file is not a directory")
	}
}

func TestMemoryFileSystemRemove(t *testing.T) {
	fs := NewMemoryFileSystem()
	if err := fs.Remove("/missing"); err == nil {
		t.Error("removing a missing file should fail")
	}
	if err := fs.WriteFile("/x", []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := fs.Remove("/x"); err != nil {
		t.Fatal(err)
	}
	if fs.Exists("/x") {
		t.Error("removed file should not exist")
	}
}

func TestMemoryFileSystemMkdirAll(t *testing.T) {
	fs := NewMemoryFileSystem()
	if err := fs.MkdirAll("/one/two/three", 0o755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"/one", "/one/two", "/one/two/three"} {
		if !fs.IsDir(p) {
			t.Errorf("%s should be a directory", p)
		}
	}
}

func TestOSFileSystem(t *testing.T) {
	fs := OSFileSystem{}
	dir := t.TempDir()
	p := filepath.Join(dir, "sub", "f.json")
	if err := fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := fs.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !fs.Exists(p) || fs.IsDir(p) || !fs.IsDir(filepath.Dir(p)) {
		t.Error("existence checks disagree with what was written")
	}
	data, err := fs.ReadFile(p)
	if err != nil || string(data) != "x" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}
	if err := fs.Remove(p); err != nil {
		t.Fatal(err)
	}
	if fs.Exists(p) {
		t.Error("removed file should not exist")
	}
}
