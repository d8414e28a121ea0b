package main

import (
	"path/filepath"
	"testing"
)

func newTestFS(t *testing.T) *FileSystem {
	t.Helper()
	fs, r := OpenFileSystem(filepath.Join(t.TempDir(), "disk.img"))
	if r.IsErr() {
		t.Fatalf("OpenFileSystem: %v", r)
	}
	return fs
}

func TestFileSystemWriteReadRoundTrip(t *testing.T) {
	fs := newTestFS(t)
	if r := fs.WriteFile("/greeting.txt", []byte("hello")); r.IsErr() {
		t.Fatalf("WriteFile: %v", r)
	}
	data, r := fs.ReadFile("/greeting.txt")
	if r.IsErr() {
		t.Fatalf("ReadFile: %v", r)
	}
	if string(data) != "hello" {
		t.Fatalf("ReadFile = %q, want %q", data, "hello")
	}
}

func TestFileSystemPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.img")

	fs, r := OpenFileSystem(path)
	if r.IsErr() {
		t.Fatalf("OpenFileSystem: %v", r)
	}
	if r := fs.WriteFile("/a/b/c.txt", []byte("nested")); r.IsErr() {
		t.Fatalf("WriteFile: %v", r)
	}

	reopened, r := OpenFileSystem(path)
	if r.IsErr() {
		t.Fatalf("reopen: %v", r)
	}
	data, r := reopened.ReadFile("/a/b/c.txt")
	if r.IsErr() {
		t.Fatalf("ReadFile after reopen: %v", r)
	}
	if string(data) != "nested" {
		t.Fatalf("ReadFile after reopen = %q, want %q", data, "nested")
	}
}

func TestFileSystemRejectsAboveRoot(t *testing.T) {
	fs := newTestFS(t)
	if _, r := fs.ReadFile("/../etc/passwd"); r.Code != AboveRoot {
		t.Fatalf("path climbing above root: got %v, want AboveRoot", r)
	}
}

func TestFileSystemEnviroCannotBeDeleted(t *testing.T) {
	fs := newTestFS(t)
	if r := fs.DeleteFile("/__enviro"); r.Code != EnviroUndeletable {
		t.Fatalf("deleting __enviro: got %v, want EnviroUndeletable", r)
	}
}

func TestFileSystemListDir(t *testing.T) {
	fs := newTestFS(t)
	fs.WriteFile("/x.txt", []byte("1"))
	fs.WriteFile("/y.txt", []byte("2"))

	names, r := fs.ListDir("/")
	if r.IsErr() {
		t.Fatalf("ListDir: %v", r)
	}
	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	if !found["x.txt"] || !found["y.txt"] || !found[enviroFile] {
		t.Fatalf("ListDir = %v, missing expected entries", names)
	}
}

func TestFileSystemRenameAndMove(t *testing.T) {
	fs := newTestFS(t)
	fs.WriteFile("/a.txt", []byte("data"))
	if r := fs.RenameFile("/a.txt", "b.txt"); r.IsErr() {
		t.Fatalf("RenameFile: %v", r)
	}
	if _, r := fs.ReadFile("/a.txt"); r.Code != NotFound {
		t.Fatalf("old name should be gone: got %v", r)
	}
	if r := fs.CreateDir("/sub"); r.IsErr() {
		t.Fatalf("CreateDir: %v", r)
	}
	if r := fs.MoveFile("/b.txt", "/sub"); r.IsErr() {
		t.Fatalf("MoveFile: %v", r)
	}
	data, r := fs.ReadFile("/sub/b.txt")
	if r.IsErr() || string(data) != "data" {
		t.Fatalf("ReadFile after move: %v, %q", r, data)
	}
}

func TestFileSystemEnviroRoundTrip(t *testing.T) {
	fs := newTestFS(t)
	env, r := fs.Enviro()
	if r.IsErr() {
		t.Fatalf("Enviro: %v", r)
	}
	env["GREETING"] = "hi"
	if r := fs.SetEnviro(env); r.IsErr() {
		t.Fatalf("SetEnviro: %v", r)
	}
	got, r := fs.Enviro()
	if r.IsErr() {
		t.Fatalf("Enviro after set: %v", r)
	}
	if got["GREETING"] != "hi" {
		t.Fatalf("Enviro()[GREETING] = %q, want %q", got["GREETING"], "hi")
	}
}
