// filesystem.go - the persistent block-structured filesystem collaborator
//
// Grounded on original_source/emos/operatingsystem.py's save/load shape (the
// whole tree serialized to one host file and rewritten after every
// mutation) and file_io.go's sandboxing pattern (reject paths
// that climb above the configured root). spec.md §6 leaves the on-disk
// format implementation-defined; SPEC_FULL.md §6 picks encoding/gob for the
// image and encoding/json for the reserved __enviro file.

package main

import (
	"encoding/gob"
	"encoding/json"
	"os"
	"strings"
	"sync"
)

const enviroFile = "__enviro"

var illegalNameChars = "\n\b\t\r\"'"

// fsNode is one file or directory in the persisted tree.
type fsNode struct {
	IsDir    bool
	Data     []byte
	Children map[string]*fsNode
}

func newDirNode() *fsNode { return &fsNode{IsDir: true, Children: make(map[string]*fsNode)} }

// FileSystem is the sandboxed, path-addressed store spec.md §6 specifies:
// read_file/write_file/delete_file/rename_file/create_dir/delete_dir/
// list_dir, persisted as a single host file rewritten after every mutation.
type FileSystem struct {
	mu       sync.Mutex
	diskPath string
	root     *fsNode
}

// OpenFileSystem loads diskPath if it exists, or creates a fresh tree with
// the reserved __enviro file, per spec.md §6.
func OpenFileSystem(diskPath string) (*FileSystem, Result) {
	fs := &FileSystem{diskPath: diskPath}
	if f, err := os.Open(diskPath); err == nil {
		defer f.Close()
		var root fsNode
		if err := gob.NewDecoder(f).Decode(&root); err != nil {
			return nil, Err(PathInvalid, "corrupt filesystem image: %v", err)
		}
		fs.root = &root
		return fs, Ok()
	}

	fs.root = newDirNode()
	env, _ := json.Marshal(map[string]string{"PATH": "/", "root_password": ""})
	fs.root.Children[enviroFile] = &fsNode{Data: env}
	if r := fs.persistLocked(); r.IsErr() {
		return nil, r
	}
	return fs, Ok()
}

func (fs *FileSystem) persistLocked() Result {
	f, err := os.Create(fs.diskPath)
	if err != nil {
		return Err(PathInvalid, "cannot open disk image: %v", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(fs.root); err != nil {
		return Err(PathInvalid, "cannot write disk image: %v", err)
	}
	return Ok()
}

// splitPath validates and tokenizes an absolute path, rejecting names with
// illegal characters; every ".." component is rejected with AboveRoot,
// per spec.md §6.
func splitPath(p string) ([]string, Result) {
	p = strings.ReplaceAll(p, "\\", "/")
	parts := strings.Split(strings.Trim(p, "/"), "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		if part == ".." {
			return nil, Err(AboveRoot, "path climbs above filesystem root")
		}
		if strings.ContainsAny(part, illegalNameChars) {
			return nil, Err(NameInvalid, "illegal character in name %q", part)
		}
		out = append(out, part)
	}
	return out, Ok()
}

func (fs *FileSystem) walk(parts []string, createDirs bool) (*fsNode, Result) {
	node := fs.root
	for _, part := range parts {
		if !node.IsDir {
			return nil, Err(PathInvalid, "%q is not a directory", part)
		}
		child, ok := node.Children[part]
		if !ok {
			if !createDirs {
				return nil, Err(NotFound, "%q not found", part)
			}
			child = newDirNode()
			node.Children[part] = child
		}
		node = child
	}
	return node, Ok()
}

func (fs *FileSystem) ReadFile(p string) ([]byte, Result) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	parts, r := splitPath(p)
	if r.IsErr() {
		return nil, r
	}
	if len(parts) == 0 {
		return nil, Err(PathInvalid, "empty path")
	}
	dir, r := fs.walk(parts[:len(parts)-1], false)
	if r.IsErr() {
		return nil, r
	}
	node, ok := dir.Children[parts[len(parts)-1]]
	if !ok || node.IsDir {
		return nil, Err(NotFound, "file %q not found", p)
	}
	return append([]byte(nil), node.Data...), Ok()
}

func (fs *FileSystem) WriteFile(p string, data []byte) Result {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	parts, r := splitPath(p)
	if r.IsErr() {
		return r
	}
	if len(parts) == 0 {
		return Err(PathInvalid, "empty path")
	}
	dir, r := fs.walk(parts[:len(parts)-1], true)
	if r.IsErr() {
		return r
	}
	name := parts[len(parts)-1]
	dir.Children[name] = &fsNode{Data: append([]byte(nil), data...)}
	return fs.persistLocked()
}

func (fs *FileSystem) DeleteFile(p string) Result {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	parts, r := splitPath(p)
	if r.IsErr() {
		return r
	}
	if len(parts) == 1 && parts[0] == enviroFile {
		return Err(EnviroUndeletable, "__enviro cannot be deleted")
	}
	dir, r := fs.walk(parts[:len(parts)-1], false)
	if r.IsErr() {
		return r
	}
	name := parts[len(parts)-1]
	node, ok := dir.Children[name]
	if !ok || node.IsDir {
		return Err(NotFound, "file %q not found", p)
	}
	delete(dir.Children, name)
	return fs.persistLocked()
}

func (fs *FileSystem) RenameFile(p, newName string) Result {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	parts, r := splitPath(p)
	if r.IsErr() {
		return r
	}
	if strings.ContainsAny(newName, illegalNameChars) {
		return Err(NameInvalid, "illegal character in name %q", newName)
	}
	dir, r := fs.walk(parts[:len(parts)-1], false)
	if r.IsErr() {
		return r
	}
	name := parts[len(parts)-1]
	node, ok := dir.Children[name]
	if !ok {
		return Err(NotFound, "%q not found", p)
	}
	if _, exists := dir.Children[newName]; exists {
		return Err(FolderExists, "%q already exists", newName)
	}
	delete(dir.Children, name)
	dir.Children[newName] = node
	return fs.persistLocked()
}

func (fs *FileSystem) MoveFile(src, dst string) Result {
	fs.mu.Lock()
	srcParts, r := splitPath(src)
	if r.IsErr() {
		fs.mu.Unlock()
		return r
	}
	dstParts, r := splitPath(dst)
	if r.IsErr() {
		fs.mu.Unlock()
		return r
	}
	srcDir, r := fs.walk(srcParts[:len(srcParts)-1], false)
	if r.IsErr() {
		fs.mu.Unlock()
		return r
	}
	name := srcParts[len(srcParts)-1]
	node, ok := srcDir.Children[name]
	if !ok {
		fs.mu.Unlock()
		return Err(NotFound, "%q not found", src)
	}
	dstDir, r := fs.walk(dstParts, true)
	if r.IsErr() {
		fs.mu.Unlock()
		return r
	}
	delete(srcDir.Children, name)
	dstDir.Children[name] = node
	r = fs.persistLocked()
	fs.mu.Unlock()
	return r
}

func (fs *FileSystem) CreateDir(p string) Result {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	parts, r := splitPath(p)
	if r.IsErr() {
		return r
	}
	dir, r := fs.walk(parts[:len(parts)-1], true)
	if r.IsErr() {
		return r
	}
	name := parts[len(parts)-1]
	if _, exists := dir.Children[name]; exists {
		return Err(FolderExists, "%q already exists", name)
	}
	dir.Children[name] = newDirNode()
	return fs.persistLocked()
}

func (fs *FileSystem) DeleteDir(p string) Result {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	parts, r := splitPath(p)
	if r.IsErr() {
		return r
	}
	if len(parts) == 0 {
		return Err(PathInvalid, "cannot delete filesystem root")
	}
	dir, r := fs.walk(parts[:len(parts)-1], false)
	if r.IsErr() {
		return r
	}
	name := parts[len(parts)-1]
	node, ok := dir.Children[name]
	if !ok || !node.IsDir {
		return Err(NotFound, "directory %q not found", p)
	}
	delete(dir.Children, name)
	return fs.persistLocked()
}

func (fs *FileSystem) ListDir(p string) ([]string, Result) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	parts, r := splitPath(p)
	if r.IsErr() {
		return nil, r
	}
	dir, r := fs.walk(parts, false)
	if r.IsErr() {
		return nil, r
	}
	if !dir.IsDir {
		return nil, Err(PathInvalid, "%q is not a directory", p)
	}
	names := make([]string, 0, len(dir.Children))
	for name := range dir.Children {
		names = append(names, name)
	}
	return names, Ok()
}

// Enviro reads and JSON-decodes __enviro at the root.
func (fs *FileSystem) Enviro() (map[string]string, Result) {
	data, r := fs.ReadFile("/" + enviroFile)
	if r.IsErr() {
		return nil, r
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, Err(PathInvalid, "corrupt __enviro: %v", err)
	}
	return m, Ok()
}

func (fs *FileSystem) SetEnviro(m map[string]string) Result {
	data, err := json.Marshal(m)
	if err != nil {
		return Err(PathInvalid, "cannot encode __enviro: %v", err)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.root.Children[enviroFile] = &fsNode{Data: data}
	return fs.persistLocked()
}
