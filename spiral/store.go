package spiral

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// ErrInvalidPath indicates a path that would escape the storage root.
var ErrInvalidPath = errors.New("invalid path: escapes storage root")

// cleanKey turns a caller key into the slash-separated relative form every
// local store indexes by. A leading slash is dropped; keys that name the
// root itself or climb above it are rejected.
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidPath
	}
	cleaned := strings.TrimPrefix(path.Clean(filepath.ToSlash(key)), "/")
	if cleaned == "" || cleaned == "." || escapesRoot(cleaned) {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

// cleanPrefix is cleanKey for List prefixes. The empty prefix matches
// everything, and a trailing slash is kept so "a/" does not match "ab".
func cleanPrefix(prefix string) (string, error) {
	if prefix == "" {
		return "", nil
	}
	slashed := filepath.ToSlash(prefix)
	cleaned := strings.TrimPrefix(path.Clean(slashed), "/")
	if cleaned == "." || cleaned == "" {
		return "", nil
	}
	if escapesRoot(cleaned) {
		return "", ErrInvalidPath
	}
	if strings.HasSuffix(slashed, "/") {
		cleaned += "/"
	}
	return cleaned, nil
}

func escapesRoot(cleaned string) bool {
	return cleaned == ".." || strings.HasPrefix(cleaned, "../")
}

// -----------------------------------------------------------------------------
// Filesystem Store
// -----------------------------------------------------------------------------

// fsStore implements Store using the local filesystem. Each key is one file
// below root, so a Client key such as "inbox/report.json.gz" lands at
// <root>/inbox/report.json.gz.
type fsStore struct {
	root string
}

// NewFS creates a filesystem-backed Store rooted at the given directory.
// The directory must exist.
func NewFS(root string) (Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, os.ErrNotExist
	}
	return &fsStore{root: root}, nil
}

// NewFSFactory returns a StoreFactory for a filesystem store at root.
func NewFSFactory(root string) StoreFactory {
	return func() (Store, error) {
		return NewFS(root)
	}
}

func (f *fsStore) file(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.root, filepath.FromSlash(cleaned)), nil
}

// Put writes the whole body, from offset zero, to a new file. The file is
// created exclusively so a concurrent writer sees ErrPathExists.
func (f *fsStore) Put(_ context.Context, key string, body Stream) error {
	name, err := f.file(key)
	if err != nil {
		return err
	}

	data, err := readBody("put", body)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return ErrPathExists
	}
	if err != nil {
		return err
	}
	defer closer(out)()

	_, err = out.Write(data)
	return err
}

// Get loads the file into a fresh StringStream positioned at zero.
func (f *fsStore) Get(_ context.Context, key string) (*StringStream, error) {
	name, err := f.file(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &StringStream{state: &openState{contents: data}}, nil
}

// Exists reports whether a body is stored under key. Directories created
// for nested keys are not bodies.
func (f *fsStore) Exists(_ context.Context, key string) (bool, error) {
	name, err := f.file(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, err
	}
	return !info.IsDir(), nil
}

// List returns the sorted keys that start with prefix, compared as
// strings the way S3 compares them. Keys written by a Client carry the
// client prefix and the compressor extension.
func (f *fsStore) List(_ context.Context, prefix string) ([]string, error) {
	want, err := cleanPrefix(prefix)
	if err != nil {
		return nil, err
	}

	// Only the directory holding the prefix's last segment can match.
	start := f.root
	if dir := path.Dir(strings.TrimSuffix(want, "/")); want != "" && dir != "." {
		start = filepath.Join(f.root, filepath.FromSlash(dir))
	}

	var keys []string
	err = filepath.WalkDir(start, func(name string, d fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(f.root, name)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, want) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(keys)
	return keys, nil
}

// Delete removes the file for key. A missing key is not an error.
func (f *fsStore) Delete(_ context.Context, key string) error {
	name, err := f.file(key)
	if err != nil {
		return err
	}
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------
// Memory Store
// -----------------------------------------------------------------------------

// memoryStore implements Store using an in-memory map of key to body bytes.
type memoryStore struct {
	mu     sync.RWMutex
	bodies map[string][]byte
}

// NewMemory creates an in-memory Store.
//
// Memory is safe for concurrent use. Bodies themselves are not; each
// caller should Put its own stream.
func NewMemory() Store {
	return &memoryStore{
		bodies: make(map[string][]byte),
	}
}

// NewMemoryFactory returns a StoreFactory that always yields the same
// in-memory store.
func NewMemoryFactory() StoreFactory {
	store := NewMemory()
	return func() (Store, error) {
		return store, nil
	}
}

// Put copies the whole body, from offset zero, into the map.
func (m *memoryStore) Put(_ context.Context, key string, body Stream) error {
	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}

	data, err := readBody("put", body)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bodies[cleaned]; ok {
		return ErrPathExists
	}
	m.bodies[cleaned] = data
	return nil
}

// Get returns a new StringStream over a copy of the stored body, so closing
// or detaching it leaves the store untouched.
func (m *memoryStore) Get(_ context.Context, key string) (*StringStream, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	data, ok := m.bodies[cleaned]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return NewStream(data), nil
}

func (m *memoryStore) Exists(_ context.Context, key string) (bool, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.bodies[cleaned]
	return ok, nil
}

// List returns the sorted keys that start with prefix. As with the
// filesystem store, Client keys include the compressor extension.
func (m *memoryStore) List(_ context.Context, prefix string) ([]string, error) {
	want, err := cleanPrefix(prefix)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	keys := make([]string, 0, len(m.bodies))
	for key := range m.bodies {
		if strings.HasPrefix(key, want) {
			keys = append(keys, key)
		}
	}
	m.mu.RUnlock()

	slices.Sort(keys)
	return keys, nil
}

// Delete drops key. A missing key is not an error.
func (m *memoryStore) Delete(_ context.Context, key string) error {
	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.bodies, cleaned)
	m.mu.Unlock()
	return nil
}
