// Package storage is the browser key-value storage analogue used by widgets
// that persist state across page loads. Values are opaque strings; the
// component layer stores JSON snapshots under namespaced keys.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store is a string key-value store.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
	Keys(prefix string) []string
}

// MemoryStore keeps values in memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get returns the value for key.
func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// Set stores value under key.
func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Delete removes key.
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys returns the sorted keys starting with prefix.
func (m *MemoryStore) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.data, prefix)
}

// FileStore is a MemoryStore mirrored to a YAML file after every write.
type FileStore struct {
	mem  *MemoryStore
	path string
	mu   sync.Mutex
}

// OpenFileStore loads path if it exists and returns a store backed by it.
func OpenFileStore(path string) (*FileStore, error) {
	fs := &FileStore{mem: NewMemoryStore(), path: path}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return fs, nil
	case err != nil:
		return nil, fmt.Errorf("read store %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &fs.mem.data); err != nil {
		return nil, fmt.Errorf("decode store %s: %w", path, err)
	}
	if fs.mem.data == nil {
		fs.mem.data = make(map[string]string)
	}
	return fs, nil
}

// Path returns the backing file.
func (f *FileStore) Path() string { return f.path }

// Get returns the value for key.
func (f *FileStore) Get(key string) (string, bool) { return f.mem.Get(key) }

// Keys returns the sorted keys starting with prefix.
func (f *FileStore) Keys(prefix string) []string { return f.mem.Keys(prefix) }

// Set stores value under key and flushes the file.
func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.mem.Set(key, value)
	return f.flush()
}

// Delete removes key and flushes the file.
func (f *FileStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.mem.Delete(key)
	return f.flush()
}

func (f *FileStore) flush() error {
	f.mem.mu.RLock()
	raw, err := yaml.Marshal(f.mem.data)
	f.mem.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func sortedKeys(data map[string]string, prefix string) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
