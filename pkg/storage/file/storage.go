// Copyright (c) 2025 Web3Authn Labs
//
// This file is part of go-vrf-sdk.
//
// go-vrf-sdk is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@web3authn.dev for commercial licensing options.

// Package file provides a file-based implementation of storage.Backend.
// Keys map to files under a root directory; path traversal outside the
// root is rejected.
package file

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/web3authn/go-vrf-sdk/pkg/storage"
)

const (
	// Directory permissions (owner rwx only).
	defaultDirPerms = 0700

	// Record files hold ciphertext and public keys; owner rw only.
	defaultFilePerms = 0600
)

// Storage is a file-based storage.Backend. Thread-safe within a process;
// concurrent processes sharing a root directory are not coordinated.
type Storage struct {
	mu      sync.RWMutex
	rootDir string
}

// New creates a file storage backend rooted at rootDir, creating the
// directory with 0700 permissions if needed.
func New(rootDir string) (storage.Backend, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("file storage: root directory cannot be empty")
	}
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("file storage: resolve root directory: %w", err)
	}
	if err := os.MkdirAll(abs, defaultDirPerms); err != nil {
		return nil, fmt.Errorf("file storage: create root directory: %w", err)
	}
	return &Storage{rootDir: abs}, nil
}

// keyToPath validates a key and maps it to a path under the root.
func (f *Storage) keyToPath(key string) (string, error) {
	if key == "" {
		return "", storage.ErrInvalidID
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: absolute key %q", storage.ErrInvalidID, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("%w: key %q", storage.ErrInvalidID, key)
		}
	}
	return filepath.Join(f.rootDir, filepath.FromSlash(key)), nil
}

// Get retrieves the value for the given key.
func (f *Storage) Get(key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	path, err := f.keyToPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("file storage: read key %q: %w", key, err)
	}
	return data, nil
}

// Put stores the value for the given key, creating parent directories as
// needed. Permissions come from opts or default to 0600.
func (f *Storage) Put(key string, value []byte, opts *storage.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.keyToPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerms); err != nil {
		return fmt.Errorf("file storage: create directory for key %q: %w", key, err)
	}

	perms := fs.FileMode(defaultFilePerms)
	if opts != nil && opts.Permissions != 0 {
		perms = opts.Permissions
	}
	if err := os.WriteFile(path, value, perms); err != nil {
		return fmt.Errorf("file storage: write key %q: %w", key, err)
	}
	return nil
}

// Delete removes the key, returning storage.ErrNotFound for unknown keys.
func (f *Storage) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.keyToPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("file storage: delete key %q: %w", key, err)
	}
	return nil
}

// List returns all keys with the given prefix, sorted. Keys use forward
// slashes regardless of platform.
func (f *Storage) List(prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var keys []string
	err := filepath.WalkDir(f.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(f.rootDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("file storage: list: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Exists checks if a key exists.
func (f *Storage) Exists(key string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	path, err := f.keyToPath(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("file storage: stat key %q: %w", key, err)
	}
	return true, nil
}

// Close is a no-op for file storage.
func (f *Storage) Close() error {
	return nil
}
