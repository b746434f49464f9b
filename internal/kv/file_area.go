package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileArea stores an entire key-value area as a single JSON object in one
// file. Writes go through a temp file and rename so a watcher (or a platform
// sync agent copying the file between devices) never observes a torn write.
type FileArea struct {
	path  string
	quota int // bytes; 0 means unbounded

	mu sync.Mutex
}

// NewFileArea creates a file-backed area at path. quota bounds the size of
// the serialized document in bytes; pass 0 for no bound.
func NewFileArea(path string, quota int) *FileArea {
	return &FileArea{path: path, quota: quota}
}

// Path returns the file the area is stored in.
func (a *FileArea) Path() string { return a.path }

func (a *FileArea) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("read area %s: %w", a.path, err)
	}
	contents := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &contents); err != nil {
			return nil, fmt.Errorf("decode area %s: %w", a.path, err)
		}
	}
	return contents, nil
}

func (a *FileArea) save(contents map[string]json.RawMessage) error {
	data, err := json.Marshal(contents)
	if err != nil {
		return err
	}
	if a.quota > 0 && len(data) > a.quota {
		return fmt.Errorf("%w: %d bytes exceeds %d byte limit", ErrQuotaExceeded, len(data), a.quota)
	}
	dir := filepath.Dir(a.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := a.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, a.path)
}

func (a *FileArea) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	contents, err := a.load()
	if err != nil {
		return nil, err
	}
	return pick(contents, keys), nil
}

func (a *FileArea) Set(ctx context.Context, items map[string]json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	contents, err := a.load()
	if err != nil {
		return err
	}
	for k, v := range items {
		contents[k] = v
	}
	return a.save(contents)
}

func (a *FileArea) Remove(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	contents, err := a.load()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(contents, k)
	}
	return a.save(contents)
}
