package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemArea is a map-backed Area used in tests and as a stand-in when no
// backing directory is configured. It enforces the same quota semantics as
// FileArea: a Set that would push the serialized document over the quota
// fails without modifying the contents.
type MemArea struct {
	quota int

	mu       sync.Mutex
	contents map[string]json.RawMessage

	// SetErr, when non-nil, is returned by every Set call. Tests use it to
	// simulate backing-store failures.
	SetErr error
}

// NewMemArea creates an in-memory area. quota bounds the serialized size in
// bytes; pass 0 for no bound.
func NewMemArea(quota int) *MemArea {
	return &MemArea{quota: quota, contents: map[string]json.RawMessage{}}
}

func (a *MemArea) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return pick(a.contents, keys), nil
}

func (a *MemArea) Set(ctx context.Context, items map[string]json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.SetErr != nil {
		return a.SetErr
	}
	next := make(map[string]json.RawMessage, len(a.contents)+len(items))
	for k, v := range a.contents {
		next[k] = v
	}
	for k, v := range items {
		next[k] = v
	}
	if a.quota > 0 {
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		if len(data) > a.quota {
			return fmt.Errorf("%w: %d bytes exceeds %d byte limit", ErrQuotaExceeded, len(data), a.quota)
		}
	}
	a.contents = next
	return nil
}

func (a *MemArea) Remove(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, k := range keys {
		delete(a.contents, k)
	}
	return nil
}
