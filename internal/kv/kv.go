// Package kv provides the quota-bounded key-value areas that back snapshot
// replication: a "sync" area living in a platform-synchronized directory and
// a "local" fallback area, plus a watcher that surfaces external writes.
package kv

import (
	"context"
	"encoding/json"
	"errors"
)

// Area names as reported to change listeners.
const (
	AreaSync  = "sync"
	AreaLocal = "local"
)

// ErrQuotaExceeded is returned by Set when the resulting document would
// exceed the area's byte quota. The previous contents are left untouched.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Area is a flat key-value store holding JSON values.
// Get with no keys returns the entire contents.
type Area interface {
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, items map[string]json.RawMessage) error
	Remove(ctx context.Context, keys ...string) error
}

// pick copies the requested keys out of all. No keys means everything.
func pick(all map[string]json.RawMessage, keys []string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(all))
	if len(keys) == 0 {
		for k, v := range all {
			out[k] = v
		}
		return out
	}
	for _, k := range keys {
		if v, ok := all[k]; ok {
			out[k] = v
		}
	}
	return out
}
