package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ChangeFunc receives the keys whose values changed in an area. A removed
// key appears with a nil value. area is one of AreaSync or AreaLocal.
type ChangeFunc func(changes map[string]json.RawMessage, area string)

// Watcher observes a FileArea's backing file and notifies subscribers when
// its contents change on disk, including writes made by another process or a
// sync agent replicating the file from another device.
type Watcher struct {
	area     *FileArea
	areaName string
	fw       *fsnotify.Watcher

	mu     sync.Mutex
	subs   map[int]ChangeFunc
	nextID int
	last   map[string]json.RawMessage

	done chan struct{}
}

// NewWatcher starts watching area's file. The watcher primes itself with the
// file's current contents so only subsequent changes are reported.
func NewWatcher(area *FileArea, areaName string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: renames over the file (our own
	// atomic writes and most sync agents) would otherwise drop the watch.
	if err := fw.Add(filepath.Dir(area.Path())); err != nil {
		fw.Close()
		return nil, err
	}

	initial, err := area.Get(context.Background())
	if err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		area:     area,
		areaName: areaName,
		fw:       fw,
		subs:     map[int]ChangeFunc{},
		last:     initial,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Subscribe registers fn and returns a function that removes it.
func (w *Watcher) Subscribe(fn ChangeFunc) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.subs[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}
}

// Close stops the watcher. It is safe to call once.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}

func (w *Watcher) run() {
	base := filepath.Base(w.area.Path())
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.reload()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("kv watcher error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	current, err := w.area.Get(context.Background())
	if err != nil {
		log.Printf("kv watcher reload %s: %v", w.area.Path(), err)
		return
	}

	w.mu.Lock()
	changes := diff(w.last, current)
	w.last = current
	subs := make([]ChangeFunc, 0, len(w.subs))
	for _, fn := range w.subs {
		subs = append(subs, fn)
	}
	w.mu.Unlock()

	if len(changes) == 0 {
		return
	}
	for _, fn := range subs {
		fn(changes, w.areaName)
	}
}

// diff returns the keys of next whose values differ from prev, plus keys
// removed from prev (with nil values).
func diff(prev, next map[string]json.RawMessage) map[string]json.RawMessage {
	changes := map[string]json.RawMessage{}
	for k, v := range next {
		if old, ok := prev[k]; !ok || !bytes.Equal(old, v) {
			changes[k] = v
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			changes[k] = nil
		}
	}
	return changes
}
