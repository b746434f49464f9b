// Package organizer implements the folder/tag/notebook-metadata service: an
// in-memory mirror of the organization state, persisted canonically to the
// record store and replicated as full-state snapshots through a synced and a
// local key-value area.
package organizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/notefold/notefold/internal/kv"
	"github.com/notefold/notefold/internal/metrics"
	"github.com/notefold/notefold/internal/store"
)

// suppressWindow is how long the service ignores sync-area change
// notifications after its own write, absorbing the echo of that write. Best
// effort: a replica write landing inside the window is dropped and only
// picked up by the next notification or cold start.
const suppressWindow = 500 * time.Millisecond

// Options configure a Service. Records and both areas are required.
type Options struct {
	Records   *store.Store
	SyncArea  kv.Area
	LocalArea kv.Area

	// Clock overrides time.Now, UTC. Tests use it to control timestamps and
	// the echo-suppression window.
	Clock func() time.Time
}

// Service owns the in-memory folder/tag/metadata maps and mediates every
// read and write. A single mutex serializes each mutation's full
// validate-transact-mirror-persist-emit cycle, including reconciliation, so
// concurrent callers cannot interleave half-applied state.
type Service struct {
	records   *store.Store
	syncArea  kv.Area
	localArea kv.Area
	now       func() time.Time

	mu            sync.Mutex
	initialized   bool
	mode          StorageMode
	folders       map[string]*Folder
	tags          map[string]*Tag
	metadata      map[string]*NotebookMetadata
	suppressUntil time.Time

	lmu          sync.Mutex
	listeners    map[int]func(Change)
	nextListener int
}

func New(opts Options) *Service {
	now := opts.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		records:   opts.Records,
		syncArea:  opts.SyncArea,
		localArea: opts.LocalArea,
		now:       now,
		mode:      ModeSync,
		folders:   map[string]*Folder{},
		tags:      map[string]*Tag{},
		metadata:  map[string]*NotebookMetadata{},
		listeners: map[int]func(Change){},
	}
}

// StorageMode reports which area snapshots currently go to first.
func (s *Service) StorageMode() StorageMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Subscribe registers fn to receive a Change after every successful mutation
// or applied reconciliation. The returned function unsubscribes it.
func (s *Service) Subscribe(fn func(Change)) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
	}
}

// Initialize loads state, preferring a versioned snapshot from the area
// matching the stored mode flag, then the other area, then a fresh load from
// the record store. Idempotent; every operation calls it implicitly.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initializeLocked(ctx)
}

func (s *Service) initializeLocked(ctx context.Context) error {
	if s.initialized {
		return nil
	}

	s.mode = s.readModeFlag(ctx)

	primary, secondary := s.syncArea, s.localArea
	if s.mode == ModeLocal {
		primary, secondary = s.localArea, s.syncArea
	}
	snap := s.readSnapshot(ctx, primary)
	if snap == nil {
		snap = s.readSnapshot(ctx, secondary)
	}

	if snap != nil {
		// Snapshot wins over the record store on cold start.
		if err := s.applySnapshotLocked(ctx, snap); err != nil {
			return fmt.Errorf("apply snapshot: %w", err)
		}
		s.initialized = true
		return nil
	}

	folders, err := s.records.ListFolders(ctx)
	if err != nil {
		return fmt.Errorf("load folders: %w", err)
	}
	metadata, err := s.records.ListMetadata(ctx)
	if err != nil {
		return fmt.Errorf("load notebook metadata: %w", err)
	}

	s.folders = map[string]*Folder{}
	for _, r := range folders {
		f := recordToFolder(r)
		s.folders[f.ID] = f
	}
	s.tags = map[string]*Tag{}
	s.metadata = map[string]*NotebookMetadata{}
	for _, r := range metadata {
		m := recordToMetadata(r)
		s.metadata[m.NotebookID] = m
	}

	s.ensureDefaultFolderLocked()
	s.rebuildFolderAssignmentsLocked()
	s.recalcTagCountsLocked()

	// Write the repaired state back so the record store matches memory.
	err = s.records.WithTx(ctx, func(tx *store.Tx) error {
		for _, f := range s.folders {
			if err := tx.SaveFolder(ctx, folderToRecord(f)); err != nil {
				return err
			}
		}
		for _, m := range s.metadata {
			if err := tx.SaveMetadata(ctx, metadataToRecord(m)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write back initial state: %w", err)
	}

	s.initialized = true
	// First snapshot, so subsequent cold starts take the snapshot path.
	return s.persistSnapshotLocked(ctx)
}

// readModeFlag reads the stored storage mode from the local area, defaulting
// to sync when unreadable or absent.
func (s *Service) readModeFlag(ctx context.Context) StorageMode {
	items, err := s.localArea.Get(ctx, modeKey)
	if err != nil {
		log.Printf("organizer: read mode flag: %v", err)
		return ModeSync
	}
	raw, ok := items[modeKey]
	if !ok {
		return ModeSync
	}
	var mode string
	if err := json.Unmarshal(raw, &mode); err != nil {
		return ModeSync
	}
	if StorageMode(mode) == ModeLocal {
		return ModeLocal
	}
	return ModeSync
}

// mutate runs one mutation under the service lock: initialize, validate and
// apply via fn, persist a snapshot, then emit to subscribers outside the
// lock. fn returning errNoChange reports success without persisting.
func (s *Service) mutate(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := s.Initialize(ctx); err != nil {
		metrics.MutationsTotal.WithLabelValues(op, "error").Inc()
		return err
	}

	s.mu.Lock()
	err := fn(ctx)
	if err == errNoChange {
		s.mu.Unlock()
		metrics.MutationsTotal.WithLabelValues(op, "ok").Inc()
		return nil
	}
	if err == nil {
		err = s.persistSnapshotLocked(ctx)
	}
	var change Change
	if err == nil {
		change = s.changeLocked()
	}
	s.mu.Unlock()

	if err != nil {
		metrics.MutationsTotal.WithLabelValues(op, "error").Inc()
		return err
	}
	metrics.MutationsTotal.WithLabelValues(op, "ok").Inc()
	s.emit(change)
	return nil
}

func (s *Service) changeLocked() Change {
	return Change{
		Folders:     s.treeLocked(),
		Tags:        s.sortedTagsLocked(),
		StorageMode: s.mode,
	}
}

// emit delivers change to every subscriber. A panicking listener is logged
// and skipped; it never aborts the loop or the mutation that triggered it.
func (s *Service) emit(change Change) {
	s.lmu.Lock()
	subs := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		subs = append(subs, fn)
	}
	s.lmu.Unlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					metrics.ListenerPanicsTotal.Inc()
					log.Printf("organizer: change listener panicked: %v", r)
				}
			}()
			fn(change)
		}()
	}
}

// ensureDefaultFolderLocked guarantees the default folder exists and pins its
// identity. The default folder rejects every direct update, so a divergent
// name, color, or parent can only arrive through a foreign snapshot and is
// repaired here.
func (s *Service) ensureDefaultFolderLocked() {
	if f, ok := s.folders[DefaultFolderID]; ok {
		f.Name = DefaultFolderName
		f.ParentID = ""
		f.Color = ""
		return
	}
	s.folders[DefaultFolderID] = &Folder{
		ID:          DefaultFolderID,
		Name:        DefaultFolderName,
		NotebookIDs: []string{},
		CreatedAt:   s.now(),
	}
}

// rebuildFolderAssignmentsLocked recomputes every folder's notebook list from
// the metadata records, dropping references to folders that no longer exist
// and parking orphaned notebooks in the default folder.
func (s *Service) rebuildFolderAssignmentsLocked() {
	for _, f := range s.folders {
		f.NotebookIDs = []string{}
	}
	for _, m := range s.metadata {
		kept := m.FolderIDs[:0:0]
		for _, id := range m.FolderIDs {
			if _, ok := s.folders[id]; ok {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			kept = []string{DefaultFolderID}
		}
		m.FolderIDs = kept
		for _, id := range kept {
			f := s.folders[id]
			if !containsString(f.NotebookIDs, m.NotebookID) {
				f.NotebookIDs = append(f.NotebookIDs, m.NotebookID)
			}
		}
	}
}

// recalcTagCountsLocked recounts every tag from scratch. O(records × tags
// per record), which beats incremental bookkeeping at the expected scale.
func (s *Service) recalcTagCountsLocked() {
	for _, t := range s.tags {
		t.Count = 0
	}
	for _, m := range s.metadata {
		for _, id := range m.TagIDs {
			if t, ok := s.tags[id]; ok {
				t.Count++
			}
		}
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func removeString(list []string, v string) []string {
	out := list[:0:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
