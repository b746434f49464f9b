package organizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/notefold/notefold/internal/kv"
	"github.com/notefold/notefold/internal/metrics"
	"github.com/notefold/notefold/internal/store"
)

// buildSnapshotLocked serializes the full state. Collections are sorted so
// identical states produce identical blobs.
func (s *Service) buildSnapshotLocked() *Snapshot {
	snap := &Snapshot{
		Version:       SnapshotVersion,
		Folders:       make([]*Folder, 0, len(s.folders)),
		Tags:          make([]*Tag, 0, len(s.tags)),
		Metadata:      make([]*NotebookMetadata, 0, len(s.metadata)),
		LastUpdatedAt: s.now(),
		StorageMode:   s.mode,
	}
	for _, f := range s.folders {
		snap.Folders = append(snap.Folders, f.clone())
	}
	sort.Slice(snap.Folders, func(i, j int) bool {
		if snap.Folders[i].CreatedAt.Equal(snap.Folders[j].CreatedAt) {
			return snap.Folders[i].ID < snap.Folders[j].ID
		}
		return snap.Folders[i].CreatedAt.Before(snap.Folders[j].CreatedAt)
	})
	for _, t := range s.tags {
		snap.Tags = append(snap.Tags, t.clone())
	}
	sort.Slice(snap.Tags, func(i, j int) bool { return snap.Tags[i].ID < snap.Tags[j].ID })
	for _, m := range s.metadata {
		snap.Metadata = append(snap.Metadata, m.clone())
	}
	sort.Slice(snap.Metadata, func(i, j int) bool {
		return snap.Metadata[i].NotebookID < snap.Metadata[j].NotebookID
	})
	return snap
}

// persistSnapshotLocked writes the full state to the backing area(s). In sync
// mode a quota failure permanently downgrades the session to local storage;
// any other storage error propagates to the caller.
func (s *Service) persistSnapshotLocked(ctx context.Context) error {
	snap := s.buildSnapshotLocked()
	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	metrics.SnapshotBytes.Set(float64(len(blob)))

	if s.mode == ModeSync {
		// Our own sync write echoes back through the notification channel;
		// open the suppression window before writing.
		s.suppressUntil = s.now().Add(suppressWindow)

		err := s.syncArea.Set(ctx, map[string]json.RawMessage{snapshotKey: blob})
		if err == nil {
			metrics.SnapshotWritesTotal.WithLabelValues(kv.AreaSync, "ok").Inc()
			// Redundant backup plus the mode flag for the next cold start.
			mirror := map[string]json.RawMessage{
				snapshotKey: blob,
				modeKey:     encodeMode(ModeSync),
			}
			if err := s.localArea.Set(ctx, mirror); err != nil {
				metrics.SnapshotWritesTotal.WithLabelValues(kv.AreaLocal, "error").Inc()
				log.Printf("organizer: mirror snapshot to local area: %v", err)
			} else {
				metrics.SnapshotWritesTotal.WithLabelValues(kv.AreaLocal, "ok").Inc()
			}
			return nil
		}
		if !errors.Is(err, kv.ErrQuotaExceeded) {
			metrics.SnapshotWritesTotal.WithLabelValues(kv.AreaSync, "error").Inc()
			return fmt.Errorf("write sync snapshot: %w", err)
		}
		metrics.SnapshotWritesTotal.WithLabelValues(kv.AreaSync, "quota").Inc()
		metrics.StorageFallbacksTotal.Inc()
		log.Printf("organizer: sync area quota exceeded, falling back to local storage")
		s.mode = ModeLocal
	}

	items := map[string]json.RawMessage{
		snapshotKey: blob,
		modeKey:     encodeMode(ModeLocal),
	}
	if err := s.localArea.Set(ctx, items); err != nil {
		metrics.SnapshotWritesTotal.WithLabelValues(kv.AreaLocal, "error").Inc()
		return fmt.Errorf("write local snapshot: %w", err)
	}
	metrics.SnapshotWritesTotal.WithLabelValues(kv.AreaLocal, "ok").Inc()
	return nil
}

func encodeMode(mode StorageMode) json.RawMessage {
	raw, _ := json.Marshal(string(mode))
	return raw
}

// readSnapshot fetches and decodes a snapshot from area. Absent, undecodable,
// or version-mismatched snapshots all yield nil.
func (s *Service) readSnapshot(ctx context.Context, area kv.Area) *Snapshot {
	items, err := area.Get(ctx, snapshotKey)
	if err != nil {
		log.Printf("organizer: read snapshot: %v", err)
		return nil
	}
	raw, ok := items[snapshotKey]
	if !ok || len(raw) == 0 {
		return nil
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Printf("organizer: decode snapshot: %v", err)
		return nil
	}
	if snap.Version != SnapshotVersion {
		return nil
	}
	return &snap
}

// applySnapshotLocked replaces the in-memory state and the record store
// contents with snap. The record store transaction commits before memory is
// swapped, so a storage failure leaves the previous state intact.
func (s *Service) applySnapshotLocked(ctx context.Context, snap *Snapshot) error {
	folders := map[string]*Folder{}
	for _, f := range snap.Folders {
		c := f.clone()
		if c.NotebookIDs == nil {
			c.NotebookIDs = []string{}
		}
		folders[c.ID] = c
	}
	tags := map[string]*Tag{}
	for _, t := range snap.Tags {
		tags[t.ID] = t.clone()
	}
	metadata := map[string]*NotebookMetadata{}
	for _, m := range snap.Metadata {
		c := m.clone()
		if c.FolderIDs == nil {
			c.FolderIDs = []string{}
		}
		if c.TagIDs == nil {
			c.TagIDs = []string{}
		}
		metadata[c.NotebookID] = c
	}

	prevFolders, prevTags, prevMetadata := s.folders, s.tags, s.metadata
	s.folders, s.tags, s.metadata = folders, tags, metadata
	s.ensureDefaultFolderLocked()
	s.rebuildFolderAssignmentsLocked()
	s.recalcTagCountsLocked()

	folderRecords := make([]*store.FolderRecord, 0, len(s.folders))
	for _, f := range s.folders {
		folderRecords = append(folderRecords, folderToRecord(f))
	}
	metadataRecords := make([]*store.MetadataRecord, 0, len(s.metadata))
	for _, m := range s.metadata {
		metadataRecords = append(metadataRecords, metadataToRecord(m))
	}
	err := s.records.WithTx(ctx, func(tx *store.Tx) error {
		return tx.ReplaceAll(ctx, folderRecords, metadataRecords)
	})
	if err != nil {
		s.folders, s.tags, s.metadata = prevFolders, prevTags, prevMetadata
		return err
	}
	return nil
}

// HandleAreaChange reconciles an externally observed change: a snapshot
// written by another device replica replaces local state wholesale
// (last-writer-wins). Registered against the kv watcher.
func (s *Service) HandleAreaChange(changes map[string]json.RawMessage, area string) {
	if area != kv.AreaSync {
		return
	}
	raw, ok := changes[snapshotKey]
	if !ok || len(raw) == 0 {
		return
	}

	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return
	}
	if s.now().Before(s.suppressUntil) {
		// Echo of our own write.
		s.mu.Unlock()
		metrics.ReconciliationsTotal.WithLabelValues("suppressed").Inc()
		return
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.mu.Unlock()
		metrics.ReconciliationsTotal.WithLabelValues("invalid").Inc()
		log.Printf("organizer: decode replicated snapshot: %v", err)
		return
	}
	if snap.Version != SnapshotVersion {
		// Not for us.
		s.mu.Unlock()
		metrics.ReconciliationsTotal.WithLabelValues("version_mismatch").Inc()
		return
	}
	if err := s.applySnapshotLocked(context.Background(), &snap); err != nil {
		s.mu.Unlock()
		metrics.ReconciliationsTotal.WithLabelValues("error").Inc()
		log.Printf("organizer: apply replicated snapshot: %v", err)
		return
	}
	change := s.changeLocked()
	s.mu.Unlock()

	metrics.ReconciliationsTotal.WithLabelValues("applied").Inc()
	s.emit(change)
}

func folderToRecord(f *Folder) *store.FolderRecord {
	return &store.FolderRecord{
		ID:          f.ID,
		Name:        f.Name,
		ParentID:    f.ParentID,
		Color:       f.Color,
		NotebookIDs: store.JSONStrings(f.NotebookIDs),
		CreatedAt:   f.CreatedAt,
	}
}

func recordToFolder(r *store.FolderRecord) *Folder {
	return &Folder{
		ID:          r.ID,
		Name:        r.Name,
		ParentID:    r.ParentID,
		Color:       r.Color,
		NotebookIDs: append([]string{}, r.NotebookIDs...),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func metadataToRecord(m *NotebookMetadata) *store.MetadataRecord {
	return &store.MetadataRecord{
		NotebookID:    m.NotebookID,
		FolderIDs:     store.JSONStrings(m.FolderIDs),
		TagIDs:        store.JSONStrings(m.TagIDs),
		Title:         m.Title,
		CustomName:    m.CustomName,
		LastUpdatedAt: m.LastUpdatedAt,
	}
}

func recordToMetadata(r *store.MetadataRecord) *NotebookMetadata {
	return &NotebookMetadata{
		NotebookID:    r.NotebookID,
		FolderIDs:     append([]string{}, r.FolderIDs...),
		TagIDs:        append([]string{}, r.TagIDs...),
		Title:         r.Title,
		CustomName:    r.CustomName,
		LastUpdatedAt: r.LastUpdatedAt.UTC(),
	}
}
