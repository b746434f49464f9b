package organizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/notefold/notefold/internal/store"
)

// MoveNotebook places a notebook in exactly one folder. An empty folderID
// moves it to the default folder. The metadata record is created lazily on
// first reference.
func (s *Service) MoveNotebook(ctx context.Context, notebookID, folderID string) error {
	return s.mutate(ctx, "move_notebook", func(ctx context.Context) error {
		return s.moveNotebooksLocked(ctx, []string{notebookID}, folderID)
	})
}

// BulkMoveNotebooks moves several notebooks to the same folder as one atomic
// batch: every id is validated before anything changes, and all moves land in
// a single record-store transaction.
func (s *Service) BulkMoveNotebooks(ctx context.Context, notebookIDs []string, folderID string) error {
	return s.mutate(ctx, "bulk_move_notebooks", func(ctx context.Context) error {
		return s.moveNotebooksLocked(ctx, notebookIDs, folderID)
	})
}

func (s *Service) moveNotebooksLocked(ctx context.Context, notebookIDs []string, folderID string) error {
	if folderID == "" {
		folderID = DefaultFolderID
	}
	if _, ok := s.folders[folderID]; !ok {
		return fmt.Errorf("%w: %s", ErrFolderNotFound, folderID)
	}
	trimmed := make([]string, 0, len(notebookIDs))
	for _, nbID := range notebookIDs {
		nbID = strings.TrimSpace(nbID)
		if nbID == "" {
			return ErrNotebookIDRequired
		}
		trimmed = append(trimmed, nbID)
	}

	// Stage every change on copies; nothing below this point fails validation,
	// so memory is only swapped after the transaction commits.
	nextMetadata := map[string]*NotebookMetadata{}
	touched := map[string]*Folder{}
	folderCopy := func(id string) *Folder {
		if f, ok := touched[id]; ok {
			return f
		}
		f := s.folders[id].clone()
		touched[id] = f
		return f
	}
	for _, nbID := range trimmed {
		meta, ok := s.metadata[nbID]
		if ok {
			meta = meta.clone()
		} else {
			meta = &NotebookMetadata{NotebookID: nbID, FolderIDs: []string{}, TagIDs: []string{}}
		}
		for _, prev := range meta.FolderIDs {
			if prev == folderID {
				continue
			}
			if _, ok := s.folders[prev]; ok {
				c := folderCopy(prev)
				c.NotebookIDs = removeString(c.NotebookIDs, nbID)
			}
		}
		meta.FolderIDs = []string{folderID}
		meta.LastUpdatedAt = s.now()
		nextMetadata[nbID] = meta

		target := folderCopy(folderID)
		if !containsString(target.NotebookIDs, nbID) {
			target.NotebookIDs = append(target.NotebookIDs, nbID)
		}
	}

	err := s.records.WithTx(ctx, func(tx *store.Tx) error {
		for _, m := range nextMetadata {
			if err := tx.SaveMetadata(ctx, metadataToRecord(m)); err != nil {
				return err
			}
		}
		for _, f := range touched {
			if err := tx.SaveFolder(ctx, folderToRecord(f)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for id, m := range nextMetadata {
		s.metadata[id] = m
	}
	for id, f := range touched {
		s.folders[id] = f
	}
	return nil
}

// AssignTag adds a tag to a notebook. Idempotent: assigning an already-held
// tag still persists and emits but changes nothing.
func (s *Service) AssignTag(ctx context.Context, notebookID, tagID string) error {
	return s.mutate(ctx, "assign_tag", func(ctx context.Context) error {
		notebookID = strings.TrimSpace(notebookID)
		if notebookID == "" {
			return ErrNotebookIDRequired
		}
		if _, ok := s.tags[tagID]; !ok {
			return fmt.Errorf("%w: %s", ErrTagNotFound, tagID)
		}

		meta, defaultFolder := s.lazyMetadataLocked(notebookID)
		if !containsString(meta.TagIDs, tagID) {
			if len(meta.TagIDs) >= MaxTagsPerNotebook {
				return ErrTagLimitExceeded
			}
			meta.TagIDs = append(meta.TagIDs, tagID)
		}
		meta.LastUpdatedAt = s.now()

		if err := s.saveNotebookTx(ctx, meta, defaultFolder); err != nil {
			return err
		}
		s.metadata[notebookID] = meta
		if defaultFolder != nil {
			s.folders[DefaultFolderID] = defaultFolder
		}
		s.recalcTagCountsLocked()
		return nil
	})
}

// RemoveTag removes a tag from a notebook. Unknown tags and already-absent
// assignments are fine.
func (s *Service) RemoveTag(ctx context.Context, notebookID, tagID string) error {
	return s.mutate(ctx, "remove_tag", func(ctx context.Context) error {
		notebookID = strings.TrimSpace(notebookID)
		if notebookID == "" {
			return ErrNotebookIDRequired
		}

		meta, defaultFolder := s.lazyMetadataLocked(notebookID)
		meta.TagIDs = removeString(meta.TagIDs, tagID)
		meta.LastUpdatedAt = s.now()

		if err := s.saveNotebookTx(ctx, meta, defaultFolder); err != nil {
			return err
		}
		s.metadata[notebookID] = meta
		if defaultFolder != nil {
			s.folders[DefaultFolderID] = defaultFolder
		}
		s.recalcTagCountsLocked()
		return nil
	})
}

// UpdateNotebookMetadata sets the externally sourced title and/or the user's
// display-name override.
func (s *Service) UpdateNotebookMetadata(ctx context.Context, notebookID string, upd MetadataUpdate) (*NotebookMetadata, error) {
	var updated *NotebookMetadata
	err := s.mutate(ctx, "update_notebook_metadata", func(ctx context.Context) error {
		notebookID = strings.TrimSpace(notebookID)
		if notebookID == "" {
			return ErrNotebookIDRequired
		}

		meta, defaultFolder := s.lazyMetadataLocked(notebookID)
		if upd.Title != nil {
			meta.Title = *upd.Title
		}
		if upd.CustomName != nil {
			meta.CustomName = *upd.CustomName
		}
		meta.LastUpdatedAt = s.now()

		if err := s.saveNotebookTx(ctx, meta, defaultFolder); err != nil {
			return err
		}
		s.metadata[notebookID] = meta
		if defaultFolder != nil {
			s.folders[DefaultFolderID] = defaultFolder
		}
		updated = meta.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// lazyMetadataLocked returns a working copy of the notebook's metadata,
// synthesizing a default-folder record for a previously-unknown notebook.
// When the record is new the returned folder is the updated default folder
// copy that must be saved alongside it; otherwise it is nil.
func (s *Service) lazyMetadataLocked(notebookID string) (*NotebookMetadata, *Folder) {
	if m, ok := s.metadata[notebookID]; ok {
		return m.clone(), nil
	}
	meta := &NotebookMetadata{
		NotebookID: notebookID,
		FolderIDs:  []string{DefaultFolderID},
		TagIDs:     []string{},
	}
	def := s.folders[DefaultFolderID].clone()
	if !containsString(def.NotebookIDs, notebookID) {
		def.NotebookIDs = append(def.NotebookIDs, notebookID)
	}
	return meta, def
}

// saveNotebookTx persists a metadata record and, when the record was just
// created, the default folder that absorbed the notebook.
func (s *Service) saveNotebookTx(ctx context.Context, meta *NotebookMetadata, defaultFolder *Folder) error {
	return s.records.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.SaveMetadata(ctx, metadataToRecord(meta)); err != nil {
			return err
		}
		if defaultFolder != nil {
			if err := tx.SaveFolder(ctx, folderToRecord(defaultFolder)); err != nil {
				return err
			}
		}
		return nil
	})
}

// saveMetadataTx persists a batch of metadata records in one transaction.
func (s *Service) saveMetadataTx(ctx context.Context, records map[string]*NotebookMetadata) error {
	return s.records.WithTx(ctx, func(tx *store.Tx) error {
		for _, m := range records {
			if err := tx.SaveMetadata(ctx, metadataToRecord(m)); err != nil {
				return err
			}
		}
		return nil
	})
}
