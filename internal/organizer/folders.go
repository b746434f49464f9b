package organizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/notefold/notefold/internal/store"
)

// CreateFolder creates a folder under parentID ("" for a root folder).
func (s *Service) CreateFolder(ctx context.Context, name, parentID, color string) (*Folder, error) {
	var created *Folder
	err := s.mutate(ctx, "create_folder", func(ctx context.Context) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return ErrFolderNameRequired
		}
		if parentID != "" {
			parent, ok := s.folders[parentID]
			if !ok {
				return fmt.Errorf("%w: %s", ErrFolderNotFound, parentID)
			}
			if s.depthLocked(parent.ID)+1 > MaxFolderDepth {
				return ErrFolderDepthExceeded
			}
		}

		f := &Folder{
			ID:          uuid.New().String(),
			Name:        name,
			ParentID:    parentID,
			NotebookIDs: []string{},
			CreatedAt:   s.now(),
			Color:       color,
		}
		err := s.records.WithTx(ctx, func(tx *store.Tx) error {
			return tx.SaveFolder(ctx, folderToRecord(f))
		})
		if err != nil {
			return err
		}
		s.folders[f.ID] = f
		created = f.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateFolder changes a folder's name, color, or parent. The default folder
// rejects every update.
func (s *Service) UpdateFolder(ctx context.Context, id string, upd FolderUpdate) (*Folder, error) {
	var updated *Folder
	err := s.mutate(ctx, "update_folder", func(ctx context.Context) error {
		if id == DefaultFolderID {
			return ErrDefaultFolderProtected
		}
		f, ok := s.folders[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrFolderNotFound, id)
		}

		next := f.clone()
		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return ErrFolderNameRequired
			}
			next.Name = name
		}
		if upd.Color != nil {
			next.Color = *upd.Color
		}
		if upd.ParentID != nil {
			parentID := *upd.ParentID
			if parentID == id {
				return ErrFolderCycle
			}
			if parentID != "" {
				parent, ok := s.folders[parentID]
				if !ok {
					return fmt.Errorf("%w: %s", ErrFolderNotFound, parentID)
				}
				// Walk the new parent chain: finding id means the folder
				// would become a descendant of itself.
				for cur := parent; cur != nil; cur = s.folders[cur.ParentID] {
					if cur.ID == id {
						return ErrFolderCycle
					}
					if cur.ParentID == "" {
						break
					}
				}
				// The whole subtree moves, so the bound must hold for the
				// folder's deepest descendant, not just the folder itself.
				if s.depthLocked(parentID)+s.subtreeHeightLocked(id) > MaxFolderDepth {
					return ErrFolderDepthExceeded
				}
			}
			next.ParentID = parentID
		}

		err := s.records.WithTx(ctx, func(tx *store.Tx) error {
			return tx.SaveFolder(ctx, folderToRecord(next))
		})
		if err != nil {
			return err
		}
		s.folders[id] = next
		updated = next.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteFolder removes a folder and its entire descendant subtree. Notebooks
// referencing any deleted folder are stripped of those references and parked
// in the default folder when nothing else holds them.
func (s *Service) DeleteFolder(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_folder", func(ctx context.Context) error {
		if id == DefaultFolderID {
			return ErrDefaultFolderProtected
		}
		if _, ok := s.folders[id]; !ok {
			return fmt.Errorf("%w: %s", ErrFolderNotFound, id)
		}

		doomed := s.descendantsLocked(id)

		// Compute the post-delete state before touching anything, then write
		// it in one transaction and only swap memory on success.
		nextMetadata := map[string]*NotebookMetadata{}
		for nbID, m := range s.metadata {
			c := m.clone()
			touched := false
			kept := c.FolderIDs[:0:0]
			for _, fid := range c.FolderIDs {
				if doomed[fid] {
					touched = true
					continue
				}
				kept = append(kept, fid)
			}
			if touched {
				if len(kept) == 0 {
					kept = []string{DefaultFolderID}
				}
				c.FolderIDs = kept
				c.LastUpdatedAt = s.now()
			}
			nextMetadata[nbID] = c
		}

		nextFolders := map[string]*Folder{}
		for fid, f := range s.folders {
			if doomed[fid] {
				continue
			}
			nextFolders[fid] = f.clone()
		}

		// Deletion can orphan assignments; rebuild the reverse indices.
		for _, f := range nextFolders {
			f.NotebookIDs = []string{}
		}
		for _, m := range nextMetadata {
			for _, fid := range m.FolderIDs {
				if f, ok := nextFolders[fid]; ok {
					if !containsString(f.NotebookIDs, m.NotebookID) {
						f.NotebookIDs = append(f.NotebookIDs, m.NotebookID)
					}
				}
			}
		}

		doomedIDs := make([]string, 0, len(doomed))
		for fid := range doomed {
			doomedIDs = append(doomedIDs, fid)
		}

		err := s.records.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.DeleteFolders(ctx, doomedIDs); err != nil {
				return err
			}
			for _, f := range nextFolders {
				if err := tx.SaveFolder(ctx, folderToRecord(f)); err != nil {
					return err
				}
			}
			for _, m := range nextMetadata {
				if err := tx.SaveMetadata(ctx, metadataToRecord(m)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		s.folders = nextFolders
		s.metadata = nextMetadata
		s.ensureDefaultFolderLocked()
		s.recalcTagCountsLocked()
		return nil
	})
}

// descendantsLocked returns id plus every folder whose parent chain reaches
// it, found by breadth-first traversal.
func (s *Service) descendantsLocked(id string) map[string]bool {
	doomed := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, f := range s.folders {
			if f.ParentID == cur && !doomed[f.ID] {
				doomed[f.ID] = true
				queue = append(queue, f.ID)
			}
		}
	}
	return doomed
}

// subtreeHeightLocked returns the height of the subtree rooted at id, the
// root itself counting as 1. The visited set guards against a corrupted
// parent cycle.
func (s *Service) subtreeHeightLocked(id string) int {
	type item struct {
		id    string
		depth int
	}
	height := 0
	visited := map[string]bool{id: true}
	queue := []item{{id: id, depth: 1}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth > height {
			height = cur.depth
		}
		for _, f := range s.folders {
			if f.ParentID == cur.id && !visited[f.ID] {
				visited[f.ID] = true
				queue = append(queue, item{id: f.ID, depth: cur.depth + 1})
			}
		}
	}
	return height
}

// depthLocked returns a folder's depth, counting the root level as 1. The
// visited set guards the walk against a corrupted parent cycle.
func (s *Service) depthLocked(id string) int {
	depth := 0
	visited := map[string]bool{}
	for id != "" && !visited[id] {
		visited[id] = true
		f, ok := s.folders[id]
		if !ok {
			break
		}
		depth++
		id = f.ParentID
	}
	return depth
}
