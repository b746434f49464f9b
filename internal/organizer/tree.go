package organizer

import (
	"context"
	"sort"
	"strings"
)

// Folders returns the folder tree: roots and siblings sorted by creation
// time, depth 1 at the root. The returned nodes are deep copies.
func (s *Service) Folders(ctx context.Context) ([]*FolderNode, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.treeLocked(), nil
}

// FlatFolders returns all folders sorted by creation time, deep-copied.
func (s *Service) FlatFolders(ctx context.Context) ([]*Folder, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Folder, 0, len(s.folders))
	for _, f := range s.folders {
		out = append(out, f.clone())
	}
	sortFolders(out)
	return out, nil
}

// Tags returns all tags sorted by name (case-insensitive), deep-copied.
func (s *Service) Tags(ctx context.Context) ([]*Tag, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedTagsLocked(), nil
}

// NotebookMetadata returns the organization record for a notebook. Unknown
// notebooks yield a synthesized default-folder record; nothing is persisted
// by a read.
func (s *Service) NotebookMetadata(ctx context.Context, notebookID string) (*NotebookMetadata, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.metadata[notebookID]; ok {
		return m.clone(), nil
	}
	return &NotebookMetadata{
		NotebookID: notebookID,
		FolderIDs:  []string{DefaultFolderID},
		TagIDs:     []string{},
	}, nil
}

func (s *Service) treeLocked() []*FolderNode {
	nodes := make(map[string]*FolderNode, len(s.folders))
	for id, f := range s.folders {
		nodes[id] = &FolderNode{Folder: *f.clone()}
	}

	var roots []*FolderNode
	for _, n := range nodes {
		parent, ok := nodes[n.ParentID]
		if n.ParentID == "" || !ok {
			roots = append(roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}

	var assign func(n *FolderNode, depth int)
	assign = func(n *FolderNode, depth int) {
		n.Depth = depth
		sortNodes(n.Children)
		for _, c := range n.Children {
			assign(c, depth+1)
		}
	}
	sortNodes(roots)
	for _, r := range roots {
		assign(r, 1)
	}
	return roots
}

func (s *Service) sortedTagsLocked() []*Tag {
	out := make([]*Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, t.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a == b {
			return out[i].ID < out[j].ID
		}
		return a < b
	})
	return out
}

func sortFolders(folders []*Folder) {
	sort.Slice(folders, func(i, j int) bool {
		if folders[i].CreatedAt.Equal(folders[j].CreatedAt) {
			return folders[i].ID < folders[j].ID
		}
		return folders[i].CreatedAt.Before(folders[j].CreatedAt)
	})
}

func sortNodes(nodes []*FolderNode) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].CreatedAt.Equal(nodes[j].CreatedAt) {
			return nodes[i].ID < nodes[j].ID
		}
		return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
	})
}
