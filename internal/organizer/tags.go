package organizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Tags live only in snapshots; the record store holds folders and notebook
// metadata, so tag mutations skip the record-store transaction and rely on
// snapshot persistence alone.

// CreateTag creates a tag. Names are unique case-insensitively.
func (s *Service) CreateTag(ctx context.Context, name, color string) (*Tag, error) {
	var created *Tag
	err := s.mutate(ctx, "create_tag", func(ctx context.Context) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return ErrTagNameRequired
		}
		for _, t := range s.tags {
			if strings.EqualFold(t.Name, name) {
				return fmt.Errorf("%w: %s", ErrTagNameTaken, name)
			}
		}
		t := &Tag{ID: uuid.New().String(), Name: name, Color: color}
		s.tags[t.ID] = t
		created = t.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateTag changes a tag's name or color, keeping names unique.
func (s *Service) UpdateTag(ctx context.Context, id string, upd TagUpdate) (*Tag, error) {
	var updated *Tag
	err := s.mutate(ctx, "update_tag", func(ctx context.Context) error {
		t, ok := s.tags[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrTagNotFound, id)
		}
		next := t.clone()
		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return ErrTagNameRequired
			}
			for _, other := range s.tags {
				if other.ID != id && strings.EqualFold(other.Name, name) {
					return fmt.Errorf("%w: %s", ErrTagNameTaken, name)
				}
			}
			next.Name = name
		}
		if upd.Color != nil {
			next.Color = *upd.Color
		}
		s.tags[id] = next
		updated = next.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTag removes a tag and strips it from every notebook. Deleting an
// unknown tag is a no-op.
func (s *Service) DeleteTag(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_tag", func(ctx context.Context) error {
		if _, ok := s.tags[id]; !ok {
			return errNoChange
		}

		stripped := map[string]*NotebookMetadata{}
		for nbID, m := range s.metadata {
			if !containsString(m.TagIDs, id) {
				continue
			}
			c := m.clone()
			c.TagIDs = removeString(c.TagIDs, id)
			c.LastUpdatedAt = s.now()
			stripped[nbID] = c
		}

		if len(stripped) > 0 {
			if err := s.saveMetadataTx(ctx, stripped); err != nil {
				return err
			}
			for nbID, m := range stripped {
				s.metadata[nbID] = m
			}
		}

		delete(s.tags, id)
		s.recalcTagCountsLocked()
		return nil
	})
}
