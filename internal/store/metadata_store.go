package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

// MetadataRecord represents a row in the notebook_metadata table. The
// notebook id is owned externally; rows are created lazily on first
// reference and never hard-deleted here.
type MetadataRecord struct {
	NotebookID    string      `db:"notebook_id"`
	FolderIDs     JSONStrings `db:"folder_ids"`
	TagIDs        JSONStrings `db:"tag_ids"`
	Title         string      `db:"title"`
	CustomName    string      `db:"custom_name"`
	LastUpdatedAt time.Time   `db:"last_updated_at"`
}

// ListMetadata returns all notebook metadata rows.
func (s *Store) ListMetadata(ctx context.Context) ([]*MetadataRecord, error) {
	var records []*MetadataRecord
	err := s.db.SelectContext(ctx, &records, `SELECT * FROM notebook_metadata ORDER BY notebook_id ASC`)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetMetadata returns the row for notebookID, or ErrNotFound.
func (s *Store) GetMetadata(ctx context.Context, notebookID string) (*MetadataRecord, error) {
	var m MetadataRecord
	err := s.db.GetContext(ctx, &m, `SELECT * FROM notebook_metadata WHERE notebook_id = ?`, notebookID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveMetadata upserts a notebook metadata row.
func (t *Tx) SaveMetadata(ctx context.Context, m *MetadataRecord) error {
	return saveMetadata(ctx, t.tx, m)
}

func saveMetadata(ctx context.Context, e sqlx.ExtContext, m *MetadataRecord) error {
	res, err := e.ExecContext(ctx, `
		UPDATE notebook_metadata SET folder_ids = ?, tag_ids = ?, title = ?, custom_name = ?, last_updated_at = ?
		WHERE notebook_id = ?
	`, m.FolderIDs, m.TagIDs, m.Title, m.CustomName, m.LastUpdatedAt, m.NotebookID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = e.ExecContext(ctx, `
		INSERT INTO notebook_metadata (notebook_id, folder_ids, tag_ids, title, custom_name, last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.NotebookID, m.FolderIDs, m.TagIDs, m.Title, m.CustomName, m.LastUpdatedAt)
	return err
}
