package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// FolderRecord represents a row in the folders table. ParentID is empty for
// root folders.
type FolderRecord struct {
	ID          string      `db:"id"`
	Name        string      `db:"name"`
	ParentID    string      `db:"parent_id"`
	Color       string      `db:"color"`
	NotebookIDs JSONStrings `db:"notebook_ids"`
	CreatedAt   time.Time   `db:"created_at"`
}

// ListFolders returns all folder rows ordered by creation time.
func (s *Store) ListFolders(ctx context.Context) ([]*FolderRecord, error) {
	var folders []*FolderRecord
	err := s.db.SelectContext(ctx, &folders, `SELECT * FROM folders ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	return folders, nil
}

// SaveFolder upserts a folder row.
func (t *Tx) SaveFolder(ctx context.Context, f *FolderRecord) error {
	return saveFolder(ctx, t.tx, f)
}

func saveFolder(ctx context.Context, e sqlx.ExtContext, f *FolderRecord) error {
	res, err := e.ExecContext(ctx, `
		UPDATE folders SET name = ?, parent_id = ?, color = ?, notebook_ids = ?, created_at = ?
		WHERE id = ?
	`, f.Name, f.ParentID, f.Color, f.NotebookIDs, f.CreatedAt, f.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = e.ExecContext(ctx, `
		INSERT INTO folders (id, name, parent_id, color, notebook_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, f.ID, f.Name, f.ParentID, f.Color, f.NotebookIDs, f.CreatedAt)
	return err
}

// DeleteFolders removes the given folder rows. Missing ids are not an error.
func (t *Tx) DeleteFolders(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}
