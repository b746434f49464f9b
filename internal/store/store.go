// Package store is the persistent record store: canonical folder and
// notebook-metadata rows kept in SQL. It is the source of truth only until a
// snapshot exists; afterwards the organizer treats it as one replica of the
// snapshot state.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store gives the organizer transactional access to the folders and
// notebook_metadata tables. No caller queries the DB directly.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Tx wraps a transaction spanning both tables. All mutations the organizer
// performs for a single operation go through one Tx.
type Tx struct {
	tx *sqlx.Tx
}

// WithTx runs fn inside a transaction, committing on nil and rolling back on
// error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceAll clears both tables and inserts the given records. Used when an
// authoritative snapshot overwrites whatever the record store held.
func (t *Tx) ReplaceAll(ctx context.Context, folders []*FolderRecord, metadata []*MetadataRecord) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM folders`); err != nil {
		return fmt.Errorf("clear folders: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM notebook_metadata`); err != nil {
		return fmt.Errorf("clear notebook_metadata: %w", err)
	}
	for _, f := range folders {
		if err := t.SaveFolder(ctx, f); err != nil {
			return err
		}
	}
	for _, m := range metadata {
		if err := t.SaveMetadata(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
