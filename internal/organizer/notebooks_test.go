package organizer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/notefold/notefold/internal/organizer"
)

func TestMoveNotebook_SingleFolderMembership(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a, err := e.svc.CreateFolder(ctx, "A", "", "")
	if err != nil {
		t.Fatalf("create A: %v", err)
	}
	b, err := e.svc.CreateFolder(ctx, "B", "", "")
	if err != nil {
		t.Fatalf("create B: %v", err)
	}

	if err := e.svc.MoveNotebook(ctx, "nb-1", a.ID); err != nil {
		t.Fatalf("move to A: %v", err)
	}
	if err := e.svc.MoveNotebook(ctx, "nb-1", b.ID); err != nil {
		t.Fatalf("move to B: %v", err)
	}

	meta, err := e.svc.NotebookMetadata(ctx, "nb-1")
	if err != nil {
		t.Fatalf("NotebookMetadata: %v", err)
	}
	if len(meta.FolderIDs) != 1 || meta.FolderIDs[0] != b.ID {
		t.Errorf("folder ids = %v, want [%s]", meta.FolderIDs, b.ID)
	}

	flat, err := e.svc.FlatFolders(ctx)
	if err != nil {
		t.Fatalf("FlatFolders: %v", err)
	}
	for _, f := range flat {
		holds := contains(f.NotebookIDs, "nb-1")
		if f.ID == b.ID && !holds {
			t.Errorf("folder B does not hold nb-1")
		}
		if f.ID != b.ID && holds {
			t.Errorf("folder %s unexpectedly holds nb-1", f.ID)
		}
	}
}

func TestMoveNotebook_EmptyTargetMeansDefault(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if err := e.svc.MoveNotebook(ctx, "nb-1", ""); err != nil {
		t.Fatalf("MoveNotebook: %v", err)
	}

	meta, err := e.svc.NotebookMetadata(ctx, "nb-1")
	if err != nil {
		t.Fatalf("NotebookMetadata: %v", err)
	}
	if len(meta.FolderIDs) != 1 || meta.FolderIDs[0] != organizer.DefaultFolderID {
		t.Errorf("folder ids = %v, want [%s]", meta.FolderIDs, organizer.DefaultFolderID)
	}
}

func TestMoveNotebook_UnknownFolderRejected(t *testing.T) {
	e := newEnv(t)

	err := e.svc.MoveNotebook(context.Background(), "nb-1", "missing")
	if !errors.Is(err, organizer.ErrFolderNotFound) {
		t.Fatalf("MoveNotebook = %v, want ErrFolderNotFound", err)
	}
}

func TestMoveNotebook_EmptyNotebookRejected(t *testing.T) {
	e := newEnv(t)

	err := e.svc.MoveNotebook(context.Background(), "  ", "")
	if !errors.Is(err, organizer.ErrNotebookIDRequired) {
		t.Fatalf("MoveNotebook = %v, want ErrNotebookIDRequired", err)
	}
}

func TestBulkMoveNotebooks(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	dest, err := e.svc.CreateFolder(ctx, "Dest", "", "")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}

	ids := []string{"nb-1", "nb-2", "nb-3"}
	if err := e.svc.BulkMoveNotebooks(ctx, ids, dest.ID); err != nil {
		t.Fatalf("BulkMoveNotebooks: %v", err)
	}

	for _, id := range ids {
		meta, err := e.svc.NotebookMetadata(ctx, id)
		if err != nil {
			t.Fatalf("NotebookMetadata %s: %v", id, err)
		}
		if len(meta.FolderIDs) != 1 || meta.FolderIDs[0] != dest.ID {
			t.Errorf("%s folder ids = %v, want [%s]", id, meta.FolderIDs, dest.ID)
		}
	}

	flat, err := e.svc.FlatFolders(ctx)
	if err != nil {
		t.Fatalf("FlatFolders: %v", err)
	}
	for _, f := range flat {
		if f.ID == dest.ID && len(f.NotebookIDs) != 3 {
			t.Errorf("dest notebooks = %v, want 3", f.NotebookIDs)
		}
	}
}

func TestBulkMoveNotebooks_InvalidIDLeavesBatchUnapplied(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	dest, err := e.svc.CreateFolder(ctx, "Dest", "", "")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}

	err = e.svc.BulkMoveNotebooks(ctx, []string{"nb-1", "   "}, dest.ID)
	if !errors.Is(err, organizer.ErrNotebookIDRequired) {
		t.Fatalf("BulkMoveNotebooks = %v, want ErrNotebookIDRequired", err)
	}

	// The batch failed validation, so nb-1 must not have moved.
	meta, err := e.svc.NotebookMetadata(ctx, "nb-1")
	if err != nil {
		t.Fatalf("NotebookMetadata: %v", err)
	}
	if len(meta.FolderIDs) != 1 || meta.FolderIDs[0] != organizer.DefaultFolderID {
		t.Errorf("folder ids = %v, want untouched default", meta.FolderIDs)
	}

	flat, err := e.svc.FlatFolders(ctx)
	if err != nil {
		t.Fatalf("FlatFolders: %v", err)
	}
	for _, f := range flat {
		if f.ID == dest.ID && len(f.NotebookIDs) != 0 {
			t.Errorf("dest notebooks = %v, want none", f.NotebookIDs)
		}
	}

	records, err := e.records.ListMetadata(ctx)
	if err != nil {
		t.Fatalf("ListMetadata: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("metadata rows = %d, want none persisted", len(records))
	}
}

func TestNotebookMetadata_UnknownSynthesizesDefault(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	meta, err := e.svc.NotebookMetadata(ctx, "never-seen")
	if err != nil {
		t.Fatalf("NotebookMetadata: %v", err)
	}
	if len(meta.FolderIDs) != 1 || meta.FolderIDs[0] != organizer.DefaultFolderID {
		t.Errorf("folder ids = %v, want default", meta.FolderIDs)
	}

	// Reads never persist: the default folder's notebook list stays empty.
	flat, err := e.svc.FlatFolders(ctx)
	if err != nil {
		t.Fatalf("FlatFolders: %v", err)
	}
	if len(flat[0].NotebookIDs) != 0 {
		t.Errorf("default folder notebooks = %v, want none", flat[0].NotebookIDs)
	}
}

func TestUpdateNotebookMetadata_DisplayName(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	title := "Imported Title"
	meta, err := e.svc.UpdateNotebookMetadata(ctx, "nb-1", organizer.MetadataUpdate{Title: &title})
	if err != nil {
		t.Fatalf("UpdateNotebookMetadata: %v", err)
	}
	if meta.DisplayName() != "Imported Title" {
		t.Errorf("display = %q, want title", meta.DisplayName())
	}

	custom := "My Name"
	meta, err = e.svc.UpdateNotebookMetadata(ctx, "nb-1", organizer.MetadataUpdate{CustomName: &custom})
	if err != nil {
		t.Fatalf("UpdateNotebookMetadata custom: %v", err)
	}
	if meta.DisplayName() != "My Name" {
		t.Errorf("display = %q, custom name must win", meta.DisplayName())
	}
	if meta.Title != "Imported Title" {
		t.Errorf("title = %q, want preserved", meta.Title)
	}

	// Lazily created record lands in the default folder.
	if len(meta.FolderIDs) != 1 || meta.FolderIDs[0] != organizer.DefaultFolderID {
		t.Errorf("folder ids = %v, want default", meta.FolderIDs)
	}
}
