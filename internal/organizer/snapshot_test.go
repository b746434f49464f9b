package organizer_test

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/notefold/notefold/internal/kv"
	"github.com/notefold/notefold/internal/organizer"
	"github.com/notefold/notefold/internal/testutil"
)

const snapshotKey = "notefold.snapshot"

// readState reads everything a caller can observe, normalized through JSON
// so two instances can be compared for deep equality.
func readState(t *testing.T, e *env) (string, string, string) {
	t.Helper()
	ctx := context.Background()
	folders, err := e.svc.FlatFolders(ctx)
	if err != nil {
		t.Fatalf("FlatFolders: %v", err)
	}
	tags, err := e.svc.Tags(ctx)
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	meta, err := e.svc.NotebookMetadata(ctx, "nb-1")
	if err != nil {
		t.Fatalf("NotebookMetadata: %v", err)
	}
	fj, _ := json.Marshal(folders)
	tj, _ := json.Marshal(tags)
	mj, _ := json.Marshal(meta)
	return string(fj), string(tj), string(mj)
}

func TestSnapshotRoundTrip_NewInstanceSeesState(t *testing.T) {
	syncArea := kv.NewMemArea(0)
	localArea := kv.NewMemArea(0)

	a := newEnvWith(t, syncArea, localArea, testutil.NewTestDB(t))
	ctx := context.Background()

	folder, err := a.svc.CreateFolder(ctx, "Shared", "", "#abc")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	tag, err := a.svc.CreateTag(ctx, "ml", "")
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if err := a.svc.MoveNotebook(ctx, "nb-1", folder.ID); err != nil {
		t.Fatalf("MoveNotebook: %v", err)
	}
	if err := a.svc.AssignTag(ctx, "nb-1", tag.ID); err != nil {
		t.Fatalf("AssignTag: %v", err)
	}

	// Fresh instance, empty record store, same backing areas: the snapshot
	// must reproduce the full state and win over the empty record store.
	b := newEnvWith(t, syncArea, localArea, newNamedTestDB(t, "-b"))
	if err := b.svc.Initialize(ctx); err != nil {
		t.Fatalf("Initialize B: %v", err)
	}

	af, at, am := readState(t, a)
	bf, bt, bm := readState(t, b)
	if af != bf {
		t.Errorf("folders differ:\nA: %s\nB: %s", af, bf)
	}
	if at != bt {
		t.Errorf("tags differ:\nA: %s\nB: %s", at, bt)
	}
	if am != bm {
		t.Errorf("metadata differs:\nA: %s\nB: %s", am, bm)
	}

	// The snapshot was written back into B's record store.
	folders, err := b.records.ListFolders(ctx)
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	if len(folders) != 2 {
		t.Errorf("record store folders = %d, want 2", len(folders))
	}
}

func TestQuotaFallback_DowngradesToLocal(t *testing.T) {
	// A sync area too small for any snapshot forces the downgrade already
	// during initialization.
	e := newEnvWith(t, kv.NewMemArea(10), kv.NewMemArea(0), testutil.NewTestDB(t))
	ctx := context.Background()

	if _, err := e.svc.CreateFolder(ctx, "Big Enough", "", ""); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}

	if mode := e.svc.StorageMode(); mode != organizer.ModeLocal {
		t.Errorf("mode = %s, want local", mode)
	}

	local, err := e.localArea.Get(ctx)
	if err != nil {
		t.Fatalf("local Get: %v", err)
	}
	if _, ok := local[snapshotKey]; !ok {
		t.Error("local area is missing the snapshot")
	}
	if string(local["notefold.storageMode"]) != `"local"` {
		t.Errorf("mode flag = %s, want \"local\"", local["notefold.storageMode"])
	}

	syncContents, err := e.syncArea.Get(ctx)
	if err != nil {
		t.Fatalf("sync Get: %v", err)
	}
	if _, ok := syncContents[snapshotKey]; ok {
		t.Error("sync area unexpectedly holds a snapshot")
	}
}

func TestInitialize_HonorsLocalModeFlag(t *testing.T) {
	syncArea := kv.NewMemArea(0)
	localArea := kv.NewMemArea(0)
	ctx := context.Background()

	if err := localArea.Set(ctx, map[string]json.RawMessage{
		"notefold.storageMode": json.RawMessage(`"local"`),
	}); err != nil {
		t.Fatalf("seed mode flag: %v", err)
	}

	e := newEnvWith(t, syncArea, localArea, testutil.NewTestDB(t))
	if _, err := e.svc.CreateFolder(ctx, "Offline", "", ""); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}

	if mode := e.svc.StorageMode(); mode != organizer.ModeLocal {
		t.Errorf("mode = %s, want local", mode)
	}
	syncContents, err := syncArea.Get(ctx)
	if err != nil {
		t.Fatalf("sync Get: %v", err)
	}
	if len(syncContents) != 0 {
		t.Errorf("sync area = %v, want untouched in local mode", syncContents)
	}
}

func TestMirror_SyncWritesBackUpToLocal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.svc.CreateFolder(ctx, "Mirrored", "", ""); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}

	syncContents, err := e.syncArea.Get(ctx, snapshotKey)
	if err != nil {
		t.Fatalf("sync Get: %v", err)
	}
	localContents, err := e.localArea.Get(ctx, snapshotKey)
	if err != nil {
		t.Fatalf("local Get: %v", err)
	}
	if string(syncContents[snapshotKey]) != string(localContents[snapshotKey]) {
		t.Error("local backup does not match the sync snapshot")
	}

	flag, err := e.localArea.Get(ctx, "notefold.storageMode")
	if err != nil {
		t.Fatalf("mode flag Get: %v", err)
	}
	if string(flag["notefold.storageMode"]) != `"sync"` {
		t.Errorf("mode flag = %s, want \"sync\"", flag["notefold.storageMode"])
	}
}

func TestHandleAreaChange_AppliesReplicaSnapshot(t *testing.T) {
	ctx := context.Background()

	// Replica A produces a snapshot with one extra folder.
	a := newEnvWith(t, kv.NewMemArea(0), kv.NewMemArea(0), testutil.NewTestDB(t))
	if _, err := a.svc.CreateFolder(ctx, "From A", "", ""); err != nil {
		t.Fatalf("A CreateFolder: %v", err)
	}
	blob, err := a.syncArea.Get(ctx, snapshotKey)
	if err != nil {
		t.Fatalf("A sync Get: %v", err)
	}

	b := newEnvWith(t, kv.NewMemArea(0), kv.NewMemArea(0), newNamedTestDB(t, "-b"))
	if err := b.svc.Initialize(ctx); err != nil {
		t.Fatalf("B Initialize: %v", err)
	}

	received := make(chan organizer.Change, 1)
	unsubscribe := b.svc.Subscribe(func(c organizer.Change) { received <- c })
	defer unsubscribe()

	// Step past B's own-write suppression window from Initialize.
	b.clock.Advance(time.Second)

	b.svc.HandleAreaChange(map[string]json.RawMessage{snapshotKey: blob[snapshotKey]}, kv.AreaSync)

	flat, err := b.svc.FlatFolders(ctx)
	if err != nil {
		t.Fatalf("B FlatFolders: %v", err)
	}
	found := false
	for _, f := range flat {
		if f.Name == "From A" {
			found = true
		}
	}
	if !found {
		t.Error("replica folder missing after reconciliation")
	}

	select {
	case c := <-received:
		if c.StorageMode != organizer.ModeSync {
			t.Errorf("change mode = %s, want sync", c.StorageMode)
		}
	default:
		t.Error("no change emitted after reconciliation")
	}

	// The replica state replaced B's record store too.
	folders, err := b.records.ListFolders(ctx)
	if err != nil {
		t.Fatalf("B ListFolders: %v", err)
	}
	if len(folders) != 2 {
		t.Errorf("record store folders = %d, want 2", len(folders))
	}
}

func TestHandleAreaChange_SuppressedEchoIgnored(t *testing.T) {
	ctx := context.Background()

	a := newEnvWith(t, kv.NewMemArea(0), kv.NewMemArea(0), testutil.NewTestDB(t))
	foreign := newEnvWith(t, kv.NewMemArea(0), kv.NewMemArea(0), newNamedTestDB(t, "-f"))
	if _, err := foreign.svc.CreateFolder(ctx, "Foreign", "", ""); err != nil {
		t.Fatalf("foreign CreateFolder: %v", err)
	}
	blob, err := foreign.syncArea.Get(ctx, snapshotKey)
	if err != nil {
		t.Fatalf("foreign sync Get: %v", err)
	}

	// A's own mutation opens its suppression window; the notification
	// arriving inside it must be dropped even though the payload differs.
	if _, err := a.svc.CreateFolder(ctx, "Mine", "", ""); err != nil {
		t.Fatalf("A CreateFolder: %v", err)
	}
	a.svc.HandleAreaChange(map[string]json.RawMessage{snapshotKey: blob[snapshotKey]}, kv.AreaSync)

	flat, err := a.svc.FlatFolders(ctx)
	if err != nil {
		t.Fatalf("FlatFolders: %v", err)
	}
	for _, f := range flat {
		if f.Name == "Foreign" {
			t.Fatal("suppressed notification was applied")
		}
	}

	// Past the window the same notification lands.
	a.clock.Advance(time.Second)
	a.svc.HandleAreaChange(map[string]json.RawMessage{snapshotKey: blob[snapshotKey]}, kv.AreaSync)

	flat, err = a.svc.FlatFolders(ctx)
	if err != nil {
		t.Fatalf("FlatFolders after window: %v", err)
	}
	found := false
	for _, f := range flat {
		if f.Name == "Foreign" {
			found = true
		}
	}
	if !found {
		t.Error("notification after the window was not applied")
	}
}

func TestHandleAreaChange_DefaultFolderIdentityPinned(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if err := e.svc.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	e.clock.Advance(time.Second)

	// A replica snapshot carrying a mangled default folder: the folder is
	// protected from every direct mutation, so its identity must also survive
	// reconciliation.
	snap := organizer.Snapshot{
		Version: organizer.SnapshotVersion,
		Folders: []*organizer.Folder{{
			ID:          organizer.DefaultFolderID,
			Name:        "Renamed",
			ParentID:    "nowhere",
			Color:       "#f00",
			NotebookIDs: []string{},
			CreatedAt:   e.clock.Now(),
		}},
		Tags:          []*organizer.Tag{},
		Metadata:      []*organizer.NotebookMetadata{},
		LastUpdatedAt: e.clock.Now(),
		StorageMode:   organizer.ModeSync,
	}
	blob, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	e.svc.HandleAreaChange(map[string]json.RawMessage{snapshotKey: blob}, kv.AreaSync)

	flat, err := e.svc.FlatFolders(ctx)
	if err != nil {
		t.Fatalf("FlatFolders: %v", err)
	}
	if len(flat) != 1 {
		t.Fatalf("folders = %d, want only the default", len(flat))
	}
	def := flat[0]
	if def.Name != organizer.DefaultFolderName || def.ParentID != "" || def.Color != "" {
		t.Errorf("default folder = %+v, want pinned name %q, root parent, no color",
			def, organizer.DefaultFolderName)
	}
}

func TestHandleAreaChange_VersionMismatchIgnored(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.svc.CreateFolder(ctx, "Keep", "", ""); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	e.clock.Advance(time.Second)

	alien := `{"version":99,"folders":[],"tags":[],"metadata":[],"lastUpdatedAt":"2024-03-01T00:00:00Z","storageMode":"sync"}`
	e.svc.HandleAreaChange(map[string]json.RawMessage{snapshotKey: json.RawMessage(alien)}, kv.AreaSync)

	flat, err := e.svc.FlatFolders(ctx)
	if err != nil {
		t.Fatalf("FlatFolders: %v", err)
	}
	if len(flat) != 2 {
		t.Errorf("folders = %d, want state untouched", len(flat))
	}
}

func TestHandleAreaChange_OtherAreasIgnored(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.svc.CreateFolder(ctx, "Keep", "", ""); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	e.clock.Advance(time.Second)

	empty := `{"version":1,"folders":[],"tags":[],"metadata":[],"lastUpdatedAt":"2024-03-01T00:00:00Z","storageMode":"local"}`
	e.svc.HandleAreaChange(map[string]json.RawMessage{snapshotKey: json.RawMessage(empty)}, kv.AreaLocal)

	flat, err := e.svc.FlatFolders(ctx)
	if err != nil {
		t.Fatalf("FlatFolders: %v", err)
	}
	if len(flat) != 2 {
		t.Errorf("folders = %d, want state untouched", len(flat))
	}
}

func TestInitialize_FreshLoadRepairsState(t *testing.T) {
	database := testutil.NewTestDB(t)
	e := newEnvWith(t, kv.NewMemArea(0), kv.NewMemArea(0), database)
	ctx := context.Background()

	// Seed the record store directly: a notebook pointing at a folder that
	// no longer exists, with no snapshot anywhere.
	_, err := database.Exec(`INSERT INTO notebook_metadata (notebook_id, folder_ids, tag_ids, title, custom_name, last_updated_at)
		VALUES ('nb-1', '["ghost"]', '["dangling-tag"]', 'T', '', ?)`, time.Now().UTC())
	if err != nil {
		t.Fatalf("seed metadata: %v", err)
	}

	if err := e.svc.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	meta, err := e.svc.NotebookMetadata(ctx, "nb-1")
	if err != nil {
		t.Fatalf("NotebookMetadata: %v", err)
	}
	if !reflect.DeepEqual(meta.FolderIDs, []string{organizer.DefaultFolderID}) {
		t.Errorf("folder ids = %v, want reassigned to default", meta.FolderIDs)
	}

	flat, err := e.svc.FlatFolders(ctx)
	if err != nil {
		t.Fatalf("FlatFolders: %v", err)
	}
	if len(flat) != 1 || !contains(flat[0].NotebookIDs, "nb-1") {
		t.Errorf("default folder = %+v, want nb-1 parked in it", flat[0])
	}

	// The repaired state became the first snapshot.
	blob, err := e.syncArea.Get(ctx, snapshotKey)
	if err != nil {
		t.Fatalf("sync Get: %v", err)
	}
	if _, ok := blob[snapshotKey]; !ok {
		t.Error("no snapshot persisted after fresh load")
	}
}

func TestSubscribe_PanickingListenerDoesNotBlockOthers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.svc.Subscribe(func(organizer.Change) { panic("listener bug") })
	received := make(chan organizer.Change, 1)
	e.svc.Subscribe(func(c organizer.Change) {
		select {
		case received <- c:
		default:
		}
	})

	if _, err := e.svc.CreateFolder(ctx, "Observable", "", ""); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}

	select {
	case c := <-received:
		if len(c.Folders) != 2 {
			t.Errorf("change folders = %d, want 2 roots", len(c.Folders))
		}
	default:
		t.Error("second listener did not receive the change")
	}
}
