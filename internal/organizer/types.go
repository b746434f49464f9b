package organizer

import "time"

// StorageMode selects which key-value area snapshots are written to first.
type StorageMode string

const (
	ModeSync  StorageMode = "sync"
	ModeLocal StorageMode = "local"
)

const (
	// MaxFolderDepth bounds the folder tree; the root level is depth 1.
	MaxFolderDepth = 3

	// MaxTagsPerNotebook bounds the tag set on a single notebook.
	MaxTagsPerNotebook = 10

	// SnapshotVersion is the snapshot schema version. Snapshots carrying any
	// other version are ignored wholesale.
	SnapshotVersion = 1

	// DefaultFolderID identifies the always-present root folder that houses
	// notebooks with no other assignment. It cannot be renamed, recolored,
	// reparented, or deleted.
	DefaultFolderID   = "default"
	DefaultFolderName = "My Notebooks"

	snapshotKey = "notefold.snapshot"
	modeKey     = "notefold.storageMode"
)

// Folder is a node in the folder tree. ParentID is empty for root folders.
type Folder struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ParentID    string    `json:"parentId"`
	NotebookIDs []string  `json:"notebookIds"`
	CreatedAt   time.Time `json:"createdAt"`
	Color       string    `json:"color"`
}

func (f *Folder) clone() *Folder {
	c := *f
	c.NotebookIDs = append([]string(nil), f.NotebookIDs...)
	return &c
}

// Tag is an entry in the flat tag namespace. Count is derived: the number of
// notebook metadata records currently referencing the tag.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Count int    `json:"count"`
}

func (t *Tag) clone() *Tag {
	c := *t
	return &c
}

// NotebookMetadata holds per-notebook organization state. The notebook id
// itself is owned externally.
type NotebookMetadata struct {
	NotebookID    string    `json:"notebookId"`
	FolderIDs     []string  `json:"folderIds"`
	TagIDs        []string  `json:"tagIds"`
	Title         string    `json:"title"`
	CustomName    string    `json:"customName"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

func (m *NotebookMetadata) clone() *NotebookMetadata {
	c := *m
	c.FolderIDs = append([]string(nil), m.FolderIDs...)
	c.TagIDs = append([]string(nil), m.TagIDs...)
	return &c
}

// DisplayName returns the user override when set, falling back to the
// externally sourced title.
func (m *NotebookMetadata) DisplayName() string {
	if m.CustomName != "" {
		return m.CustomName
	}
	return m.Title
}

// Snapshot is the unit of persistence and replication: the complete
// folders/tags/metadata state serialized as one blob.
type Snapshot struct {
	Version       int                 `json:"version"`
	Folders       []*Folder           `json:"folders"`
	Tags          []*Tag              `json:"tags"`
	Metadata      []*NotebookMetadata `json:"metadata"`
	LastUpdatedAt time.Time           `json:"lastUpdatedAt"`
	StorageMode   StorageMode         `json:"storageMode"`
}

// FolderNode is a folder positioned in the tree. Depth is 1 for roots.
type FolderNode struct {
	Folder
	Depth    int           `json:"depth"`
	Children []*FolderNode `json:"children"`
}

// Change is delivered to subscribers after every successful mutation or
// applied reconciliation.
type Change struct {
	Folders     []*FolderNode
	Tags        []*Tag
	StorageMode StorageMode
}

// FolderUpdate carries optional field changes for UpdateFolder. Nil fields
// are left untouched.
type FolderUpdate struct {
	Name     *string
	Color    *string
	ParentID *string
}

// TagUpdate carries optional field changes for UpdateTag.
type TagUpdate struct {
	Name  *string
	Color *string
}

// MetadataUpdate carries optional field changes for UpdateNotebookMetadata.
type MetadataUpdate struct {
	Title      *string
	CustomName *string
}
