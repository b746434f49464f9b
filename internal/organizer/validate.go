package organizer

import (
	"errors"
	"fmt"
)

// Validation errors are raised before any store interaction; a failed
// validation never mutates state, reaches a backing store, or emits a change.
var (
	// ErrFolderNameRequired is returned when a folder name is empty after trimming.
	ErrFolderNameRequired = errors.New("folder name is required")

	// ErrFolderNotFound is returned when a folder id does not exist.
	ErrFolderNotFound = errors.New("folder not found")

	// ErrFolderDepthExceeded is returned when an operation would push a folder
	// past MaxFolderDepth.
	ErrFolderDepthExceeded = fmt.Errorf("folders cannot exceed depth of %d", MaxFolderDepth)

	// ErrFolderCycle is returned when a reparent would make a folder its own
	// ancestor.
	ErrFolderCycle = errors.New("a folder cannot be moved inside itself or its descendants")

	// ErrDefaultFolderProtected is returned on any attempt to rename, recolor,
	// reparent, or delete the default folder.
	ErrDefaultFolderProtected = errors.New("the default folder cannot be modified or deleted")

	// ErrTagNameRequired is returned when a tag name is empty after trimming.
	ErrTagNameRequired = errors.New("tag name is required")

	// ErrTagNameTaken is returned when a tag name collides case-insensitively
	// with an existing tag.
	ErrTagNameTaken = errors.New("a tag with this name already exists")

	// ErrTagNotFound is returned when a tag id does not exist.
	ErrTagNotFound = errors.New("tag not found")

	// ErrTagLimitExceeded is returned when assigning a tag would push a
	// notebook past MaxTagsPerNotebook.
	ErrTagLimitExceeded = fmt.Errorf("notebooks cannot have more than %d tags", MaxTagsPerNotebook)

	// ErrNotebookIDRequired is returned when a notebook id is empty.
	ErrNotebookIDRequired = errors.New("notebook id is required")
)

// errNoChange short-circuits the mutation contract for idempotent no-ops:
// the operation succeeds without a store write, snapshot, or emission.
var errNoChange = errors.New("no change")
