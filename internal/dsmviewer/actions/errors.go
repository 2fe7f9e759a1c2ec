package actions

import "errors"

var (
	// ErrNothingToUndo is returned by Undo when no action has been applied.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo is returned by Redo when the cursor is at the end of the history.
	ErrNothingToRedo = errors.New("nothing to redo")

	// ErrUnknownAction is returned for a record whose type tag has no registered factory.
	ErrUnknownAction = errors.New("unknown action")

	// ErrInvalidRecord is returned when a persisted record is missing a key or
	// references an element or relation that does not exist.
	ErrInvalidRecord = errors.New("invalid action record")

	// ErrNoSibling is returned when an element cannot move up or down any further.
	ErrNoSibling = errors.New("no sibling")

	// ErrSnapshotNotFound is returned when undoing to a snapshot that is not in the applied history.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)
