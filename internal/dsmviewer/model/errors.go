package model

import "errors"

// Sentinel errors for model operations.
var (
	// ErrNotFound is returned when an element or relation id is unknown or not live.
	ErrNotFound = errors.New("not found")

	// ErrParentNotFound is returned when an element is added under a parent that does not exist.
	// During import this fails the single element; the import continues for the others.
	ErrParentNotFound = errors.New("parent not found")

	// ErrCycleDetected is returned when a reparent would make an element its own ancestor.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrNotDeleted is returned when restoring an element or relation that is not soft-deleted.
	ErrNotDeleted = errors.New("not deleted")

	// ErrOrphanedParent is returned when restoring an element whose remembered parent is no longer live.
	ErrOrphanedParent = errors.New("orphaned parent")

	// ErrInvalidPermutation is returned when a reorder sequence is not a bijection over the children.
	ErrInvalidPermutation = errors.New("invalid permutation")

	// ErrWeightUnderflow signals an aggregated weight that would drop below zero.
	// It always indicates an aggregation bug, never a user error.
	ErrWeightUnderflow = errors.New("weight underflow")

	// ErrDuplicateID is returned when importing an element or relation whose id is already in use.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrInvalidName is returned for empty names or empty segments in a full name.
	ErrInvalidName = errors.New("invalid name")

	// ErrInvalidWeight is returned for negative relation weights.
	ErrInvalidWeight = errors.New("invalid weight")
)
