package catalogstore

import "errors"

// Domain errors for the catalog store.
var (
	// ErrNoRevision is returned when no catalog has been stored yet.
	ErrNoRevision = errors.New("catalogstore: no catalog revision stored")

	// ErrRevisionNotFound is returned when a revision ID does not exist.
	ErrRevisionNotFound = errors.New("catalogstore: revision not found")
)
