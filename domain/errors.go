package domain

import "errors"

var (
	// ErrNotFound is returned when a record with the requested identifier does not exist,
	// either on the server or in a local mirror of a collection.
	ErrNotFound = errors.New("record not found")

	// ErrMissingID is returned when an operation needs a server-assigned identifier
	// and the record does not carry one yet.
	ErrMissingID = errors.New("record has no identifier")
)
