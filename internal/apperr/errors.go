package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")

	// ErrStoreMissing means the master store file does not exist.
	ErrStoreMissing = errors.New("master store missing")
	// ErrNoHeader means a tabular file has no usable header row.
	ErrNoHeader = errors.New("missing header row")
	// ErrDuplicateID means a merge would store an identifier twice.
	ErrDuplicateID = errors.New("duplicate incident id")
	// ErrMissingID means a record to be stored has no identifier.
	ErrMissingID = errors.New("missing incident id")
	// ErrLocked means another run holds the master store lock.
	ErrLocked = errors.New("master store is locked by another run")
)
