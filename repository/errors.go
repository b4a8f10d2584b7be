package repository

import "errors"

var (
	// ErrNotFound means no record has the requested id.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateName means the insert or update would break name uniqueness.
	ErrDuplicateName = errors.New("repository: duplicate table name")
	// ErrStoreUnavailable wraps driver and connection failures.
	ErrStoreUnavailable = errors.New("repository: store unavailable")
)
