package repository

import "errors"

var (
	// ErrNotFound means the row does not exist (only reported to unrestricted scopes).
	ErrNotFound = errors.New("repository: not found")
	// ErrAccessDenied means the scope does not cover the row, or the scope is denied.
	ErrAccessDenied = errors.New("repository: access denied")
	// ErrVersionConflict means the row changed since it was read.
	ErrVersionConflict = errors.New("repository: version conflict")
)
