package repository

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateID is returned when an insert reuses an existing primary key.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrDuplicateEmail is returned when a user insert reuses an email address.
	ErrDuplicateEmail = errors.New("duplicate email")
)
