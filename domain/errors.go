package domain

import "errors"

var (
	// ErrUserNotFound means the directory has no record for the subject.
	// Storage failures are never mapped to this error.
	ErrUserNotFound = errors.New("user not found")

	// ErrSessionNotFound covers both unknown and expired session IDs.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMissingSubjectID is returned when a provider profile carries no
	// usable subject identifier. Such profiles are never registered.
	ErrMissingSubjectID = errors.New("profile has no subject identifier")
)
