package identity

import "errors"

var (
	// ErrNotFound is returned when no patient matches the credentials.
	ErrNotFound = errors.New("identity: patient not found")

	// ErrAmbiguous is returned when more than one patient matches.
	ErrAmbiguous = errors.New("identity: credentials match more than one patient")

	// ErrStoreUnavailable is returned when the patient store cannot be reached.
	ErrStoreUnavailable = errors.New("identity: patient store unavailable")
)
