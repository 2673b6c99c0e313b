package store

import "errors"

// Shared error taxonomy for both the REST surface and the realtime
// gateway. Handlers map these onto transport-appropriate failures
// (HTTP status codes, scoped error events) so the two entry paths stay
// consistent.
var (
	// ErrNotFound signals an absent message, group, user or invite code.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals a uniqueness violation: duplicate group name,
	// joining a group the user already belongs to.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized signals a caller lacking the rights for an
	// admin-only operation. Recoverable; reported to the caller.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalid signals a malformed request, e.g. neither (or both) of
	// receiver and group id set for the declared chat type.
	ErrInvalid = errors.New("invalid request")
)
