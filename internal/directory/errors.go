package directory

import "gridd/pkg/types"

// sessionNotFoundError signals an unknown session id for 404 mapping.
type sessionNotFoundError struct{ id types.SessionID }

func (e sessionNotFoundError) Error() string { return "session not found: " + string(e.id) }

func ErrSessionNotFound(id types.SessionID) error { return sessionNotFoundError{id: id} }

// IsSessionNotFound reports whether err indicates an unknown session id.
func IsSessionNotFound(err error) bool {
	_, ok := err.(sessionNotFoundError)
	return ok
}

// duplicateSessionError signals an Add for an id that is already bound.
type duplicateSessionError struct{ id types.SessionID }

func (e duplicateSessionError) Error() string { return "session already exists: " + string(e.id) }

func ErrDuplicateSession(id types.SessionID) error { return duplicateSessionError{id: id} }

// IsDuplicateSession reports whether err indicates a duplicate session id.
func IsDuplicateSession(err error) bool {
	_, ok := err.(duplicateSessionError)
	return ok
}

// invalidSessionError signals a malformed session record.
type invalidSessionError struct{ msg string }

func (e invalidSessionError) Error() string { return "invalid session: " + e.msg }

func ErrInvalidSession(msg string) error { return invalidSessionError{msg: msg} }

// IsInvalidSession reports whether err indicates a malformed session record.
func IsInvalidSession(err error) bool {
	_, ok := err.(invalidSessionError)
	return ok
}
