package node

import "gridd/pkg/types"

// noCapacityError signals that no free slot can take the request.
type noCapacityError struct{ msg string }

func (e noCapacityError) Error() string { return "no capacity: " + e.msg }

func ErrNoCapacity(msg string) error { return noCapacityError{msg: msg} }

// IsNoCapacity reports whether err means the node cannot take the session.
func IsNoCapacity(err error) bool {
	_, ok := err.(noCapacityError)
	return ok
}

// sessionNotFoundError signals a stop for a session this node does not run.
type sessionNotFoundError struct{ id types.SessionID }

func (e sessionNotFoundError) Error() string { return "session not found: " + string(e.id) }

func ErrSessionNotFound(id types.SessionID) error { return sessionNotFoundError{id: id} }

// IsSessionNotFound reports whether err indicates an unknown session id.
func IsSessionNotFound(err error) bool {
	_, ok := err.(sessionNotFoundError)
	return ok
}

// unreachableError signals a failed call to a remote node.
type unreachableError struct {
	uri string
	err error
}

func (e unreachableError) Error() string { return "node unreachable: " + e.uri + ": " + e.err.Error() }

func (e unreachableError) Unwrap() error { return e.err }

func ErrUnreachable(uri string, err error) error { return unreachableError{uri: uri, err: err} }

// IsUnreachable reports whether err means the remote node could not be
// reached at all.
func IsUnreachable(err error) bool {
	_, ok := err.(unreachableError)
	return ok
}
