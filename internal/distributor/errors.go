package distributor

import (
	"errors"

	"gridd/pkg/types"
)

// sessionNotCreatedError signals the grid could not place the session.
type sessionNotCreatedError struct{ reason string }

func (e sessionNotCreatedError) Error() string { return "session not created: " + e.reason }

func ErrSessionNotCreated(reason string) error { return sessionNotCreatedError{reason: reason} }

// IsSessionNotCreated reports whether err indicates a failed placement.
func IsSessionNotCreated(err error) bool {
	_, ok := err.(sessionNotCreatedError)
	return ok
}

// invalidRequestError signals a malformed session request for 400 mapping.
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return "invalid request: " + e.msg }

func ErrInvalidRequest(msg string) error { return invalidRequestError{msg: msg} }

// IsInvalidRequest reports whether err indicates a malformed request.
func IsInvalidRequest(err error) bool {
	_, ok := err.(invalidRequestError)
	return ok
}

// nodeNotFoundError signals an operation on an unregistered node.
type nodeNotFoundError struct{ id types.NodeID }

func (e nodeNotFoundError) Error() string { return "node not found: " + string(e.id) }

func ErrNodeNotFound(id types.NodeID) error { return nodeNotFoundError{id: id} }

// IsNodeNotFound reports whether err indicates an unregistered node id.
func IsNodeNotFound(err error) bool {
	_, ok := err.(nodeNotFoundError)
	return ok
}

// invalidNodeError signals a registration the distributor cannot accept.
type invalidNodeError struct{ msg string }

func (e invalidNodeError) Error() string { return "invalid node: " + e.msg }

func ErrInvalidNode(msg string) error { return invalidNodeError{msg: msg} }

// IsInvalidNode reports whether err indicates a rejected registration.
func IsInvalidNode(err error) bool {
	_, ok := err.(invalidNodeError)
	return ok
}

// closedError signals use after Close for 503 mapping.
type closedError struct{}

func (closedError) Error() string { return "distributor closed" }

func ErrClosed() error { return closedError{} }

// IsClosed reports whether err indicates the distributor was shut down.
func IsClosed(err error) bool {
	_, ok := err.(closedError)
	return ok
}

// Internal scheduling outcomes; these never escape the package.
var (
	errNoCandidate  = errors.New("no candidate node")
	errNodeVanished = errors.New("node evicted mid-placement")
)
