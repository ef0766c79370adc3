package queue

import (
	"fmt"
	"time"
)

// requestTimeoutError signals an exhausted wait budget for 408 mapping.
type requestTimeoutError struct{ waited time.Duration }

func (e requestTimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s in backlog", e.waited.Round(time.Millisecond))
}

func ErrRequestTimeout(waited time.Duration) error { return requestTimeoutError{waited: waited} }

// IsTimeout reports whether err indicates the request ran out of wait budget.
func IsTimeout(err error) bool {
	_, ok := err.(requestTimeoutError)
	return ok
}

// backlogFullError signals backlog overflow for 429 mapping.
type backlogFullError struct{ size int }

func (e backlogFullError) Error() string { return fmt.Sprintf("backlog full: %d waiting", e.size) }

func ErrBacklogFull(size int) error { return backlogFullError{size: size} }

// IsBacklogFull reports whether err indicates backpressure (return 429).
func IsBacklogFull(err error) bool {
	_, ok := err.(backlogFullError)
	return ok
}

// queueClosedError signals enqueue or resolution after shutdown began.
type queueClosedError struct{}

func (queueClosedError) Error() string { return "queue closed" }

func ErrQueueClosed() error { return queueClosedError{} }

// IsQueueClosed reports whether err indicates the backlog was shut down.
func IsQueueClosed(err error) bool {
	_, ok := err.(queueClosedError)
	return ok
}

// canceledError signals the caller abandoned the request.
type canceledError struct{ cause error }

func (e canceledError) Error() string { return "request canceled: " + e.cause.Error() }

func ErrCanceled(cause error) error { return canceledError{cause: cause} }

// IsCanceled reports whether err indicates a caller-side abandon.
func IsCanceled(err error) bool {
	_, ok := err.(canceledError)
	return ok
}

// invalidRequestError signals a malformed enqueue for 400 mapping.
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return "invalid request: " + e.msg }

func ErrInvalidRequest(msg string) error { return invalidRequestError{msg: msg} }

// IsInvalidRequest reports whether err indicates a malformed request.
func IsInvalidRequest(err error) bool {
	_, ok := err.(invalidRequestError)
	return ok
}
