package queue

import "context"

// Directive names a handler can return alongside a failure to steer the
// failure-path decision in §4.3 of the protocol this package implements.
type Directive string

const (
	// DirectiveBlock archives the task and blocks the group immediately,
	// with no retry regardless of retries remaining.
	DirectiveBlock Directive = "block"
	// DirectiveBlockAfterRetry retries up to the queue's retry limit, then
	// archives and blocks the group once retries are exhausted.
	DirectiveBlockAfterRetry Directive = "block-after-retry"
)

// HandlerError is returned by a Handler on failure. Do selects the
// failure-path branch; leaving it empty selects the non-blocking branch
// (retry up to the limit, then archive and continue draining the group).
type HandlerError struct {
	Message string
	Do      Directive
}

func (e *HandlerError) Error() string { return e.Message }

// NewHandlerError builds a HandlerError with the given message and
// directive. Pass "" for do to get the non-blocking (retry-then-skip)
// behavior.
func NewHandlerError(message string, do Directive) *HandlerError {
	return &HandlerError{Message: message, Do: do}
}

// Handler processes one task's args and returns a result on success or a
// *HandlerError on failure. result is discarded by Queue.Run: it is not
// logged, published, or persisted in any args-shaped record.
type Handler func(ctx context.Context, args []interface{}) (result interface{}, herr *HandlerError)
