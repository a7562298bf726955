package saga

import (
	"errors"
	"fmt"
)

// Failure is returned by a saga step that cannot complete. The transport adapter that
// delivered the inbound event publishes Mark and treats the event as handled.
type Failure struct {
	Mark TransactionMark
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("saga: %s %s for %s", f.Mark.Origin, f.Mark.Status, f.Mark.InstanceID)
	}
	return fmt.Sprintf("saga: %s %s for %s: %v", f.Mark.Origin, f.Mark.Status, f.Mark.InstanceID, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Abort wraps err as a poison failure.
func Abort(t TransactionType, instanceID, participantKey, origin string, err error) *Failure {
	return &Failure{Mark: NewMark(t, instanceID, participantKey, MarkAbort, origin), Err: err}
}

// Fail wraps err as an ERROR failure: the step found nothing it could act on.
func Fail(t TransactionType, instanceID, participantKey, origin string, err error) *Failure {
	return &Failure{Mark: NewMark(t, instanceID, participantKey, MarkError, origin), Err: err}
}

// AsFailure extracts a Failure from err's chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
