package service

import "errors"

var (
	// ErrDuplicateIntake means a row already exists for the payment; the event is ignored.
	ErrDuplicateIntake = errors.New("duplicate payment intake")

	ErrInvalidOrder = errors.New("invalid order payload")

	// ErrLaunchFailure marks one source video whose job could not be started.
	ErrLaunchFailure = errors.New("clip job launch failed")

	// ErrUnknownJob is returned for callbacks whose job id belongs to no order.
	ErrUnknownJob = errors.New("unknown clip job")

	// ErrDuplicateCallback is returned when the job already reached a terminal status.
	ErrDuplicateCallback = errors.New("duplicate completion callback")

	// ErrStorageFailure means a clip could not be persisted; the job stays open.
	ErrStorageFailure = errors.New("clip storage failed")

	// ErrNotificationFailure is logged only; the order keeps its completed status.
	ErrNotificationFailure = errors.New("completion notification failed")
)

// IsIgnorable reports whether err is a no-op outcome that edges should acknowledge.
func IsIgnorable(err error) bool {
	return errors.Is(err, ErrDuplicateIntake) ||
		errors.Is(err, ErrUnknownJob) ||
		errors.Is(err, ErrDuplicateCallback)
}
