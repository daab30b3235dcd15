package lib

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrClosed is returned by operations on a component that has been shut down.
var ErrClosed = errors.New("closed")

// ErrLaunch means an external command could not be found or spawned.
type ErrLaunch struct {
	Command []string
	Cause   error
}

func NewErrLaunch(command []string, cause error) *ErrLaunch {
	return &ErrLaunch{Command: append([]string(nil), command...), Cause: cause}
}

func (e *ErrLaunch) Error() string {
	return fmt.Sprintf("cannot launch %q: %v", strings.Join(e.Command, " "), e.Cause)
}

func (e *ErrLaunch) Unwrap() error { return e.Cause }

// ErrJobConflict means a submission would break category exclusivity.
type ErrJobConflict struct {
	Category    Category
	ActiveJobID string
}

func NewErrJobConflict(category Category, activeJobID string) *ErrJobConflict {
	return &ErrJobConflict{Category: category, ActiveJobID: activeJobID}
}

func (e *ErrJobConflict) Error() string {
	if e.Category == "" {
		return fmt.Sprintf("job %q is already running", e.ActiveJobID)
	}
	return fmt.Sprintf("category %s is busy with job %q", e.Category, e.ActiveJobID)
}

// ErrDuplicateID means a job with the same id is already registered.
type ErrDuplicateID struct {
	ID string
}

func NewErrDuplicateID(id string) *ErrDuplicateID {
	return &ErrDuplicateID{ID: id}
}

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("a job with the ID %q already exists", e.ID)
}

// ErrNotFound means the referenced object does not exist.
type ErrNotFound struct {
	Type string
	ID   string
}

func NewErrNotFound(tipe, id string) *ErrNotFound {
	return &ErrNotFound{Type: tipe, ID: id}
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Type, e.ID)
}

// ErrSample means a single metric read failed.
type ErrSample struct {
	Cause error
}

func NewErrSample(cause error) *ErrSample {
	return &ErrSample{Cause: cause}
}

func (e *ErrSample) Error() string {
	return fmt.Sprintf("metric sample failed: %v", e.Cause)
}

func (e *ErrSample) Unwrap() error { return e.Cause }

// ErrForcedTermination means a job did not exit within its grace period.
type ErrForcedTermination struct {
	JobID string
}

func NewErrForcedTermination(jobID string) *ErrForcedTermination {
	return &ErrForcedTermination{JobID: jobID}
}

func (e *ErrForcedTermination) Error() string {
	return fmt.Sprintf("job %q did not exit in time and was forcibly terminated", e.JobID)
}

// ErrNotCancellable means Stop was called on a running job whose spec does
// not allow cancellation.
type ErrNotCancellable struct {
	JobID string
}

func NewErrNotCancellable(jobID string) *ErrNotCancellable {
	return &ErrNotCancellable{JobID: jobID}
}

func (e *ErrNotCancellable) Error() string {
	return fmt.Sprintf("job %q is not cancellable", e.JobID)
}

// ErrValidation means a request was malformed.
type ErrValidation struct {
	Reason string
}

func NewErrValidation(reason string) *ErrValidation {
	return &ErrValidation{Reason: reason}
}

func (e *ErrValidation) Error() string {
	return "invalid request: " + e.Reason
}

// Error kinds carried in ErrorDetail.Kind.
const (
	ErrorKindLaunch            = "launch_error"
	ErrorKindStream            = "stream_error"
	ErrorKindExit              = "exit_error"
	ErrorKindSample            = "sample_error"
	ErrorKindForcedTermination = "forced_termination"
	ErrorKindCancelled         = "cancelled"
	ErrorKindSignal            = "signal_error"
	ErrorKindArchive           = "archive_error"
)

func IsNotFound(err error) bool {
	var target *ErrNotFound
	return errors.As(err, &target)
}

func IsJobConflict(err error) bool {
	var target *ErrJobConflict
	return errors.As(err, &target)
}

func IsDuplicateID(err error) bool {
	var target *ErrDuplicateID
	return errors.As(err, &target)
}

func IsLaunch(err error) bool {
	var target *ErrLaunch
	return errors.As(err, &target)
}

func IsNotCancellable(err error) bool {
	var target *ErrNotCancellable
	return errors.As(err, &target)
}

func IsForcedTermination(err error) bool {
	var target *ErrForcedTermination
	return errors.As(err, &target)
}

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

func IsValidation(err error) bool {
	var target *ErrValidation
	return errors.As(err, &target)
}
