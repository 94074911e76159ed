package gas

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes errors returned by the match and review packages.
type ErrorCode string

const (
	// ErrCodeUnknownComponent indicates a component name outside the seven.
	ErrCodeUnknownComponent ErrorCode = "UNKNOWN_COMPONENT"

	// ErrCodeInvalidTolerance indicates a negative, NaN or disallowed zero tolerance.
	ErrCodeInvalidTolerance ErrorCode = "INVALID_TOLERANCE"

	// ErrCodeNoMatch indicates an empty result where the caller asked for one.
	ErrCodeNoMatch ErrorCode = "NO_MATCH"

	// ErrCodeInvalidStateTransition indicates a review operation not allowed
	// from the group's or entry's current status.
	ErrCodeInvalidStateTransition ErrorCode = "INVALID_STATE_TRANSITION"

	// ErrCodeStorageFailure wraps an underlying persistence error.
	ErrCodeStorageFailure ErrorCode = "STORAGE_FAILURE"

	// ErrCodePartialBatchFailure indicates some items of a batch failed.
	ErrCodePartialBatchFailure ErrorCode = "PARTIAL_BATCH_FAILURE"

	// ErrCodeNotFound indicates a referenced entry or group does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidArgument indicates a malformed request value.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Error is the typed error returned by every caller-facing operation.
// GroupID, RecordID and EntryID identify the affected item so that a caller
// can retry idempotently.
type Error struct {
	Code     ErrorCode
	Message  string
	GroupID  string
	RecordID int64
	EntryID  int64
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	var ctx []string
	if e.GroupID != "" {
		ctx = append(ctx, "group="+e.GroupID)
	}
	if e.RecordID != 0 {
		ctx = append(ctx, fmt.Sprintf("record=%d", e.RecordID))
	}
	if e.EntryID != 0 {
		ctx = append(ctx, fmt.Sprintf("entry=%d", e.EntryID))
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
// A *PartialBatchError reports ErrCodePartialBatchFailure.
func CodeOf(err error) ErrorCode {
	var pe *PartialBatchError
	if errors.As(err, &pe) {
		return ErrCodePartialBatchFailure
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsUnknownComponent returns true if err carries ErrCodeUnknownComponent.
func IsUnknownComponent(err error) bool { return CodeOf(err) == ErrCodeUnknownComponent }

// IsInvalidTolerance returns true if err carries ErrCodeInvalidTolerance.
func IsInvalidTolerance(err error) bool { return CodeOf(err) == ErrCodeInvalidTolerance }

// IsInvalidState returns true if err carries ErrCodeInvalidStateTransition.
func IsInvalidState(err error) bool { return CodeOf(err) == ErrCodeInvalidStateTransition }

// IsStorageFailure returns true if err carries ErrCodeStorageFailure.
func IsStorageFailure(err error) bool { return CodeOf(err) == ErrCodeStorageFailure }

// IsNotFound returns true if err carries ErrCodeNotFound.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsPartialBatch returns true if err is a *PartialBatchError.
func IsPartialBatch(err error) bool { return CodeOf(err) == ErrCodePartialBatchFailure }

// NewStorageError wraps a persistence error with the operation name.
func NewStorageError(op string, err error) *Error {
	return &Error{
		Code:    ErrCodeStorageFailure,
		Message: op,
		Err:     err,
	}
}

// NewStateError creates an ErrCodeInvalidStateTransition error for a group.
func NewStateError(groupID, message string) *Error {
	return &Error{
		Code:    ErrCodeInvalidStateTransition,
		Message: message,
		GroupID: groupID,
	}
}

// ItemError is the failure of one item of a batch.
// Key identifies the item: a group id, a temperature, or a scan group key.
type ItemError struct {
	Index int
	Key   string
	Err   error
}

// PartialBatchError reports that some items of a batch failed while the
// rest succeeded. The successful results are returned alongside it.
type PartialBatchError struct {
	Total int
	Items []ItemError
}

// Error implements the error interface.
func (e *PartialBatchError) Error() string {
	msg := fmt.Sprintf("%s: %d of %d items failed", ErrCodePartialBatchFailure, len(e.Items), e.Total)
	if len(e.Items) > 0 {
		msg += fmt.Sprintf(" (first: %s: %v)", e.Items[0].Key, e.Items[0].Err)
	}
	return msg
}

// Unwrap exposes every item error to errors.Is / errors.As.
func (e *PartialBatchError) Unwrap() []error {
	errs := make([]error, len(e.Items))
	for i, item := range e.Items {
		errs[i] = item.Err
	}
	return errs
}
