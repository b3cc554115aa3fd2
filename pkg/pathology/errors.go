package pathology

import (
	"errors"
	"fmt"
)

// ErrRecordRejected matches every error that rejects a single input record
// without affecting the process.
var ErrRecordRejected = errors.New("record rejected")

type InvalidInputError struct {
	RecordID string
	Field    string
	Reason   string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("record '%s' is invalid: %s", e.RecordID, e.Reason)
	}
	return fmt.Sprintf("record '%s' is invalid: %s %s", e.RecordID, e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrRecordRejected
}

type UnknownRevisionTypeError struct {
	RecordID string
	Label    string
}

func (e *UnknownRevisionTypeError) Error() string {
	return fmt.Sprintf("record '%s' has unknown revision type '%s'", e.RecordID, e.Label)
}

func (e *UnknownRevisionTypeError) Is(target error) bool {
	return target == ErrRecordRejected
}

type UnsupportedContainerTypeError struct {
	RecordID string
	Index    int
	Code     string
}

func (e *UnsupportedContainerTypeError) Error() string {
	return fmt.Sprintf("record '%s' container %d: container type '%s' is not supported", e.RecordID, e.Index, e.Code)
}

func (e *UnsupportedContainerTypeError) Is(target error) bool {
	return target == ErrRecordRejected
}

func IsRejection(err error) bool {
	return errors.Is(err, ErrRecordRejected)
}

// RejectionKind labels a rejection for logs, metrics and audit rows.
func RejectionKind(err error) string {
	var (
		invalid   *InvalidInputError
		revision  *UnknownRevisionTypeError
		container *UnsupportedContainerTypeError
	)
	switch {
	case errors.As(err, &invalid):
		return "invalid_input"
	case errors.As(err, &revision):
		return "unknown_revision_type"
	case errors.As(err, &container):
		return "unsupported_container_type"
	case err == nil:
		return ""
	default:
		return "internal"
	}
}
