package records

import (
	"errors"
	"fmt"
)

// Op names a record operation.
type Op string

const (
	OpCreate Op = "create"
	OpGet    Op = "get"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpList   Op = "list"
)

var (
	// ErrOperationFailed matches every error returned by Service.
	ErrOperationFailed = errors.New("record operation failed")

	errNotDeleted = errors.New("upstream did not confirm the deletion")
)

// OperationError wraps an upstream failure of a record operation. Error
// returns the user-facing message; Unwrap exposes the cause.
type OperationError struct {
	Op  Op
	Err error
}

func (e *OperationError) Error() string {
	if e.Op == OpList {
		return fmt.Sprintf("Failed to list records: %v", e.Err)
	}
	return fmt.Sprintf("Failed to %s record: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func (e *OperationError) Is(target error) bool {
	return target == ErrOperationFailed
}
