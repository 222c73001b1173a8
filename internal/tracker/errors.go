package tracker

import (
	"errors"
	"fmt"
)

// MutationError reports a rejected mutation. State and change-log are left
// untouched whenever one is returned.
type MutationError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the rejected operation, e.g. "SetPartialRank".
	Op string

	// Item is the item the operation targeted, if any.
	Item string

	// Message is a human-readable description.
	Message string
}

// ErrorCode categorizes mutation errors.
type ErrorCode string

const (
	// CodeInvalidArgument indicates an argument outside its allowed range.
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// CodeUnknownItem indicates the item is not in the catalog.
	CodeUnknownItem ErrorCode = "UNKNOWN_ITEM"

	// CodeReadOnly indicates the session cannot be modified.
	CodeReadOnly ErrorCode = "READ_ONLY"
)

// Sentinels for errors.Is matching against a *MutationError's code.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownItem     = errors.New("unknown item")
	ErrReadOnly        = errors.New("read-only session")
)

// Error implements the error interface.
func (e *MutationError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("%s: %s: %s (item=%q)", e.Op, e.Code, e.Message, e.Item)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

// Is matches the sentinel for the error's code. Unknown items are also
// invalid arguments.
func (e *MutationError) Is(target error) bool {
	switch target {
	case ErrInvalidArgument:
		return e.Code == CodeInvalidArgument || e.Code == CodeUnknownItem
	case ErrUnknownItem:
		return e.Code == CodeUnknownItem
	case ErrReadOnly:
		return e.Code == CodeReadOnly
	}
	return false
}

func invalidArgument(op, item, format string, args ...any) *MutationError {
	return &MutationError{Code: CodeInvalidArgument, Op: op, Item: item, Message: fmt.Sprintf(format, args...)}
}

func unknownItem(op, item string) *MutationError {
	return &MutationError{Code: CodeUnknownItem, Op: op, Item: item, Message: "item not in catalog"}
}

func readOnly(op string) *MutationError {
	return &MutationError{Code: CodeReadOnly, Op: op, Message: "shared sessions cannot be modified"}
}
