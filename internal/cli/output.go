package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/lwoollett/FrameHub/internal/catalog"
	"github.com/lwoollett/FrameHub/internal/tracker"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Runtime failure (commit failed, scenarios failed, etc.)
	ExitCommandError = 2 // Command error (bad arguments, no catalog, unreadable config, etc.)
)

// Error codes reported in JSON responses for errors that are not mutation
// errors.
const (
	CodeNoCatalog    = "NO_CATALOG"
	CodeSyncFailed   = "SYNC_FAILED"
	CodeTestFailed   = "TEST_FAILED"
	CodeInternal     = "INTERNAL"
	CodeBadArguments = "BAD_ARGUMENTS"
)

// errSyncFailed marks errors from writing pending changes to the store.
var errSyncFailed = errors.New("sync failed")

// saveFailed wraps an error returned while flushing a session.
func saveFailed(err error) *ExitError {
	return WrapExitError(ExitFailure, "failed to save progress", fmt.Errorf("%w: %w", errSyncFailed, err))
}

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// wrapMutationError classifies an error returned by a tracker mutation.
// Rejected arguments are command errors; anything else is a runtime failure.
func wrapMutationError(op string, err error) *ExitError {
	var mutErr *tracker.MutationError
	if errors.As(err, &mutErr) {
		return WrapExitError(ExitCommandError, op+" rejected", err)
	}
	return WrapExitError(ExitFailure, op+" failed", err)
}

// ErrorCode returns the machine-readable code for err.
func ErrorCode(err error) string {
	var mutErr *tracker.MutationError
	switch {
	case errors.As(err, &mutErr):
		return string(mutErr.Code)
	case errors.Is(err, catalog.ErrNoCatalog):
		return CodeNoCatalog
	case errors.Is(err, errSyncFailed):
		return CodeSyncFailed
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code == ExitCommandError {
		return CodeBadArguments
	}
	return CodeInternal
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "UNKNOWN_ITEM", "NO_CATALOG", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
// In text mode data is printed with fmt.Println, so views implement
// fmt.Stringer.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err in the configured format and returns it unchanged so
// callers can write `return f.Fail(err)`. Text mode leaves printing to the
// caller of Execute.
func (f *OutputFormatter) Fail(err error) error {
	if f.Format == "json" {
		_ = f.Error(ErrorCode(err), err.Error(), nil)
	}
	return err
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
