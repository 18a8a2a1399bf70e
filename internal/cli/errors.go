// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes shared by all commands.
//
// Commands always return errors and never print them. main prints the
// error once with PrintError and exits with GetExitCode.

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jeranaias/querychat/internal/config"
	"github.com/jeranaias/querychat/internal/export"
	"github.com/jeranaias/querychat/internal/query"
	"github.com/jeranaias/querychat/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates a configuration problem, including a missing endpoint
	ExitConfigError = 3
	// ExitNetworkError indicates the backend could not be reached
	ExitNetworkError = 4
	// ExitBackendError indicates the backend answered with an error
	ExitBackendError = 5
	// ExitStorageError indicates the history could not be read or written
	ExitStorageError = 6
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "history")
	Action  string // Action being performed (e.g., "export")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents invalid user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string // Type of resource (e.g., "message", "config key")
	ID       string // Identifier that was not found
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{
		Command: command,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// NewValidationErrorWithExample creates a validation error with an example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Reason:  reason,
		Example: example,
	}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode maps an error to the process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		valErr     *ValidationError
		notFound   *NotFoundError
		backendErr *query.BackendError
		storeErr   *storage.StoreError
		cfgErr     config.ValidationError
		cfgErrs    config.ValidateErrors
		netErr     net.Error
	)

	switch {
	case errors.As(err, &valErr), errors.Is(err, export.ErrUnknownFormat):
		return ExitUsageError
	case errors.Is(err, query.ErrNotConfigured), errors.As(err, &cfgErrs), errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &netErr) && netErr.Timeout():
		return ExitTimeoutError
	case errors.As(err, &backendErr), errors.Is(err, query.ErrRateLimited), errors.Is(err, query.ErrBadResponse):
		return ExitBackendError
	case errors.As(err, &netErr):
		return ExitNetworkError
	case errors.As(err, &storeErr):
		return ExitStorageError
	case errors.As(err, &notFound), errors.Is(err, export.ErrNoTable):
		return ExitNotFoundError
	default:
		return ExitGeneralError
	}
}

// hintFor returns a follow-up suggestion for well-known errors.
func hintFor(err error) string {
	switch {
	case errors.Is(err, query.ErrNotConfigured):
		return "Set an endpoint with: querychat config set backend.endpoint URL (or --endpoint URL)"
	case errors.Is(err, storage.ErrQuotaExceeded):
		return "Clear old messages with: querychat history clear --confirm"
	case GetExitCode(err) == ExitNetworkError:
		return "Check the endpoint with: querychat doctor"
	}
	return ""
}

// PrintError reports err once, as a JSON envelope or on stderr.
func PrintError(command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse(command, err).Print()
		return
	}

	fmt.Fprintln(stderr, ErrorStyle.Render("Error:")+" "+strings.TrimSpace(err.Error()))
	if hint := hintFor(err); hint != "" {
		fmt.Fprintln(stderr, DimStyle.Render(hint))
	}
}
