// Package cli provides structured, colored error reporting for the spiral
// command.
//
// A UserError carries what went wrong, why, and how to fix it, plus the exit
// code the process should end with:
//
//	Error: Cannot fetch object
//	Cause: not found
//	Fix:   Check the key and prefix, or list keys with: spiral list
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/justapithecus/spiral/spiral"
)

// Exit codes for different error categories.
const (
	ExitSuccess  = 0
	ExitConfig   = 1
	ExitNetwork  = 3
	ExitInput    = 4
	ExitNotFound = 6
	ExitConflict = 7

	// ExitInternal signals a bug that should be reported.
	ExitInternal = 10
)

// UserError is an error with user-facing context and an exit code.
type UserError struct {
	Message  string
	Cause    string
	Fix      string
	ExitCode int
	Err      error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

func newError(code int, msg, cause, fix string, err error) *UserError {
	if cause == "" && err != nil {
		cause = err.Error()
	}
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: code, Err: err}
}

// NewConfigError reports a missing or invalid configuration.
func NewConfigError(msg, fix string, err error) *UserError {
	return newError(ExitConfig, msg, "", fix, err)
}

// NewInputError reports bad arguments.
func NewInputError(msg, cause, fix string) *UserError {
	return newError(ExitInput, msg, cause, fix, nil)
}

// NewNetworkError reports a failed exchange with the store.
func NewNetworkError(msg, fix string, err error) *UserError {
	return newError(ExitNetwork, msg, "", fix, err)
}

// Classify wraps err in a UserError chosen by its kind. UserErrors pass
// through unchanged.
func Classify(msg string, err error) *UserError {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue
	}
	switch {
	case errors.Is(err, spiral.ErrNotFound):
		return newError(ExitNotFound, msg, "", "Check the key and prefix, or list keys with: spiral list", err)
	case errors.Is(err, spiral.ErrPathExists):
		return newError(ExitConflict, msg, "", "Objects are immutable; send under a new key or delete the old one first", err)
	case errors.Is(err, spiral.ErrInvalidOption), errors.Is(err, spiral.ErrUnknownOption):
		return newError(ExitConfig, msg, "", "Fix the option value in flags or the config file", err)
	case errors.Is(err, spiral.ErrInvalidPath):
		return newError(ExitInput, msg, "", "Use a relative key without '..' segments", err)
	default:
		return newError(ExitInternal, msg, "", "", err)
	}
}

var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format renders the error for a terminal. Empty Cause or Fix lines are
// omitted. NO_COLOR disables colors as well as noColor.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}
	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}
	return out.String()
}

// Report writes err to w and returns the exit code to use.
func Report(w io.Writer, err error, noColor bool) int {
	if err == nil {
		return ExitSuccess
	}
	var ue *UserError
	if !errors.As(err, &ue) {
		ue = newError(ExitInternal, "Unexpected failure", "", "", err)
	}
	_, _ = fmt.Fprint(w, ue.Format(noColor))
	return ue.ExitCode
}
