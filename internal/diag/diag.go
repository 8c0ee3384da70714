// Package diag provides structured, stage-attributed error types for irfix.
// Every failure includes the stage that produced it and, where one exists,
// an actionable hint.
package diag

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Stage identifies which step produced an error.
type Stage string

const (
	StageUsage       Stage = "usage"
	StageDiscover    Stage = "discover-tools"
	StageDisassemble Stage = "disassemble"
	StageInput       Stage = "read-input"
	StageOutput      Stage = "write-output"
)

// Code is a stable machine-readable error category.
type Code string

const (
	CodeUsage         Code = "USAGE"
	CodeToolNotFound  Code = "TOOL_NOT_FOUND"
	CodeToolExecution Code = "TOOL_EXECUTION_FAILED"
	CodeTimeout       Code = "TIMEOUT"
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeIO            Code = "IO_ERROR"
)

// Error is a structured error carrying stage context, diagnostic output,
// and a user-facing hint for remediation.
type Error struct {
	Stage   Stage
	Code    Code
	Retry   bool
	Command string
	Stderr  string
	Hint    string
	Err     error
}

// New builds an Error and fills Code and Retry from the stage and cause.
func New(stage Stage, err error, command, stderr, hint string) *Error {
	e := &Error{Stage: stage, Command: command, Stderr: stderr, Hint: hint, Err: err}
	e.Code, e.Retry = Classify(stage, err)
	return e
}

// Classify maps a stage and cause to an error code and whether a retry
// could plausibly succeed.
func Classify(stage Stage, err error) (Code, bool) {
	if errors.Is(err, context.DeadlineExceeded) ||
		(err != nil && strings.Contains(err.Error(), "timed out")) {
		return CodeTimeout, true
	}
	switch stage {
	case StageUsage:
		return CodeUsage, false
	case StageDiscover:
		return CodeToolNotFound, false
	case StageInput:
		return CodeInvalidInput, false
	case StageOutput:
		return CodeIO, false
	default:
		return CodeToolExecution, false
	}
}

// Error formats the diagnostic into a multi-section string.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "stage %q failed", e.Stage)
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Command != "" {
		fmt.Fprintf(&b, ": %s", e.Command)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Stderr != "" {
		b.WriteString("\n--- stderr ---\n")
		b.WriteString(trimLong(e.Stderr, 20))
	}
	if e.Hint != "" {
		b.WriteString("\n--- hint ---\n")
		b.WriteString(e.Hint)
	}
	if e.Retry {
		b.WriteString("\n--- retry ---\n")
		b.WriteString("this failure may be transient; re-running may succeed")
	}
	return b.String()
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsStage reports whether err is a diag.Error from the given stage.
func IsStage(err error, stage Stage) bool {
	var derr *Error
	if !errors.As(err, &derr) {
		return false
	}
	return derr.Stage == stage
}

func trimLong(s string, maxLines int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:maxLines], "\n") + "\n...(truncated)"
}
