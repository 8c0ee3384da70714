package diag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		stage     Stage
		err       error
		wantCode  Code
		wantRetry bool
	}{
		{"deadline exceeded", StageDisassemble, context.DeadlineExceeded, CodeTimeout, true},
		{"timed out message", StageDisassemble, errors.New("command timed out after 1s"), CodeTimeout, true},
		{"usage stage", StageUsage, errors.New("accepts 1 arg"), CodeUsage, false},
		{"input stage", StageInput, errors.New("bad input"), CodeInvalidInput, false},
		{"output stage", StageOutput, errors.New("read-only fs"), CodeIO, false},
		{"discover stage", StageDiscover, errors.New("not found"), CodeToolNotFound, false},
		{"default (disassemble)", StageDisassemble, errors.New("exit status 1"), CodeToolExecution, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diagErr := New(tt.stage, tt.err, "", "", "")
			var derr *Error
			require.True(t, errors.As(diagErr, &derr))
			assert.Equal(t, tt.wantCode, derr.Code)
			assert.Equal(t, tt.wantRetry, derr.Retry)
		})
	}
}

func TestErrorFormat(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		err := &Error{
			Stage:   StageDisassemble,
			Code:    CodeToolExecution,
			Retry:   true,
			Command: "llvm-dis-18 in.bc -o -",
			Stderr:  "error: Invalid bitcode signature",
			Hint:    "check the input is LLVM bitcode",
			Err:     errors.New("exit status 1"),
		}
		s := err.Error()
		for _, want := range []string{
			`stage "disassemble" failed`,
			"[TOOL_EXECUTION_FAILED]",
			"llvm-dis-18 in.bc -o -",
			"exit status 1",
			"--- stderr ---",
			"Invalid bitcode signature",
			"--- hint ---",
			"--- retry ---",
		} {
			assert.Contains(t, s, want)
		}
	})

	t.Run("minimal", func(t *testing.T) {
		s := (&Error{Stage: StageInput, Err: errors.New("fail")}).Error()
		assert.Contains(t, s, `stage "read-input" failed`)
		for _, absent := range []string{"--- stderr ---", "--- hint ---", "--- retry ---"} {
			assert.NotContains(t, s, absent)
		}
	})
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("root cause")
	err := &Error{Stage: StageInput, Err: inner}
	assert.ErrorIs(t, err, inner)
}

func TestIsStage(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		stage Stage
		want  bool
	}{
		{"match", New(StageInput, errors.New("fail"), "", "", ""), StageInput, true},
		{"no match", New(StageInput, errors.New("fail"), "", "", ""), StageOutput, false},
		{"non-diag error", errors.New("plain"), StageInput, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStage(tt.err, tt.stage))
		})
	}
}

func TestTrimLong(t *testing.T) {
	assert.Equal(t, "line1\nline2\nline3", trimLong("line1\nline2\nline3", 5))

	got := trimLong(strings.Repeat("line\n", 30), 5)
	assert.True(t, strings.HasSuffix(got, "...(truncated)"), got)
	assert.Equal(t, 6, len(strings.Split(got, "\n")))
}
