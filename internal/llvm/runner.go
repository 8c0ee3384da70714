// Package llvm provides typed wrappers for locating and executing the LLVM
// disassembler binaries (llvm-dis, opt) in their version-suffixed variants.
package llvm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTimeout bounds a single tool invocation when no timeout is given.
const DefaultTimeout = 30 * time.Second

// ErrToolNotFound is returned when a tool binary cannot be located.
var ErrToolNotFound = errors.New("tool not found")

// allowedToolBases is the canonical set of tool basenames irfix is
// permitted to execute.
var allowedToolBases = map[string]bool{
	"llvm-dis": true,
	"opt":      true,
}

// ValidateBinary checks that a binary path refers to an allowed tool and
// does not contain characters indicative of shell injection.
func ValidateBinary(binPath string) error {
	if strings.ContainsAny(binPath, ";|&$`\n") {
		return fmt.Errorf("binary path %q contains prohibited characters", binPath)
	}
	if !isAllowedTool(binPath) {
		return fmt.Errorf("binary %q (basename %q) is not in the allowed tool set",
			binPath, filepath.Base(binPath))
	}
	return nil
}

// isAllowedTool reports whether binPath's basename matches an allowed tool,
// including version-suffixed names like "llvm-dis-18" or "opt-17.0.6".
func isAllowedTool(binPath string) bool {
	base := filepath.Base(binPath)
	if allowedToolBases[base] {
		return true
	}
	for name := range allowedToolBases {
		if strings.HasPrefix(base, name+"-") && isVersionSuffix(base[len(name)+1:]) {
			return true
		}
	}
	return false
}

// isVersionSuffix reports whether s looks like a version (e.g. "18", "17.0.6").
func isVersionSuffix(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for _, c := range part {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}

// sanitizedEnv returns a minimal, deterministic environment for subprocess execution.
func sanitizedEnv() []string {
	env := []string{
		"LC_ALL=C",
		"TZ=UTC",
	}
	for _, key := range []string{"PATH", "HOME", "TMPDIR"} {
		if v := os.Getenv(key); v != "" {
			env = append(env, key+"="+v)
		}
	}
	return env
}

// Result captures the command string and stdout/stderr of a tool run.
type Result struct {
	Command string
	Stdout  string
	Stderr  string
}

// Run executes a binary with a per-invocation timeout. A binary that cannot
// be located yields an error wrapping ErrToolNotFound.
func Run(ctx context.Context, timeout time.Duration, bin string, args ...string) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, bin, args...)
	cmd.Env = sanitizedEnv()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result := Result{
		Command: formatCommand(bin, args),
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}
	if runErr == nil {
		return result, nil
	}
	if isNotFound(runErr) {
		return result, fmt.Errorf("%s: %w", bin, ErrToolNotFound)
	}
	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
		return result, fmt.Errorf("command timed out after %s: %w", timeout, runErr)
	}
	return result, runErr
}

// isNotFound reports whether a run error means the binary does not exist,
// either from a PATH lookup or from exec of a missing absolute path.
func isNotFound(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false
	}
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

func formatCommand(bin string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellQuote(bin))
	for _, arg := range args {
		parts = append(parts, shellQuote(arg))
	}
	return strings.Join(parts, " ")
}

func shellQuote(v string) string {
	if v == "" {
		return "''"
	}
	if !strings.ContainsAny(v, " \t\n\"'\\") {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", "'\"'\"'") + "'"
}
