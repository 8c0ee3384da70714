// Package doctor implements the `irfix doctor` subcommand, which lists
// the installed LLVM disassembler variants and their versions.
package doctor

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/kyleseneker/irfix/internal/diag"
	"github.com/kyleseneker/irfix/internal/llvm"
)

// opaquePointerMajor is the first LLVM release whose disassembler prints
// opaque "ptr" types.
const opaquePointerMajor = 15

// lookPath is the function used to locate binaries on PATH.
var lookPath = exec.LookPath

// Config holds settings for the doctor check.
type Config struct {
	Suffixes []string
	Stdout   io.Writer
	Stderr   io.Writer
	Timeout  time.Duration
}

// Run looks up every llvm-dis and opt variant and prints their resolved
// paths and versions. It fails when no llvm-dis variant is installed.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}
	if cfg.Stderr == nil {
		cfg.Stderr = io.Discard
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if len(cfg.Suffixes) == 0 {
		cfg.Suffixes = llvm.DefaultSuffixes
	}

	fmt.Fprintln(cfg.Stdout, "irfix doctor")

	var warnings []string
	found := make(map[string]int)
	tools := append(llvm.Variants(llvm.LLVMDis, cfg.Suffixes), llvm.Variants(llvm.Opt, cfg.Suffixes)...)

	for _, t := range tools {
		label := t.Name() + ":"
		path, _ := lookPath(t.Name())
		if path == "" {
			fmt.Fprintf(cfg.Stdout, "  %-14s (not found)\n", label)
			continue
		}
		found[t.Base]++
		fmt.Fprintf(cfg.Stdout, "  %-14s %s\n", label, path)

		line := getToolVersion(ctx, cfg, path, t.Name(), "--version")
		fmt.Fprintf(cfg.Stdout, "  [OK]   %s: %s\n", t.Name(), line)

		if major, ok := parseLLVMMajor(line); ok && major < opaquePointerMajor {
			warnings = append(warnings,
				fmt.Sprintf("%s is LLVM %d; releases before %d print typed pointers, which fix-llvm-ir does not rewrite",
					t.Name(), major, opaquePointerMajor))
		}
	}

	if found[llvm.Opt] == 0 {
		warnings = append(warnings, "no opt variant found; analyze-bc has no fallback when llvm-dis fails")
	}
	if found[llvm.LLVMDis] == 0 {
		warnings = append(warnings, "no llvm-dis variant found; install LLVM (e.g. apt install llvm)")
	}

	printSummary(cfg.Stdout, warnings)

	if found[llvm.LLVMDis] == 0 {
		names := lo.Map(llvm.Variants(llvm.LLVMDis, cfg.Suffixes), func(t llvm.Tool, _ int) string { return t.Name() })
		return &diag.Error{
			Stage: diag.StageDiscover,
			Code:  diag.CodeToolNotFound,
			Err:   fmt.Errorf("no llvm-dis variant on PATH (tried %s): %w", strings.Join(names, ", "), llvm.ErrToolNotFound),
			Hint:  "install LLVM or add its bin directory to PATH",
		}
	}
	return nil
}

// getToolVersion runs a binary with the given version flag and returns
// the line naming the LLVM version, or else the first non-empty line.
func getToolVersion(ctx context.Context, cfg Config, path, name, flag string) string {
	res, runErr := llvm.Run(ctx, cfg.Timeout, path, flag)
	if runErr != nil {
		fmt.Fprintf(cfg.Stderr, "  [FAIL] %s --version: %v\n", name, runErr)
		return "(version check failed)"
	}
	line := versionLine(res.Stdout)
	if line == "" {
		line = versionLine(res.Stderr)
	}
	if line == "" {
		line = "(no version output)"
	}
	return line
}

// printSummary outputs the warnings list and final status.
func printSummary(w io.Writer, warnings []string) {
	if len(warnings) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "warnings:")
		for _, msg := range warnings {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
	}
	fmt.Fprintln(w, "")
	if len(warnings) == 0 {
		fmt.Fprintln(w, "all checks passed")
	} else {
		fmt.Fprintf(w, "%d warning(s); see above\n", len(warnings))
	}
}

// parseLLVMMajor extracts the LLVM major version from a version string
// like "Ubuntu LLVM version 14.0.0" or "LLVM version 18.1.8".
func parseLLVMMajor(s string) (int, bool) {
	const prefix = "LLVM version "
	idx := strings.Index(s, prefix)
	if idx < 0 {
		return 0, false
	}
	rest := s[idx+len(prefix):]
	end := strings.IndexAny(rest, ". \t\n")
	if end < 0 {
		end = len(rest)
	}
	if end == 0 {
		return 0, false
	}
	major, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return major, true
}

// versionLine picks the "LLVM version" line out of --version output, which
// LLVM tools print after a banner line.
func versionLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.Contains(line, "LLVM version") {
			return strings.TrimSpace(line)
		}
	}
	return firstNonEmptyLine(s)
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}
