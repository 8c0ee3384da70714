package analyze

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"github.com/kyleseneker/irfix/internal/irline"
	"github.com/kyleseneker/irfix/internal/llvm"
)

const (
	// DefaultLimit is the number of load/store sites shown after a
	// successful disassembly.
	DefaultLimit = 5
	// probeRadius is the number of lines shown around each site.
	probeRadius = 2
)

// NoDisassemblerMessage is printed when no variant could read the input.
const NoDisassemblerMessage = "No LLVM version could disassemble the file"

// ProbeConfig holds settings for the analyze-bc command.
type ProbeConfig struct {
	Input    string
	Suffixes []string
	Limit    int
	Runner   llvm.Runner
	Stdout   io.Writer
	Logger   *slog.Logger
}

// ProbeResult describes the first variant that succeeded.
type ProbeResult struct {
	Tool  string
	Lines int
	Sites int
}

// Probe tries llvm-dis and then opt for each version suffix in order and
// stops at the first one that disassembles Input. Variants that are not
// installed are skipped without output. It reports false when nothing
// succeeded.
func Probe(ctx context.Context, cfg ProbeConfig) (ProbeResult, bool) {
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Runner == nil {
		cfg.Runner = llvm.Exec{}
	}
	if len(cfg.Suffixes) == 0 {
		cfg.Suffixes = llvm.DefaultSuffixes
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}

	tried := false
	for _, sfx := range lo.Uniq(cfg.Suffixes) {
		for _, tool := range []llvm.Tool{{Base: llvm.LLVMDis, Suffix: sfx}, {Base: llvm.Opt, Suffix: sfx}} {
			if ctx.Err() != nil {
				cfg.Logger.Debug("probe canceled", "error", ctx.Err())
				return ProbeResult{}, false
			}
			out, err := llvm.Disassemble(ctx, cfg.Runner, tool, cfg.Input)
			if errors.Is(err, llvm.ErrToolNotFound) {
				cfg.Logger.Debug("variant not installed", "tool", tool.Name())
				// A missing llvm-dis skips the opt fallback for this suffix.
				break
			}
			tried = true
			fmt.Fprintf(cfg.Stdout, "\n=== Trying %s ===\n", tool.Name())
			if err != nil {
				cfg.Logger.Debug("variant failed", "tool", tool.Name(), "error", err)
				fmt.Fprintf(cfg.Stdout, "Failed: %s\n", failureText(err))
				continue
			}
			res := dumpSites(cfg, tool.Name(), out)
			return res, true
		}
	}

	if tried {
		fmt.Fprintln(cfg.Stdout)
	}
	fmt.Fprintln(cfg.Stdout, NoDisassemblerMessage)
	return ProbeResult{}, false
}

// dumpSites prints the success banner and the first cfg.Limit load/store
// lines of ir with their surrounding context.
func dumpSites(cfg ProbeConfig, tool, ir string) ProbeResult {
	lines := strings.Split(ir, "\n")
	fmt.Fprintf(cfg.Stdout, "Success with %s!\n", tool)
	fmt.Fprintf(cfg.Stdout, "Total lines: %d\n", len(lines))

	res := ProbeResult{Tool: tool, Lines: len(lines)}
	for i, line := range lines {
		if res.Sites >= cfg.Limit {
			break
		}
		if !irline.IsMemoryAccess(line) {
			continue
		}
		res.Sites++
		fmt.Fprintf(cfg.Stdout, "\n--- Found load/store at line %d ---\n", i+1)
		fmt.Fprint(cfg.Stdout, irline.FormatSnippet(irline.Snippet(lines, i, probeRadius), ""))
	}
	cfg.Logger.Debug("probe succeeded", "tool", tool, "lines", res.Lines, "sites", res.Sites)
	return res
}
