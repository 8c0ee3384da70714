// Package transform repairs textual LLVM IR in which a byte buffer
// (alloca [N x i8]) is written through as a wider integer or pointer type.
// Before each such store it inserts an explicit bitcast to a matching typed
// pointer and rewrites the store to use it. All work is single-pass text
// processing over lines; no IR is parsed beyond the shapes in irline.
package transform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kyleseneker/irfix/internal/diag"
	"github.com/kyleseneker/irfix/internal/irline"
	"github.com/kyleseneker/irfix/internal/llvm"
)

// Options configures the fix pass.
type Options struct {
	Normalize NormalizeMode
	Logger    *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// Rewrite describes one corrected store.
type Rewrite struct {
	Line      int    `json:"line"`
	Register  string `json:"register"`
	Synthetic string `json:"synthetic"`
	ValueType string `json:"value_type"`
	Origin    string `json:"origin"`
}

// Result is the output of FixLines.
type Result struct {
	Lines    []string
	Rewrites []Rewrite
}

// FixLines scans lines top to bottom, tracking pointer origins, and returns
// the rewritten IR. Allocation lines are copied verbatim, mismatched stores
// become a bitcast line followed by the corrected store, and every other
// line is passed through pointer-keyword normalization.
func FixLines(lines []string, opts Options) Result {
	mode := opts.Normalize
	if mode == "" {
		mode = NormalizeLegacy
	}
	log := opts.logger()

	table := NewTable()
	em := &emitter{mode: mode, names: newNameAllocator(lines)}
	out := make([]string, 0, len(lines))
	var rewrites []Rewrite

	for i, line := range lines {
		shape := irline.Parse(line)
		table.Observe(shape)

		switch s := shape.(type) {
		case irline.Alloca:
			if s.Array && irline.IsByteType(s.Elem) {
				out = append(out, line)
				continue
			}
		case irline.Store:
			if Classify(s, table) != Mismatch {
				break
			}
			chain, _ := table.Resolve(s.Dst)
			conv, store, syn := em.rewrite(i, s)
			out = append(out, conv, store)
			rewrites = append(rewrites, Rewrite{
				Line:      i + 1,
				Register:  s.Dst,
				Synthetic: syn,
				ValueType: s.ValueType,
				Origin:    chain.String(),
			})
			log.Debug("rewrote store", "line", i+1, "register", s.Dst, "synthetic", syn,
				"type", s.ValueType, "origin", chain.String())
			continue
		}
		out = append(out, em.passThrough(line))
	}

	log.Debug("fix pass complete", "lines", len(lines), "tracked", table.Len(), "rewrites", len(rewrites))
	return Result{Lines: out, Rewrites: rewrites}
}

// Stats summarizes a Run.
type Stats struct {
	Lines    int
	Rewrites int
}

// Run reads a .ll file, applies FixLines, and writes the result. The full
// output file is written even when nothing was rewritten.
func Run(ctx context.Context, inputLL, outputLL string, opts Options) (Stats, error) {
	data, err := os.ReadFile(inputLL)
	if err != nil {
		return Stats{}, diag.New(diag.StageInput, fmt.Errorf("read input: %w", err), "", "",
			"pass an existing textual LLVM IR (.ll) file")
	}
	if llvm.IsBitcode(data) {
		return Stats{}, diag.New(diag.StageInput, fmt.Errorf("%s is LLVM bitcode, not textual IR", inputLL), "", "",
			"disassemble it first: llvm-dis "+inputLL+" -o out.ll")
	}
	lines := strings.Split(string(data), "\n")
	res := FixLines(lines, opts)
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	if err := os.WriteFile(outputLL, []byte(strings.Join(res.Lines, "\n")), 0o600); err != nil {
		return Stats{}, diag.New(diag.StageOutput, fmt.Errorf("write output: %w", err), "", "",
			"check that the output directory exists and is writable")
	}
	return Stats{Lines: countLines(lines), Rewrites: len(res.Rewrites)}, nil
}

// countLines counts lines the way a line reader does: a trailing newline
// terminates the last line rather than starting an empty one.
func countLines(split []string) int {
	n := len(split)
	if n > 0 && split[n-1] == "" {
		n--
	}
	return n
}
