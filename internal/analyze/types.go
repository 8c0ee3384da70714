// Package analyze implements the read-only diagnostic modes: a scan that
// reports stores of wide values into byte buffers, and a probe that finds
// which installed LLVM disassembler can read a bitcode file.
package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/lo"

	"github.com/kyleseneker/irfix/internal/diag"
	"github.com/kyleseneker/irfix/internal/irline"
	"github.com/kyleseneker/irfix/internal/llvm"
	"github.com/kyleseneker/irfix/internal/transform"
)

// ContextRadius is the number of lines shown on each side of a finding.
const ContextRadius = 3

// Event is a tracked pointer definition seen during the scan.
type Event struct {
	Line     int    `json:"line"`
	Kind     string `json:"kind"`
	Register string `json:"register"`
	Source   string `json:"source,omitempty"`
	Bytes    int64  `json:"bytes,omitempty"`
	Root     string `json:"root"`
}

// Finding is a store of a non-byte value through a pointer into a byte
// buffer.
type Finding struct {
	Line        int                  `json:"line"`
	Instruction string               `json:"instruction"`
	ValueType   string               `json:"value_type"`
	Register    string               `json:"register"`
	Root        string               `json:"root"`
	Origin      string               `json:"origin"`
	Context     []irline.SnippetLine `json:"context"`
}

// Report is the result of ScanTypes.
type Report struct {
	Lines    int       `json:"lines"`
	Events   []Event   `json:"events"`
	Findings []Finding `json:"findings"`
}

// ScanTypes walks lines with the same origin tracking the fix pass uses
// and reports every store it would rewrite. It never modifies its input.
func ScanTypes(lines []string) Report {
	table := transform.NewTable()
	rep := Report{Lines: len(lines), Events: []Event{}, Findings: []Finding{}}

	for i, line := range lines {
		shape := irline.Parse(line)
		if reg, ok := table.Observe(shape); ok {
			if ev, ok := eventFor(table, reg, i); ok {
				rep.Events = append(rep.Events, ev)
			}
			continue
		}
		st, ok := shape.(irline.Store)
		if !ok || transform.Classify(st, table) != transform.Mismatch {
			continue
		}
		chain, _ := table.Resolve(st.Dst)
		rep.Findings = append(rep.Findings, Finding{
			Line:        i + 1,
			Instruction: strings.TrimSpace(line),
			ValueType:   st.ValueType,
			Register:    st.Dst,
			Root:        chain.Root().Origin.TypeString(),
			Origin:      chain.String(),
			Context:     irline.Snippet(lines, i, ContextRadius),
		})
	}
	return rep
}

func eventFor(table *transform.Table, reg string, idx int) (Event, bool) {
	chain, ok := table.Resolve(reg)
	if !ok {
		return Event{}, false
	}
	o := chain[0].Origin
	return Event{
		Line:     idx + 1,
		Kind:     o.Kind.String(),
		Register: reg,
		Source:   o.Source,
		Bytes:    o.Bytes,
		Root:     chain.Root().Origin.TypeString(),
	}, true
}

// WriteText renders the report in the human-readable layout.
func (r Report) WriteText(w io.Writer) error {
	var b strings.Builder
	b.WriteString("=== Analyzing LLVM IR ===\n")

	findings := lo.KeyBy(r.Findings, func(f Finding) int { return f.Line })
	events := lo.KeyBy(r.Events, func(e Event) int { return e.Line })
	for line := 1; line <= r.Lines; line++ {
		if ev, ok := events[line]; ok {
			writeEvent(&b, ev)
		}
		if f, ok := findings[line]; ok {
			writeFinding(&b, f)
		}
	}

	fmt.Fprintf(&b, "\n%d problematic store(s) found\n", len(r.Findings))
	_, err := io.WriteString(w, b.String())
	return err
}

func writeEvent(b *strings.Builder, ev Event) {
	switch ev.Kind {
	case "allocation":
		fmt.Fprintf(b, "Line %d: Alloca %s = %s\n", ev.Line, ev.Register, ev.Root)
	case "cast":
		fmt.Fprintf(b, "Line %d: Bitcast %s from %s (%s)\n", ev.Line, ev.Register, ev.Source, ev.Root)
	case "offset":
		fmt.Fprintf(b, "Line %d: Offset %s = %s + %d (%s)\n", ev.Line, ev.Register, ev.Source, ev.Bytes, ev.Root)
	}
}

func writeFinding(b *strings.Builder, f Finding) {
	fmt.Fprintf(b, "\n*** PROBLEMATIC STORE at line %d ***\n", f.Line)
	fmt.Fprintf(b, "  Storing %s through pointer %s\n", f.ValueType, f.Register)
	fmt.Fprintf(b, "  Pointer originates from alloca: %s\n", f.Root)
	if strings.Contains(f.Origin, " -> ") {
		fmt.Fprintf(b, "  Origin chain: %s\n", f.Origin)
	}
	fmt.Fprintf(b, "  Full line: %s\n", f.Instruction)
	b.WriteString("  Context:\n")
	b.WriteString(irline.FormatSnippet(f.Context, "    "))
	b.WriteString("\n")
}

// WriteJSON renders the report as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Output formats accepted by TypesConfig.Format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// TypesConfig holds settings for the analyze-types command.
type TypesConfig struct {
	Input   string
	Format  string
	LLVMDis string
	Runner  llvm.Runner
	Stdout  io.Writer
	Logger  *slog.Logger
}

// Types loads Input as textual IR, disassembling it first when it is
// bitcode, and writes the scan report to Stdout. Load and disassembly
// failures are reported on Stdout and do not return an error. An unknown
// Format is rejected with a StageUsage error before Input is touched.
func Types(ctx context.Context, cfg TypesConfig) error {
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Runner == nil {
		cfg.Runner = llvm.Exec{}
	}
	switch cfg.Format {
	case "":
		cfg.Format = FormatText
	case FormatText, FormatJSON:
	default:
		return diag.New(diag.StageUsage, fmt.Errorf("invalid format %q: must be one of [text json]", cfg.Format),
			"", "", "use --format text or --format json")
	}

	text, err := loadIR(ctx, cfg)
	if err != nil {
		cfg.Logger.Debug("load failed", "input", cfg.Input, "error", err)
		if diag.IsStage(err, diag.StageInput) {
			fmt.Fprintf(cfg.Stdout, "Failed to read input: %s\n", failureText(err))
			return nil
		}
		fmt.Fprintf(cfg.Stdout, "Failed to disassemble: %s\n", failureText(err))
		return nil
	}

	rep := ScanTypes(strings.Split(text, "\n"))
	cfg.Logger.Debug("scan complete", "lines", rep.Lines, "events", len(rep.Events), "findings", len(rep.Findings))
	if cfg.Format == FormatJSON {
		return rep.WriteJSON(cfg.Stdout)
	}
	return rep.WriteText(cfg.Stdout)
}

// loadIR returns the textual IR for cfg.Input. Exactly one disassembler
// run is attempted for bitcode.
func loadIR(ctx context.Context, cfg TypesConfig) (string, error) {
	data, err := os.ReadFile(cfg.Input)
	if err != nil {
		return "", diag.New(diag.StageInput, err, "", "", "pass an existing .bc or .ll file")
	}
	if !llvm.IsBitcode(data) {
		cfg.Logger.Debug("input is textual IR", "input", cfg.Input)
		return string(data), nil
	}
	tool := llvm.Tool{Base: llvm.LLVMDis, Path: cfg.LLVMDis}
	cfg.Logger.Debug("disassembling bitcode", "tool", tool.Bin(), "input", cfg.Input)
	return llvm.Disassemble(ctx, cfg.Runner, tool, cfg.Input)
}

// failureText prefers a tool's stderr over the wrapped error text.
func failureText(err error) string {
	var de *diag.Error
	if errors.As(err, &de) && strings.TrimSpace(de.Stderr) != "" {
		return strings.TrimSpace(de.Stderr)
	}
	if de != nil && de.Err != nil {
		return de.Err.Error()
	}
	return err.Error()
}
