package llvm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/kyleseneker/irfix/internal/diag"
)

// DefaultSuffixes is the ordered list of version suffixes tried when probing
// for a working disassembler. The empty suffix is the unversioned binary.
var DefaultSuffixes = []string{"", "-7", "-14", "-15", "-16", "-17", "-18"}

const (
	// LLVMDis is the bitcode disassembler basename.
	LLVMDis = "llvm-dis"
	// Opt is the optimizer basename, used with -S as a disassembly fallback.
	Opt = "opt"
)

// Tool names one disassembler variant. Path, when set, overrides the
// PATH-resolved name.
type Tool struct {
	Base   string
	Suffix string
	Path   string
}

// Name returns the variant's binary name, e.g. "llvm-dis-18".
func (t Tool) Name() string {
	return t.Base + t.Suffix
}

// Bin returns the binary to execute.
func (t Tool) Bin() string {
	if strings.TrimSpace(t.Path) != "" {
		return t.Path
	}
	return t.Name()
}

// Args returns the command line that writes textual IR for input to stdout.
func (t Tool) Args(input string) []string {
	if t.Base == Opt {
		return []string{"-S", input, "-o", "-"}
	}
	return []string{input, "-o", "-"}
}

// Variants expands base into one Tool per suffix, dropping duplicates while
// keeping the first occurrence's position.
func Variants(base string, suffixes []string) []Tool {
	return lo.Map(lo.Uniq(suffixes), func(s string, _ int) Tool {
		return Tool{Base: base, Suffix: s}
	})
}

// Runner executes a tool and captures its output.
type Runner interface {
	Run(ctx context.Context, bin string, args ...string) (Result, error)
}

// Exec runs tools as subprocesses with a per-invocation timeout.
type Exec struct {
	Timeout time.Duration
}

// Run validates bin against the tool allowlist and executes it.
func (e Exec) Run(ctx context.Context, bin string, args ...string) (Result, error) {
	if err := ValidateBinary(bin); err != nil {
		return Result{Command: formatCommand(bin, args)}, err
	}
	return Run(ctx, e.Timeout, bin, args...)
}

// Disassemble runs tool on input and returns the textual IR. Failures are
// reported as *diag.Error; a missing binary is attributed to the
// discover-tools stage and still matches errors.Is(err, ErrToolNotFound).
func Disassemble(ctx context.Context, r Runner, tool Tool, input string) (string, error) {
	res, err := r.Run(ctx, tool.Bin(), tool.Args(input)...)
	if err == nil {
		return res.Stdout, nil
	}
	if errors.Is(err, ErrToolNotFound) {
		return "", diag.New(diag.StageDiscover, err, tool.Name(), "",
			fmt.Sprintf("install %s or pass its path explicitly", tool.Name()))
	}
	return "", diag.New(diag.StageDisassemble, err, res.Command, res.Stderr,
		"verify the input is LLVM bitcode readable by this LLVM version")
}

var (
	bitcodeMagic = []byte{'B', 'C', 0xC0, 0xDE}
	wrapperMagic = []byte{0xDE, 0xC0, 0x17, 0x0B}
)

// IsBitcode reports whether data starts with a raw or wrapped LLVM bitcode
// magic number.
func IsBitcode(data []byte) bool {
	return bytes.HasPrefix(data, bitcodeMagic) || bytes.HasPrefix(data, wrapperMagic)
}
