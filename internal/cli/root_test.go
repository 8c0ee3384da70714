package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleseneker/irfix/internal/analyze"
	"github.com/kyleseneker/irfix/internal/llvm"
)

// notInstalled reports every tool as missing.
type notInstalled struct{}

func (notInstalled) Run(_ context.Context, bin string, _ ...string) (llvm.Result, error) {
	return llvm.Result{Command: bin}, fmt.Errorf("%s: %w", bin, llvm.ErrToolNotFound)
}

// stubRunner replaces newRunner for the duration of a test.
func stubRunner(t *testing.T, r llvm.Runner) {
	t.Helper()
	old := newRunner
	newRunner = func(time.Duration) llvm.Runner { return r }
	t.Cleanup(func() { newRunner = old })
}

func run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = Run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

const mismatchIR = `define void @f(i64 %v) {
  %1 = alloca [16 x i8], align 16
  store i64 %v, ptr %1, align 8
  ret void
}
`

func writeIR(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "in.ll")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "irfix", cmd.Use)
	assert.Contains(t, cmd.Long, "[N x i8]")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"analyze-bc", "analyze-types", "fix", "doctor", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			require.NotNil(t, sub)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	timeout := cmd.PersistentFlags().Lookup("timeout")
	require.NotNil(t, timeout)
	assert.Equal(t, "30s", timeout.DefValue)
}

func TestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	tests := []struct {
		command, flag, def string
	}{
		{"analyze-bc", "limit", "5"},
		{"analyze-bc", "suffix", "[,-7,-14,-15,-16,-17,-18]"},
		{"analyze-types", "format", "text"},
		{"analyze-types", "llvm-dis", ""},
		{"fix", "normalize", "legacy"},
		{"doctor", "suffix", "[,-7,-14,-15,-16,-17,-18]"},
	}
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{tt.command})
			require.NoError(t, err)
			f := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantUsage string
	}{
		{"no command", nil, "Usage: irfix <command>"},
		{"unknown command", []string{"frobnicate"}, "Usage: irfix <command>"},
		{"analyze-bc without file", []string{"analyze-bc"}, "Usage: irfix analyze-bc <bitcode-file>"},
		{"analyze-bc with two files", []string{"analyze-bc", "a", "b"}, "Usage: irfix analyze-bc <bitcode-file>"},
		{"analyze-types without file", []string{"analyze-types"}, "Usage: irfix analyze-types <ir-or-bitcode-file>"},
		{"fix with one file", []string{"fix", "in.ll"}, "Usage: irfix fix <input.ll> <output.ll>"},
		{"unknown flag", []string{"fix", "--bogus", "a", "b"}, "Usage: irfix fix <input.ll> <output.ll>"},
		{"bad normalize mode", []string{"fix", "--normalize", "wild", "a", "b"}, "Usage: irfix fix <input.ll> <output.ll>"},
		{"bad format", []string{"analyze-types", "--format", "yaml", "a.ll"}, "Usage: irfix analyze-types <ir-or-bitcode-file>"},
		{"doctor with args", []string{"doctor", "extra"}, "Usage: irfix doctor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := run(t, tt.args...)
			assert.Equal(t, 1, code)
			assert.Empty(t, stdout)
			assert.Contains(t, stderr, tt.wantUsage+"\n")
		})
	}
}

func TestRunAnalyzeTypesBadFormat(t *testing.T) {
	in := writeIR(t, mismatchIR)
	code, stdout, stderr := run(t, "analyze-types", "--format", "yaml", in)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Equal(t, "error: invalid format \"yaml\": must be one of [text json]\n"+
		"Usage: irfix analyze-types <ir-or-bitcode-file>\n", stderr)
}

func TestRunVersion(t *testing.T) {
	old := Version
	Version = "v0.1.0-test"
	t.Cleanup(func() { Version = old })

	code, stdout, _ := run(t, "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "irfix v0.1.0-test\n", stdout)
}

func TestRunFix(t *testing.T) {
	in := writeIR(t, mismatchIR)
	out := filepath.Join(t.TempDir(), "out.ll")

	code, stdout, stderr := run(t, "fix", in, out)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "Fixed 5 lines of LLVM IR (1 stores rewritten)\n", stdout)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(got), "  %bitcast.2 = bitcast i8* %1 to i64*\n  store i64 %v, i64* %bitcast.2, align 8\n")
}

func TestRunFixVerbose(t *testing.T) {
	in := writeIR(t, mismatchIR)
	out := filepath.Join(t.TempDir(), "out.ll")

	code, _, stderr := run(t, "fix", "-v", "--normalize", "scoped", in, out)
	require.Equal(t, 0, code)
	assert.Contains(t, stderr, "level=DEBUG")
	assert.Contains(t, stderr, "rewrote store")
}

func TestRunFixMissingInput(t *testing.T) {
	code, stdout, stderr := run(t, "fix", "/does/not/exist.ll", filepath.Join(t.TempDir(), "out.ll"))
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, `stage "read-input" failed`)
	assert.NotContains(t, stderr, "Usage:")
}

func TestRunAnalyzeBCNothingInstalled(t *testing.T) {
	stubRunner(t, notInstalled{})
	code, stdout, _ := run(t, "analyze-bc", "prog.bc")
	assert.Equal(t, 0, code)
	assert.Equal(t, analyze.NoDisassemblerMessage+"\n", stdout)
}

func TestRunAnalyzeTypes(t *testing.T) {
	in := writeIR(t, mismatchIR)

	t.Run("text", func(t *testing.T) {
		code, stdout, _ := run(t, "analyze-types", in)
		assert.Equal(t, 0, code)
		assert.Contains(t, stdout, "*** PROBLEMATIC STORE at line 3 ***")
	})

	t.Run("json", func(t *testing.T) {
		code, stdout, _ := run(t, "analyze-types", "--format", "json", in)
		assert.Equal(t, 0, code)
		assert.Contains(t, stdout, `"value_type": "i64"`)
	})

	t.Run("bitcode without disassembler", func(t *testing.T) {
		stubRunner(t, notInstalled{})
		bc := filepath.Join(t.TempDir(), "in.bc")
		require.NoError(t, os.WriteFile(bc, []byte{'B', 'C', 0xC0, 0xDE}, 0o644))
		code, stdout, _ := run(t, "analyze-types", bc)
		assert.Equal(t, 0, code)
		assert.True(t, strings.HasPrefix(stdout, "Failed to disassemble: "), stdout)
	})
}

func TestStandalone(t *testing.T) {
	tests := []struct {
		name      string
		newCmd    func(*RootOptions) *cobra.Command
		wantUsage string
	}{
		{"analyze-bc", NewAnalyzeBCCommand, "Usage: analyze-bc <bitcode-file>\n"},
		{"analyze-types", NewAnalyzeTypesCommand, "Usage: analyze-types <ir-or-bitcode-file>\n"},
		{"fix-llvm-ir", NewFixCommand, "Usage: fix-llvm-ir <input.ll> <output.ll>\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := Standalone(tt.name, tt.newCmd)
			assert.Equal(t, tt.name, cmd.Name())
			require.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))

			var stderr bytes.Buffer
			code := Execute(context.Background(), cmd, nil, nil, &stderr)
			assert.Equal(t, 1, code)
			assert.Equal(t, tt.wantUsage, stderr.String())
		})
	}
}

func TestStandaloneFix(t *testing.T) {
	in := writeIR(t, mismatchIR)
	out := filepath.Join(t.TempDir(), "out.ll")

	var stdout bytes.Buffer
	code := Execute(context.Background(), Standalone("fix-llvm-ir", NewFixCommand), []string{in, out}, &stdout, nil)
	require.Equal(t, 0, code)
	assert.Equal(t, "Fixed 5 lines of LLVM IR (1 stores rewritten)\n", stdout.String())
}
