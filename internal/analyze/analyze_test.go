package analyze

import (
	"context"
	"fmt"
	"strings"

	"github.com/kyleseneker/irfix/internal/llvm"
)

// fakeRunner serves canned tool results. A binary with no entry is
// reported as not installed.
type fakeRunner struct {
	results map[string]fakeResult
	calls   []string
}

type fakeResult struct {
	stdout string
	stderr string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, bin string, args ...string) (llvm.Result, error) {
	f.calls = append(f.calls, bin+" "+strings.Join(args, " "))
	r, ok := f.results[bin]
	if !ok {
		return llvm.Result{Command: bin}, fmt.Errorf("%s: %w", bin, llvm.ErrToolNotFound)
	}
	return llvm.Result{Command: bin, Stdout: r.stdout, Stderr: r.stderr}, r.err
}

const sampleIR = `define void @f(i64 %v, i32 %w) {
  %1 = alloca [16 x i8], align 16
  %2 = bitcast ptr %1 to ptr
  %3 = getelementptr inbounds i8, ptr %2, i64 8
  store i8 0, ptr %1, align 1
  store i64 %v, ptr %1, align 8
  store i32 %w, ptr %3, align 4
  ret void
}`
