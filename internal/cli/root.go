// Package cli implements the irfix command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kyleseneker/irfix/internal/llvm"
)

// Version is set at build time via ldflags:
//
//	go build -ldflags "-X github.com/kyleseneker/irfix/internal/cli.Version=v0.1.0"
var Version = "(dev)"

// newRunner builds the tool runner used by commands that execute LLVM tools.
var newRunner = func(timeout time.Duration) llvm.Runner {
	return llvm.Exec{Timeout: timeout}
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Timeout time.Duration
}

// logger returns a text logger on w, at debug level when --verbose is set.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) runner() llvm.Runner {
	return newRunner(o.Timeout)
}

// NewRootCommand creates the combined irfix command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "irfix",
		Short: "Find and repair byte-buffer type mismatches in LLVM IR",
		Long: `irfix inspects textual LLVM IR for stores that write a wide integer or a
pointer into a buffer allocated as [N x i8], and can rewrite such stores
to go through an explicit typed-pointer bitcast.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &usageError{usage: "irfix <command>", err: fmt.Errorf("unknown command %q", args[0])}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return &usageError{usage: "irfix <command>"}
		},
	}
	bindRootFlags(cmd, opts)

	cmd.AddCommand(NewAnalyzeBCCommand(opts))
	cmd.AddCommand(NewAnalyzeTypesCommand(opts))
	cmd.AddCommand(NewFixCommand(opts))
	cmd.AddCommand(NewDoctorCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// Standalone wraps a single subcommand as its own program named name, with
// the global flags attached directly.
func Standalone(name string, newCmd func(*RootOptions) *cobra.Command) *cobra.Command {
	opts := &RootOptions{}
	cmd := newCmd(opts)
	cmd.Use = name + strings.TrimPrefix(cmd.Use, cmd.Name())
	bindRootFlags(cmd, opts)
	return cmd
}

func bindRootFlags(cmd *cobra.Command, opts *RootOptions) {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging on stderr")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", llvm.DefaultTimeout, "timeout for each LLVM tool run")
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return &usageError{usage: usageLine(c), err: err}
	})
}

// addSuffixFlag registers --suffix, the ordered list of LLVM version
// suffixes appended to tool names.
func addSuffixFlag(fs *pflag.FlagSet, p *[]string, usage string) {
	fs.StringSliceVar(p, "suffix", llvm.DefaultSuffixes, usage)
}

// Run is the top-level entrypoint for the irfix binary.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return Execute(ctx, NewRootCommand(), args, stdout, stderr)
}

// Execute runs cmd with args and maps the outcome to a process exit code.
// Usage errors print a "Usage:" line and exit 1, as do runtime failures.
func Execute(ctx context.Context, cmd *cobra.Command, args []string, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if args == nil {
		// cobra falls back to os.Args when no args are set.
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ue *usageError
	if errors.As(err, &ue) {
		if ue.err != nil {
			fmt.Fprintf(stderr, "error: %v\n", ue.err)
		}
		fmt.Fprintf(stderr, "Usage: %s\n", ue.usage)
		return 1
	}
	fmt.Fprintln(stderr, err.Error())
	return 1
}

// usageError reports a command line that does not match a command's usage.
type usageError struct {
	usage string
	err   error
}

func (e *usageError) Error() string {
	if e.err == nil {
		return "usage: " + e.usage
	}
	return e.err.Error()
}

func (e *usageError) Unwrap() error { return e.err }

// usageLine renders "<command path> <args>" for cmd.
func usageLine(cmd *cobra.Command) string {
	return strings.TrimSuffix(cmd.UseLine(), " [flags]")
}

// exactArgs requires exactly n positional arguments.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return &usageError{usage: usageLine(cmd)}
		}
		return nil
	}
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  exactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "irfix %s\n", Version)
		},
	}
}
