package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/kyleseneker/irfix/internal/analyze"
	"github.com/kyleseneker/irfix/internal/diag"
)

// NewAnalyzeBCCommand creates the analyze-bc command.
func NewAnalyzeBCCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		suffixes []string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "analyze-bc <bitcode-file>",
		Short: "Find an installed LLVM disassembler that can read a bitcode file",
		Long: `Try llvm-dis, then opt -S, for each LLVM version suffix in turn. The
first variant that succeeds has its output summarized: the total line count
and the first load/store instructions with surrounding context.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := rootOpts.logger(cmd.ErrOrStderr())
			res, ok := analyze.Probe(cmd.Context(), analyze.ProbeConfig{
				Input:    args[0],
				Suffixes: suffixes,
				Limit:    limit,
				Runner:   rootOpts.runner(),
				Stdout:   cmd.OutOrStdout(),
				Logger:   log,
			})
			log.Debug("analyze-bc finished", "ok", ok, "tool", res.Tool)
			return nil
		},
	}
	addSuffixFlag(cmd.Flags(), &suffixes, "LLVM version suffixes to try, in order")
	cmd.Flags().IntVar(&limit, "limit", analyze.DefaultLimit, "number of load/store sites to show")
	return cmd
}

// NewAnalyzeTypesCommand creates the analyze-types command.
func NewAnalyzeTypesCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		format  string
		llvmDis string
	)
	cmd := &cobra.Command{
		Use:   "analyze-types <ir-or-bitcode-file>",
		Short: "Report stores of wide values into byte buffers",
		Long: `Scan LLVM IR for stores whose destination pointer derives from an
[N x i8] allocation while the stored value is not i8. Bitcode input is
disassembled with llvm-dis first. Nothing is modified.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := analyze.Types(cmd.Context(), analyze.TypesConfig{
				Input:   args[0],
				Format:  format,
				LLVMDis: llvmDis,
				Runner:  rootOpts.runner(),
				Stdout:  cmd.OutOrStdout(),
				Logger:  rootOpts.logger(cmd.ErrOrStderr()),
			})
			var de *diag.Error
			if errors.As(err, &de) && de.Stage == diag.StageUsage {
				return &usageError{usage: usageLine(cmd), err: de.Err}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", analyze.FormatText, "output format (text|json)")
	cmd.Flags().StringVar(&llvmDis, "llvm-dis", "", "path to the llvm-dis binary used for bitcode input")
	return cmd
}
