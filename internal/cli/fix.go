package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kyleseneker/irfix/internal/transform"
)

// NewFixCommand creates the fix command.
func NewFixCommand(rootOpts *RootOptions) *cobra.Command {
	var normalize string
	cmd := &cobra.Command{
		Use:   "fix <input.ll> <output.ll>",
		Short: "Rewrite mismatched byte-buffer stores through typed-pointer bitcasts",
		Long: `Copy textual LLVM IR from input to output, inserting a bitcast to a
matching typed pointer before every store of a wide integer or pointer
into an [N x i8] allocation, and rewriting the store to use it.

Lines that are not rewritten have bare "ptr" keywords respelled as "i8*"
according to --normalize: legacy rewrites every whole-word occurrence not
followed by a register, scoped leaves comments, strings and identifiers
alone, off disables it.`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := transform.ParseNormalizeMode(normalize)
			if err != nil {
				return &usageError{usage: usageLine(cmd), err: err}
			}
			stats, err := transform.Run(cmd.Context(), args[0], args[1], transform.Options{
				Normalize: mode,
				Logger:    rootOpts.logger(cmd.ErrOrStderr()),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Fixed %d lines of LLVM IR (%d stores rewritten)\n", stats.Lines, stats.Rewrites)
			return nil
		},
	}
	cmd.Flags().StringVar(&normalize, "normalize", string(transform.NormalizeLegacy),
		"ptr keyword normalization on untouched lines (legacy|scoped|off)")
	return cmd
}
