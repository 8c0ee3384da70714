package cli

import (
	"github.com/spf13/cobra"

	"github.com/kyleseneker/irfix/internal/doctor"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand(rootOpts *RootOptions) *cobra.Command {
	var suffixes []string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "List installed llvm-dis and opt variants",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doctor.Run(cmd.Context(), doctor.Config{
				Suffixes: suffixes,
				Stdout:   cmd.OutOrStdout(),
				Stderr:   cmd.ErrOrStderr(),
				Timeout:  rootOpts.Timeout,
			})
		},
	}
	addSuffixFlag(cmd.Flags(), &suffixes, "LLVM version suffixes to check")
	return cmd
}
