package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Version:  %s\n", Version)
			fmt.Fprintf(out, "Commit:   %s\n", Commit)
			fmt.Fprintf(out, "Built:    %s\n", Date)
			return nil
		},
	}
}
