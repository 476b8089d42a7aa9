package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/flowtree/internal/demo"
)

// NewFlowsCommand creates the flows command.
func NewFlowsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "flows",
		Short:         "List the flows scenarios can run",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := demo.Catalog()

			if rootOpts.Format == "json" {
				formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
				return formatter.Success(catalog)
			}

			w := cmd.OutOrStdout()
			for i, e := range catalog {
				if i > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "%s - %s\n", e.Name, e.Description)
				fmt.Fprintf(w, "  input:  %s\n", e.Input)
				fmt.Fprintf(w, "  events: %s\n", e.Events)
			}
			return nil
		},
	}
}
