package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/spectral.report/internal/spectral"
)

func newVersionCommand(version, commit, buildDate string) *cobra.Command {
	var listIndices bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "spectral %s\n", version)
			fmt.Fprintf(w, "  commit: %s\n", commit)
			fmt.Fprintf(w, "  built:  %s\n", buildDate)
			if listIndices {
				fmt.Fprintln(w, "indices:")
				for _, name := range spectral.Default.Names() {
					def, err := spectral.Default.Lookup(string(name))
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "  %-6s %s\n", name, def.Description)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&listIndices, "indices", false, "also list the supported indices")
	return cmd
}
