package commands

import (
	"github.com/spf13/cobra"

	"github.com/fabkube/fabkube/cmd/fabkube/handlers"
)

// Init returns the command that scaffolds a topology document through an
// interactive wizard.
func Init() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a topology document interactively",
		Long: `Create a topology document through a short interactive wizard.

The generated YAML is fully explicit: every default is written out so the
document can be reviewed and edited before deploying.

Examples:
  fabkube init
  fabkube init -o production.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "fabkube.yaml", "Path to write the topology file")

	return cmd
}
