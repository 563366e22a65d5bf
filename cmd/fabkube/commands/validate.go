package commands

import (
	"github.com/spf13/cobra"

	"github.com/fabkube/fabkube/cmd/fabkube/handlers"
)

// Validate returns the command that checks a topology document without
// touching the cluster.
func Validate() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a topology document",
		Long: `Validate the topology document and print the scheduling layers.

All violations are reported together, so the document can be fixed in a
single iteration. Nothing is deployed.

Examples:
  fabkube validate
  fabkube validate -c production.yaml`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return handlers.Validate(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fabkube.yaml", "Path to topology file")

	return cmd
}
