package commands

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fabkube/fabkube/cmd/fabkube/handlers"
)

// Deploy returns the command that converges a topology against a cluster.
//
// Optional flags:
//
//	--config, -c: Path to the topology YAML file (default: fabkube.yaml)
//	--kubeconfig: Path to the kubeconfig (default: $KUBECONFIG or ~/.kube/config)
//	--target: Restrict the run to one entity and its dependencies (kind/name)
//	--metrics-addr: Expose prometheus metrics during the run
func Deploy() *cobra.Command {
	var opts handlers.DeployOptions

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create or update the Fabric network",
		Long: `Converge the declared network topology against the cluster.

The topology document describes the desired network; deploy reconciles
every component in dependency order and retries transient failures with
exponential backoff until the network converges.

Re-running deploy on a converged network is a no-op.

Exit codes:
  0  every entity is Ready
  1  the topology document is invalid
  2  the network did not converge

Examples:
  # Deploy using fabkube.yaml in the current directory
  fabkube deploy

  # Deploy a specific topology file
  fabkube deploy -c production.yaml

  # Converge a single peer group and its dependencies
  fabkube deploy --target peer/org1-peers`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Kubeconfig == "" {
				opts.Kubeconfig = defaultKubeconfig()
			}
			return handlers.Deploy(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "fabkube.yaml", "Path to topology file")
	cmd.Flags().StringVar(&opts.Kubeconfig, "kubeconfig", "", "Path to kubeconfig (default: $KUBECONFIG or ~/.kube/config)")
	cmd.Flags().StringVar(&opts.Target, "target", "", "Converge only this entity and its dependencies (kind/name)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Expose prometheus metrics on this address during the run")
	cmd.Flags().StringVar(&opts.ChartVersion, "chart-version", "", "Pin the Fabric chart version")
	cmd.Flags().IntVar(&opts.MaxAttempts, "max-attempts", 10, "Per-entity reconciliation attempt budget")
	cmd.Flags().DurationVar(&opts.InitialDelay, "initial-delay", 2*time.Second, "Initial delay between passes")
	cmd.Flags().DurationVar(&opts.MaxDelay, "max-delay", 60*time.Second, "Maximum delay between passes")
	cmd.Flags().DurationVar(&opts.PollTimeout, "poll-timeout", 30*time.Second, "Readiness poll timeout per attempt")

	return cmd
}

func defaultKubeconfig() string {
	if path := os.Getenv("KUBECONFIG"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".kube", "config")
}
