// Package handlers implements the business logic for CLI commands.
//
// Handlers are framework-agnostic and called by the command definitions
// in the commands package. Collaborators are factory function variables
// so tests can inject fakes.
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fabkube/fabkube/internal/cluster"
	"github.com/fabkube/fabkube/internal/convergence"
	"github.com/fabkube/fabkube/internal/observe"
	"github.com/fabkube/fabkube/internal/orchestration"
	"github.com/fabkube/fabkube/internal/reconcile"
	"github.com/fabkube/fabkube/internal/topology"
	"github.com/fabkube/fabkube/internal/util/retry"
)

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadTopology loads and validates the topology document.
	loadTopology = topology.Load

	// newClusterClient builds the cluster adapter.
	newClusterClient = func(kubeconfigPath, chartRepo string) (cluster.Interface, error) {
		return cluster.NewClient(kubeconfigPath, chartRepo)
	}

	// newObserver creates the run observer.
	newObserver = func() observe.Observer {
		return observe.NewConsoleObserver()
	}

	// printSummary writes the final report to stdout.
	printSummary = func(summary string) {
		fmt.Print(summary)
	}
)

// DeployOptions carries the deploy command's flag values.
type DeployOptions struct {
	ConfigPath   string
	Kubeconfig   string
	Target       string
	MetricsAddr  string
	ChartVersion string
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	PollTimeout  time.Duration
}

// Deploy converges the declared topology against the cluster.
//
// The workflow is: load and validate the document, derive the dependency
// graph (optionally filtered to a target entity), then hand the graph to
// the convergence supervisor which runs reconciliation passes until every
// entity is Ready or no further progress is possible.
func Deploy(ctx context.Context, opts DeployOptions) error {
	obs := newObserver()

	topo, err := loadTopology(opts.ConfigPath)
	if err != nil {
		return &ExitError{Code: ExitValidation, Err: err}
	}
	// Every event of this run carries the cluster name.
	obs = obs.WithFields(map[string]string{"cluster": topo.Core.ClusterName})
	for _, w := range topo.Warnings {
		obs.Printf("warning: %s", w)
	}
	if topo.Composer != nil {
		obs.Printf("composer section validated; network composition is not deployed")
	}

	graph, err := topology.BuildGraph(topo)
	if err != nil {
		return &ExitError{Code: ExitValidation, Err: err}
	}
	if opts.Target != "" {
		target, err := parseTarget(opts.Target)
		if err != nil {
			return &ExitError{Code: ExitValidation, Err: err}
		}
		graph, err = graph.FilterTo(target)
		if err != nil {
			return &ExitError{Code: ExitValidation, Err: err}
		}
	}

	client, err := newClusterClient(opts.Kubeconfig, topo.Core.ChartRepo)
	if err != nil {
		return fmt.Errorf("failed to connect to cluster: %w", err)
	}

	var metrics *observe.Metrics
	if opts.MetricsAddr != "" {
		metrics = observe.NewMetrics()
		errc := metrics.Serve(ctx, opts.MetricsAddr)
		go func() {
			if err, ok := <-errc; ok && err != nil {
				obs.Printf("metrics listener failed: %v", err)
			}
		}()
	}

	cfg := backoffConfig(opts)
	ropts := reconcileOptions(opts)

	pool := reconcile.NewPool(topo, client, obs, ropts)
	orch, err := orchestration.New(graph, pool, orchestration.NewStatusMap(graph), obs, metrics, cfg.MaxAttempts)
	if err != nil {
		return &ExitError{Code: ExitValidation, Err: err}
	}

	report, err := convergence.New(orch, graph, obs, metrics, cfg).Run(ctx)
	if report != nil {
		printSummary(report.Summary())
	}
	if err != nil {
		return err
	}
	if !report.Converged {
		return &ExitError{
			Code: ExitConvergence,
			Err:  fmt.Errorf("%d entities did not converge: %s", len(report.FailedEntities()), strings.Join(report.FailedEntities(), ", ")),
		}
	}
	return nil
}

func backoffConfig(opts DeployOptions) retry.Config {
	cfg := retry.DefaultConfig()
	if opts.MaxAttempts > 0 {
		cfg = cfg.Apply(retry.WithMaxAttempts(opts.MaxAttempts))
	}
	if opts.InitialDelay > 0 {
		cfg = cfg.Apply(retry.WithInitialDelay(opts.InitialDelay))
	}
	if opts.MaxDelay > 0 {
		cfg = cfg.Apply(retry.WithMaxDelay(opts.MaxDelay))
	}
	return cfg
}

func reconcileOptions(opts DeployOptions) reconcile.Options {
	ropts := reconcile.DefaultOptions()
	if opts.PollTimeout > 0 {
		ropts.PollTimeout = opts.PollTimeout
	}
	ropts.ChartVersion = opts.ChartVersion
	return ropts
}

// parseTarget parses a "kind/name" entity reference.
func parseTarget(s string) (topology.EntityID, error) {
	kind, name, ok := strings.Cut(s, "/")
	if !ok || name == "" {
		return topology.EntityID{}, fmt.Errorf("invalid target %q: expected kind/name", s)
	}
	switch topology.Kind(kind) {
	case topology.KindCA, topology.KindMSP, topology.KindOrderer, topology.KindPeer, topology.KindChannel:
		return topology.EntityID{Kind: topology.Kind(kind), Name: name}, nil
	default:
		return topology.EntityID{}, fmt.Errorf("invalid target kind %q: expected ca, msp, orderer, peer, or channel", kind)
	}
}
