package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fabkube/fabkube/internal/cluster"
	"github.com/fabkube/fabkube/internal/topology"
)

// ordererReconciler deploys the ordering nodes of one group. The genesis
// block is read from the local artifact directory and stored as a secret
// all node releases mount.
type ordererReconciler struct {
	base
	group *topology.OrdererGroup
}

func (r *ordererReconciler) ID() topology.EntityID {
	return topology.EntityID{Kind: topology.KindOrderer, Name: r.group.Name}
}

func (r *ordererReconciler) Reconcile(ctx context.Context) Result {
	if err := r.client.EnsureNamespace(ctx, r.group.Namespace); err != nil {
		return failed(classify(err))
	}

	if res, ok := r.ensureGenesisSecret(ctx); !ok {
		return res
	}

	for _, node := range r.group.Names {
		if res, ok := r.ensureNodeRelease(ctx, node); !ok {
			return res
		}
	}

	selector := "app=hlf-ord,group=" + r.group.Name
	err := r.client.WaitReady(ctx, func(ctx context.Context) (bool, error) {
		return r.client.PodsReady(ctx, r.group.Namespace, selector, len(r.group.Names))
	}, r.opts.PollTimeout)
	if errors.Is(err, cluster.ErrNotReady) {
		return pending()
	}
	if err != nil {
		return failed(classify(err))
	}
	return ready()
}

func (r *ordererReconciler) ensureGenesisSecret(ctx context.Context) (Result, bool) {
	exists, err := r.client.SecretExists(ctx, r.group.Namespace, r.group.SecretGenesis)
	if err != nil {
		return failed(classify(err)), false
	}
	if exists {
		r.applied(r.ID(), "secret "+r.group.SecretGenesis, false)
		return Result{}, true
	}

	path := filepath.Join(r.topo.Core.DirGenesis, "genesis.block")
	// #nosec G304
	block, err := os.ReadFile(path)
	if err != nil {
		// A missing artifact is a configuration problem; retrying would
		// re-read the same filesystem.
		return failed(Permanent(fmt.Errorf("failed to read genesis block: %w", err))), false
	}

	if _, err := r.client.EnsureSecret(ctx, r.group.Namespace, r.group.SecretGenesis, map[string][]byte{
		"genesis.block": block,
	}); err != nil {
		return failed(classify(err)), false
	}
	r.applied(r.ID(), "secret "+r.group.SecretGenesis, true)
	return Result{}, true
}

func (r *ordererReconciler) ensureNodeRelease(ctx context.Context, node string) (Result, bool) {
	name := releaseName(r.group.Name, node)

	deployed, err := r.client.ReleaseDeployed(ctx, r.group.Namespace, name)
	if err != nil {
		return failed(classify(err)), false
	}
	if deployed {
		r.applied(r.ID(), "release "+name, false)
		return Result{}, true
	}

	overrides, err := cluster.LoadValuesFile(r.topo.Core.DirValues, name)
	if err != nil {
		return failed(Permanent(err)), false
	}
	values := cluster.MergeValues(r.nodeValues(node), overrides)

	rel := cluster.Release{
		Name:      name,
		Namespace: r.group.Namespace,
		Chart:     "hlf-ord",
		Version:   r.opts.ChartVersion,
		Values:    values,
	}
	if err := r.client.InstallOrUpgradeRelease(ctx, rel); err != nil {
		return failed(classify(err)), false
	}
	r.applied(r.ID(), "release "+name, true)
	return Result{}, true
}

func (r *ordererReconciler) nodeValues(node string) cluster.Values {
	return cluster.Values{
		"id": node,
		"ord": map[string]interface{}{
			"type":     "etcdraft",
			"mspID":    r.group.MSP,
			"domain":   r.group.Domain,
			"hostname": node,
		},
		"secrets": map[string]interface{}{
			"genesis": r.group.SecretGenesis,
		},
		"podLabels": map[string]interface{}{
			"group": r.group.Name,
		},
	}
}

var _ Reconciler = (*ordererReconciler)(nil)
