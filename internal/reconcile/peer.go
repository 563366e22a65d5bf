package reconcile

import (
	"context"
	"errors"

	"github.com/fabkube/fabkube/internal/cluster"
	"github.com/fabkube/fabkube/internal/topology"
)

// peerReconciler deploys the peer nodes of one group and, when the group
// declares a channel, joins every peer to it.
type peerReconciler struct {
	base
	group *topology.PeerGroup
}

func (r *peerReconciler) ID() topology.EntityID {
	return topology.EntityID{Kind: topology.KindPeer, Name: r.group.Name}
}

func (r *peerReconciler) Reconcile(ctx context.Context) Result {
	if err := r.client.EnsureNamespace(ctx, r.group.Namespace); err != nil {
		return failed(classify(err))
	}

	for _, node := range r.group.Names {
		if res, ok := r.ensureNodeRelease(ctx, node); !ok {
			return res
		}
	}

	selector := "app=hlf-peer,group=" + r.group.Name
	err := r.client.WaitReady(ctx, func(ctx context.Context) (bool, error) {
		return r.client.PodsReady(ctx, r.group.Namespace, selector, len(r.group.Names))
	}, r.opts.PollTimeout)
	if errors.Is(err, cluster.ErrNotReady) {
		return pending()
	}
	if err != nil {
		return failed(classify(err))
	}

	if r.group.ChannelName == "" {
		return ready()
	}
	return r.joinChannel(ctx)
}

func (r *peerReconciler) ensureNodeRelease(ctx context.Context, node string) (Result, bool) {
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
		Chart:     "hlf-peer",
		Version:   r.opts.ChartVersion,
		Values:    values,
	}
	if err := r.client.InstallOrUpgradeRelease(ctx, rel); err != nil {
		return failed(classify(err)), false
	}
	r.applied(r.ID(), "release "+name, true)
	return Result{}, true
}

func (r *peerReconciler) joinChannel(ctx context.Context) Result {
	job := joinJob(r.group)
	created, err := r.client.ApplyJob(ctx, job)
	if err != nil {
		return failed(classify(err))
	}
	r.applied(r.ID(), "job "+job.Name, created)

	err = r.client.WaitReady(ctx, func(ctx context.Context) (bool, error) {
		return r.client.JobSucceeded(ctx, job.Namespace, job.Name)
	}, r.opts.PollTimeout)
	if errors.Is(err, cluster.ErrNotReady) {
		return pending()
	}
	if err != nil {
		return failed(classify(err))
	}
	return ready()
}

func (r *peerReconciler) nodeValues(node string) cluster.Values {
	return cluster.Values{
		"id": node,
		"peer": map[string]interface{}{
			"mspID":    r.group.MSP,
			"domain":   r.group.Domain,
			"hostname": node,
			"gossip": map[string]interface{}{
				"bootstrap": releaseName(r.group.Name, r.group.Names[0]),
			},
		},
		"podLabels": map[string]interface{}{
			"group": r.group.Name,
		},
	}
}

var _ Reconciler = (*peerReconciler)(nil)
