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

// channelReconciler creates one channel on the ordering service. The
// channel transaction is read from the local artifact directory, stored
// as a secret in every namespace that needs it, and submitted through a
// one-shot job running next to the orderers.
type channelReconciler struct {
	base
	channel string
}

func (r *channelReconciler) ID() topology.EntityID {
	return topology.EntityID{Kind: topology.KindChannel, Name: r.channel}
}

func (r *channelReconciler) Reconcile(ctx context.Context) Result {
	groups := r.topo.PeerGroupsForChannel(r.channel)
	og := r.topo.Orderers[r.topo.OrdererNames()[0]]
	// Validation guarantees every group on this channel names the same
	// artifact secret.
	secretChannel := groups[0].SecretChannel

	tx, err := r.channelTx()
	if err != nil {
		return failed(Permanent(err))
	}

	// The job mounts the channel transaction in the orderer namespace;
	// peers later mount the same secret from their own namespace.
	namespaces := []string{og.Namespace}
	for _, pg := range groups {
		namespaces = append(namespaces, pg.Namespace)
	}
	for _, ns := range namespaces {
		if err := r.client.EnsureNamespace(ctx, ns); err != nil {
			return failed(classify(err))
		}
		if res, ok := r.ensureTxSecret(ctx, ns, secretChannel, tx); !ok {
			return res
		}
	}

	job := channelCreateJob(r.channel, og.Namespace, secretChannel, og)
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

func (r *channelReconciler) ensureTxSecret(ctx context.Context, namespace, name string, tx []byte) (Result, bool) {
	changed, err := r.client.EnsureSecret(ctx, namespace, name, map[string][]byte{
		r.channel + ".tx": tx,
	})
	if err != nil {
		return failed(classify(err)), false
	}
	r.applied(r.ID(), fmt.Sprintf("secret %s/%s", namespace, name), changed)
	return Result{}, true
}

func (r *channelReconciler) channelTx() ([]byte, error) {
	path := filepath.Join(r.topo.Core.DirChannel, r.channel+".tx")
	// #nosec G304
	tx, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read channel transaction: %w", err)
	}
	return tx, nil
}

var _ Reconciler = (*channelReconciler)(nil)
