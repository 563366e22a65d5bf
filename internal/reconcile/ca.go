package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/fabkube/fabkube/internal/cluster"
	"github.com/fabkube/fabkube/internal/topology"
)

// caReconciler brings one Fabric certificate authority release up and
// seeds its bootstrap admin credentials.
type caReconciler struct {
	base
	ca *topology.CA
}

func (r *caReconciler) ID() topology.EntityID {
	return topology.EntityID{Kind: topology.KindCA, Name: r.ca.Name}
}

func (r *caReconciler) Reconcile(ctx context.Context) Result {
	if err := r.client.EnsureNamespace(ctx, r.ca.Namespace); err != nil {
		return failed(classify(err))
	}

	// The chart bootstraps the CA server with these credentials, so they
	// must exist before the release.
	if res, ok := r.ensureAdminCreds(ctx); !ok {
		return res
	}
	if res, ok := r.ensureRelease(ctx); !ok {
		return res
	}

	// Readiness: the CA pod answers its health check, which Kubernetes
	// surfaces as pod readiness.
	err := r.client.WaitReady(ctx, func(ctx context.Context) (bool, error) {
		return r.client.PodsReady(ctx, r.ca.Namespace, "app=hlf-ca,release="+r.ca.Name, 1)
	}, r.opts.PollTimeout)
	if errors.Is(err, cluster.ErrNotReady) {
		return pending()
	}
	if err != nil {
		return failed(classify(err))
	}
	return ready()
}

func (r *caReconciler) ensureRelease(ctx context.Context) (Result, bool) {
	deployed, err := r.client.ReleaseDeployed(ctx, r.ca.Namespace, r.ca.Name)
	if err != nil {
		return failed(classify(err)), false
	}
	if deployed {
		r.applied(r.ID(), "release "+r.ca.Name, false)
		return Result{}, true
	}

	overrides, err := cluster.LoadValuesFile(r.topo.Core.DirValues, r.ca.Name)
	if err != nil {
		return failed(Permanent(err)), false
	}
	values := cluster.MergeValues(r.desiredValues(), overrides)

	rel := cluster.Release{
		Name:      r.ca.Name,
		Namespace: r.ca.Namespace,
		Chart:     "hlf-ca",
		Version:   r.opts.ChartVersion,
		Values:    values,
	}
	if err := r.client.InstallOrUpgradeRelease(ctx, rel); err != nil {
		return failed(classify(err)), false
	}
	r.applied(r.ID(), "release "+r.ca.Name, true)
	return Result{}, true
}

func (r *caReconciler) ensureAdminCreds(ctx context.Context) (Result, bool) {
	name := adminCredsSecret(r.ca.Name)
	exists, err := r.client.SecretExists(ctx, r.ca.Namespace, name)
	if err != nil {
		return failed(classify(err)), false
	}
	if exists {
		return Result{}, true
	}

	password, err := generatePassword()
	if err != nil {
		return failed(err), false
	}
	if _, err := r.client.EnsureSecret(ctx, r.ca.Namespace, name, map[string][]byte{
		"username": []byte(r.ca.Name + "-admin"),
		"password": []byte(password),
	}); err != nil {
		return failed(classify(err)), false
	}
	r.applied(r.ID(), "secret "+name, true)
	return Result{}, true
}

// desiredValues computes the chart values implied by the topology entry.
// The bootstrap admin identity comes from the credentials secret created
// before the release.
func (r *caReconciler) desiredValues() cluster.Values {
	return cluster.Values{
		"caName":        r.ca.Name,
		"adminUsername": r.ca.Name + "-admin",
		"adminSecret":   adminCredsSecret(r.ca.Name),
		"config": map[string]interface{}{
			"csr": map[string]interface{}{
				"names": map[string]interface{}{"O": r.topo.Core.ClusterName},
			},
		},
		"tls": map[string]interface{}{
			"secretName": r.ca.TLSCert,
		},
	}
}

var _ Reconciler = (*caReconciler)(nil)

func releaseName(group, node string) string {
	return fmt.Sprintf("%s-%s", group, node)
}
