package reconcile

import (
	"context"
	"errors"

	"github.com/fabkube/fabkube/internal/cluster"
	"github.com/fabkube/fabkube/internal/topology"
)

// mspReconciler registers and enrolls the MSP's org admin identity
// against the organization's CA. The enroll job persists the identity's
// MSP material as a secret; that secret is the readiness signal, so a
// re-run with the identity already enrolled is a no-op.
type mspReconciler struct {
	base
	msp *topology.MSP
	ca  *topology.CA
}

func (r *mspReconciler) ID() topology.EntityID {
	return topology.EntityID{Kind: topology.KindMSP, Name: r.msp.Name}
}

func (r *mspReconciler) Reconcile(ctx context.Context) Result {
	if err := r.client.EnsureNamespace(ctx, r.msp.Namespace); err != nil {
		return failed(classify(err))
	}

	mspSecret := adminMSPSecret(r.msp.OrgAdmin)
	enrolled, err := r.client.SecretExists(ctx, r.msp.Namespace, mspSecret)
	if err != nil {
		return failed(classify(err))
	}
	if enrolled {
		return ready()
	}

	caCreds := adminCredsSecret(r.ca.Name)
	if res, ok := r.ensureCAAdminCreds(ctx, caCreds); !ok {
		return res
	}
	orgCreds := adminCredsSecret(r.msp.OrgAdmin)
	if res, ok := r.ensureOrgAdminCreds(ctx, orgCreds); !ok {
		return res
	}

	job := enrollJob(r.msp, r.ca, caCreds, orgCreds, mspSecret)
	created, err := r.client.ApplyJob(ctx, job)
	if err != nil {
		return failed(classify(err))
	}
	r.applied(r.ID(), "job "+job.Name, created)

	// The job's final step stores the MSP material, so either signal
	// means the org admin identity exists.
	err = r.client.WaitReady(ctx, func(ctx context.Context) (bool, error) {
		if ok, err := r.client.SecretExists(ctx, r.msp.Namespace, mspSecret); err != nil || ok {
			return ok, err
		}
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

// ensureCAAdminCreds makes the CA bootstrap admin credentials available
// in the MSP's namespace; registration runs under that identity.
func (r *mspReconciler) ensureCAAdminCreds(ctx context.Context, name string) (Result, bool) {
	exists, err := r.client.SecretExists(ctx, r.msp.Namespace, name)
	if err != nil {
		return failed(classify(err)), false
	}
	if exists {
		return Result{}, true
	}

	data, err := r.client.GetSecret(ctx, r.ca.Namespace, name)
	if err != nil {
		return failed(classify(err)), false
	}
	if _, err := r.client.EnsureSecret(ctx, r.msp.Namespace, name, data); err != nil {
		return failed(classify(err)), false
	}
	r.applied(r.ID(), "secret "+name, true)
	return Result{}, true
}

func (r *mspReconciler) ensureOrgAdminCreds(ctx context.Context, name string) (Result, bool) {
	exists, err := r.client.SecretExists(ctx, r.msp.Namespace, name)
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
	if _, err := r.client.EnsureSecret(ctx, r.msp.Namespace, name, map[string][]byte{
		"username": []byte(r.msp.OrgAdmin),
		"password": []byte(password),
	}); err != nil {
		return failed(classify(err)), false
	}
	r.applied(r.ID(), "secret "+name, true)
	return Result{}, true
}

var _ Reconciler = (*mspReconciler)(nil)
