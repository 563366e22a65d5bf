// Package cluster is the adapter between reconcilers and the Kubernetes
// control plane. Everything above it consumes the capability interface
// below and never assumes a transport, auth scheme, or manifest format
// beyond apply / get / waitReady / release.
package cluster

import (
	"context"
	"errors"
	"time"

	batchv1 "k8s.io/api/batch/v1"
)

// ErrNotReady is returned by WaitReady when the probe did not report
// readiness within the timeout. Callers translate it into a Pending
// reconcile result; it is never a failure by itself.
var ErrNotReady = errors.New("resource not ready within timeout")

// ErrJobFailed wraps a job that reached its terminal failed condition.
// Unlike a slow job this is never healed by waiting, so reconcilers
// classify it as permanent.
var ErrJobFailed = errors.New("job failed")

// ReadinessProbe reports whether a resource has reached its ready state.
// Returning an error aborts the wait; returning (false, nil) keeps polling.
type ReadinessProbe func(ctx context.Context) (bool, error)

// Release describes one Helm release to install or upgrade.
type Release struct {
	Name      string
	Namespace string
	Chart     string
	Version   string
	Values    map[string]interface{}
}

// Interface is the capability surface reconcilers are written against.
//
// All operations are idempotent: applying an already-applied resource with
// an identical spec is a no-op, applying with a changed spec updates it.
// The adapter never deletes resources.
type Interface interface {
	// EnsureNamespace creates the namespace if it does not exist.
	EnsureNamespace(ctx context.Context, name string) error

	// EnsureSecret creates or updates an opaque secret. It reports
	// whether a mutating call was made; identical data is a no-op.
	EnsureSecret(ctx context.Context, namespace, name string, data map[string][]byte) (changed bool, err error)

	// SecretExists reports whether a secret is present.
	SecretExists(ctx context.Context, namespace, name string) (bool, error)

	// GetSecret returns the data of an existing secret. A missing secret
	// is an error; callers probe with SecretExists first.
	GetSecret(ctx context.Context, namespace, name string) (map[string][]byte, error)

	// ApplyJob creates the job if it does not exist. Jobs are immutable;
	// an existing job with the same name is left untouched.
	ApplyJob(ctx context.Context, job *batchv1.Job) (created bool, err error)

	// JobSucceeded reports whether the named job completed successfully.
	// A job that exceeded its backoff limit returns an error.
	JobSucceeded(ctx context.Context, namespace, name string) (bool, error)

	// PodsReady reports whether at least want pods matching the selector
	// are running and ready.
	PodsReady(ctx context.Context, namespace, labelSelector string, want int) (bool, error)

	// WaitReady polls the probe until it reports ready, the timeout
	// elapses (ErrNotReady), the probe errors, or ctx is cancelled.
	WaitReady(ctx context.Context, probe ReadinessProbe, timeout time.Duration) error

	// InstallOrUpgradeRelease installs the chart release or upgrades it
	// when already present.
	InstallOrUpgradeRelease(ctx context.Context, rel Release) error

	// ReleaseDeployed reports whether the release exists with a deployed
	// status.
	ReleaseDeployed(ctx context.Context, namespace, name string) (bool, error)
}
