// Package fake provides an in-memory cluster adapter for tests. It is
// programmable: releases can be made to fail permanently, and readiness
// probes can report pending for a configured number of polls before
// turning ready.
package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	batchv1 "k8s.io/api/batch/v1"

	"github.com/fabkube/fabkube/internal/cluster"
)

// Adapter is an in-memory implementation of cluster.Interface.
type Adapter struct {
	mu sync.Mutex

	namespaces map[string]bool
	secrets    map[string]map[string][]byte
	jobs       map[string]bool
	releases   map[string]cluster.Release

	// InstallErr fails InstallOrUpgradeRelease for the named release.
	InstallErr map[string]error
	// JobErr fails JobSucceeded for the keyed job ("namespace/name").
	JobErr map[string]error
	// PendingPolls makes readiness probes report not-ready for the first
	// N polls of the keyed resource ("release <name>", "job <ns>/<name>",
	// "pods <ns>/<selector>").
	PendingPolls map[string]int

	// MutatingCalls counts every call that would change cluster state.
	MutatingCalls int
}

// New creates an empty fake adapter.
func New() *Adapter {
	return &Adapter{
		namespaces:   make(map[string]bool),
		secrets:      make(map[string]map[string][]byte),
		jobs:         make(map[string]bool),
		releases:     make(map[string]cluster.Release),
		InstallErr:   make(map[string]error),
		JobErr:       make(map[string]error),
		PendingPolls: make(map[string]int),
	}
}

// EnsureNamespace implements cluster.Interface.
func (a *Adapter) EnsureNamespace(_ context.Context, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.namespaces[name] {
		a.namespaces[name] = true
		a.MutatingCalls++
	}
	return nil
}

// EnsureSecret implements cluster.Interface.
func (a *Adapter) EnsureSecret(_ context.Context, namespace, name string, data map[string][]byte) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := namespace + "/" + name
	if existing, ok := a.secrets[key]; ok && dataEqual(existing, data) {
		return false, nil
	}
	a.secrets[key] = data
	a.MutatingCalls++
	return true, nil
}

// SecretExists implements cluster.Interface.
func (a *Adapter) SecretExists(_ context.Context, namespace, name string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.secrets[namespace+"/"+name]
	return ok, nil
}

// GetSecret implements cluster.Interface.
func (a *Adapter) GetSecret(_ context.Context, namespace, name string) (map[string][]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.secrets[namespace+"/"+name]
	if !ok {
		return nil, fmt.Errorf("secret %s/%s not found", namespace, name)
	}
	return data, nil
}

// SecretData returns the stored data of a secret, for assertions.
func (a *Adapter) SecretData(namespace, name string) map[string][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.secrets[namespace+"/"+name]
}

// SeedSecret stores a secret without counting a mutating call.
func (a *Adapter) SeedSecret(namespace, name string, data map[string][]byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.secrets[namespace+"/"+name] = data
}

// ApplyJob implements cluster.Interface.
func (a *Adapter) ApplyJob(_ context.Context, job *batchv1.Job) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := job.Namespace + "/" + job.Name
	if a.jobs[key] {
		return false, nil
	}
	a.jobs[key] = true
	a.MutatingCalls++
	return true, nil
}

// SeedJob marks a job as applied and complete without a mutating call.
func (a *Adapter) SeedJob(namespace, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jobs[namespace+"/"+name] = true
}

// JobSucceeded implements cluster.Interface.
func (a *Adapter) JobSucceeded(_ context.Context, namespace, name string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := namespace + "/" + name
	if err := a.JobErr[key]; err != nil {
		return false, err
	}
	if !a.jobs[key] {
		return false, nil
	}
	return a.poll("job " + key), nil
}

// PodsReady implements cluster.Interface.
func (a *Adapter) PodsReady(_ context.Context, namespace, labelSelector string, _ int) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.poll(fmt.Sprintf("pods %s/%s", namespace, labelSelector)), nil
}

// WaitReady implements cluster.Interface. The fake runs the probe once so
// tests exercise the supervisor's re-poll loop instead of sleeping.
func (a *Adapter) WaitReady(ctx context.Context, probe cluster.ReadinessProbe, _ time.Duration) error {
	ready, err := probe(ctx)
	if err != nil {
		return err
	}
	if !ready {
		return cluster.ErrNotReady
	}
	return nil
}

// InstallOrUpgradeRelease implements cluster.Interface.
func (a *Adapter) InstallOrUpgradeRelease(_ context.Context, rel cluster.Release) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.InstallErr[rel.Name]; err != nil {
		return err
	}
	a.releases[rel.Namespace+"/"+rel.Name] = rel
	a.MutatingCalls++
	return nil
}

// SeedRelease records a deployed release without a mutating call.
func (a *Adapter) SeedRelease(namespace, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releases[namespace+"/"+name] = cluster.Release{Name: name, Namespace: namespace}
}

// ReleaseDeployed implements cluster.Interface.
func (a *Adapter) ReleaseDeployed(_ context.Context, namespace, name string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.releases[namespace+"/"+name]
	return ok, nil
}

// Release returns the recorded release, for assertions.
func (a *Adapter) Release(namespace, name string) (cluster.Release, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rel, ok := a.releases[namespace+"/"+name]
	return rel, ok
}

// poll consumes one configured pending poll for the key and reports
// whether the resource is now ready.
func (a *Adapter) poll(key string) bool {
	if remaining, ok := a.PendingPolls[key]; ok && remaining > 0 {
		a.PendingPolls[key] = remaining - 1
		return false
	}
	return true
}

func dataEqual(a, b map[string][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if string(b[k]) != string(v) {
			return false
		}
	}
	return true
}
