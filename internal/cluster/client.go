package cluster

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// pollInterval is the probe cadence for WaitReady. Cancellation therefore
// propagates to in-flight waits within one interval.
const pollInterval = 5 * time.Second

// Client implements Interface against a real cluster using client-go for
// resources and Helm for releases.
type Client struct {
	clientset kubernetes.Interface
	releases  *ReleaseManager
}

// NewClient builds a Client from a kubeconfig file and the chart
// repository URL releases are resolved against.
func NewClient(kubeconfigPath, chartRepo string) (*Client, error) {
	// #nosec G304
	kubeconfig, err := os.ReadFile(kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read kubeconfig: %w", err)
	}
	return NewClientFromBytes(kubeconfig, chartRepo)
}

// NewClientFromBytes builds a Client from in-memory kubeconfig bytes.
func NewClientFromBytes(kubeconfig []byte, chartRepo string) (*Client, error) {
	config, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return &Client{
		clientset: clientset,
		releases:  NewReleaseManager(kubeconfig, chartRepo),
	}, nil
}

// EnsureNamespace implements Interface.
func (c *Client) EnsureNamespace(ctx context.Context, name string) error {
	_, err := c.clientset.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to get namespace %s: %w", name, err)
	}

	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
	if _, err := c.clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{}); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("failed to create namespace %s: %w", name, err)
	}
	return nil
}

// EnsureSecret implements Interface. Identical data is a no-op so that a
// converged topology produces zero mutating calls on re-runs.
func (c *Client) EnsureSecret(ctx context.Context, namespace, name string, data map[string][]byte) (bool, error) {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Data:       data,
		Type:       corev1.SecretTypeOpaque,
	}

	existing, err := c.clientset.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err == nil {
		if secretDataEqual(existing.Data, data) {
			return false, nil
		}
		if _, err := c.clientset.CoreV1().Secrets(namespace).Update(ctx, secret, metav1.UpdateOptions{}); err != nil {
			return false, fmt.Errorf("failed to update secret %s/%s: %w", namespace, name, err)
		}
		return true, nil
	}
	if !apierrors.IsNotFound(err) {
		return false, fmt.Errorf("failed to get secret %s/%s: %w", namespace, name, err)
	}

	if _, err := c.clientset.CoreV1().Secrets(namespace).Create(ctx, secret, metav1.CreateOptions{}); err != nil {
		return false, fmt.Errorf("failed to create secret %s/%s: %w", namespace, name, err)
	}
	return true, nil
}

// SecretExists implements Interface.
func (c *Client) SecretExists(ctx context.Context, namespace, name string) (bool, error) {
	_, err := c.clientset.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err == nil {
		return true, nil
	}
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to get secret %s/%s: %w", namespace, name, err)
}

// GetSecret implements Interface.
func (c *Client) GetSecret(ctx context.Context, namespace, name string) (map[string][]byte, error) {
	secret, err := c.clientset.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s/%s: %w", namespace, name, err)
	}
	return secret.Data, nil
}

// ApplyJob implements Interface.
func (c *Client) ApplyJob(ctx context.Context, job *batchv1.Job) (bool, error) {
	_, err := c.clientset.BatchV1().Jobs(job.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if err == nil {
		return true, nil
	}
	if apierrors.IsAlreadyExists(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to create job %s/%s: %w", job.Namespace, job.Name, err)
}

// JobSucceeded implements Interface.
func (c *Client) JobSucceeded(ctx context.Context, namespace, name string) (bool, error) {
	job, err := c.clientset.BatchV1().Jobs(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get job %s/%s: %w", namespace, name, err)
	}

	for _, cond := range job.Status.Conditions {
		if cond.Status != corev1.ConditionTrue {
			continue
		}
		switch cond.Type {
		case batchv1.JobComplete:
			return true, nil
		case batchv1.JobFailed:
			return false, fmt.Errorf("job %s/%s: %s: %w", namespace, name, cond.Message, ErrJobFailed)
		}
	}
	return false, nil
}

// PodsReady implements Interface.
func (c *Client) PodsReady(ctx context.Context, namespace, labelSelector string, want int) (bool, error) {
	podList, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return false, fmt.Errorf("failed to list pods: %w", err)
	}

	if len(podList.Items) < want {
		return false, nil
	}
	for i := range podList.Items {
		if !isPodReady(&podList.Items[i]) {
			return false, nil
		}
	}
	return true, nil
}

// WaitReady implements Interface.
func (c *Client) WaitReady(ctx context.Context, probe ReadinessProbe, timeout time.Duration) error {
	err := wait.PollUntilContextTimeout(ctx, pollInterval, timeout, true,
		func(ctx context.Context) (bool, error) {
			return probe(ctx)
		})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if wait.Interrupted(err) {
		return ErrNotReady
	}
	return err
}

// InstallOrUpgradeRelease implements Interface.
func (c *Client) InstallOrUpgradeRelease(ctx context.Context, rel Release) error {
	return c.releases.InstallOrUpgrade(ctx, rel)
}

// ReleaseDeployed implements Interface.
func (c *Client) ReleaseDeployed(ctx context.Context, namespace, name string) (bool, error) {
	return c.releases.Deployed(ctx, namespace, name)
}

func isPodReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, condition := range pod.Status.Conditions {
		if condition.Type == corev1.PodReady && condition.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

func secretDataEqual(a, b map[string][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if !bytes.Equal(b[k], v) {
			return false
		}
	}
	return true
}
