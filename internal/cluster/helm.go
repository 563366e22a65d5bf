package cluster

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/getter"
	"helm.sh/helm/v3/pkg/release"
	"helm.sh/helm/v3/pkg/repo"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
)

// ReleaseManager drives Helm releases across namespaces using in-memory
// kubeconfig bytes. Action configurations are created lazily per namespace
// because Helm binds storage to a single namespace.
type ReleaseManager struct {
	kubeconfig []byte
	repoURL    string

	mu      sync.Mutex
	configs map[string]*action.Configuration
}

// NewReleaseManager creates a release manager for the given chart repo.
func NewReleaseManager(kubeconfig []byte, repoURL string) *ReleaseManager {
	return &ReleaseManager{
		kubeconfig: kubeconfig,
		repoURL:    repoURL,
		configs:    make(map[string]*action.Configuration),
	}
}

// InstallOrUpgrade installs the release or upgrades it when present.
func (m *ReleaseManager) InstallOrUpgrade(ctx context.Context, rel Release) error {
	actionConfig, err := m.configFor(rel.Namespace)
	if err != nil {
		return err
	}

	histClient := action.NewHistory(actionConfig)
	histClient.Max = 1
	if _, err := histClient.Run(rel.Name); err != nil {
		return m.install(ctx, actionConfig, rel)
	}
	return m.upgrade(ctx, actionConfig, rel)
}

// Deployed reports whether the release exists and its latest revision is
// in the deployed state.
func (m *ReleaseManager) Deployed(_ context.Context, namespace, name string) (bool, error) {
	actionConfig, err := m.configFor(namespace)
	if err != nil {
		return false, err
	}

	statusClient := action.NewStatus(actionConfig)
	rel, err := statusClient.Run(name)
	if err != nil {
		return false, nil
	}
	return rel.Info.Status == release.StatusDeployed, nil
}

func (m *ReleaseManager) install(ctx context.Context, actionConfig *action.Configuration, rel Release) error {
	installClient := action.NewInstall(actionConfig)
	installClient.ReleaseName = rel.Name
	installClient.Namespace = rel.Namespace
	installClient.CreateNamespace = true
	installClient.Version = rel.Version
	installClient.Timeout = 10 * time.Minute

	ch, err := m.loadChart(rel.Chart, rel.Version)
	if err != nil {
		return fmt.Errorf("failed to load chart: %w", err)
	}

	if _, err := installClient.RunWithContext(ctx, ch, rel.Values); err != nil {
		return fmt.Errorf("failed to install release %s: %w", rel.Name, err)
	}
	return nil
}

func (m *ReleaseManager) upgrade(ctx context.Context, actionConfig *action.Configuration, rel Release) error {
	upgradeClient := action.NewUpgrade(actionConfig)
	upgradeClient.Namespace = rel.Namespace
	upgradeClient.Version = rel.Version
	upgradeClient.ReuseValues = false
	upgradeClient.Timeout = 10 * time.Minute

	ch, err := m.loadChart(rel.Chart, rel.Version)
	if err != nil {
		return fmt.Errorf("failed to load chart: %w", err)
	}

	if _, err := upgradeClient.RunWithContext(ctx, rel.Name, ch, rel.Values); err != nil {
		return fmt.Errorf("failed to upgrade release %s: %w", rel.Name, err)
	}
	return nil
}

func (m *ReleaseManager) configFor(namespace string) (*action.Configuration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg, ok := m.configs[namespace]; ok {
		return cfg, nil
	}

	actionConfig := new(action.Configuration)
	restGetter, err := newKubeConfigGetter(m.kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kubeconfig: %w", err)
	}

	// No-op logger: release progress is reported through the observer,
	// not Helm's debug output.
	if err := actionConfig.Init(restGetter, namespace, "secret", func(string, ...interface{}) {}); err != nil {
		return nil, fmt.Errorf("failed to initialize helm action config: %w", err)
	}

	m.configs[namespace] = actionConfig
	return actionConfig, nil
}

// kubeConfigGetter satisfies Helm's RESTClientGetter from the in-memory
// kubeconfig, so release storage never touches kubeconfig files on disk.
type kubeConfigGetter struct {
	clientConfig clientcmd.ClientConfig

	once       sync.Once
	restConfig *rest.Config
	restErr    error
}

func newKubeConfigGetter(kubeconfig []byte) (*kubeConfigGetter, error) {
	clientConfig, err := clientcmd.NewClientConfigFromBytes(kubeconfig)
	if err != nil {
		return nil, err
	}
	return &kubeConfigGetter{clientConfig: clientConfig}, nil
}

func (g *kubeConfigGetter) ToRESTConfig() (*rest.Config, error) {
	g.once.Do(func() {
		g.restConfig, g.restErr = g.clientConfig.ClientConfig()
	})
	return g.restConfig, g.restErr
}

func (g *kubeConfigGetter) ToDiscoveryClient() (discovery.CachedDiscoveryInterface, error) {
	restConfig, err := g.ToRESTConfig()
	if err != nil {
		return nil, err
	}
	dc, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, err
	}
	return memory.NewMemCacheClient(dc), nil
}

func (g *kubeConfigGetter) ToRESTMapper() (meta.RESTMapper, error) {
	dc, err := g.ToDiscoveryClient()
	if err != nil {
		return nil, err
	}
	return restmapper.NewDeferredDiscoveryRESTMapper(dc), nil
}

func (g *kubeConfigGetter) ToRawKubeConfigLoader() clientcmd.ClientConfig {
	return g.clientConfig
}

func (m *ReleaseManager) loadChart(chartName, version string) (*chart.Chart, error) {
	settings := cli.New()

	chartPath, err := repo.FindChartInRepoURL(
		m.repoURL,
		chartName,
		version,
		"", "", "",
		getter.All(settings),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find chart %s in repo %s: %w", chartName, m.repoURL, err)
	}

	defer func() {
		_ = os.Remove(chartPath)
	}()

	return loader.Load(chartPath)
}
