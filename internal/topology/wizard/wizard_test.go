package wizard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabkube/fabkube/internal/topology"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
	return dir
}

func scaffoldDirs(t *testing.T) {
	t.Helper()
	for _, sub := range []string{"crypto", "genesis", "channel", "values"} {
		require.NoError(t, os.MkdirAll(filepath.Join("config", sub), 0o755))
	}
}

func TestDocumentLoadsAsValidTopology(t *testing.T) {
	chdirTemp(t)
	scaffoldDirs(t)

	result := &Result{
		ClusterName: "my-network",
		ChartRepo:   "https://charts.example.com",
		Namespace:   "fabric",
		CAName:      "ca",
		OrgName:     "Org1MSP",
		OrgAdmin:    "org1-admin",
		PeerCount:   3,
	}

	doc, err := result.Document()
	require.NoError(t, err)

	topo, err := topology.Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, "my-network", topo.Core.ClusterName)
	assert.Equal(t, []string{"ca"}, topo.CANames())
	assert.Equal(t, []string{"Org1MSP"}, topo.MSPNames())
	assert.Empty(t, topo.OrdererNames())

	pg := topo.Peers["peer"]
	require.NotNil(t, pg)
	assert.Equal(t, []string{"peer1", "peer2", "peer3"}, pg.Names)
	assert.Empty(t, pg.ChannelName)
}

func TestDocumentWithOrdererAndChannel(t *testing.T) {
	chdirTemp(t)
	scaffoldDirs(t)

	result := &Result{
		ClusterName: "my-network",
		ChartRepo:   "https://charts.example.com",
		Namespace:   "fabric",
		CAName:      "ca",
		OrgName:     "Org1MSP",
		OrgAdmin:    "org1-admin",
		PeerCount:   1,
		WithOrderer: true,
		ChannelName: "mychannel",
	}

	doc, err := result.Document()
	require.NoError(t, err)

	topo, err := topology.Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"orderer"}, topo.OrdererNames())
	assert.Equal(t, "hlf--genesis", topo.Orderers["orderer"].SecretGenesis)
	assert.Equal(t, "mychannel", topo.Peers["peer"].ChannelName)
	assert.Equal(t, []string{"mychannel"}, topo.ChannelNames())
}

func TestWriteFile(t *testing.T) {
	dir := chdirTemp(t)
	scaffoldDirs(t)

	result := &Result{
		ClusterName: "my-network",
		ChartRepo:   "https://charts.example.com",
		Namespace:   "fabric",
		CAName:      "ca",
		OrgName:     "Org1MSP",
		OrgAdmin:    "org1-admin",
		PeerCount:   1,
	}

	path := filepath.Join(dir, "fabkube.yaml")
	require.NoError(t, result.WriteFile(path))

	_, err := topology.Load(path)
	assert.NoError(t, err)
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, validateName("my-network"))
	assert.Error(t, validateName(""))
	assert.Error(t, validateName("My Network"))
	assert.Error(t, validateName("-leading"))
	assert.NoError(t, validateOptionalName(""))
	assert.Error(t, validateOptionalName("Bad Name"))
}
