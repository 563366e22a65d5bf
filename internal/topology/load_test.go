package topology

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTopologyFile writes a topology document whose artifact directories
// all point at freshly created temp dirs.
func writeTopologyFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{"crypto", "genesis", "channel", "values"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o750))
	}
	doc := strings.ReplaceAll(body, "__DIR__", dir)
	path := filepath.Join(dir, "fabkube.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

const validDoc = `
core:
  cluster_name: test-net
  chart_repo: https://charts.example.com
  dir_crypto: __DIR__/crypto
  dir_genesis: __DIR__/genesis
  dir_channel: __DIR__/channel
  dir_values: __DIR__/values
cas:
  ca:
    namespace: cas
    tls_cert: ca-tls
msps:
  OrdererMSP:
    ca: ca
    namespace: orderers
    org_admin: OrdererAdmin
  PeerMSP:
    ca: ca
    namespace: peers
    org_admin: PeerAdmin
orderers:
  ord:
    msp: OrdererMSP
    namespace: orderers
    domain: ord.example.com
    names: [ord1, ord2]
    secret_genesis: genesis-block
peers:
  peer:
    msp: PeerMSP
    namespace: peers
    domain: peer.example.com
    names: [peer1, peer2]
    channel_name: mychannel
    channel_profile: MyChannel
    secret_channel: channel-tx
`

func TestLoadValidTopology(t *testing.T) {
	topo, err := Load(writeTopologyFile(t, validDoc))
	require.NoError(t, err)

	assert.Equal(t, "test-net", topo.Core.ClusterName)
	assert.Equal(t, []string{"ca"}, topo.CANames())
	assert.Equal(t, []string{"OrdererMSP", "PeerMSP"}, topo.MSPNames())
	assert.Equal(t, []string{"mychannel"}, topo.ChannelNames())
	assert.Equal(t, "ca", topo.MSPs["PeerMSP"].CA)
	assert.Equal(t, "peer", topo.Peers["peer"].Name)
	assert.Empty(t, topo.Warnings)
}

func TestLoadDefaultsNamespace(t *testing.T) {
	doc := strings.Replace(validDoc, "    namespace: cas\n", "", 1)
	topo, err := Load(writeTopologyFile(t, doc))
	require.NoError(t, err)
	assert.Equal(t, "default", topo.CAs["ca"].Namespace)
}

func TestLoadIgnoresUnknownTopLevelSection(t *testing.T) {
	doc := validDoc + "\nfuture_section:\n  anything: goes\n"
	topo, err := Load(writeTopologyFile(t, doc))
	require.NoError(t, err)
	assert.Empty(t, topo.Warnings)
}

func TestLoadWarnsOnUnknownFieldInKnownSection(t *testing.T) {
	doc := strings.Replace(validDoc, "    tls_cert: ca-tls\n",
		"    tls_cert: ca-tls\n    color: purple\n", 1)
	topo, err := Load(writeTopologyFile(t, doc))
	require.NoError(t, err)
	require.Len(t, topo.Warnings, 1)
	assert.Contains(t, topo.Warnings[0], "color")
}

func TestLoadDanglingCAReference(t *testing.T) {
	doc := strings.Replace(validDoc, "    ca: ca\n    namespace: peers\n",
		"    ca: missing-ca\n    namespace: peers\n", 1)
	_, err := Load(writeTopologyFile(t, doc))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), `references unknown CA "missing-ca"`)
}

func TestLoadCollectsAllViolations(t *testing.T) {
	doc := strings.NewReplacer(
		"    ca: ca\n    namespace: orderers\n", "    namespace: orderers\n",
		"    names: [ord1, ord2]\n", "    names: []\n",
		"    secret_channel: channel-tx\n", "",
	).Replace(validDoc)

	_, err := Load(writeTopologyFile(t, doc))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.GreaterOrEqual(t, len(verr.Violations), 3)
	assert.Contains(t, verr.Error(), "msps.OrdererMSP.ca is required")
	assert.Contains(t, verr.Error(), "orderers.ord.names must not be empty")
	assert.Contains(t, verr.Error(), "peers.peer.secret_channel is required")
}

func TestLoadConflictingChannelSecrets(t *testing.T) {
	doc := validDoc + `  peerb:
    msp: PeerMSP
    namespace: peers
    domain: peerb.example.com
    names: [peer3]
    channel_name: mychannel
    secret_channel: other-tx
`
	_, err := Load(writeTopologyFile(t, doc))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(),
		`peers.peerb.secret_channel "other-tx" conflicts with peers.peer.secret_channel "channel-tx" for channel "mychannel"`)
}

func TestLoadMissingDirectory(t *testing.T) {
	doc := strings.Replace(validDoc, "__DIR__/crypto", "/does/not/exist", 1)
	_, err := Load(writeTopologyFile(t, doc))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "core.dir_crypto")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/fabkube.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read topology file")
}
