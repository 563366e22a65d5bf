package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabkube/fabkube/internal/cluster"
	"github.com/fabkube/fabkube/internal/cluster/fake"
	"github.com/fabkube/fabkube/internal/observe"
	"github.com/fabkube/fabkube/internal/topology"
)

const testDoc = `
core:
  cluster_name: test-net
  chart_repo: https://charts.example.com
  dir_crypto: __DIR__/crypto
  dir_genesis: __DIR__/genesis
  dir_channel: __DIR__/channel
  dir_values: __DIR__/values
cas:
  ca:
    tls_cert: ca-tls
msps:
  OrdererMSP:
    ca: ca
    org_admin: ordadmin
  PeerMSP:
    ca: ca
    org_admin: peeradmin
orderers:
  ord:
    msp: OrdererMSP
    names: [ord1, ord2]
    secret_genesis: hlf--genesis
peers:
  peer:
    msp: PeerMSP
    names: [peer1, peer2]
    channel_name: mychannel
    channel_profile: MyChannelProfile
    secret_channel: hlf--channel
`

func testTopology(t *testing.T) (*topology.Topology, string) {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{"crypto", "genesis", "channel", "values"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "genesis", "genesis.block"), []byte("genesis-bytes"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "channel", "mychannel.tx"), []byte("tx-bytes"), 0o600))

	topo, err := topology.Parse([]byte(strings.ReplaceAll(testDoc, "__DIR__", dir)))
	require.NoError(t, err)
	return topo, dir
}

func testPool(t *testing.T) (Pool, *fake.Adapter, string) {
	t.Helper()
	topo, dir := testTopology(t)
	adapter := fake.New()
	pool := NewPool(topo, adapter, observe.NopObserver{}, DefaultOptions())
	return pool, adapter, dir
}

func reconcileOne(t *testing.T, pool Pool, kind topology.Kind, name string) Result {
	t.Helper()
	r, ok := pool[topology.EntityID{Kind: kind, Name: name}]
	require.True(t, ok, "no reconciler for %s/%s", kind, name)
	return r.Reconcile(context.Background())
}

func TestNewPoolCoversEveryEntity(t *testing.T) {
	pool, _, _ := testPool(t)

	want := []topology.EntityID{
		{Kind: topology.KindCA, Name: "ca"},
		{Kind: topology.KindMSP, Name: "OrdererMSP"},
		{Kind: topology.KindMSP, Name: "PeerMSP"},
		{Kind: topology.KindOrderer, Name: "ord"},
		{Kind: topology.KindChannel, Name: "mychannel"},
		{Kind: topology.KindPeer, Name: "peer"},
	}
	assert.Len(t, pool, len(want))
	for _, id := range want {
		assert.Contains(t, pool, id)
	}
}

func TestCAReconcile(t *testing.T) {
	pool, adapter, _ := testPool(t)

	res := reconcileOne(t, pool, topology.KindCA, "ca")
	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeReady, res.Outcome)

	rel, ok := adapter.Release("default", "ca")
	require.True(t, ok)
	assert.Equal(t, "hlf-ca", rel.Chart)
	assert.Equal(t, "ca", rel.Values["caName"])
	// The chart consumes the bootstrap admin credentials.
	assert.Equal(t, "ca-admin", rel.Values["adminUsername"])
	assert.Equal(t, "ca-admin-creds", rel.Values["adminSecret"])

	creds := adapter.SecretData("default", "ca-admin-creds")
	require.NotNil(t, creds)
	assert.Equal(t, "ca-admin", string(creds["username"]))
	assert.NotEmpty(t, creds["password"])
}

func TestCAPendingUntilPodsReady(t *testing.T) {
	pool, adapter, _ := testPool(t)
	adapter.PendingPolls["pods default/app=hlf-ca,release=ca"] = 1

	res := reconcileOne(t, pool, topology.KindCA, "ca")
	assert.Equal(t, OutcomePending, res.Outcome)
	assert.NoError(t, res.Err)

	res = reconcileOne(t, pool, topology.KindCA, "ca")
	assert.Equal(t, OutcomeReady, res.Outcome)
}

func TestCAValuesOverride(t *testing.T) {
	pool, adapter, dir := testPool(t)
	override := "caName: renamed\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "values", "ca.yaml"), []byte(override), 0o600))

	res := reconcileOne(t, pool, topology.KindCA, "ca")
	require.Equal(t, OutcomeReady, res.Outcome)

	rel, ok := adapter.Release("default", "ca")
	require.True(t, ok)
	assert.Equal(t, "renamed", rel.Values["caName"])
	// Computed siblings survive the merge.
	assert.Contains(t, rel.Values, "tls")
}

func TestCAReconcileIsIdempotent(t *testing.T) {
	pool, adapter, _ := testPool(t)

	res := reconcileOne(t, pool, topology.KindCA, "ca")
	require.Equal(t, OutcomeReady, res.Outcome)

	adapter.MutatingCalls = 0
	res = reconcileOne(t, pool, topology.KindCA, "ca")
	assert.Equal(t, OutcomeReady, res.Outcome)
	assert.Zero(t, adapter.MutatingCalls)
}

// seedCACreds stores the CA bootstrap admin credentials the way the CA
// reconciler leaves them.
func seedCACreds(adapter *fake.Adapter, namespace string) {
	adapter.SeedSecret(namespace, "ca-admin-creds", map[string][]byte{
		"username": []byte("ca-admin"),
		"password": []byte("bootstrap"),
	})
}

func TestMSPReconcile(t *testing.T) {
	pool, adapter, _ := testPool(t)
	seedCACreds(adapter, "default")

	res := reconcileOne(t, pool, topology.KindMSP, "PeerMSP")
	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeReady, res.Outcome)

	creds := adapter.SecretData("default", "peeradmin-admin-creds")
	require.NotNil(t, creds)
	assert.Equal(t, "peeradmin", string(creds["username"]))
}

func TestMSPReusesExistingCredentials(t *testing.T) {
	pool, adapter, _ := testPool(t)
	seedCACreds(adapter, "default")
	adapter.SeedSecret("default", "peeradmin-admin-creds", map[string][]byte{
		"username": []byte("peeradmin"),
		"password": []byte("sealed"),
	})

	res := reconcileOne(t, pool, topology.KindMSP, "PeerMSP")
	require.Equal(t, OutcomeReady, res.Outcome)
	assert.Equal(t, "sealed", string(adapter.SecretData("default", "peeradmin-admin-creds")["password"]))
}

func TestMSPReadyWhenIdentityPersisted(t *testing.T) {
	pool, adapter, _ := testPool(t)
	adapter.SeedSecret("default", "peeradmin-admin-msp", map[string][]byte{
		"cert.pem": []byte("cert"),
		"key.pem":  []byte("key"),
	})

	res := reconcileOne(t, pool, topology.KindMSP, "PeerMSP")
	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeReady, res.Outcome)
	// Enrollment is skipped entirely, so no credentials are created.
	assert.Nil(t, adapter.SecretData("default", "peeradmin-admin-creds"))
}

func TestMSPCopiesCACredsAcrossNamespaces(t *testing.T) {
	doc := `
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
  PeerMSP:
    ca: ca
    namespace: peers
    org_admin: peeradmin
`
	dir := t.TempDir()
	for _, sub := range []string{"crypto", "genesis", "channel", "values"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
	}
	topo, err := topology.Parse([]byte(strings.ReplaceAll(doc, "__DIR__", dir)))
	require.NoError(t, err)

	adapter := fake.New()
	seedCACreds(adapter, "cas")
	pool := NewPool(topo, adapter, observe.NopObserver{}, DefaultOptions())

	res := reconcileOne(t, pool, topology.KindMSP, "PeerMSP")
	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeReady, res.Outcome)

	copied := adapter.SecretData("peers", "ca-admin-creds")
	require.NotNil(t, copied)
	assert.Equal(t, "bootstrap", string(copied["password"]))
}

func TestMSPEnrollJobFailureIsPermanent(t *testing.T) {
	pool, adapter, _ := testPool(t)
	seedCACreds(adapter, "default")
	adapter.JobErr["default/peermsp-enroll"] = fmt.Errorf("backoff limit exceeded: %w", cluster.ErrJobFailed)

	res := reconcileOne(t, pool, topology.KindMSP, "PeerMSP")
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, IsPermanent(res.Err))
}

func TestEnrollJobRegistersAndPublishes(t *testing.T) {
	msp := &topology.MSP{Name: "PeerMSP", Namespace: "peers", CA: "ca", OrgAdmin: "peeradmin"}
	ca := &topology.CA{Name: "ca", Namespace: "cas"}

	job := enrollJob(msp, ca, "ca-admin-creds", "peeradmin-admin-creds", "peeradmin-admin-msp")

	require.Len(t, job.Spec.Template.Spec.InitContainers, 1)
	enroll := job.Spec.Template.Spec.InitContainers[0]
	assert.Equal(t, fabricCAImage, enroll.Image)
	script := enroll.Command[len(enroll.Command)-1]
	assert.Contains(t, script, "fabric-ca-client register")
	assert.Contains(t, script, "$CA_ADMIN_USERNAME:$CA_ADMIN_PASSWORD")
	assert.Contains(t, script, "$ORG_ADMIN_USERNAME:$ORG_ADMIN_PASSWORD")

	secretRefs := make(map[string]bool)
	for _, env := range enroll.Env {
		secretRefs[env.ValueFrom.SecretKeyRef.Name] = true
	}
	assert.True(t, secretRefs["ca-admin-creds"])
	assert.True(t, secretRefs["peeradmin-admin-creds"])

	publish := job.Spec.Template.Spec.Containers[0]
	assert.Equal(t, kubectlImage, publish.Image)
	assert.Contains(t, publish.Command[len(publish.Command)-1], "peeradmin-admin-msp")
}

func TestOrdererReconcile(t *testing.T) {
	pool, adapter, _ := testPool(t)

	res := reconcileOne(t, pool, topology.KindOrderer, "ord")
	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeReady, res.Outcome)

	for _, name := range []string{"ord-ord1", "ord-ord2"} {
		rel, ok := adapter.Release("default", name)
		require.True(t, ok, "release %s missing", name)
		assert.Equal(t, "hlf-ord", rel.Chart)
	}

	genesis := adapter.SecretData("default", "hlf--genesis")
	require.NotNil(t, genesis)
	assert.Equal(t, "genesis-bytes", string(genesis["genesis.block"]))
}

func TestOrdererMissingGenesisIsPermanent(t *testing.T) {
	pool, _, dir := testPool(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "genesis", "genesis.block")))

	res := reconcileOne(t, pool, topology.KindOrderer, "ord")
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, IsPermanent(res.Err))
}

func TestOrdererSkipsGenesisReadWhenSecretExists(t *testing.T) {
	pool, adapter, dir := testPool(t)
	adapter.SeedSecret("default", "hlf--genesis", map[string][]byte{"genesis.block": []byte("sealed")})
	require.NoError(t, os.Remove(filepath.Join(dir, "genesis", "genesis.block")))

	res := reconcileOne(t, pool, topology.KindOrderer, "ord")
	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeReady, res.Outcome)
}

func TestChannelReconcile(t *testing.T) {
	pool, adapter, _ := testPool(t)

	res := reconcileOne(t, pool, topology.KindChannel, "mychannel")
	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeReady, res.Outcome)

	tx := adapter.SecretData("default", "hlf--channel")
	require.NotNil(t, tx)
	assert.Equal(t, "tx-bytes", string(tx["mychannel.tx"]))
}

func TestChannelPendingWhileCreateJobRuns(t *testing.T) {
	pool, adapter, _ := testPool(t)
	adapter.PendingPolls["job default/channel-mychannel-create"] = 1

	res := reconcileOne(t, pool, topology.KindChannel, "mychannel")
	assert.Equal(t, OutcomePending, res.Outcome)

	res = reconcileOne(t, pool, topology.KindChannel, "mychannel")
	assert.Equal(t, OutcomeReady, res.Outcome)
}

func TestPeerReconcile(t *testing.T) {
	pool, adapter, _ := testPool(t)

	res := reconcileOne(t, pool, topology.KindPeer, "peer")
	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeReady, res.Outcome)

	for _, name := range []string{"peer-peer1", "peer-peer2"} {
		rel, ok := adapter.Release("default", name)
		require.True(t, ok, "release %s missing", name)
		assert.Equal(t, "hlf-peer", rel.Chart)
	}
}

func TestPeerPendingWhileJoinRuns(t *testing.T) {
	pool, adapter, _ := testPool(t)
	adapter.PendingPolls["job default/peer-join"] = 1

	res := reconcileOne(t, pool, topology.KindPeer, "peer")
	assert.Equal(t, OutcomePending, res.Outcome)

	res = reconcileOne(t, pool, topology.KindPeer, "peer")
	assert.Equal(t, OutcomeReady, res.Outcome)
}

func TestPeerInstallErrorIsTransient(t *testing.T) {
	pool, adapter, _ := testPool(t)
	adapter.InstallErr["peer-peer1"] = fmt.Errorf("connection reset")

	res := reconcileOne(t, pool, topology.KindPeer, "peer")
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.False(t, IsPermanent(res.Err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"nil", nil, false},
		{"transient", fmt.Errorf("connection reset"), false},
		{"job failed", fmt.Errorf("job: %w", cluster.ErrJobFailed), true},
		{"already permanent", Permanent(fmt.Errorf("boom")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			assert.Equal(t, tt.permanent, IsPermanent(got))
		})
	}
}
