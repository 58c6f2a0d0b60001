package deploy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsinger98/MHBench/pkg/cloud"
	"github.com/bsinger98/MHBench/pkg/cloud/cloudtest"
	"github.com/bsinger98/MHBench/pkg/playbook/playbooktest"
	"github.com/bsinger98/MHBench/pkg/retry"
	"github.com/bsinger98/MHBench/pkg/topology"
)

func testOrchestrator(fake *cloudtest.Fake, runner *playbooktest.Fake) *Orchestrator {
	o := NewOrchestrator(fake, runner, Options{
		KeyName:      "range_key",
		ExternalIP:   "10.20.20.5",
		PollInterval: time.Millisecond,
		MaxWait:      time.Second,
	}, Deps{})
	o.cleaner.pollInterval = time.Millisecond
	o.installPolicy = retry.Policy{MaxAttempts: 3, Delay: time.Millisecond}
	return o
}

// seedExternalNetwork creates the provider-side external network routing
// attaches to.
func seedExternalNetwork(t *testing.T, fake *cloudtest.Fake) {
	t.Helper()
	_, err := fake.CreateNetwork(context.Background(), ExternalNetworkName)
	require.NoError(t, err)
}

func orchestratorTopology(t *testing.T) *topology.Topology {
	topo := configTopology(t)
	topo.AttackerHost = topology.NewExternalAttacker()
	topo.Normalize()
	return topo
}

func TestCompileBuildsConfiguresAndSnapshots(t *testing.T) {
	ctx := context.Background()
	fake := cloudtest.NewFake()
	runner := playbooktest.NewFake()
	seedExternalNetwork(t, fake)

	o := testOrchestrator(fake, runner)
	topo := orchestratorTopology(t)

	require.NoError(t, o.Compile(ctx, topo))
	assert.Equal(t, StateSnapshotted, o.State())

	// Management, attacker, and topology hosts all exist.
	for _, name := range []string{ManageHostName, topology.AttackerHostName, "host_a", "host_b"} {
		server, err := fake.FindServer(ctx, name)
		require.NoError(t, err)
		assert.NotNil(t, server, "server %s", name)
	}

	// Every live server was snapshotted.
	for _, name := range []string{ManageHostName, topology.AttackerHostName, "host_a", "host_b"} {
		image, err := fake.FindImage(ctx, ImageName(name))
		require.NoError(t, err)
		assert.NotNil(t, image, "image for %s", name)
	}

	// Configuration ran: users were created and the vulnerability placed.
	names := runner.Names()
	assert.Contains(t, names, CreateUserPlaybook)
	assert.Contains(t, names, "vulnerabilities/apache_struts/apacheStruts.yml")
	assert.Contains(t, names, topology.DataExfiltrationPlaybook)
}

func TestCompileCleansBeforeBuilding(t *testing.T) {
	ctx := context.Background()
	fake := cloudtest.NewFake()
	seedExternalNetwork(t, fake)

	// Leftovers from a previous run.
	createServer(t, fake, "stale_host", "")
	_, err := fake.CreateRouter(ctx, "stale_router")
	require.NoError(t, err)

	o := testOrchestrator(fake, playbooktest.NewFake())
	require.NoError(t, o.Compile(ctx, orchestratorTopology(t)))

	stale, err := fake.FindServer(ctx, "stale_host")
	require.NoError(t, err)
	assert.Nil(t, stale)
	router, err := fake.FindRouter(ctx, "stale_router")
	require.NoError(t, err)
	assert.Nil(t, router)
}

func TestDeployUsesSnapshotsAndSkipsConfiguration(t *testing.T) {
	ctx := context.Background()
	fake := cloudtest.NewFake()
	runner := playbooktest.NewFake()
	seedExternalNetwork(t, fake)

	o := testOrchestrator(fake, runner)
	require.NoError(t, o.Deploy(ctx, orchestratorTopology(t)))

	assert.Equal(t, StateHostsProvisioned, o.State())
	assert.Empty(t, runner.Runs())

	server, err := fake.FindServer(ctx, "host_a")
	require.NoError(t, err)
	assert.NotNil(t, server)
}

func TestSetupReloadsSnapshotsAndFindsManageHost(t *testing.T) {
	ctx := context.Background()
	fake := cloudtest.NewFake()
	runner := playbooktest.NewFake()
	topo := orchestratorTopology(t)

	// A compiled environment: servers plus their snapshot images.
	names := []string{"host_a", "host_b", topology.AttackerHostName}
	for _, name := range names {
		server := createServer(t, fake, name, "")
		_, err := fake.CreateImageSnapshot(ctx, ImageName(name), server.ID)
		require.NoError(t, err)
		fake.StatusScript[name] = []string{cloud.StatusRebuild, cloud.StatusActive}
	}
	createServer(t, fake, ManageHostName, "192.168.198.14")
	fake.SetServerAddresses(ManageHostName, []string{"192.168.198.14", "10.20.20.40"})

	o := testOrchestrator(fake, runner)
	require.NoError(t, o.Setup(ctx, topo))

	assert.Equal(t, StateSnapshotted, o.State())
	assert.Len(t, fake.Rebuilt, 3)
	assert.Equal(t, []string{topology.AttackerHostName}, fake.HardReboots)
}

func TestSetupFailsWithoutManageHost(t *testing.T) {
	fake := cloudtest.NewFake()
	o := testOrchestrator(fake, playbooktest.NewFake())

	err := o.Setup(context.Background(), orchestratorTopology(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrManageHostNotFound)
}

func TestInstallAttackerRetriesWithSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	fake := cloudtest.NewFake()
	runner := playbooktest.NewFake()
	runner.FailOnce[InstallAttackerPlaybook] = assert.AnError

	topo := orchestratorTopology(t)
	server := createServer(t, fake, topology.AttackerHostName, AttackerHostIP)
	_, err := fake.CreateImageSnapshot(ctx, ImageName(topology.AttackerHostName), server.ID)
	require.NoError(t, err)

	o := testOrchestrator(fake, runner)
	require.NoError(t, o.InstallAttacker(ctx, topo))

	// First attempt failed, the host was restored, second attempt passed.
	installs := 0
	for _, run := range runner.Runs() {
		if run.Name == InstallAttackerPlaybook {
			installs++
			assert.Equal(t, AttackerHostIP, run.Host)
			assert.Equal(t, "root", run.Params["user"])
			assert.Equal(t, "10.20.20.5", run.Params["external_ip"])
		}
	}
	assert.Equal(t, 2, installs)
	assert.Len(t, fake.Rebuilt, 1)
}

func TestInstallAttackerExhaustionIsFatal(t *testing.T) {
	ctx := context.Background()
	fake := cloudtest.NewFake()
	runner := playbooktest.NewFake()
	runner.FailOn[InstallAttackerPlaybook] = assert.AnError

	topo := orchestratorTopology(t)
	server := createServer(t, fake, topology.AttackerHostName, AttackerHostIP)
	_, err := fake.CreateImageSnapshot(ctx, ImageName(topology.AttackerHostName), server.ID)
	require.NoError(t, err)

	o := testOrchestrator(fake, runner)
	err = o.InstallAttacker(ctx, topo)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAttackerInstall)
	assert.ErrorIs(t, err, retry.ErrAttemptsExhausted)
	assert.Contains(t, err.Error(), topology.AttackerHostName)
}

func TestTeardownEmptiesEnvironment(t *testing.T) {
	ctx := context.Background()
	fake := cloudtest.NewFake()
	seedExternalNetwork(t, fake)

	o := testOrchestrator(fake, playbooktest.NewFake())
	require.NoError(t, o.Compile(ctx, orchestratorTopology(t)))
	require.NoError(t, o.Teardown(ctx))

	assert.Equal(t, StateNotDeployed, o.State())
	servers, err := fake.ListServers(ctx)
	require.NoError(t, err)
	assert.Empty(t, servers)
	routers, err := fake.ListRouters(ctx)
	require.NoError(t, err)
	assert.Empty(t, routers)
	fips, err := fake.ListFloatingIPs(ctx)
	require.NoError(t, err)
	assert.Empty(t, fips)
}

func TestFindManageServerMatchesPrefix(t *testing.T) {
	ctx := context.Background()
	fake := cloudtest.NewFake()

	createServer(t, fake, "other", "192.168.201.10")
	createServer(t, fake, ManageHostName, "")
	fake.SetServerAddresses(ManageHostName, []string{ManageHostIP, "10.20.20.33"})

	server, addr, err := FindManageServer(ctx, fake, "10.20.20.5")
	require.NoError(t, err)
	assert.Equal(t, ManageHostName, server.Name)
	assert.Equal(t, "10.20.20.33", addr)
}
