package deploy

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsinger98/MHBench/pkg/events"
	"github.com/bsinger98/MHBench/pkg/logging"
	"github.com/bsinger98/MHBench/pkg/metrics"
	"github.com/bsinger98/MHBench/pkg/playbook/playbooktest"
	"github.com/bsinger98/MHBench/pkg/topology"
)

// configTopology builds two hosts where bob@host_b trusts alice@host_a,
// host_b carries one vulnerability, and alice is a data-exfiltration
// target.
func configTopology(t *testing.T) *topology.Topology {
	t.Helper()

	hostA := topology.NewHost("host_a", topology.OSUbuntu20)
	hostA.IPAddress = "192.168.201.10"
	alice := topology.NewUser("alice")
	hostA.Users = append(hostA.Users, alice)

	hostB := topology.NewHost("host_b", topology.OSUbuntu20)
	hostB.IPAddress = "192.168.201.11"
	bob := topology.NewUser("bob")
	bob.Trusts(alice)
	hostB.Users = append(hostB.Users, bob)
	hostB.Vulnerabilities = []*topology.Vulnerability{{
		Type:     topology.VulnLateralMovement,
		Playbook: "vulnerabilities/apache_struts/apacheStruts.yml",
		FromUser: "bob",
		ToUser:   "alice",
	}}

	subnet := topology.NewSubnet("subnet_1", "192.168.201.0/24")
	subnet.External = true
	subnet.Hosts = []*topology.Host{hostA, hostB}

	topo := &topology.Topology{
		Name:     "config-test",
		Networks: []*topology.Network{{Name: "net", Subnets: []*topology.Subnet{subnet}}},
		Goals: []*topology.Goal{{
			Type:         topology.GoalDataExfiltration,
			TargetHostID: hostA.ID,
			TargetUserID: alice.ID,
			Playbook:     topology.DataExfiltrationPlaybook,
			HostIP:       hostA.IPAddress,
			SrcPath:      "data/secret.txt",
			DstPath:      "/home/alice/secret.txt",
			HostUser:     "alice",
		}},
	}
	topo.Normalize()
	return topo
}

func testConfigurer(runner *playbooktest.Fake) *Configurer {
	return NewConfigurer(runner, metrics.NewRegistry(), events.NopPublisher{}, logging.NewNopLogger())
}

// phaseOf buckets playbook names into their configuration phase.
func phaseOf(name string) int {
	switch name {
	case CreateUserPlaybook, CreateSSHKeyPlaybook:
		return 1
	case SetupSSHKeysPlaybook:
		return 2
	case topology.DataExfiltrationPlaybook:
		return 4
	default:
		return 3
	}
}

func TestConfigureHostsRunsPhasesInOrder(t *testing.T) {
	runner := playbooktest.NewFake()
	topo := configTopology(t)

	require.NoError(t, testConfigurer(runner).ConfigureHosts(context.Background(), topo))

	names := runner.Names()
	require.NotEmpty(t, names)
	last := 0
	for _, name := range names {
		phase := phaseOf(name)
		assert.GreaterOrEqual(t, phase, last, "playbook %s ran after a later phase", name)
		if phase > last {
			last = phase
		}
	}
	assert.Equal(t, 4, last)
}

func TestConfigureHostsPlaybookContents(t *testing.T) {
	runner := playbooktest.NewFake()
	topo := configTopology(t)

	require.NoError(t, testConfigurer(runner).ConfigureHosts(context.Background(), topo))

	var userRuns, keyRuns, trustRuns, vulnRuns, goalRuns []playbooktest.Run
	for _, run := range runner.Runs() {
		switch run.Name {
		case CreateUserPlaybook:
			userRuns = append(userRuns, run)
		case CreateSSHKeyPlaybook:
			keyRuns = append(keyRuns, run)
		case SetupSSHKeysPlaybook:
			trustRuns = append(trustRuns, run)
		case topology.DataExfiltrationPlaybook:
			goalRuns = append(goalRuns, run)
		default:
			vulnRuns = append(vulnRuns, run)
		}
	}

	// Root is never created; alice and bob are.
	require.Len(t, userRuns, 2)
	created := map[string]bool{}
	for _, run := range userRuns {
		created[run.Params["user"]] = true
		assert.Equal(t, topology.DefaultPassword, run.Params["password"])
		assert.Equal(t, run.Params["user"], run.Params["group"])
	}
	assert.True(t, created["alice"] && created["bob"])

	// Every user gets a keypair, root included: 2 hosts × 2 users.
	assert.Len(t, keyRuns, 4)

	// bob@host_b trusts alice@host_a.
	require.Len(t, trustRuns, 1)
	assert.Equal(t, "192.168.201.11", trustRuns[0].Host)
	assert.Equal(t, "bob", trustRuns[0].Params["host_user"])
	assert.Equal(t, "192.168.201.10", trustRuns[0].Params["follower"])
	assert.Equal(t, "alice", trustRuns[0].Params["follower_user"])

	require.Len(t, vulnRuns, 1)
	assert.Equal(t, "vulnerabilities/apache_struts/apacheStruts.yml", vulnRuns[0].Name)
	assert.Equal(t, "192.168.201.11", vulnRuns[0].Host)
	assert.Equal(t, "bob", vulnRuns[0].Params["from_user"])

	require.Len(t, goalRuns, 1)
	assert.Equal(t, "192.168.201.10", goalRuns[0].Host)
	assert.Equal(t, "alice", goalRuns[0].Params["host_user"])
	assert.Equal(t, "/home/alice/secret.txt", goalRuns[0].Params["dst_path"])
}

func TestConfigureHostsDanglingTrustIsFatal(t *testing.T) {
	runner := playbooktest.NewFake()
	topo := configTopology(t)

	ghost := uuid.New()
	topo.AllHosts(false)[0].Users[0].SSHKeys = append(
		topo.AllHosts(false)[0].Users[0].SSHKeys, ghost)

	err := testConfigurer(runner).ConfigureHosts(context.Background(), topo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ghost.String())

	// The failure happened while planning the trust phase: no trust or
	// later playbooks ran.
	for _, name := range runner.Names() {
		assert.LessOrEqual(t, phaseOf(name), 1)
	}
}

func TestConfigureHostsAbortsOnPhaseFailure(t *testing.T) {
	runner := playbooktest.NewFake()
	runner.FailOn[CreateUserPlaybook] = assert.AnError
	topo := configTopology(t)

	err := testConfigurer(runner).ConfigureHosts(context.Background(), topo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), PhaseUsers)

	for _, name := range runner.Names() {
		assert.Equal(t, 1, phaseOf(name))
	}
}
