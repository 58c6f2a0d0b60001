package generator

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsinger98/MHBench/pkg/topology"
)

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	cfg := DefaultNetworkGeneratorConfig()
	cfg.MinSubnets = 2
	cfg.MaxSubnets = 4
	cfg.MinHostsPerSubnet = 2
	cfg.MaxHostsPerSubnet = 5
	cfg.GoalHostProb = 0.3
	cfg.Seed = 42

	first, err := NewNetworkGenerator(cfg).Generate("det")
	require.NoError(t, err)
	second, err := NewNetworkGenerator(cfg).Generate("det")
	require.NoError(t, err)

	// Entity ids are freshly generated each run, so compare shape: subnet
	// layout, host names per subnet, goal targets, and step sequences.
	assert.Equal(t, layoutOf(first), layoutOf(second))
}

// layoutOf flattens a topology into its name-level structure.
func layoutOf(topo *topology.Topology) []string {
	var layout []string
	for _, s := range topo.AllSubnets() {
		layout = append(layout, "subnet:"+s.Name+":"+s.CIDR)
		for _, h := range s.Hosts {
			layout = append(layout, "host:"+h.Name+":"+h.IPAddress)
		}
	}
	for _, c := range topo.SubnetConnections {
		layout = append(layout, "conn:"+c.FromSubnet+"->"+c.ToSubnet)
	}
	for _, g := range topo.Goals {
		layout = append(layout, "goal:"+topo.HostByID(g.TargetHostID, false).Name+":"+g.HostUser)
	}
	for _, p := range topo.AttackPaths {
		for _, step := range p.Steps {
			from := topo.HostByID(step.SourceHostID(), true)
			to := topo.HostByID(step.TargetHostID(), true)
			kind := "escalate"
			if step.IsLateralMovement() {
				kind = "lateral"
			}
			layout = append(layout, "step:"+kind+":"+from.Name+"->"+to.Name+":"+step.Vuln().Playbook)
		}
	}
	return layout
}

func TestGenerateRejectsInvertedBounds(t *testing.T) {
	cases := map[string]func(*NetworkGeneratorConfig){
		"max subnets below min": func(cfg *NetworkGeneratorConfig) {
			cfg.MinSubnets = 3
			cfg.MaxSubnets = 2
		},
		"max hosts below min": func(cfg *NetworkGeneratorConfig) {
			cfg.MinHostsPerSubnet = 4
			cfg.MaxHostsPerSubnet = 1
		},
		"zero min subnets": func(cfg *NetworkGeneratorConfig) {
			cfg.MinSubnets = 0
			cfg.MaxSubnets = 0
		},
		"connection probability above one": func(cfg *NetworkGeneratorConfig) {
			cfg.ConnectionProb = 1.5
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultNetworkGeneratorConfig()
			mutate(&cfg)

			_, err := NewNetworkGenerator(cfg).Generate("bad")
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestPathGeneratorDeterministicForSameRNG(t *testing.T) {
	topo := twoSubnetTopology(t)

	run := func() []byte {
		paths, err := (&PathGenerator{}).Generate(topo, rand.New(rand.NewSource(7)))
		require.NoError(t, err)
		data, err := json.Marshal(paths)
		require.NoError(t, err)
		return data
	}
	assert.Equal(t, string(run()), string(run()))
}

// twoSubnetTopology is the canonical minimal layout: external subnet with
// one host, internal subnet with one host carrying the goal.
func twoSubnetTopology(t *testing.T) *topology.Topology {
	t.Helper()

	h1 := topology.NewHost("h1", topology.OSUbuntu20)
	h2 := topology.NewHost("h2", topology.OSUbuntu20)

	external := topology.NewSubnet("external", "192.168.200.0/24")
	external.External = true
	external.Hosts = []*topology.Host{h1}

	internal := topology.NewSubnet("internal", "192.168.201.0/24")
	internal.Hosts = []*topology.Host{h2}

	topo := &topology.Topology{
		Name: "minimal",
		Networks: []*topology.Network{
			{Name: "range", Subnets: []*topology.Subnet{external, internal}},
		},
		SubnetConnections: []*topology.SubnetConnection{
			{FromSubnet: "external", ToSubnet: "internal", Bidirectional: true},
		},
		AttackerHost: topology.NewExternalAttacker(),
	}
	topo.Normalize()

	h2Root, err := h2.RootUser()
	require.NoError(t, err)
	topo.Goals = []*topology.Goal{
		{
			Type:         topology.GoalHostAccess,
			TargetHostID: h2.ID,
			TargetUserID: h2Root.ID,
		},
	}
	return topo
}

func TestGenerateMinimalTwoSubnetScenario(t *testing.T) {
	topo := twoSubnetTopology(t)
	h1 := topo.HostByName("h1")
	h2 := topo.HostByName("h2")
	attacker := topo.AttackerHost

	paths, err := (&PathGenerator{}).Generate(topo, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Len(t, paths, 1, "one path per goal")

	path := paths[0]
	require.Len(t, path.Steps, 2, "exactly attacker->h1 and h1->h2, no trailing escalation")

	assert.True(t, path.Steps[0].IsLateralMovement())
	assert.Equal(t, attacker.ID, path.Steps[0].SourceHostID())
	assert.Equal(t, h1.ID, path.Steps[0].TargetHostID())

	assert.True(t, path.Steps[1].IsLateralMovement())
	assert.Equal(t, h1.ID, path.Steps[1].SourceHostID())
	assert.Equal(t, h2.ID, path.Steps[1].TargetHostID())

	assert.True(t, path.ValidateContinuity())
}

func TestGenerateNoExternalSubnetReturnsNoPaths(t *testing.T) {
	topo := &topology.Topology{
		Name: "isolated",
		Networks: []*topology.Network{
			{Name: "range", Subnets: []*topology.Subnet{
				topology.NewSubnet("internal", "10.0.0.0/24"),
			}},
		},
		AttackerHost: topology.NewExternalAttacker(),
	}

	paths, err := (&PathGenerator{}).Generate(topo, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Nil(t, paths)
}

func TestGenerateMissingAttackerHost(t *testing.T) {
	topo := twoSubnetTopology(t)
	topo.AttackerHost = nil

	_, err := (&PathGenerator{}).Generate(topo, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrNoAttackerHost)
}

func TestAssignFillsEveryStep(t *testing.T) {
	topo := twoSubnetTopology(t)

	paths, err := (&PathGenerator{}).Generate(topo, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	topo.AttackPaths = paths

	assigner := NewVulnerabilityAssigner()
	require.NoError(t, assigner.Assign(topo, rand.New(rand.NewSource(3))))

	for _, path := range topo.AttackPaths {
		for _, step := range path.Steps {
			vuln := step.Vuln()
			require.NotNil(t, vuln)
			assert.NotEmpty(t, vuln.Playbook)
			assert.NotEmpty(t, string(vuln.MergeStrategy), "merge strategy tag required before graph build")
			if step.IsLateralMovement() {
				assert.Equal(t, topology.VulnLateralMovement, vuln.Type)
			} else {
				assert.Equal(t, topology.VulnPrivilegeEscalation, vuln.Type)
			}
		}
	}
}

func TestGeneratedTopologyGoalsHaveGraphNodes(t *testing.T) {
	cfg := DefaultNetworkGeneratorConfig()
	cfg.MinSubnets = 2
	cfg.MaxSubnets = 3
	cfg.MinHostsPerSubnet = 2
	cfg.MaxHostsPerSubnet = 4
	cfg.GoalHostProb = 0.4

	for seed := int64(0); seed < 10; seed++ {
		cfg.Seed = seed
		topo, err := NewNetworkGenerator(cfg).Generate("prop")
		require.NoError(t, err)

		require.NotNil(t, topo.AttackGraph)
		require.NotEmpty(t, topo.Goals, "at least one goal is guaranteed")
		for _, goal := range topo.Goals {
			assert.NotNil(t, topo.AttackGraph.NodeByIdentity(goal.TargetHostID, goal.TargetUserID))
		}
	}
}
