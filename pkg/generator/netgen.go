package generator

import (
	"errors"
	"fmt"
	"math/rand"
	"path"

	"github.com/go-playground/validator/v10"

	"github.com/bsinger98/MHBench/pkg/attackgraph"
	"github.com/bsinger98/MHBench/pkg/topology"
)

// ErrInvalidConfig signals out-of-range layout bounds, such as a maximum
// below its minimum.
var ErrInvalidConfig = errors.New("invalid generator config")

// NetworkGeneratorConfig bounds the random layout.
type NetworkGeneratorConfig struct {
	MinSubnets        int     `yaml:"min_subnets" validate:"min=1"`
	MaxSubnets        int     `yaml:"max_subnets" validate:"gtefield=MinSubnets"`
	MinHostsPerSubnet int     `yaml:"min_hosts_per_subnet" validate:"min=1"`
	MaxHostsPerSubnet int     `yaml:"max_hosts_per_subnet" validate:"gtefield=MinHostsPerSubnet"`
	ConnectionProb    float64 `yaml:"subnet_connection_probability" validate:"gte=0,lte=1"`
	GoalHostProb      float64 `yaml:"goal_host_probability" validate:"gte=0,lte=1"`
	Seed              int64   `yaml:"seed"`
}

// DefaultNetworkGeneratorConfig mirrors the defaults used for generated
// demo environments.
func DefaultNetworkGeneratorConfig() NetworkGeneratorConfig {
	return NetworkGeneratorConfig{
		MinSubnets:        1,
		MaxSubnets:        4,
		MinHostsPerSubnet: 1,
		MaxHostsPerSubnet: 5,
		ConnectionProb:    0.3,
		GoalHostProb:      0.1,
	}
}

// NetworkGenerator produces a complete, validated topology: random subnets
// and hosts, a connected subnet graph, sampled goals, attack paths with
// vulnerabilities assigned, and the pruned attack graph folded back into
// the hosts.
type NetworkGenerator struct {
	cfg      NetworkGeneratorConfig
	rng      *rand.Rand
	pathGen  *PathGenerator
	assigner *VulnerabilityAssigner
	validate *validator.Validate
}

// NewNetworkGenerator creates a generator seeded from the config.
func NewNetworkGenerator(cfg NetworkGeneratorConfig) *NetworkGenerator {
	return &NetworkGenerator{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		pathGen:  &PathGenerator{},
		assigner: NewVulnerabilityAssigner(),
		validate: validator.New(),
	}
}

// Generate builds one topology end to end. The first subnet is always the
// external foothold.
func (g *NetworkGenerator) Generate(name string) (*topology.Topology, error) {
	if err := g.validate.Struct(g.cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	numSubnets := g.cfg.MinSubnets + g.rng.Intn(g.cfg.MaxSubnets-g.cfg.MinSubnets+1)

	subnets := make([]*topology.Subnet, numSubnets)
	for i := range subnets {
		subnets[i] = g.generateSubnet(i)
	}
	subnets[0].External = true

	for _, subnet := range subnets {
		numHosts := g.cfg.MinHostsPerSubnet + g.rng.Intn(g.cfg.MaxHostsPerSubnet-g.cfg.MinHostsPerSubnet+1)
		subnet.Hosts = make([]*topology.Host, numHosts)
		for i := range subnet.Hosts {
			subnet.Hosts[i] = g.generateHost(subnet, i)
		}
	}

	topo := &topology.Topology{
		Name: name + "_topology",
		Networks: []*topology.Network{
			{
				Name:        name,
				Description: fmt.Sprintf("Generated network with %d subnets", numSubnets),
				Subnets:     subnets,
			},
		},
		SubnetConnections: g.generateConnections(subnets),
		AttackerHost:      topology.NewExternalAttacker(),
	}
	topo.Normalize()
	topo.Goals = g.generateGoals(topo)

	paths, err := g.pathGen.Generate(topo, g.rng)
	if err != nil {
		return nil, err
	}
	topo.AttackPaths = paths

	if err := g.assigner.Assign(topo, g.rng); err != nil {
		return nil, err
	}

	graph := attackgraph.Build(paths)
	attackgraph.PruneByHost(graph)
	if err := attackgraph.Validate(graph, topo.Goals); err != nil {
		return nil, err
	}
	topo.AttackGraph = graph

	if err := topo.ApplyVulnerabilities(); err != nil {
		return nil, err
	}
	if err := topo.Finalize(); err != nil {
		return nil, err
	}
	if err := g.validate.Struct(topo); err != nil {
		return nil, err
	}
	return topo, nil
}

// generateSubnet lays subnets out on the 192.168.20x.0/24 pattern.
func (g *NetworkGenerator) generateSubnet(index int) *topology.Subnet {
	return topology.NewSubnet(
		fmt.Sprintf("subnet_%d", index),
		fmt.Sprintf("192.168.%d.0/24", 200+index),
	)
}

// generateHost gives each host one non-root user; root is added during
// normalization.
func (g *NetworkGenerator) generateHost(subnet *topology.Subnet, index int) *topology.Host {
	host := topology.NewHost(fmt.Sprintf("host_%d_%s", index, subnet.Name), topology.OSUbuntu20)
	host.IPAddress = hostAddress(subnet.CIDR, index+10)
	host.Users = []*topology.User{topology.NewUser(fmt.Sprintf("user_%d", index))}
	return host
}

// generateGoals samples a data-exfiltration goal per internal host with the
// configured probability, guaranteeing at least one goal overall.
func (g *NetworkGenerator) generateGoals(topo *topology.Topology) []*topology.Goal {
	var goals []*topology.Goal
	allHosts := topo.AllHosts(false)

	for _, host := range allHosts {
		subnet := topo.SubnetForHost(host)
		if subnet == nil || subnet.External {
			continue
		}
		if g.rng.Float64() < g.cfg.GoalHostProb {
			goals = append(goals, g.exfiltrationGoal(host))
		}
	}

	if len(goals) == 0 && len(allHosts) > 0 {
		goals = append(goals, g.exfiltrationGoal(allHosts[g.rng.Intn(len(allHosts))]))
	}
	return goals
}

func (g *NetworkGenerator) exfiltrationGoal(host *topology.Host) *topology.Goal {
	user := host.Users[g.rng.Intn(len(host.Users))]
	return &topology.Goal{
		Type:         topology.GoalDataExfiltration,
		TargetHostID: host.ID,
		TargetUserID: user.ID,
		Playbook:     topology.DataExfiltrationPlaybook,
		HostIP:       host.IPAddress,
		DstPath:      path.Join(user.HomeDirectory, fmt.Sprintf("data_%s.json", host.Name)),
		HostUser:     user.Username,
	}
}

// generateConnections builds a random spanning tree over the subnets so the
// graph is connected, then adds extra bidirectional links per pair with the
// configured probability.
func (g *NetworkGenerator) generateConnections(subnets []*topology.Subnet) []*topology.SubnetConnection {
	if len(subnets) <= 1 {
		return nil
	}

	names := make([]string, len(subnets))
	for i, s := range subnets {
		names[i] = s.Name
	}

	var connections []*topology.SubnetConnection
	connected := []string{names[0]}
	unconnected := append([]string(nil), names[1:]...)

	for len(unconnected) > 0 {
		from := connected[g.rng.Intn(len(connected))]
		pick := g.rng.Intn(len(unconnected))
		to := unconnected[pick]

		connections = append(connections, &topology.SubnetConnection{
			FromSubnet: from, ToSubnet: to, Bidirectional: true,
		})
		connected = append(connected, to)
		unconnected = append(unconnected[:pick], unconnected[pick+1:]...)
	}

	linked := make(map[[2]string]struct{})
	for _, c := range connections {
		linked[[2]string{c.FromSubnet, c.ToSubnet}] = struct{}{}
		linked[[2]string{c.ToSubnet, c.FromSubnet}] = struct{}{}
	}

	for i, a := range names {
		for _, b := range names[i+1:] {
			if _, ok := linked[[2]string{a, b}]; ok {
				continue
			}
			if g.rng.Float64() < g.cfg.ConnectionProb {
				connections = append(connections, &topology.SubnetConnection{
					FromSubnet: a, ToSubnet: b, Bidirectional: true,
				})
			}
		}
	}
	return connections
}

// hostAddress derives a host IP inside the subnet on the /24 convention.
func hostAddress(cidr string, offset int) string {
	base := cidr[:len(cidr)-len("0/24")]
	return fmt.Sprintf("%s%d", base, offset)
}
