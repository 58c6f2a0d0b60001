package deploy

import (
	"context"
	"fmt"

	"github.com/bsinger98/MHBench/pkg/cloud"
	"github.com/bsinger98/MHBench/pkg/logging"
	"github.com/bsinger98/MHBench/pkg/topology"
)

// ExternalNetworkName is the provider network carrying routable addresses.
const ExternalNetworkName = "external"

// Port range covering every TCP/UDP port.
const (
	portMin = 1
	portMax = 65535
)

// allCIDR matches any source or destination address.
const allCIDR = "0.0.0.0/0"

// NetworkDeployer turns each topology subnet into a provider network with
// its own subnet and security group, all attached to one router with an
// external gateway.
type NetworkDeployer struct {
	provider    cloud.Provider
	projectName string
	logger      logging.Logger

	created []*cloud.Network
}

// NewNetworkDeployer creates a network deployer for the project.
func NewNetworkDeployer(provider cloud.Provider, projectName string, logger logging.Logger) *NetworkDeployer {
	return &NetworkDeployer{
		provider:    provider,
		projectName: projectName,
		logger:      logger.With(logging.Component("network")),
	}
}

// RouterName is the project's single router.
func (d *NetworkDeployer) RouterName() string {
	return d.projectName + "_main_router"
}

// DeployTopology creates networks, routing, and security groups for every
// subnet in the topology.
func (d *NetworkDeployer) DeployTopology(ctx context.Context, topo *topology.Topology) error {
	d.logger.Info("deploying topology networks", logging.String("topology", topo.Name))
	d.created = d.created[:0]

	for _, subnet := range topo.AllSubnets() {
		network, err := d.createNetwork(ctx, subnet)
		if err != nil {
			return err
		}
		d.created = append(d.created, network)
		d.logger.Info("created network",
			logging.SubnetName(subnet.Name),
			logging.String("cidr", subnet.CIDR))
	}

	if err := d.setupRouting(ctx); err != nil {
		return err
	}

	for _, subnet := range topo.AllSubnets() {
		if err := d.createSubnetSecurityGroup(ctx, subnet, topo); err != nil {
			return err
		}
	}
	return nil
}

func (d *NetworkDeployer) createNetwork(ctx context.Context, subnet *topology.Subnet) (*cloud.Network, error) {
	network, err := d.provider.CreateNetwork(ctx, subnet.Name)
	if err != nil {
		return nil, fmt.Errorf("create network %s: %w", subnet.Name, err)
	}

	dns := subnet.DNSServers
	if len(dns) == 0 {
		dns = []string{"8.8.8.8", "8.8.4.4"}
	}
	if err := d.provider.CreateSubnet(ctx, network.ID, subnet.Name+"_subnet", subnet.CIDR, dns); err != nil {
		return nil, fmt.Errorf("create subnet %s: %w", subnet.Name, err)
	}
	return network, nil
}

// setupRouting creates the main router and attaches every created network.
func (d *NetworkDeployer) setupRouting(ctx context.Context) error {
	external, err := d.provider.FindNetwork(ctx, ExternalNetworkName)
	if err != nil {
		return fmt.Errorf("find external network: %w", err)
	}
	if external == nil {
		return fmt.Errorf("%w: %s", ErrExternalNetworkNotFound, ExternalNetworkName)
	}

	router, err := d.provider.CreateRouter(ctx, d.RouterName())
	if err != nil {
		return fmt.Errorf("create router %s: %w", d.RouterName(), err)
	}

	for _, network := range d.created {
		if err := d.provider.AttachRouterSubnet(ctx, router.ID, network.ID); err != nil {
			return fmt.Errorf("attach network %s to router: %w", network.Name, err)
		}
	}
	return nil
}

// createSubnetSecurityGroup gives the subnet its security group. External
// subnets are wide open; internal subnets allow intra-subnet TCP, SSH from
// anywhere, and TCP to each connected subnet.
func (d *NetworkDeployer) createSubnetSecurityGroup(ctx context.Context, subnet *topology.Subnet, topo *topology.Topology) error {
	group, err := d.provider.CreateSecurityGroup(ctx, subnet.SGName())
	if err != nil {
		return fmt.Errorf("create security group %s: %w", subnet.SGName(), err)
	}

	if subnet.External {
		return d.addRules(ctx, group.ID, subnet.SGName(), cloud.SecurityGroupRule{
			Protocol: "tcp", PortMin: portMin, PortMax: portMax, RemoteCIDR: allCIDR,
		})
	}

	rules := []cloud.SecurityGroupRule{
		{Protocol: "tcp", PortMin: portMin, PortMax: portMax, RemoteCIDR: subnet.CIDR},
		{Protocol: "tcp", PortMin: 22, PortMax: 22, RemoteCIDR: allCIDR},
	}
	for _, name := range connectedSubnets(topo, subnet.Name) {
		peer := topo.SubnetByName(name)
		if peer == nil {
			continue
		}
		rules = append(rules, cloud.SecurityGroupRule{
			Protocol: "tcp", PortMin: portMin, PortMax: portMax, RemoteCIDR: peer.CIDR,
		})
	}
	return d.addRules(ctx, group.ID, subnet.SGName(), rules...)
}

func (d *NetworkDeployer) addRules(ctx context.Context, groupID, groupName string, rules ...cloud.SecurityGroupRule) error {
	for _, rule := range rules {
		if err := d.provider.AddSecurityGroupRule(ctx, groupID, rule); err != nil {
			return fmt.Errorf("add rule to %s: %w", groupName, err)
		}
	}
	return nil
}

// connectedSubnets lists subnets reachable over a connection in either
// direction.
func connectedSubnets(topo *topology.Topology, name string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, conn := range topo.SubnetConnections {
		var peer string
		switch {
		case conn.FromSubnet == name:
			peer = conn.ToSubnet
		case conn.ToSubnet == name:
			peer = conn.FromSubnet
		default:
			continue
		}
		if !seen[peer] {
			seen[peer] = true
			names = append(names, peer)
		}
	}
	return names
}
