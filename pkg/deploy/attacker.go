package deploy

import (
	"context"
	"fmt"

	"github.com/bsinger98/MHBench/pkg/cloud"
	"github.com/bsinger98/MHBench/pkg/logging"
	"github.com/bsinger98/MHBench/pkg/topology"
)

// Attacker infrastructure naming and addressing.
const (
	AttackerNetworkName = "attacker_network"
	AttackerSubnetName  = "attacker"
	AttackerCIDR        = "192.168.199.0/24"
	AttackerHostIP      = "192.168.199.14"
	AttackerHostFlavor  = "m1.small"

	// AttackerFreedomSG gives the attacker host unrestricted traffic so
	// exploitation is never blocked at the provider layer.
	AttackerFreedomSG = "attacker_freedom"
)

// AttackerDeployer provisions the attacker network and the Kali host
// attack paths originate from.
type AttackerDeployer struct {
	provider   cloud.Provider
	routerName string
	keyName    string
	batcher    *Batcher
	logger     logging.Logger
}

// NewAttackerDeployer creates an attacker-network deployer.
func NewAttackerDeployer(provider cloud.Provider, routerName, keyName string, batcher *Batcher, logger logging.Logger) *AttackerDeployer {
	return &AttackerDeployer{
		provider:   provider,
		routerName: routerName,
		keyName:    keyName,
		batcher:    batcher,
		logger:     logger.With(logging.Component("attacker")),
	}
}

// Deploy creates the attacker security group, network, and host. With
// fromSnapshot the host boots from its snapshot image instead of the base
// Kali image.
func (d *AttackerDeployer) Deploy(ctx context.Context, topo *topology.Topology, fromSnapshot bool) error {
	d.logger.Info("deploying attacker infrastructure")

	if err := d.createSecurityGroup(ctx); err != nil {
		return err
	}

	network, err := d.provider.CreateNetwork(ctx, AttackerNetworkName)
	if err != nil {
		return fmt.Errorf("create network %s: %w", AttackerNetworkName, err)
	}
	if err := d.provider.CreateSubnet(ctx, network.ID, AttackerSubnetName, AttackerCIDR, []string{"8.8.8.8"}); err != nil {
		return fmt.Errorf("create subnet %s: %w", AttackerSubnetName, err)
	}

	router, err := d.provider.FindRouter(ctx, d.routerName)
	if err != nil {
		return fmt.Errorf("find router %s: %w", d.routerName, err)
	}
	if router == nil {
		return fmt.Errorf("router %s: %w", d.routerName, cloud.ErrNotFound)
	}
	if err := d.provider.AttachRouterSubnet(ctx, router.ID, network.ID); err != nil {
		return fmt.Errorf("attach attacker network to router: %w", err)
	}

	return d.createHost(ctx, attackerName(topo), fromSnapshot)
}

func (d *AttackerDeployer) createSecurityGroup(ctx context.Context) error {
	group, err := d.provider.CreateSecurityGroup(ctx, AttackerFreedomSG)
	if err != nil {
		return fmt.Errorf("create security group %s: %w", AttackerFreedomSG, err)
	}

	rules := []cloud.SecurityGroupRule{
		{Protocol: "tcp", PortMin: portMin, PortMax: portMax, RemoteCIDR: allCIDR},
		{Protocol: "udp", PortMin: portMin, PortMax: portMax, RemoteCIDR: allCIDR},
		{Protocol: "icmp", RemoteCIDR: allCIDR},
	}
	for _, rule := range rules {
		if err := d.provider.AddSecurityGroupRule(ctx, group.ID, rule); err != nil {
			return fmt.Errorf("add rule to %s: %w", AttackerFreedomSG, err)
		}
	}
	return nil
}

func (d *AttackerDeployer) createHost(ctx context.Context, name string, fromSnapshot bool) error {
	image := string(topology.OSKaliLinux)
	if fromSnapshot {
		image = ImageName(name)
	}

	return d.batcher.DeployHosts(ctx, []cloud.CreateServerRequest{{
		Name:           name,
		ImageName:      image,
		FlavorName:     AttackerHostFlavor,
		NetworkName:    AttackerNetworkName,
		FixedIP:        AttackerHostIP,
		SecurityGroups: []string{AttackerFreedomSG},
		KeyName:        d.keyName,
	}})
}

// attackerName resolves the attacker host's name, defaulting to the
// conventional one when the topology carries no attacker entity.
func attackerName(topo *topology.Topology) string {
	if topo.AttackerHost != nil {
		return topo.AttackerHost.Name
	}
	return topology.AttackerHostName
}
