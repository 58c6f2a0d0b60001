package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/bsinger98/MHBench/pkg/cloud"
	"github.com/bsinger98/MHBench/pkg/logging"
)

// Management infrastructure naming and addressing.
const (
	ManageNetworkName = "manage_network"
	ManageSubnetName  = "manage"
	ManageCIDR        = "192.168.198.0/24"
	ManageHostIP      = "192.168.198.14"
	ManageHostName    = "manage_host"
	ManageHostImage   = "Ubuntu20"
	ManageHostFlavor  = "m1.small"

	// TalkToManageSG is attached to every topology host so the bastion can
	// reach it over SSH.
	TalkToManageSG = "talk_to_manage"
	// ManageFreedomSG gives the bastion itself unrestricted TCP.
	ManageFreedomSG = "manage_freedom"
)

// ManageDeployer provisions the management (bastion) network and host the
// configuration playbooks run through.
type ManageDeployer struct {
	provider   cloud.Provider
	routerName string
	keyName    string
	batcher    *Batcher
	logger     logging.Logger
}

// NewManageDeployer creates a management-network deployer.
func NewManageDeployer(provider cloud.Provider, routerName, keyName string, batcher *Batcher, logger logging.Logger) *ManageDeployer {
	return &ManageDeployer{
		provider:   provider,
		routerName: routerName,
		keyName:    keyName,
		batcher:    batcher,
		logger:     logger.With(logging.Component("manage")),
	}
}

// Deploy creates the management security groups, network, bastion host,
// and its floating IP.
func (d *ManageDeployer) Deploy(ctx context.Context) error {
	d.logger.Info("deploying management infrastructure")

	if err := d.createSecurityGroups(ctx); err != nil {
		return err
	}

	network, err := d.createNetwork(ctx)
	if err != nil {
		return err
	}

	router, err := d.provider.FindRouter(ctx, d.routerName)
	if err != nil {
		return fmt.Errorf("find router %s: %w", d.routerName, err)
	}
	if router == nil {
		return fmt.Errorf("router %s: %w", d.routerName, cloud.ErrNotFound)
	}
	if err := d.provider.AttachRouterSubnet(ctx, router.ID, network.ID); err != nil {
		return fmt.Errorf("attach management network to router: %w", err)
	}

	return d.createHost(ctx)
}

// createSecurityGroups builds talk_to_manage and manage_freedom. Both are
// reused if a previous run left them behind: they are environment-scoped,
// not topology-scoped.
func (d *ManageDeployer) createSecurityGroups(ctx context.Context) error {
	if err := d.ensureGroup(ctx, TalkToManageSG, []cloud.SecurityGroupRule{
		{Protocol: "tcp", PortMin: 22, PortMax: 22, RemoteCIDR: ManageCIDR},
	}); err != nil {
		return err
	}
	return d.ensureGroup(ctx, ManageFreedomSG, []cloud.SecurityGroupRule{
		{Protocol: "tcp", PortMin: portMin, PortMax: portMax, RemoteCIDR: allCIDR},
	})
}

func (d *ManageDeployer) ensureGroup(ctx context.Context, name string, rules []cloud.SecurityGroupRule) error {
	existing, err := d.provider.FindSecurityGroup(ctx, name)
	if err != nil {
		return fmt.Errorf("find security group %s: %w", name, err)
	}
	if existing != nil {
		d.logger.Info("security group already exists", logging.String("group", name))
		return nil
	}

	group, err := d.provider.CreateSecurityGroup(ctx, name)
	if err != nil {
		return fmt.Errorf("create security group %s: %w", name, err)
	}
	for _, rule := range rules {
		if err := d.provider.AddSecurityGroupRule(ctx, group.ID, rule); err != nil {
			return fmt.Errorf("add rule to %s: %w", name, err)
		}
	}
	return nil
}

func (d *ManageDeployer) createNetwork(ctx context.Context) (*cloud.Network, error) {
	network, err := d.provider.CreateNetwork(ctx, ManageNetworkName)
	if err != nil {
		return nil, fmt.Errorf("create network %s: %w", ManageNetworkName, err)
	}
	if err := d.provider.CreateSubnet(ctx, network.ID, ManageSubnetName, ManageCIDR, []string{"8.8.8.8"}); err != nil {
		return nil, fmt.Errorf("create subnet %s: %w", ManageSubnetName, err)
	}
	return network, nil
}

func (d *ManageDeployer) createHost(ctx context.Context) error {
	err := d.batcher.DeployHosts(ctx, []cloud.CreateServerRequest{{
		Name:           ManageHostName,
		ImageName:      ManageHostImage,
		FlavorName:     ManageHostFlavor,
		NetworkName:    ManageNetworkName,
		FixedIP:        ManageHostIP,
		SecurityGroups: []string{TalkToManageSG, ManageFreedomSG},
		KeyName:        d.keyName,
	}})
	if err != nil {
		return err
	}

	server, err := d.provider.FindServer(ctx, ManageHostName)
	if err != nil || server == nil {
		return fmt.Errorf("find management host: %w", err)
	}

	fip, err := d.provider.CreateFloatingIP(ctx, server.ID)
	if err != nil {
		return fmt.Errorf("create floating IP for management host: %w", err)
	}
	d.logger.Info("management host ready",
		logging.HostName(ManageHostName),
		logging.String("floating_ip", fip.Address))
	return nil
}

// FindManageServer locates the management host among live servers by
// matching the external address's /24 prefix, returning the matching
// address.
func FindManageServer(ctx context.Context, provider cloud.Provider, externalIP string) (*cloud.Server, string, error) {
	prefix := addressPrefix(externalIP)

	servers, err := provider.ListServers(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("list servers: %w", err)
	}
	for _, server := range servers {
		for _, addr := range server.Addresses {
			if strings.HasPrefix(addr, prefix) {
				return server, addr, nil
			}
		}
	}
	return nil, "", fmt.Errorf("%w: no server on %s*", ErrManageHostNotFound, prefix)
}

// addressPrefix keeps the first three octets.
func addressPrefix(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) < 3 {
		return ip
	}
	return strings.Join(parts[:3], ".") + "."
}
