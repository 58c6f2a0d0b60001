// Package openstack implements the cloud.Provider contract by shelling
// out to the openstack CLI with JSON output, the same way the terraform
// and ansible layers drive their tools. The client authenticates through
// a named clouds.yaml entry (OS_CLOUD).
package openstack

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/bsinger98/MHBench/pkg/cloud"
	"github.com/bsinger98/MHBench/pkg/logging"
)

// Client drives an OpenStack cloud through the openstack CLI.
type Client struct {
	// CloudName selects the clouds.yaml entry (exported as OS_CLOUD).
	CloudName string
	// GatewayNetwork is the external network new routers gateway on.
	GatewayNetwork string

	logger logging.Logger
}

// NewClient creates a client for the named cloud.
func NewClient(cloudName string, logger logging.Logger) *Client {
	return &Client{
		CloudName:      cloudName,
		GatewayNetwork: "external",
		logger:         logger.With(logging.Component("openstack")),
	}
}

// run executes one openstack command and returns its stdout.
func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	c.logger.Debug("openstack", logging.String("args", strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, "openstack", args...)
	cmd.Env = append(os.Environ(), "OS_CLOUD="+c.CloudName)

	output, err := cmd.Output()
	if err != nil {
		stderr := ""
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = string(exitErr.Stderr)
		}
		return nil, fmt.Errorf("openstack %s: %w: %s", args[0], classify(stderr), strings.TrimSpace(stderr))
	}
	return output, nil
}

// runJSON executes one openstack command with -f json and decodes stdout.
func (c *Client) runJSON(ctx context.Context, out any, args ...string) error {
	output, err := c.run(ctx, append(args, "-f", "json")...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(output, out); err != nil {
		return fmt.Errorf("openstack %s: decode output: %w", args[0], err)
	}
	return nil
}

// classify maps CLI failure text onto the provider sentinels so callers
// can branch on errors.Is.
func classify(stderr string) error {
	switch {
	case strings.Contains(stderr, "HTTP 409"),
		strings.Contains(stderr, "Conflict"),
		strings.Contains(stderr, "Duplicate"),
		strings.Contains(stderr, "already exists"):
		return cloud.ErrAlreadyExists
	case strings.Contains(stderr, "HTTP 404"),
		strings.Contains(stderr, "not found"),
		strings.Contains(stderr, "No ") && strings.Contains(stderr, " found"):
		return cloud.ErrNotFound
	default:
		return fmt.Errorf("command failed")
	}
}

// List commands capitalize their column keys; show and create commands
// use lowercase attribute names. Both shapes get their own decode types.
type resourceRow struct {
	ID   string `json:"ID"`
	Name string `json:"Name"`
}

type resourceDetail struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type serverRow struct {
	ID     string `json:"ID"`
	Name   string `json:"Name"`
	Status string `json:"Status"`
}

type serverDetail struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Status    string          `json:"status"`
	Fault     *faultDetail    `json:"fault"`
	Addresses json.RawMessage `json:"addresses"`
}

type faultDetail struct {
	Message string `json:"message"`
}

// parseAddresses tolerates both CLI output shapes: a network-to-address
// map on current clients, a "net=ip1, ip2" string on older ones.
func parseAddresses(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var byNetwork map[string][]string
	if err := json.Unmarshal(raw, &byNetwork); err == nil {
		var addrs []string
		for _, list := range byNetwork {
			addrs = append(addrs, list...)
		}
		return addrs
	}

	var flat string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil
	}
	var addrs []string
	for _, part := range strings.Split(flat, ";") {
		part = strings.TrimSpace(part)
		if i := strings.Index(part, "="); i >= 0 {
			part = part[i+1:]
		}
		for _, addr := range strings.Split(part, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				addrs = append(addrs, addr)
			}
		}
	}
	return addrs
}

func (d serverDetail) toServer() *cloud.Server {
	server := &cloud.Server{
		ID:        d.ID,
		Name:      d.Name,
		Status:    d.Status,
		Addresses: parseAddresses(d.Addresses),
	}
	if d.Fault != nil {
		server.Fault = d.Fault.Message
	}
	return server
}

func (c *Client) CreateServer(ctx context.Context, req cloud.CreateServerRequest) (*cloud.Server, error) {
	nic := "net-id=" + req.NetworkName
	if req.FixedIP != "" {
		nic += ",v4-fixed-ip=" + req.FixedIP
	}

	args := []string{"server", "create",
		"--image", req.ImageName,
		"--flavor", req.FlavorName,
		"--nic", nic,
	}
	for _, group := range req.SecurityGroups {
		args = append(args, "--security-group", group)
	}
	if req.KeyName != "" {
		args = append(args, "--key-name", req.KeyName)
	}
	args = append(args, req.Name)

	var detail serverDetail
	if err := c.runJSON(ctx, &detail, args...); err != nil {
		return nil, err
	}
	return detail.toServer(), nil
}

func (c *Client) GetServer(ctx context.Context, id string) (*cloud.Server, error) {
	var detail serverDetail
	if err := c.runJSON(ctx, &detail, "server", "show", id); err != nil {
		return nil, err
	}
	return detail.toServer(), nil
}

func (c *Client) FindServer(ctx context.Context, name string) (*cloud.Server, error) {
	servers, err := c.ListServers(ctx)
	if err != nil {
		return nil, err
	}
	for _, server := range servers {
		if server.Name == name {
			return server, nil
		}
	}
	return nil, nil
}

func (c *Client) ListServers(ctx context.Context) ([]*cloud.Server, error) {
	var rows []serverRow
	if err := c.runJSON(ctx, &rows, "server", "list"); err != nil {
		return nil, err
	}
	servers := make([]*cloud.Server, 0, len(rows))
	for _, row := range rows {
		servers = append(servers, &cloud.Server{ID: row.ID, Name: row.Name, Status: row.Status})
	}
	return servers, nil
}

func (c *Client) DeleteServer(ctx context.Context, id string) error {
	_, err := c.run(ctx, "server", "delete", id)
	return err
}

func (c *Client) RebuildServer(ctx context.Context, id, imageName string) error {
	_, err := c.run(ctx, "server", "rebuild", "--image", imageName, id)
	return err
}

func (c *Client) RebootServerHard(ctx context.Context, id string) error {
	_, err := c.run(ctx, "server", "reboot", "--hard", id)
	return err
}

func (c *Client) CreateImageSnapshot(ctx context.Context, name, serverID string) (*cloud.Image, error) {
	var detail resourceDetail
	err := c.runJSON(ctx, &detail, "server", "image", "create", "--name", name, serverID)
	if err != nil {
		return nil, err
	}
	return &cloud.Image{ID: detail.ID, Name: detail.Name}, nil
}

func (c *Client) FindImage(ctx context.Context, name string) (*cloud.Image, error) {
	images, err := c.ListImages(ctx)
	if err != nil {
		return nil, err
	}
	for _, image := range images {
		if image.Name == name {
			return image, nil
		}
	}
	return nil, nil
}

func (c *Client) ListImages(ctx context.Context) ([]*cloud.Image, error) {
	var rows []resourceRow
	if err := c.runJSON(ctx, &rows, "image", "list"); err != nil {
		return nil, err
	}
	images := make([]*cloud.Image, 0, len(rows))
	for _, row := range rows {
		images = append(images, &cloud.Image{ID: row.ID, Name: row.Name})
	}
	return images, nil
}

func (c *Client) DeleteImage(ctx context.Context, id string) error {
	_, err := c.run(ctx, "image", "delete", id)
	return err
}

func (c *Client) CreateNetwork(ctx context.Context, name string) (*cloud.Network, error) {
	var detail resourceDetail
	if err := c.runJSON(ctx, &detail, "network", "create", name); err != nil {
		return nil, err
	}
	return &cloud.Network{ID: detail.ID, Name: detail.Name}, nil
}

func (c *Client) FindNetwork(ctx context.Context, name string) (*cloud.Network, error) {
	networks, err := c.ListNetworks(ctx)
	if err != nil {
		return nil, err
	}
	for _, network := range networks {
		if network.Name == name {
			return network, nil
		}
	}
	return nil, nil
}

func (c *Client) ListNetworks(ctx context.Context) ([]*cloud.Network, error) {
	var rows []resourceRow
	if err := c.runJSON(ctx, &rows, "network", "list"); err != nil {
		return nil, err
	}
	networks := make([]*cloud.Network, 0, len(rows))
	for _, row := range rows {
		networks = append(networks, &cloud.Network{ID: row.ID, Name: row.Name})
	}
	return networks, nil
}

func (c *Client) DeleteNetwork(ctx context.Context, id string) error {
	_, err := c.run(ctx, "network", "delete", id)
	return err
}

func (c *Client) CreateSubnet(ctx context.Context, networkID, name, cidr string, dnsServers []string) error {
	args := []string{"subnet", "create",
		"--network", networkID,
		"--subnet-range", cidr,
	}
	for _, dns := range dnsServers {
		args = append(args, "--dns-nameserver", dns)
	}
	args = append(args, name)

	var detail resourceDetail
	return c.runJSON(ctx, &detail, args...)
}

func (c *Client) CreateSecurityGroup(ctx context.Context, name string) (*cloud.SecurityGroup, error) {
	var detail resourceDetail
	if err := c.runJSON(ctx, &detail, "security", "group", "create", name); err != nil {
		return nil, err
	}
	return &cloud.SecurityGroup{ID: detail.ID, Name: detail.Name}, nil
}

func (c *Client) FindSecurityGroup(ctx context.Context, name string) (*cloud.SecurityGroup, error) {
	groups, err := c.ListSecurityGroups(ctx)
	if err != nil {
		return nil, err
	}
	for _, group := range groups {
		if group.Name == name {
			return group, nil
		}
	}
	return nil, nil
}

func (c *Client) ListSecurityGroups(ctx context.Context) ([]*cloud.SecurityGroup, error) {
	var rows []resourceRow
	if err := c.runJSON(ctx, &rows, "security", "group", "list"); err != nil {
		return nil, err
	}
	groups := make([]*cloud.SecurityGroup, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, &cloud.SecurityGroup{ID: row.ID, Name: row.Name})
	}
	return groups, nil
}

func (c *Client) DeleteSecurityGroup(ctx context.Context, id string) error {
	_, err := c.run(ctx, "security", "group", "delete", id)
	return err
}

func (c *Client) AddSecurityGroupRule(ctx context.Context, groupID string, rule cloud.SecurityGroupRule) error {
	args := []string{"security", "group", "rule", "create",
		"--ingress",
		"--protocol", rule.Protocol,
		"--remote-ip", rule.RemoteCIDR,
	}
	if rule.PortMin > 0 && rule.Protocol != "icmp" {
		args = append(args, "--dst-port", fmt.Sprintf("%d:%d", rule.PortMin, rule.PortMax))
	}
	args = append(args, groupID)

	var detail resourceDetail
	return c.runJSON(ctx, &detail, args...)
}

func (c *Client) CreateRouter(ctx context.Context, name string) (*cloud.Router, error) {
	var detail resourceDetail
	if err := c.runJSON(ctx, &detail, "router", "create", name); err != nil {
		return nil, err
	}
	router := &cloud.Router{ID: detail.ID, Name: detail.Name}

	if c.GatewayNetwork != "" {
		if _, err := c.run(ctx, "router", "set", "--external-gateway", c.GatewayNetwork, router.ID); err != nil {
			return nil, fmt.Errorf("set gateway on %s: %w", name, err)
		}
	}
	return router, nil
}

func (c *Client) FindRouter(ctx context.Context, name string) (*cloud.Router, error) {
	routers, err := c.ListRouters(ctx)
	if err != nil {
		return nil, err
	}
	for _, router := range routers {
		if router.Name == name {
			return router, nil
		}
	}
	return nil, nil
}

func (c *Client) ListRouters(ctx context.Context) ([]*cloud.Router, error) {
	var rows []resourceRow
	if err := c.runJSON(ctx, &rows, "router", "list"); err != nil {
		return nil, err
	}
	routers := make([]*cloud.Router, 0, len(rows))
	for _, row := range rows {
		routers = append(routers, &cloud.Router{ID: row.ID, Name: row.Name})
	}
	return routers, nil
}

// DeleteRouter detaches every subnet interface first: the API refuses to
// delete a router with live interfaces.
func (c *Client) DeleteRouter(ctx context.Context, id string) error {
	var detail struct {
		Interfaces []struct {
			SubnetID string `json:"subnet_id"`
		} `json:"interfaces_info"`
	}
	if err := c.runJSON(ctx, &detail, "router", "show", id); err != nil {
		return err
	}
	for _, iface := range detail.Interfaces {
		if _, err := c.run(ctx, "router", "remove", "subnet", id, iface.SubnetID); err != nil {
			return err
		}
	}
	_, err := c.run(ctx, "router", "delete", id)
	return err
}

// AttachRouterSubnet attaches every subnet of the network to the router.
func (c *Client) AttachRouterSubnet(ctx context.Context, routerID, networkID string) error {
	var rows []resourceRow
	if err := c.runJSON(ctx, &rows, "subnet", "list", "--network", networkID); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := c.run(ctx, "router", "add", "subnet", routerID, row.ID); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) CreateFloatingIP(ctx context.Context, serverID string) (*cloud.FloatingIP, error) {
	var detail struct {
		ID      string `json:"id"`
		Address string `json:"floating_ip_address"`
	}
	err := c.runJSON(ctx, &detail, "floating", "ip", "create", c.GatewayNetwork)
	if err != nil {
		return nil, err
	}
	if _, err := c.run(ctx, "server", "add", "floating", "ip", serverID, detail.Address); err != nil {
		return nil, err
	}
	return &cloud.FloatingIP{ID: detail.ID, Address: detail.Address}, nil
}

func (c *Client) DeleteFloatingIP(ctx context.Context, id string) error {
	_, err := c.run(ctx, "floating", "ip", "delete", id)
	return err
}

func (c *Client) ListFloatingIPs(ctx context.Context) ([]*cloud.FloatingIP, error) {
	var rows []struct {
		ID      string `json:"ID"`
		Address string `json:"Floating IP Address"`
	}
	if err := c.runJSON(ctx, &rows, "floating", "ip", "list"); err != nil {
		return nil, err
	}
	fips := make([]*cloud.FloatingIP, 0, len(rows))
	for _, row := range rows {
		fips = append(fips, &cloud.FloatingIP{ID: row.ID, Address: row.Address})
	}
	return fips, nil
}

// compile-time interface check
var _ cloud.Provider = (*Client)(nil)
