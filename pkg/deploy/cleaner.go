package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/bsinger98/MHBench/pkg/cloud"
	"github.com/bsinger98/MHBench/pkg/logging"
)

// Cleaner tears the environment down to nothing: servers, floating IPs,
// routers, networks, security groups, in dependency order. The waits for
// servers, floating IPs, and routers to disappear have no timeout — they
// block until the provider converges.
type Cleaner struct {
	provider cloud.Provider
	logger   logging.Logger

	// pollInterval between convergence checks.
	pollInterval time.Duration
}

// NewCleaner creates a cleaner.
func NewCleaner(provider cloud.Provider, logger logging.Logger) *Cleaner {
	return &Cleaner{
		provider:     provider,
		logger:       logger.With(logging.Component("cleaner")),
		pollInterval: 500 * time.Millisecond,
	}
}

// CleanEnvironment deletes every resource. Idempotent: an already-empty
// environment cleans successfully.
func (c *Cleaner) CleanEnvironment(ctx context.Context) error {
	c.logger.Info("tearing down environment")

	if err := c.deleteServers(ctx); err != nil {
		return err
	}
	if err := c.waitEmpty(ctx, "servers", func() (int, error) {
		servers, err := c.provider.ListServers(ctx)
		return len(servers), err
	}); err != nil {
		return err
	}

	if err := c.deleteFloatingIPs(ctx); err != nil {
		return err
	}
	if err := c.waitEmpty(ctx, "floating ips", func() (int, error) {
		fips, err := c.provider.ListFloatingIPs(ctx)
		return len(fips), err
	}); err != nil {
		return err
	}

	if err := c.deleteRouters(ctx); err != nil {
		return err
	}
	if err := c.waitEmpty(ctx, "routers", func() (int, error) {
		routers, err := c.provider.ListRouters(ctx)
		return len(routers), err
	}); err != nil {
		return err
	}

	if err := c.deleteNetworks(ctx); err != nil {
		return err
	}
	return c.deleteSecurityGroups(ctx)
}

func (c *Cleaner) deleteServers(ctx context.Context) error {
	servers, err := c.provider.ListServers(ctx)
	if err != nil {
		return fmt.Errorf("list servers: %w", err)
	}
	for _, server := range servers {
		if err := c.provider.DeleteServer(ctx, server.ID); err != nil {
			return fmt.Errorf("delete server %s: %w", server.Name, err)
		}
	}
	return nil
}

func (c *Cleaner) deleteFloatingIPs(ctx context.Context) error {
	fips, err := c.provider.ListFloatingIPs(ctx)
	if err != nil {
		return fmt.Errorf("list floating ips: %w", err)
	}
	for _, fip := range fips {
		if err := c.provider.DeleteFloatingIP(ctx, fip.ID); err != nil {
			return fmt.Errorf("delete floating ip %s: %w", fip.Address, err)
		}
	}
	return nil
}

func (c *Cleaner) deleteRouters(ctx context.Context) error {
	routers, err := c.provider.ListRouters(ctx)
	if err != nil {
		return fmt.Errorf("list routers: %w", err)
	}
	for _, router := range routers {
		if err := c.provider.DeleteRouter(ctx, router.ID); err != nil {
			return fmt.Errorf("delete router %s: %w", router.Name, err)
		}
	}
	return nil
}

func (c *Cleaner) deleteNetworks(ctx context.Context) error {
	all, err := c.provider.ListNetworks(ctx)
	if err != nil {
		return fmt.Errorf("list networks: %w", err)
	}
	for _, network := range all {
		if network.Name == ExternalNetworkName {
			continue
		}
		if err := c.provider.DeleteNetwork(ctx, network.ID); err != nil {
			return fmt.Errorf("delete network %s: %w", network.Name, err)
		}
	}
	return nil
}

func (c *Cleaner) deleteSecurityGroups(ctx context.Context) error {
	groups, err := c.provider.ListSecurityGroups(ctx)
	if err != nil {
		return fmt.Errorf("list security groups: %w", err)
	}
	for _, group := range groups {
		if group.Name == "default" {
			continue
		}
		if err := c.provider.DeleteSecurityGroup(ctx, group.ID); err != nil {
			return fmt.Errorf("delete security group %s: %w", group.Name, err)
		}
	}
	return nil
}

// waitEmpty blocks until the listed resource count reaches zero. Only
// context cancellation breaks the loop early.
func (c *Cleaner) waitEmpty(ctx context.Context, what string, count func() (int, error)) error {
	for {
		n, err := count()
		if err != nil {
			return fmt.Errorf("wait for %s teardown: %w", what, err)
		}
		if n == 0 {
			return nil
		}
		c.logger.Debug("waiting for teardown",
			logging.String("resource", what),
			logging.Count(n))
		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
