package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/bsinger98/MHBench/pkg/events"
	"github.com/bsinger98/MHBench/pkg/logging"
	"github.com/bsinger98/MHBench/pkg/metrics"
	"github.com/bsinger98/MHBench/pkg/playbook"
	"github.com/bsinger98/MHBench/pkg/topology"
)

// Playbook action references used by host configuration.
const (
	CreateUserPlaybook   = "common/createUser/createUser.yml"
	CreateSSHKeyPlaybook = "deployment_instance/setup_server_ssh_keys/create_ssh_key.yml"
	SetupSSHKeysPlaybook = "deployment_instance/setup_server_ssh_keys/setup_ssh_keys.yml"
)

// Configuration phase names, in execution order.
const (
	PhaseUsers = "users"
	PhaseTrust = "ssh_trust"
	PhaseVulns = "vulnerabilities"
	PhaseGoals = "goals"
)

// Configurer applies host configuration in four strict serial phases over
// the whole host set: users, SSH trust, vulnerabilities, goals. Each phase
// must finish on every host before the next starts, because trust
// relationships and goal actions reference state phases before them
// created on other hosts. Within a phase, actions run with bounded
// parallelism.
type Configurer struct {
	runner  playbook.Runner
	metrics *metrics.Registry
	events  events.Publisher
	logger  logging.Logger
}

// NewConfigurer creates a configurer running through the given runner.
func NewConfigurer(runner playbook.Runner, reg *metrics.Registry, pub events.Publisher, logger logging.Logger) *Configurer {
	return &Configurer{
		runner:  runner,
		metrics: reg,
		events:  pub,
		logger:  logger.With(logging.Component("configure")),
	}
}

// ConfigureHosts runs all four phases against the topology's hosts.
func (c *Configurer) ConfigureHosts(ctx context.Context, topo *topology.Topology) error {
	hosts := topo.AllHosts(false)
	if len(hosts) == 0 {
		c.logger.Warn("no hosts to configure")
		return nil
	}

	phases := []struct {
		name  string
		build func() ([]*playbook.Playbook, error)
	}{
		{PhaseUsers, func() ([]*playbook.Playbook, error) { return c.userPlaybooks(hosts), nil }},
		{PhaseTrust, func() ([]*playbook.Playbook, error) { return c.trustPlaybooks(topo, hosts) }},
		{PhaseVulns, func() ([]*playbook.Playbook, error) { return c.vulnPlaybooks(hosts), nil }},
		{PhaseGoals, func() ([]*playbook.Playbook, error) { return c.goalPlaybooks(topo.Goals), nil }},
	}

	for _, phase := range phases {
		if err := c.runPhase(ctx, topo.Name, phase.name, phase.build); err != nil {
			return err
		}
	}
	return nil
}

func (c *Configurer) runPhase(ctx context.Context, topoName, name string, build func() ([]*playbook.Playbook, error)) error {
	playbooks, err := build()
	if err != nil {
		return err
	}

	c.logger.Info("starting configuration phase",
		logging.Phase(name),
		logging.Count(len(playbooks)))
	c.events.Publish(events.Event{
		Type:     events.TypePhaseStarted,
		Topology: topoName,
		Phase:    name,
	})

	started := time.Now()
	if err := playbook.RunBatch(ctx, c.runner, playbooks); err != nil {
		return fmt.Errorf("configuration phase %s: %w", name, err)
	}

	c.metrics.RecordConfigPhase(name, time.Since(started))
	c.events.Publish(events.Event{
		Type:     events.TypePhaseFinished,
		Topology: topoName,
		Phase:    name,
	})
	return nil
}

// userPlaybooks creates every non-root user on its host, then a keypair
// for every user (root included).
func (c *Configurer) userPlaybooks(hosts []*topology.Host) []*playbook.Playbook {
	var playbooks []*playbook.Playbook

	for _, host := range hosts {
		for _, user := range host.Users {
			if user.Username == topology.RootUsername {
				continue
			}
			playbooks = append(playbooks,
				playbook.New(CreateUserPlaybook, hostAddress(host)).
					WithParam("user", user.Username).
					WithParam("password", user.Password).
					WithParam("group", user.Username))
		}
	}
	for _, host := range hosts {
		for _, user := range host.Users {
			playbooks = append(playbooks,
				playbook.New(CreateSSHKeyPlaybook, hostAddress(host)).
					WithParam("host_user", user.Username))
		}
	}
	return playbooks
}

// trustPlaybooks authorizes each user's key on the users it trusts,
// resolving the cross-host references. A dangling reference is fatal and
// names the missing user.
func (c *Configurer) trustPlaybooks(topo *topology.Topology, hosts []*topology.Host) ([]*playbook.Playbook, error) {
	var playbooks []*playbook.Playbook

	for _, host := range hosts {
		for _, user := range host.Users {
			for _, trustedID := range user.SSHKeys {
				trusted := topo.UserByID(trustedID, false)
				if trusted == nil {
					return nil, fmt.Errorf("ssh trust from %s@%s: user %s not found",
						user.Username, host.Name, trustedID)
				}
				trustedHost := topo.HostForUser(trustedID)
				if trustedHost == nil {
					return nil, fmt.Errorf("ssh trust from %s@%s: host for user %s not found",
						user.Username, host.Name, trusted.Username)
				}

				playbooks = append(playbooks,
					playbook.New(SetupSSHKeysPlaybook, hostAddress(host)).
						WithParam("host_user", user.Username).
						WithParam("follower", hostAddress(trustedHost)).
						WithParam("follower_user", trusted.Username))
			}
		}
	}
	return playbooks, nil
}

// vulnPlaybooks installs every vulnerability folded into each host.
func (c *Configurer) vulnPlaybooks(hosts []*topology.Host) []*playbook.Playbook {
	var playbooks []*playbook.Playbook
	for _, host := range hosts {
		for _, vuln := range host.Vulnerabilities {
			playbooks = append(playbooks,
				playbook.New(vuln.Playbook, hostAddress(host)).
					WithParams(vuln.Params()))
		}
	}
	return playbooks
}

// goalPlaybooks places goal target state; only data-exfiltration goals
// carry an action.
func (c *Configurer) goalPlaybooks(goals []*topology.Goal) []*playbook.Playbook {
	var playbooks []*playbook.Playbook
	for _, goal := range goals {
		if goal.Type != topology.GoalDataExfiltration || goal.Playbook == "" {
			continue
		}
		playbooks = append(playbooks,
			playbook.New(goal.Playbook, goal.HostIP).
				WithParams(goal.Params()))
	}
	return playbooks
}

// hostAddress prefers the fixed IP, falling back to the name for hosts
// addressed by DNS.
func hostAddress(host *topology.Host) string {
	if host.IPAddress != "" {
		return host.IPAddress
	}
	return host.Name
}
