// Package deploy turns a finalized topology into live cloud
// infrastructure: batched provisioning, phased host configuration,
// snapshot-based reset, and teardown. Exactly one Orchestrator instance
// owns the overall phase state for an environment.
package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/bsinger98/MHBench/pkg/cloud"
	"github.com/bsinger98/MHBench/pkg/events"
	"github.com/bsinger98/MHBench/pkg/journal"
	"github.com/bsinger98/MHBench/pkg/logging"
	"github.com/bsinger98/MHBench/pkg/metrics"
	"github.com/bsinger98/MHBench/pkg/playbook"
	"github.com/bsinger98/MHBench/pkg/retry"
	"github.com/bsinger98/MHBench/pkg/topology"
)

// State is the orchestrator's deployment phase.
type State string

const (
	StateNotDeployed      State = "not_deployed"
	StateNetworkDeployed  State = "network_deployed"
	StateHostsProvisioned State = "hosts_provisioned"
	StateConfigured       State = "configured"
	StateSnapshotted      State = "snapshotted"
)

// AllStates lists every phase, for state-gauge bookkeeping.
var AllStates = []string{
	string(StateNotDeployed),
	string(StateNetworkDeployed),
	string(StateHostsProvisioned),
	string(StateConfigured),
	string(StateSnapshotted),
}

// InstallAttackerPlaybook installs the attacker agent on the Kali host.
const InstallAttackerPlaybook = "caldera/install_attacker.yml"

// Options tunes the orchestrator.
type Options struct {
	// ProjectName prefixes shared resources like the router.
	ProjectName string
	// KeyName is the provider keypair injected into every host.
	KeyName string
	// ExternalIP locates the management host among live servers.
	ExternalIP string

	BatchSize    int
	PollInterval time.Duration
	MaxWait      time.Duration
}

// Deps carries the orchestrator's collaborators. Nil fields get no-op
// defaults so callers only wire what they use.
type Deps struct {
	Metrics *metrics.Registry
	Events  events.Publisher
	Journal journal.Journal
	Logger  logging.Logger
}

func (d *Deps) fill() {
	if d.Metrics == nil {
		d.Metrics = metrics.NewRegistry()
	}
	if d.Events == nil {
		d.Events = events.NopPublisher{}
	}
	if d.Journal == nil {
		d.Journal = journal.NopJournal{}
	}
	if d.Logger == nil {
		d.Logger = logging.NewNopLogger()
	}
}

// Orchestrator drives compile, deploy, setup, and teardown for one
// environment.
type Orchestrator struct {
	provider cloud.Provider
	runner   playbook.Runner
	opts     Options
	deps     Deps

	state State

	cleaner    *Cleaner
	networks   *NetworkDeployer
	manage     *ManageDeployer
	attacker   *AttackerDeployer
	batcher    *Batcher
	snapshots  *SnapshotManager
	configurer *Configurer

	installPolicy retry.Policy
}

// NewOrchestrator wires the deployment pipeline.
func NewOrchestrator(provider cloud.Provider, runner playbook.Runner, opts Options, deps Deps) *Orchestrator {
	deps.fill()
	if opts.ProjectName == "" {
		opts.ProjectName = "mhbench"
	}

	batcher := NewBatcher(provider, deps.Metrics, deps.Events, deps.Logger)
	if opts.BatchSize > 0 {
		batcher.BatchSize = opts.BatchSize
	}
	if opts.PollInterval > 0 {
		batcher.PollInterval = opts.PollInterval
	}
	if opts.MaxWait > 0 {
		batcher.MaxWait = opts.MaxWait
	}

	networks := NewNetworkDeployer(provider, opts.ProjectName, deps.Logger)
	o := &Orchestrator{
		provider:      provider,
		runner:        runner,
		opts:          opts,
		deps:          deps,
		state:         StateNotDeployed,
		cleaner:       NewCleaner(provider, deps.Logger),
		networks:      networks,
		manage:        NewManageDeployer(provider, networks.RouterName(), opts.KeyName, batcher, deps.Logger),
		attacker:      NewAttackerDeployer(provider, networks.RouterName(), opts.KeyName, batcher, deps.Logger),
		batcher:       batcher,
		snapshots:     NewSnapshotManager(provider, batcher, deps.Metrics, deps.Events, deps.Logger),
		configurer:    NewConfigurer(runner, deps.Metrics, deps.Events, deps.Logger),
		installPolicy: retry.DefaultPolicy,
	}
	o.setState(StateNotDeployed)
	return o
}

// State returns the current deployment phase.
func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.state = s
	o.deps.Metrics.SetState(string(s), AllStates)
}

// Compile builds the environment from base images: networks, hosts, full
// configuration, then a snapshot of every host so later deploys and
// resets start from the configured state.
func (o *Orchestrator) Compile(ctx context.Context, topo *topology.Topology) error {
	return o.run(ctx, topo, "compile", func() error {
		if err := o.deployInfrastructure(ctx, topo, false); err != nil {
			return err
		}

		if err := o.configurer.ConfigureHosts(ctx, topo); err != nil {
			return err
		}
		o.setState(StateConfigured)

		if err := o.snapshots.CleanSnapshots(ctx); err != nil {
			return err
		}
		if err := o.snapshots.SaveAll(ctx); err != nil {
			return err
		}
		o.setState(StateSnapshotted)
		return nil
	})
}

// Deploy builds the environment from per-host snapshot images, skipping
// configuration: the snapshots already carry it.
func (o *Orchestrator) Deploy(ctx context.Context, topo *topology.Topology) error {
	return o.run(ctx, topo, "deploy", func() error {
		return o.deployInfrastructure(ctx, topo, true)
	})
}

// deployInfrastructure is the shared front half of compile and deploy.
func (o *Orchestrator) deployInfrastructure(ctx context.Context, topo *topology.Topology, fromSnapshot bool) error {
	if err := o.cleaner.CleanEnvironment(ctx); err != nil {
		return err
	}

	if err := o.networks.DeployTopology(ctx, topo); err != nil {
		return err
	}
	if err := o.manage.Deploy(ctx); err != nil {
		return err
	}
	if err := o.attacker.Deploy(ctx, topo, fromSnapshot); err != nil {
		return err
	}
	o.setState(StateNetworkDeployed)

	requests := o.hostRequests(topo, fromSnapshot)
	if err := o.batcher.DeployHosts(ctx, requests); err != nil {
		return err
	}
	o.setState(StateHostsProvisioned)
	return nil
}

// Setup resets a compiled environment to its snapshotted state: locate
// the management host, reload every host from its snapshot, then give any
// host stuck in ERROR a single delete-and-rebuild retry.
func (o *Orchestrator) Setup(ctx context.Context, topo *topology.Topology) error {
	return o.run(ctx, topo, "setup", func() error {
		server, manageIP, err := FindManageServer(ctx, o.provider, o.opts.ExternalIP)
		if err != nil {
			return err
		}
		o.deps.Logger.Info("found management host",
			logging.HostName(server.Name),
			logging.String("address", manageIP))
		if r, ok := o.runner.(*playbook.ExecRunner); ok {
			r.SetManagementIP(manageIP)
		}

		hosts := topo.AllHosts(true)
		if err := o.snapshots.LoadAll(ctx, hosts); err != nil {
			return err
		}

		requests := make(map[string]cloud.CreateServerRequest)
		for _, req := range o.hostRequests(topo, true) {
			requests[req.Name] = req
		}
		if err := o.snapshots.RebuildErrorHosts(ctx, requests); err != nil {
			return err
		}
		o.setState(StateSnapshotted)
		return nil
	})
}

// InstallAttacker installs the attacker agent with a bounded retry loop,
// restoring the attacker host from its snapshot before every retry.
// Exhaustion is fatal and names the host.
func (o *Orchestrator) InstallAttacker(ctx context.Context, topo *topology.Topology) error {
	name := attackerName(topo)
	pb := playbook.New(InstallAttackerPlaybook, AttackerHostIP).
		WithParam("user", topology.RootUsername).
		WithParam("external_ip", o.opts.ExternalIP)

	err := o.installPolicy.DoWithRecover(ctx,
		func(ctx context.Context) error {
			return o.runner.Run(ctx, pb)
		},
		func(ctx context.Context) error {
			return o.snapshots.Load(ctx, name)
		})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrAttackerInstall, name, err)
	}
	return nil
}

// Teardown deletes every resource in the environment.
func (o *Orchestrator) Teardown(ctx context.Context) error {
	started := time.Now()
	if err := o.cleaner.CleanEnvironment(ctx); err != nil {
		o.deps.Metrics.RecordDeployment("teardown", "error", time.Since(started))
		return err
	}
	o.setState(StateNotDeployed)
	o.deps.Metrics.RecordDeployment("teardown", "success", time.Since(started))
	return nil
}

// hostRequests builds the create requests for every topology host. The
// attacker host is provisioned by its own deployer and excluded here.
func (o *Orchestrator) hostRequests(topo *topology.Topology, fromSnapshot bool) []cloud.CreateServerRequest {
	hosts := topo.AllHosts(false)
	requests := make([]cloud.CreateServerRequest, 0, len(hosts))

	for _, host := range hosts {
		subnet := topo.SubnetForHost(host)
		if subnet == nil {
			continue
		}

		image := string(host.OS)
		if fromSnapshot {
			image = ImageName(host.Name)
		}
		requests = append(requests, cloud.CreateServerRequest{
			Name:           host.Name,
			ImageName:      image,
			FlavorName:     string(host.Flavor),
			NetworkName:    subnet.Name,
			FixedIP:        host.IPAddress,
			SecurityGroups: []string{subnet.SGName(), TalkToManageSG},
			KeyName:        o.opts.KeyName,
		})
	}
	return requests
}

// run wraps one orchestrator operation with journaling, metrics, and
// lifecycle events.
func (o *Orchestrator) run(ctx context.Context, topo *topology.Topology, operation string, fn func() error) error {
	logger := o.deps.Logger.With(logging.Operation(operation))
	logger.Info("starting operation", logging.String("topology", topo.Name))

	runID, err := o.deps.Journal.Begin(ctx, topo.Name, operation)
	if err != nil {
		return fmt.Errorf("journal %s: %w", operation, err)
	}
	o.deps.Events.Publish(events.Event{
		Type:     events.TypeDeployStarted,
		Topology: topo.Name,
		Detail:   operation,
	})

	started := time.Now()
	opErr := fn()
	elapsed := time.Since(started)

	if jerr := o.deps.Journal.UpdateState(ctx, runID, string(o.state)); jerr != nil {
		logger.Warn("cannot journal state", logging.Error(jerr))
	}
	if jerr := o.deps.Journal.Finish(ctx, runID, opErr); jerr != nil {
		logger.Warn("cannot journal finish", logging.Error(jerr))
	}

	if opErr != nil {
		o.deps.Metrics.RecordDeployment(operation, "error", elapsed)
		o.deps.Events.Publish(events.Event{
			Type:     events.TypeDeployFailed,
			Topology: topo.Name,
			Detail:   opErr.Error(),
		})
		logger.Error("operation failed",
			logging.Error(opErr),
			logging.Latency(elapsed))
		return opErr
	}

	o.deps.Metrics.RecordDeployment(operation, "success", elapsed)
	o.deps.Events.Publish(events.Event{
		Type:     events.TypeDeployFinished,
		Topology: topo.Name,
		Detail:   operation,
	})
	logger.Info("operation finished", logging.Latency(elapsed))
	return nil
}
