package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bsinger98/MHBench/pkg/cloud"
	"github.com/bsinger98/MHBench/pkg/cloud/openstack"
	"github.com/bsinger98/MHBench/pkg/deploy"
	"github.com/bsinger98/MHBench/pkg/health"
	"github.com/bsinger98/MHBench/pkg/metrics"
	"github.com/bsinger98/MHBench/pkg/playbook"
	"github.com/bsinger98/MHBench/pkg/topology"
)

// orchestrator wires the deployment pipeline from the app's configuration:
// the OpenStack client, the ansible exec runner, and the SSH keypair every
// host is booted with. When a monitor address is configured, the health and
// metrics endpoint runs for the lifetime of the command.
func (a *app) orchestrator() (*deploy.Orchestrator, error) {
	cfg := a.cfg

	if _, err := deploy.EnsureKeyPair(cfg.Cloud.KeyPath, "mhbench"); err != nil {
		return nil, err
	}

	provider := openstack.NewClient(cfg.Cloud.CloudName, a.logger())
	runner := playbook.NewExecRunner(
		cfg.Ansible.ActionsDir,
		cfg.Ansible.LogDir,
		cfg.Cloud.KeyPath,
		"",
		a.logger(),
	)
	registry := metrics.NewRegistry()

	if cfg.MonitorAddr != "" {
		a.startMonitor(provider, registry)
	}

	return deploy.NewOrchestrator(provider, runner, deploy.Options{
		KeyName:      cfg.Cloud.KeyName,
		ExternalIP:   cfg.Cloud.ExternalIP,
		BatchSize:    cfg.Provision.BatchSize,
		PollInterval: cfg.Provision.PollInterval,
		MaxWait:      cfg.Provision.MaxWait,
	}, deploy.Deps{
		Metrics: registry,
		Events:  a.events,
		Journal: a.jrnl,
		Logger:  a.logger(),
	}), nil
}

func (a *app) startMonitor(provider cloud.Provider, registry *metrics.Registry) {
	checker := health.NewChecker()
	checker.Register("provider", health.ProviderCheck(provider))
	checker.Register("store", health.StoreCheck(a.store))
	checker.Register("journal", health.JournalCheck(a.jrnl))
	checker.RegisterReadiness("provider", health.ProviderCheck(provider))

	server := health.NewServer(a.cfg.MonitorAddr, checker, registry, a.logger())
	server.Start()
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	})
}

// withTopology loads the named topology and hands it to fn together with a
// ready orchestrator.
func withTopology(ctx context.Context, name string, fn func(*app, *deploy.Orchestrator, *topology.Topology) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	topo, err := a.store.Load(ctx, name)
	if err != nil {
		return err
	}
	if err := topo.Finalize(); err != nil {
		return err
	}

	orch, err := a.orchestrator()
	if err != nil {
		return err
	}
	return fn(a, orch, topo)
}

var compileCmd = &cobra.Command{
	Use:   "compile <name>",
	Short: "Build and configure the environment, then snapshot every host",
	Long:  "Builds the environment from base images, runs full host configuration,\nand snapshots every host so later deploys start from the configured state.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTopology(cmd.Context(), args[0], func(a *app, orch *deploy.Orchestrator, topo *topology.Topology) error {
			if err := orch.Compile(cmd.Context(), topo); err != nil {
				return err
			}
			printSuccess("compiled %s (%s)", topo.Name, orch.State())
			return nil
		})
	},
}

var deployCmd = &cobra.Command{
	Use:   "deploy <name>",
	Short: "Deploy the environment from its snapshots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTopology(cmd.Context(), args[0], func(a *app, orch *deploy.Orchestrator, topo *topology.Topology) error {
			if err := orch.Deploy(cmd.Context(), topo); err != nil {
				return err
			}
			printSuccess("deployed %s (%s)", topo.Name, orch.State())
			return nil
		})
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup <name>",
	Short: "Reset every host to its snapshot and install the attacker agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTopology(cmd.Context(), args[0], func(a *app, orch *deploy.Orchestrator, topo *topology.Topology) error {
			if err := orch.Setup(cmd.Context(), topo); err != nil {
				return err
			}
			if err := orch.InstallAttacker(cmd.Context(), topo); err != nil {
				return err
			}
			printSuccess("%s reset to snapshots (%s)", topo.Name, orch.State())
			return nil
		})
	},
}

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Delete every resource in the environment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		orch, err := a.orchestrator()
		if err != nil {
			return err
		}
		if err := orch.Teardown(ctx); err != nil {
			return err
		}
		printSuccess("environment torn down")
		return nil
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show live servers and their status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		provider := openstack.NewClient(a.cfg.Cloud.CloudName, a.logger())
		servers, err := provider.ListServers(ctx)
		if err != nil {
			return err
		}
		for _, server := range servers {
			line := fmt.Sprintf("%-30s %s", server.Name, server.Status)
			switch server.Status {
			case cloud.StatusActive:
				fmt.Println(successStyle.Render(line))
			case cloud.StatusError:
				fmt.Println(errorStyle.Render(line))
			default:
				fmt.Println(line)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compileCmd, deployCmd, setupCmd, teardownCmd, stateCmd)
}
