package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bsinger98/MHBench/pkg/attackgraph"
	"github.com/bsinger98/MHBench/pkg/generator"
)

var genCfg = generator.DefaultNetworkGeneratorConfig()

var generateCmd = &cobra.Command{
	Use:   "generate <name>",
	Short: "Generate a random topology and store it",
	Long:  "Generates a random network layout with attack paths and vulnerabilities,\nvalidates it, and saves the document to the topology store.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		topo, err := generator.NewNetworkGenerator(genCfg).Generate(args[0])
		if err != nil {
			return fmt.Errorf("generate %s: %w", args[0], err)
		}
		if err := a.store.Save(ctx, topo.Name, topo); err != nil {
			return err
		}

		fmt.Println(renderSummary(topo))
		printSuccess("saved %s", topo.Name)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <name>",
	Short: "Validate a stored topology",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		topo, err := a.store.Load(ctx, args[0])
		if err != nil {
			return err
		}
		if err := topo.Finalize(); err != nil {
			return err
		}
		if topo.AttackGraph != nil {
			if err := attackgraph.Validate(topo.AttackGraph, topo.Goals); err != nil {
				return err
			}
		}

		fmt.Println(renderSummary(topo))
		printSuccess("%s is valid", topo.Name)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored topologies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.store.List(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

func init() {
	f := generateCmd.Flags()
	f.Int64Var(&genCfg.Seed, "seed", 0, "random seed (0 = deterministic default layout)")
	f.IntVar(&genCfg.MinSubnets, "min-subnets", genCfg.MinSubnets, "minimum subnet count")
	f.IntVar(&genCfg.MaxSubnets, "max-subnets", genCfg.MaxSubnets, "maximum subnet count")
	f.IntVar(&genCfg.MinHostsPerSubnet, "min-hosts", genCfg.MinHostsPerSubnet, "minimum hosts per subnet")
	f.IntVar(&genCfg.MaxHostsPerSubnet, "max-hosts", genCfg.MaxHostsPerSubnet, "maximum hosts per subnet")
	f.Float64Var(&genCfg.ConnectionProb, "connection-prob", genCfg.ConnectionProb, "probability of connecting two subnets")
	f.Float64Var(&genCfg.GoalHostProb, "goal-prob", genCfg.GoalHostProb, "probability a host carries a goal")

	rootCmd.AddCommand(generateCmd, validateCmd, listCmd)
}
