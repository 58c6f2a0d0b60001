package main

import (
	"github.com/spf13/cobra"

	"github.com/bsinger98/MHBench/pkg/terraform"
)

// The infra commands drive declaratively-managed resources that sit
// outside the topology itself, one terraform directory per environment.
var infraCmd = &cobra.Command{
	Use:   "infra",
	Short: "Apply or destroy declarative infrastructure for an environment",
}

var infraApplyCmd = &cobra.Command{
	Use:   "apply <name>",
	Short: "Run terraform init and apply in the environment's directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		invoker := terraform.NewInvoker(a.cfg.Terraform.BaseDir, a.cfg.Terraform.VarFile, a.logger())
		if err := invoker.Apply(ctx, args[0]); err != nil {
			return err
		}
		printSuccess("applied %s", args[0])
		return nil
	},
}

var infraDestroyCmd = &cobra.Command{
	Use:   "destroy <name>",
	Short: "Run terraform init and destroy in the environment's directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		invoker := terraform.NewInvoker(a.cfg.Terraform.BaseDir, a.cfg.Terraform.VarFile, a.logger())
		if err := invoker.Destroy(ctx, args[0]); err != nil {
			return err
		}
		printSuccess("destroyed %s", args[0])
		return nil
	},
}

func init() {
	infraCmd.AddCommand(infraApplyCmd, infraDestroyCmd)
	rootCmd.AddCommand(infraCmd)
}
