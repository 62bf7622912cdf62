package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/plan"
)

func newDescribeCommand() *cobra.Command {
	var (
		planFile string
		revert   bool
		flags    settingsFlags
	)

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Show what an install (or uninstall) would do",
		Long: `Render the human-readable description of a plan.

Without --plan, a fresh plan is computed from the host; with --plan, a
previously written plan or receipt is described instead. --revert shows
the uninstall order.`,
		Example: `  # Describe a fresh plan for this host
  nix-installer describe

  # Describe what uninstalling the current receipt would do
  nix-installer describe --plan /nix/receipt.json --revert`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Root().Version)
			if err != nil {
				return err
			}
			defer rt.shutdown()
			ctx := rt.context(cmd.Context())

			var p *plan.Plan
			if planFile != "" {
				p, err = plan.ReadReceipt(planFile)
				if err != nil {
					return err
				}
			} else {
				s, err := flags.resolve(cmd)
				if err != nil {
					return err
				}
				pl, err := resolvePlanner(flags.plannerName, s)
				if err != nil {
					return err
				}
				p, err = pl.Plan(ctx)
				if err != nil {
					return fmt.Errorf("planning failed: %w", err)
				}
			}

			if revert {
				fmt.Print(p.DescribeUninstall())
			} else {
				fmt.Print(p.DescribeInstall())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&planFile, "plan", "", "describe this plan or receipt file instead of planning")
	cmd.Flags().BoolVar(&revert, "revert", false, "describe the uninstall order")
	flags.register(cmd)

	return cmd
}
