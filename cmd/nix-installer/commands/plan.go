package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPlanCommand() *cobra.Command {
	var (
		outFile string
		flags   settingsFlags
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan an install without changing the host",
		Long: `Probe the host and write the resulting install plan as JSON.

Planning is read-only. The emitted file can be reviewed, evaluated against
policy, and later executed with 'install --plan'.`,
		Example: `  # Plan with host-probed planner and default settings
  nix-installer plan --out plan.json

  # Plan an ostree install from a settings file
  nix-installer plan --planner ostree --config install.cue --out plan.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Root().Version)
			if err != nil {
				return err
			}
			defer rt.shutdown()
			ctx := rt.context(cmd.Context())

			s, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			pl, err := resolvePlanner(flags.plannerName, s)
			if err != nil {
				return err
			}

			rt.log.Info().Str("planner", pl.Name()).Msg("Planning install")
			p, err := pl.Plan(ctx)
			if err != nil {
				return fmt.Errorf("planning failed: %w", err)
			}

			if err := checkPolicy(ctx, rt.log, p, "install", true); err != nil {
				return err
			}

			if err := p.WriteReceipt(outFile); err != nil {
				return fmt.Errorf("writing plan: %w", err)
			}

			fmt.Print(p.DescribeInstall())
			fmt.Printf("\nPlan written to %s\n", outFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "plan.json", "output plan file path")
	flags.register(cmd)

	return cmd
}
