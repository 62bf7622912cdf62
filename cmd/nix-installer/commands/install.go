package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/plan"
)

func newInstallCommand() *cobra.Command {
	var (
		planFile    string
		receiptPath string
		flags       settingsFlags
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install Nix",
		Long: `Plan and execute a multi-user Nix install.

The plan is described and confirmed before anything changes. The executed
plan is written to the receipt, which 'uninstall' later replays in
reverse. If a step fails, the receipt still records what completed, and
you are offered an immediate revert of the partial install.`,
		Example: `  # Install with host-probed planner and default settings
  nix-installer install

  # Install from a previously reviewed plan, no prompts
  nix-installer install --plan plan.json --yes`,
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
				rt.log.Info().Str("planner", pl.Name()).Msg("Planning install")
				p, err = pl.Plan(ctx)
				if err != nil {
					return fmt.Errorf("planning failed: %w", err)
				}
			}

			if err := checkPolicy(ctx, rt.log, p, "install", false); err != nil {
				return err
			}

			fmt.Print(p.DescribeInstall())
			ok, err := confirm("Proceed with the install?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Install aborted, nothing was changed.")
				return nil
			}

			store := openHistory(ctx, rt.log)
			if store != nil {
				defer store.Close()
			}

			recordRunStart(ctx, store, rt.log, p, "install", receiptPath)
			installErr := p.Install(ctx, observerFor(store, p.ID, rt.log))
			recordRunEnd(ctx, store, rt.log, p, "install", installErr, action.IsCancelled(installErr))

			// The receipt records completed actions even on failure, so a
			// partial install can always be reverted later.
			if err := p.WriteReceipt(receiptPath); err != nil {
				rt.log.Error().Err(err).Str("path", receiptPath).Msg("Failed to write receipt")
				if installErr == nil {
					return err
				}
			}

			if installErr == nil {
				rt.log.Info().Str("receipt", receiptPath).Msg("Nix was installed successfully")
				fmt.Println("Nix was installed successfully!")
				return nil
			}

			rt.log.Error().Err(installErr).Msg("Install failed")
			ok, err = confirm("The install failed. Revert the steps that completed?")
			if err != nil || !ok {
				fmt.Printf("The partial install was kept; revert it later with: nix-installer uninstall --receipt %s\n", receiptPath)
				return installErr
			}

			recordRunStart(ctx, store, rt.log, p, "uninstall", receiptPath)
			revertErr := p.Uninstall(ctx, observerFor(store, p.ID, rt.log))
			recordRunEnd(ctx, store, rt.log, p, "uninstall", revertErr, action.IsCancelled(revertErr))
			if revertErr != nil {
				rt.log.Error().Err(revertErr).Msg("Revert of the partial install failed")
				return fmt.Errorf("install failed and revert incomplete: %w", installErr)
			}

			fmt.Println("The partial install was reverted.")
			return installErr
		},
	}

	cmd.Flags().StringVar(&planFile, "plan", "", "execute this plan file instead of planning")
	cmd.Flags().StringVar(&receiptPath, "receipt", plan.DefaultReceiptPath, "where to write the receipt")
	flags.register(cmd)

	return cmd
}
