package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DeterminateSystems/nix-installer-sub001/pkg/action"
	"github.com/DeterminateSystems/nix-installer-sub001/pkg/plan"
)

func newUninstallCommand() *cobra.Command {
	var receiptPath string
	var plannerName string

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Uninstall Nix using the receipt of a previous install",
		Long: `Replay the receipt of a previous install in reverse.

Every revert is attempted even when earlier ones fail, so as much of the
host as possible is cleaned up; the failures are reported together at the
end. On success the receipt itself is removed.`,
		Example: `  # Uninstall using the default receipt
  nix-installer uninstall

  # Uninstall a partial install kept after a failure
  nix-installer uninstall --receipt /nix/receipt.json --yes

  # Refuse the receipt unless it matches this configuration
  nix-installer uninstall --config install.yaml --planner linux-multi`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Root().Version)
			if err != nil {
				return err
			}
			defer rt.shutdown()
			ctx := rt.context(cmd.Context())

			p, err := plan.ReadReceipt(receiptPath)
			if err != nil {
				return err
			}

			// A receipt that disagrees with an explicitly requested planner
			// or config is refused outright, before anything is touched.
			if err := verifyReceiptCompatible(p, plannerName, settingsFile); err != nil {
				return err
			}

			if err := checkPolicy(ctx, rt.log, p, "uninstall", false); err != nil {
				return err
			}

			fmt.Print(p.DescribeUninstall())
			ok, err := confirm("Proceed with the uninstall?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Uninstall aborted, nothing was changed.")
				return nil
			}

			store := openHistory(ctx, rt.log)
			if store != nil {
				defer store.Close()
			}

			recordRunStart(ctx, store, rt.log, p, "uninstall", receiptPath)
			uninstallErr := p.Uninstall(ctx, observerFor(store, p.ID, rt.log))
			recordRunEnd(ctx, store, rt.log, p, "uninstall", uninstallErr, action.IsCancelled(uninstallErr))
			if uninstallErr != nil {
				rt.log.Error().Err(uninstallErr).Msg("Uninstall finished with failures")
				return uninstallErr
			}

			if err := os.Remove(receiptPath); err != nil && !os.IsNotExist(err) {
				rt.log.Warn().Err(err).Str("path", receiptPath).Msg("Could not remove receipt")
			}

			fmt.Println("Nix was uninstalled.")
			return nil
		},
	}

	cmd.Flags().StringVar(&receiptPath, "receipt", plan.DefaultReceiptPath, "receipt of the install to revert")
	cmd.Flags().StringVar(&plannerName, "planner", "", "refuse the receipt unless it was planned by this planner")

	return cmd
}
