package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past install and uninstall runs",
		Long: `List the runs recorded in the history database, most recent first.

The history lives outside /nix, so it survives an uninstall and shows
failed or cancelled runs alongside completed ones.`,
		Example: `  # Show the most recent runs
  nix-installer history

  # Show the action-by-action log of one run
  nix-installer history events 11111111-2222-3333-4444-555555555555`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Root().Version)
			if err != nil {
				return err
			}
			defer rt.shutdown()
			ctx := rt.context(cmd.Context())

			store := openHistory(ctx, rt.log)
			if store == nil {
				return fmt.Errorf("history database is not available")
			}
			defer store.Close()

			runs, err := store.ListRuns(ctx, limit, offset)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tOPERATION\tPLANNER\tSTATUS\tID")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					run.StartedAt.Format(time.RFC3339),
					run.Operation,
					run.Planner,
					run.Status,
					run.ID,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")

	cmd.AddCommand(newHistoryEventsCommand())

	return cmd
}

func newHistoryEventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "events <run-id>",
		Short: "Show the action-by-action log of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Root().Version)
			if err != nil {
				return err
			}
			defer rt.shutdown()
			ctx := rt.context(cmd.Context())

			store := openHistory(ctx, rt.log)
			if store == nil {
				return fmt.Errorf("history database is not available")
			}
			defer store.Close()

			events, err := store.ListActionEvents(ctx, args[0])
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("No events recorded for this run.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tOP\tACTION\tOUTCOME\tDURATION\tDETAIL")
			for _, e := range events {
				detail := e.Synopsis
				if e.Error != nil {
					detail = *e.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dms\t%s\n",
					e.Timestamp.Format(time.RFC3339),
					e.Op,
					e.ActionKind,
					e.Outcome,
					e.DurationMS,
					detail,
				)
			}
			return w.Flush()
		},
	}
}
