package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aryklein/sheetsync/internal/common"
	"github.com/aryklein/sheetsync/internal/models"
)

func newSyncCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle now",
		RunE: func(cmd *cobra.Command, args []string) error {
			res := app.engine.Sync(cmd.Context())
			// Going online fires a background cycle; if it grabbed the slot
			// first, wait it out and run ours.
			for res.ErrorMessage == common.ErrSyncInProgress.Error() {
				time.Sleep(100 * time.Millisecond)
				res = app.engine.Sync(cmd.Context())
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pushed:    %d\n", res.PushedCount)
			fmt.Fprintf(out, "pulled:    %d\n", res.PulledCount)
			fmt.Fprintf(out, "conflicts: %d\n", res.Conflicts)
			if !res.Success {
				return fmt.Errorf("sync failed: %s", res.ErrorMessage)
			}
			return nil
		},
	}
}

func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.engine.Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			last := "never"
			if st.LastSync != nil {
				last = st.LastSync.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "last sync: %s\n", last)
			fmt.Fprintf(out, "pending:   %d change(s)\n", st.PendingChanges)
			fmt.Fprintf(out, "state:     %s\n", st.Status)
			if st.Status == models.SyncStateError && st.ErrorMessage != "" {
				fmt.Fprintf(out, "error:     %s\n", st.ErrorMessage)
			}
			return nil
		},
	}
}

func newWatchCommand(app *App) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync on a timer until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("interval") {
				interval = app.cfg.SyncInterval
			}

			app.engine.StartAutoSync(interval)
			defer app.engine.StopAutoSync()

			fmt.Fprintf(cmd.OutOrStdout(), "syncing every %s, press ctrl-c to stop\n", interval)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sig)

			select {
			case <-sig:
			case <-cmd.Context().Done():
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "sync interval (defaults to sync.interval from config)")

	return cmd
}
