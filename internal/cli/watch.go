// Package cli provides the watch command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nimbusdrive/nimbus-cli/internal/events"
	"github.com/nimbusdrive/nimbus-cli/internal/notify"
	"github.com/nimbusdrive/nimbus-cli/internal/syncer"
)

// newWatchCmd creates the 'watch' command.
func newWatchCmd() *cobra.Command {
	var desktopNotify bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the drive for changes until interrupted",
		Long: `Run the sync engine in the foreground, printing a line whenever
new items appear or the backend's health changes. Stop with Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.loadCatalog(ctx); err != nil {
				return err
			}

			notifyCfg := notify.DefaultConfig()
			notifyCfg.Enabled = desktopNotify
			notifier := notify.NewNotifier(notifyCfg, logger)

			sub := a.bus.SubscribeAll()
			done := make(chan struct{})
			go func() {
				defer close(done)
				for ev := range sub {
					switch e := ev.(type) {
					case *events.NewItemsDetectedEvent:
						fmt.Printf("%s  %d new item(s), %d total\n",
							e.Timestamp().Format("15:04:05"), e.NewCount, e.Total)
						notifier.NewItems(e.NewCount)
					case *events.HealthChangedEvent:
						state := "healthy"
						if !e.Healthy {
							state = "unhealthy"
						}
						fmt.Printf("%s  backend %s\n",
							e.Timestamp().Format("15:04:05"), state)
						notifier.BackendHealth(e.Healthy)
					}
				}
			}()

			cfg := syncer.Config{
				PollInterval:   a.cfg.PollInterval,
				HealthInterval: a.cfg.HealthInterval,
			}
			eng := syncer.New(cfg, a.client, a.catalog, nil, a.bus, logger)
			eng.Start(ctx)

			fmt.Printf("Watching (%d items). Ctrl-C to stop.\n", a.catalog.ActiveCount())
			<-ctx.Done()

			eng.Stop()
			a.bus.UnsubscribeAll(sub)
			<-done
			return nil
		},
	}

	cmd.Flags().BoolVar(&desktopNotify, "notify", false, "Send desktop notifications for new items")
	return cmd
}
