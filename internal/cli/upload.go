// Package cli provides the upload command.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nimbusdrive/nimbus-cli/internal/models"
	"github.com/nimbusdrive/nimbus-cli/internal/notify"
	"github.com/nimbusdrive/nimbus-cli/internal/progress"
	"github.com/nimbusdrive/nimbus-cli/internal/upload"
)

// newUploadCmd creates the 'upload' command.
func newUploadCmd() *cobra.Command {
	var dest string
	var concurrency int
	var desktopNotify bool

	cmd := &cobra.Command{
		Use:   "upload <path> [path...]",
		Short: "Upload files or directories",
		Long: `Upload files or whole directories to your drive.

Directories upload recursively; their structure is recreated under the
destination folder. Files within a batch transfer concurrently, and one
failed file never aborts the rest.

Examples:
  # Upload files to the root
  nimbus upload photo.jpg notes.pdf

  # Upload into a folder
  nimbus upload *.jpg --dest "photos/2026"

  # Upload a directory tree
  nimbus upload ./vacation --dest photos

  # Limit concurrency
  nimbus upload *.raw --concurrency 2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.requireSession(); err != nil {
				return err
			}

			var items []models.UploadItem
			for _, arg := range args {
				info, err := os.Stat(arg)
				if err != nil {
					return fmt.Errorf("stat %s: %w", arg, err)
				}
				if info.IsDir() {
					dirItems, err := upload.CollectDir(arg)
					if err != nil {
						return err
					}
					items = append(items, dirItems...)
				} else {
					items = append(items, models.UploadItem{
						LocalPath:    arg,
						RelativePath: filepath.Base(arg),
						Size:         info.Size(),
					})
				}
			}
			if len(items) == 0 {
				return fmt.Errorf("nothing to upload")
			}

			if concurrency <= 0 {
				concurrency = a.cfg.UploadConcurrency
			}

			ui := progress.NewUploadUI(len(items))
			ui.Attach(a.bus)

			pipeline := upload.NewPipeline(a.client, a.catalog, a.bus, logger, concurrency)
			result, err := pipeline.UploadBatch(ctx, items, dest)
			ui.Wait()
			if err != nil {
				return err
			}

			if desktopNotify {
				notifier := notify.NewNotifier(notify.DefaultConfig(), logger)
				notifier.UploadComplete(result.BatchName, result.Successful, result.Failed)
			}

			fmt.Printf("\nBatch %q: %d uploaded, %d failed (of %d)\n",
				result.BatchName, result.Successful, result.Failed, result.Total)
			for _, o := range result.Outcomes {
				if o.Err != nil {
					fmt.Printf("  failed: %s: %v\n", o.Name, o.Err)
				}
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d of %d files failed", result.Failed, result.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dest, "dest", "", "Destination folder path (default: root)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum concurrent transfers (default from config)")
	cmd.Flags().BoolVar(&desktopNotify, "notify", false, "Send a desktop notification when the batch finishes")
	return cmd
}
