// Package cli provides file operation commands.
package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimbusdrive/nimbus-cli/internal/catalog"
	"github.com/nimbusdrive/nimbus-cli/internal/models"
)

// newFilesCmd creates the 'files' command group.
func newFilesCmd() *cobra.Command {
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "Browse and organize files (list, mkdir, delete, move, ...)",
	}

	filesCmd.AddCommand(newFilesListCmd())
	filesCmd.AddCommand(newFilesMkdirCmd())
	filesCmd.AddCommand(newFilesDeleteCmd())
	filesCmd.AddCommand(newFilesRestoreCmd())
	filesCmd.AddCommand(newFilesPurgeCmd())
	filesCmd.AddCommand(newFilesMoveCmd())
	filesCmd.AddCommand(newFilesCopyCmd())
	filesCmd.AddCommand(newFilesRenameCmd())
	filesCmd.AddCommand(newFilesFavoriteCmd())
	filesCmd.AddCommand(newFilesOpenCmd())
	filesCmd.AddCommand(newFilesURLCmd())
	filesCmd.AddCommand(newFilesSearchCmd())

	return filesCmd
}

// newFilesListCmd creates the 'files list' command.
func newFilesListCmd() *cobra.Command {
	var kind string
	var folder string
	var favorites bool
	var trash bool
	var recent bool
	var byDate bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List files and folders",
		Long: `List files and folders from your drive.

Examples:
  # Everything, newest first
  nimbus files list

  # Only images
  nimbus files list --kind image

  # A specific folder
  nimbus files list --folder "photos/2026"

  # Favorites, recycle bin, recent activity
  nimbus files list --favorites
  nimbus files list --trash
  nimbus files list --recent

  # Grouped by creation day
  nimbus files list --by-date`,
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

			var entries []models.FileEntry
			switch {
			case trash:
				entries = a.catalog.RecycleBin()
			case favorites:
				entries = a.catalog.Favorites()
			case recent:
				entries = a.catalog.RecentActivity(time.Now())
			default:
				filter := catalog.Filter{Kind: models.FileKind(kind)}
				if cmd.Flags().Changed("folder") {
					f := strings.Trim(folder, "/")
					filter.FolderPath = &f
				}
				entries = a.catalog.List(filter)
			}

			if len(entries) == 0 {
				fmt.Println("No files.")
				return nil
			}

			if byDate {
				for _, group := range catalog.GroupByDate(entries) {
					fmt.Printf("\n%s\n", group.Label)
					printEntries(group.Entries, trash)
				}
				return nil
			}
			printEntries(entries, trash)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind (image, video, audio, document, code, generic, folder)")
	cmd.Flags().StringVar(&folder, "folder", "", "Filter by folder path")
	cmd.Flags().BoolVar(&favorites, "favorites", false, "Show only favorites")
	cmd.Flags().BoolVar(&trash, "trash", false, "Show the recycle bin")
	cmd.Flags().BoolVar(&recent, "recent", false, "Show recent activity")
	cmd.Flags().BoolVar(&byDate, "by-date", false, "Group output by creation day")
	return cmd
}

// printEntries renders entries as an aligned table.
func printEntries(entries []models.FileEntry, showDeleted bool) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if showDeleted {
		fmt.Fprintln(w, "ID\tNAME\tKIND\tSIZE\tDELETED\tFROM")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t/%s\n",
				e.ID, e.Name, e.Kind, formatSize(e.SizeBytes),
				e.DeletedAt.Format("2006-01-02 15:04"), e.PriorFolderPath)
		}
	} else {
		fmt.Fprintln(w, "ID\tNAME\tKIND\tSIZE\tFOLDER\tFAV\tCREATED")
		for _, e := range entries {
			fav := ""
			if e.IsFavorite {
				fav = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t/%s\t%s\t%s\n",
				e.ID, e.Name, e.Kind, formatSize(e.SizeBytes),
				e.FolderPath, fav, e.CreatedAt.Format("2006-01-02 15:04"))
		}
	}
	w.Flush()
}

func formatSize(size int64) string {
	switch {
	case size >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(size)/(1<<30))
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}

// newFilesMkdirCmd creates the 'files mkdir' command.
func newFilesMkdirCmd() *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "mkdir <name>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
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

			entry, err := a.catalog.CreateFolder(ctx, args[0], parent)
			if err != nil {
				return err
			}
			fmt.Printf("Created folder %s (id %s)\n", entry.Name, entry.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "Parent folder path (default: root)")
	return cmd
}

// newFilesDeleteCmd creates the 'files delete' command.
func newFilesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id> [id...]",
		Short: "Move files to the recycle bin",
		Args:  cobra.MinimumNArgs(1),
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
			if err := a.catalog.SoftDelete(ctx, args); err != nil {
				return err
			}
			fmt.Printf("Moved %d item(s) to the recycle bin.\n", len(args))
			return nil
		},
	}
}

// newFilesRestoreCmd creates the 'files restore' command.
func newFilesRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id> [id...]",
		Short: "Restore files from the recycle bin",
		Args:  cobra.MinimumNArgs(1),
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
			if err := a.catalog.Restore(ctx, args); err != nil {
				return err
			}
			fmt.Printf("Restored %d item(s).\n", len(args))
			return nil
		},
	}
}

// newFilesPurgeCmd creates the 'files purge' command.
func newFilesPurgeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge <id> [id...]",
		Short: "Permanently delete files (irreversible)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("purge is irreversible; pass --yes to confirm")
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.loadCatalog(ctx); err != nil {
				return err
			}
			if err := a.catalog.PermanentlyDelete(ctx, args); err != nil {
				return err
			}
			fmt.Printf("Permanently deleted %d item(s).\n", len(args))
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm permanent deletion")
	return cmd
}

// newFilesMoveCmd creates the 'files move' command.
func newFilesMoveCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "move <id> [id...]",
		Short: "Move files into a folder",
		Long: `Move files into a target folder by the folder's id. An empty
target (the default) moves them to the root.`,
		Args: cobra.MinimumNArgs(1),
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
			if err := a.catalog.Move(ctx, args, target); err != nil {
				return err
			}
			fmt.Printf("Moved %d item(s).\n", len(args))
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "to", "", "Target folder id (default: root)")
	return cmd
}

// newFilesCopyCmd creates the 'files copy' command.
func newFilesCopyCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "copy <id> [id...]",
		Short: "Copy files into a folder",
		Args:  cobra.MinimumNArgs(1),
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
			copies, err := a.catalog.Copy(ctx, args, target)
			if err != nil {
				return err
			}
			for _, c := range copies {
				fmt.Printf("Copied %s (new id %s)\n", c.Name, c.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "to", "", "Target folder id (default: root)")
	return cmd
}

// newFilesRenameCmd creates the 'files rename' command.
func newFilesRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <new-name>",
		Short: "Rename a file or folder",
		Args:  cobra.ExactArgs(2),
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
			if err := a.catalog.Rename(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Renamed to %s.\n", args[1])
			return nil
		},
	}
}

// newFilesFavoriteCmd creates the 'files favorite' command.
func newFilesFavoriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <id>",
		Short: "Toggle a file's favorite flag",
		Args:  cobra.ExactArgs(1),
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
			if err := a.catalog.ToggleFavorite(ctx, args[0]); err != nil {
				return err
			}
			entry, _ := a.catalog.Get(args[0])
			if entry.IsFavorite {
				fmt.Printf("%s is now a favorite.\n", entry.Name)
			} else {
				fmt.Printf("%s is no longer a favorite.\n", entry.Name)
			}
			return nil
		},
	}
}

// newFilesOpenCmd creates the 'files open' command.
func newFilesOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <id>",
		Short: "Mark a file opened and print its download URL",
		Args:  cobra.ExactArgs(1),
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
			if err := a.catalog.MarkOpened(ctx, args[0]); err != nil {
				return err
			}
			signed, err := a.client.GetSignedURL(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(signed.URL)
			return nil
		},
	}
}

// newFilesURLCmd creates the 'files url' command.
func newFilesURLCmd() *cobra.Command {
	var thumbnail bool

	cmd := &cobra.Command{
		Use:   "url <id>",
		Short: "Print a short-lived download URL for a file",
		Args:  cobra.ExactArgs(1),
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

			fetch := a.client.GetSignedURL
			if thumbnail {
				fetch = a.client.GetThumbnailURL
			}
			signed, err := fetch(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(signed.URL)
			return nil
		},
	}

	cmd.Flags().BoolVar(&thumbnail, "thumbnail", false, "Request the thumbnail variant")
	return cmd
}

// newFilesSearchCmd creates the 'files search' command.
func newFilesSearchCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search files by text",
		Args:  cobra.MinimumNArgs(1),
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

			query := strings.Join(args, " ")
			results, err := a.client.SearchText(ctx, query, topK)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No matches.")
				return nil
			}
			printEntries(results, false)
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "limit", 20, "Maximum number of results")
	return cmd
}
