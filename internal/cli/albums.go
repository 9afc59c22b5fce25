// Package cli provides album commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nimbusdrive/nimbus-cli/internal/models"
	"github.com/nimbusdrive/nimbus-cli/internal/store"
)

// newAlbumsCmd creates the 'albums' command group.
func newAlbumsCmd() *cobra.Command {
	albumsCmd := &cobra.Command{
		Use:   "albums",
		Short: "Group photos into named albums",
	}

	albumsCmd.AddCommand(newAlbumsListCmd())
	albumsCmd.AddCommand(newAlbumsCreateCmd())
	albumsCmd.AddCommand(newAlbumsShowCmd())
	albumsCmd.AddCommand(newAlbumsAddCmd())
	albumsCmd.AddCommand(newAlbumsRemoveCmd())
	albumsCmd.AddCommand(newAlbumsDeleteCmd())

	return albumsCmd
}

// loadAlbums restores the persisted album set into the catalog.
func (a *app) loadAlbums(ctx context.Context) error {
	raw, err := a.store.Get(ctx, store.KeyAlbums)
	if err != nil {
		return err
	}
	return a.catalog.ImportAlbums(raw)
}

// saveAlbums writes the album set back to the state store.
func (a *app) saveAlbums(ctx context.Context) error {
	raw, err := a.catalog.ExportAlbums()
	if err != nil {
		return err
	}
	if raw == "" {
		return a.store.Delete(ctx, store.KeyAlbums)
	}
	return a.store.Set(ctx, store.KeyAlbums, raw)
}

// resolveAlbum looks an album up by name first, then by id.
func (a *app) resolveAlbum(nameOrID string) (models.Album, error) {
	albums := a.catalog.Albums()
	for _, album := range albums {
		if album.Name == nameOrID {
			return album, nil
		}
	}
	for _, album := range albums {
		if album.ID == nameOrID {
			return album, nil
		}
	}
	return models.Album{}, fmt.Errorf("no album named %q; run 'nimbus albums list'", nameOrID)
}

// albumApp sets up an app with the catalog and persisted albums loaded.
func albumApp(ctx context.Context) (*app, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.loadCatalog(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.loadAlbums(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// newAlbumsListCmd creates the 'albums list' command.
func newAlbumsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List albums",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := albumApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			albums := a.catalog.Albums()
			if len(albums) == 0 {
				fmt.Println("No albums.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPHOTOS\tCREATED\tID")
			for _, album := range albums {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
					album.Name, len(album.PhotoIDs),
					album.CreatedAt.Format("2006-01-02 15:04"), album.ID)
			}
			return w.Flush()
		},
	}
}

// newAlbumsCreateCmd creates the 'albums create' command.
func newAlbumsCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> [file-id...]",
		Short: "Create an album, optionally seeding it with photos",
		Long: `Create a named album. Any file ids given become its initial members;
only active images are kept.

Examples:
  nimbus albums create "Summer 2026"
  nimbus albums create holiday 1f3a9c 8b22e0`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := albumApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			album, err := a.catalog.CreateAlbum(args[0], args[1:])
			if err != nil {
				return err
			}
			if err := a.saveAlbums(ctx); err != nil {
				return err
			}
			fmt.Printf("Created album %q with %d photo(s)\n", album.Name, len(album.PhotoIDs))
			return nil
		},
	}
}

// newAlbumsShowCmd creates the 'albums show' command.
func newAlbumsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <album>",
		Short: "List an album's photos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := albumApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			album, err := a.resolveAlbum(args[0])
			if err != nil {
				return err
			}
			entries, err := a.catalog.AlbumEntries(album.ID)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Printf("Album %q is empty.\n", album.Name)
				return nil
			}
			printEntries(entries, false)
			return nil
		},
	}
}

// newAlbumsAddCmd creates the 'albums add' command.
func newAlbumsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <album> <file-id...>",
		Short: "Add photos to an album",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := albumApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			album, err := a.resolveAlbum(args[0])
			if err != nil {
				return err
			}
			if err := a.catalog.AddToAlbum(album.ID, args[1:]); err != nil {
				return err
			}
			return a.saveAlbums(ctx)
		},
	}
}

// newAlbumsRemoveCmd creates the 'albums remove' command.
func newAlbumsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <album> <file-id...>",
		Short: "Remove photos from an album",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := albumApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			album, err := a.resolveAlbum(args[0])
			if err != nil {
				return err
			}
			if err := a.catalog.RemoveFromAlbum(album.ID, args[1:]); err != nil {
				return err
			}
			return a.saveAlbums(ctx)
		},
	}
}

// newAlbumsDeleteCmd creates the 'albums delete' command.
func newAlbumsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <album>",
		Short: "Delete an album (photos are untouched)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := albumApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			album, err := a.resolveAlbum(args[0])
			if err != nil {
				return err
			}
			if err := a.catalog.DeleteAlbum(album.ID); err != nil {
				return err
			}
			if err := a.saveAlbums(ctx); err != nil {
				return err
			}
			fmt.Printf("Deleted album %q\n", album.Name)
			return nil
		},
	}
}
