package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/nimbusdrive/nimbus-cli/internal/api"
	"github.com/nimbusdrive/nimbus-cli/internal/models"
)

// Albums are named groupings of image entries. Membership is by id only,
// so a member that is deleted or purged simply stops resolving; album
// reads skip dangling references rather than failing.

// CreateAlbum creates an album holding the given photo ids. Non-image and
// unknown ids are dropped at creation time.
func (c *Catalog) CreateAlbum(name string, photoIDs []string) (*models.Album, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("album name must not be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range c.albums {
		if a.Name == name {
			return nil, fmt.Errorf("%w: album %q", api.ErrDuplicateName, name)
		}
	}

	album := &models.Album{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: c.now(),
	}
	for _, id := range photoIDs {
		if e, ok := c.entries[id]; ok && e.Active() && e.Kind == models.KindImage {
			album.PhotoIDs = append(album.PhotoIDs, id)
		}
	}
	c.albums[album.ID] = album

	result := *album
	return &result, nil
}

// Albums returns all albums sorted by creation time, newest first.
func (c *Catalog) Albums() []models.Album {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Album, 0, len(c.albums))
	for _, a := range c.albums {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// AddToAlbum appends photo ids to an album, skipping duplicates and
// entries that are not active images.
func (c *Catalog) AddToAlbum(albumID string, photoIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	album, ok := c.albums[albumID]
	if !ok {
		return fmt.Errorf("%w: album %s", api.ErrNotFound, albumID)
	}

	have := make(map[string]bool, len(album.PhotoIDs))
	for _, id := range album.PhotoIDs {
		have[id] = true
	}
	for _, id := range photoIDs {
		if have[id] {
			continue
		}
		if e, ok := c.entries[id]; ok && e.Active() && e.Kind == models.KindImage {
			album.PhotoIDs = append(album.PhotoIDs, id)
			have[id] = true
		}
	}
	return nil
}

// RemoveFromAlbum drops photo ids from an album. Absent ids are no-ops.
func (c *Catalog) RemoveFromAlbum(albumID string, photoIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	album, ok := c.albums[albumID]
	if !ok {
		return fmt.Errorf("%w: album %s", api.ErrNotFound, albumID)
	}

	drop := make(map[string]bool, len(photoIDs))
	for _, id := range photoIDs {
		drop[id] = true
	}
	kept := album.PhotoIDs[:0]
	for _, id := range album.PhotoIDs {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	album.PhotoIDs = kept
	return nil
}

// DeleteAlbum removes an album. Member entries are untouched.
func (c *Catalog) DeleteAlbum(albumID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.albums[albumID]; !ok {
		return fmt.Errorf("%w: album %s", api.ErrNotFound, albumID)
	}
	delete(c.albums, albumID)
	return nil
}

// ExportAlbums serializes all albums for persistence. Returns "" when
// there are none, so callers can drop the stored value instead of writing
// an empty list.
func (c *Catalog) ExportAlbums() (string, error) {
	albums := c.Albums()
	if len(albums) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(albums)
	if err != nil {
		return "", fmt.Errorf("failed to serialize albums: %w", err)
	}
	return string(raw), nil
}

// ImportAlbums replaces the album set with a previously exported one.
// An empty payload clears it. Member ids are kept as-is; ones that no
// longer resolve are skipped at read time like any dangling reference.
func (c *Catalog) ImportAlbums(raw string) error {
	albums := make(map[string]*models.Album)
	if raw != "" {
		var list []models.Album
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return fmt.Errorf("failed to parse stored albums: %w", err)
		}
		for i := range list {
			a := list[i]
			if a.ID == "" || a.Name == "" {
				continue
			}
			albums[a.ID] = &a
		}
	}

	c.mu.Lock()
	c.albums = albums
	c.mu.Unlock()
	return nil
}

// AlbumEntries resolves an album's members to entries, skipping dangling
// and deleted references.
func (c *Catalog) AlbumEntries(albumID string) ([]models.FileEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	album, ok := c.albums[albumID]
	if !ok {
		return nil, fmt.Errorf("%w: album %s", api.ErrNotFound, albumID)
	}

	var out []models.FileEntry
	for _, id := range album.PhotoIDs {
		if e, ok := c.entries[id]; ok && e.Active() {
			out = append(out, *e)
		}
	}
	return out, nil
}
