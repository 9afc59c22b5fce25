// Package catalog holds the authoritative client-side model of files,
// folders, recycle-bin entries, favorites and albums.
//
// The snapshot is replace-then-publish: the sync engine swaps it wholesale
// and readers never observe a partial refresh. Mutations are optimistic:
// the local change applies first, the remote call follows, and a remote
// failure rolls the local change back before being surfaced to the caller.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nimbusdrive/nimbus-cli/internal/api"
	"github.com/nimbusdrive/nimbus-cli/internal/events"
	"github.com/nimbusdrive/nimbus-cli/internal/logging"
	"github.com/nimbusdrive/nimbus-cli/internal/models"
)

// Remote is the slice of the gateway the catalog mutates through.
type Remote interface {
	ListFiles(ctx context.Context, kind models.FileKind) ([]models.FileEntry, error)
	SoftDeleteFile(ctx context.Context, id string) error
	PurgeFile(ctx context.Context, id string) error
	RestoreFile(ctx context.Context, id string) error
	CreateFolder(ctx context.Context, name, parentPath string) (*models.FileEntry, error)
	UpdateFile(ctx context.Context, id string, update api.FileUpdate) (*models.FileEntry, error)
}

// Catalog is the in-memory model. All exported methods are safe for
// concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]*models.FileEntry
	order   []string // Snapshot order, most recent first
	albums  map[string]*models.Album

	remote Remote
	bus    *events.EventBus
	logger *logging.Logger
	now    func() time.Time
}

// New creates an empty catalog.
func New(remote Remote, bus *events.EventBus, logger *logging.Logger) *Catalog {
	return &Catalog{
		entries: make(map[string]*models.FileEntry),
		albums:  make(map[string]*models.Album),
		remote:  remote,
		bus:     bus,
		logger:  logger,
		now:     time.Now,
	}
}

// ReplaceSnapshot swaps the whole snapshot for a freshly fetched one.
// A files-changed event is published only when the fetched snapshot
// differs from the current one, so steady-state poll ticks stay silent.
// Returns the active entry count before and after, which the sync engine
// uses for new-item detection.
func (c *Catalog) ReplaceSnapshot(fetched []models.FileEntry) (prevActive, newActive int) {
	entries := make(map[string]*models.FileEntry, len(fetched))
	order := make([]string, 0, len(fetched))
	for i := range fetched {
		e := fetched[i]
		if _, dup := entries[e.ID]; dup {
			continue
		}
		if !e.IsFolder && e.Kind == "" {
			e.Kind = models.ClassifyKind(e.Name, e.MimeType)
		}
		entries[e.ID] = &e
		order = append(order, e.ID)
	}

	c.mu.Lock()
	prevActive = c.activeCountLocked()
	changed := !snapshotEqual(c.entries, c.order, entries, order)
	c.entries = entries
	c.order = order
	newActive = c.activeCountLocked()
	c.mu.Unlock()

	if changed && c.bus != nil {
		c.bus.PublishFilesChanged("sync", newActive)
	}
	return prevActive, newActive
}

func snapshotEqual(prev map[string]*models.FileEntry, prevOrder []string, next map[string]*models.FileEntry, nextOrder []string) bool {
	if len(prevOrder) != len(nextOrder) {
		return false
	}
	for i, id := range nextOrder {
		if prevOrder[i] != id {
			return false
		}
		p, ok := prev[id]
		if !ok || *p != *next[id] {
			return false
		}
	}
	return true
}

func (c *Catalog) activeCountLocked() int {
	n := 0
	for _, e := range c.entries {
		if e.Active() {
			n++
		}
	}
	return n
}

// RefreshFromRemote refetches the full listing and swaps the snapshot in.
// Used after uploads so new entries show up without waiting for the next
// sync tick.
func (c *Catalog) RefreshFromRemote(ctx context.Context) error {
	fetched, err := c.remote.ListFiles(ctx, "")
	if err != nil {
		return fmt.Errorf("refresh listing: %w", err)
	}
	c.ReplaceSnapshot(fetched)
	return nil
}

// ActiveCount returns the number of non-deleted entries.
func (c *Catalog) ActiveCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeCountLocked()
}

// Get returns a copy of the entry, deleted or not, by id.
func (c *Catalog) Get(id string) (models.FileEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return models.FileEntry{}, false
	}
	return *e, true
}

// CreateFolder creates a folder under parentPath. An active sibling with
// the same name rejects the call with ErrDuplicateName before anything
// reaches the backend.
func (c *Catalog) CreateFolder(ctx context.Context, name, parentPath string) (*models.FileEntry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("folder name must not be empty")
	}
	parentPath = strings.Trim(parentPath, "/")

	c.mu.RLock()
	for _, e := range c.entries {
		if e.Active() && e.FolderPath == parentPath && e.Name == name {
			c.mu.RUnlock()
			return nil, fmt.Errorf("%w: %q in %q", api.ErrDuplicateName, name, parentPath)
		}
	}
	c.mu.RUnlock()

	entry, err := c.remote.CreateFolder(ctx, name, parentPath)
	if err != nil {
		return nil, err
	}

	stored := *entry
	stored.IsFolder = true
	stored.Kind = models.KindFolder

	c.mu.Lock()
	c.entries[stored.ID] = &stored
	c.order = append([]string{stored.ID}, c.order...)
	active := c.activeCountLocked()
	c.mu.Unlock()

	c.publishMutation(active)
	result := stored
	return &result, nil
}

// SoftDelete marks each matching active entry deleted, stamping the delete
// time and remembering the prior location. Already-deleted and unknown ids
// are no-ops. Per-id remote failures roll back that id's local change;
// the joined failures are returned.
func (c *Catalog) SoftDelete(ctx context.Context, ids []string) error {
	var errs []error
	changed := false

	for _, id := range ids {
		c.mu.Lock()
		e, ok := c.entries[id]
		if !ok || e.Deleted {
			c.mu.Unlock()
			continue
		}
		prior := *e
		e.Deleted = true
		e.DeletedAt = c.now()
		e.PriorFolderPath = e.FolderPath
		c.mu.Unlock()

		if err := c.remote.SoftDeleteFile(ctx, id); err != nil {
			c.restoreEntry(id, prior)
			errs = append(errs, fmt.Errorf("delete %s: %w", id, err))
			continue
		}
		changed = true
	}

	if changed {
		c.publishMutation(c.ActiveCount())
	}
	return errors.Join(errs...)
}

// Restore clears delete state for matching entries, returning each to the
// folder it was deleted from. Restoring a non-deleted or unknown id is a
// no-op.
func (c *Catalog) Restore(ctx context.Context, ids []string) error {
	var errs []error
	changed := false

	for _, id := range ids {
		c.mu.Lock()
		e, ok := c.entries[id]
		if !ok || !e.Deleted {
			c.mu.Unlock()
			continue
		}
		prior := *e
		e.Deleted = false
		e.DeletedAt = time.Time{}
		if e.PriorFolderPath != "" {
			e.FolderPath = e.PriorFolderPath
		}
		e.PriorFolderPath = ""
		c.mu.Unlock()

		if err := c.remote.RestoreFile(ctx, id); err != nil {
			c.restoreEntry(id, prior)
			errs = append(errs, fmt.Errorf("restore %s: %w", id, err))
			continue
		}
		changed = true
	}

	if changed {
		c.publishMutation(c.ActiveCount())
	}
	return errors.Join(errs...)
}

// PermanentlyDelete removes matching entries outright. Irreversible, and
// idempotent on already-absent ids.
func (c *Catalog) PermanentlyDelete(ctx context.Context, ids []string) error {
	var errs []error
	changed := false

	for _, id := range ids {
		c.mu.Lock()
		e, ok := c.entries[id]
		if !ok {
			c.mu.Unlock()
			continue
		}
		prior := *e
		delete(c.entries, id)
		c.removeFromOrderLocked(id)
		c.mu.Unlock()

		if err := c.remote.PurgeFile(ctx, id); err != nil {
			// Tolerate the backend already having purged it.
			if !api.IsNotFound(err) {
				c.restoreEntry(id, prior)
				errs = append(errs, fmt.Errorf("purge %s: %w", id, err))
				continue
			}
		}
		changed = true
	}

	if changed {
		c.publishMutation(c.ActiveCount())
	}
	return errors.Join(errs...)
}

// Move reassigns the parent of each entry. The call fails with
// ErrInvalidTarget before any state changes when the target is one of the
// moved ids, is unknown (other than root), or is not an active folder.
func (c *Catalog) Move(ctx context.Context, ids []string, targetParentID string) error {
	for _, id := range ids {
		if id == targetParentID {
			return fmt.Errorf("%w: %s cannot contain itself", api.ErrInvalidTarget, id)
		}
	}

	targetPath := ""
	if targetParentID != "" {
		c.mu.RLock()
		target, ok := c.entries[targetParentID]
		if !ok || !target.IsFolder || !target.Active() {
			c.mu.RUnlock()
			return fmt.Errorf("%w: %s is not an active folder", api.ErrInvalidTarget, targetParentID)
		}
		targetPath = models.JoinFolderPath(target.FolderPath, target.Name)
		c.mu.RUnlock()
	}

	var errs []error
	changed := false

	for _, id := range ids {
		c.mu.Lock()
		e, ok := c.entries[id]
		if !ok || !e.Active() {
			c.mu.Unlock()
			continue
		}
		prior := *e
		e.ParentID = targetParentID
		e.FolderPath = targetPath
		e.UpdatedAt = c.now()
		c.mu.Unlock()

		update := api.FileUpdate{ParentID: &targetParentID, FolderPath: &targetPath}
		if _, err := c.remote.UpdateFile(ctx, id, update); err != nil {
			c.restoreEntry(id, prior)
			errs = append(errs, fmt.Errorf("move %s: %w", id, err))
			continue
		}
		changed = true
	}

	if changed {
		c.publishMutation(c.ActiveCount())
	}
	return errors.Join(errs...)
}

// Copy duplicates entries into the target folder. The copies carry fresh
// ids and a disambiguating name suffix; originals are untouched. Copies
// are local until the next reconciliation.
func (c *Catalog) Copy(ctx context.Context, ids []string, targetParentID string) ([]models.FileEntry, error) {
	targetPath := ""
	if targetParentID != "" {
		c.mu.RLock()
		target, ok := c.entries[targetParentID]
		if !ok || !target.IsFolder || !target.Active() {
			c.mu.RUnlock()
			return nil, fmt.Errorf("%w: %s is not an active folder", api.ErrInvalidTarget, targetParentID)
		}
		targetPath = models.JoinFolderPath(target.FolderPath, target.Name)
		c.mu.RUnlock()
	}

	var copies []models.FileEntry

	c.mu.Lock()
	for _, id := range ids {
		e, ok := c.entries[id]
		if !ok || !e.Active() {
			continue
		}
		dup := *e
		dup.ID = uuid.NewString()
		dup.Name = copyName(e.Name)
		dup.ParentID = targetParentID
		dup.FolderPath = targetPath
		dup.CreatedAt = c.now()
		dup.UpdatedAt = dup.CreatedAt
		dup.OpenedAt = time.Time{}
		dup.IsFavorite = false

		c.entries[dup.ID] = &dup
		c.order = append([]string{dup.ID}, c.order...)
		copies = append(copies, dup)
	}
	active := c.activeCountLocked()
	c.mu.Unlock()

	if len(copies) > 0 {
		c.publishMutation(active)
	}
	return copies, nil
}

// Rename changes an entry's name. Unknown ids fail with ErrNotFound.
func (c *Catalog) Rename(ctx context.Context, id, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return fmt.Errorf("name must not be empty")
	}

	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", api.ErrNotFound, id)
	}
	prior := *e
	e.Name = newName
	e.UpdatedAt = c.now()
	c.mu.Unlock()

	if _, err := c.remote.UpdateFile(ctx, id, api.FileUpdate{Name: &newName}); err != nil {
		c.restoreEntry(id, prior)
		return fmt.Errorf("rename %s: %w", id, err)
	}

	c.publishMutation(c.ActiveCount())
	return nil
}

// ToggleFavorite flips an entry's favorite flag.
func (c *Catalog) ToggleFavorite(ctx context.Context, id string) error {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", api.ErrNotFound, id)
	}
	prior := *e
	e.IsFavorite = !e.IsFavorite
	flag := e.IsFavorite
	c.mu.Unlock()

	if _, err := c.remote.UpdateFile(ctx, id, api.FileUpdate{IsFavorite: &flag}); err != nil {
		c.restoreEntry(id, prior)
		return fmt.Errorf("favorite %s: %w", id, err)
	}

	c.publishMutation(c.ActiveCount())
	return nil
}

// MarkOpened stamps the entry's last-open time, feeding the recent view.
func (c *Catalog) MarkOpened(ctx context.Context, id string) error {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", api.ErrNotFound, id)
	}
	prior := *e
	opened := c.now()
	e.OpenedAt = opened
	c.mu.Unlock()

	stamp := opened.UTC().Format(time.RFC3339)
	if _, err := c.remote.UpdateFile(ctx, id, api.FileUpdate{OpenedAt: &stamp}); err != nil {
		c.restoreEntry(id, prior)
		return fmt.Errorf("mark opened %s: %w", id, err)
	}
	return nil
}

// restoreEntry puts back the pre-mutation copy after a remote failure.
func (c *Catalog) restoreEntry(id string, prior models.FileEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; !ok {
		// Entry was removed (permanent delete rollback); reinsert.
		c.order = append([]string{id}, c.order...)
	}
	restored := prior
	c.entries[id] = &restored
}

func (c *Catalog) removeFromOrderLocked(id string) {
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Catalog) publishMutation(active int) {
	if c.bus != nil {
		c.bus.PublishFilesChanged("mutation", active)
	}
}

// copyName disambiguates a duplicated entry's name, preserving the
// extension: "photo.jpg" becomes "photo (copy).jpg".
func copyName(name string) string {
	if dot := strings.LastIndex(name, "."); dot > 0 {
		return name[:dot] + " (copy)" + name[dot:]
	}
	return name + " (copy)"
}

// SetClock overrides the catalog's time source. Test hook.
func (c *Catalog) SetClock(now func() time.Time) {
	c.now = now
}
