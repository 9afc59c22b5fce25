package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nimbusdrive/nimbus-cli/internal/api"
	"github.com/nimbusdrive/nimbus-cli/internal/events"
	"github.com/nimbusdrive/nimbus-cli/internal/logging"
	"github.com/nimbusdrive/nimbus-cli/internal/models"
)

// fakeRemote implements Remote with controllable failures.
type fakeRemote struct {
	failDelete  bool
	failRestore bool
	failUpdate  bool
	failPurge   bool
	listing     []models.FileEntry
	updates     []string // ids passed to UpdateFile
}

func (f *fakeRemote) ListFiles(ctx context.Context, kind models.FileKind) ([]models.FileEntry, error) {
	return f.listing, nil
}

func (f *fakeRemote) SoftDeleteFile(ctx context.Context, id string) error {
	if f.failDelete {
		return errors.New("backend unavailable")
	}
	return nil
}

func (f *fakeRemote) PurgeFile(ctx context.Context, id string) error {
	if f.failPurge {
		return errors.New("backend unavailable")
	}
	return nil
}

func (f *fakeRemote) RestoreFile(ctx context.Context, id string) error {
	if f.failRestore {
		return errors.New("backend unavailable")
	}
	return nil
}

func (f *fakeRemote) CreateFolder(ctx context.Context, name, parentPath string) (*models.FileEntry, error) {
	return &models.FileEntry{
		ID:         uuid.NewString(),
		Name:       name,
		IsFolder:   true,
		Kind:       models.KindFolder,
		FolderPath: parentPath,
		CreatedAt:  time.Now(),
	}, nil
}

func (f *fakeRemote) UpdateFile(ctx context.Context, id string, update api.FileUpdate) (*models.FileEntry, error) {
	if f.failUpdate {
		return nil, errors.New("backend unavailable")
	}
	f.updates = append(f.updates, id)
	return &models.FileEntry{ID: id}, nil
}

func testEntry(id, name string) models.FileEntry {
	return models.FileEntry{
		ID:        id,
		Name:      name,
		Kind:      models.KindImage,
		SizeBytes: 1024,
		CreatedAt: time.Now().Add(-time.Hour),
	}
}

func newTestCatalog(remote *fakeRemote, entries ...models.FileEntry) *Catalog {
	c := New(remote, nil, logging.NewDefaultLogger())
	c.ReplaceSnapshot(entries)
	return c
}

func TestSoftDeleteHidesFromListShowsInRecycleBin(t *testing.T) {
	remote := &fakeRemote{}
	c := newTestCatalog(remote, testEntry("f1", "a.jpg"), testEntry("f2", "b.jpg"))

	if err := c.SoftDelete(context.Background(), []string{"f1"}); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	for _, e := range c.List(Filter{}) {
		if e.ID == "f1" {
			t.Error("Deleted entry should not appear in the default listing")
		}
	}

	bin := c.RecycleBin()
	if len(bin) != 1 || bin[0].ID != "f1" {
		t.Fatalf("Expected f1 in recycle bin, got %+v", bin)
	}
	if bin[0].DeletedAt.IsZero() {
		t.Error("DeletedAt should be stamped")
	}
}

func TestSoftDeleteIsIdempotent(t *testing.T) {
	remote := &fakeRemote{}
	c := newTestCatalog(remote, testEntry("f1", "a.jpg"))

	if err := c.SoftDelete(context.Background(), []string{"f1", "f1", "missing"}); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if len(c.RecycleBin()) != 1 {
		t.Errorf("Expected exactly one entry in recycle bin, got %d", len(c.RecycleBin()))
	}
}

func TestSoftDeleteRollsBackOnRemoteFailure(t *testing.T) {
	remote := &fakeRemote{failDelete: true}
	c := newTestCatalog(remote, testEntry("f1", "a.jpg"))

	err := c.SoftDelete(context.Background(), []string{"f1"})
	if err == nil {
		t.Fatal("Expected error when backend rejects the delete")
	}

	entry, ok := c.Get("f1")
	if !ok {
		t.Fatal("Entry disappeared")
	}
	if entry.Deleted {
		t.Error("Local delete should roll back after remote failure")
	}
}

func TestRestoreReturnsEntryToPriorFolder(t *testing.T) {
	remote := &fakeRemote{}
	e := testEntry("f1", "a.jpg")
	e.FolderPath = "photos/2026"
	c := newTestCatalog(remote, e)

	ctx := context.Background()
	if err := c.SoftDelete(ctx, []string{"f1"}); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if err := c.Restore(ctx, []string{"f1"}); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	entry, _ := c.Get("f1")
	if entry.Deleted {
		t.Error("Entry should be active after restore")
	}
	if entry.FolderPath != "photos/2026" {
		t.Errorf("Expected restore to photos/2026, got %q", entry.FolderPath)
	}
	if !entry.DeletedAt.IsZero() {
		t.Error("DeletedAt should be cleared by restore")
	}
}

func TestRestoreNonDeletedIsNoop(t *testing.T) {
	remote := &fakeRemote{failRestore: true}
	c := newTestCatalog(remote, testEntry("f1", "a.jpg"))

	// Entry is active, so the failing remote must never be called.
	if err := c.Restore(context.Background(), []string{"f1"}); err != nil {
		t.Errorf("Restoring an active entry should be a no-op, got %v", err)
	}
}

func TestPermanentDeleteRemovesOutright(t *testing.T) {
	remote := &fakeRemote{}
	c := newTestCatalog(remote, testEntry("f1", "a.jpg"))

	if err := c.PermanentlyDelete(context.Background(), []string{"f1"}); err != nil {
		t.Fatalf("PermanentlyDelete failed: %v", err)
	}
	if _, ok := c.Get("f1"); ok {
		t.Error("Entry should be gone after permanent delete")
	}
	if len(c.RecycleBin()) != 0 {
		t.Error("Purged entry must not appear in the recycle bin")
	}
}

func TestMoveRejectsSelfTarget(t *testing.T) {
	remote := &fakeRemote{}
	folder := testEntry("d1", "docs")
	folder.IsFolder = true
	folder.Kind = models.KindFolder
	c := newTestCatalog(remote, folder, testEntry("f1", "a.jpg"))

	err := c.Move(context.Background(), []string{"f1", "d1"}, "d1")
	if !errors.Is(err, api.ErrInvalidTarget) {
		t.Fatalf("Expected ErrInvalidTarget, got %v", err)
	}

	// Nothing moved, not even the valid id.
	entry, _ := c.Get("f1")
	if entry.ParentID != "" {
		t.Error("No entry should move when the call is rejected")
	}
	if len(remote.updates) != 0 {
		t.Error("Rejected move must not reach the backend")
	}
}

func TestMoveIntoFolderUpdatesPath(t *testing.T) {
	remote := &fakeRemote{}
	folder := testEntry("d1", "docs")
	folder.IsFolder = true
	folder.Kind = models.KindFolder
	c := newTestCatalog(remote, folder, testEntry("f1", "a.jpg"))

	if err := c.Move(context.Background(), []string{"f1"}, "d1"); err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	entry, _ := c.Get("f1")
	if entry.ParentID != "d1" {
		t.Errorf("Expected parent d1, got %q", entry.ParentID)
	}
	if entry.FolderPath != "docs" {
		t.Errorf("Expected folder path docs, got %q", entry.FolderPath)
	}
}

func TestCopyCreatesFreshIDsAndLeavesOriginals(t *testing.T) {
	remote := &fakeRemote{}
	orig := testEntry("f1", "a.jpg")
	orig.IsFavorite = true
	c := newTestCatalog(remote, orig)

	copies, err := c.Copy(context.Background(), []string{"f1"}, "")
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if len(copies) != 1 {
		t.Fatalf("Expected 1 copy, got %d", len(copies))
	}

	dup := copies[0]
	if dup.ID == "f1" {
		t.Error("Copy must carry a fresh id")
	}
	if dup.Name != "a (copy).jpg" {
		t.Errorf("Expected disambiguated name, got %q", dup.Name)
	}
	if dup.IsFavorite {
		t.Error("Copies do not inherit the favorite flag")
	}

	original, _ := c.Get("f1")
	if original.Name != "a.jpg" || !original.IsFavorite {
		t.Errorf("Original should be untouched, got %+v", original)
	}
}

func TestRenameRollsBackOnRemoteFailure(t *testing.T) {
	remote := &fakeRemote{failUpdate: true}
	c := newTestCatalog(remote, testEntry("f1", "a.jpg"))

	if err := c.Rename(context.Background(), "f1", "b.jpg"); err == nil {
		t.Fatal("Expected error when backend rejects the rename")
	}

	entry, _ := c.Get("f1")
	if entry.Name != "a.jpg" {
		t.Errorf("Expected rollback to a.jpg, got %q", entry.Name)
	}
}

func TestRenameUnknownID(t *testing.T) {
	c := newTestCatalog(&fakeRemote{})
	err := c.Rename(context.Background(), "nope", "x")
	if !errors.Is(err, api.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestToggleFavoriteFlips(t *testing.T) {
	remote := &fakeRemote{}
	c := newTestCatalog(remote, testEntry("f1", "a.jpg"))
	ctx := context.Background()

	if err := c.ToggleFavorite(ctx, "f1"); err != nil {
		t.Fatalf("ToggleFavorite failed: %v", err)
	}
	if entry, _ := c.Get("f1"); !entry.IsFavorite {
		t.Error("Expected favorite after first toggle")
	}

	if err := c.ToggleFavorite(ctx, "f1"); err != nil {
		t.Fatalf("Second toggle failed: %v", err)
	}
	if entry, _ := c.Get("f1"); entry.IsFavorite {
		t.Error("Expected not-favorite after second toggle")
	}
}

func TestCreateFolderRejectsDuplicateSibling(t *testing.T) {
	remote := &fakeRemote{}
	c := newTestCatalog(remote)
	ctx := context.Background()

	if _, err := c.CreateFolder(ctx, "docs", ""); err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}
	if _, err := c.CreateFolder(ctx, "docs", ""); !errors.Is(err, api.ErrDuplicateName) {
		t.Fatalf("Expected ErrDuplicateName, got %v", err)
	}

	// Same name under a different parent is fine.
	if _, err := c.CreateFolder(ctx, "docs", "archive"); err != nil {
		t.Errorf("Same name under different parent should succeed: %v", err)
	}
}

func TestRecentActivityWindows(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	fresh := testEntry("new", "new.jpg")
	fresh.CreatedAt = now.Add(-30 * time.Minute)

	openedRecently := testEntry("opened", "opened.jpg")
	openedRecently.CreatedAt = now.Add(-72 * time.Hour)
	openedRecently.OpenedAt = now.Add(-2 * time.Hour)

	stale := testEntry("old", "old.jpg")
	stale.CreatedAt = now.Add(-72 * time.Hour)

	c := newTestCatalog(&fakeRemote{}, fresh, openedRecently, stale)

	recent := c.RecentActivity(now)
	if len(recent) != 2 {
		t.Fatalf("Expected 2 recent entries, got %d", len(recent))
	}
	// Most recent activity first: created 30m ago beats opened 2h ago.
	if recent[0].ID != "new" || recent[1].ID != "opened" {
		t.Errorf("Unexpected order: %s, %s", recent[0].ID, recent[1].ID)
	}
}

func TestGroupByDate(t *testing.T) {
	day1 := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

	a := testEntry("a", "a.jpg")
	a.CreatedAt = day2
	b := testEntry("b", "b.jpg")
	b.CreatedAt = day1
	cEntry := testEntry("c", "c.jpg")
	cEntry.CreatedAt = day2.Add(time.Hour)

	groups := GroupByDate([]models.FileEntry{a, b, cEntry})
	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}
	if groups[0].Label != "Aug 31" {
		t.Errorf("Expected label Aug 31, got %q", groups[0].Label)
	}
	if groups[1].Label != "Aug 30" {
		t.Errorf("Expected label Aug 30, got %q", groups[1].Label)
	}
	// Same-day entries stay in input order.
	if len(groups[0].Entries) != 2 || groups[0].Entries[0].ID != "a" || groups[0].Entries[1].ID != "c" {
		t.Errorf("Unexpected group contents: %+v", groups[0].Entries)
	}
}

func TestReplaceSnapshotCounts(t *testing.T) {
	c := newTestCatalog(&fakeRemote{}, testEntry("f1", "a.jpg"))

	deleted := testEntry("f2", "b.jpg")
	deleted.Deleted = true
	prev, now := c.ReplaceSnapshot([]models.FileEntry{
		testEntry("f1", "a.jpg"),
		deleted,
		testEntry("f3", "c.jpg"),
	})

	if prev != 1 {
		t.Errorf("Expected previous active count 1, got %d", prev)
	}
	if now != 2 {
		t.Errorf("Expected new active count 2 (deleted excluded), got %d", now)
	}
}

func TestReplaceSnapshotPublishesOnlyOnChange(t *testing.T) {
	bus := events.NewEventBus(0)
	defer bus.Close()
	c := New(&fakeRemote{}, bus, logging.NewDefaultLogger())
	sub := bus.Subscribe(events.EventFilesChanged)

	entry := testEntry("f1", "a.jpg")
	c.ReplaceSnapshot([]models.FileEntry{entry})
	select {
	case <-sub:
	case <-time.After(time.Second):
		t.Fatal("Initial population should publish a files-changed event")
	}

	// Identical snapshot, as on a steady-state poll tick.
	c.ReplaceSnapshot([]models.FileEntry{entry})
	select {
	case ev := <-sub:
		t.Fatalf("Unchanged snapshot must not publish, got %v", ev.Type())
	case <-time.After(50 * time.Millisecond):
	}

	renamed := entry
	renamed.Name = "b.jpg"
	c.ReplaceSnapshot([]models.FileEntry{renamed})
	select {
	case <-sub:
	case <-time.After(time.Second):
		t.Fatal("A changed entry should publish a files-changed event")
	}
}

func TestAlbumSkipsDanglingReferences(t *testing.T) {
	remote := &fakeRemote{}
	c := newTestCatalog(remote, testEntry("p1", "a.jpg"), testEntry("p2", "b.jpg"))

	album, err := c.CreateAlbum("holiday", []string{"p1", "p2"})
	if err != nil {
		t.Fatalf("CreateAlbum failed: %v", err)
	}

	if err := c.SoftDelete(context.Background(), []string{"p2"}); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	entries, err := c.AlbumEntries(album.ID)
	if err != nil {
		t.Fatalf("AlbumEntries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "p1" {
		t.Errorf("Expected only p1 to resolve, got %+v", entries)
	}
}

func TestAlbumsSurviveExportImport(t *testing.T) {
	c := newTestCatalog(&fakeRemote{}, testEntry("p1", "a.jpg"), testEntry("p2", "b.jpg"))
	if _, err := c.CreateAlbum("holiday", []string{"p1"}); err != nil {
		t.Fatalf("CreateAlbum failed: %v", err)
	}

	raw, err := c.ExportAlbums()
	if err != nil {
		t.Fatalf("ExportAlbums failed: %v", err)
	}

	// Fresh catalog, as in the next invocation of the tool.
	c2 := newTestCatalog(&fakeRemote{}, testEntry("p1", "a.jpg"), testEntry("p2", "b.jpg"))
	if err := c2.ImportAlbums(raw); err != nil {
		t.Fatalf("ImportAlbums failed: %v", err)
	}

	albums := c2.Albums()
	if len(albums) != 1 || albums[0].Name != "holiday" {
		t.Fatalf("Unexpected albums after import: %+v", albums)
	}
	entries, err := c2.AlbumEntries(albums[0].ID)
	if err != nil {
		t.Fatalf("AlbumEntries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "p1" {
		t.Errorf("Expected member p1 to survive the round trip, got %+v", entries)
	}
	if _, err := c2.CreateAlbum("holiday", nil); err == nil {
		t.Error("Duplicate album name must still be rejected after import")
	}

	if err := c2.DeleteAlbum(albums[0].ID); err != nil {
		t.Fatalf("DeleteAlbum failed: %v", err)
	}
	if raw, _ := c2.ExportAlbums(); raw != "" {
		t.Errorf("Empty album set should export as an empty payload, got %q", raw)
	}
}

func TestListFilterByKindAndFolder(t *testing.T) {
	img := testEntry("i1", "a.jpg")
	img.FolderPath = "photos"
	doc := testEntry("d1", "a.pdf")
	doc.Kind = models.KindDocument
	c := newTestCatalog(&fakeRemote{}, img, doc)

	if got := c.List(Filter{Kind: models.KindDocument}); len(got) != 1 || got[0].ID != "d1" {
		t.Errorf("Kind filter failed: %+v", got)
	}

	photos := "photos"
	if got := c.List(Filter{FolderPath: &photos}); len(got) != 1 || got[0].ID != "i1" {
		t.Errorf("Folder filter failed: %+v", got)
	}
}

func TestMutationErrorsJoinPerID(t *testing.T) {
	remote := &fakeRemote{failDelete: true}
	c := newTestCatalog(remote, testEntry("f1", "a.jpg"), testEntry("f2", "b.jpg"))

	err := c.SoftDelete(context.Background(), []string{"f1", "f2"})
	if err == nil {
		t.Fatal("Expected joined errors")
	}
	for _, id := range []string{"f1", "f2"} {
		if !strings.Contains(err.Error(), id) {
			t.Errorf("Expected error to mention %s: %v", id, err)
		}
	}
}
