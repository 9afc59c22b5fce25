package catalog

import (
	"sort"
	"time"

	"github.com/nimbusdrive/nimbus-cli/internal/constants"
	"github.com/nimbusdrive/nimbus-cli/internal/models"
)

// Filter narrows List results. Zero value matches every active entry.
type Filter struct {
	Kind       models.FileKind
	FolderPath *string
	ParentID   *string
}

// List returns active entries matching the filter, most recent first.
func (c *Catalog) List(filter Filter) []models.FileEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.FileEntry
	for _, id := range c.order {
		e := c.entries[id]
		if e == nil || !e.Active() {
			continue
		}
		if filter.Kind != "" && e.Kind != filter.Kind {
			continue
		}
		if filter.FolderPath != nil && e.FolderPath != *filter.FolderPath {
			continue
		}
		if filter.ParentID != nil && e.ParentID != *filter.ParentID {
			continue
		}
		out = append(out, *e)
	}
	sortByCreatedDesc(out)
	return out
}

// Favorites returns active entries flagged as favorite.
func (c *Catalog) Favorites() []models.FileEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.FileEntry
	for _, id := range c.order {
		e := c.entries[id]
		if e != nil && e.Active() && e.IsFavorite {
			out = append(out, *e)
		}
	}
	sortByCreatedDesc(out)
	return out
}

// RecycleBin returns soft-deleted entries, most recently deleted first.
func (c *Catalog) RecycleBin() []models.FileEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.FileEntry
	for _, id := range c.order {
		e := c.entries[id]
		if e != nil && e.Deleted {
			out = append(out, *e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DeletedAt.After(out[j].DeletedAt)
	})
	return out
}

// RecentActivity returns active entries created within the last two hours
// or opened within the last day, ordered by most recent activity. An entry
// qualifying on both counts appears once.
func (c *Catalog) RecentActivity(now time.Time) []models.FileEntry {
	createdCutoff := now.Add(-constants.RecentCreatedWindow)
	openedCutoff := now.Add(-constants.RecentOpenedWindow)

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.FileEntry
	for _, id := range c.order {
		e := c.entries[id]
		if e == nil || !e.Active() {
			continue
		}
		recent := e.CreatedAt.After(createdCutoff) ||
			(!e.OpenedAt.IsZero() && e.OpenedAt.After(openedCutoff))
		if recent {
			out = append(out, *e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ActivityTime().After(out[j].ActivityTime())
	})
	return out
}

// DateGroup is a run of entries sharing a creation day.
type DateGroup struct {
	Label   string
	Date    time.Time
	Entries []models.FileEntry
}

// GroupByDate buckets entries by calendar day of creation, preserving the
// input order within and across groups. Group labels render as "Jan 2".
func GroupByDate(entries []models.FileEntry) []DateGroup {
	var groups []DateGroup
	index := make(map[string]int)

	for _, e := range entries {
		day := e.CreatedAt.Format("2006-01-02")
		i, ok := index[day]
		if !ok {
			i = len(groups)
			index[day] = i
			y, m, d := e.CreatedAt.Date()
			groups = append(groups, DateGroup{
				Label: e.CreatedAt.Format("Jan 2"),
				Date:  time.Date(y, m, d, 0, 0, 0, 0, e.CreatedAt.Location()),
			})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}
	return groups
}

func sortByCreatedDesc(entries []models.FileEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}
