package storage

import (
	"cmp"
	"maps"
	"slices"
	"time"

	"vidshare/internal/models"
)

// Table is one collection keyed by row id.
type Table[T any] map[string]T

func (t Table[T]) Get(id string) (T, bool) {
	row, ok := t[id]
	return row, ok
}

func (t Table[T]) Put(id string, row T) {
	t[id] = row
}

func (t Table[T]) Delete(id string) {
	delete(t, id)
}

// Filter returns the rows matching pred in unspecified order.
func (t Table[T]) Filter(pred func(T) bool) []T {
	var rows []T
	for _, row := range t {
		if pred == nil || pred(row) {
			rows = append(rows, row)
		}
	}
	return rows
}

type dataset struct {
	Users         Table[models.User]
	Videos        Table[models.Video]
	Comments      Table[models.Comment]
	Reactions     Table[models.Reaction]
	Subscriptions Table[models.Subscription]
	Notifications Table[models.Notification]
	Categories    Table[models.Category]
	Playlists     Table[models.Playlist]
	Progress      Table[models.VideoProgress]
}

func newDataset() dataset {
	return dataset{
		Users:         make(Table[models.User]),
		Videos:        make(Table[models.Video]),
		Comments:      make(Table[models.Comment]),
		Reactions:     make(Table[models.Reaction]),
		Subscriptions: make(Table[models.Subscription]),
		Notifications: make(Table[models.Notification]),
		Categories:    make(Table[models.Category]),
		Playlists:     make(Table[models.Playlist]),
		Progress:      make(Table[models.VideoProgress]),
	}
}

var starterCategories = []string{
	"Music",
	"Gaming",
	"Education",
	"Entertainment",
	"Sports",
	"News",
	"Technology",
	"Comedy",
	"Film & Animation",
	"Science",
}

// seededDataset is the empty store a fresh or unreadable snapshot starts from.
func seededDataset(now time.Time) dataset {
	data := newDataset()
	for i, name := range starterCategories {
		slug := slugify(name)
		data.Categories.Put(slug, models.Category{
			ID:        slug,
			Name:      name,
			Slug:      slug,
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
		})
	}
	return data
}

func cloneTable[T any](src Table[T], copyRow func(T) T) Table[T] {
	if copyRow == nil {
		if src == nil {
			return make(Table[T])
		}
		return maps.Clone(src)
	}
	clone := make(Table[T], len(src))
	for id, row := range src {
		clone[id] = copyRow(row)
	}
	return clone
}

func cloneDataset(src dataset) dataset {
	return dataset{
		Users:         cloneTable(src.Users, nil),
		Videos:        cloneTable(src.Videos, copyVideo),
		Comments:      cloneTable(src.Comments, nil),
		Reactions:     cloneTable(src.Reactions, nil),
		Subscriptions: cloneTable(src.Subscriptions, nil),
		Notifications: cloneTable(src.Notifications, nil),
		Categories:    cloneTable(src.Categories, nil),
		Playlists:     cloneTable(src.Playlists, copyPlaylist),
		Progress:      cloneTable(src.Progress, nil),
	}
}

func copyVideo(v models.Video) models.Video {
	v.Tags = slices.Clone(v.Tags)
	if v.ScheduledAt != nil {
		scheduled := *v.ScheduledAt
		v.ScheduledAt = &scheduled
	}
	if v.PublishedAt != nil {
		published := *v.PublishedAt
		v.PublishedAt = &published
	}
	return v
}

func copyPlaylist(p models.Playlist) models.Playlist {
	p.VideoIDs = slices.Clone(p.VideoIDs)
	return p
}

// sortedRows returns the table's rows ordered by the given timestamp then id.
func sortedRows[T any](t Table[T], stamp func(T) time.Time, id func(T) string) []T {
	rows := slices.Collect(maps.Values(t))
	slices.SortFunc(rows, func(a, b T) int {
		if c := stamp(a).Compare(stamp(b)); c != 0 {
			return c
		}
		return cmp.Compare(id(a), id(b))
	})
	if rows == nil {
		rows = []T{}
	}
	return rows
}
