package storage

import (
	"time"
	"unicode/utf8"

	"vidshare/internal/models"
)

const maxCategoryNameLength = 50

// ListCategories returns the catalog in creation order.
func (s *Storage) ListCategories() []models.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedRows(s.data.Categories,
		func(c models.Category) time.Time { return c.CreatedAt },
		func(c models.Category) string { return c.ID })
}

func (s *Storage) GetCategory(id string) (models.Category, bool) {
	return getRow(s, func(d *dataset) Table[models.Category] { return d.Categories }, id)
}

// CreateCategory adds a catalog entry. Admins only; the slug is the id and
// must be unique.
func (s *Storage) CreateCategory(actorID, name string) (models.Category, error) {
	trimmed := cleanText(name)
	if trimmed == "" {
		return models.Category{}, invalidf("category name is required")
	}
	if utf8.RuneCountInString(trimmed) > maxCategoryNameLength {
		return models.Category{}, invalidf("category name must be at most %d characters", maxCategoryNameLength)
	}
	slug := slugify(trimmed)
	if slug == "" {
		return models.Category{}, invalidf("category name %q has no usable characters", name)
	}

	var created models.Category
	err := s.mutate("category.create", func(tx *Tx) error {
		actor, err := tx.user(actorID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin {
			return unauthorizedf("user %s is not an admin", actor.ID)
		}
		if _, exists := tx.Categories.Get(slug); exists {
			return conflictf("category %s already exists", slug)
		}
		created = models.Category{ID: slug, Name: trimmed, Slug: slug, CreatedAt: tx.now}
		tx.Categories.Put(slug, created)
		return nil
	})
	return created, err
}
