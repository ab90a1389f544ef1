package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/TheHartAttack/viberates-backend/internal/revision"
	"github.com/TheHartAttack/viberates-backend/internal/slug"
)

// Tag is a canonical tag record.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ResolveTags maps free-text tags to canonical tag ids, creating missing
// tags as it goes. Tags normalizing to the same slug are deduplicated
// within one payload, and creation upserts on the slug's unique index so
// a concurrent resolver cannot double-insert.
func (s *Store) ResolveTags(ctx context.Context, names []string) ([]int64, error) {
	var (
		ids  []int64
		seen = make(map[string]bool)
	)
	for _, name := range names {
		name = strings.TrimSpace(name)
		tagSlug := slug.Make(name)
		if tagSlug == "" || seen[tagSlug] {
			continue
		}
		seen[tagSlug] = true

		var id int64
		err := s.db.QueryRowContext(ctx, `
			INSERT INTO tags (name, slug)
			VALUES ($1, $2)
			ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
			RETURNING id
		`, name, tagSlug).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("resolve tag: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// TagBySlug returns a single tag.
func (s *Store) TagBySlug(ctx context.Context, tagSlug string) (Tag, error) {
	var tag Tag
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug
		FROM tags
		WHERE slug = $1
	`, tagSlug).Scan(&tag.ID, &tag.Name, &tag.Slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tag{}, revision.ErrNotFound
		}
		return Tag{}, fmt.Errorf("select tag: %w", err)
	}
	return tag, nil
}

// tagsByIDs resolves tag records for a set of ids, preserving nothing
// about order; callers map them back by id.
func (s *Store) tagsByIDs(ctx context.Context, ids []int64) (map[int64]Tag, error) {
	tags := make(map[int64]Tag, len(ids))
	if len(ids) == 0 {
		return tags, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, slug
		FROM tags
		WHERE id IN (%s)
	`, strings.Join(placeholders, ", ")), args...)
	if err != nil {
		return nil, fmt.Errorf("select tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Slug); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags[tag.ID] = tag
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}

	return tags, nil
}

// topTagsForAlbum returns the most-used tags across an album's reviews.
func (s *Store) topTagsForAlbum(ctx context.Context, albumID int64, limit int) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.slug
		FROM reviews r,
		     jsonb_array_elements_text(r.tags) AS tag_id
		JOIN tags t ON t.id = tag_id::bigint
		WHERE r.album_id = $1
		GROUP BY t.id
		ORDER BY COUNT(*) DESC, t.id ASC
		LIMIT $2
	`, albumID, limit)
	if err != nil {
		return nil, fmt.Errorf("select album tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Slug); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}

	return tags, nil
}
