package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/TheHartAttack/viberates-backend/internal/revision"
	"github.com/TheHartAttack/viberates-backend/internal/slug"
)

// ArtistFields is the mutable field set of an artist, the unit stored in
// artist_edits snapshots.
type ArtistFields struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// ArtistVariant wires artist rules into the shared revision workflow.
func ArtistVariant() revision.Variant[ArtistFields] {
	return revision.Variant[ArtistFields]{
		Normalize: func(f ArtistFields) ArtistFields {
			f.Name = strings.TrimSpace(f.Name)
			return f
		},
		Validate: validateArtist,
		Slug: func(f ArtistFields) string {
			return slug.Make(f.Name)
		},
		Equal: func(current, next ArtistFields) bool {
			return current == next
		},
		Conflict: func(existing revision.Record[ArtistFields]) string {
			return fmt.Sprintf("The database already contains an artist called %s.", existing.Fields.Name)
		},
	}
}

func validateArtist(f ArtistFields) []string {
	var msgs []string
	if f.Name == "" {
		msgs = append(msgs, "You must provide an artist name.")
	}
	if utf8.RuneCountInString(f.Name) > 256 {
		msgs = append(msgs, "Artist name cannot exceed 256 characters.")
	}
	return msgs
}

// ArtistOps adapts the store to the revision workflow for artists.
type ArtistOps struct {
	s *Store
}

// Artists returns the revision persistence for artists.
func (s *Store) Artists() ArtistOps {
	return ArtistOps{s: s}
}

func (o ArtistOps) Find(ctx context.Context, _ revision.Scope, key string) (revision.Record[ArtistFields], error) {
	row := o.s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, image
		FROM artists
		WHERE slug = $1
	`, key)

	var rec revision.Record[ArtistFields]
	if err := row.Scan(&rec.ID, &rec.Slug, &rec.Fields.Name, &rec.Fields.Image); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return revision.Record[ArtistFields]{}, revision.ErrNotFound
		}
		return revision.Record[ArtistFields]{}, fmt.Errorf("select artist: %w", err)
	}
	return rec, nil
}

func (o ArtistOps) Get(ctx context.Context, id int64) (revision.Record[ArtistFields], error) {
	row := o.s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, image
		FROM artists
		WHERE id = $1
	`, id)

	var rec revision.Record[ArtistFields]
	if err := row.Scan(&rec.ID, &rec.Slug, &rec.Fields.Name, &rec.Fields.Image); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return revision.Record[ArtistFields]{}, revision.ErrNotFound
		}
		return revision.Record[ArtistFields]{}, fmt.Errorf("select artist: %w", err)
	}
	return rec, nil
}

func (o ArtistOps) Insert(ctx context.Context, _ revision.Scope, key string, fields ArtistFields, actor revision.Actor) (revision.Record[ArtistFields], revision.Edit[ArtistFields], error) {
	tx, err := o.s.db.BeginTx(ctx, nil)
	if err != nil {
		return revision.Record[ArtistFields]{}, revision.Edit[ArtistFields]{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO artists (slug, name, image)
		VALUES ($1, $2, $3)
		RETURNING id
	`, key, fields.Name, fields.Image).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return revision.Record[ArtistFields]{}, revision.Edit[ArtistFields]{}, revision.ErrDuplicate
		}
		return revision.Record[ArtistFields]{}, revision.Edit[ArtistFields]{}, fmt.Errorf("insert artist: %w", err)
	}

	edit, err := appendEdit(ctx, tx, artistEditsTable, id, true, actor, fields)
	if err != nil {
		return revision.Record[ArtistFields]{}, revision.Edit[ArtistFields]{}, err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return revision.Record[ArtistFields]{}, revision.Edit[ArtistFields]{}, revision.ErrDuplicate
		}
		return revision.Record[ArtistFields]{}, revision.Edit[ArtistFields]{}, fmt.Errorf("commit tx: %w", err)
	}
	tx = nil

	return revision.Record[ArtistFields]{ID: id, Slug: key, Fields: fields}, edit, nil
}

func (o ArtistOps) Update(ctx context.Context, target int64, key string, fields ArtistFields, actor revision.Actor) (revision.Record[ArtistFields], revision.Edit[ArtistFields], error) {
	tx, err := o.s.db.BeginTx(ctx, nil)
	if err != nil {
		return revision.Record[ArtistFields]{}, revision.Edit[ArtistFields]{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE artists
		SET slug = $1, name = $2, image = $3, updated_at = NOW()
		WHERE id = $4
	`, key, fields.Name, fields.Image, target)
	if err != nil {
		if isUniqueViolation(err) {
			return revision.Record[ArtistFields]{}, revision.Edit[ArtistFields]{}, revision.ErrDuplicate
		}
		return revision.Record[ArtistFields]{}, revision.Edit[ArtistFields]{}, fmt.Errorf("update artist: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return revision.Record[ArtistFields]{}, revision.Edit[ArtistFields]{}, revision.ErrNotFound
	}

	edit, err := appendEdit(ctx, tx, artistEditsTable, target, false, actor, fields)
	if err != nil {
		return revision.Record[ArtistFields]{}, revision.Edit[ArtistFields]{}, err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return revision.Record[ArtistFields]{}, revision.Edit[ArtistFields]{}, revision.ErrDuplicate
		}
		return revision.Record[ArtistFields]{}, revision.Edit[ArtistFields]{}, fmt.Errorf("commit tx: %w", err)
	}
	tx = nil

	return revision.Record[ArtistFields]{ID: target, Slug: key, Fields: fields}, edit, nil
}

func (o ArtistOps) EditByID(ctx context.Context, id int64) (revision.Edit[ArtistFields], error) {
	return editByID[ArtistFields](ctx, o.s.db, artistEditsTable, id)
}

func (o ArtistOps) LastEditAt(ctx context.Context, target, userID int64) (time.Time, bool, error) {
	return lastEditAt(ctx, o.s.db, artistEditsTable, target, userID)
}

func (o ArtistOps) History(ctx context.Context, target int64, offset, limit int) ([]revision.Edit[ArtistFields], error) {
	return editHistory[ArtistFields](ctx, o.s.db, artistEditsTable, target, offset, limit)
}

// ArtistPage is an artist with its album listing, as served by the
// artist detail endpoint.
type ArtistPage struct {
	ID     int64          `json:"id"`
	Slug   string         `json:"slug"`
	Name   string         `json:"name"`
	Image  string         `json:"image"`
	Albums []AlbumSummary `json:"albums"`
}

// ArtistBySlug returns the artist and its non-deleted albums with their
// average review ratings, newest release first.
func (s *Store) ArtistBySlug(ctx context.Context, artistSlug string) (ArtistPage, error) {
	var page ArtistPage
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, image
		FROM artists
		WHERE slug = $1
	`, artistSlug).Scan(&page.ID, &page.Slug, &page.Name, &page.Image)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ArtistPage{}, revision.ErrNotFound
		}
		return ArtistPage{}, fmt.Errorf("select artist: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.slug, a.title, a.image, a.type, a.release_date,
		       ar.slug, ar.name,
		       TRUNC(AVG(r.rating)::numeric, 1)
		FROM albums a
		JOIN artists ar ON ar.id = a.artist_id
		LEFT JOIN reviews r ON r.album_id = a.id
		WHERE a.artist_id = $1 AND a.deleted_by IS NULL
		GROUP BY a.id, ar.id
		ORDER BY a.release_date DESC, a.id ASC
	`, page.ID)
	if err != nil {
		return ArtistPage{}, fmt.Errorf("select albums: %w", err)
	}
	defer rows.Close()

	albums, err := scanAlbumSummaries(rows)
	if err != nil {
		return ArtistPage{}, err
	}
	page.Albums = albums

	return page, nil
}
