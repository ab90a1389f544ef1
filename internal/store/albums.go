package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/TheHartAttack/viberates-backend/internal/revision"
	"github.com/TheHartAttack/viberates-backend/internal/slug"
)

// ErrAlbumNotFound signals a missing or deleted album record.
var ErrAlbumNotFound = errors.New("album not found")

var validAlbumTypes = []string{"Studio", "EP", "Live", "Compilation"}

// AlbumFields is the mutable field set of an album, the unit stored in
// album_edits snapshots.
type AlbumFields struct {
	Title       string     `json:"title"`
	Image       string     `json:"image"`
	Label       string     `json:"label"`
	Type        string     `json:"type"`
	ReleaseDate *time.Time `json:"releaseDate"`
	Tracklist   []string   `json:"tracklist"`
}

// AlbumVariant wires album rules into the shared revision workflow. The
// owning artist's name feeds the duplicate message.
func AlbumVariant(artistName string) revision.Variant[AlbumFields] {
	return revision.Variant[AlbumFields]{
		Normalize: func(f AlbumFields) AlbumFields {
			f.Title = strings.TrimSpace(f.Title)
			return f
		},
		Validate: validateAlbum,
		Slug: func(f AlbumFields) string {
			return slug.Make(f.Title)
		},
		Equal: albumEqual,
		Conflict: func(existing revision.Record[AlbumFields]) string {
			return fmt.Sprintf("%s by %s already exists in the database.", existing.Fields.Title, artistName)
		},
	}
}

func validateAlbum(f AlbumFields) []string {
	var msgs []string
	if f.Title == "" {
		msgs = append(msgs, "You must provide an album title.")
	}
	if utf8.RuneCountInString(f.Title) > 256 {
		msgs = append(msgs, "Album title cannot exceed 256 characters.")
	}
	if utf8.RuneCountInString(f.Label) > 256 {
		msgs = append(msgs, "Album label cannot exceed 256 characters.")
	}
	if !slices.Contains(validAlbumTypes, f.Type) {
		msgs = append(msgs, "Invalid album type.")
	}
	return msgs
}

func albumEqual(current, next AlbumFields) bool {
	return current.Title == next.Title &&
		current.Image == next.Image &&
		current.Label == next.Label &&
		current.Type == next.Type &&
		sameDay(current.ReleaseDate, next.ReleaseDate) &&
		slices.Equal(current.Tracklist, next.Tracklist)
}

// sameDay compares release dates by calendar day; the time-of-day part
// is noise from client formatting.
func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// AlbumOps adapts the store to the revision workflow for albums. All
// lookups are scoped to the owning artist and skip soft-deleted rows.
type AlbumOps struct {
	s *Store
}

// Albums returns the revision persistence for albums.
func (s *Store) Albums() AlbumOps {
	return AlbumOps{s: s}
}

const albumRecordQuery = `
	SELECT id, artist_id, slug, title, image, label, type, release_date, tracklist
	FROM albums
`

func (o AlbumOps) Find(ctx context.Context, scope revision.Scope, key string) (revision.Record[AlbumFields], error) {
	row := o.s.db.QueryRowContext(ctx, albumRecordQuery+`
		WHERE artist_id = $1 AND slug = $2 AND deleted_by IS NULL
	`, scope.Artist, key)
	return scanAlbumRecord(row)
}

func (o AlbumOps) Get(ctx context.Context, id int64) (revision.Record[AlbumFields], error) {
	row := o.s.db.QueryRowContext(ctx, albumRecordQuery+`
		WHERE id = $1 AND deleted_by IS NULL
	`, id)
	return scanAlbumRecord(row)
}

func scanAlbumRecord(row *sql.Row) (revision.Record[AlbumFields], error) {
	var (
		rec       revision.Record[AlbumFields]
		release   sql.NullTime
		tracklist []byte
	)
	err := row.Scan(&rec.ID, &rec.Scope.Artist, &rec.Slug, &rec.Fields.Title, &rec.Fields.Image, &rec.Fields.Label, &rec.Fields.Type, &release, &tracklist)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return revision.Record[AlbumFields]{}, revision.ErrNotFound
		}
		return revision.Record[AlbumFields]{}, fmt.Errorf("select album: %w", err)
	}
	if release.Valid {
		t := release.Time
		rec.Fields.ReleaseDate = &t
	}
	if len(tracklist) > 0 {
		if err := json.Unmarshal(tracklist, &rec.Fields.Tracklist); err != nil {
			return revision.Record[AlbumFields]{}, fmt.Errorf("decode tracklist: %w", err)
		}
	}
	return rec, nil
}

func (o AlbumOps) Insert(ctx context.Context, scope revision.Scope, key string, fields AlbumFields, actor revision.Actor) (revision.Record[AlbumFields], revision.Edit[AlbumFields], error) {
	tracksJSON, err := json.Marshal(fields.Tracklist)
	if err != nil {
		return revision.Record[AlbumFields]{}, revision.Edit[AlbumFields]{}, fmt.Errorf("prepare tracklist payload: %w", err)
	}

	tx, err := o.s.db.BeginTx(ctx, nil)
	if err != nil {
		return revision.Record[AlbumFields]{}, revision.Edit[AlbumFields]{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO albums (artist_id, slug, title, image, label, type, release_date, tracklist)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
		RETURNING id
	`, scope.Artist, key, fields.Title, fields.Image, fields.Label, fields.Type, fields.ReleaseDate, string(tracksJSON)).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return revision.Record[AlbumFields]{}, revision.Edit[AlbumFields]{}, revision.ErrDuplicate
		}
		return revision.Record[AlbumFields]{}, revision.Edit[AlbumFields]{}, fmt.Errorf("insert album: %w", err)
	}

	edit, err := appendEdit(ctx, tx, albumEditsTable, id, true, actor, fields)
	if err != nil {
		return revision.Record[AlbumFields]{}, revision.Edit[AlbumFields]{}, err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return revision.Record[AlbumFields]{}, revision.Edit[AlbumFields]{}, revision.ErrDuplicate
		}
		return revision.Record[AlbumFields]{}, revision.Edit[AlbumFields]{}, fmt.Errorf("commit tx: %w", err)
	}
	tx = nil

	return revision.Record[AlbumFields]{ID: id, Slug: key, Scope: scope, Fields: fields}, edit, nil
}

func (o AlbumOps) Update(ctx context.Context, target int64, key string, fields AlbumFields, actor revision.Actor) (revision.Record[AlbumFields], revision.Edit[AlbumFields], error) {
	tracksJSON, err := json.Marshal(fields.Tracklist)
	if err != nil {
		return revision.Record[AlbumFields]{}, revision.Edit[AlbumFields]{}, fmt.Errorf("prepare tracklist payload: %w", err)
	}

	tx, err := o.s.db.BeginTx(ctx, nil)
	if err != nil {
		return revision.Record[AlbumFields]{}, revision.Edit[AlbumFields]{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	var artistID int64
	err = tx.QueryRowContext(ctx, `
		UPDATE albums
		SET slug = $1, title = $2, image = $3, label = $4, type = $5, release_date = $6, tracklist = $7::jsonb, updated_at = NOW()
		WHERE id = $8 AND deleted_by IS NULL
		RETURNING artist_id
	`, key, fields.Title, fields.Image, fields.Label, fields.Type, fields.ReleaseDate, string(tracksJSON), target).Scan(&artistID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return revision.Record[AlbumFields]{}, revision.Edit[AlbumFields]{}, revision.ErrNotFound
		}
		if isUniqueViolation(err) {
			return revision.Record[AlbumFields]{}, revision.Edit[AlbumFields]{}, revision.ErrDuplicate
		}
		return revision.Record[AlbumFields]{}, revision.Edit[AlbumFields]{}, fmt.Errorf("update album: %w", err)
	}

	edit, err := appendEdit(ctx, tx, albumEditsTable, target, false, actor, fields)
	if err != nil {
		return revision.Record[AlbumFields]{}, revision.Edit[AlbumFields]{}, err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return revision.Record[AlbumFields]{}, revision.Edit[AlbumFields]{}, revision.ErrDuplicate
		}
		return revision.Record[AlbumFields]{}, revision.Edit[AlbumFields]{}, fmt.Errorf("commit tx: %w", err)
	}
	tx = nil

	return revision.Record[AlbumFields]{ID: target, Slug: key, Scope: revision.Scope{Artist: artistID}, Fields: fields}, edit, nil
}

func (o AlbumOps) EditByID(ctx context.Context, id int64) (revision.Edit[AlbumFields], error) {
	return editByID[AlbumFields](ctx, o.s.db, albumEditsTable, id)
}

func (o AlbumOps) LastEditAt(ctx context.Context, target, userID int64) (time.Time, bool, error) {
	return lastEditAt(ctx, o.s.db, albumEditsTable, target, userID)
}

func (o AlbumOps) History(ctx context.Context, target int64, offset, limit int) ([]revision.Edit[AlbumFields], error) {
	return editHistory[AlbumFields](ctx, o.s.db, albumEditsTable, target, offset, limit)
}

// DeleteAlbum soft-deletes an album, recording who removed it. Deleted
// albums drop out of duplicate scope and all reads.
func (s *Store) DeleteAlbum(ctx context.Context, albumID, userID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE albums
		SET deleted_by = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_by IS NULL
	`, userID, albumID)
	if err != nil {
		return fmt.Errorf("delete album: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAlbumNotFound
	}
	return nil
}

// ArtistRef is the owning-artist summary attached to album listings.
type ArtistRef struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// AlbumSummary is an album row for listings: artist page, new releases,
// search results.
type AlbumSummary struct {
	ID          int64      `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Image       string     `json:"image"`
	Type        string     `json:"type"`
	ReleaseDate *time.Time `json:"releaseDate"`
	Artist      ArtistRef  `json:"artist"`
	Rating      *float64   `json:"rating"`
}

// AlbumPage is the full album detail: fields, owning artist, reviews,
// and the three most-used tags across its reviews.
type AlbumPage struct {
	ID          int64           `json:"id"`
	Slug        string          `json:"slug"`
	Title       string          `json:"title"`
	Image       string          `json:"image"`
	Label       string          `json:"label"`
	Type        string          `json:"type"`
	ReleaseDate *time.Time      `json:"releaseDate"`
	Tracklist   []string        `json:"tracklist"`
	Artist      ArtistRef       `json:"artist"`
	Rating      *float64        `json:"rating"`
	Reviews     []ReviewSummary `json:"reviews"`
	Tags        []Tag           `json:"tags"`
}

// AlbumBySlug returns the album detail for a (artist slug, album slug)
// pair, reviews newest first.
func (s *Store) AlbumBySlug(ctx context.Context, artistSlug, albumSlug string) (AlbumPage, error) {
	var (
		page      AlbumPage
		release   sql.NullTime
		tracklist []byte
		rating    sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.slug, a.title, a.image, a.label, a.type, a.release_date, a.tracklist,
		       ar.slug, ar.name,
		       (SELECT TRUNC(AVG(r.rating)::numeric, 1) FROM reviews r WHERE r.album_id = a.id)
		FROM albums a
		JOIN artists ar ON ar.id = a.artist_id
		WHERE ar.slug = $1 AND a.slug = $2 AND a.deleted_by IS NULL
	`, artistSlug, albumSlug).Scan(&page.ID, &page.Slug, &page.Title, &page.Image, &page.Label, &page.Type, &release, &tracklist, &page.Artist.Slug, &page.Artist.Name, &rating)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AlbumPage{}, ErrAlbumNotFound
		}
		return AlbumPage{}, fmt.Errorf("select album: %w", err)
	}
	if release.Valid {
		t := release.Time
		page.ReleaseDate = &t
	}
	if len(tracklist) > 0 {
		if err := json.Unmarshal(tracklist, &page.Tracklist); err != nil {
			return AlbumPage{}, fmt.Errorf("decode tracklist: %w", err)
		}
	}
	if rating.Valid {
		page.Rating = &rating.Float64
	}

	reviews, err := s.reviewsForAlbum(ctx, page.ID)
	if err != nil {
		return AlbumPage{}, err
	}
	page.Reviews = reviews

	tags, err := s.topTagsForAlbum(ctx, page.ID, 3)
	if err != nil {
		return AlbumPage{}, err
	}
	page.Tags = tags

	return page, nil
}

// NewReleases lists non-deleted albums already released, newest first.
func (s *Store) NewReleases(ctx context.Context, offset, limit int) ([]AlbumSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.slug, a.title, a.image, a.type, a.release_date,
		       ar.slug, ar.name,
		       TRUNC(AVG(r.rating)::numeric, 1)
		FROM albums a
		JOIN artists ar ON ar.id = a.artist_id
		LEFT JOIN reviews r ON r.album_id = a.id
		WHERE a.release_date <= NOW() AND a.deleted_by IS NULL
		GROUP BY a.id, ar.id
		ORDER BY a.release_date DESC, a.id ASC
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("select new releases: %w", err)
	}
	defer rows.Close()

	return scanAlbumSummaries(rows)
}

// SearchAlbums matches album titles and artist names case-insensitively.
func (s *Store) SearchAlbums(ctx context.Context, term string) ([]AlbumSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.slug, a.title, a.image, a.type, a.release_date,
		       ar.slug, ar.name,
		       TRUNC(AVG(r.rating)::numeric, 1)
		FROM albums a
		JOIN artists ar ON ar.id = a.artist_id
		LEFT JOIN reviews r ON r.album_id = a.id
		WHERE (a.title ILIKE $1 OR ar.name ILIKE $1) AND a.deleted_by IS NULL
		GROUP BY a.id, ar.id
		ORDER BY a.title ASC
	`, "%"+term+"%")
	if err != nil {
		return nil, fmt.Errorf("search albums: %w", err)
	}
	defer rows.Close()

	return scanAlbumSummaries(rows)
}

func scanAlbumSummaries(rows *sql.Rows) ([]AlbumSummary, error) {
	var albums []AlbumSummary
	for rows.Next() {
		var (
			album   AlbumSummary
			release sql.NullTime
			rating  sql.NullFloat64
		)
		if err := rows.Scan(&album.ID, &album.Slug, &album.Title, &album.Image, &album.Type, &release, &album.Artist.Slug, &album.Artist.Name, &rating); err != nil {
			return nil, fmt.Errorf("scan album: %w", err)
		}
		if release.Valid {
			t := release.Time
			album.ReleaseDate = &t
		}
		if rating.Valid {
			album.Rating = &rating.Float64
		}
		albums = append(albums, album)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate albums: %w", err)
	}
	return albums, nil
}
