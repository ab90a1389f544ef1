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
)

// ReviewFields is the mutable field set of a review, the unit stored in
// review_edits snapshots. Tags holds resolved canonical tag ids.
type ReviewFields struct {
	Title   string  `json:"title"`
	Summary string  `json:"summary"`
	Body    string  `json:"body"`
	Rating  *int    `json:"rating"`
	Tags    []int64 `json:"tags"`
}

// ReviewVariant wires review rules into the shared revision workflow.
// Reviews are keyed by (album, author) rather than a slug, and a
// re-register hands back the author's existing review unchanged.
func ReviewVariant() revision.Variant[ReviewFields] {
	return revision.Variant[ReviewFields]{
		Normalize: func(f ReviewFields) ReviewFields {
			f.Title = strings.TrimSpace(f.Title)
			f.Summary = strings.TrimSpace(f.Summary)
			f.Body = strings.TrimSpace(f.Body)
			return f
		},
		Validate: validateReview,
		Slug: func(ReviewFields) string {
			return ""
		},
		Equal: func(current, next ReviewFields) bool {
			return current.Title == next.Title &&
				current.Summary == next.Summary &&
				current.Body == next.Body &&
				ratingEqual(current.Rating, next.Rating) &&
				slices.Equal(current.Tags, next.Tags)
		},
		Conflict: func(revision.Record[ReviewFields]) string {
			return "You have already reviewed this album."
		},
		ReturnExisting: true,
	}
}

func validateReview(f ReviewFields) []string {
	var msgs []string
	if f.Title == "" {
		msgs = append(msgs, "You must provide a review title.")
	}
	if utf8.RuneCountInString(f.Title) > 128 {
		msgs = append(msgs, "Review title cannot exceed 128 characters.")
	}
	if f.Summary == "" {
		msgs = append(msgs, "You must provide a review summary.")
	}
	if utf8.RuneCountInString(f.Summary) > 256 {
		msgs = append(msgs, "Review summary cannot exceed 256 characters.")
	}
	if utf8.RuneCountInString(f.Body) > 99999 {
		msgs = append(msgs, "Review cannot exceed 99999 characters.")
	}
	if f.Rating == nil {
		msgs = append(msgs, "You must provide a rating.")
	}
	return msgs
}

func ratingEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ReviewOps adapts the store to the revision workflow for reviews.
type ReviewOps struct {
	s *Store
}

// Reviews returns the revision persistence for reviews.
func (s *Store) Reviews() ReviewOps {
	return ReviewOps{s: s}
}

const reviewRecordQuery = `
	SELECT id, album_id, author_id, title, summary, body, rating, tags
	FROM reviews
`

func (o ReviewOps) Find(ctx context.Context, scope revision.Scope, _ string) (revision.Record[ReviewFields], error) {
	row := o.s.db.QueryRowContext(ctx, reviewRecordQuery+`
		WHERE album_id = $1 AND author_id = $2
	`, scope.Album, scope.Author)
	return scanReviewRecord(row)
}

func (o ReviewOps) Get(ctx context.Context, id int64) (revision.Record[ReviewFields], error) {
	row := o.s.db.QueryRowContext(ctx, reviewRecordQuery+`
		WHERE id = $1
	`, id)
	return scanReviewRecord(row)
}

func scanReviewRecord(row *sql.Row) (revision.Record[ReviewFields], error) {
	var (
		rec  revision.Record[ReviewFields]
		tags []byte
	)
	err := row.Scan(&rec.ID, &rec.Scope.Album, &rec.Scope.Author, &rec.Fields.Title, &rec.Fields.Summary, &rec.Fields.Body, &rec.Fields.Rating, &tags)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return revision.Record[ReviewFields]{}, revision.ErrNotFound
		}
		return revision.Record[ReviewFields]{}, fmt.Errorf("select review: %w", err)
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &rec.Fields.Tags); err != nil {
			return revision.Record[ReviewFields]{}, fmt.Errorf("decode review tags: %w", err)
		}
	}
	return rec, nil
}

func (o ReviewOps) Insert(ctx context.Context, scope revision.Scope, _ string, fields ReviewFields, actor revision.Actor) (revision.Record[ReviewFields], revision.Edit[ReviewFields], error) {
	tagsJSON, err := json.Marshal(fields.Tags)
	if err != nil {
		return revision.Record[ReviewFields]{}, revision.Edit[ReviewFields]{}, fmt.Errorf("prepare tags payload: %w", err)
	}

	tx, err := o.s.db.BeginTx(ctx, nil)
	if err != nil {
		return revision.Record[ReviewFields]{}, revision.Edit[ReviewFields]{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO reviews (album_id, author_id, title, summary, body, rating, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
		RETURNING id
	`, scope.Album, scope.Author, fields.Title, fields.Summary, fields.Body, fields.Rating, string(tagsJSON)).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return revision.Record[ReviewFields]{}, revision.Edit[ReviewFields]{}, revision.ErrDuplicate
		}
		return revision.Record[ReviewFields]{}, revision.Edit[ReviewFields]{}, fmt.Errorf("insert review: %w", err)
	}

	edit, err := appendEdit(ctx, tx, reviewEditsTable, id, true, actor, fields)
	if err != nil {
		return revision.Record[ReviewFields]{}, revision.Edit[ReviewFields]{}, err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return revision.Record[ReviewFields]{}, revision.Edit[ReviewFields]{}, revision.ErrDuplicate
		}
		return revision.Record[ReviewFields]{}, revision.Edit[ReviewFields]{}, fmt.Errorf("commit tx: %w", err)
	}
	tx = nil

	return revision.Record[ReviewFields]{ID: id, Scope: scope, Fields: fields}, edit, nil
}

func (o ReviewOps) Update(ctx context.Context, target int64, _ string, fields ReviewFields, actor revision.Actor) (revision.Record[ReviewFields], revision.Edit[ReviewFields], error) {
	tagsJSON, err := json.Marshal(fields.Tags)
	if err != nil {
		return revision.Record[ReviewFields]{}, revision.Edit[ReviewFields]{}, fmt.Errorf("prepare tags payload: %w", err)
	}

	tx, err := o.s.db.BeginTx(ctx, nil)
	if err != nil {
		return revision.Record[ReviewFields]{}, revision.Edit[ReviewFields]{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	var scope revision.Scope
	err = tx.QueryRowContext(ctx, `
		UPDATE reviews
		SET title = $1, summary = $2, body = $3, rating = $4, tags = $5::jsonb, updated_at = NOW()
		WHERE id = $6
		RETURNING album_id, author_id
	`, fields.Title, fields.Summary, fields.Body, fields.Rating, string(tagsJSON), target).Scan(&scope.Album, &scope.Author)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return revision.Record[ReviewFields]{}, revision.Edit[ReviewFields]{}, revision.ErrNotFound
		}
		return revision.Record[ReviewFields]{}, revision.Edit[ReviewFields]{}, fmt.Errorf("update review: %w", err)
	}

	edit, err := appendEdit(ctx, tx, reviewEditsTable, target, false, actor, fields)
	if err != nil {
		return revision.Record[ReviewFields]{}, revision.Edit[ReviewFields]{}, err
	}

	if err := tx.Commit(); err != nil {
		return revision.Record[ReviewFields]{}, revision.Edit[ReviewFields]{}, fmt.Errorf("commit tx: %w", err)
	}
	tx = nil

	return revision.Record[ReviewFields]{ID: target, Scope: scope, Fields: fields}, edit, nil
}

func (o ReviewOps) EditByID(ctx context.Context, id int64) (revision.Edit[ReviewFields], error) {
	return editByID[ReviewFields](ctx, o.s.db, reviewEditsTable, id)
}

func (o ReviewOps) LastEditAt(ctx context.Context, target, userID int64) (time.Time, bool, error) {
	return lastEditAt(ctx, o.s.db, reviewEditsTable, target, userID)
}

func (o ReviewOps) History(ctx context.Context, target int64, offset, limit int) ([]revision.Edit[ReviewFields], error) {
	return editHistory[ReviewFields](ctx, o.s.db, reviewEditsTable, target, offset, limit)
}

// ReviewSummary is a review row for the album page and listings.
type ReviewSummary struct {
	ID      int64            `json:"id"`
	Title   string           `json:"title"`
	Summary string           `json:"summary"`
	Body    string           `json:"body"`
	Rating  int              `json:"rating"`
	Date    time.Time        `json:"date"`
	Author  revision.UserRef `json:"author"`
	Tags    []Tag            `json:"tags"`
	Likes   int              `json:"likes"`
}

// ReviewListItem is a review with its album context, for recent-review
// feeds and user pages.
type ReviewListItem struct {
	ReviewSummary
	Album AlbumSummary `json:"album"`
}

func (s *Store) reviewsForAlbum(ctx context.Context, albumID int64) ([]ReviewSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.title, r.summary, r.body, r.rating, r.created_at, r.tags,
		       u.id, u.username, u.slug,
		       (SELECT COUNT(*) FROM review_likes l WHERE l.review_id = r.id)
		FROM reviews r
		JOIN users u ON u.id = r.author_id
		WHERE r.album_id = $1
		ORDER BY r.created_at DESC, r.id DESC
	`, albumID)
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}
	defer rows.Close()

	return s.collectReviewSummaries(ctx, rows)
}

// ReviewByID returns a single review with author, tags, and like count.
func (s *Store) ReviewByID(ctx context.Context, id int64) (ReviewSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.title, r.summary, r.body, r.rating, r.created_at, r.tags,
		       u.id, u.username, u.slug,
		       (SELECT COUNT(*) FROM review_likes l WHERE l.review_id = r.id)
		FROM reviews r
		JOIN users u ON u.id = r.author_id
		WHERE r.id = $1
	`, id)
	if err != nil {
		return ReviewSummary{}, fmt.Errorf("select review: %w", err)
	}
	defer rows.Close()

	reviews, err := s.collectReviewSummaries(ctx, rows)
	if err != nil {
		return ReviewSummary{}, err
	}
	if len(reviews) == 0 {
		return ReviewSummary{}, revision.ErrNotFound
	}
	return reviews[0], nil
}

// RecentReviews lists the newest reviews site-wide with album context.
func (s *Store) RecentReviews(ctx context.Context, offset, limit int) ([]ReviewListItem, error) {
	return s.listReviewItems(ctx, `
		WHERE a.deleted_by IS NULL
		ORDER BY r.created_at DESC, r.id DESC
		OFFSET $1 LIMIT $2
	`, offset, limit)
}

// ReviewsByUser lists one user's reviews, newest first, with album
// context.
func (s *Store) ReviewsByUser(ctx context.Context, userID int64, offset, limit int) ([]ReviewListItem, error) {
	return s.listReviewItems(ctx, `
		WHERE a.deleted_by IS NULL AND r.author_id = $1
		ORDER BY r.created_at DESC, r.id DESC
		OFFSET $2 LIMIT $3
	`, userID, offset, limit)
}

func (s *Store) listReviewItems(ctx context.Context, clause string, args ...any) ([]ReviewListItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.title, r.summary, r.body, r.rating, r.created_at, r.tags,
		       u.id, u.username, u.slug,
		       (SELECT COUNT(*) FROM review_likes l WHERE l.review_id = r.id),
		       a.id, a.slug, a.title, a.image, a.type, a.release_date,
		       ar.slug, ar.name
		FROM reviews r
		JOIN users u ON u.id = r.author_id
		JOIN albums a ON a.id = r.album_id
		JOIN artists ar ON ar.id = a.artist_id
	`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}
	defer rows.Close()

	var (
		items   []ReviewListItem
		tagRefs [][]int64
	)
	for rows.Next() {
		var (
			item    ReviewListItem
			tags    []byte
			release sql.NullTime
		)
		err := rows.Scan(&item.ID, &item.Title, &item.Summary, &item.Body, &item.Rating, &item.Date, &tags,
			&item.Author.ID, &item.Author.Username, &item.Author.Slug, &item.Likes,
			&item.Album.ID, &item.Album.Slug, &item.Album.Title, &item.Album.Image, &item.Album.Type, &release,
			&item.Album.Artist.Slug, &item.Album.Artist.Name)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		if release.Valid {
			t := release.Time
			item.Album.ReleaseDate = &t
		}
		var ids []int64
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &ids); err != nil {
				return nil, fmt.Errorf("decode review tags: %w", err)
			}
		}
		tagRefs = append(tagRefs, ids)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}

	if err := s.attachTags(ctx, tagRefs, func(i int, tag Tag) {
		items[i].Tags = append(items[i].Tags, tag)
	}); err != nil {
		return nil, err
	}

	return items, nil
}

func (s *Store) collectReviewSummaries(ctx context.Context, rows *sql.Rows) ([]ReviewSummary, error) {
	var (
		reviews []ReviewSummary
		tagRefs [][]int64
	)
	for rows.Next() {
		var (
			review ReviewSummary
			tags   []byte
		)
		err := rows.Scan(&review.ID, &review.Title, &review.Summary, &review.Body, &review.Rating, &review.Date, &tags,
			&review.Author.ID, &review.Author.Username, &review.Author.Slug, &review.Likes)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		var ids []int64
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &ids); err != nil {
				return nil, fmt.Errorf("decode review tags: %w", err)
			}
		}
		tagRefs = append(tagRefs, ids)
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}

	if err := s.attachTags(ctx, tagRefs, func(i int, tag Tag) {
		reviews[i].Tags = append(reviews[i].Tags, tag)
	}); err != nil {
		return nil, err
	}

	return reviews, nil
}

// attachTags resolves tag ids for a batch of reviews in one query and
// hands each resolved tag back to the caller by review index.
func (s *Store) attachTags(ctx context.Context, tagRefs [][]int64, assign func(i int, tag Tag)) error {
	var all []int64
	seen := make(map[int64]bool)
	for _, ids := range tagRefs {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				all = append(all, id)
			}
		}
	}

	tags, err := s.tagsByIDs(ctx, all)
	if err != nil {
		return err
	}

	for i, ids := range tagRefs {
		for _, id := range ids {
			if tag, ok := tags[id]; ok {
				assign(i, tag)
			}
		}
	}
	return nil
}
