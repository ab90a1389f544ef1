package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/TheHartAttack/viberates-backend/internal/revision"
)

func TestValidateArtist(t *testing.T) {
	tests := []struct {
		name   string
		fields ArtistFields
		want   []string
	}{
		{
			name:   "valid artist",
			fields: ArtistFields{Name: "The Who", Image: "who.jpg"},
		},
		{
			name:   "missing name",
			fields: ArtistFields{},
			want:   []string{"You must provide an artist name."},
		},
		{
			name:   "name too long",
			fields: ArtistFields{Name: longString(257)},
			want:   []string{"Artist name cannot exceed 256 characters."},
		},
		{
			name:   "multibyte name counts characters not bytes",
			fields: ArtistFields{Name: strings.Repeat("é", 200)},
		},
		{
			name:   "multibyte name too long",
			fields: ArtistFields{Name: strings.Repeat("é", 257)},
			want:   []string{"Artist name cannot exceed 256 characters."},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := validateArtist(tc.fields)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestArtistVariantSlug(t *testing.T) {
	variant := ArtistVariant()
	got := variant.Slug(ArtistFields{Name: "Sigur Rós"})
	if got != "sigur-ros" {
		t.Fatalf("slug = %q, want %q", got, "sigur-ros")
	}
}

func TestArtistInsertWritesEntityAndLedgerInOneTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	ops := New(db).Artists()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`
		INSERT INTO artists (slug, name, image)
		VALUES ($1, $2, $3)
		RETURNING id
	`)).
		WithArgs("the-who", "The Who", "who.jpg").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery(regexp.QuoteMeta(`
		INSERT INTO artist_edits (target_id, user_id, initial, data)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING id, edited_at
	`)).
		WithArgs(int64(7), int64(3), true, `{"name":"The Who","image":"who.jpg"}`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "edited_at"}).AddRow(int64(21), time.Now()))
	mock.ExpectCommit()

	actor := revision.Actor{ID: 3, Username: "alice", Slug: "alice"}
	rec, edit, err := ops.Insert(context.Background(), revision.Scope{}, "the-who", ArtistFields{Name: "The Who", Image: "who.jpg"}, actor)
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if rec.ID != 7 || rec.Slug != "the-who" {
		t.Fatalf("unexpected record %#v", rec)
	}
	if edit.ID != 21 || !edit.Initial || edit.User.Username != "alice" {
		t.Fatalf("unexpected edit %#v", edit)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestArtistUpdateWritesEntityAndLedgerInOneTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	ops := New(db).Artists()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE artists
		SET slug = $1, name = $2, image = $3, updated_at = NOW()
		WHERE id = $4
	`)).
		WithArgs("the-who", "The Who", "who-live.jpg", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`
		INSERT INTO artist_edits (target_id, user_id, initial, data)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING id, edited_at
	`)).
		WithArgs(int64(7), int64(3), false, `{"name":"The Who","image":"who-live.jpg"}`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "edited_at"}).AddRow(int64(22), time.Now()))
	mock.ExpectCommit()

	actor := revision.Actor{ID: 3, Username: "alice", Slug: "alice"}
	rec, edit, err := ops.Update(context.Background(), 7, "the-who", ArtistFields{Name: "The Who", Image: "who-live.jpg"}, actor)
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if rec.ID != 7 || rec.Fields.Image != "who-live.jpg" {
		t.Fatalf("unexpected record %#v", rec)
	}
	if edit.ID != 22 || edit.Initial {
		t.Fatalf("unexpected edit %#v", edit)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestArtistUpdateMissingTarget(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	ops := New(db).Artists()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE artists
		SET slug = $1, name = $2, image = $3, updated_at = NOW()
		WHERE id = $4
	`)).
		WithArgs("the-who", "The Who", "", int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, _, err = ops.Update(context.Background(), 99, "the-who", ArtistFields{Name: "The Who"}, revision.Actor{ID: 3})
	if !errors.Is(err, revision.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestArtistInsertUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	ops := New(db).Artists()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`
		INSERT INTO artists (slug, name, image)
		VALUES ($1, $2, $3)
		RETURNING id
	`)).
		WithArgs("the-who", "The Who", "").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, _, err = ops.Insert(context.Background(), revision.Scope{}, "the-who", ArtistFields{Name: "The Who"}, revision.Actor{ID: 3})
	if !errors.Is(err, revision.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestArtistFindMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	ops := New(db).Artists()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, slug, name, image
		FROM artists
		WHERE slug = $1
	`)).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "name", "image"}))

	_, err = ops.Find(context.Background(), revision.Scope{}, "nobody")
	if !errors.Is(err, revision.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestArtistHistoryOrdersNewestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	ops := New(db).Artists()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "target_id", "edited_at", "initial", "id", "username", "slug", "data"}).
		AddRow(int64(5), int64(7), now, false, int64(3), "alice", "alice", `{"name":"The Who Band","image":""}`).
		AddRow(int64(4), int64(7), now.Add(-time.Hour), true, int64(3), "alice", "alice", `{"name":"The Who","image":""}`)

	mock.ExpectQuery(`(?s)SELECT .+ FROM artist_edits e`).
		WithArgs(int64(7), 0, 13).
		WillReturnRows(rows)

	edits, err := ops.History(context.Background(), 7, 0, 13)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(edits) != 2 {
		t.Fatalf("expected 2 edits, got %d", len(edits))
	}
	if edits[0].Data.Name != "The Who Band" || edits[1].Data.Name != "The Who" {
		t.Fatalf("unexpected order: %#v", edits)
	}
	if !edits[1].Initial {
		t.Fatal("oldest entry should be the initial one")
	}
}

func longString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}
