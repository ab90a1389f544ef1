package store

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/TheHartAttack/viberates-backend/internal/revision"
)

func TestValidateReview(t *testing.T) {
	seven := 7

	tests := []struct {
		name   string
		fields ReviewFields
		want   []string
	}{
		{
			name: "valid",
			fields: ReviewFields{
				Title:   "A masterpiece",
				Summary: "Still holds up.",
				Body:    "Every track earns its place.",
				Rating:  &seven,
			},
			want: nil,
		},
		{
			name:   "missing everything",
			fields: ReviewFields{},
			want: []string{
				"You must provide a review title.",
				"You must provide a review summary.",
				"You must provide a rating.",
			},
		},
		{
			name: "missing rating only",
			fields: ReviewFields{
				Title:   "A masterpiece",
				Summary: "Still holds up.",
			},
			want: []string{"You must provide a rating."},
		},
		{
			name: "body too long",
			fields: ReviewFields{
				Title:   "A masterpiece",
				Summary: "Still holds up.",
				Body:    strings.Repeat("a", 100000),
				Rating:  &seven,
			},
			want: []string{"Review cannot exceed 99999 characters."},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := validateReview(tc.fields)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("message %d: got %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestReviewVariantReturnsExistingOnDuplicate(t *testing.T) {
	v := ReviewVariant()
	if !v.ReturnExisting {
		t.Fatal("expected duplicate registers to hand back the existing review")
	}
	msg := v.Conflict(revision.Record[ReviewFields]{})
	if msg != "You have already reviewed this album." {
		t.Fatalf("unexpected conflict message %q", msg)
	}
}

func TestReviewVariantEqual(t *testing.T) {
	v := ReviewVariant()
	seven, eight := 7, 8

	base := ReviewFields{
		Title:   "A masterpiece",
		Summary: "Still holds up.",
		Body:    "Every track earns its place.",
		Rating:  &seven,
		Tags:    []int64{1, 2},
	}

	if !v.Equal(base, base) {
		t.Fatal("expected identical fields to compare equal")
	}

	changed := base
	changed.Rating = &eight
	if v.Equal(base, changed) {
		t.Fatal("expected rating change to compare unequal")
	}

	reordered := base
	reordered.Tags = []int64{2, 1}
	if v.Equal(base, reordered) {
		t.Fatal("expected tag order change to compare unequal")
	}

	missing := base
	missing.Rating = nil
	if v.Equal(base, missing) {
		t.Fatal("expected missing rating to compare unequal")
	}
}

func TestReviewUpdateWritesEntityAndLedgerInOneTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	ops := New(db).Reviews()

	seven := 7
	fields := ReviewFields{
		Title:   "A masterpiece",
		Summary: "Still holds up.",
		Body:    "Every track earns its place.",
		Rating:  &seven,
		Tags:    []int64{1, 2},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`
		UPDATE reviews
		SET title = $1, summary = $2, body = $3, rating = $4, tags = $5::jsonb, updated_at = NOW()
		WHERE id = $6
		RETURNING album_id, author_id
	`)).
		WithArgs("A masterpiece", "Still holds up.", "Every track earns its place.", int64(7), `[1,2]`, int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"album_id", "author_id"}).AddRow(int64(4), int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta(`
		INSERT INTO review_edits (target_id, user_id, initial, data)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING id, edited_at
	`)).
		WithArgs(int64(12), int64(3), false, `{"title":"A masterpiece","summary":"Still holds up.","body":"Every track earns its place.","rating":7,"tags":[1,2]}`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "edited_at"}).AddRow(int64(44), time.Now()))
	mock.ExpectCommit()

	actor := revision.Actor{ID: 3, Username: "alice", Slug: "alice"}
	rec, edit, err := ops.Update(context.Background(), 12, "", fields, actor)
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if rec.ID != 12 || rec.Scope.Album != 4 || rec.Scope.Author != 3 {
		t.Fatalf("unexpected record %#v", rec)
	}
	if edit.ID != 44 || edit.Initial {
		t.Fatalf("unexpected edit %#v", edit)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
