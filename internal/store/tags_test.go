package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestResolveTagsDeduplicatesWithinPayload(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	s := New(db)

	upsert := regexp.QuoteMeta(`
			INSERT INTO tags (name, slug)
			VALUES ($1, $2)
			ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
			RETURNING id
		`)

	mock.ExpectQuery(upsert).
		WithArgs("Hard Rock", "hard-rock").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(upsert).
		WithArgs("mod", "mod").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))

	// "HARD ROCK" folds to the same slug as "Hard Rock" and must not
	// hit the database again; blank tags are dropped.
	ids, err := s.ResolveTags(context.Background(), []string{"Hard Rock", "HARD ROCK", "mod", "  "})
	if err != nil {
		t.Fatalf("ResolveTags error: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("unexpected ids %v", ids)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
