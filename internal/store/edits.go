package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TheHartAttack/viberates-backend/internal/revision"
)

// querier is satisfied by both *sql.DB and *sql.Tx so ledger writes can
// join the entity write's transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Ledger table names. Each holds full jsonb snapshots, never deltas.
const (
	artistEditsTable = "artist_edits"
	albumEditsTable  = "album_edits"
	reviewEditsTable = "review_edits"
)

func appendEdit[S any](ctx context.Context, q querier, table string, target int64, initial bool, actor revision.Actor, fields S) (revision.Edit[S], error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return revision.Edit[S]{}, fmt.Errorf("marshal edit snapshot: %w", err)
	}

	var (
		id   int64
		date time.Time
	)
	err = q.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (target_id, user_id, initial, data)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING id, edited_at
	`, table), target, actor.ID, initial, string(data)).Scan(&id, &date)
	if err != nil {
		return revision.Edit[S]{}, fmt.Errorf("insert edit: %w", err)
	}

	return revision.Edit[S]{
		ID:      id,
		Target:  target,
		Date:    date,
		Initial: initial,
		User:    revision.UserRef{ID: actor.ID, Username: actor.Username, Slug: actor.Slug},
		Data:    fields,
	}, nil
}

func editByID[S any](ctx context.Context, q querier, table string, id int64) (revision.Edit[S], error) {
	row := q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT e.id, e.target_id, e.edited_at, e.initial, u.id, u.username, u.slug, e.data
		FROM %s e
		JOIN users u ON u.id = e.user_id
		WHERE e.id = $1
	`, table), id)

	edit, err := scanEdit[S](row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return revision.Edit[S]{}, revision.ErrNotFound
		}
		return revision.Edit[S]{}, err
	}
	return edit, nil
}

func lastEditAt(ctx context.Context, q querier, table string, target, userID int64) (time.Time, bool, error) {
	var at time.Time
	err := q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT edited_at
		FROM %s
		WHERE target_id = $1 AND user_id = $2
		ORDER BY edited_at DESC, id DESC
		LIMIT 1
	`, table), target, userID).Scan(&at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("select last edit: %w", err)
	}
	return at, true, nil
}

func editHistory[S any](ctx context.Context, q querier, table string, target int64, offset, limit int) ([]revision.Edit[S], error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT e.id, e.target_id, e.edited_at, e.initial, u.id, u.username, u.slug, e.data
		FROM %s e
		JOIN users u ON u.id = e.user_id
		WHERE e.target_id = $1
		ORDER BY e.edited_at DESC, e.id DESC
		OFFSET $2 LIMIT $3
	`, table), target, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("select edit history: %w", err)
	}
	defer rows.Close()

	var edits []revision.Edit[S]
	for rows.Next() {
		edit, err := scanEdit[S](rows)
		if err != nil {
			return nil, err
		}
		edits = append(edits, edit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edit history: %w", err)
	}

	return edits, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEdit[S any](row rowScanner) (revision.Edit[S], error) {
	var (
		edit revision.Edit[S]
		data []byte
	)
	if err := row.Scan(&edit.ID, &edit.Target, &edit.Date, &edit.Initial, &edit.User.ID, &edit.User.Username, &edit.User.Slug, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return revision.Edit[S]{}, err
		}
		return revision.Edit[S]{}, fmt.Errorf("scan edit: %w", err)
	}
	if err := json.Unmarshal(data, &edit.Data); err != nil {
		return revision.Edit[S]{}, fmt.Errorf("decode edit snapshot: %w", err)
	}
	return edit, nil
}
