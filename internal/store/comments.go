package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/TheHartAttack/viberates-backend/internal/revision"
)

// Comment is a comment on a review.
type Comment struct {
	ID       int64            `json:"id"`
	ReviewID int64            `json:"review"`
	Body     string           `json:"body"`
	Date     time.Time        `json:"date"`
	Author   revision.UserRef `json:"author"`
	Likes    int              `json:"likes"`
}

func validateComment(body string) []string {
	var msgs []string
	if body == "" {
		msgs = append(msgs, "You must provide a comment.")
	}
	if utf8.RuneCountInString(body) > 9999 {
		msgs = append(msgs, "Comment cannot exceed 9999 characters.")
	}
	return msgs
}

// AddComment posts a comment on a review. Users may post at most one
// comment per minute; a throttled attempt reports the seconds left.
func (s *Store) AddComment(ctx context.Context, reviewID int64, body string, author revision.Actor) (Comment, error) {
	body = strings.TrimSpace(body)
	msgs := validateComment(body)

	var last sql.NullTime
	if err := s.db.QueryRowContext(ctx, `
		SELECT MAX(created_at)
		FROM comments
		WHERE author_id = $1
	`, author.ID).Scan(&last); err != nil {
		return Comment{}, fmt.Errorf("check comment throttle: %w", err)
	}
	if last.Valid {
		elapsed := int(math.Ceil(time.Since(last.Time).Seconds()))
		if elapsed < 60 {
			remaining := 60 - elapsed
			unit := "seconds"
			if remaining == 1 {
				unit = "second"
			}
			msgs = append(msgs, fmt.Sprintf("Please wait %d %s before posting another comment.", remaining, unit))
		}
	}

	if len(msgs) > 0 {
		return Comment{}, &revision.ValidationError{Messages: msgs}
	}

	comment := Comment{
		ReviewID: reviewID,
		Body:     body,
		Author:   revision.UserRef{ID: author.ID, Username: author.Username, Slug: author.Slug},
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO comments (review_id, author_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, reviewID, author.ID, body).Scan(&comment.ID, &comment.Date)
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}

	return comment, nil
}

// UpdateComment replaces a comment's body. The author guard lives in
// the service layer.
func (s *Store) UpdateComment(ctx context.Context, commentID int64, body string) (Comment, error) {
	body = strings.TrimSpace(body)
	if msgs := validateComment(body); len(msgs) > 0 {
		return Comment{}, &revision.ValidationError{Messages: msgs}
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE comments
		SET body = $1, updated_at = NOW()
		WHERE id = $2
	`, body, commentID); err != nil {
		return Comment{}, fmt.Errorf("update comment: %w", err)
	}

	return s.CommentByID(ctx, commentID)
}

// CommentByID returns a single comment with its author and like count.
func (s *Store) CommentByID(ctx context.Context, commentID int64) (Comment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.review_id, c.body, c.created_at,
		       u.id, u.username, u.slug,
		       (SELECT COUNT(*) FROM comment_likes l WHERE l.comment_id = c.id)
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.id = $1
	`, commentID)

	var comment Comment
	err := row.Scan(&comment.ID, &comment.ReviewID, &comment.Body, &comment.Date,
		&comment.Author.ID, &comment.Author.Username, &comment.Author.Slug, &comment.Likes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Comment{}, revision.ErrNotFound
		}
		return Comment{}, fmt.Errorf("select comment: %w", err)
	}
	return comment, nil
}

// CommentsForReview lists a review's comments oldest first.
func (s *Store) CommentsForReview(ctx context.Context, reviewID int64) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.review_id, c.body, c.created_at,
		       u.id, u.username, u.slug,
		       (SELECT COUNT(*) FROM comment_likes l WHERE l.comment_id = c.id)
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.review_id = $1
		ORDER BY c.created_at ASC, c.id ASC
	`, reviewID)
	if err != nil {
		return nil, fmt.Errorf("select comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var comment Comment
		err := rows.Scan(&comment.ID, &comment.ReviewID, &comment.Body, &comment.Date,
			&comment.Author.ID, &comment.Author.Username, &comment.Author.Slug, &comment.Likes)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}

	return comments, nil
}
