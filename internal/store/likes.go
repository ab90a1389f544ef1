package store

import (
	"context"
	"fmt"
)

// ToggleReviewLike likes a review for the user, or removes an existing
// like. It returns the resulting state and like count. The unique index
// on (user_id, review_id) keeps concurrent toggles from double-liking.
func (s *Store) ToggleReviewLike(ctx context.Context, userID, reviewID int64) (bool, int, error) {
	return s.toggleLike(ctx, "review_likes", "review_id", userID, reviewID)
}

// ToggleCommentLike likes or unlikes a comment for the user.
func (s *Store) ToggleCommentLike(ctx context.Context, userID, commentID int64) (bool, int, error) {
	return s.toggleLike(ctx, "comment_likes", "comment_id", userID, commentID)
}

func (s *Store) toggleLike(ctx context.Context, table, column string, userID, targetID int64) (bool, int, error) {
	liked := true
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = $1 AND %s = $2
	`, table, column), userID, targetID)
	if err != nil {
		return false, 0, fmt.Errorf("remove like: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		liked = false
	} else {
		_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (user_id, %s)
			VALUES ($1, $2)
			ON CONFLICT (user_id, %s) DO NOTHING
		`, table, column, column), userID, targetID)
		if err != nil {
			return false, 0, fmt.Errorf("insert like: %w", err)
		}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %s
		WHERE %s = $1
	`, table, column), targetID).Scan(&count); err != nil {
		return false, 0, fmt.Errorf("count likes: %w", err)
	}

	return liked, count, nil
}
