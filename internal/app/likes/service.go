// Package likes coordinates review and comment likes.
package likes

import (
	"context"

	"github.com/TheHartAttack/viberates-backend/internal/store"
)

// Result reports the state after a like toggle.
type Result struct {
	Liked bool `json:"liked"`
	Count int  `json:"likes"`
}

// Service coordinates like toggles.
type Service interface {
	ToggleReview(ctx context.Context, userID, reviewID int64) (Result, error)
	ToggleComment(ctx context.Context, userID, commentID int64) (Result, error)
}

type service struct {
	store *store.Store
}

// New constructs a Service backed by the provided Store.
func New(s *store.Store) Service {
	return &service{store: s}
}

func (s *service) ToggleReview(ctx context.Context, userID, reviewID int64) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	liked, count, err := s.store.ToggleReviewLike(ctx, userID, reviewID)
	if err != nil {
		return Result{}, err
	}
	return Result{Liked: liked, Count: count}, nil
}

func (s *service) ToggleComment(ctx context.Context, userID, commentID int64) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	liked, count, err := s.store.ToggleCommentLike(ctx, userID, commentID)
	if err != nil {
		return Result{}, err
	}
	return Result{Liked: liked, Count: count}, nil
}
