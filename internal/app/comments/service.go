// Package comments coordinates review comments.
package comments

import (
	"context"
	"errors"

	"github.com/TheHartAttack/viberates-backend/internal/revision"
	"github.com/TheHartAttack/viberates-backend/internal/store"
)

// ErrNotAuthor rejects an edit by anyone but the comment's author.
var ErrNotAuthor = errors.New("You do not have permission to perform that action.")

// Result is a posted or updated comment with its outcome message.
type Result struct {
	Comment store.Comment `json:"comment"`
	Changed bool          `json:"changed"`
	Message string        `json:"message"`
}

// Service coordinates comment operations.
type Service interface {
	Add(ctx context.Context, reviewID int64, body string, actor revision.Actor) (Result, error)
	Edit(ctx context.Context, commentID int64, body string, actor revision.Actor) (Result, error)
}

type service struct {
	store *store.Store
}

// New constructs a Service backed by the provided Store.
func New(s *store.Store) Service {
	return &service{store: s}
}

func (s *service) Add(ctx context.Context, reviewID int64, body string, actor revision.Actor) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	comment, err := s.store.AddComment(ctx, reviewID, body, actor)
	if err != nil {
		return Result{}, err
	}
	return Result{Comment: comment, Changed: true, Message: "Your comment has been posted."}, nil
}

func (s *service) Edit(ctx context.Context, commentID int64, body string, actor revision.Actor) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	target, err := s.store.CommentByID(ctx, commentID)
	if err != nil {
		return Result{}, err
	}
	if target.Author.ID != actor.ID {
		return Result{}, ErrNotAuthor
	}

	// An unchanged body is not an error; nothing is written.
	if target.Body == body {
		return Result{Comment: target, Message: "Comment unchanged."}, nil
	}

	comment, err := s.store.UpdateComment(ctx, commentID, body)
	if err != nil {
		return Result{}, err
	}
	return Result{Comment: comment, Changed: true, Message: "Your comment has been updated."}, nil
}
