// Package reviews coordinates the versioned review workflows.
package reviews

import (
	"context"
	"errors"
	"math"

	"github.com/TheHartAttack/viberates-backend/internal/revision"
	"github.com/TheHartAttack/viberates-backend/internal/store"
)

// ErrNotAuthor rejects an edit by anyone but the review's author.
var ErrNotAuthor = errors.New("You do not have permission to perform that action.")

const (
	historyPageSize = 12
	recentPageSize  = 12
)

// Fields aliases the review snapshot type.
type Fields = store.ReviewFields

// Input is a review payload before tag resolution and rating cleanup.
type Input struct {
	Title   string
	Summary string
	Body    string
	Rating  *float64
	Tags    []string
}

// Detail is a review with its comments.
type Detail struct {
	store.ReviewSummary
	Comments []store.Comment `json:"comments"`
}

// Listing is one page of reviews using the fetch-one-extra convention.
type Listing struct {
	Reviews []store.ReviewListItem `json:"reviews"`
	More    bool                   `json:"moreReviews"`
}

// Service coordinates review-related operations.
type Service interface {
	Add(ctx context.Context, artistSlug, albumSlug string, input Input, actor revision.Actor) (revision.RegisterResult[Fields], error)
	Edit(ctx context.Context, reviewID int64, input Input, actor revision.Actor) (revision.EditResult[Fields], error)
	Get(ctx context.Context, reviewID int64) (Detail, error)
	History(ctx context.Context, reviewID int64, offset int) (revision.History[Fields], error)
	Revert(ctx context.Context, editID int64, actor revision.Actor) (revision.RevertResult[Fields], error)
	Recent(ctx context.Context, offset int) (Listing, error)
}

type service struct {
	store   *store.Store
	manager *revision.Manager[Fields]
}

// New constructs a Service backed by the provided Store.
func New(s *store.Store) Service {
	return &service{
		store:   s,
		manager: revision.NewManager[Fields](s.Reviews(), store.ReviewVariant()),
	}
}

// fields resolves tags and cleans the rating: out-of-range values are
// clamped to [0, 10], then floored to an integer.
func (s *service) fields(ctx context.Context, input Input) (Fields, error) {
	tags, err := s.store.ResolveTags(ctx, input.Tags)
	if err != nil {
		return Fields{}, err
	}

	return Fields{
		Title:   input.Title,
		Summary: input.Summary,
		Body:    input.Body,
		Rating:  cleanRating(input.Rating),
		Tags:    tags,
	}, nil
}

// cleanRating clamps to [0, 10] and floors to an integer. A missing
// rating stays missing; validation rejects it downstream.
func cleanRating(r *float64) *int {
	if r == nil {
		return nil
	}
	v := int(math.Floor(math.Min(10, math.Max(0, *r))))
	return &v
}

func (s *service) Add(ctx context.Context, artistSlug, albumSlug string, input Input, actor revision.Actor) (revision.RegisterResult[Fields], error) {
	if err := ctx.Err(); err != nil {
		return revision.RegisterResult[Fields]{}, err
	}
	artist, err := s.store.Artists().Find(ctx, revision.Scope{}, artistSlug)
	if err != nil {
		return revision.RegisterResult[Fields]{}, err
	}
	album, err := s.store.Albums().Find(ctx, revision.Scope{Artist: artist.ID}, albumSlug)
	if err != nil {
		return revision.RegisterResult[Fields]{}, err
	}
	fields, err := s.fields(ctx, input)
	if err != nil {
		return revision.RegisterResult[Fields]{}, err
	}
	scope := revision.Scope{Album: album.ID, Author: actor.ID}
	res, err := s.manager.Register(ctx, fields, actor, scope)
	if err != nil {
		return revision.RegisterResult[Fields]{}, err
	}
	if res.Created {
		res.Message = "Your review has been posted."
	}
	return res, nil
}

func (s *service) Edit(ctx context.Context, reviewID int64, input Input, actor revision.Actor) (revision.EditResult[Fields], error) {
	if err := ctx.Err(); err != nil {
		return revision.EditResult[Fields]{}, err
	}
	target, err := s.store.Reviews().Get(ctx, reviewID)
	if err != nil {
		return revision.EditResult[Fields]{}, err
	}
	if target.Scope.Author != actor.ID {
		return revision.EditResult[Fields]{}, ErrNotAuthor
	}
	fields, err := s.fields(ctx, input)
	if err != nil {
		return revision.EditResult[Fields]{}, err
	}
	res, err := s.manager.Edit(ctx, fields, actor, target)
	if err != nil {
		return revision.EditResult[Fields]{}, err
	}
	if res.Changed {
		res.Message = "Your review has been updated."
	}
	return res, nil
}

func (s *service) Get(ctx context.Context, reviewID int64) (Detail, error) {
	if err := ctx.Err(); err != nil {
		return Detail{}, err
	}
	review, err := s.store.ReviewByID(ctx, reviewID)
	if err != nil {
		return Detail{}, err
	}
	comments, err := s.store.CommentsForReview(ctx, reviewID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{ReviewSummary: review, Comments: comments}, nil
}

func (s *service) History(ctx context.Context, reviewID int64, offset int) (revision.History[Fields], error) {
	if err := ctx.Err(); err != nil {
		return revision.History[Fields]{}, err
	}
	return s.manager.History(ctx, reviewID, offset, historyPageSize)
}

func (s *service) Revert(ctx context.Context, editID int64, actor revision.Actor) (revision.RevertResult[Fields], error) {
	if err := ctx.Err(); err != nil {
		return revision.RevertResult[Fields]{}, err
	}
	return s.manager.Revert(ctx, editID, actor)
}

func (s *service) Recent(ctx context.Context, offset int) (Listing, error) {
	if err := ctx.Err(); err != nil {
		return Listing{}, err
	}
	reviews, err := s.store.RecentReviews(ctx, offset, recentPageSize+1)
	if err != nil {
		return Listing{}, err
	}
	listing := Listing{Reviews: reviews}
	if len(listing.Reviews) > recentPageSize {
		listing.More = true
		listing.Reviews = listing.Reviews[:recentPageSize]
	}
	return listing, nil
}
