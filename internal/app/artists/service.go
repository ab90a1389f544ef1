// Package artists coordinates the versioned artist workflows.
package artists

import (
	"context"
	"fmt"

	"github.com/TheHartAttack/viberates-backend/internal/revision"
	"github.com/TheHartAttack/viberates-backend/internal/store"
)

const historyPageSize = 12

// Fields aliases the artist snapshot type.
type Fields = store.ArtistFields

// Service coordinates artist-related operations.
type Service interface {
	Add(ctx context.Context, fields Fields, actor revision.Actor) (revision.RegisterResult[Fields], error)
	Edit(ctx context.Context, artistSlug string, fields Fields, actor revision.Actor) (revision.EditResult[Fields], error)
	Get(ctx context.Context, artistSlug string) (store.ArtistPage, error)
	History(ctx context.Context, artistSlug string, offset int) (revision.History[Fields], error)
	Revert(ctx context.Context, editID int64, actor revision.Actor) (revision.RevertResult[Fields], error)
}

type service struct {
	store   *store.Store
	manager *revision.Manager[Fields]
}

// New constructs a Service backed by the provided Store.
func New(s *store.Store) Service {
	return &service{
		store:   s,
		manager: revision.NewManager[Fields](s.Artists(), store.ArtistVariant()),
	}
}

func (s *service) Add(ctx context.Context, fields Fields, actor revision.Actor) (revision.RegisterResult[Fields], error) {
	if err := ctx.Err(); err != nil {
		return revision.RegisterResult[Fields]{}, err
	}
	res, err := s.manager.Register(ctx, fields, actor, revision.Scope{})
	if err != nil {
		return revision.RegisterResult[Fields]{}, err
	}
	if res.Created {
		res.Message = fmt.Sprintf("%s has been added.", res.Entity.Fields.Name)
	}
	return res, nil
}

func (s *service) Edit(ctx context.Context, artistSlug string, fields Fields, actor revision.Actor) (revision.EditResult[Fields], error) {
	if err := ctx.Err(); err != nil {
		return revision.EditResult[Fields]{}, err
	}
	target, err := s.store.Artists().Find(ctx, revision.Scope{}, artistSlug)
	if err != nil {
		return revision.EditResult[Fields]{}, err
	}
	res, err := s.manager.Edit(ctx, fields, actor, target)
	if err != nil {
		return revision.EditResult[Fields]{}, err
	}
	if res.Changed {
		res.Message = fmt.Sprintf("%s has been updated.", res.Entity.Fields.Name)
	}
	return res, nil
}

func (s *service) Get(ctx context.Context, artistSlug string) (store.ArtistPage, error) {
	if err := ctx.Err(); err != nil {
		return store.ArtistPage{}, err
	}
	return s.store.ArtistBySlug(ctx, artistSlug)
}

func (s *service) History(ctx context.Context, artistSlug string, offset int) (revision.History[Fields], error) {
	if err := ctx.Err(); err != nil {
		return revision.History[Fields]{}, err
	}
	target, err := s.store.Artists().Find(ctx, revision.Scope{}, artistSlug)
	if err != nil {
		return revision.History[Fields]{}, err
	}
	return s.manager.History(ctx, target.ID, offset, historyPageSize)
}

func (s *service) Revert(ctx context.Context, editID int64, actor revision.Actor) (revision.RevertResult[Fields], error) {
	if err := ctx.Err(); err != nil {
		return revision.RevertResult[Fields]{}, err
	}
	return s.manager.Revert(ctx, editID, actor)
}
