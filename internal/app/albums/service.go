// Package albums coordinates the versioned album workflows.
package albums

import (
	"context"
	"fmt"

	"github.com/TheHartAttack/viberates-backend/internal/revision"
	"github.com/TheHartAttack/viberates-backend/internal/store"
)

const (
	historyPageSize = 12
	listingPageSize = 24
)

// Fields aliases the album snapshot type.
type Fields = store.AlbumFields

// Listing is one page of album summaries using the fetch-one-extra
// convention.
type Listing struct {
	Albums []store.AlbumSummary `json:"albums"`
	More   bool                 `json:"moreAlbums"`
}

// Service coordinates album-related operations.
type Service interface {
	Add(ctx context.Context, artistSlug string, fields Fields, actor revision.Actor) (revision.RegisterResult[Fields], error)
	Edit(ctx context.Context, artistSlug, albumSlug string, fields Fields, actor revision.Actor) (revision.EditResult[Fields], error)
	Get(ctx context.Context, artistSlug, albumSlug string) (store.AlbumPage, error)
	History(ctx context.Context, artistSlug, albumSlug string, offset int) (revision.History[Fields], error)
	Revert(ctx context.Context, editID int64, actor revision.Actor) (revision.RevertResult[Fields], error)
	Delete(ctx context.Context, albumID int64, actor revision.Actor) error
	NewReleases(ctx context.Context, offset int) (Listing, error)
	Search(ctx context.Context, term string) ([]store.AlbumSummary, error)
}

type service struct {
	store *store.Store
}

// New constructs a Service backed by the provided Store.
func New(s *store.Store) Service {
	return &service{store: s}
}

// manager builds the album workflow for one artist; the duplicate
// message needs the artist's name.
func (s *service) manager(artist revision.Record[store.ArtistFields]) *revision.Manager[Fields] {
	return revision.NewManager[Fields](s.store.Albums(), store.AlbumVariant(artist.Fields.Name))
}

func (s *service) artist(ctx context.Context, artistSlug string) (revision.Record[store.ArtistFields], error) {
	return s.store.Artists().Find(ctx, revision.Scope{}, artistSlug)
}

func (s *service) Add(ctx context.Context, artistSlug string, fields Fields, actor revision.Actor) (revision.RegisterResult[Fields], error) {
	if err := ctx.Err(); err != nil {
		return revision.RegisterResult[Fields]{}, err
	}
	artist, err := s.artist(ctx, artistSlug)
	if err != nil {
		return revision.RegisterResult[Fields]{}, err
	}
	res, err := s.manager(artist).Register(ctx, fields, actor, revision.Scope{Artist: artist.ID})
	if err != nil {
		return revision.RegisterResult[Fields]{}, err
	}
	if res.Created {
		res.Message = fmt.Sprintf("%s has been added.", res.Entity.Fields.Title)
	}
	return res, nil
}

func (s *service) Edit(ctx context.Context, artistSlug, albumSlug string, fields Fields, actor revision.Actor) (revision.EditResult[Fields], error) {
	if err := ctx.Err(); err != nil {
		return revision.EditResult[Fields]{}, err
	}
	artist, err := s.artist(ctx, artistSlug)
	if err != nil {
		return revision.EditResult[Fields]{}, err
	}
	target, err := s.store.Albums().Find(ctx, revision.Scope{Artist: artist.ID}, albumSlug)
	if err != nil {
		return revision.EditResult[Fields]{}, err
	}
	res, err := s.manager(artist).Edit(ctx, fields, actor, target)
	if err != nil {
		return revision.EditResult[Fields]{}, err
	}
	if res.Changed {
		res.Message = fmt.Sprintf("%s has been updated.", res.Entity.Fields.Title)
	}
	return res, nil
}

func (s *service) Get(ctx context.Context, artistSlug, albumSlug string) (store.AlbumPage, error) {
	if err := ctx.Err(); err != nil {
		return store.AlbumPage{}, err
	}
	return s.store.AlbumBySlug(ctx, artistSlug, albumSlug)
}

func (s *service) History(ctx context.Context, artistSlug, albumSlug string, offset int) (revision.History[Fields], error) {
	if err := ctx.Err(); err != nil {
		return revision.History[Fields]{}, err
	}
	artist, err := s.artist(ctx, artistSlug)
	if err != nil {
		return revision.History[Fields]{}, err
	}
	target, err := s.store.Albums().Find(ctx, revision.Scope{Artist: artist.ID}, albumSlug)
	if err != nil {
		return revision.History[Fields]{}, err
	}
	return s.manager(artist).History(ctx, target.ID, offset, historyPageSize)
}

func (s *service) Revert(ctx context.Context, editID int64, actor revision.Actor) (revision.RevertResult[Fields], error) {
	if err := ctx.Err(); err != nil {
		return revision.RevertResult[Fields]{}, err
	}
	edit, err := s.store.Albums().EditByID(ctx, editID)
	if err != nil {
		return revision.RevertResult[Fields]{}, err
	}
	target, err := s.store.Albums().Get(ctx, edit.Target)
	if err != nil {
		return revision.RevertResult[Fields]{}, err
	}
	artist, err := s.store.Artists().Get(ctx, target.Scope.Artist)
	if err != nil {
		return revision.RevertResult[Fields]{}, err
	}
	return s.manager(artist).Revert(ctx, editID, actor)
}

func (s *service) Delete(ctx context.Context, albumID int64, actor revision.Actor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.store.DeleteAlbum(ctx, albumID, actor.ID)
}

func (s *service) NewReleases(ctx context.Context, offset int) (Listing, error) {
	if err := ctx.Err(); err != nil {
		return Listing{}, err
	}
	albums, err := s.store.NewReleases(ctx, offset, listingPageSize+1)
	if err != nil {
		return Listing{}, err
	}
	listing := Listing{Albums: albums}
	if len(listing.Albums) > listingPageSize {
		listing.More = true
		listing.Albums = listing.Albums[:listingPageSize]
	}
	return listing, nil
}

func (s *service) Search(ctx context.Context, term string) ([]store.AlbumSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.SearchAlbums(ctx, term)
}
