// Package users coordinates accounts, identity, and role management.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/TheHartAttack/viberates-backend/internal/auth"
	"github.com/TheHartAttack/viberates-backend/internal/revision"
	"github.com/TheHartAttack/viberates-backend/internal/store"
)

const reviewPageSize = 12

// ErrTargetProtected rejects role or suspension changes against admins
// and self-targeted suspensions.
var ErrTargetProtected = errors.New("You cannot perform that action.")

// Session is an authenticated user with their API token.
type Session struct {
	Token string     `json:"token"`
	User  store.User `json:"user"`
}

// Page is a user profile with their reviews.
type Page struct {
	User    store.User             `json:"user"`
	Reviews []store.ReviewListItem `json:"reviews"`
	More    bool                   `json:"moreReviews"`
}

// RoleChange reports the outcome of a mod or suspension toggle.
type RoleChange struct {
	User    store.User `json:"user"`
	Message string     `json:"message"`
}

// Service coordinates user-related operations.
type Service interface {
	Register(ctx context.Context, username, email, password string) (Session, error)
	Login(ctx context.Context, username, password string) (Session, error)
	CheckToken(ctx context.Context, token string) (revision.Actor, error)
	Get(ctx context.Context, userSlug string) (Page, error)
	LoadReviews(ctx context.Context, userID int64, offset int) ([]store.ReviewListItem, bool, error)
	ToggleMod(ctx context.Context, actor revision.Actor, userSlug string) (RoleChange, error)
	ToggleSuspend(ctx context.Context, actor revision.Actor, userSlug string) (RoleChange, error)
}

type service struct {
	store  *store.Store
	tokens *auth.Tokens
}

// New constructs a Service backed by the provided Store and token
// signer.
func New(s *store.Store, tokens *auth.Tokens) Service {
	return &service{store: s, tokens: tokens}
}

func (s *service) Register(ctx context.Context, username, email, password string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	user, err := s.store.CreateUser(ctx, username, email, password)
	if err != nil {
		return Session{}, err
	}
	token, err := s.tokens.Issue(user.Actor())
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: user}, nil
}

func (s *service) Login(ctx context.Context, username, password string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	user, err := s.store.Authenticate(ctx, username, password)
	if err != nil {
		return Session{}, err
	}
	token, err := s.tokens.Issue(user.Actor())
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: user}, nil
}

func (s *service) CheckToken(ctx context.Context, token string) (revision.Actor, error) {
	if err := ctx.Err(); err != nil {
		return revision.Actor{}, err
	}
	return s.tokens.Verify(token)
}

func (s *service) Get(ctx context.Context, userSlug string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	user, err := s.store.UserBySlug(ctx, userSlug)
	if err != nil {
		return Page{}, err
	}
	reviews, more, err := s.LoadReviews(ctx, user.ID, 0)
	if err != nil {
		return Page{}, err
	}
	return Page{User: user, Reviews: reviews, More: more}, nil
}

func (s *service) LoadReviews(ctx context.Context, userID int64, offset int) ([]store.ReviewListItem, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	reviews, err := s.store.ReviewsByUser(ctx, userID, offset, reviewPageSize+1)
	if err != nil {
		return nil, false, err
	}
	more := false
	if len(reviews) > reviewPageSize {
		more = true
		reviews = reviews[:reviewPageSize]
	}
	return reviews, more, nil
}

// ToggleMod grants the mod role to the target, or removes it if already
// held. Admins cannot be targeted.
func (s *service) ToggleMod(ctx context.Context, actor revision.Actor, userSlug string) (RoleChange, error) {
	if err := ctx.Err(); err != nil {
		return RoleChange{}, err
	}
	target, err := s.store.UserBySlug(ctx, userSlug)
	if err != nil {
		return RoleChange{}, err
	}
	if target.HasRole("admin") {
		return RoleChange{}, ErrTargetProtected
	}

	demote := target.HasRole("mod")
	updated, err := s.store.SetMod(ctx, target.ID, !demote)
	if err != nil {
		return RoleChange{}, err
	}

	msg := fmt.Sprintf("%s is now a moderator.", updated.Username)
	if demote {
		msg = fmt.Sprintf("%s is no longer a moderator.", updated.Username)
	}
	return RoleChange{User: updated, Message: msg}, nil
}

// ToggleSuspend flips the target's suspension flag. Admins and the
// acting user cannot be targeted.
func (s *service) ToggleSuspend(ctx context.Context, actor revision.Actor, userSlug string) (RoleChange, error) {
	if err := ctx.Err(); err != nil {
		return RoleChange{}, err
	}
	target, err := s.store.UserBySlug(ctx, userSlug)
	if err != nil {
		return RoleChange{}, err
	}
	if target.HasRole("admin") || target.ID == actor.ID {
		return RoleChange{}, ErrTargetProtected
	}

	suspend := !target.Suspended
	if err := s.store.SetSuspended(ctx, target.ID, suspend); err != nil {
		return RoleChange{}, err
	}
	target.Suspended = suspend

	msg := fmt.Sprintf("%s is now suspended.", target.Username)
	if !suspend {
		msg = fmt.Sprintf("%s is no longer suspended.", target.Username)
	}
	return RoleChange{User: target, Message: msg}, nil
}
