// Package chat coordinates the site-wide chat room.
package chat

import (
	"context"

	"github.com/TheHartAttack/viberates-backend/internal/revision"
	"github.com/TheHartAttack/viberates-backend/internal/store"
)

const pageSize = 24

// Load is one page of chat history, oldest first, using the
// fetch-one-extra convention.
type Load struct {
	Messages []store.ChatMessage `json:"messages"`
	More     bool                `json:"moreMessages"`
}

// Service coordinates chat operations.
type Service interface {
	Register(ctx context.Context, body string, actor revision.Actor) (store.ChatMessage, error)
	Load(ctx context.Context, offset int) (Load, error)
}

type service struct {
	store *store.Store
}

// New constructs a Service backed by the provided Store.
func New(s *store.Store) Service {
	return &service{store: s}
}

func (s *service) Register(ctx context.Context, body string, actor revision.Actor) (store.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return store.ChatMessage{}, err
	}
	return s.store.AddChatMessage(ctx, body, actor)
}

// Load pages backwards through history and hands the page back oldest
// first, the way the chat window prepends.
func (s *service) Load(ctx context.Context, offset int) (Load, error) {
	if err := ctx.Err(); err != nil {
		return Load{}, err
	}
	messages, err := s.store.ChatMessages(ctx, offset, pageSize+1)
	if err != nil {
		return Load{}, err
	}

	load := Load{}
	if len(messages) > pageSize {
		load.More = true
		messages = messages[:pageSize]
	}
	for i := len(messages) - 1; i >= 0; i-- {
		load.Messages = append(load.Messages, messages[i])
	}
	return load, nil
}
