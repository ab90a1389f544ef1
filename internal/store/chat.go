package store

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/TheHartAttack/viberates-backend/internal/revision"
)

// ChatMessage is one message in the site-wide chat room.
type ChatMessage struct {
	ID   int64            `json:"id"`
	Body string           `json:"body"`
	Date time.Time        `json:"date"`
	User revision.UserRef `json:"user"`
}

// AddChatMessage persists a chat message.
func (s *Store) AddChatMessage(ctx context.Context, body string, user revision.Actor) (ChatMessage, error) {
	body = strings.TrimSpace(body)

	var msgs []string
	if body == "" {
		msgs = append(msgs, "You must provide message text.")
	}
	if utf8.RuneCountInString(body) > 256 {
		msgs = append(msgs, "Message cannot exceed 256 characters.")
	}
	if len(msgs) > 0 {
		return ChatMessage{}, &revision.ValidationError{Messages: msgs}
	}

	msg := ChatMessage{
		Body: body,
		User: revision.UserRef{ID: user.ID, Username: user.Username, Slug: user.Slug},
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO chat_messages (user_id, body)
		VALUES ($1, $2)
		RETURNING id, sent_at
	`, user.ID, body).Scan(&msg.ID, &msg.Date)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("insert chat message: %w", err)
	}

	return msg, nil
}

// ChatMessages lists chat messages newest first.
func (s *Store) ChatMessages(ctx context.Context, offset, limit int) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.body, c.sent_at, u.id, u.username, u.slug
		FROM chat_messages c
		JOIN users u ON u.id = c.user_id
		ORDER BY c.sent_at DESC, c.id DESC
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("select chat messages: %w", err)
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var msg ChatMessage
		if err := rows.Scan(&msg.ID, &msg.Body, &msg.Date, &msg.User.ID, &msg.User.Username, &msg.User.Slug); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}

	return messages, nil
}
