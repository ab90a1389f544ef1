package chat

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appchat "github.com/TheHartAttack/viberates-backend/internal/app/chat"
	"github.com/TheHartAttack/viberates-backend/internal/auth"
	"github.com/TheHartAttack/viberates-backend/internal/logging"
	"github.com/TheHartAttack/viberates-backend/internal/revision"
	"github.com/TheHartAttack/viberates-backend/internal/store"
)

type stubChatService struct{}

func (stubChatService) Register(ctx context.Context, body string, actor revision.Actor) (store.ChatMessage, error) {
	return store.ChatMessage{Body: body, User: revision.UserRef{ID: actor.ID}}, nil
}

func (stubChatService) Load(context.Context, int) (appchat.Load, error) {
	return appchat.Load{}, nil
}

func newTestHub() *Hub {
	log := logging.New(logging.Config{Output: io.Discard})
	return NewHub(stubChatService{}, auth.New("test-secret"), log)
}

func TestHubFansMessagesOutToEveryClient(t *testing.T) {
	h := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	a := &client{hub: h, send: make(chan store.ChatMessage, 1)}
	b := &client{hub: h, send: make(chan store.ChatMessage, 1)}
	h.register <- a
	h.register <- b

	msg := store.ChatMessage{ID: 1, Body: "hello"}
	h.broadcast <- msg

	for _, c := range []*client{a, b} {
		select {
		case got := <-c.send:
			if got.Body != "hello" {
				t.Fatalf("unexpected message %#v", got)
			}
		case <-time.After(time.Second):
			t.Fatal("client never received the broadcast")
		}
	}
}

func TestHubRejectsConnectionsAfterShutdown(t *testing.T) {
	h := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	cancel()
	select {
	case <-h.done:
	case <-time.After(time.Second):
		t.Fatal("hub never shut down")
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after shutdown, got %d", rec.Code)
	}
}

func TestHubShutdownClosesClientChannels(t *testing.T) {
	h := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	c := &client{hub: h, send: make(chan store.ChatMessage, 1)}
	h.register <- c

	cancel()
	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("expected send channel to be closed, got a message")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel never closed")
	}
}
