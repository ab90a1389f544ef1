// Package chat implements the real-time chat broadcast hub.
package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	appchat "github.com/TheHartAttack/viberates-backend/internal/app/chat"
	"github.com/TheHartAttack/viberates-backend/internal/auth"
	"github.com/TheHartAttack/viberates-backend/internal/logging"
	"github.com/TheHartAttack/viberates-backend/internal/revision"
	"github.com/TheHartAttack/viberates-backend/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// Hub fans chat messages out to every connected client.
type Hub struct {
	service appchat.Service
	tokens  *auth.Tokens
	log     *logging.Logger

	broadcast  chan store.ChatMessage
	register   chan *client
	unregister chan *client
	clients    map[*client]bool
	done       chan struct{}
}

// NewHub builds a Hub; call Run before serving connections.
func NewHub(service appchat.Service, tokens *auth.Tokens, log *logging.Logger) *Hub {
	return &Hub{
		service:    service,
		tokens:     tokens,
		log:        log,
		broadcast:  make(chan store.ChatMessage, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		clients:    make(map[*client]bool),
		done:       make(chan struct{}),
	}
}

// Run owns the client set. It exits when ctx is done; after that the
// hub accepts no new connections.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer; drop the connection.
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	hub   *Hub
	conn  *websocket.Conn
	actor revision.Actor
	send  chan store.ChatMessage
}

// inbound is the message shape clients send.
type inbound struct {
	Body string `json:"body"`
}

// ServeHTTP upgrades the connection. The client authenticates with a
// token query parameter; an invalid token is rejected before upgrade.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	default:
	}

	actor, err := h.tokens.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error(err, "upgrade chat connection")
		return
	}

	c := &client{
		hub:   h,
		conn:  conn,
		actor: actor,
		send:  make(chan store.ChatMessage, 16),
	}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in inbound
		if err := c.conn.ReadJSON(&in); err != nil {
			return
		}
		if c.actor.Suspended {
			continue
		}
		msg, err := c.hub.service.Register(context.Background(), in.Body, c.actor)
		if err != nil {
			// Validation failures are the sender's problem only.
			_ = c.conn.WriteJSON(map[string]string{"error": err.Error()})
			continue
		}
		select {
		case c.hub.broadcast <- msg:
		case <-c.hub.done:
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
