package ws

import (
	"log"
	"net/http"
	"sync"

	"github.com/apimeter/backend/internal/domain"
	"github.com/apimeter/backend/internal/service"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is handled at the HTTP level
	},
}

// Hub fans ledger events out to connected admin feed clients. Publish never
// blocks the billing path: slow clients get dropped, not waited on.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan domain.LedgerEvent
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Publish broadcasts a ledger event to all connected clients.
func (h *Hub) Publish(event domain.LedgerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			// Client can't keep up; disconnect it.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// FeedHandler upgrades admin connections to a live ledger event stream.
// URL: /ws/admin/feed?token=JWT_TOKEN
type FeedHandler struct {
	hub  *Hub
	auth *service.AuthService
}

// NewFeedHandler creates a new FeedHandler.
func NewFeedHandler(hub *Hub, auth *service.AuthService) *FeedHandler {
	return &FeedHandler{hub: hub, auth: auth}
}

// Handle authenticates via query param token (browsers can't set headers on
// WebSocket requests), requires an admin role, and streams events until the
// client disconnects.
func (h *FeedHandler) Handle(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}

	claims, err := h.auth.VerifyToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if !domain.IsAdminRole(claims.Role) {
		http.Error(w, "admin access required", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan domain.LedgerEvent, 32)}
	h.hub.add(c)
	log.Printf("🔌 Admin feed connected (%s)", claims.Email)

	// Writer: pump events until the send channel closes.
	go func() {
		defer conn.Close()
		for event := range c.send {
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}()

	// Reader: the feed is one-way, but reading is how we notice disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.hub.remove(c)
	conn.Close()
	log.Printf("🔌 Admin feed disconnected (%s)", claims.Email)
}
