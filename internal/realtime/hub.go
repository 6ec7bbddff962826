package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/op/go-logging"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/policy"
)

var log = logging.MustGetLogger("realtime")

// Frame is the JSON shape of every message on the wire, in both directions.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// UserLookup resolves the restaurant of a waiter channel.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// Hub owns every live connection and the channel membership table. It
// implements Notifier. The zero value is not usable; call NewHub.
type Hub struct {
	upgrader websocket.Upgrader
	users    UserLookup

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
}

// NewHub returns a hub accepting upgrades from the given origins. An empty
// list or "*" accepts any origin. users may be nil, in which case waiter
// channels are limited to the waiter and super-admins.
func NewHub(allowedOrigins []string, users UserLookup) *Hub {
	h := &Hub{
		users:   users,
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	open := len(allowed) == 0
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			open = true
		}
		set[strings.ToLower(o)] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if open || origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

// Serve upgrades the request and runs the connection for principal p until
// it closes. The caller has already authenticated p.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, p *policy.Principal) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := newClient(h, conn, p)
	h.register(c)
	c.reply(EventConnected, map[string]any{"id": c.ID, "user_id": p.UserID})
	log.Debugf("ws connected id=%s user=%d", c.ID, p.UserID)

	go c.writePump()
	go c.readPump()
	return nil
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// unregister drops c from every room and closes its send queue. Sends only
// happen under the read lock, so nothing writes to the closed queue.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		h.removeFromRoom(c, room)
	}
	close(c.send)
}

func (h *Hub) join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leave(c *Client, room string) {
	h.mu.Lock()
	h.removeFromRoom(c, room)
	h.mu.Unlock()
}

// removeFromRoom must be called with h.mu held.
func (h *Hub) removeFromRoom(c *Client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Notify delivers ev to every connection joined to any of its channels,
// once per connection. Connections whose queue is full miss the event.
func (h *Hub) Notify(_ context.Context, ev Event) error {
	frame, err := json.Marshal(Frame{Event: ev.Name, Data: ev.Data})
	if err != nil {
		return fmt.Errorf("realtime: encode %s: %w", ev.Name, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := make(map[*Client]struct{})
	for _, ch := range ev.Channels {
		if ch == GlobalChannel {
			for c := range h.clients {
				targets[c] = struct{}{}
			}
			continue
		}
		for c := range h.rooms[ch] {
			targets[c] = struct{}{}
		}
	}

	dropped := 0
	for c := range targets {
		if !c.enqueue(frame) {
			dropped++
		}
	}
	if dropped > 0 {
		log.Warningf("ws %s dropped for %d slow connection(s)", ev.Name, dropped)
	}
	return nil
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Members returns the number of connections joined to room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close closes every connection. Read loops exit and unregister themselves.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		if c.conn != nil {
			conns = append(conns, c.conn)
		}
	}
	h.mu.RUnlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}
