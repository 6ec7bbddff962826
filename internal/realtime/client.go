package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/policy"
)

// Connection control events.
const (
	EventConnected         = "connected"
	EventJoined            = "joined"
	EventLeft              = "left"
	EventHeartbeatResponse = "heartbeat_response"
	EventError             = "error"

	EventJoinRestaurant = "join_restaurant"
	EventJoinKitchen    = "join_kitchen"
	EventJoinWaiter     = "join_waiter"
	EventLeave          = "leave"
	EventHeartbeat      = "heartbeat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
	lookupTimeout  = 2 * time.Second
)

// Client is one WebSocket connection. rooms is guarded by the hub lock.
type Client struct {
	ID        string
	hub       *Hub
	conn      *websocket.Conn
	principal *policy.Principal
	send      chan []byte
	rooms     map[string]struct{}
}

func newClient(h *Hub, conn *websocket.Conn, p *policy.Principal) *Client {
	return &Client{
		ID:        uuid.NewString(),
		hub:       h,
		conn:      conn,
		principal: p,
		send:      make(chan []byte, sendBuffer),
		rooms:     make(map[string]struct{}),
	}
}

// enqueue never blocks; it reports false when the queue is full.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) reply(event string, data any) {
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		log.Errorf("ws encode %s: %v", event, err)
		return
	}
	c.enqueue(frame)
}

func (c *Client) fail(event, message string) {
	c.reply(EventError, map[string]string{"event": event, "message": message})
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
		log.Debugf("ws disconnected id=%s", c.ID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Infof("ws read id=%s: %v", c.ID, err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.fail("", "malformed frame")
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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

func (c *Client) handle(msg inbound) {
	switch msg.Event {
	case EventJoinRestaurant, EventJoinKitchen:
		id, err := parseID(msg.Data)
		if err != nil {
			c.fail(msg.Event, "a restaurant id is required")
			return
		}
		if err := policy.Authorize(c.principal, policy.ViewRestaurant, policy.Restaurant(id)); err != nil {
			c.fail(msg.Event, err.Error())
			return
		}
		room := RestaurantChannel(id)
		if msg.Event == EventJoinKitchen {
			room = KitchenChannel(id)
		}
		c.hub.join(c, room)
		c.reply(EventJoined, map[string]string{"channel": room})

	case EventJoinWaiter:
		id, err := parseID(msg.Data)
		if err != nil {
			c.fail(msg.Event, "a waiter id is required")
			return
		}
		if err := c.mayWatchWaiter(id); err != nil {
			c.fail(msg.Event, err.Error())
			return
		}
		room := WaiterChannel(id)
		c.hub.join(c, room)
		c.reply(EventJoined, map[string]string{"channel": room})

	case EventLeave:
		room, err := parseChannel(msg.Data)
		if err != nil {
			c.fail(msg.Event, "a channel name is required")
			return
		}
		c.hub.leave(c, room)
		c.reply(EventLeft, map[string]string{"channel": room})

	case EventHeartbeat:
		c.reply(EventHeartbeatResponse, map[string]any{"timestamp": time.Now().UTC()})

	default:
		c.fail(msg.Event, "unknown event")
	}
}

var errOwnWaiterChannel = errors.New("You can only join your own waiter channel")

// mayWatchWaiter lets a waiter follow their own channel. Anyone else must be
// allowed to view the waiter's restaurant. Without a user lookup only
// super-admins pass.
func (c *Client) mayWatchWaiter(waiterID uint64) error {
	p := c.principal
	if p == nil {
		return errOwnWaiterChannel
	}
	if p.UserID == waiterID && p.Role == model.RoleWaiter {
		return nil
	}
	if p.Role == model.RoleWaiter {
		return errOwnWaiterChannel
	}
	if c.hub.users == nil {
		if p.Role == model.RoleSuperAdmin {
			return nil
		}
		return errOwnWaiterChannel
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()
	w, err := c.hub.users.GetByID(ctx, waiterID)
	if err != nil || w.Role != model.RoleWaiter || w.RestaurantID == nil {
		return fmt.Errorf("No waiter found with id %d", waiterID)
	}
	return policy.Authorize(p, policy.ViewRestaurant, policy.Restaurant(*w.RestaurantID))
}

var errNoID = errors.New("missing id")

// parseID accepts 5, "5" or {"id":5}.
func parseID(raw json.RawMessage) (uint64, error) {
	if len(raw) == 0 {
		return 0, errNoID
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	var obj struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && len(obj.ID) > 0 && obj.ID[0] != '{' {
		return parseID(obj.ID)
	}
	return 0, errNoID
}

// parseChannel accepts "restaurant_5" or {"channel":"restaurant_5"}.
func parseChannel(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s, nil
	}
	var obj struct {
		Channel string `json:"channel"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Channel != "" {
		return obj.Channel, nil
	}
	return "", errors.New("missing channel")
}
