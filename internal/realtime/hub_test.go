package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/policy"
)

func u64(v uint64) *uint64 { return &v }

func attach(h *Hub, buf int) *Client {
	c := newClient(h, nil, &policy.Principal{UserID: 1, Role: model.RoleSuperAdmin})
	c.send = make(chan []byte, buf)
	h.register(c)
	return c
}

func drain(c *Client) []Frame {
	var out []Frame
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return out
			}
			var f Frame
			_ = json.Unmarshal(raw, &f)
			out = append(out, f)
		default:
			return out
		}
	}
}

func TestNotifyDeliversOncePerConnection(t *testing.T) {
	h := NewHub(nil, nil)
	kitchen := attach(h, 8)
	h.join(kitchen, KitchenChannel(5))
	h.join(kitchen, RestaurantChannel(5))

	o := &model.Order{ID: 1, RestaurantID: 5, Status: model.StatusPreparing}
	require.NoError(t, h.Notify(context.Background(), OrderSentToKitchen(o)))

	got := drain(kitchen)
	require.Len(t, got, 1)
	assert.Equal(t, EventOrderSentToKitchen, got[0].Event)
}

func TestNotifyRespectsChannels(t *testing.T) {
	h := NewHub(nil, nil)
	r5 := attach(h, 8)
	r6 := attach(h, 8)
	h.join(r5, RestaurantChannel(5))
	h.join(r6, RestaurantChannel(6))

	tbl := &model.Table{ID: 3, RestaurantID: 5, State: model.TableOccupied}
	require.NoError(t, h.Notify(context.Background(), TableStateChanged(tbl)))

	assert.Len(t, drain(r5), 1)
	assert.Empty(t, drain(r6))
}

func TestGlobalReachesEveryConnection(t *testing.T) {
	h := NewHub(nil, nil)
	a, b := attach(h, 8), attach(h, 8)
	h.join(a, RestaurantChannel(1))

	require.NoError(t, h.Notify(context.Background(), ProductUnavailable(9, "", 0, "Product not found")))
	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
}

func TestSlowConsumerDropsEvents(t *testing.T) {
	h := NewHub(nil, nil)
	slow := attach(h, 1)
	h.join(slow, RestaurantChannel(5))

	o := &model.Order{ID: 1, RestaurantID: 5}
	for i := 0; i < 3; i++ {
		require.NoError(t, h.Notify(context.Background(), OrderUpdated(o)))
	}
	assert.Len(t, drain(slow), 1)
}

func TestLeaveAndUnregister(t *testing.T) {
	h := NewHub(nil, nil)
	c := attach(h, 8)
	h.join(c, RestaurantChannel(5))
	h.join(c, KitchenChannel(5))
	assert.Equal(t, 1, h.Members(RestaurantChannel(5)))

	h.leave(c, RestaurantChannel(5))
	assert.Equal(t, 0, h.Members(RestaurantChannel(5)))
	assert.Equal(t, 1, h.Members(KitchenChannel(5)))

	h.unregister(c)
	assert.Equal(t, 0, h.Clients())
	assert.Equal(t, 0, h.Members(KitchenChannel(5)))
	_, open := <-c.send
	assert.False(t, open)

	// a second unregister is a no-op
	h.unregister(c)
}

func TestEventAudiences(t *testing.T) {
	o := &model.Order{RestaurantID: 5, AssignedWaiterID: u64(7)}
	assert.Equal(t, []string{"kitchen_5", "restaurant_5", "waiter_7", GlobalChannel}, OrderStatusChanged(o).Channels)
	assert.Equal(t, []string{GlobalChannel, "restaurant_5"}, OrderCreated(o).Channels)

	o.AssignedWaiterID = nil
	assert.Equal(t, []string{"kitchen_5", "restaurant_5", GlobalChannel}, OrderStatusChanged(o).Channels)

	tbl := &model.Table{ID: 1, RestaurantID: 5}
	tr := model.TransferEvent{FromWaiterID: u64(7), ToWaiterID: 8, SupervisorID: 2}
	assert.Equal(t, []string{"restaurant_5", "waiter_7", "waiter_8"}, TableTransferred(tbl, tr).Channels)

	assert.Equal(t, []string{GlobalChannel, "restaurant_4"}, ProductUnavailable(1, "x", 4, "gone").Channels)
}

func TestParseID(t *testing.T) {
	for _, in := range []string{`5`, `"5"`, `{"id":5}`, `{"id":"5"}`} {
		id, err := parseID(json.RawMessage(in))
		require.NoError(t, err, in)
		assert.Equal(t, uint64(5), id)
	}
	for _, in := range []string{``, `0`, `"abc"`, `{}`, `null`} {
		_, err := parseID(json.RawMessage(in))
		assert.Error(t, err, in)
	}
}

// wsServer runs the hub behind a real HTTP server for principal p.
func wsServer(t *testing.T, h *Hub, p *policy.Principal) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.Serve(w, r, p)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f map[string]any
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestServeJoinAndReceive(t *testing.T) {
	h := NewHub([]string{"*"}, nil)
	conn := wsServer(t, h, &policy.Principal{UserID: 3, Role: model.RoleWaiter, RestaurantID: u64(5)})

	assert.Equal(t, EventConnected, readFrame(t, conn)["event"])

	require.NoError(t, conn.WriteJSON(map[string]any{"event": EventJoinRestaurant, "data": 5}))
	joined := readFrame(t, conn)
	assert.Equal(t, EventJoined, joined["event"])
	assert.Equal(t, "restaurant_5", joined["data"].(map[string]any)["channel"])

	o := &model.Order{ID: 11, RestaurantID: 5, Status: model.StatusPending}
	require.NoError(t, h.Notify(context.Background(), OrderCreated(o)))
	ev := readFrame(t, conn)
	assert.Equal(t, EventOrderCreated, ev["event"])
	assert.EqualValues(t, 11, ev["data"].(map[string]any)["id"])

	require.NoError(t, conn.WriteJSON(map[string]any{"event": EventHeartbeat}))
	assert.Equal(t, EventHeartbeatResponse, readFrame(t, conn)["event"])
}

func TestServeRejectsForeignJoins(t *testing.T) {
	h := NewHub(nil, nil)
	conn := wsServer(t, h, &policy.Principal{UserID: 3, Role: model.RoleWaiter, RestaurantID: u64(5)})
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"event": EventJoinKitchen, "data": 6}))
	f := readFrame(t, conn)
	assert.Equal(t, EventError, f["event"])

	require.NoError(t, conn.WriteJSON(map[string]any{"event": EventJoinWaiter, "data": 4}))
	assert.Equal(t, EventError, readFrame(t, conn)["event"])

	require.NoError(t, conn.WriteJSON(map[string]any{"event": EventJoinWaiter, "data": 3}))
	assert.Equal(t, EventJoined, readFrame(t, conn)["event"])
	assert.Equal(t, 0, h.Members(KitchenChannel(6)))
}

type userMap map[uint64]*model.User

func (u userMap) GetByID(_ context.Context, id uint64) (*model.User, error) {
	if usr, ok := u[id]; ok {
		return usr, nil
	}
	return nil, errors.New("not found")
}

func TestWaiterChannelNeedsTheWaitersRestaurant(t *testing.T) {
	lookup := userMap{42: {ID: 42, Role: model.RoleWaiter, RestaurantID: u64(5)}}
	h := NewHub(nil, lookup)

	foreign := wsServer(t, h, &policy.Principal{UserID: 9, Role: model.RoleRestaurantAdmin, RestaurantID: u64(6)})
	readFrame(t, foreign)
	require.NoError(t, foreign.WriteJSON(map[string]any{"event": EventJoinWaiter, "data": 42}))
	assert.Equal(t, EventError, readFrame(t, foreign)["event"])

	require.NoError(t, foreign.WriteJSON(map[string]any{"event": EventJoinWaiter, "data": 77}))
	assert.Equal(t, EventError, readFrame(t, foreign)["event"], "unknown waiter")
	assert.Equal(t, 0, h.Members(WaiterChannel(42)))

	boss := wsServer(t, h, &policy.Principal{UserID: 8, Role: model.RoleRestaurantAdmin, RestaurantID: u64(5)})
	readFrame(t, boss)
	require.NoError(t, boss.WriteJSON(map[string]any{"event": EventJoinWaiter, "data": 42}))
	assert.Equal(t, EventJoined, readFrame(t, boss)["event"])
	assert.Equal(t, 1, h.Members(WaiterChannel(42)))
}

func TestWaiterChannelWithoutLookup(t *testing.T) {
	h := NewHub(nil, nil)
	c := newClient(h, nil, &policy.Principal{UserID: 2, Role: model.RoleRestaurantAdmin, RestaurantID: u64(5)})
	assert.Error(t, c.mayWatchWaiter(42))

	c.principal = &policy.Principal{UserID: 1, Role: model.RoleSuperAdmin}
	assert.NoError(t, c.mayWatchWaiter(42))
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://pos.example.com"})
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(r), "no origin header")
	r.Header.Set("Origin", "https://pos.example.com")
	assert.True(t, check(r))
	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(r))
}
