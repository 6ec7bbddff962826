package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/restaurant-ordering/internal/handler"
	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/realtime"
	"github.com/iliyamo/restaurant-ordering/internal/repository/memory"
	"github.com/iliyamo/restaurant-ordering/internal/service"
	"github.com/iliyamo/restaurant-ordering/internal/utils"
)

const password = "supersecret"

type app struct {
	t   *testing.T
	e   *echo.Echo
	hub *realtime.Hub
}

func newApp(t *testing.T) *app {
	t.Helper()
	st := memory.New()
	hash, err := utils.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, st.Users.Create(context.Background(), &model.User{
		Name: "Root", Email: "root@example.com", PasswordHash: hash, Role: model.RoleSuperAdmin, Active: true,
	}))

	hub := realtime.NewHub(nil, st.Users)
	accounts := service.NewAccounts(service.AccountsConfig{
		JWTSecret:        "test-secret",
		AccessTTLMin:     15,
		RefreshTTLDays:   1,
		BcryptCost:       bcrypt.MinCost,
		ExposeResetToken: true,
	}, st.Users, st.Tokens)

	e := New(Handlers{
		WS:          &handler.WSHandler{Auth: accounts, Hub: hub},
		Users:       handler.NewUserHandler(accounts),
		Restaurants: handler.NewRestaurantHandler(service.NewRestaurants(st.Restaurants, st.Users)),
		Catalog:     handler.NewCatalogHandler(service.NewCatalog(st.Categories, st.Products, st.Modifiers, hub)),
		Tables:      handler.NewTableHandler(service.NewTables(st.Tables, st.Users, hub)),
		Orders:      handler.NewOrderHandler(service.NewOrders(st.Orders, st.Tables, st.Products, st.Users, hub, model.Strict)),
	}, Options{Auth: accounts})
	return &app{t: t, e: e, hub: hub}
}

type reply struct {
	Code    int
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (a *app) do(method, path, token string, body any) reply {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	r := reply{Code: rec.Code}
	if rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	}
	return r
}

func (r reply) into(t *testing.T, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, dst), string(r.Data))
}

func (a *app) login(email string) string {
	a.t.Helper()
	r := a.do(http.MethodPost, "/api/v1/users/login", "", map[string]string{"email": email, "password": password})
	require.Equal(a.t, http.StatusOK, r.Code, r.Message)
	var s service.Session
	r.into(a.t, &s)
	return s.Access.Token
}

type world struct {
	rootTok, adminTok, waiterTok string
	restaurantID, waiterID       uint64
	tableID, productID           uint64
}

// seed builds a restaurant with an admin, a waiter holding one table and a
// product, all through the API.
func (a *app) seed() world {
	t := a.t
	var w world
	w.rootTok = a.login("root@example.com")

	r := a.do(http.MethodPost, "/api/v1/restaurants", w.rootTok, map[string]any{"name": "Casa", "address": "Main 1"})
	require.Equal(t, http.StatusCreated, r.Code, r.Message)
	var rest model.Restaurant
	r.into(t, &rest)
	w.restaurantID = rest.ID

	r = a.do(http.MethodPost, "/api/v1/users", w.rootTok, map[string]any{
		"name": "Boss", "email": "boss@example.com", "password": password,
		"role": "restaurant-admin", "restaurant_id": rest.ID,
	})
	require.Equal(t, http.StatusCreated, r.Code, r.Message)
	w.adminTok = a.login("boss@example.com")

	r = a.do(http.MethodPost, "/api/v1/users", w.adminTok, map[string]any{
		"name": "Ana", "email": "ana@example.com", "password": password,
	})
	require.Equal(t, http.StatusCreated, r.Code, r.Message)
	var waiter model.User
	r.into(t, &waiter)
	assert.Equal(t, model.RoleWaiter, waiter.Role)
	w.waiterID = waiter.ID
	w.waiterTok = a.login("ana@example.com")

	r = a.do(http.MethodPost, "/api/v1/tables", w.adminTok, map[string]any{"name": "T1", "capacity": 4})
	require.Equal(t, http.StatusCreated, r.Code, r.Message)
	var tbl model.Table
	r.into(t, &tbl)
	w.tableID = tbl.ID

	r = a.do(http.MethodPatch, fmt.Sprintf("/api/v1/tables/%d/assign", tbl.ID), w.adminTok, map[string]any{"waiter_id": waiter.ID})
	require.Equal(t, http.StatusOK, r.Code, r.Message)

	r = a.do(http.MethodPost, "/api/v1/products", w.adminTok, map[string]any{"name": "Burger", "price_cents": 5000})
	require.Equal(t, http.StatusCreated, r.Code, r.Message)
	var p model.Product
	r.into(t, &p)
	w.productID = p.ID
	return w
}

func TestOrderFlowOverHTTP(t *testing.T) {
	a := newApp(t)
	w := a.seed()

	r := a.do(http.MethodPost, "/api/v1/orders", w.waiterTok, map[string]any{
		"table_id": w.tableID,
		"items":    []map[string]any{{"product_id": w.productID, "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, r.Code, r.Message)
	assert.Equal(t, "success", r.Status)
	var o model.Order
	r.into(t, &o)
	assert.Equal(t, model.StatusPending, o.Status)
	assert.Equal(t, int64(10000), o.SubtotalCents)
	assert.Equal(t, int64(1600), o.TaxCents)
	assert.Equal(t, int64(11600), o.TotalCents)

	r = a.do(http.MethodPost, "/api/v1/orders/calculate-totals", w.waiterTok, map[string]any{"order_id": o.ID, "tip_cents": 1000})
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	r.into(t, &o)
	assert.Equal(t, int64(12600), o.TotalCents)

	r = a.do(http.MethodPost, "/api/v1/orders/send-to-kitchen", w.waiterTok, map[string]any{"order_id": o.ID})
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	r.into(t, &o)
	assert.Equal(t, model.StatusPreparing, o.Status)

	r = a.do(http.MethodPost, "/api/v1/orders/send-to-kitchen", w.waiterTok, map[string]any{"order_id": o.ID})
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, "fail", r.Status)

	r = a.do(http.MethodPatch, fmt.Sprintf("/api/v1/orders/%d/status", o.ID), w.waiterTok, map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, r.Code)

	r = a.do(http.MethodPatch, fmt.Sprintf("/api/v1/orders/%d/status", o.ID), w.waiterTok, map[string]any{"status": "ready", "version": 1})
	assert.Equal(t, http.StatusConflict, r.Code, "stale version")

	r = a.do(http.MethodPatch, fmt.Sprintf("/api/v1/orders/%d/status", o.ID), w.waiterTok, map[string]any{"status": "ready"})
	require.Equal(t, http.StatusOK, r.Code, r.Message)

	r = a.do(http.MethodGet, fmt.Sprintf("/api/v1/orders?table_id=%d", w.tableID), w.adminTok, nil)
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	var page service.Page[model.Order]
	r.into(t, &page)
	assert.EqualValues(t, 1, page.Total)
}

func TestTableStateIsForTheAssignedWaiter(t *testing.T) {
	a := newApp(t)
	w := a.seed()
	path := fmt.Sprintf("/api/v1/tables/%d/state", w.tableID)

	r := a.do(http.MethodPatch, path, w.adminTok, map[string]any{"state": "occupied"})
	assert.Equal(t, http.StatusForbidden, r.Code)

	r = a.do(http.MethodPatch, path, w.waiterTok, map[string]any{"state": "ocupada"})
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	var tbl model.Table
	r.into(t, &tbl)
	assert.Equal(t, model.TableOccupied, tbl.State)
}

func TestAuthAndEnvelopes(t *testing.T) {
	a := newApp(t)
	w := a.seed()

	r := a.do(http.MethodGet, "/api/v1/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, r.Code)
	assert.Equal(t, "fail", r.Status)
	assert.NotEmpty(t, r.Message)

	r = a.do(http.MethodGet, "/api/v1/users", w.waiterTok, nil)
	assert.Equal(t, http.StatusForbidden, r.Code)

	r = a.do(http.MethodPost, "/api/v1/users/start-shift", w.adminTok, nil)
	assert.Equal(t, http.StatusForbidden, r.Code)
	r = a.do(http.MethodPost, "/api/v1/users/start-shift", w.waiterTok, nil)
	assert.Equal(t, http.StatusOK, r.Code, r.Message)
	r = a.do(http.MethodPost, "/api/v1/users/start-shift", w.waiterTok, nil)
	assert.Equal(t, http.StatusBadRequest, r.Code)

	r = a.do(http.MethodGet, "/api/v1/users/me", w.waiterTok, nil)
	require.Equal(t, http.StatusOK, r.Code)
	var me model.User
	r.into(t, &me)
	assert.Equal(t, "ana@example.com", me.Email)

	r = a.do(http.MethodGet, "/api/v1/orders/abc", w.waiterTok, nil)
	assert.Equal(t, http.StatusBadRequest, r.Code)

	r = a.do(http.MethodGet, "/api/v1/orders/999", w.waiterTok, nil)
	assert.Equal(t, http.StatusNotFound, r.Code)
}

func TestProductSoftDelete(t *testing.T) {
	a := newApp(t)
	w := a.seed()

	r := a.do(http.MethodDelete, fmt.Sprintf("/api/v1/products/%d", w.productID), w.adminTok, nil)
	assert.Equal(t, http.StatusNoContent, r.Code)

	r = a.do(http.MethodGet, "/api/v1/products", w.adminTok, nil)
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	var page service.Page[model.Product]
	r.into(t, &page)
	assert.Empty(t, page.Items)

	r = a.do(http.MethodGet, fmt.Sprintf("/api/v1/products/%d", w.productID), w.adminTok, nil)
	assert.Equal(t, http.StatusNotFound, r.Code)
	r = a.do(http.MethodGet, fmt.Sprintf("/api/v1/products/%d?active=false", w.productID), w.adminTok, nil)
	require.Equal(t, http.StatusOK, r.Code, r.Message)

	r = a.do(http.MethodGet, "/api/v1/products?active=maybe", w.adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, r.Code)
}

func TestModifierRoutes(t *testing.T) {
	a := newApp(t)
	w := a.seed()

	r := a.do(http.MethodPost, "/api/v1/modifiers", w.adminTok, map[string]any{
		"name": "Cheese", "type": "extra", "price_adjustment_cents": 500,
	})
	require.Equal(t, http.StatusCreated, r.Code, r.Message)

	r = a.do(http.MethodGet, fmt.Sprintf("/api/v1/modifiers/restaurant/%d/type/extra", w.restaurantID), w.adminTok, nil)
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	var page service.Page[model.Modifier]
	r.into(t, &page)
	assert.Len(t, page.Items, 1)

	r = a.do(http.MethodGet, fmt.Sprintf("/api/v1/modifiers/restaurant/%d/type/sauce", w.restaurantID), w.adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, r.Code)

	r = a.do(http.MethodGet, "/api/v1/modifiers", w.waiterTok, nil)
	assert.Equal(t, http.StatusForbidden, r.Code)
}

func TestWebSocketReceivesOrderEvents(t *testing.T) {
	a := newApp(t)
	w := a.seed()
	srv := httptest.NewServer(a.e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + w.adminTok
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	read := func() map[string]any {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var f map[string]any
		require.NoError(t, conn.ReadJSON(&f))
		return f
	}
	assert.Equal(t, realtime.EventConnected, read()["event"])
	require.NoError(t, conn.WriteJSON(map[string]any{"event": realtime.EventJoinKitchen, "data": w.restaurantID}))
	assert.Equal(t, realtime.EventJoined, read()["event"])

	r := a.do(http.MethodPost, "/api/v1/orders", w.waiterTok, map[string]any{
		"table_id": w.tableID,
		"items":    []map[string]any{{"product_id": w.productID, "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, r.Code, r.Message)
	assert.Equal(t, realtime.EventOrderCreated, read()["event"], "global delivery")

	var o model.Order
	r.into(t, &o)
	r = a.do(http.MethodPost, "/api/v1/orders/send-to-kitchen", w.waiterTok, map[string]any{"order_id": o.ID})
	require.Equal(t, http.StatusOK, r.Code, r.Message)
	assert.Equal(t, realtime.EventOrderSentToKitchen, read()["event"])
}

func TestWebSocketRequiresToken(t *testing.T) {
	a := newApp(t)
	r := a.do(http.MethodGet, "/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, r.Code)
}
