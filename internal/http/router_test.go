package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_market/internal/auth"
	"github.com/fjod/go_market/internal/checkout"
	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/fulfillment"
	"github.com/fjod/go_market/internal/localstore"
	"github.com/fjod/go_market/internal/logger"
	"github.com/fjod/go_market/internal/redemption"
	"github.com/fjod/go_market/internal/referral"
	"github.com/fjod/go_market/internal/session"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCatalog struct {
	products map[string]*domain.Product
}

func (c *mockCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := c.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

type memOrders struct {
	m       sync.Mutex
	created []*domain.Order
}

func (o *memOrders) CreateOrder(_ context.Context, order *domain.Order) error {
	o.m.Lock()
	defer o.m.Unlock()
	o.created = append(o.created, order)
	return nil
}

type memCounter struct{}

func (memCounter) IncrementSales(context.Context, string) error { return nil }

type memCreditor struct {
	m       sync.Mutex
	credits map[string]decimal.Decimal
}

func (c *memCreditor) CreditPoints(_ context.Context, userID string, amount decimal.Decimal) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.credits[userID] = c.credits[userID].Add(amount)
	return nil
}

type memPublisher struct{}

func (memPublisher) PublishOrderPlaced(context.Context, *domain.Order) error { return nil }

type mockNotifier struct {
	m      sync.Mutex
	levels []string
}

func (n *mockNotifier) record(level string) {
	n.m.Lock()
	defer n.m.Unlock()
	n.levels = append(n.levels, level)
}

func (n *mockNotifier) Success(context.Context, string, string) { n.record("success") }
func (n *mockNotifier) Warning(context.Context, string, string) { n.record("warning") }
func (n *mockNotifier) Error(context.Context, string, string)   { n.record("error") }

type mockOrders struct {
	who   domain.Identity
	order *domain.Order
	err   error
}

func (o *mockOrders) List(_ context.Context, who domain.Identity) ([]*domain.Order, error) {
	o.who = who
	if o.err != nil {
		return nil, o.err
	}
	return []*domain.Order{o.order}, nil
}

func (o *mockOrders) Get(_ context.Context, who domain.Identity, id uuid.UUID) (*domain.Order, error) {
	o.who = who
	if o.err != nil {
		return nil, o.err
	}
	if o.order == nil || o.order.ID != id {
		return nil, domain.ErrNotFound
	}
	return o.order, nil
}

func (o *mockOrders) SetStatus(_ context.Context, who domain.Identity, _ uuid.UUID, to domain.OrderStatus) (*domain.Order, error) {
	o.who = who
	if !who.IsOperator() {
		return nil, domain.ErrForbidden
	}
	o.order.Status = to
	return o.order, nil
}

func (o *mockOrders) AttachDelivery(_ context.Context, who domain.Identity, _ uuid.UUID, _, _ string) (*domain.Order, error) {
	o.who = who
	return o.order, o.err
}

type mockRedemptions struct {
	submitErr error
}

func (m *mockRedemptions) Submit(_ context.Context, user domain.Identity, p redemption.SubmitParams) (*domain.RedemptionRequest, error) {
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &domain.RedemptionRequest{ID: uuid.New(), UserID: user.UserID, Amount: p.Amount, Status: domain.RedemptionStatusPending}, nil
}

func (m *mockRedemptions) SetStatus(context.Context, domain.Identity, uuid.UUID, domain.RedemptionStatus) (*domain.RedemptionRequest, error) {
	return nil, domain.ErrInvalidTransition
}

func (m *mockRedemptions) List(context.Context, domain.Identity) ([]*domain.RedemptionRequest, error) {
	return []*domain.RedemptionRequest{}, nil
}

func (m *mockRedemptions) ListAll(_ context.Context, who domain.Identity) ([]*domain.RedemptionRequest, error) {
	if !who.IsOperator() {
		return nil, domain.ErrForbidden
	}
	return []*domain.RedemptionRequest{}, nil
}

func (m *mockRedemptions) Balance(_ context.Context, user domain.Identity) (domain.UserBalance, error) {
	return domain.UserBalance{UserID: user.UserID, Points: decimal.NewFromInt(2000)}, nil
}

type testServer struct {
	handler     http.Handler
	tokens      *auth.JWTProvider
	orders      *memOrders
	credits     *memCreditor
	notifier    *mockNotifier
	reviewed    *mockOrders
	redemptions *mockRedemptions
}

func strPtr(s string) *string { return &s }

func newTestServer(t *testing.T) *testServer {
	local, err := localstore.Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })

	log := logger.NewNop()
	sessions := session.NewManager(session.EngineDeps{Local: local, Log: log})
	t.Cleanup(sessions.Close)

	ts := &testServer{
		tokens:      auth.NewJWTProvider("test-secret", time.Hour),
		orders:      &memOrders{},
		credits:     &memCreditor{credits: make(map[string]decimal.Decimal)},
		notifier:    &mockNotifier{},
		reviewed:    &mockOrders{order: &domain.Order{ID: uuid.New(), Status: domain.OrderStatusPending}},
		redemptions: &mockRedemptions{},
	}
	coordinator := fulfillment.NewCoordinator(ts.orders, memCounter{}, ts.credits, memPublisher{}, log)

	ts.handler = NewRouter(Deps{
		Auth:     ts.tokens,
		Sessions: sessions,
		Catalog: &mockCatalog{products: map[string]*domain.Product{
			"p1": {ID: "p1", SellerID: strPtr("s1"), Title: "Beat", Price: decimal.NewFromInt(12000)},
			"p2": {ID: "p2", SellerID: strPtr("s2"), Title: "Pack", Price: decimal.NewFromInt(8000)},
		}},
		Referrals:   referral.NewCapturer(local, log),
		Checkouts:   checkout.NewRegistry(coordinator, log),
		Redemptions: ts.redemptions,
		Orders:      ts.reviewed,
		Notifier:    ts.notifier,
		Timeout:     5 * time.Second,
		Log:         log,
	})
	return ts
}

func (ts *testServer) token(t *testing.T, id domain.Identity) string {
	tok, err := ts.tokens.Issue(id)
	require.NoError(t, err)
	return tok
}

type call struct {
	method    string
	path      string
	body      interface{}
	sessionID string
	token     string
}

func (ts *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	if c.sessionID != "" {
		req.Header.Set(HeaderSessionID, c.sessionID)
		req.Header.Set(HeaderDeviceID, "device-"+c.sessionID)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, call{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartSession_ReferrerSticks(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, call{method: http.MethodPost, path: "/api/v1/session/start",
		body: StartSessionRequestDTO{EntryURL: "https://market.example/p/1?ref=r1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	sessionID := rec.Header().Get(HeaderSessionID)
	require.NotEmpty(t, sessionID)

	var first SessionResponse
	decode(t, rec, &first)
	require.NotNil(t, first.ReferrerID)
	assert.Equal(t, "r1", *first.ReferrerID)
	assert.Equal(t, "anonymous", first.Mode)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/session/start", sessionID: sessionID,
		body: StartSessionRequestDTO{EntryURL: "https://market.example/?ref=r2"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var second SessionResponse
	decode(t, rec, &second)
	require.NotNil(t, second.ReferrerID)
	assert.Equal(t, "r1", *second.ReferrerID)
}

func TestEndSession_ForgetsReferrer(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, call{method: http.MethodPost, path: "/api/v1/session/start", sessionID: "s1",
		body: StartSessionRequestDTO{EntryURL: "https://market.example/?ref=r1"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/session/end", sessionID: "s1"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/session/start", sessionID: "s1",
		body: StartSessionRequestDTO{EntryURL: "https://market.example/"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var resumed SessionResponse
	decode(t, rec, &resumed)
	assert.Nil(t, resumed.ReferrerID)
}

func TestCart_AddIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	add := call{method: http.MethodPost, path: "/api/v1/cart/items", sessionID: "s1", body: ProductRequestDTO{ProductID: "p1"}}

	rec := ts.do(t, add)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, add)
	assert.Equal(t, http.StatusOK, rec.Code)
	var cart CartDTO
	decode(t, rec, &cart)
	assert.Len(t, cart.Lines, 1)
	assert.True(t, decimal.NewFromInt(12000).Equal(cart.Total))

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", sessionID: "s1", body: ProductRequestDTO{ProductID: "p2"}})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, call{method: http.MethodDelete, path: "/api/v1/cart/items/p1", sessionID: "s1"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &cart)
	assert.True(t, decimal.NewFromInt(8000).Equal(cart.Total))
}

func TestEndSession_DropsState(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/method", sessionID: "s1",
		body: SelectMethodRequestDTO{Method: domain.PaymentMethodCard}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/session/end", sessionID: "s1"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/v1/checkout", sessionID: "s1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var view checkout.View
	decode(t, rec, &view)
	assert.Equal(t, checkout.StateMethodSelection, view.State)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/session/end"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCart_UnknownProduct(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", sessionID: "s1", body: ProductRequestDTO{ProductID: "nope"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", sessionID: "s1", body: ProductRequestDTO{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFavorites_Toggle(t *testing.T) {
	ts := newTestServer(t)
	toggle := call{method: http.MethodPost, path: "/api/v1/favorites/toggle", sessionID: "s1", body: ProductRequestDTO{ProductID: "p2"}}

	var resp ToggleFavoriteResponse
	rec := ts.do(t, toggle)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.True(t, resp.Favorited)
	assert.Len(t, resp.Favorites, 1)

	rec = ts.do(t, toggle)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.False(t, resp.Favorited)
	assert.Empty(t, resp.Favorites)
}

func TestCheckout_FullFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, call{method: http.MethodPost, path: "/api/v1/session/start",
		body: StartSessionRequestDTO{EntryURL: "https://market.example/?ref=r1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	sid := rec.Header().Get(HeaderSessionID)

	for _, id := range []string{"p1", "p2"} {
		rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", sessionID: sid, body: ProductRequestDTO{ProductID: id}})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/method", sessionID: sid,
		body: SelectMethodRequestDTO{Method: domain.PaymentMethodMTNMoMo}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/details", sessionID: sid,
		body: map[string]string{"phone": "0772 123 456", "display_name": "Guest", "contact": "0772123456"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/submit", sessionID: sid})
	require.Equal(t, http.StatusCreated, rec.Code)

	var view checkout.View
	decode(t, rec, &view)
	assert.Equal(t, checkout.StateSuccess, view.State)
	require.NotNil(t, view.Order)
	assert.True(t, decimal.NewFromInt(20000).Equal(view.Order.Total))
	assert.True(t, decimal.NewFromInt(2000).Equal(view.Order.CommissionAmount))
	assert.Equal(t, domain.GuestBuyerID, view.Order.BuyerID)

	require.Len(t, ts.orders.created, 1)
	assert.True(t, decimal.NewFromInt(2000).Equal(ts.credits.credits["r1"]))
	assert.Equal(t, []string{"success"}, ts.notifier.levels)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/v1/cart", sessionID: sid})
	var cart CartDTO
	decode(t, rec, &cart)
	assert.Empty(t, cart.Lines)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/close", sessionID: sid})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.Equal(t, checkout.StateMethodSelection, view.State)
}

func TestCheckout_ValidationAndConflicts(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/method", sessionID: "s1",
		body: SelectMethodRequestDTO{}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var errResp ErrorResponse
	decode(t, rec, &errResp)
	assert.Contains(t, errResp.Fields, "method")

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/back", sessionID: "s1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/method", sessionID: "s1",
		body: SelectMethodRequestDTO{Method: domain.PaymentMethodCard}})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/details", sessionID: "s1",
		body: map[string]string{"card_holder": "Amina K", "card_number": "4111 1111 1111 1111", "card_expiry": "12/29", "card_cvv": "123"}})
	require.Equal(t, http.StatusOK, rec.Code)

	// nothing in the cart
	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/submit", sessionID: "s1"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	decode(t, rec, &errResp)
	assert.Contains(t, errResp.Fields, "cart")
	assert.Empty(t, ts.notifier.levels)
}

func TestAuth_TokenHandling(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, call{method: http.MethodGet, path: "/api/v1/orders"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/v1/orders", token: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	seller := domain.Identity{UserID: "s1", Role: domain.RoleSeller}
	rec = ts.do(t, call{method: http.MethodGet, path: "/api/v1/orders", token: ts.token(t, seller)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", ts.reviewed.who.UserID)
	assert.Equal(t, domain.RoleSeller, ts.reviewed.who.Role)
}

func TestOrders_Routes(t *testing.T) {
	ts := newTestServer(t)
	buyer := ts.token(t, domain.Identity{UserID: "u1"})
	operator := ts.token(t, domain.Identity{UserID: "op1", Role: domain.RoleOperator})
	id := ts.reviewed.order.ID.String()

	rec := ts.do(t, call{method: http.MethodGet, path: "/api/v1/orders/not-a-uuid", token: buyer})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/v1/orders/" + uuid.NewString(), token: buyer})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/v1/orders/" + id, token: buyer})
	assert.Equal(t, http.StatusOK, rec.Code)

	status := OrderStatusRequestDTO{Status: domain.OrderStatusApproved}
	rec = ts.do(t, call{method: http.MethodPut, path: "/api/v1/orders/" + id + "/status", token: buyer, body: status})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, call{method: http.MethodPut, path: "/api/v1/orders/" + id + "/status", token: operator, body: status})
	require.Equal(t, http.StatusOK, rec.Code)
	var order domain.Order
	decode(t, rec, &order)
	assert.Equal(t, domain.OrderStatusApproved, order.Status)
}

func TestRedemptions_Routes(t *testing.T) {
	ts := newTestServer(t)
	user := ts.token(t, domain.Identity{UserID: "u1"})

	rec := ts.do(t, call{method: http.MethodGet, path: "/api/v1/balance", token: user})
	require.Equal(t, http.StatusOK, rec.Code)
	var balance domain.UserBalance
	decode(t, rec, &balance)
	assert.True(t, decimal.NewFromInt(2000).Equal(balance.Points))

	body := map[string]interface{}{"amount": "500", "payout_contact": "0772123456", "network": "mtn_momo"}
	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/redemptions", token: user, body: body})
	assert.Equal(t, http.StatusCreated, rec.Code)

	ts.redemptions.submitErr = domain.NewValidationError("amount", "amount exceeds available balance")
	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/redemptions", token: user, body: body})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/v1/admin/redemptions", token: user})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, call{method: http.MethodPut, path: "/api/v1/admin/redemptions/" + uuid.NewString() + "/status",
		token: user, body: RedemptionStatusRequestDTO{Status: domain.RedemptionStatusApproved}})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleError_Mapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", domain.NewValidationError("x", "bad"), http.StatusUnprocessableEntity},
		{"token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"transition", domain.ErrInvalidTransition, http.StatusConflict},
		{"in progress", checkout.ErrSubmitInProgress, http.StatusConflict},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", fulfillment.ErrOrderNotCreated, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleError(logger.NewNop(), rec, tt.err)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}
