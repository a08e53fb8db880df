package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/auth"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/cart"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/catalog"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/money"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/order"

	marketHTTP "github.com/vasiliy-maslov/secondhand-marketplace/internal/handler/http"
)

type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cart.Line, error) {
	args := m.Called(ctx, userID, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Line), args.Error(1)
}

func (m *MockCartService) UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) error {
	args := m.Called(ctx, userID, lineID, quantity)
	return args.Error(0)
}

func (m *MockCartService) RemoveItem(ctx context.Context, userID, lineID uuid.UUID) error {
	args := m.Called(ctx, userID, lineID)
	return args.Error(0)
}

func (m *MockCartService) Clear(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockCartService) List(ctx context.Context, userID uuid.UUID) (*cart.View, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.View), args.Error(1)
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Checkout(ctx context.Context, id auth.Identity, req order.CheckoutRequest) (*order.Receipt, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Receipt), args.Error(1)
}

func (m *MockOrderService) History(ctx context.Context, id auth.Identity) ([]order.OrderSummary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.OrderSummary), args.Error(1)
}

func (m *MockOrderService) Detail(ctx context.Context, id auth.Identity, orderID uuid.UUID) (*order.OrderDetail, error) {
	args := m.Called(ctx, id, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.OrderDetail), args.Error(1)
}

func (m *MockOrderService) Sales(ctx context.Context, id auth.Identity) ([]order.Sale, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Sale), args.Error(1)
}

func (m *MockOrderService) Overview(ctx context.Context, id auth.Identity) (*order.Overview, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Overview), args.Error(1)
}

type testServer struct {
	router http.Handler
	carts  *MockCartService
	orders *MockOrderService
	tokens *auth.TokenManager
	ping   error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		carts:  new(MockCartService),
		orders: new(MockOrderService),
		tokens: auth.NewTokenManager("test-secret", "marketplace", time.Hour),
	}
	ts.router = marketHTTP.NewRouter(marketHTTP.RouterConfig{
		Cart:   ts.carts,
		Orders: ts.orders,
		Tokens: ts.tokens,
		Ping:   func(context.Context) error { return ts.ping },
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, id *auth.Identity, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if id != nil {
		token, err := ts.tokens.Sign(*id)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) marketHTTP.ErrorResponse {
	t.Helper()
	var resp marketHTTP.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp), "Failed to decode error response body")
	return resp
}

func identity(role auth.Role) *auth.Identity {
	return &auth.Identity{UserID: uuid.Must(uuid.NewV4()), Role: role}
}

func checkoutBody() map[string]string {
	return map[string]string{
		"full_name":        "Ada Lovelace",
		"email":            "ada@example.com",
		"phone":            "+44 20 7946 0000",
		"delivery_address": "12 St James's Square",
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	ts.ping = errors.New("db down")
	rr = ts.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAPI_RequiresBearerToken(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/v1/cart", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rr).Code)

	rr = ts.do(t, http.MethodGet, "/api/v1/cart", nil, nil, "Authorization", "Bearer garbage")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	ts.carts.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestCheckout_Success(t *testing.T) {
	ts := newTestServer(t)
	buyer := identity(auth.RoleUser)

	receipt := &order.Receipt{
		OrderID:         uuid.Must(uuid.NewV4()),
		OrderNumber:     "ECO-1718000000123-AB12C",
		TotalAmount:     money.RequireAmount("129.99"),
		CustomerName:    "Ada Lovelace",
		DeliveryAddress: "12 St James's Square",
		ItemCount:       3,
	}
	ts.orders.On("Checkout", mock.Anything, *buyer, mock.MatchedBy(func(req order.CheckoutRequest) bool {
		return req.Email == "ada@example.com" && req.IdempotencyKey == "retry-1"
	})).Return(receipt, nil).Once()

	rr := ts.do(t, http.MethodPost, "/api/v1/orders/checkout", buyer, checkoutBody(), "Idempotency-Key", "retry-1")
	require.Equal(t, http.StatusCreated, rr.Code)

	var got map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	want := map[string]any{
		"order_id":         receipt.OrderID.String(),
		"order_number":     "ECO-1718000000123-AB12C",
		"total_amount":     "129.99",
		"customer_name":    "Ada Lovelace",
		"delivery_address": "12 St James's Square",
		"item_count":       float64(3),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("receipt mismatch (-want +got):\n%s", diff)
	}
	ts.orders.AssertExpectations(t)
}

func TestCheckout_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "validation", err: &order.ValidationError{Fields: map[string]string{"email": "required"}}, wantStatus: http.StatusBadRequest, wantCode: "validation_failed"},
		{name: "empty_cart", err: order.ErrEmptyCart, wantStatus: http.StatusUnprocessableEntity, wantCode: "empty_cart"},
		{name: "lost_race", err: order.ErrProductNoLongerAvailable, wantStatus: http.StatusConflict, wantCode: "product_no_longer_available"},
		{name: "persistence", err: errors.Join(order.ErrPersistence, errors.New("pq: secret detail")), wantStatus: http.StatusInternalServerError, wantCode: "persistence_failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			buyer := identity(auth.RoleUser)
			ts.orders.On("Checkout", mock.Anything, *buyer, mock.Anything).Return(nil, tt.err).Once()

			rr := ts.do(t, http.MethodPost, "/api/v1/orders/checkout", buyer, checkoutBody())
			require.Equal(t, tt.wantStatus, rr.Code)

			resp := decodeError(t, rr)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotContains(t, resp.Error, "secret detail")
			if tt.name == "validation" {
				assert.Equal(t, map[string]string{"email": "required"}, resp.Details)
			}
		})
	}
}

func TestCheckout_RejectsUnknownFields(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/v1/orders/checkout", identity(auth.RoleUser), `{"full_name":"x","coupon":"FREE"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_payload", decodeError(t, rr).Code)
	ts.orders.AssertNotCalled(t, "Checkout", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderDetail(t *testing.T) {
	ts := newTestServer(t)
	buyer := identity(auth.RoleUser)
	orderID := uuid.Must(uuid.NewV4())

	rr := ts.do(t, http.MethodGet, "/api/v1/orders/not-a-uuid", buyer, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	ts.orders.On("Detail", mock.Anything, *buyer, orderID).Return(nil, order.ErrOrderNotFound).Once()
	rr = ts.do(t, http.MethodGet, "/api/v1/orders/"+orderID.String(), buyer, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	other := uuid.Must(uuid.NewV4())
	ts.orders.On("Detail", mock.Anything, *buyer, other).Return(nil, auth.ErrForbidden).Once()
	rr = ts.do(t, http.MethodGet, "/api/v1/orders/"+other.String(), buyer, nil)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestOrderHistory(t *testing.T) {
	ts := newTestServer(t)
	buyer := identity(auth.RoleUser)

	ts.orders.On("History", mock.Anything, *buyer).Return([]order.OrderSummary{
		{OrderNumber: "ECO-1-AAAAA", ItemCount: 2, ProductTitles: "Lamp, Chair"},
	}, nil).Once()

	rr := ts.do(t, http.MethodGet, "/api/v1/orders", buyer, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var got []order.OrderSummary
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "Lamp, Chair", got[0].ProductTitles)
}

func TestRoleGates(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/v1/sales", identity(auth.RoleUser), nil)
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "forbidden", decodeError(t, rr).Code)

	rr = ts.do(t, http.MethodGet, "/api/v1/admin/overview", identity(auth.RoleSeller), nil)
	require.Equal(t, http.StatusForbidden, rr.Code)

	ts.orders.AssertNotCalled(t, "Sales", mock.Anything, mock.Anything)
	ts.orders.AssertNotCalled(t, "Overview", mock.Anything, mock.Anything)

	seller := identity(auth.RoleSeller)
	ts.orders.On("Sales", mock.Anything, *seller).Return([]order.Sale{}, nil).Once()
	rr = ts.do(t, http.MethodGet, "/api/v1/sales", seller, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	admin := identity(auth.RoleAdmin)
	ts.orders.On("Overview", mock.Anything, *admin).Return(&order.Overview{Orders: 4}, nil).Once()
	rr = ts.do(t, http.MethodGet, "/api/v1/admin/overview", admin, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	ts.orders.AssertExpectations(t)
}

func TestCart_AddItem(t *testing.T) {
	ts := newTestServer(t)
	buyer := identity(auth.RoleUser)
	productID := uuid.Must(uuid.NewV4())

	line := &cart.Line{ID: uuid.Must(uuid.NewV4()), UserID: buyer.UserID, ProductID: productID, Quantity: 1, Price: money.RequireAmount("12.50")}
	ts.carts.On("AddItem", mock.Anything, buyer.UserID, productID, 0).Return(line, nil).Once()

	rr := ts.do(t, http.MethodPost, "/api/v1/cart/items", buyer, map[string]any{"product_id": productID.String()})
	require.Equal(t, http.StatusCreated, rr.Code)

	var got cart.Line
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, line.ID, got.ID)
	assert.True(t, line.Price.Equal(got.Price))
	ts.carts.AssertExpectations(t)
}

func TestCart_AddItem_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "unknown_product", err: catalog.ErrProductNotFound, wantStatus: http.StatusNotFound},
		{name: "sold", err: catalog.ErrProductUnavailable, wantStatus: http.StatusConflict},
		{name: "own_listing", err: cart.ErrSelfPurchase, wantStatus: http.StatusUnprocessableEntity},
		{name: "negative_quantity", err: cart.ErrInvalidQuantity, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			buyer := identity(auth.RoleUser)
			ts.carts.On("AddItem", mock.Anything, buyer.UserID, mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			rr := ts.do(t, http.MethodPost, "/api/v1/cart/items", buyer, map[string]any{"product_id": uuid.Must(uuid.NewV4()).String(), "quantity": 1})
			require.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestCart_AddItem_MissingProduct(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/v1/cart/items", identity(auth.RoleUser), map[string]any{"quantity": 2})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	resp := decodeError(t, rr)
	assert.Equal(t, "validation_failed", resp.Code)
	assert.Contains(t, resp.Details, "product_id")
	ts.carts.AssertNotCalled(t, "AddItem", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCart_UpdateQuantity(t *testing.T) {
	ts := newTestServer(t)
	buyer := identity(auth.RoleUser)
	lineID := uuid.Must(uuid.NewV4())

	ts.carts.On("UpdateQuantity", mock.Anything, buyer.UserID, lineID, 0).Return(nil).Once()
	rr := ts.do(t, http.MethodPatch, "/api/v1/cart/items/"+lineID.String(), buyer, map[string]any{"quantity": 0})
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.do(t, http.MethodPatch, "/api/v1/cart/items/"+lineID.String(), buyer, map[string]any{})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	missing := uuid.Must(uuid.NewV4())
	ts.carts.On("UpdateQuantity", mock.Anything, buyer.UserID, missing, 3).Return(cart.ErrLineNotFound).Once()
	rr = ts.do(t, http.MethodPatch, "/api/v1/cart/items/"+missing.String(), buyer, map[string]any{"quantity": 3})
	require.Equal(t, http.StatusNotFound, rr.Code)
	ts.carts.AssertExpectations(t)
}

func TestCart_ListRemoveClear(t *testing.T) {
	ts := newTestServer(t)
	buyer := identity(auth.RoleUser)
	lineID := uuid.Must(uuid.NewV4())

	view := cart.NewView([]cart.Line{{ProductID: uuid.Must(uuid.NewV4()), Quantity: 2, Price: money.RequireAmount("20.00")}})
	ts.carts.On("List", mock.Anything, buyer.UserID).Return(&view, nil).Once()
	ts.carts.On("RemoveItem", mock.Anything, buyer.UserID, lineID).Return(nil).Once()
	ts.carts.On("Clear", mock.Anything, buyer.UserID).Return(nil).Once()

	rr := ts.do(t, http.MethodGet, "/api/v1/cart", buyer, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var got struct {
		Total     string `json:"total"`
		ItemCount int    `json:"item_count"`
		Lines     []struct {
			Price string `json:"price"`
		} `json:"lines"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, 2, got.ItemCount)
	assert.Equal(t, "40.00", got.Total, "money keeps two places on the wire")
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "20.00", got.Lines[0].Price)

	rr = ts.do(t, http.MethodDelete, "/api/v1/cart/items/"+lineID.String(), buyer, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.do(t, http.MethodDelete, "/api/v1/cart", buyer, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	ts.carts.AssertExpectations(t)
}
