package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suriekke/shopeasy2-sub000/internal/auth"
	"github.com/suriekke/shopeasy2-sub000/internal/cart"
	"github.com/suriekke/shopeasy2-sub000/internal/catalog"
	"github.com/suriekke/shopeasy2-sub000/internal/metrics"
	"github.com/suriekke/shopeasy2-sub000/internal/models"
	"github.com/suriekke/shopeasy2-sub000/internal/notify"
	"github.com/suriekke/shopeasy2-sub000/internal/orders"
	"github.com/suriekke/shopeasy2-sub000/internal/pricing"
	"github.com/suriekke/shopeasy2-sub000/internal/store/memory"
)

type capturingSender struct {
	codes map[string]string
}

func (c *capturingSender) Send(ctx context.Context, phone, code string) error {
	c.codes[phone] = code
	return nil
}

type testServer struct {
	handler       http.Handler
	store         *memory.Store
	sender        *capturingSender
	customerToken string
	adminToken    string
	customer      *models.User
}

func newTestServer(t *testing.T, otpPerMinute int) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := memory.New()
	sessions := auth.NewSessionStore(rdb, time.Hour)
	sender := &capturingSender{codes: map[string]string{}}
	authSvc := auth.NewService(auth.NewOTPStore(rdb, time.Minute, 5), sessions, st.Users(), sender, 6, nil)

	engine := orders.NewEngine(st, pricing.FlatRate{TaxRate: decimal.Zero, ShippingFee: decimal.Zero}, notify.NewLogSink(nil), orders.Options{})

	handler := NewRouter(Deps{
		Metrics:      metrics.New(prometheus.NewRegistry()),
		Store:        st,
		Catalog:      catalog.NewService(st.Catalog(), nil),
		Cart:         cart.NewService(st, nil),
		Orders:       engine,
		Auth:         authSvc,
		OTPPerMinute: otpPerMinute,
	})

	ctx := context.Background()
	customer := st.CreateUser("+919800000001", "Asha", models.RoleCustomer)
	admin := st.CreateUser("+919800000002", "Ops", models.RoleAdmin)
	customerSession, err := sessions.Create(ctx, customer)
	require.NoError(t, err)
	adminSession, err := sessions.Create(ctx, admin)
	require.NoError(t, err)

	return &testServer{
		handler:       handler,
		store:         st,
		sender:        sender,
		customerToken: customerSession.Token,
		adminToken:    adminSession.Token,
		customer:      customer,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func (s *testServer) product(t *testing.T, sku string, price int64, stock int) *models.Product {
	t.Helper()
	p := &models.Product{SKU: sku, Name: "Product " + sku, Price: decimal.NewFromInt(price), StockQuantity: stock, IsActive: true}
	require.NoError(t, s.store.Catalog().CreateProduct(context.Background(), p))
	return p
}

func (s *testServer) stock(t *testing.T, id int64) int {
	t.Helper()
	p, err := s.store.Catalog().GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func addressBody() map[string]any {
	return map[string]any{
		"shipping_address": map[string]any{
			"name":        "Asha Rao",
			"phone":       "+919800000001",
			"line1":       "12 MG Road",
			"city":        "Bengaluru",
			"state":       "KA",
			"postal_code": "560001",
			"country":     "IN",
		},
	}
}

type orderBody struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	LegacyStatus string          `json:"legacy_status"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Total        decimal.Decimal `json:"total"`
	Items        []struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	} `json:"items"`
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, 0)

	rec, env := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	s.handler.ServeHTTP(mrec, req)
	assert.Equal(t, http.StatusOK, mrec.Code)
	assert.Contains(t, mrec.Body.String(), "shopeasy_http_request_duration_seconds")
}

func TestCartRequiresSession(t *testing.T) {
	s := newTestServer(t, 0)

	rec, env := s.do(t, http.MethodGet, "/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	rec, env = s.do(t, http.MethodGet, "/cart", "not-a-session", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestCheckoutFlow(t *testing.T) {
	s := newTestServer(t, 0)
	a := s.product(t, "A", 50, 10)
	b := s.product(t, "B", 100, 5)

	rec, _ := s.do(t, http.MethodPost, "/cart/items", s.customerToken, map[string]any{"product_id": a.ID, "quantity": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = s.do(t, http.MethodPost, "/cart/items", s.customerToken, map[string]any{"product_id": a.ID, "quantity": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = s.do(t, http.MethodPost, "/cart/items", s.customerToken, map[string]any{"product_id": b.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := s.do(t, http.MethodGet, "/cart", s.customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.CartSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	require.Len(t, snap.Lines, 2)
	assert.Equal(t, 2, snap.Lines[0].Quantity)
	assert.True(t, snap.Subtotal.Equal(decimal.NewFromInt(200)))

	rec, env = s.do(t, http.MethodPost, "/orders", s.customerToken, addressBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order orderBody
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, "pending", order.Status)
	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(200)))
	assert.Len(t, order.Items, 2)
	assert.Equal(t, 8, s.stock(t, a.ID))
	assert.Equal(t, 4, s.stock(t, b.ID))

	rec, env = s.do(t, http.MethodGet, "/cart", s.customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Empty(t, snap.Lines)

	rec, env = s.do(t, http.MethodGet, "/orders", s.customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items   []orderBody `json:"items"`
		HasMore bool        `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, order.ID, page.Items[0].ID)

	rec, env = s.do(t, http.MethodPost, "/orders/"+order.ID+"/cancel", s.customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, "cancelled", order.Status)
	assert.Equal(t, 10, s.stock(t, a.ID))
	assert.Equal(t, 5, s.stock(t, b.ID))
}

func TestCheckoutErrors(t *testing.T) {
	s := newTestServer(t, 0)
	a := s.product(t, "A", 50, 10)

	rec, env := s.do(t, http.MethodPost, "/orders", s.customerToken, addressBody())
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EMPTY_CART", env.Error.Code)

	rec, _ = s.do(t, http.MethodPost, "/cart/items", s.customerToken, map[string]any{"product_id": a.ID, "quantity": 20})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env = s.do(t, http.MethodPost, "/orders", s.customerToken, addressBody())
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", env.Error.Code)
	assert.EqualValues(t, a.ID, env.Error.Details["product_id"])
	assert.Equal(t, 10, s.stock(t, a.ID))

	body := addressBody()
	delete(body["shipping_address"].(map[string]any), "city")
	rec, env = s.do(t, http.MethodPost, "/orders", s.customerToken, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Details, "shipping_address.city")

	rec, env = s.do(t, http.MethodPost, "/orders", s.customerToken, `{"shipping_address":{},"coupon":"FREE"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestCartValidationAndRemoval(t *testing.T) {
	s := newTestServer(t, 0)
	a := s.product(t, "A", 50, 10)

	rec, env := s.do(t, http.MethodPost, "/cart/items", s.customerToken, map[string]any{"product_id": a.ID, "quantity": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, env = s.do(t, http.MethodPost, "/cart/items", s.customerToken, map[string]any{"product_id": 999})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	rec, _ = s.do(t, http.MethodPost, "/cart/items", s.customerToken, map[string]any{"product_id": a.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, rec.Code)

	path := fmt.Sprintf("/cart/items/%d", a.ID)
	rec, env = s.do(t, http.MethodPatch, path, s.customerToken, map[string]any{"quantity": 5})
	require.Equal(t, http.StatusOK, rec.Code)
	var entry models.CartEntry
	require.NoError(t, json.Unmarshal(env.Data, &entry))
	assert.Equal(t, 5, entry.Quantity)

	for i := 0; i < 2; i++ {
		rec, env = s.do(t, http.MethodPatch, path, s.customerToken, map[string]any{"quantity": 0})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "null", string(env.Data))
	}

	rec, _ = s.do(t, http.MethodDelete, path, s.customerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodDelete, "/cart", s.customerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, http.MethodPatch, "/cart/items/abc", s.customerToken, map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestStatusTransitionsOverHTTP(t *testing.T) {
	s := newTestServer(t, 0)
	a := s.product(t, "A", 50, 10)

	rec, _ := s.do(t, http.MethodPost, "/cart/items", s.customerToken, map[string]any{"product_id": a.ID, "quantity": 3})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, env := s.do(t, http.MethodPost, "/orders", s.customerToken, addressBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var order orderBody
	require.NoError(t, json.Unmarshal(env.Data, &order))
	statusPath := "/orders/" + order.ID + "/status"

	rec, env = s.do(t, http.MethodPatch, statusPath, s.customerToken, map[string]any{"status": "confirmed"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	rec, env = s.do(t, http.MethodPatch, statusPath, s.adminToken, map[string]any{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, env = s.do(t, http.MethodPatch, statusPath, s.adminToken, map[string]any{"status": "delivered"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)
	assert.Equal(t, "pending", env.Error.Details["from"])

	for _, next := range []string{"confirmed", "preparing"} {
		rec, env = s.do(t, http.MethodPatch, statusPath, s.adminToken, map[string]any{"status": next})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, "preparing", order.Status)
	assert.Equal(t, "packed", order.LegacyStatus)

	rec, env = s.do(t, http.MethodPost, "/orders/"+order.ID+"/cancel", s.customerToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	rec, env = s.do(t, http.MethodGet, "/admin/orders?status=preparing", s.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []orderBody `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Items, 1)

	rec, _ = s.do(t, http.MethodGet, "/admin/orders", s.customerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/orders/"+order.ID, s.adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodGet, "/orders/not-a-uuid", s.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminCatalog(t *testing.T) {
	s := newTestServer(t, 0)

	rec, env := s.do(t, http.MethodPost, "/admin/categories", s.adminToken, map[string]any{"name": "Dairy", "slug": "dairy"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var category models.Category
	require.NoError(t, json.Unmarshal(env.Data, &category))

	rec, env = s.do(t, http.MethodPost, "/admin/products", s.adminToken, map[string]any{
		"sku": "MILK-1", "name": "Milk", "price": "32.50", "stock_quantity": 12, "category_id": category.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var product models.Product
	require.NoError(t, json.Unmarshal(env.Data, &product))
	assert.True(t, product.IsActive)
	assert.Equal(t, 1, product.Version)

	path := fmt.Sprintf("/admin/products/%d", product.ID)
	rec, _ = s.do(t, http.MethodPatch, path, s.adminToken, map[string]any{"version": 1, "price": "30"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = s.do(t, http.MethodPatch, path, s.adminToken, map[string]any{"version": 1, "price": "28"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONCURRENT_MODIFICATION", env.Error.Code)

	rec, env = s.do(t, http.MethodGet, fmt.Sprintf("/products?category_id=%d", category.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []models.Product `json:"items"`
		Total int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(1), page.Total)
	assert.True(t, page.Items[0].Price.Equal(decimal.NewFromInt(30)))

	rec, _ = s.do(t, http.MethodGet, fmt.Sprintf("/products/%d", product.ID), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodGet, "/categories", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/admin/categories", s.customerToken, map[string]any{"name": "X", "slug": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOTPLoginOverHTTP(t *testing.T) {
	s := newTestServer(t, 0)
	phone := "+919811111111"

	rec, _ := s.do(t, http.MethodPost, "/auth/otp/request", "", map[string]any{"phone": phone})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec, env := s.do(t, http.MethodPost, "/auth/otp/verify", "", map[string]any{"phone": phone, "code": "0000"})
	if s.sender.codes[phone] != "0000" {
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "OTP_INVALID", env.Error.Code)
	}

	rec, env = s.do(t, http.MethodPost, "/auth/otp/verify", "", map[string]any{"phone": phone, "code": s.sender.codes[phone]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var session struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, phone, session.User.Phone)

	rec, _ = s.do(t, http.MethodGet, "/cart", session.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/auth/logout", session.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodGet, "/cart", session.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOTPRateLimit(t *testing.T) {
	s := newTestServer(t, 2)
	body := map[string]any{"phone": "+919822222222"}

	for i := 0; i < 2; i++ {
		rec, _ := s.do(t, http.MethodPost, "/auth/otp/request", "", body)
		require.Equal(t, http.StatusAccepted, rec.Code)
	}
	rec, env := s.do(t, http.MethodPost, "/auth/otp/request", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", env.Error.Code)
}
