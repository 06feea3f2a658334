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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"forno/backend/internal/domain"
	"forno/backend/internal/service"
	"forno/backend/internal/store/memory"
)

const (
	adminEmail    = "admin@forno.test"
	adminPassword = "admin-pass-123"
)

// newTestAPI builds a full API over an in-memory store seeded with an admin
// and the demo catalogue, so handler tests exercise the complete request path.
func newTestAPI(t *testing.T, opts ...Option) *API {
	t.Helper()

	logger := zaptest.NewLogger(t)
	clock := func() time.Time { return time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC) }
	svc := service.New(memory.New(), logger, service.WithClock(clock), service.WithLocation(time.UTC))
	err := svc.Bootstrap(context.Background(), service.BootstrapOptions{
		Admin:        &domain.User{Name: "Pietro", Email: adminEmail, PasswordHash: mustHashPassword(t, adminPassword)},
		DemoProducts: true,
	})
	require.NoError(t, err)

	auth := NewAuthManager("test-secret-key", time.Hour, svc, logger)
	return New(svc, auth, "*", logger, opts...)
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, handler http.Handler, email string, password string) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp domain.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["ok"])
}

func TestHandleLogin(t *testing.T) {
	handler := newTestAPI(t).Handler()
	login(t, handler, adminEmail, adminPassword)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    adminEmail,
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "not-an-email",
		"password": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleProductsRequiresAuth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProductLifecycle(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, adminEmail, adminPassword)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, map[string]any{
		"name": "Pão de Queijo", "price": "3.50", "quantity": 12, "category": "Salgados",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", token, map[string]any{
		"name": "pão de queijo", "price": "3.50", "quantity": 1, "category": "Salgados",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", token, map[string]any{
		"name": "Sem Categoria", "price": "1", "quantity": 1, "unexpected": true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products/6/stock", token, map[string]any{"amount": 3, "date": "2025-03-09"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	product := decodeBody(t, rec)["product"].(map[string]any)
	assert.Equal(t, float64(15), product["quantity"])

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products/99/stock", token, map[string]any{"amount": 3})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products/abc/stock", token, map[string]any{"amount": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/products/6", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/movements", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	movements := decodeBody(t, rec)["movements"].([]any)
	assert.Len(t, movements, 8)
	assert.Equal(t, "deletion", movements[0].(map[string]any)["kind"])
}

func TestPosSaleInsufficientStockReportsShortage(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, adminEmail, adminPassword)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"line_items": []map[string]any{{"product_id": 2, "unit_price": "15.00", "quantity": 9}},
		"total":      "135.00",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["product_id"])
	assert.Equal(t, float64(8), body["available"])
	assert.Equal(t, float64(9), body["requested"])

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"line_items":      []map[string]any{{"product_id": 2, "unit_price": "15.00", "quantity": 3}},
		"customer_tax_id": "123.456.789-00",
		"total":           "45.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/loyalty", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	accounts := decodeBody(t, rec)["accounts"].([]any)
	require.Len(t, accounts, 1)
	assert.Equal(t, float64(4), accounts[0].(map[string]any)["points"])

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/summary", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeBody(t, rec)
	assert.Equal(t, "45", summary["total_sales"])
	assert.Equal(t, float64(1), summary["active_customers"])
}

func TestCustomerPreSaleOrderFlow(t *testing.T) {
	handler := newTestAPI(t).Handler()
	adminToken := login(t, handler, adminEmail, adminPassword)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/presales", adminToken, map[string]any{
		"start_date": "2025-03-10", "end_date": "2025-03-20", "discount_percent": "20",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/presales", adminToken, map[string]any{
		"start_date": "10/03/2025", "end_date": "2025-03-20", "discount_percent": "20",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"name": "Maria", "email": "maria@forno.test", "tax_id": "987.654.321-00", "password": "maria-pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	customerToken := login(t, handler, "maria@forno.test", "maria-pass")

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/presales/active", customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, decodeBody(t, rec)["presale"])

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders", customerToken, map[string]any{
		"order_kind":     "pre-sale",
		"payment_method": "pix",
		"line_items":     []map[string]any{{"product_id": 5, "unit_price": "10", "quantity": 3}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decodeBody(t, rec)["order"].(map[string]any)
	assert.Equal(t, "24", order["total"])
	deliveryPath := fmt.Sprintf("/api/v1/orders/%d/delivery", int64(order["id"].(float64)))

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", customerToken, map[string]any{
		"name": "X", "price": "1", "quantity": 1, "category": "Y",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, deliveryPath, customerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, deliveryPath, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody(t, rec)["order"].(map[string]any)["status"].(map[string]any)
	assert.Equal(t, true, status["delivered"])

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/1/refund", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/online-orders", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeBody(t, rec)
	assert.Equal(t, float64(1), report["total_count"])
	assert.Equal(t, float64(1), report["delivered"])

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/orders", customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["orders"].([]any), 1)
}

func TestHRManagesOrders(t *testing.T) {
	handler := newTestAPI(t).Handler()
	adminToken := login(t, handler, adminEmail, adminPassword)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/orders", adminToken, map[string]any{
		"order_kind":     "immediate",
		"payment_method": "cash",
		"line_items":     []map[string]any{{"product_id": 3, "unit_price": "5.00", "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	orderID := int64(decodeBody(t, rec)["order"].(map[string]any)["id"].(float64))

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/users", adminToken, map[string]any{
		"name": "Helena", "email": "helena@forno.test", "password": "helena-pass", "kind": "hr",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	hrToken := login(t, handler, "helena@forno.test", "helena-pass")

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/delivery", orderID), hrToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	status := decodeBody(t, rec)["order"].(map[string]any)["status"].(map[string]any)
	assert.Equal(t, false, status["delivered"])

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/migrate-status", hrToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodDelete, fmt.Sprintf("/api/v1/orders/%d", orderID), hrToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/presales", hrToken, map[string]any{
		"start_date": "2025-03-10", "end_date": "2025-03-20", "discount_percent": "10",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStockCheckRejectsNonPositiveQuantity(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, adminEmail, adminPassword)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/stock/check", token, map[string]any{"product_id": 1, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/stock/check", token, map[string]any{"product_id": 1, "quantity": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["available"])
}

func TestUserManagement(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, adminEmail, adminPassword)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/users", token, map[string]any{
		"name": "Ana", "email": "ana@forno.test", "password": "ana-pass", "kind": "cashier",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decodeBody(t, rec)["user"].(map[string]any)
	_, leaked := user["password_hash"]
	assert.False(t, leaked)

	cashierToken := login(t, handler, "ana@forno.test", "ana-pass")
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/users", cashierToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/users/1", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/users/2", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["users"].([]any), 1)
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, adminEmail, adminPassword)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/orders/migrate-status", token, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/migrate-status", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeBody(t, rec)["migrated"])
}
