package httpapi

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	assert.Equal(t, "nosniff", res.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", res.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, res.Header().Get("Referrer-Policy"))
	assert.True(t, strings.HasPrefix(res.Header().Get("X-Request-ID"), "req-"))
}

func TestMiddlewareKeepsCallerRequestID(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	assert.Equal(t, "trace-42", res.Header().Get("X-Request-ID"))
}

func TestLoginRateLimitReturns429(t *testing.T) {
	handler := newTestAPI(t).Handler()
	body := `{"email":"admin@forno.test","password":"wrong-pass"}`

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		res := httptest.NewRecorder()

		handler.ServeHTTP(res, req)

		if i < 5 {
			require.Equal(t, http.StatusUnauthorized, res.Code, "attempt %d", i+1)
		} else {
			require.Equal(t, http.StatusTooManyRequests, res.Code)
		}
	}
}

func postLogin(handler http.Handler, password string) int {
	body := fmt.Sprintf(`{"email":"admin@forno.test","password":%q}`, password)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.7:41000"
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res.Code
}

func TestLoginLimitIsConfigurable(t *testing.T) {
	handler := newTestAPI(t, WithLoginLimit(2, time.Minute)).Handler()

	assert.Equal(t, http.StatusUnauthorized, postLogin(handler, "wrong-pass"))
	assert.Equal(t, http.StatusUnauthorized, postLogin(handler, "wrong-pass"))
	assert.Equal(t, http.StatusTooManyRequests, postLogin(handler, adminPassword))
}

func TestSuccessfulLoginClearsAttempts(t *testing.T) {
	handler := newTestAPI(t, WithLoginLimit(2, time.Minute)).Handler()

	assert.Equal(t, http.StatusUnauthorized, postLogin(handler, "wrong-pass"))
	assert.Equal(t, http.StatusOK, postLogin(handler, adminPassword))
	assert.Equal(t, http.StatusUnauthorized, postLogin(handler, "wrong-pass"))
	assert.Equal(t, http.StatusUnauthorized, postLogin(handler, "wrong-pass"))
	assert.Equal(t, http.StatusTooManyRequests, postLogin(handler, "wrong-pass"))
}

func TestAttemptLimiterWindowSlides(t *testing.T) {
	limiter := newAttemptLimiter(1, time.Minute)
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("10.0.0.7"))
	assert.False(t, limiter.Allow("10.0.0.7"))
	assert.True(t, limiter.Allow("10.0.0.8"))

	now = now.Add(time.Minute + time.Second)
	assert.True(t, limiter.Allow("10.0.0.7"))
}

func TestClientKeyDropsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "[2001:db8::1]:8443"
	assert.Equal(t, "2001:db8::1", clientKey(req))

	req.RemoteAddr = "192.0.2.4"
	assert.Equal(t, "192.0.2.4", clientKey(req))
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	api := newTestAPI(t)
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"email":"%s@forno.test","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestOptionsPreflight(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/products", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.Equal(t, "*", res.Header().Get("Access-Control-Allow-Origin"))
}
