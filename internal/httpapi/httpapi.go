package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"forno/backend/internal/domain"
	"forno/backend/internal/service"
	"forno/backend/internal/store"
	"forno/backend/internal/xid"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	validate      *validator.Validate
	logger        *zap.Logger
}

// Option adjusts an API built by New.
type Option func(*API)

// WithLoginLimit caps failed login attempts per client address within window.
func WithLoginLimit(limit int, window time.Duration) Option {
	return func(a *API) {
		a.loginLimiter = newAttemptLimiter(limit, window)
	}
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, logger *zap.Logger, opts ...Option) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger.Named("http"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// attemptLimiter is a sliding-window counter of login attempts per client.
// A successful login clears the client's history.
type attemptLimiter struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	now      func() time.Time
	attempts map[string][]time.Time
}

func newAttemptLimiter(limit int, window time.Duration) *attemptLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{
		max:      max(limit, 1),
		window:   window,
		now:      time.Now,
		attempts: make(map[string][]time.Time),
	}
}

// Allow records an attempt for key and reports whether it is within the limit.
func (l *attemptLimiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := slices.DeleteFunc(l.attempts[key], func(ts time.Time) bool {
		return !ts.After(now.Add(-l.window))
	})
	if len(recent) >= l.max {
		l.attempts[key] = recent
		return false
	}
	l.attempts[key] = append(recent, now)
	return true
}

func (l *attemptLimiter) Reset(key string) {
	l.mu.Lock()
	delete(l.attempts, key)
	l.mu.Unlock()
}

// clientKey is the remote IP without its port.
func clientKey(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(remote); err == nil {
		return host
	}
	return remote
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/register", a.handleRegister)

	mux.HandleFunc("/api/v1/users", a.requireAuth(a.handleUsers, domain.PermManageUsers))
	mux.HandleFunc("/api/v1/users/{id}", a.requireAuth(a.handleUserActions, domain.PermManageUsers))

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts, domain.PermViewStock, domain.PermMakeSales, domain.PermRegisterProducts, domain.PermPlaceOrders))
	mux.HandleFunc("/api/v1/products/low-stock", a.requireAuth(a.handleLowStock, domain.PermViewStock))
	mux.HandleFunc("/api/v1/products/{id}", a.requireAuth(a.handleProductActions, domain.PermChangeStock))
	mux.HandleFunc("/api/v1/products/{id}/stock", a.requireAuth(a.handleStockIncrease, domain.PermChangeStock))
	mux.HandleFunc("/api/v1/stock/check", a.requireAuth(a.handleStockCheck, domain.PermMakeSales, domain.PermPlaceOrders))
	mux.HandleFunc("/api/v1/movements", a.requireAuth(a.handleMovements, domain.PermViewStock))

	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleSales, domain.PermMakeSales, domain.PermViewReports))

	mux.HandleFunc("/api/v1/orders", a.requireAuth(a.handleOrders, domain.PermPlaceOrders, domain.PermManagePreSales, domain.PermViewReports))
	mux.HandleFunc("/api/v1/orders/migrate-status", a.requireAuth(a.handleMigrateOrderStatus, domain.PermViewReports))
	mux.HandleFunc("/api/v1/orders/{id}", a.requireAuth(a.handleOrderActions, domain.PermViewReports))
	mux.HandleFunc("/api/v1/orders/{id}/{action}", a.requireAuth(a.handleOrderToggle, domain.PermViewReports))

	mux.HandleFunc("/api/v1/presales", a.requireAuth(a.handlePreSales, domain.PermManagePreSales))
	mux.HandleFunc("/api/v1/presales/active", a.requireAuth(a.handleActivePreSale, domain.PermManagePreSales, domain.PermPlaceOrders))
	mux.HandleFunc("/api/v1/presales/{id}", a.requireAuth(a.handlePreSaleActions, domain.PermManagePreSales))
	mux.HandleFunc("/api/v1/presales/{id}/{action}", a.requireAuth(a.handlePreSaleToggle, domain.PermManagePreSales))

	mux.HandleFunc("/api/v1/loyalty", a.requireAuth(a.handleLoyalty, domain.PermViewReports))
	mux.HandleFunc("/api/v1/reports/summary", a.requireAuth(a.handleSummary, domain.PermViewReports))
	mux.HandleFunc("/api/v1/reports/online-orders", a.requireAuth(a.handleOnlineOrdersReport, domain.PermViewReports))

	return a.withMiddleware(mux)
}

// requireAuth admits callers holding any of perms.
func (a *API) requireAuth(next http.HandlerFunc, perms ...domain.Permission) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			a.writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			a.writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(perms) > 0 && !slices.ContainsFunc(perms, actor.Can) {
			a.writeError(w, http.StatusForbidden, errors.New("permission denied"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" || len(requestID) > 128 {
			requestID = xid.New("req")
		}

		w.Header().Set("X-Request-ID", requestID)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(startedAt)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// decode reads a JSON body into dest and validates its struct tags.
func (a *API) decode(r *http.Request, dest any) error {
	if err := decodeJSON(r, dest); err != nil {
		return err
	}
	if err := a.validate.Struct(dest); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			first := invalid[0]
			return fmt.Errorf("field %s failed %q validation", first.Namespace(), first.Tag())
		}
		return err
	}
	return nil
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("id")), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrDuplicateName),
		errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError maps service errors onto HTTP statuses. Insufficient
// stock also reports which product fell short.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	var shortage *store.InsufficientStockError
	if errors.As(err, &shortage) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":        shortage.Error(),
			"product_id":   shortage.ProductID,
			"product_name": shortage.ProductName,
			"available":    shortage.Available,
			"requested":    shortage.Requested,
		})
		return
	}
	a.writeError(w, statusFor(err), err)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; the cause goes to the log.
	msg := err.Error()
	if status >= 500 {
		a.logger.Error("internal error", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func actorFrom(r *http.Request) domain.Actor {
	actor, _ := service.ActorFromContext(r.Context())
	return actor
}
