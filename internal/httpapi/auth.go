package httpapi

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"forno/backend/internal/domain"
	"forno/backend/internal/store"
	"forno/backend/internal/xid"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	users    UserStore
	logger   *zap.Logger
}

// UserStore is the user persistence the auth layer needs. *service.Service
// satisfies it.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	RegisterCustomer(ctx context.Context, user domain.User) (domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
}

type fornoClaims struct {
	jwtlib.RegisteredClaims
	Name        string              `json:"name"`
	Email       string              `json:"email"`
	Kind        domain.UserKind     `json:"kind"`
	Permissions []domain.Permission `json:"permissions"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, users UserStore, logger *zap.Logger) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    users,
		logger:   logger.Named("auth"),
	}
}

// Login checks credentials and issues an access token. Passwords stored in a
// legacy format are rehashed with bcrypt after a successful match.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	user, err := a.users.FindUserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.LoginResponse{}, err
	}

	valid, legacy := verifyPassword(user.PasswordHash, req.Password)
	if !valid {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if legacy {
		a.upgradePassword(ctx, user, req.Password)
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(user, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		User:        user.View(),
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) upgradePassword(ctx context.Context, user domain.User, password string) {
	hashed, err := HashPassword(password)
	if err != nil {
		a.logger.Warn("failed to hash legacy password", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	if err := a.users.UpdateUserPassword(ctx, user.ID, hashed); err != nil {
		a.logger.Warn("failed to upgrade legacy password", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	a.logger.Info("upgraded legacy password hash", zap.Int64("user_id", user.ID))
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &fornoClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return domain.Actor{}, errors.New("invalid token subject")
	}

	return domain.Actor{
		ID:          id,
		Name:        claims.Name,
		Email:       claims.Email,
		Kind:        claims.Kind,
		Permissions: claims.Permissions,
	}, nil
}

func (a *AuthManager) sign(user domain.User, expiresAt time.Time) (string, error) {
	claims := fornoClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        xid.New("tok"),
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "forno",
		},
		Name:        user.Name,
		Email:       user.Email,
		Kind:        user.Kind,
		Permissions: user.Permissions,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// CreateUser hashes the password and stores a staff account.
func (a *AuthManager) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.User, error) {
	hashed, err := HashPassword(req.Password)
	if err != nil {
		return domain.User{}, err
	}
	return a.users.CreateUser(ctx, domain.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hashed,
		Kind:         req.Kind,
	})
}

// RegisterCustomer hashes the password and stores a customer account.
func (a *AuthManager) RegisterCustomer(ctx context.Context, req domain.CustomerRegisterRequest) (domain.User, error) {
	hashed, err := HashPassword(req.Password)
	if err != nil {
		return domain.User{}, err
	}
	return a.users.RegisterCustomer(ctx, domain.User{
		Name:         req.Name,
		Email:        req.Email,
		TaxID:        req.TaxID,
		Phone:        req.Phone,
		PasswordHash: hashed,
	})
}

// verifyPassword reports whether input matches stored and whether stored is
// in a legacy format (unsalted sha256 hex or plain text).
func verifyPassword(stored string, input string) (bool, bool) {
	if stored == "" || strings.TrimSpace(input) == "" {
		return false, false
	}
	if isPasswordHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil, false
	}
	if isLegacySHA256(stored) {
		sum := sha256.Sum256([]byte(input))
		candidate := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(strings.ToLower(stored)), []byte(candidate)) == 1, true
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(input)) == 1, true
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

func isLegacySHA256(value string) bool {
	if len(value) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}
