package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"forno/backend/internal/config"
	"forno/backend/internal/domain"
	"forno/backend/internal/httpapi"
	"forno/backend/internal/service"
	"forno/backend/internal/store"
	filestore "forno/backend/internal/store/file"
	"forno/backend/internal/store/memory"
	pgstore "forno/backend/internal/store/postgres"
	redisstore "forno/backend/internal/store/redis"
)

func main() {
	cfg := config.Load()
	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records, closers, err := openRecordStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("record store unavailable", zap.Error(err))
	}

	svc := service.New(records, logger, service.WithLocation(cfg.Location()))
	opts := service.BootstrapOptions{DemoProducts: cfg.SeedDemoProducts}
	if cfg.SeedAdminEmail != "" {
		hash, err := httpapi.HashPassword(cfg.SeedAdminPassword)
		if err != nil {
			logger.Fatal("hash seed admin password", zap.Error(err))
		}
		opts.Admin = &domain.User{Name: cfg.SeedAdminName, Email: cfg.SeedAdminEmail, PasswordHash: hash}
	}
	if err := svc.Bootstrap(ctx, opts); err != nil {
		logger.Fatal("bootstrap", zap.Error(err))
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, svc, logger)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger, httpapi.WithLoginLimit(cfg.LoginMaxAttempts, cfg.LoginWindow()))

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("forno backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

// openRecordStore picks the first configured backend: postgres, redis,
// a data directory, then process memory.
func openRecordStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.RecordStore, []func() error, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		logger.Info("record store: postgres")
		return pg, []func() error{pg.Close}, nil
	case cfg.RedisAddr != "":
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKeyPrefix)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("redis unavailable and REDIS_ADDR is set: %w", err)
		}
		logger.Info("record store: redis", zap.String("addr", cfg.RedisAddr))
		return rs, []func() error{rs.Close}, nil
	case cfg.DataDir != "":
		fs, err := filestore.New(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("record store: file", zap.String("dir", cfg.DataDir))
		return fs, nil, nil
	default:
		logger.Warn("record store: in-memory, data is lost on restart")
		return memory.New(), nil, nil
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.SeedAdminEmail == "" {
		return nil
	}
	if err := validatePasswordStrength(cfg.SeedAdminPassword); err != nil {
		return fmt.Errorf("SEED_ADMIN_PASSWORD is too weak: %w", err)
	}
	return nil
}

// validatePasswordStrength rejects short passwords, passwords made of one
// repeated character and a list of well-known weak values.
func validatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("must be at least 8 characters")
	}

	known := map[string]bool{
		"12345678": true, "123456789": true, "password": true, "password1": true,
		"qwerty123": true, "admin123": true, "administrador": true, "senha123": true,
		"iloveyou": true, "11111111": true,
	}
	if known[strings.ToLower(password)] {
		return fmt.Errorf("common password not allowed")
	}

	allSame := true
	for i := 1; i < len(password); i++ {
		if password[i] != password[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("single repeated character not allowed")
	}

	return nil
}
