package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blacksmithop/chatconnect-server/internal/auth"
	"github.com/blacksmithop/chatconnect-server/internal/config"
	"github.com/blacksmithop/chatconnect-server/internal/core"
	"github.com/blacksmithop/chatconnect-server/internal/log"
	"github.com/blacksmithop/chatconnect-server/internal/store"
	"github.com/blacksmithop/chatconnect-server/internal/store/sqlite"
)

// createTestStore returns an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	return auth.NewService(st, jwtConfig)
}

// registerTestUser registers a user and returns their token.
func registerTestUser(t *testing.T, svc *auth.Service, nickname string) string {
	t.Helper()

	token, err := svc.Register(context.Background(), nickname, "password123", "18-25")
	if err != nil {
		t.Fatalf("register %s: %v", nickname, err)
	}
	return token
}

// startTestServer builds the full transport stack over an in-memory store.
func startTestServer(t *testing.T) (*httptest.Server, *auth.Service, store.Store) {
	t.Helper()

	st := createTestStore(t)
	authService := createTestAuthService(t, st)
	logger := log.Nop()

	reg := core.NewRegistry(authService, logger)
	bc := core.NewBroadcaster(reg, logger)
	router := core.NewRouter(reg, bc, logger)

	cfg := config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
		MaxMessageBytes:   1 << 20,
	}

	server := NewServer(reg, bc, router, authService, st, cfg, logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, authService, st
}
