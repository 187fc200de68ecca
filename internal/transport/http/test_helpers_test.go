package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sketchwire/sketchwire-server/internal/auth"
	"github.com/sketchwire/sketchwire-server/internal/config"
	"github.com/sketchwire/sketchwire-server/internal/core"
	"github.com/sketchwire/sketchwire-server/internal/log"
	"github.com/sketchwire/sketchwire-server/internal/store"
	"github.com/sketchwire/sketchwire-server/internal/store/sqlite"
)

type testEnv struct {
	ts    *httptest.Server
	store store.Store
	auth  *auth.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	logger := log.Nop()

	hub := core.NewHub(st, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := NewServer(hub, authService, st, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}, logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, auth: authService}
}

// wsURL converts the test server URL into the relay endpoint, optionally
// carrying a token.
func (e *testEnv) wsURL(token string) string {
	url := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	return url
}

// mintToken registers a user (ignoring duplicates) and logs in.
func (e *testEnv) mintToken(t *testing.T, email string) string {
	t.Helper()

	ctx := context.Background()
	_, _ = e.auth.Register(ctx, "tester", email, "password123")
	token, err := e.auth.Login(ctx, email, "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return token
}
