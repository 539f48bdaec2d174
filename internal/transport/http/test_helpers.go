package http

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/siro844/excalidraw/internal/auth"
	"github.com/siro844/excalidraw/internal/config"
	"github.com/siro844/excalidraw/internal/relay"
	"github.com/siro844/excalidraw/internal/store"
	"github.com/siro844/excalidraw/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store with the schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(sqlite.Schema)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store, jwtSecret string) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return auth.NewService(st, jwtConfig)
}

// storeSink records relayed chats into the store, like the app wiring does.
type storeSink struct {
	st store.ChatStore
}

func (s *storeSink) RecordChat(ctx context.Context, roomID int64, userID, text string) error {
	return s.st.SaveChat(ctx, &store.Chat{RoomID: roomID, UserID: userID, Message: text})
}

type testServer struct {
	ts       *httptest.Server
	st       store.Store
	authSvc  *auth.Service
	registry *relay.Registry
	rooms    *relay.Rooms
}

// startTestServer stands up the full HTTP server over an in-memory store.
func startTestServer(t *testing.T) *testServer {
	t.Helper()

	st := createTestStore(t)
	authSvc := createTestAuthService(t, st, "test-secret-change-me")

	logger := zerolog.New(nil)
	registry := relay.NewRegistry()
	rooms := relay.NewRooms()
	router := relay.NewRouter(registry, rooms, &storeSink{st: st}, &logger)

	cfg := config.Default()
	cfg.Addr = ":0"

	server := NewServer(router, authSvc, st, &cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{
		ts:       ts,
		st:       st,
		authSvc:  authSvc,
		registry: registry,
		rooms:    rooms,
	}
}

// signupUser creates a user directly through the auth service and returns its
// token and user ID.
func signupUser(t *testing.T, svc *auth.Service, email string) (token, userID string) {
	t.Helper()

	token, err := svc.Signup(context.Background(), email, "tester", "password123")
	if err != nil {
		t.Fatalf("signup %s: %v", email, err)
	}
	userID, err = svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify token for %s: %v", email, err)
	}
	return token, userID
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}
