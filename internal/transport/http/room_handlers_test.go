package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/siro844/excalidraw/internal/store"
)

func doJSON(t *testing.T, ts *testServer, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.ts.URL+path, buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("token", token)
	}

	resp, err := ts.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func TestSignupAndLoginEndpoints(t *testing.T) {
	ts := startTestServer(t)

	resp, body := doJSON(t, ts, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":    "alice@example.com",
		"name":     "alice",
		"password": "password123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status %d: %s", resp.StatusCode, body)
	}

	var authResp AuthResponse
	if err := json.Unmarshal(body, &authResp); err != nil || authResp.Token == "" {
		t.Fatalf("bad signup response: %s err=%v", body, err)
	}

	// Duplicate email conflicts.
	resp, _ = doJSON(t, ts, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate signup status %d", resp.StatusCode)
	}

	resp, body = doJSON(t, ts, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status %d", resp.StatusCode)
	}
}

func TestSignupRejectsInvalidBody(t *testing.T) {
	ts := startTestServer(t)

	for _, body := range []map[string]string{
		{"email": "not-an-email", "password": "password123"},
		{"email": "alice@example.com", "password": "short"},
		{"email": "alice@example.com"},
	} {
		resp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/auth/signup", "", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %v: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

func TestMeEndpoint(t *testing.T) {
	ts := startTestServer(t)
	token, userID := signupUser(t, ts.authSvc, "alice@example.com")

	resp, body := doJSON(t, ts, http.MethodGet, "/api/v1/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", resp.StatusCode, body)
	}

	var user UserResponse
	if err := json.Unmarshal(body, &user); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if user.ID != userID || user.Email != "alice@example.com" {
		t.Fatalf("unexpected profile: %+v", user)
	}

	// Missing and invalid credentials are both refused.
	resp, _ = doJSON(t, ts, http.MethodGet, "/api/v1/auth/me", "", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("me without token status %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, ts, http.MethodGet, "/api/v1/auth/me", "garbage", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("me with bad token status %d", resp.StatusCode)
	}
}

func TestCreateAndListRooms(t *testing.T) {
	ts := startTestServer(t)
	token, userID := signupUser(t, ts.authSvc, "alice@example.com")

	resp, body := doJSON(t, ts, http.MethodPost, "/api/v1/rooms", token, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create room status %d: %s", resp.StatusCode, body)
	}

	var created CreateRoomResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("unmarshal create room: %v", err)
	}
	if created.RoomID < 10000 || created.RoomID > 99999 {
		t.Fatalf("room id should be five digits, got %d", created.RoomID)
	}

	resp, body = doJSON(t, ts, http.MethodGet, "/api/v1/rooms", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list rooms status %d: %s", resp.StatusCode, body)
	}

	var rooms []RoomResponse
	if err := json.Unmarshal(body, &rooms); err != nil {
		t.Fatalf("unmarshal rooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].RoomID != created.RoomID || rooms[0].OwnerID != userID {
		t.Fatalf("unexpected rooms: %+v", rooms)
	}

	// Room creation requires authentication.
	resp, _ = doJSON(t, ts, http.MethodPost, "/api/v1/rooms", "", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unauthenticated create status %d", resp.StatusCode)
	}
}

func TestChatHistoryEndpoint(t *testing.T) {
	ts := startTestServer(t)
	token, userID := signupUser(t, ts.authSvc, "alice@example.com")
	ctx := context.Background()

	if _, err := ts.st.CreateRoom(ctx, 42, userID); err != nil {
		t.Fatalf("create room: %v", err)
	}
	for _, text := range []string{"first", "second", "third"} {
		if err := ts.st.SaveChat(ctx, &store.Chat{RoomID: 42, UserID: userID, Message: text}); err != nil {
			t.Fatalf("save chat: %v", err)
		}
	}

	resp, body := doJSON(t, ts, http.MethodGet, "/api/v1/rooms/42/chats?limit=2", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status %d: %s", resp.StatusCode, body)
	}

	var chats []ChatResponse
	if err := json.Unmarshal(body, &chats); err != nil {
		t.Fatalf("unmarshal chats: %v", err)
	}
	if len(chats) != 2 || chats[0].Message != "third" || chats[1].Message != "second" {
		t.Fatalf("unexpected history page: %+v", chats)
	}

	resp, _ = doJSON(t, ts, http.MethodGet, "/api/v1/rooms/99999/chats", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown room status %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, ts, http.MethodGet, "/api/v1/rooms/not-a-number/chats", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad room id status %d", resp.StatusCode)
	}
}

func TestSignupRateLimit(t *testing.T) {
	limited := newRateLimiter(2)
	if !limited.allow() || !limited.allow() {
		t.Fatalf("first requests within the window should pass")
	}
	if limited.allow() {
		t.Fatalf("request over the limit should be refused")
	}

	disabled := newRateLimiter(0)
	for i := 0; i < 10; i++ {
		if !disabled.allow() {
			t.Fatalf("disabled limiter should always allow")
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t)

	resp, body := doJSON(t, ts, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("health status %d body %q", resp.StatusCode, body)
	}
}
