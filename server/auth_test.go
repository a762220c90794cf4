package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/BlackHan26/taskboard/config"
	"github.com/BlackHan26/taskboard/team"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash admin password: %v", err)
	}
	cfg := config.Config{
		Server: config.ServerConfig{Addr: ":0"},
		Auth: config.AuthConfig{
			AdminUser: "admin",
			AdminPass: string(hash),
			JWTSecret: "test-secret-key-1234567890",
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(cfg, "test", logger)
	s.SetTeamStore(newTestTeamStore(t))
	return s
}

func newTestTeamStore(t *testing.T) *team.SQLiteStore {
	t.Helper()
	f, err := os.CreateTemp("", "taskboard-server-teams-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	f.Close()
	path := f.Name()
	t.Cleanup(func() { os.Remove(path) })

	store, err := team.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("team.NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSignAndVerifyToken(t *testing.T) {
	secret := "my-test-secret"
	token, err := signToken(secret, "alice", time.Now())
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	subject, err := verifyToken(secret, token)
	if err != nil {
		t.Fatalf("verifyToken: %v", err)
	}
	if subject != "alice" {
		t.Errorf("expected subject 'alice', got %q", subject)
	}
}

func TestVerifyToken_Expired(t *testing.T) {
	secret := "my-test-secret"
	token, err := signToken(secret, "alice", time.Now().Add(-2*tokenTTL))
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	if _, err := verifyToken(secret, token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestVerifyToken_BadSignature(t *testing.T) {
	token, _ := signToken("correct-secret", "alice", time.Now())
	if _, err := verifyToken("wrong-secret", token); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestHandleLogin_Admin(t *testing.T) {
	s := newTestServer(t)
	s.registerRoutes()

	body := `{"username":"admin","password":"secret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	s.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp loginResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Error("expected non-empty token in response")
	}
	if resp.UserID != "admin" {
		t.Errorf("UserID = %q, want admin", resp.UserID)
	}
}

func TestHandleLogin_WrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.registerRoutes()

	body := `{"username":"admin","password":"wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	s.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestRegisterThenLogin(t *testing.T) {
	s := newTestServer(t)
	s.registerRoutes()

	regBody := `{"username":"bob","password":"hunter2"}`
	regReq := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(regBody))
	regRR := httptest.NewRecorder()
	s.mux.ServeHTTP(regRR, regReq)
	if regRR.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", regRR.Code, regRR.Body.String())
	}

	// Registering the same username again conflicts.
	dupRR := httptest.NewRecorder()
	s.mux.ServeHTTP(dupRR, httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(regBody)))
	if dupRR.Code != http.StatusConflict {
		t.Errorf("duplicate register: expected 409, got %d", dupRR.Code)
	}

	loginBody := `{"username":"bob","password":"hunter2"}`
	loginRR := httptest.NewRecorder()
	s.mux.ServeHTTP(loginRR, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(loginBody)))
	if loginRR.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", loginRR.Code, loginRR.Body.String())
	}
	var resp loginResponse
	if err := json.NewDecoder(loginRR.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.UserID == "" || resp.UserID == "bob" {
		t.Errorf("UserID = %q, want a generated user ID", resp.UserID)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	s := newTestServer(t)
	s.registerRoutes()

	req := httptest.NewRequest(http.MethodGet, "/api/teams", nil)
	rr := httptest.NewRecorder()

	s.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	s := newTestServer(t)
	s.registerRoutes()

	loginBody := `{"username":"admin","password":"secret"}`
	loginRR := httptest.NewRecorder()
	s.mux.ServeHTTP(loginRR, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(loginBody)))
	if loginRR.Code != http.StatusOK {
		t.Fatalf("login failed: %d", loginRR.Code)
	}
	var resp loginResponse
	json.NewDecoder(loginRR.Body).Decode(&resp) //nolint:errcheck

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var me map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&me); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if me["user_id"] != "admin" {
		t.Errorf("user_id = %q, want admin", me["user_id"])
	}
}
