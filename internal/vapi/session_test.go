package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestTokenJSONBodyMethod(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/session" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"value": "tok-123"})
	}))
	defer srv.Close()

	mgr := NewSessionManager(srv.URL, "admin", "secret", srv.Client(), discardLogger())
	token, err := mgr.Token(context.Background())
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	if token != "tok-123" {
		t.Fatalf("unexpected token %q", token)
	}
	if gotBody["username"] != "admin" || gotBody["password"] != "secret" {
		t.Fatalf("unexpected credentials %#v", gotBody)
	}
}

func TestTokenFallsBackToBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/session" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") == "" {
			// JSON body attempt: reject so the manager moves to basic auth.
			http.Error(w, "no", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"value": "tok-basic"})
	}))
	defer srv.Close()

	mgr := NewSessionManager(srv.URL, "admin", "secret", srv.Client(), discardLogger())
	token, err := mgr.Token(context.Background())
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	if token != "tok-basic" {
		t.Fatalf("unexpected token %q", token)
	}
}

func TestTokenBasicAuthBareQuotedString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			http.Error(w, "no", http.StatusUnauthorized)
			return
		}
		// Some deployments answer the session create with a bare quoted token.
		_, _ = io.WriteString(w, `"tok-bare"`)
	}))
	defer srv.Close()

	mgr := NewSessionManager(srv.URL, "admin", "secret", srv.Client(), discardLogger())
	token, err := mgr.Token(context.Background())
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	if token != "tok-bare" {
		t.Fatalf("unexpected token %q", token)
	}
}

func TestTokenFallsBackToLegacyEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/session":
			http.Error(w, "not here", http.StatusNotFound)
		case "/rest/com/vmware/cis/session":
			_ = json.NewEncoder(w).Encode(map[string]string{"value": "tok-legacy"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	mgr := NewSessionManager(srv.URL, "admin", "secret", srv.Client(), discardLogger())
	token, err := mgr.Token(context.Background())
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	if token != "tok-legacy" {
		t.Fatalf("unexpected token %q", token)
	}
}

func TestTokenAllMethodsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	defer srv.Close()

	mgr := NewSessionManager(srv.URL, "admin", "wrong", srv.Client(), discardLogger())
	if _, err := mgr.Token(context.Background()); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestTokenCachedAndInvalidate(t *testing.T) {
	var authCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCalls++
		_ = json.NewEncoder(w).Encode(map[string]string{"value": "tok"})
	}))
	defer srv.Close()

	mgr := NewSessionManager(srv.URL, "admin", "secret", srv.Client(), discardLogger())

	for i := 0; i < 3; i++ {
		if _, err := mgr.Token(context.Background()); err != nil {
			t.Fatalf("Token returned error: %v", err)
		}
	}
	if authCalls != 1 {
		t.Fatalf("expected one auth call for cached token, got %d", authCalls)
	}

	mgr.Invalidate()
	if _, err := mgr.Token(context.Background()); err != nil {
		t.Fatalf("Token after Invalidate returned error: %v", err)
	}
	if authCalls != 2 {
		t.Fatalf("expected re-authentication after Invalidate, got %d calls", authCalls)
	}
}

func TestSessionLogsNeverContainPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"value": "tok"})
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	mgr := NewSessionManager(srv.URL, "admin", "s3cr3t-pw", srv.Client(), logger)
	if _, err := mgr.Token(context.Background()); err != nil {
		t.Fatalf("Token returned error: %v", err)
	}

	if bytes.Contains(buf.Bytes(), []byte("s3cr3t-pw")) {
		t.Fatalf("password leaked into logs: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(passwordMask)) {
		t.Fatalf("expected masked password in debug log, got %s", buf.String())
	}
}
