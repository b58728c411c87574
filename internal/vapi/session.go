package vapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

const (
	sessionPath       = "/api/session"
	legacySessionPath = "/rest/com/vmware/cis/session"

	// passwordMask replaces the password in every logged request body.
	passwordMask = "***"
)

// SessionManager owns the single cached vCenter session token. The token is
// created lazily on first use and recreated after Invalidate. Concurrent
// callers may race to authenticate; the duplicate session is wasteful but
// harmless, and the cache slot itself is always consistent.
type SessionManager struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	logger   *slog.Logger

	mu    sync.Mutex
	token string
}

// NewSessionManager constructs a session manager for the given vCenter endpoint.
func NewSessionManager(baseURL, username, password string, client *http.Client, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     client,
		logger:   logger,
	}
}

// Token returns the cached session token, authenticating first when no token
// is cached. The call may block on network I/O.
func (s *SessionManager) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	cached := s.token
	s.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	s.logger.Info("no cached session token, creating new vCenter session")
	token, err := s.create(ctx)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return token, nil
}

// Invalidate clears the cached token unconditionally. The next Token call
// re-authenticates.
func (s *SessionManager) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// create runs the authentication methods in strict order until one yields a
// usable token. Every method logs its failure and falls through; only when
// all three fail does session creation fail as a whole.
func (s *SessionManager) create(ctx context.Context) (string, error) {
	// Method 1: JSON credential body against the primary session endpoint.
	token, err := s.jsonBodySession(ctx, sessionPath)
	if err == nil {
		s.logger.Info("obtained vCenter session token", "method", "json-body")
		return token, nil
	}
	s.logger.Warn("session method failed", "method", "json-body", "error", err)

	// Method 2: HTTP Basic authentication against the same endpoint.
	token, err = s.basicAuthSession(ctx)
	if err == nil {
		s.logger.Info("obtained vCenter session token", "method", "basic-auth")
		return token, nil
	}
	s.logger.Warn("session method failed", "method", "basic-auth", "error", err)

	// Method 3: JSON credential body against the legacy endpoint.
	token, err = s.jsonBodySession(ctx, legacySessionPath)
	if err == nil {
		s.logger.Info("obtained vCenter session token", "method", "legacy-endpoint")
		return token, nil
	}
	s.logger.Warn("session method failed", "method", "legacy-endpoint", "error", err)

	s.logger.Error("cannot establish vCenter session: all authentication methods failed")
	return "", ErrAuthFailed
}

func (s *SessionManager) jsonBodySession(ctx context.Context, path string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": s.username,
		"password": s.password,
	})
	if err != nil {
		return "", fmt.Errorf("marshal session request: %w", err)
	}

	s.logger.Debug("requesting vCenter session",
		"path", path,
		"request_body", s.maskPassword(string(body)),
	)

	resp, err := s.post(ctx, path, body, "")
	if err != nil {
		return "", err
	}
	return tokenFromValueField(resp)
}

func (s *SessionManager) basicAuthSession(ctx context.Context) (string, error) {
	credentials := base64.StdEncoding.EncodeToString([]byte(s.username + ":" + s.password))

	resp, err := s.post(ctx, sessionPath, nil, "Basic "+credentials)
	if err != nil {
		return "", err
	}

	// Some vCenter configurations answer with a bare quoted token instead of
	// the usual {"value": ...} object.
	trimmed := strings.TrimSpace(resp)
	if strings.HasPrefix(trimmed, "{") {
		return tokenFromValueField(resp)
	}
	token := strings.Trim(trimmed, `"`)
	if token == "" {
		return "", fmt.Errorf("empty token in basic auth response")
	}
	return token, nil
}

func (s *SessionManager) post(ctx context.Context, path string, body []byte, authorization string) (string, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, reader)
	if err != nil {
		return "", fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("session request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read session response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return string(data), nil
}

func tokenFromValueField(body string) (string, error) {
	var parsed struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return "", fmt.Errorf("parse session response: %w", err)
	}
	if parsed.Value == "" {
		return "", fmt.Errorf("session response missing value field")
	}
	return parsed.Value, nil
}

// maskPassword substitutes the fixed mask for the configured password so
// credentials never reach the logs in cleartext.
func (s *SessionManager) maskPassword(body string) string {
	if s.password == "" {
		return body
	}
	return strings.ReplaceAll(body, s.password, passwordMask)
}
