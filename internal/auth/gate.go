package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/vcenter-mcp/mcp-vcenter-server/internal/config"
)

// ErrUnauthorized is returned when a request is missing required authentication.
var ErrUnauthorized = errors.New("unauthorized")

// Gate validates incoming HTTP requests according to the configured auth mode.
type Gate struct {
	mode  config.AuthMode
	token string
}

// NewGate creates an authorization gate for the provided mode. The expected
// token is only consulted in bearer-required mode.
func NewGate(mode config.AuthMode, expectedToken string) *Gate {
	return &Gate{mode: mode, token: expectedToken}
}

// Authorize validates the Authorization header of the request.
//
// In bearer-required mode a missing, malformed, or mismatched bearer token
// results in an error. In dev-allow-any mode requests without a header are
// accepted, but a malformed Authorization header still returns an error so
// clients fix their requests.
func (g *Gate) Authorize(r *http.Request) error {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		if g.mode == config.AuthModeBearerRequired {
			return ErrUnauthorized
		}
		return nil
	}

	const prefix = "Bearer "
	if len(authz) < len(prefix) || !strings.EqualFold(authz[:len(prefix)], prefix) {
		return errors.New("authorization header must use Bearer scheme")
	}

	token := strings.TrimSpace(authz[len(prefix):])
	if token == "" {
		return errors.New("authorization header missing bearer token")
	}

	if g.mode == config.AuthModeBearerRequired {
		if subtle.ConstantTimeCompare([]byte(token), []byte(g.token)) != 1 {
			return ErrUnauthorized
		}
	}
	return nil
}

// RequiresAuth reports whether the gate requires an Authorization header.
func (g *Gate) RequiresAuth() bool {
	return g != nil && g.mode == config.AuthModeBearerRequired
}
