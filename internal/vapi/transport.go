package vapi

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/vcenter-mcp/mcp-vcenter-server/internal/version"
)

const defaultRequestTimeout = 30 * time.Second

// TransportOptions configure the HTTP client used for all vCenter calls.
type TransportOptions struct {
	// Insecure disables TLS certificate verification. Intended for lab
	// deployments with self-signed vCenter certificates.
	Insecure bool
	// Timeout bounds each request end to end. Zero selects the default.
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewHTTPClient builds the http.Client shared by the session manager and the
// protocol client. Cancellation is not part of the core contract; callers rely
// on these transport timeouts to bound upstream calls.
func NewHTTPClient(opts TransportOptions) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	transport := &http.Transport{
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if opts.Insecure {
		if opts.Logger != nil {
			opts.Logger.Warn("TLS certificate validation is DISABLED for the vCenter connection; not recommended for production")
		}
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- explicit operator opt-in
	}

	return &http.Client{
		Transport: &userAgentTransport{base: transport},
		Timeout:   timeout,
	}
}

// userAgentTransport stamps every outbound request with the gateway's build
// identity so vCenter access logs attribute traffic to this process.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", version.UserAgent())
	}
	return t.base.RoundTrip(req)
}
