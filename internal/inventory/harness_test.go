package inventory

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vcenter-mcp/mcp-vcenter-server/internal/vapi"
)

// fakeVCenter is a scripted vCenter standing in for the real appliance. Routes
// map "METHOD path?query" to canned JSON responses; unmatched requests 404.
type fakeVCenter struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	routes   map[string]routeResponse
	requests []string
}

type routeResponse struct {
	status int
	body   string
}

func newFakeVCenter(t *testing.T) *fakeVCenter {
	t.Helper()
	f := &fakeVCenter{
		t:      t,
		routes: make(map[string]routeResponse),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/session", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"value": "tok"})
	})
	mux.HandleFunc("/", f.dispatch)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeVCenter) dispatch(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}

	f.mu.Lock()
	f.requests = append(f.requests, key)
	resp, ok := f.routes[key]
	f.mu.Unlock()

	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if resp.status != 0 && resp.status != http.StatusOK {
		http.Error(w, resp.body, resp.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(resp.body))
}

func (f *fakeVCenter) route(key, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[key] = routeResponse{body: body}
}

func (f *fakeVCenter) routeStatus(key string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[key] = routeResponse{status: status, body: body}
}

func (f *fakeVCenter) requestCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int
	for _, req := range f.requests {
		if req == key {
			n++
		}
	}
	return n
}

func (f *fakeVCenter) manager() *Manager {
	logger := slog.New(slog.DiscardHandler)
	sessions := vapi.NewSessionManager(f.server.URL, "admin", "secret", f.server.Client(), logger)
	client := vapi.NewClient(f.server.URL, f.server.Client(), sessions, logger)
	return NewManager(client, logger, WithRetryBaseDelay(time.Millisecond))
}
