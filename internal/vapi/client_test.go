package vapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestClient wires a client and session manager against a fake vCenter.
// The fake issues tokens from /api/session and delegates everything else to fn.
func newTestClient(t *testing.T, fn http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/session", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"value": "tok"})
	})
	mux.HandleFunc("/", fn)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sessions := NewSessionManager(srv.URL, "admin", "secret", srv.Client(), discardLogger())
	client := NewClient(srv.URL, srv.Client(), sessions, discardLogger())
	return client, srv
}

func TestInvokeListSendsSessionHeader(t *testing.T) {
	var gotHeader string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("vmware-api-session-id")
		_, _ = io.WriteString(w, `[{"cluster":"domain-c1","name":"Prod"}]`)
	})

	result, err := client.Invoke(context.Background(), OpList, TargetCluster, Params{})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if gotHeader != "tok" {
		t.Fatalf("expected session header, got %q", gotHeader)
	}
	arr, ok := result.([]any)
	if !ok || len(arr) != 1 {
		t.Fatalf("expected one-element array, got %#v", result)
	}
}

func TestInvokeListQueryFilters(t *testing.T) {
	cases := []struct {
		name   string
		params Params
		want   string
	}{
		{"none", Params{}, ""},
		{"cluster", Params{Cluster: "domain-c1"}, "clusters=domain-c1"},
		{"pool", Params{ResourcePool: "rp-7"}, "resource_pools=rp-7"},
		{"both", Params{Cluster: "domain-c1", ResourcePool: "rp-7"}, "clusters=domain-c1&resource_pools=rp-7"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotQuery string
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.RawQuery
				_, _ = io.WriteString(w, `[]`)
			})
			if _, err := client.Invoke(context.Background(), OpList, TargetVM, tc.params); err != nil {
				t.Fatalf("Invoke returned error: %v", err)
			}
			if gotQuery != tc.want {
				t.Fatalf("query = %q, want %q", gotQuery, tc.want)
			}
		})
	}
}

func TestInvokeGetQueries(t *testing.T) {
	var gotURL string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		_, _ = io.WriteString(w, `{}`)
	})

	if _, err := client.Invoke(context.Background(), OpGet, TargetVM, Params{VM: "vm-42"}); err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if gotURL != "/api/vcenter/vm?filter.vms=vm-42" {
		t.Fatalf("unexpected VM get URL %q", gotURL)
	}

	if _, err := client.Invoke(context.Background(), OpGet, TargetDatastore, Params{Datastore: "datastore-9"}); err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if gotURL != "/api/vcenter/datastore?datastores=datastore-9" {
		t.Fatalf("unexpected datastore get URL %q", gotURL)
	}

	if _, err := client.Invoke(context.Background(), OpGet, TargetApplianceVersion, Params{}); err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if gotURL != "/api/appliance/system/version" {
		t.Fatalf("unexpected version URL %q", gotURL)
	}
}

func TestInvokeActionPaths(t *testing.T) {
	cases := []struct {
		action   string
		wantPath string
	}{
		{ActionStart, "/api/vcenter/vm/vm-1/power/start"},
		{ActionStop, "/api/vcenter/vm/vm-1/power/stop"},
		{ActionReset, "/api/vcenter/vm/vm-1/power/reset"},
		{ActionReboot, "/api/vcenter/vm/vm-1/guest/power/reboot"},
		{ActionShutdown, "/api/vcenter/vm/vm-1/guest/power/shutdown"},
	}

	for _, tc := range cases {
		t.Run(tc.action, func(t *testing.T) {
			var gotMethod, gotPath string
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				gotPath = r.URL.Path
				w.WriteHeader(http.StatusNoContent)
			})
			if _, err := client.Invoke(context.Background(), OpAction, TargetVM, Params{VM: "vm-1", Action: tc.action}); err != nil {
				t.Fatalf("Invoke returned error: %v", err)
			}
			if gotMethod != http.MethodPost {
				t.Fatalf("expected POST, got %s", gotMethod)
			}
			if gotPath != tc.wantPath {
				t.Fatalf("path = %q, want %q", gotPath, tc.wantPath)
			}
		})
	}
}

func TestInvokeRelocateBody(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	})

	_, err := client.Invoke(context.Background(), OpAction, TargetVM, Params{
		VM:     "vm-1",
		Action: ActionRelocate,
		Host:   "host-5",
	})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if gotPath != "/api/vcenter/vm/vm-1/action/relocate" {
		t.Fatalf("unexpected relocate path %q", gotPath)
	}
	if gotBody["host"] != "host-5" {
		t.Fatalf("unexpected relocate body %#v", gotBody)
	}
}

func TestInvokeEmptyBodyParsesAsEmptyObject(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	result, err := client.Invoke(context.Background(), OpAction, TargetVM, Params{VM: "vm-1", Action: ActionStart})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	obj, ok := result.(map[string]any)
	if !ok || len(obj) != 0 {
		t.Fatalf("expected empty object, got %#v", result)
	}
}

func TestInvokeUnwrapsResultEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"result":[{"vm":"vm-1","name":"web-01"}]}`)
	})

	result, err := client.Invoke(context.Background(), OpList, TargetVM, Params{})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	arr, ok := result.([]any)
	if !ok || len(arr) != 1 {
		t.Fatalf("expected unwrapped array, got %#v", result)
	}
}

func TestInvokeErrorEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"error":{"message":"quota exceeded"}}`)
	})

	_, err := client.Invoke(context.Background(), OpList, TargetVM, Params{})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Message != "quota exceeded" {
		t.Fatalf("unexpected message %q", upstream.Message)
	}
}

func TestInvokeErrorEnvelopeDefaultMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"error":{}}`)
	})

	_, err := client.Invoke(context.Background(), OpList, TargetVM, Params{})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Message != "Unknown vAPI error" {
		t.Fatalf("unexpected default message %q", upstream.Message)
	}
}

func TestInvokeRetriesOnceAfter401(t *testing.T) {
	var (
		authCalls int
		apiCalls  int
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/session", func(w http.ResponseWriter, r *http.Request) {
		authCalls++
		_ = json.NewEncoder(w).Encode(map[string]string{"value": "tok"})
	})
	mux.HandleFunc("/api/vcenter/cluster", func(w http.ResponseWriter, r *http.Request) {
		apiCalls++
		if apiCalls == 1 {
			http.Error(w, "session expired", http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sessions := NewSessionManager(srv.URL, "admin", "secret", srv.Client(), discardLogger())
	client := NewClient(srv.URL, srv.Client(), sessions, discardLogger())

	result, err := client.Invoke(context.Background(), OpList, TargetCluster, Params{})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if _, ok := result.([]any); !ok {
		t.Fatalf("expected array result, got %#v", result)
	}
	if apiCalls != 2 {
		t.Fatalf("expected exactly one retry, got %d api calls", apiCalls)
	}
	if authCalls != 2 {
		t.Fatalf("expected re-authentication on retry, got %d auth calls", authCalls)
	}
}

func TestInvokeSecond401Propagates(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	})

	_, err := client.Invoke(context.Background(), OpList, TargetCluster, Params{})
	if err == nil {
		t.Fatal("expected error after second 401")
	}
}

func TestInvokeUnknownTarget(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := client.Invoke(context.Background(), OpList, Target("folder"), Params{})
	if !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("expected ErrUnknownTarget, got %v", err)
	}
}

func TestIsNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such endpoint", http.StatusNotFound)
	})

	_, err := client.Invoke(context.Background(), OpGet, TargetApplianceVersion, Params{})
	if !IsNotFound(err) {
		t.Fatalf("expected IsNotFound to match, got %v", err)
	}
}
