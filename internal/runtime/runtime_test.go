package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/vcenter-mcp/mcp-vcenter-server/internal/config"
)

func testSettings() *config.Settings {
	return &config.Settings{
		Host:       "vc.example.com",
		Port:       443,
		Username:   "administrator@vsphere.local",
		Password:   "hunter2",
		AuthMode:   config.AuthModeDevAllowAny,
		LogLevel:   "info",
		ListenAddr: ":8080",
	}
}

func TestNewRequiresSettings(t *testing.T) {
	if _, err := New(nil, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatal("expected error for nil settings")
	}
}

func TestNewSession(t *testing.T) {
	rt, err := New(testSettings(), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	session, err := rt.NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}
	if session.Inventory == nil {
		t.Fatal("expected inventory manager on session")
	}
	if session.Inventory != rt.Inventory() {
		t.Fatal("sessions should share the runtime inventory manager")
	}
	if session.Logger == nil {
		t.Fatal("expected logger on session")
	}
}

func TestNewSessionLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	rt, err := New(testSettings(), logger)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if _, err := rt.NewSession(context.Background()); err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}

	var found bool
	decoder := json.NewDecoder(&buf)
	for decoder.More() {
		var record map[string]any
		if err := decoder.Decode(&record); err != nil {
			break
		}
		if record["msg"] == "creating runtime session" {
			found = true
			if record["vcenter"] != "vc.example.com" {
				t.Fatalf("expected vcenter attribute, got %#v", record)
			}
		}
	}
	if !found {
		t.Fatal("expected session creation log entry")
	}
}
