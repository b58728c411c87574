package runtime

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vcenter-mcp/mcp-vcenter-server/internal/config"
	"github.com/vcenter-mcp/mcp-vcenter-server/internal/inventory"
	"github.com/vcenter-mcp/mcp-vcenter-server/internal/logging"
	"github.com/vcenter-mcp/mcp-vcenter-server/internal/vapi"
)

// Runtime wires the global dependencies required to service MCP sessions:
// the vCenter protocol client and the inventory manager built on top of it.
type Runtime struct {
	settings  *config.Settings
	inventory *inventory.Manager
	logger    *slog.Logger
}

// Session represents the per-connection runtime state. The vCenter session
// token lives inside the shared protocol client, so sessions are cheap views
// over the runtime rather than owners of upstream state.
type Session struct {
	Logger    *slog.Logger
	Inventory *inventory.Manager
}

// New creates a Runtime from the shared configuration.
func New(settings *config.Settings, logger *slog.Logger) (*Runtime, error) {
	if settings == nil {
		return nil, errors.New("settings are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := vapi.NewHTTPClient(vapi.TransportOptions{
		Insecure: settings.Insecure,
		Logger:   logging.WithComponent(logger, "transport"),
	})
	sessions := vapi.NewSessionManager(
		settings.BaseURL(),
		settings.Username,
		settings.Password,
		httpClient,
		logging.WithComponent(logger, "session"),
	)
	client := vapi.NewClient(settings.BaseURL(), httpClient, sessions, logging.WithComponent(logger, "vapi"))
	manager := inventory.NewManager(client, logging.WithComponent(logger, "inventory"))

	return &Runtime{
		settings:  settings,
		inventory: manager,
		logger:    logging.WithComponent(logger, "runtime"),
	}, nil
}

// Inventory exposes the shared inventory manager.
func (r *Runtime) Inventory() *inventory.Manager {
	if r == nil {
		return nil
	}
	return r.inventory
}

// NewSession spawns a session scoped view of the runtime.
func (r *Runtime) NewSession(ctx context.Context) (*Session, error) {
	if r == nil {
		return nil, errors.New("runtime is not configured")
	}

	log := logging.WithContext(ctx, r.logger)
	if log != nil {
		log.Info("creating runtime session", "vcenter", r.settings.Host)
	}

	return &Session{
		Logger:    r.logger,
		Inventory: r.inventory,
	}, nil
}
