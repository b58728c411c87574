package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vcenter-mcp/mcp-vcenter-server/internal/logging"
	"github.com/vcenter-mcp/mcp-vcenter-server/internal/runtime"
)

// powerTool serves the VM power-state and migration operations.
type powerTool struct {
	session *runtime.Session
}

type powerInput struct {
	VM string `json:"vm" jsonschema:"name of the virtual machine"`
}

type migrateInput struct {
	VM   string `json:"vm" jsonschema:"name of the virtual machine to migrate"`
	Host string `json:"host" jsonschema:"name of the destination host"`
}

type actionResult struct {
	Status string `json:"status"`
}

func registerPowerTools(server *mcp.Server, session *runtime.Session) error {
	tool := &powerTool{session: session}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.vms.powerOn",
		Description: "Power on a virtual machine by name",
		Meta: mcp.Meta{
			"category": "vms",
			"action":   "powerOn",
		},
	}, tool.powerOn)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.vms.powerOff",
		Description: "Power off a virtual machine by name (hard stop)",
		Meta: mcp.Meta{
			"category": "vms",
			"action":   "powerOff",
		},
	}, tool.powerOff)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.vms.reset",
		Description: "Reset a virtual machine by name (hard reset)",
		Meta: mcp.Meta{
			"category": "vms",
			"action":   "reset",
		},
	}, tool.reset)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.vms.restart",
		Description: "Restart the guest operating system of a virtual machine by name",
		Meta: mcp.Meta{
			"category": "vms",
			"action":   "restart",
		},
	}, tool.restart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.vms.shutdown",
		Description: "Shut down the guest operating system of a virtual machine by name",
		Meta: mcp.Meta{
			"category": "vms",
			"action":   "shutdown",
		},
	}, tool.shutdown)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.vms.migrate",
		Description: "Migrate a virtual machine to another host by VM and host name",
		Meta: mcp.Meta{
			"category": "vms",
			"action":   "migrate",
		},
	}, tool.migrate)

	return nil
}

type powerOp func(ctx context.Context, vmName string) (string, error)

func (t *powerTool) run(ctx context.Context, req *mcp.CallToolRequest, input powerInput, verb string, op powerOp) (*mcp.CallToolResult, actionResult, error) {
	name := toolName(req)
	ctx, logger := toolContext(ctx, t.session, name, "tool.power")
	ctx = logging.WithEntity(ctx, input.VM)
	start := time.Now()

	if input.VM == "" {
		return nil, actionResult{}, errors.New("vm name is required")
	}

	status, err := op(ctx, input.VM)
	if err != nil {
		logger.Error(verb+" failed", "vm", input.VM, "error", err)
		return nil, actionResult{}, fmt.Errorf("%s VM: %w", verb, err)
	}

	logger.Info(verb+" completed", "vm", input.VM, "duration_ms", time.Since(start).Milliseconds())
	return nil, actionResult{Status: status}, nil
}

func (t *powerTool) powerOn(ctx context.Context, req *mcp.CallToolRequest, input powerInput) (*mcp.CallToolResult, actionResult, error) {
	return t.run(ctx, req, input, "power on", t.session.Inventory.PowerOn)
}

func (t *powerTool) powerOff(ctx context.Context, req *mcp.CallToolRequest, input powerInput) (*mcp.CallToolResult, actionResult, error) {
	return t.run(ctx, req, input, "power off", t.session.Inventory.PowerOff)
}

func (t *powerTool) reset(ctx context.Context, req *mcp.CallToolRequest, input powerInput) (*mcp.CallToolResult, actionResult, error) {
	return t.run(ctx, req, input, "reset", t.session.Inventory.Reset)
}

func (t *powerTool) restart(ctx context.Context, req *mcp.CallToolRequest, input powerInput) (*mcp.CallToolResult, actionResult, error) {
	return t.run(ctx, req, input, "restart", t.session.Inventory.Restart)
}

func (t *powerTool) shutdown(ctx context.Context, req *mcp.CallToolRequest, input powerInput) (*mcp.CallToolResult, actionResult, error) {
	return t.run(ctx, req, input, "shutdown", t.session.Inventory.Shutdown)
}

func (t *powerTool) migrate(ctx context.Context, req *mcp.CallToolRequest, input migrateInput) (*mcp.CallToolResult, actionResult, error) {
	name := toolName(req)
	ctx, logger := toolContext(ctx, t.session, name, "tool.power")
	ctx = logging.WithEntity(ctx, input.VM)
	start := time.Now()

	if input.VM == "" {
		return nil, actionResult{}, errors.New("vm name is required")
	}
	if input.Host == "" {
		return nil, actionResult{}, errors.New("host name is required")
	}

	status, err := t.session.Inventory.Migrate(ctx, input.VM, input.Host)
	if err != nil {
		logger.Error("migrate failed", "vm", input.VM, "host", input.Host, "error", err)
		return nil, actionResult{}, fmt.Errorf("migrate VM: %w", err)
	}

	logger.Info("migrate completed",
		"vm", input.VM,
		"host", input.Host,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil, actionResult{Status: status}, nil
}
