package core

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vcenter-mcp/mcp-vcenter-server/internal/inventory"
	"github.com/vcenter-mcp/mcp-vcenter-server/internal/runtime"
)

type systemTool struct {
	session *runtime.Session
}

func registerSystemTools(server *mcp.Server, session *runtime.Session) error {
	tool := &systemTool{session: session}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.system.getVersion",
		Description: "Get the version and build of the vCenter appliance",
		Meta: mcp.Meta{
			"category": "system",
			"action":   "getVersion",
		},
	}, tool.getVersion)

	return nil
}

func (t *systemTool) getVersion(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, inventory.VersionInfo, error) {
	name := toolName(req)
	ctx, logger := toolContext(ctx, t.session, name, "tool.system")
	start := time.Now()

	info, err := t.session.Inventory.ApplianceVersion(ctx)
	if err != nil {
		logger.Error("get version failed", "error", err)
		return nil, inventory.VersionInfo{}, fmt.Errorf("get version: %w", err)
	}

	logger.Info("version retrieved",
		"available", info.Available,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil, info, nil
}
