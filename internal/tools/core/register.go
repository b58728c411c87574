package core

import (
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vcenter-mcp/mcp-vcenter-server/internal/runtime"
)

// Register installs the vCenter tool suite on the provided MCP server.
func Register(server *mcp.Server, session *runtime.Session) error {
	if server == nil {
		return errors.New("server is required")
	}
	if session == nil {
		return errors.New("session is required")
	}
	if session.Inventory == nil {
		return errors.New("session inventory manager is required")
	}

	if err := registerInventoryTools(server, session); err != nil {
		return err
	}

	if err := registerVMTools(server, session); err != nil {
		return err
	}

	if err := registerPowerTools(server, session); err != nil {
		return err
	}

	if err := registerSystemTools(server, session); err != nil {
		return err
	}

	return nil
}
