package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vcenter-mcp/mcp-vcenter-server/internal/inventory"
	"github.com/vcenter-mcp/mcp-vcenter-server/internal/logging"
	"github.com/vcenter-mcp/mcp-vcenter-server/internal/runtime"
)

// vmTool serves the VM listing and read-only detail operations.
type vmTool struct {
	session *runtime.Session
}

type vmsInClusterInput struct {
	Cluster string `json:"cluster" jsonschema:"name of the cluster to list VMs for"`
}

type vmsInResourcePoolInput struct {
	ResourcePool string `json:"resourcePool" jsonschema:"name of the resource pool to list VMs for"`
}

type vmListResult struct {
	VMs     []inventory.VMSummary `json:"vms"`
	Warning string                `json:"warning,omitempty"`
}

type vmNameInput struct {
	VM string `json:"vm" jsonschema:"name of the virtual machine"`
}

func registerVMTools(server *mcp.Server, session *runtime.Session) error {
	tool := &vmTool{session: session}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.vms.listInCluster",
		Description: "List the virtual machines of a cluster by cluster name",
		Meta: mcp.Meta{
			"category": "vms",
			"action":   "listInCluster",
		},
	}, tool.listInCluster)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.vms.listInResourcePool",
		Description: "List the virtual machines of a resource pool by pool name",
		Meta: mcp.Meta{
			"category": "vms",
			"action":   "listInResourcePool",
		},
	}, tool.listInResourcePool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.vms.listAll",
		Description: "List all virtual machines in the vCenter inventory",
		Meta: mcp.Meta{
			"category": "vms",
			"action":   "listAll",
		},
	}, tool.listAll)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.vms.getDetails",
		Description: "Get the full detail record of a virtual machine by name",
		Meta: mcp.Meta{
			"category": "vms",
			"action":   "getDetails",
		},
	}, tool.getDetails)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.vms.getResourceSummary",
		Description: "Get the CPU and memory allocation of a virtual machine by name",
		Meta: mcp.Meta{
			"category": "vms",
			"action":   "getResourceSummary",
		},
	}, tool.getResourceSummary)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.vms.getPlacement",
		Description: "Get the host, cluster, datacenter, and datastore placement of a virtual machine by name",
		Meta: mcp.Meta{
			"category": "vms",
			"action":   "getPlacement",
		},
	}, tool.getPlacement)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.vms.getResourcePool",
		Description: "Get the resource pool membership of a virtual machine by name",
		Meta: mcp.Meta{
			"category": "vms",
			"action":   "getResourcePool",
		},
	}, tool.getResourcePool)

	return nil
}

func (t *vmTool) listInCluster(ctx context.Context, req *mcp.CallToolRequest, input vmsInClusterInput) (*mcp.CallToolResult, vmListResult, error) {
	name := toolName(req)
	ctx, logger := toolContext(ctx, t.session, name, "tool.vms")
	start := time.Now()

	if input.Cluster == "" {
		return nil, vmListResult{}, errors.New("cluster name is required")
	}

	vms, warning, err := t.session.Inventory.VMsInCluster(ctx, input.Cluster)
	if err != nil {
		logger.Error("list VMs in cluster failed", "cluster", input.Cluster, "error", err)
		return nil, vmListResult{}, fmt.Errorf("list VMs in cluster: %w", err)
	}

	logger.Info("VMs listed",
		"cluster", input.Cluster,
		"count", len(vms),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil, vmListResult{VMs: vms, Warning: warning}, nil
}

func (t *vmTool) listInResourcePool(ctx context.Context, req *mcp.CallToolRequest, input vmsInResourcePoolInput) (*mcp.CallToolResult, vmListResult, error) {
	name := toolName(req)
	ctx, logger := toolContext(ctx, t.session, name, "tool.vms")
	start := time.Now()

	if input.ResourcePool == "" {
		return nil, vmListResult{}, errors.New("resource pool name is required")
	}

	vms, warning, err := t.session.Inventory.VMsInResourcePool(ctx, input.ResourcePool)
	if err != nil {
		logger.Error("list VMs in resource pool failed", "resource_pool", input.ResourcePool, "error", err)
		return nil, vmListResult{}, fmt.Errorf("list VMs in resource pool: %w", err)
	}

	logger.Info("VMs listed",
		"resource_pool", input.ResourcePool,
		"count", len(vms),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil, vmListResult{VMs: vms, Warning: warning}, nil
}

func (t *vmTool) listAll(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, vmListResult, error) {
	name := toolName(req)
	ctx, logger := toolContext(ctx, t.session, name, "tool.vms")
	start := time.Now()

	vms, err := t.session.Inventory.ListAllVMs(ctx)
	if err != nil {
		logger.Error("list all VMs failed", "error", err)
		return nil, vmListResult{}, fmt.Errorf("list all VMs: %w", err)
	}

	logger.Info("VMs listed", "count", len(vms), "duration_ms", time.Since(start).Milliseconds())
	return nil, vmListResult{VMs: vms}, nil
}

func (t *vmTool) getDetails(ctx context.Context, req *mcp.CallToolRequest, input vmNameInput) (*mcp.CallToolResult, inventory.VMDetail, error) {
	name := toolName(req)
	ctx, logger := toolContext(ctx, t.session, name, "tool.vms")
	ctx = logging.WithEntity(ctx, input.VM)
	start := time.Now()

	if input.VM == "" {
		return nil, inventory.VMDetail{}, errors.New("vm name is required")
	}

	detail, err := t.session.Inventory.VMDetails(ctx, input.VM)
	if err != nil {
		logger.Error("get VM details failed", "vm", input.VM, "error", err)
		return nil, inventory.VMDetail{}, fmt.Errorf("get VM details: %w", err)
	}

	logger.Info("VM details retrieved",
		"vm", input.VM,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil, detail, nil
}

func (t *vmTool) getResourceSummary(ctx context.Context, req *mcp.CallToolRequest, input vmNameInput) (*mcp.CallToolResult, inventory.VMResourceSummary, error) {
	name := toolName(req)
	ctx, logger := toolContext(ctx, t.session, name, "tool.vms")
	ctx = logging.WithEntity(ctx, input.VM)
	start := time.Now()

	if input.VM == "" {
		return nil, inventory.VMResourceSummary{}, errors.New("vm name is required")
	}

	summary, err := t.session.Inventory.VMResourceSummary(ctx, input.VM)
	if err != nil {
		logger.Error("get VM resource summary failed", "vm", input.VM, "error", err)
		return nil, inventory.VMResourceSummary{}, fmt.Errorf("get VM resource summary: %w", err)
	}

	logger.Info("VM resource summary retrieved",
		"vm", input.VM,
		"available", summary.Available,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil, summary, nil
}

func (t *vmTool) getPlacement(ctx context.Context, req *mcp.CallToolRequest, input vmNameInput) (*mcp.CallToolResult, inventory.VMPlacement, error) {
	name := toolName(req)
	ctx, logger := toolContext(ctx, t.session, name, "tool.vms")
	ctx = logging.WithEntity(ctx, input.VM)
	start := time.Now()

	if input.VM == "" {
		return nil, inventory.VMPlacement{}, errors.New("vm name is required")
	}

	placement, err := t.session.Inventory.VMPlacement(ctx, input.VM)
	if err != nil {
		logger.Error("get VM placement failed", "vm", input.VM, "error", err)
		return nil, inventory.VMPlacement{}, fmt.Errorf("get VM placement: %w", err)
	}

	logger.Info("VM placement retrieved",
		"vm", input.VM,
		"available", placement.Available,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil, placement, nil
}

func (t *vmTool) getResourcePool(ctx context.Context, req *mcp.CallToolRequest, input vmNameInput) (*mcp.CallToolResult, inventory.VMResourcePool, error) {
	name := toolName(req)
	ctx, logger := toolContext(ctx, t.session, name, "tool.vms")
	ctx = logging.WithEntity(ctx, input.VM)
	start := time.Now()

	if input.VM == "" {
		return nil, inventory.VMResourcePool{}, errors.New("vm name is required")
	}

	pool, err := t.session.Inventory.VMResourcePool(ctx, input.VM)
	if err != nil {
		logger.Error("get VM resource pool failed", "vm", input.VM, "error", err)
		return nil, inventory.VMResourcePool{}, fmt.Errorf("get VM resource pool: %w", err)
	}

	logger.Info("VM resource pool retrieved",
		"vm", input.VM,
		"available", pool.Available,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil, pool, nil
}
