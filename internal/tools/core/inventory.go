package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vcenter-mcp/mcp-vcenter-server/internal/inventory"
	"github.com/vcenter-mcp/mcp-vcenter-server/internal/runtime"
)

// inventoryTool serves the cluster, resource pool, datacenter, datastore,
// and host listings.
type inventoryTool struct {
	session *runtime.Session
}

type emptyInput struct{}

type clusterListResult struct {
	Clusters []inventory.ClusterSummary `json:"clusters"`
}

type clusterResourcesResult struct {
	Clusters []inventory.ClusterResourceSummary `json:"clusters"`
}

type resourcePoolListInput struct {
	Cluster string `json:"cluster" jsonschema:"name of the cluster to list resource pools for"`
}

type resourcePoolListResult struct {
	ResourcePools []inventory.ResourcePoolSummary `json:"resourcePools"`
	Warning       string                          `json:"warning,omitempty"`
}

type datacenterListResult struct {
	Datacenters []inventory.DatacenterSummary `json:"datacenters"`
}

type datastoreListResult struct {
	Datastores []inventory.DatastoreSummary `json:"datastores"`
}

type hostListResult struct {
	Hosts []inventory.HostSummary `json:"hosts"`
}

type hostVersionInput struct {
	Host string `json:"host" jsonschema:"name of the host to inspect"`
}

func registerInventoryTools(server *mcp.Server, session *runtime.Session) error {
	tool := &inventoryTool{session: session}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.clusters.list",
		Description: "List all clusters in the vCenter inventory",
		Meta: mcp.Meta{
			"category": "clusters",
			"action":   "list",
		},
	}, tool.listClusters)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.clusters.listResources",
		Description: "List clusters with their resource capacity overview",
		Meta: mcp.Meta{
			"category": "clusters",
			"action":   "listResources",
		},
	}, tool.listClusterResources)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.resourcePools.list",
		Description: "List the resource pools of a cluster by cluster name",
		Meta: mcp.Meta{
			"category": "resourcePools",
			"action":   "list",
		},
	}, tool.listResourcePools)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.datacenters.list",
		Description: "List all datacenters in the vCenter inventory",
		Meta: mcp.Meta{
			"category": "datacenters",
			"action":   "list",
		},
	}, tool.listDatacenters)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.datastores.list",
		Description: "List all datastores with capacity and free space",
		Meta: mcp.Meta{
			"category": "datastores",
			"action":   "list",
		},
	}, tool.listDatastores)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.hosts.list",
		Description: "List all hosts with connection and power state",
		Meta: mcp.Meta{
			"category": "hosts",
			"action":   "list",
		},
	}, tool.listHosts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vcenter.hosts.getVersion",
		Description: "Get the vendor, model, and version information of a host by name",
		Meta: mcp.Meta{
			"category": "hosts",
			"action":   "getVersion",
		},
	}, tool.getHostVersion)

	return nil
}

func (t *inventoryTool) listClusters(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, clusterListResult, error) {
	name := toolName(req)
	ctx, logger := toolContext(ctx, t.session, name, "tool.inventory")
	start := time.Now()

	clusters, err := t.session.Inventory.ListClusters(ctx)
	if err != nil {
		logger.Error("list clusters failed", "error", err)
		return nil, clusterListResult{}, fmt.Errorf("list clusters: %w", err)
	}

	logger.Info("clusters listed", "count", len(clusters), "duration_ms", time.Since(start).Milliseconds())
	return nil, clusterListResult{Clusters: clusters}, nil
}

func (t *inventoryTool) listClusterResources(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, clusterResourcesResult, error) {
	name := toolName(req)
	ctx, logger := toolContext(ctx, t.session, name, "tool.inventory")
	start := time.Now()

	clusters, err := t.session.Inventory.ClusterResources(ctx)
	if err != nil {
		logger.Error("list cluster resources failed", "error", err)
		return nil, clusterResourcesResult{}, fmt.Errorf("list cluster resources: %w", err)
	}

	logger.Info("cluster resources listed", "count", len(clusters), "duration_ms", time.Since(start).Milliseconds())
	return nil, clusterResourcesResult{Clusters: clusters}, nil
}

func (t *inventoryTool) listResourcePools(ctx context.Context, req *mcp.CallToolRequest, input resourcePoolListInput) (*mcp.CallToolResult, resourcePoolListResult, error) {
	name := toolName(req)
	ctx, logger := toolContext(ctx, t.session, name, "tool.inventory")
	start := time.Now()

	if input.Cluster == "" {
		return nil, resourcePoolListResult{}, errors.New("cluster name is required")
	}

	pools, warning, err := t.session.Inventory.ResourcePoolsInCluster(ctx, input.Cluster)
	if err != nil {
		logger.Error("list resource pools failed", "cluster", input.Cluster, "error", err)
		return nil, resourcePoolListResult{}, fmt.Errorf("list resource pools: %w", err)
	}

	logger.Info("resource pools listed",
		"cluster", input.Cluster,
		"count", len(pools),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil, resourcePoolListResult{ResourcePools: pools, Warning: warning}, nil
}

func (t *inventoryTool) listDatacenters(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, datacenterListResult, error) {
	name := toolName(req)
	ctx, logger := toolContext(ctx, t.session, name, "tool.inventory")
	start := time.Now()

	datacenters, err := t.session.Inventory.ListDatacenters(ctx)
	if err != nil {
		logger.Error("list datacenters failed", "error", err)
		return nil, datacenterListResult{}, fmt.Errorf("list datacenters: %w", err)
	}

	logger.Info("datacenters listed", "count", len(datacenters), "duration_ms", time.Since(start).Milliseconds())
	return nil, datacenterListResult{Datacenters: datacenters}, nil
}

func (t *inventoryTool) listDatastores(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, datastoreListResult, error) {
	name := toolName(req)
	ctx, logger := toolContext(ctx, t.session, name, "tool.inventory")
	start := time.Now()

	datastores, err := t.session.Inventory.ListDatastoresWithCapacity(ctx)
	if err != nil {
		logger.Error("list datastores failed", "error", err)
		return nil, datastoreListResult{}, fmt.Errorf("list datastores: %w", err)
	}

	logger.Info("datastores listed", "count", len(datastores), "duration_ms", time.Since(start).Milliseconds())
	return nil, datastoreListResult{Datastores: datastores}, nil
}

func (t *inventoryTool) listHosts(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, hostListResult, error) {
	name := toolName(req)
	ctx, logger := toolContext(ctx, t.session, name, "tool.inventory")
	start := time.Now()

	hosts, err := t.session.Inventory.ListHosts(ctx)
	if err != nil {
		logger.Error("list hosts failed", "error", err)
		return nil, hostListResult{}, fmt.Errorf("list hosts: %w", err)
	}

	logger.Info("hosts listed", "count", len(hosts), "duration_ms", time.Since(start).Milliseconds())
	return nil, hostListResult{Hosts: hosts}, nil
}

func (t *inventoryTool) getHostVersion(ctx context.Context, req *mcp.CallToolRequest, input hostVersionInput) (*mcp.CallToolResult, inventory.HostVersionInfo, error) {
	name := toolName(req)
	ctx, logger := toolContext(ctx, t.session, name, "tool.inventory")
	start := time.Now()

	if input.Host == "" {
		return nil, inventory.HostVersionInfo{}, errors.New("host name is required")
	}

	info, err := t.session.Inventory.HostVersion(ctx, input.Host)
	if err != nil {
		logger.Error("get host version failed", "host", input.Host, "error", err)
		return nil, inventory.HostVersionInfo{}, fmt.Errorf("get host version: %w", err)
	}

	logger.Info("host version retrieved",
		"host", input.Host,
		"available", info.Available,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil, info, nil
}
