package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vcenter-mcp/mcp-vcenter-server/internal/vapi"
)

const defaultRetryBaseDelay = 500 * time.Millisecond

// Manager implements the inventory operations the tool layer exposes. Every
// operation re-resolves friendly names against the live inventory; resolved
// identifiers are authoritative only for the duration of one invocation.
type Manager struct {
	client         *vapi.Client
	logger         *slog.Logger
	retryBaseDelay time.Duration
}

// Option customizes Manager construction.
type Option func(*Manager)

// WithRetryBaseDelay overrides the base delay of the VM-resolution retry loop.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.retryBaseDelay = d
		}
	}
}

// NewManager constructs an inventory manager on top of the protocol client.
func NewManager(client *vapi.Client, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		client:         client,
		logger:         logger,
		retryBaseDelay: defaultRetryBaseDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ListClusters returns every cluster in the vCenter.
func (m *Manager) ListClusters(ctx context.Context) ([]ClusterSummary, error) {
	raw, err := m.client.Invoke(ctx, vapi.OpList, vapi.TargetCluster, vapi.Params{})
	if err != nil {
		return nil, fmt.Errorf("retrieve clusters: %w", err)
	}

	result := make([]ClusterSummary, 0)
	for _, item := range asItems(raw) {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := vapi.ExtractText(record["cluster"], "cluster")
		name, _ := record["name"].(string)
		if id == "" || name == "" {
			m.logger.Error("cluster record missing identity fields, skipping", "record_keys", mapKeys(record))
			continue
		}
		result = append(result, ClusterSummary{ID: id, Name: name})
	}
	m.logger.Info("retrieved clusters", "count", len(result))
	return result, nil
}

// ClusterResources returns per-cluster capacity records. True utilization
// figures require additional upstream calls, so those fields carry explicit
// placeholder values.
func (m *Manager) ClusterResources(ctx context.Context) ([]ClusterResourceSummary, error) {
	clusters, err := m.ListClusters(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieve cluster resources: %w", err)
	}

	result := make([]ClusterResourceSummary, 0, len(clusters))
	for _, cluster := range clusters {
		result = append(result, ClusterResourceSummary{
			ID:                cluster.ID,
			Name:              cluster.Name,
			CPUMHz:            vapi.Unknown,
			MemoryBytes:       vapi.Unknown,
			CPUUtilization:    "N/A",
			MemoryUtilization: "N/A",
		})
	}
	return result, nil
}

// ResourcePoolsInCluster lists the resource pools of the named cluster. The
// returned warning is non-empty when the cluster name was ambiguous.
func (m *Manager) ResourcePoolsInCluster(ctx context.Context, clusterName string) ([]ResourcePoolSummary, string, error) {
	resolution, err := m.resolveClusterID(ctx, clusterName)
	if err != nil {
		return nil, "", fmt.Errorf("resolve cluster %q: %w", clusterName, err)
	}
	if resolution.ID == "" {
		return nil, "", notFoundError("cluster", clusterName)
	}

	raw, err := m.client.Invoke(ctx, vapi.OpList, vapi.TargetResourcePool, vapi.Params{Cluster: resolution.ID})
	if err != nil {
		return nil, "", fmt.Errorf("retrieve resource pools for cluster %q: %w", clusterName, err)
	}

	result := make([]ResourcePoolSummary, 0)
	for _, item := range asItems(raw) {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := vapi.ExtractText(record["resource_pool"], "resource_pool")
		name, _ := record["name"].(string)
		if id == "" || name == "" {
			m.logger.Error("resource pool record missing identity fields, skipping", "record_keys", mapKeys(record))
			continue
		}
		result = append(result, ResourcePoolSummary{ID: id, Name: name})
	}
	m.logger.Info("retrieved resource pools", "cluster", clusterName, "count", len(result))
	return result, resolution.Warning, nil
}

// VMsInCluster lists the virtual machines of the named cluster.
func (m *Manager) VMsInCluster(ctx context.Context, clusterName string) ([]VMSummary, string, error) {
	resolution, err := m.resolveClusterID(ctx, clusterName)
	if err != nil {
		return nil, "", fmt.Errorf("resolve cluster %q: %w", clusterName, err)
	}
	if resolution.ID == "" {
		return nil, "", notFoundError("cluster", clusterName)
	}

	vms, err := m.listVMs(ctx, vapi.Params{Cluster: resolution.ID})
	if err != nil {
		return nil, "", fmt.Errorf("retrieve VMs for cluster %q: %w", clusterName, err)
	}
	return vms, resolution.Warning, nil
}

// VMsInResourcePool lists the virtual machines of the named resource pool.
func (m *Manager) VMsInResourcePool(ctx context.Context, poolName string) ([]VMSummary, string, error) {
	resolution, err := m.resolveResourcePoolID(ctx, poolName)
	if err != nil {
		return nil, "", fmt.Errorf("resolve resource pool %q: %w", poolName, err)
	}
	if resolution.ID == "" {
		return nil, "", notFoundError("resource pool", poolName)
	}

	vms, err := m.listVMs(ctx, vapi.Params{ResourcePool: resolution.ID})
	if err != nil {
		return nil, "", fmt.Errorf("retrieve VMs for resource pool %q: %w", poolName, err)
	}
	return vms, resolution.Warning, nil
}

// ListAllVMs lists every virtual machine regardless of cluster or pool.
func (m *Manager) ListAllVMs(ctx context.Context) ([]VMSummary, error) {
	vms, err := m.listVMs(ctx, vapi.Params{})
	if err != nil {
		return nil, fmt.Errorf("retrieve all VMs: %w", err)
	}
	m.logger.Info("retrieved all VMs", "count", len(vms))
	return vms, nil
}

func (m *Manager) listVMs(ctx context.Context, params vapi.Params) ([]VMSummary, error) {
	raw, err := m.client.Invoke(ctx, vapi.OpList, vapi.TargetVM, params)
	if err != nil {
		return nil, err
	}

	result := make([]VMSummary, 0)
	for _, item := range asItems(raw) {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := vapi.ExtractText(record["vm"], "vm")
		name, _ := record["name"].(string)
		if id == "" || name == "" {
			m.logger.Error("VM record missing identity fields, skipping", "record_keys", mapKeys(record))
			continue
		}
		result = append(result, VMSummary{
			ID:         id,
			Name:       name,
			PowerState: ParsePowerState(vapi.PowerState(record)),
		})
	}
	return result, nil
}

// ListDatacenters returns every datacenter.
func (m *Manager) ListDatacenters(ctx context.Context) ([]DatacenterSummary, error) {
	raw, err := m.client.Invoke(ctx, vapi.OpList, vapi.TargetDatacenter, vapi.Params{})
	if err != nil {
		return nil, fmt.Errorf("retrieve datacenters: %w", err)
	}

	result := make([]DatacenterSummary, 0)
	for _, item := range asItems(raw) {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := vapi.ExtractText(record["datacenter"], "datacenter")
		name, _ := record["name"].(string)
		if id == "" || name == "" {
			continue
		}
		result = append(result, DatacenterSummary{ID: id, Name: name})
	}
	m.logger.Info("retrieved datacenters", "count", len(result))
	return result, nil
}

// ListHosts returns every host with connection and power state.
func (m *Manager) ListHosts(ctx context.Context) ([]HostSummary, error) {
	raw, err := m.client.Invoke(ctx, vapi.OpList, vapi.TargetHost, vapi.Params{})
	if err != nil {
		return nil, fmt.Errorf("retrieve hosts: %w", err)
	}

	result := make([]HostSummary, 0)
	for _, item := range asItems(raw) {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := vapi.ExtractText(record["host"], "host")
		name, _ := record["name"].(string)
		if id == "" || name == "" {
			continue
		}
		summary := HostSummary{
			ID:              id,
			Name:            name,
			ConnectionState: "unknown",
			PowerState:      "unknown",
		}
		if state := vapi.ExtractText(record["connection_state"]); state != "" {
			summary.ConnectionState = state
		}
		if state := vapi.PowerState(record); state != "" {
			summary.PowerState = state
		}
		result = append(result, summary)
	}
	m.logger.Info("retrieved hosts", "count", len(result))
	return result, nil
}

// HostVersion reports the product metadata of the named host when the
// upstream includes it in the host record.
func (m *Manager) HostVersion(ctx context.Context, hostName string) (HostVersionInfo, error) {
	resolution, err := m.resolveHostID(ctx, hostName)
	if err != nil {
		return HostVersionInfo{}, fmt.Errorf("resolve host %q: %w", hostName, err)
	}
	if resolution.ID == "" {
		return HostVersionInfo{}, notFoundError("host", hostName)
	}

	info := HostVersionInfo{
		ID:      resolution.ID,
		Name:    hostName,
		Warning: resolution.Warning,
	}
	if record, ok := vapi.NormalizeDetail(resolution.Record); ok {
		info.Vendor = vapi.HostVendor(record)
		info.Model = vapi.HostModel(record)
		info.Version = vapi.HostVersion(record)
		info.Build = vapi.HostBuild(record)
	}
	info.Available = info.Vendor != "" || info.Model != "" || info.Version != "" || info.Build != ""
	return info, nil
}

// ListDatastoresWithCapacity lists every datastore, enriching each entry with
// capacity data from a per-datastore detail lookup. A failed lookup degrades
// that entry to the -1 sentinels instead of failing the whole listing.
func (m *Manager) ListDatastoresWithCapacity(ctx context.Context) ([]DatastoreSummary, error) {
	raw, err := m.client.Invoke(ctx, vapi.OpList, vapi.TargetDatastore, vapi.Params{})
	if err != nil {
		return nil, fmt.Errorf("retrieve datastores: %w", err)
	}

	result := make([]DatastoreSummary, 0)
	for _, item := range asItems(raw) {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := vapi.ExtractText(record["datastore"], "datastore")
		name, _ := record["name"].(string)
		if id == "" || name == "" {
			m.logger.Error("datastore record missing identity fields, skipping", "record_keys", mapKeys(record))
			continue
		}

		summary := DatastoreSummary{
			ID:             id,
			Name:           name,
			Type:           "unknown",
			CapacityBytes:  vapi.Unknown,
			FreeSpaceBytes: vapi.Unknown,
			UsedBytes:      vapi.Unknown,
		}
		if t := vapi.ExtractText(record["type"]); t != "" {
			summary.Type = t
		}

		detailRaw, err := m.client.Invoke(ctx, vapi.OpGet, vapi.TargetDatastore, vapi.Params{Datastore: id})
		if err != nil {
			m.logger.Warn("could not retrieve datastore detail", "datastore", name, "error", err)
		} else if detail, ok := vapi.NormalizeDetail(detailRaw); ok {
			summary.CapacityBytes = vapi.Int64Field(detail, "capacity")
			summary.FreeSpaceBytes = vapi.Int64Field(detail, "free_space")
		}
		if summary.CapacityBytes >= 0 && summary.FreeSpaceBytes >= 0 {
			summary.UsedBytes = summary.CapacityBytes - summary.FreeSpaceBytes
		}
		result = append(result, summary)
	}
	m.logger.Info("retrieved datastores", "count", len(result))
	return result, nil
}

// ApplianceVersion reports the vCenter appliance version. A "not found"
// upstream response means the platform instance does not expose version
// information; that is reported as an unavailable placeholder, not an error.
func (m *Manager) ApplianceVersion(ctx context.Context) (VersionInfo, error) {
	raw, err := m.client.Invoke(ctx, vapi.OpGet, vapi.TargetApplianceVersion, vapi.Params{})
	if err != nil {
		if versionUnavailable(err) {
			m.logger.Info("appliance version endpoint not available on this platform instance")
			return VersionInfo{Vendor: "VMware", Available: false}, nil
		}
		return VersionInfo{}, fmt.Errorf("retrieve version information: %w", err)
	}

	info := VersionInfo{Vendor: "VMware", Available: true}
	if record, ok := vapi.NormalizeDetail(raw); ok {
		info.Version = vapi.ExtractText(record["version"])
		info.Build = vapi.ExtractText(record["build"])
	}
	return info, nil
}

func versionUnavailable(err error) bool {
	if vapi.IsNotFound(err) {
		return true
	}
	var upstream *vapi.UpstreamError
	if errors.As(err, &upstream) {
		return strings.Contains(strings.ToLower(upstream.Message), "not found")
	}
	return false
}

// VMDetails assembles the detail snapshot of the named VM from up to three
// sources: the direct detail fetch, the resolver's matched record, and a
// full-list fallback scan. Later sources only fill fields still unset.
func (m *Manager) VMDetails(ctx context.Context, vmName string) (VMDetail, error) {
	resolution, err := m.resolveVMID(ctx, vmName)
	if err != nil {
		return VMDetail{}, fmt.Errorf("resolve VM %q: %w", vmName, err)
	}
	if resolution.ID == "" {
		return VMDetail{}, notFoundError("VM", vmName)
	}

	snapshot := newVMSnapshot()

	detailRaw, err := m.client.Invoke(ctx, vapi.OpGet, vapi.TargetVM, vapi.Params{VM: resolution.ID})
	if err != nil {
		m.logger.Warn("VM detail fetch failed, falling back to summary data", "vm", vmName, "error", err)
	} else if record, ok := vapi.NormalizeDetail(detailRaw); ok {
		snapshot.apply(record)
	}

	if record, ok := vapi.NormalizeDetail(resolution.Record); ok {
		snapshot.apply(record)
	}

	if !snapshot.complete() {
		if record := m.scanVMList(ctx, resolution.ID); record != nil {
			snapshot.apply(record)
		}
	}

	if snapshot.name == "" {
		snapshot.name = vmName
	}
	detail := snapshot.detail(resolution.ID, resolution.Warning)
	m.logger.Info("retrieved VM details",
		"vm", vmName,
		"basic_available", detail.BasicAvailable,
		"placement_available", detail.PlacementAvailable,
	)
	return detail, nil
}

// scanVMList fetches the unfiltered VM list and returns the record matching
// the given id, nil when absent or when the list call fails. Failures here
// are non-fatal: the snapshot simply stays incomplete.
func (m *Manager) scanVMList(ctx context.Context, vmID string) map[string]any {
	raw, err := m.client.Invoke(ctx, vapi.OpList, vapi.TargetVM, vapi.Params{})
	if err != nil {
		m.logger.Warn("full VM list fallback failed", "vm_id", vmID, "error", err)
		return nil
	}
	for _, item := range asItems(raw) {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if vapi.ExtractText(record["vm"], "vm") == vmID {
			return record
		}
	}
	return nil
}

// VMResourceSummary reports the CPU/memory view of the named VM.
func (m *Manager) VMResourceSummary(ctx context.Context, vmName string) (VMResourceSummary, error) {
	detail, err := m.VMDetails(ctx, vmName)
	if err != nil {
		return VMResourceSummary{}, err
	}
	return VMResourceSummary{
		ID:          detail.ID,
		Name:        detail.Name,
		PowerState:  detail.PowerState,
		CPUCount:    detail.CPUCount,
		MemoryBytes: detail.MemoryBytes,
		Available:   detail.BasicAvailable,
		Warning:     detail.Warning,
	}, nil
}

// VMPlacement reports where the named VM resides.
func (m *Manager) VMPlacement(ctx context.Context, vmName string) (VMPlacement, error) {
	detail, err := m.VMDetails(ctx, vmName)
	if err != nil {
		return VMPlacement{}, err
	}
	return VMPlacement{
		ID:           detail.ID,
		Name:         detail.Name,
		HostID:       detail.HostID,
		ClusterID:    detail.ClusterID,
		DatacenterID: detail.DatacenterID,
		DatastoreIDs: detail.DatastoreIDs,
		Available:    detail.PlacementAvailable,
		Warning:      detail.Warning,
	}, nil
}

// VMResourcePool reports the resource pool membership of the named VM.
func (m *Manager) VMResourcePool(ctx context.Context, vmName string) (VMResourcePool, error) {
	detail, err := m.VMDetails(ctx, vmName)
	if err != nil {
		return VMResourcePool{}, err
	}
	return VMResourcePool{
		ID:             detail.ID,
		Name:           detail.Name,
		ResourcePoolID: detail.ResourcePoolID,
		Available:      detail.ResourcePoolID != "",
		Warning:        detail.Warning,
	}, nil
}

// Power and migration operations. Every friendly name resolves before any
// mutating call is issued; the success status string embeds the duplicate
// warning when one was raised.

// PowerOn starts the named VM.
func (m *Manager) PowerOn(ctx context.Context, vmName string) (string, error) {
	return m.vmAction(ctx, vmName, vapi.ActionStart, "powered on")
}

// PowerOff hard-stops the named VM.
func (m *Manager) PowerOff(ctx context.Context, vmName string) (string, error) {
	return m.vmAction(ctx, vmName, vapi.ActionStop, "powered off")
}

// Reset hard-resets the named VM.
func (m *Manager) Reset(ctx context.Context, vmName string) (string, error) {
	return m.vmAction(ctx, vmName, vapi.ActionReset, "reset")
}

// Restart soft-restarts the guest OS of the named VM.
func (m *Manager) Restart(ctx context.Context, vmName string) (string, error) {
	return m.vmAction(ctx, vmName, vapi.ActionReboot, "restarted")
}

// Shutdown soft-shuts-down the guest OS of the named VM.
func (m *Manager) Shutdown(ctx context.Context, vmName string) (string, error) {
	return m.vmAction(ctx, vmName, vapi.ActionShutdown, "shut down")
}

func (m *Manager) vmAction(ctx context.Context, vmName, action, verb string) (string, error) {
	resolution, err := m.resolveVMID(ctx, vmName)
	if err != nil {
		return "", fmt.Errorf("resolve VM %q: %w", vmName, err)
	}
	if resolution.ID == "" {
		return "", notFoundError("VM", vmName)
	}

	if _, err := m.client.Invoke(ctx, vapi.OpAction, vapi.TargetVM, vapi.Params{
		VM:     resolution.ID,
		Action: action,
	}); err != nil {
		return "", fmt.Errorf("%s VM %q: %w", action, vmName, err)
	}

	status := fmt.Sprintf("Successfully %s VM: %s", verb, vmName)
	if resolution.HasWarning() {
		status += " " + resolution.Warning
	}
	m.logger.Info("VM power action completed", "vm", vmName, "action", action)
	return status, nil
}

// Migrate relocates the named VM to the named target host. Both names must
// resolve before the relocate call is issued.
func (m *Manager) Migrate(ctx context.Context, vmName, targetHostName string) (string, error) {
	vmResolution, err := m.resolveVMID(ctx, vmName)
	if err != nil {
		return "", fmt.Errorf("resolve VM %q: %w", vmName, err)
	}
	if vmResolution.ID == "" {
		return "", notFoundError("VM", vmName)
	}

	hostResolution, err := m.resolveHostID(ctx, targetHostName)
	if err != nil {
		return "", fmt.Errorf("resolve target host %q: %w", targetHostName, err)
	}
	if hostResolution.ID == "" {
		return "", notFoundError("target host", targetHostName)
	}

	if _, err := m.client.Invoke(ctx, vapi.OpAction, vapi.TargetVM, vapi.Params{
		VM:     vmResolution.ID,
		Action: vapi.ActionRelocate,
		Host:   hostResolution.ID,
	}); err != nil {
		return "", fmt.Errorf("migrate VM %q to host %q: %w", vmName, targetHostName, err)
	}

	status := fmt.Sprintf("Successfully migrated VM %s to host %s", vmName, targetHostName)
	if vmResolution.HasWarning() {
		status += " " + vmResolution.Warning
	}
	if hostResolution.HasWarning() {
		status += " " + hostResolution.Warning
	}
	m.logger.Info("VM migration completed", "vm", vmName, "target_host", targetHostName)
	return status, nil
}

func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
