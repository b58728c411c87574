// Package inventory exposes vCenter inventory operations keyed by friendly
// names: listing, detail lookup, power control, and migration. It owns
// name-to-identifier resolution with duplicate detection and the incremental
// VM detail snapshot.
package inventory

// PowerState enumerates the VM power states the upstream reports. Values the
// platform introduces later pass through as-is.
type PowerState string

const (
	PowerStateOn        PowerState = "POWERED_ON"
	PowerStateOff       PowerState = "POWERED_OFF"
	PowerStateSuspended PowerState = "SUSPENDED"
	PowerStateUnknown   PowerState = "UNKNOWN"
)

// ParsePowerState maps an upstream power-state string onto the enumeration,
// defaulting to unknown for empty input.
func ParsePowerState(raw string) PowerState {
	if raw == "" {
		return PowerStateUnknown
	}
	return PowerState(raw)
}

// ClusterSummary identifies one cluster.
type ClusterSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ClusterResourceSummary reports cluster capacity. CPU and memory utilization
// require additional upstream calls and are intentionally reported as
// placeholders.
type ClusterResourceSummary struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	CPUMHz            int64  `json:"cpuMhz"`
	MemoryBytes       int64  `json:"memoryBytes"`
	CPUUtilization    string `json:"cpuUtilization"`
	MemoryUtilization string `json:"memoryUtilization"`
}

// ResourcePoolSummary identifies one resource pool.
type ResourcePoolSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VMSummary is the list-level view of a virtual machine.
type VMSummary struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	PowerState PowerState `json:"powerState"`
}

// DatacenterSummary identifies one datacenter.
type DatacenterSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// HostSummary is the list-level view of a host.
type HostSummary struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ConnectionState string `json:"connectionState"`
	PowerState      string `json:"powerState"`
}

// HostVersionInfo carries the optional product metadata a host payload may
// include. Available is false when the upstream omitted all of it.
type HostVersionInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Vendor    string `json:"vendor,omitempty"`
	Model     string `json:"model,omitempty"`
	Version   string `json:"version,omitempty"`
	Build     string `json:"build,omitempty"`
	Available bool   `json:"available"`
	Warning   string `json:"warning,omitempty"`
}

// DatastoreSummary reports one datastore with capacity data. Capacity fields
// use -1 when the per-datastore detail lookup failed; UsedBytes is derived
// only when both capacity and free space are non-negative.
type DatastoreSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	CapacityBytes  int64  `json:"capacityBytes"`
	FreeSpaceBytes int64  `json:"freeSpaceBytes"`
	UsedBytes      int64  `json:"usedBytes"`
}

// VersionInfo describes the appliance/system version. Available is false when
// the platform instance does not expose version information at all, which is
// distinct from the lookup failing.
type VersionInfo struct {
	Version   string `json:"version"`
	Build     string `json:"build"`
	Vendor    string `json:"vendor"`
	Available bool   `json:"available"`
}

// VMDetail is the canonical detail snapshot of a virtual machine, assembled
// from up to three sources. BasicAvailable tracks CPU/memory presence;
// PlacementAvailable tracks the placement references separately because the
// upstream sometimes omits placement even when basic configuration is present.
type VMDetail struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	PowerState PowerState `json:"powerState"`
	GuestOS    string     `json:"guestOs,omitempty"`

	CPUCount    int   `json:"cpuCount"`
	MemoryBytes int64 `json:"memoryBytes"`

	HostID         string   `json:"hostId,omitempty"`
	ClusterID      string   `json:"clusterId,omitempty"`
	DatacenterID   string   `json:"datacenterId,omitempty"`
	ResourcePoolID string   `json:"resourcePoolId,omitempty"`
	DatastoreIDs   []string `json:"datastoreIds,omitempty"`
	FolderID       string   `json:"folderId,omitempty"`

	BasicAvailable     bool `json:"basicAvailable"`
	PlacementAvailable bool `json:"placementAvailable"`

	Warning string `json:"warning,omitempty"`
}

// VMResourceSummary is the CPU/memory view of a VM detail snapshot.
type VMResourceSummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	PowerState  PowerState `json:"powerState"`
	CPUCount    int        `json:"cpuCount"`
	MemoryBytes int64      `json:"memoryBytes"`
	Available   bool       `json:"available"`
	Warning     string     `json:"warning,omitempty"`
}

// VMPlacement is the location view of a VM detail snapshot.
type VMPlacement struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	HostID       string   `json:"hostId,omitempty"`
	ClusterID    string   `json:"clusterId,omitempty"`
	DatacenterID string   `json:"datacenterId,omitempty"`
	DatastoreIDs []string `json:"datastoreIds,omitempty"`
	Available    bool     `json:"available"`
	Warning      string   `json:"warning,omitempty"`
}

// VMResourcePool reports the resource pool a VM belongs to.
type VMResourcePool struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ResourcePoolID string `json:"resourcePoolId,omitempty"`
	Available      bool   `json:"available"`
	Warning        string `json:"warning,omitempty"`
}
