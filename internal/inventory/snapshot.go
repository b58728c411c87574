package inventory

import (
	"github.com/vcenter-mcp/mcp-vcenter-server/internal/vapi"
)

// vmSnapshot accumulates VM detail fields from multiple sources. Sources are
// applied in priority order and only ever fill fields that are still unset,
// so the direct detail fetch wins over the resolver record, which wins over
// the full-list fallback scan.
type vmSnapshot struct {
	name       string
	powerState string
	guestOS    string

	cpuCount    int
	memoryBytes int64

	placement vapi.Placement

	basicSeen     bool
	placementSeen bool
}

func newVMSnapshot() *vmSnapshot {
	return &vmSnapshot{
		cpuCount:    vapi.Unknown,
		memoryBytes: vapi.Unknown,
	}
}

// apply merges one canonical record into the snapshot.
func (s *vmSnapshot) apply(record map[string]any) {
	if record == nil {
		return
	}

	if s.name == "" {
		if name, ok := record["name"].(string); ok {
			s.name = name
		}
	}
	if s.powerState == "" {
		s.powerState = vapi.PowerState(record)
	}
	if s.guestOS == "" {
		s.guestOS = vapi.GuestOS(record)
	}

	if s.cpuCount == vapi.Unknown {
		s.cpuCount = vapi.CPUCount(record)
	}
	if s.memoryBytes == vapi.Unknown {
		s.memoryBytes = vapi.MemoryBytes(record)
	}
	if s.cpuCount != vapi.Unknown || s.memoryBytes != vapi.Unknown {
		s.basicSeen = true
	}

	if !s.placementSeen {
		placement := vapi.ExtractPlacement(record)
		if placement.Present() {
			s.placement = placement
			s.placementSeen = true
		}
	}
}

// complete reports whether no further sources need consulting.
func (s *vmSnapshot) complete() bool {
	return s.basicSeen && s.placementSeen
}

// detail renders the snapshot as the exported VMDetail record.
func (s *vmSnapshot) detail(id, warning string) VMDetail {
	return VMDetail{
		ID:                 id,
		Name:               s.name,
		PowerState:         ParsePowerState(s.powerState),
		GuestOS:            s.guestOS,
		CPUCount:           s.cpuCount,
		MemoryBytes:        s.memoryBytes,
		HostID:             s.placement.HostID,
		ClusterID:          s.placement.ClusterID,
		DatacenterID:       s.placement.DatacenterID,
		ResourcePoolID:     s.placement.ResourcePoolID,
		DatastoreIDs:       s.placement.DatastoreIDs,
		FolderID:           s.placement.FolderID,
		BasicAvailable:     s.basicSeen,
		PlacementAvailable: s.placementSeen,
		Warning:            warning,
	}
}
