package vapi

import (
	"fmt"
	"strconv"
)

// bytesPerMiB converts the mebibyte sizes vCenter reports to bytes.
const bytesPerMiB = 1 << 20

// Unknown is the sentinel for numeric fields whose value is unavailable,
// distinct from zero.
const Unknown = -1

// NormalizeDetail reduces the heterogeneous shapes "get"-style calls return
// to one canonical object. Rules, in order: an array yields its first element
// (empty array yields absent); a "value" sub-object is descended into.
func NormalizeDetail(raw any) (map[string]any, bool) {
	if arr, ok := raw.([]any); ok {
		if len(arr) == 0 {
			return nil, false
		}
		raw = arr[0]
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	if wrapped, ok := obj["value"].(map[string]any); ok {
		obj = wrapped
	}
	return obj, true
}

// Alias chains per logical field: the primary field name first, then the
// legacy and alternate names older endpoint generations use. The first
// present value wins.
var (
	powerStateFields = []string{"power_state", "powerState", "state"}
	guestOSFields    = []string{"guest_OS", "guest_os", "guestOS"}
	vendorFields     = []string{"vendor", "product_vendor"}
	modelFields      = []string{"model", "product_model"}
	versionFields    = []string{"version", "product_version"}
	buildFields      = []string{"build", "product_build"}
)

// firstField walks an ordered candidate list and returns the first field
// present on obj.
func firstField(obj map[string]any, candidates ...string) (any, bool) {
	for _, name := range candidates {
		if v, ok := obj[name]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// PowerState extracts the power state from a canonical record, empty when absent.
func PowerState(obj map[string]any) string {
	if v, ok := firstField(obj, powerStateFields...); ok {
		return ExtractText(v)
	}
	return ""
}

// GuestOS extracts the guest OS identifier from a canonical record.
func GuestOS(obj map[string]any) string {
	if v, ok := firstField(obj, guestOSFields...); ok {
		return ExtractText(v)
	}
	return ""
}

// CPUCount extracts the virtual CPU count, Unknown when absent.
func CPUCount(obj map[string]any) int {
	if cpu, ok := obj["cpu"].(map[string]any); ok {
		if n, ok := asInt64(cpu["count"]); ok {
			return int(n)
		}
	}
	if n, ok := asInt64(obj["cpu_count"]); ok {
		return int(n)
	}
	return Unknown
}

// MemoryBytes extracts the configured memory in bytes. The upstream reports
// mebibytes, so the value is multiplied up. Unknown when absent.
func MemoryBytes(obj map[string]any) int64 {
	if mem, ok := obj["memory"].(map[string]any); ok {
		if v, ok := firstField(mem, "size_MiB", "size_mib"); ok {
			if n, ok := asInt64(v); ok {
				return n * bytesPerMiB
			}
		}
	}
	if n, ok := asInt64(obj["memory_size_MiB"]); ok {
		return n * bytesPerMiB
	}
	return Unknown
}

// HostVendor, HostModel, HostVersion, HostBuild extract the optional product
// metadata some host payloads carry.
func HostVendor(obj map[string]any) string  { return textField(obj, vendorFields) }
func HostModel(obj map[string]any) string   { return textField(obj, modelFields) }
func HostVersion(obj map[string]any) string { return textField(obj, versionFields) }
func HostBuild(obj map[string]any) string   { return textField(obj, buildFields) }

func textField(obj map[string]any, candidates []string) string {
	if v, ok := firstField(obj, candidates...); ok {
		return ExtractText(v)
	}
	return ""
}

// Placement holds the references describing where a VM resides. Fields the
// upstream omitted are empty / nil.
type Placement struct {
	HostID         string
	ClusterID      string
	DatacenterID   string
	ResourcePoolID string
	DatastoreIDs   []string
	FolderID       string
}

// Present reports whether any placement reference was found at all.
func (p Placement) Present() bool {
	return p.HostID != "" || p.ClusterID != "" || p.DatacenterID != "" ||
		p.ResourcePoolID != "" || len(p.DatastoreIDs) > 0 || p.FolderID != ""
}

// ExtractPlacement pulls placement references from a canonical record. Newer
// payloads nest them under "placement"; older ones put them at the top level.
func ExtractPlacement(obj map[string]any) Placement {
	source := obj
	if nested, ok := obj["placement"].(map[string]any); ok {
		source = nested
	}

	p := Placement{
		HostID:         ExtractText(source["host"], "host"),
		ClusterID:      ExtractText(source["cluster"], "cluster"),
		DatacenterID:   ExtractText(source["datacenter"], "datacenter"),
		ResourcePoolID: ExtractText(source["resource_pool"], "resource_pool"),
		FolderID:       ExtractText(source["folder"], "folder"),
	}

	switch ds := source["datastore"].(type) {
	case []any:
		for _, item := range ds {
			if id := ExtractText(item, "datastore"); id != "" {
				p.DatastoreIDs = append(p.DatastoreIDs, id)
			}
		}
	default:
		if id := ExtractText(ds, "datastore"); id != "" {
			p.DatastoreIDs = append(p.DatastoreIDs, id)
		}
	}
	if len(p.DatastoreIDs) == 0 {
		if ds, ok := source["datastores"].([]any); ok {
			for _, item := range ds {
				if id := ExtractText(item, "datastore"); id != "" {
					p.DatastoreIDs = append(p.DatastoreIDs, id)
				}
			}
		}
	}
	return p
}

// ExtractText resolves a JSON value that may be a plain scalar or an object
// wrapping the real value under "value", "id", or one of the provided
// target-type-specific keys. It recurses until a scalar is found or no known
// key matches, returning "" as the final fallback, never nil.
func ExtractText(v any, extraKeys ...string) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case bool:
		return strconv.FormatBool(value)
	case float64:
		return formatJSONNumber(value)
	case map[string]any:
		keys := append([]string{"value", "id"}, extraKeys...)
		for _, key := range keys {
			if inner, ok := value[key]; ok {
				return ExtractText(inner, extraKeys...)
			}
		}
		return ""
	default:
		return ""
	}
}

// Int64Field extracts an integer field, Unknown when absent or not numeric.
func Int64Field(obj map[string]any, candidates ...string) int64 {
	if v, ok := firstField(obj, candidates...); ok {
		if n, ok := asInt64(v); ok {
			return n
		}
	}
	return Unknown
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func formatJSONNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return fmt.Sprintf("%g", f)
}
