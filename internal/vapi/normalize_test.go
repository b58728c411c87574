package vapi

import (
	"encoding/json"
	"reflect"
	"testing"
)

func mustParse(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return v
}

func TestNormalizeDetailShapes(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantOK  bool
		wantKey string
	}{
		{"plain object", `{"name":"web-01"}`, true, "name"},
		{"array takes first", `[{"name":"web-01"},{"name":"web-02"}]`, true, "name"},
		{"empty array absent", `[]`, false, ""},
		{"value wrapper", `{"value":{"name":"web-01"}}`, true, "name"},
		{"scalar absent", `"just a string"`, false, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obj, ok := NormalizeDetail(mustParse(t, tc.raw))
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if tc.wantOK {
				if _, present := obj[tc.wantKey]; !present {
					t.Fatalf("expected key %q in %#v", tc.wantKey, obj)
				}
			}
		})
	}
}

func TestMemoryBytesConvertsMiB(t *testing.T) {
	obj, _ := NormalizeDetail(mustParse(t, `{"memory":{"size_MiB":4096}}`))
	if got := MemoryBytes(obj); got != 4294967296 {
		t.Fatalf("MemoryBytes = %d, want 4294967296", got)
	}

	obj, _ = NormalizeDetail(mustParse(t, `{"memory_size_MiB":1}`))
	if got := MemoryBytes(obj); got != 1048576 {
		t.Fatalf("MemoryBytes = %d, want 1048576", got)
	}

	obj, _ = NormalizeDetail(mustParse(t, `{"name":"no memory"}`))
	if got := MemoryBytes(obj); got != Unknown {
		t.Fatalf("MemoryBytes = %d, want Unknown", got)
	}
}

func TestCPUCount(t *testing.T) {
	obj, _ := NormalizeDetail(mustParse(t, `{"cpu":{"count":8}}`))
	if got := CPUCount(obj); got != 8 {
		t.Fatalf("CPUCount = %d, want 8", got)
	}

	obj, _ = NormalizeDetail(mustParse(t, `{"cpu_count":2}`))
	if got := CPUCount(obj); got != 2 {
		t.Fatalf("CPUCount = %d, want 2", got)
	}

	obj, _ = NormalizeDetail(mustParse(t, `{}`))
	if got := CPUCount(obj); got != Unknown {
		t.Fatalf("CPUCount = %d, want Unknown", got)
	}
}

func TestPowerStateAliases(t *testing.T) {
	for _, raw := range []string{
		`{"power_state":"POWERED_ON"}`,
		`{"powerState":"POWERED_ON"}`,
		`{"state":"POWERED_ON"}`,
	} {
		obj, _ := NormalizeDetail(mustParse(t, raw))
		if got := PowerState(obj); got != "POWERED_ON" {
			t.Fatalf("PowerState(%s) = %q", raw, got)
		}
	}
}

func TestGuestOSAliases(t *testing.T) {
	for _, raw := range []string{
		`{"guest_OS":"UBUNTU_64"}`,
		`{"guest_os":"UBUNTU_64"}`,
		`{"guestOS":"UBUNTU_64"}`,
	} {
		obj, _ := NormalizeDetail(mustParse(t, raw))
		if got := GuestOS(obj); got != "UBUNTU_64" {
			t.Fatalf("GuestOS(%s) = %q", raw, got)
		}
	}
}

func TestHostProductAliases(t *testing.T) {
	obj, _ := NormalizeDetail(mustParse(t, `{"product_vendor":"VMware","version":"8.0.2","product_build":"22380479"}`))
	if got := HostVendor(obj); got != "VMware" {
		t.Fatalf("HostVendor = %q", got)
	}
	if got := HostVersion(obj); got != "8.0.2" {
		t.Fatalf("HostVersion = %q", got)
	}
	if got := HostBuild(obj); got != "22380479" {
		t.Fatalf("HostBuild = %q", got)
	}
	if got := HostModel(obj); got != "" {
		t.Fatalf("HostModel = %q, want empty", got)
	}
}

func TestExtractText(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		keys []string
		want string
	}{
		{"scalar string", `"host-12"`, nil, "host-12"},
		{"number", `42`, nil, "42"},
		{"value wrapper", `{"value":"host-12"}`, nil, "host-12"},
		{"id wrapper", `{"id":"host-12"}`, nil, "host-12"},
		{"target key", `{"host":"host-12"}`, []string{"host"}, "host-12"},
		{"nested wrapper", `{"value":{"id":"host-12"}}`, nil, "host-12"},
		{"no match", `{"other":"x"}`, nil, ""},
		{"null", `null`, nil, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractText(mustParse(t, tc.raw), tc.keys...); got != tc.want {
				t.Fatalf("ExtractText = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractPlacementNested(t *testing.T) {
	obj, _ := NormalizeDetail(mustParse(t, `{
		"placement": {
			"host": "host-12",
			"cluster": "domain-c1",
			"datacenter": "datacenter-3",
			"resource_pool": "resgroup-8",
			"datastore": ["datastore-9", "datastore-10"],
			"folder": "group-v4"
		}
	}`))

	p := ExtractPlacement(obj)
	if p.HostID != "host-12" || p.ClusterID != "domain-c1" || p.DatacenterID != "datacenter-3" {
		t.Fatalf("unexpected placement %#v", p)
	}
	if p.ResourcePoolID != "resgroup-8" || p.FolderID != "group-v4" {
		t.Fatalf("unexpected placement %#v", p)
	}
	if !reflect.DeepEqual(p.DatastoreIDs, []string{"datastore-9", "datastore-10"}) {
		t.Fatalf("unexpected datastores %#v", p.DatastoreIDs)
	}
	if !p.Present() {
		t.Fatal("placement should be present")
	}
}

func TestExtractPlacementTopLevelAndSingular(t *testing.T) {
	obj, _ := NormalizeDetail(mustParse(t, `{"host":{"id":"host-12"},"datastore":"datastore-9"}`))
	p := ExtractPlacement(obj)
	if p.HostID != "host-12" {
		t.Fatalf("HostID = %q", p.HostID)
	}
	if !reflect.DeepEqual(p.DatastoreIDs, []string{"datastore-9"}) {
		t.Fatalf("unexpected datastores %#v", p.DatastoreIDs)
	}
}

func TestExtractPlacementAbsent(t *testing.T) {
	obj, _ := NormalizeDetail(mustParse(t, `{"name":"web-01","power_state":"POWERED_ON"}`))
	if p := ExtractPlacement(obj); p.Present() {
		t.Fatalf("expected absent placement, got %#v", p)
	}
}

func TestInt64Field(t *testing.T) {
	obj, _ := NormalizeDetail(mustParse(t, `{"capacity":107374182400,"free_space":"53687091200"}`))
	if got := Int64Field(obj, "capacity"); got != 107374182400 {
		t.Fatalf("capacity = %d", got)
	}
	if got := Int64Field(obj, "free_space"); got != 53687091200 {
		t.Fatalf("free_space = %d", got)
	}
	if got := Int64Field(obj, "missing"); got != Unknown {
		t.Fatalf("missing = %d, want Unknown", got)
	}
}
