package inventory

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v5"

	"github.com/vcenter-mcp/mcp-vcenter-server/internal/vapi"
)

// Resolution is the outcome of resolving a friendly name. ID is empty when no
// record matched. Warning is non-empty when more than one record carried the
// name. Record holds the raw matched record so callers can avoid a second
// round trip; it is never cached across invocations.
type Resolution struct {
	ID      string
	Warning string
	Record  map[string]any
}

// HasWarning reports whether duplicate names were detected during resolution.
func (r Resolution) HasWarning() bool { return r.Warning != "" }

const vmListMaxAttempts = 3

// resolveClusterID maps a cluster name to its identifier.
func (m *Manager) resolveClusterID(ctx context.Context, name string) (Resolution, error) {
	raw, err := m.client.Invoke(ctx, vapi.OpList, vapi.TargetCluster, vapi.Params{})
	if err != nil {
		return Resolution{}, fmt.Errorf("list clusters: %w", err)
	}
	return m.matchByName(raw, "cluster", "clusters", name), nil
}

// resolveResourcePoolID maps a resource pool name to its identifier. Resource
// pools are only listable per cluster, so every cluster's pool list is walked
// in cluster iteration order.
func (m *Manager) resolveResourcePoolID(ctx context.Context, name string) (Resolution, error) {
	rawClusters, err := m.client.Invoke(ctx, vapi.OpList, vapi.TargetCluster, vapi.Params{})
	if err != nil {
		return Resolution{}, fmt.Errorf("list clusters: %w", err)
	}

	var all []any
	for _, item := range asItems(rawClusters) {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		clusterID := vapi.ExtractText(record["cluster"], "cluster")
		if clusterID == "" {
			continue
		}
		rawPools, err := m.client.Invoke(ctx, vapi.OpList, vapi.TargetResourcePool, vapi.Params{Cluster: clusterID})
		if err != nil {
			return Resolution{}, fmt.Errorf("list resource pools for cluster %s: %w", clusterID, err)
		}
		all = append(all, asItems(rawPools)...)
	}
	return m.matchByName(all, "resource_pool", "resource pools", name), nil
}

// resolveVMID maps a VM name to its identifier. The unfiltered list call is
// retried with exponential backoff to tolerate transient upstream flakiness;
// a zero-match scan returns immediately and is never retried.
func (m *Manager) resolveVMID(ctx context.Context, name string) (Resolution, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.retryBaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	attempt := 0
	listVMs := func() (any, error) {
		attempt++
		raw, err := m.client.Invoke(ctx, vapi.OpList, vapi.TargetVM, vapi.Params{})
		if err != nil {
			m.logger.Warn("VM list failed during name resolution",
				"vm_name", name,
				"attempt", attempt,
				"error", err,
			)
			return nil, err
		}
		return raw, nil
	}

	raw, err := backoff.Retry(ctx, listVMs,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(vmListMaxAttempts),
	)
	if err != nil {
		return Resolution{}, fmt.Errorf("list VMs after %d attempts: %w", vmListMaxAttempts, err)
	}
	return m.matchByName(raw, "vm", "VMs", name), nil
}

// resolveHostID maps a host name to its identifier.
func (m *Manager) resolveHostID(ctx context.Context, name string) (Resolution, error) {
	raw, err := m.client.Invoke(ctx, vapi.OpList, vapi.TargetHost, vapi.Params{})
	if err != nil {
		return Resolution{}, fmt.Errorf("list hosts: %w", err)
	}
	return m.matchByName(raw, "host", "hosts", name), nil
}

// matchByName scans records for exact name matches. The first match in
// iteration order is authoritative; further matches only raise the duplicate
// warning. List order comes straight from the upstream and is deliberately
// not sorted, since callers observe first-match-wins semantics.
func (m *Manager) matchByName(raw any, idKey, kindPlural, name string) Resolution {
	var (
		found      Resolution
		matchCount int
	)

	for _, item := range asItems(raw) {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		recordName, _ := record["name"].(string)
		if recordName != name {
			continue
		}
		if matchCount == 0 {
			found = Resolution{
				ID:     vapi.ExtractText(record[idKey], idKey),
				Record: record,
			}
		}
		matchCount++
	}

	if matchCount > 1 {
		found.Warning = fmt.Sprintf("Found %d %s with the same name '%s'. Using the first match.", matchCount, kindPlural, name)
		m.logger.Warn("duplicate name detected", "kind", kindPlural, "name", name, "matches", matchCount)
	}
	return found
}

// asItems views a normalized list result as a slice, tolerating the object
// shape some endpoints use for single-element results.
func asItems(raw any) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case map[string]any:
		if inner, ok := v["items"].([]any); ok {
			return inner
		}
		if len(v) == 0 {
			return nil
		}
		return []any{v}
	default:
		return nil
	}
}
