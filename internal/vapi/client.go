// Package vapi implements the protocol client for vCenter's session-based
// HTTP/JSON API: session lifecycle, endpoint mapping, envelope normalization,
// and the single automatic retry on authorization failure.
package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Operation classifies a vAPI invocation.
type Operation string

const (
	OpList   Operation = "list"
	OpGet    Operation = "get"
	OpAction Operation = "action"
)

// Target identifies which inventory endpoint an invocation addresses.
type Target string

const (
	TargetCluster          Target = "cluster"
	TargetResourcePool     Target = "resource-pool"
	TargetVM               Target = "vm"
	TargetDatacenter       Target = "datacenter"
	TargetHost             Target = "host"
	TargetDatastore        Target = "datastore"
	TargetApplianceVersion Target = "appliance-version"
)

// Actions accepted by Invoke for OpAction on TargetVM.
const (
	ActionStart    = "start"
	ActionStop     = "stop"
	ActionReset    = "reset"
	ActionReboot   = "reboot"
	ActionShutdown = "shutdown"
	ActionRelocate = "relocate"
)

const sessionHeader = "vmware-api-session-id"

// Params carry the operation-specific inputs for Invoke. List operations read
// Cluster/ResourcePool as filters; get operations read VM/Datastore as the
// target id; action operations read VM, Action, and (for relocate) Host.
type Params struct {
	Cluster      string
	ResourcePool string
	VM           string
	Datastore    string
	Action       string
	Host         string
}

// Client issues requests against the vCenter vAPI endpoints, attaching the
// current session token and unwrapping the inconsistent response envelopes the
// different endpoint generations produce.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions *SessionManager
	logger   *slog.Logger
}

// NewClient constructs a protocol client. The session manager is injected so
// one token slot is shared by every caller in the process.
func NewClient(baseURL string, httpClient *http.Client, sessions *SessionManager, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		sessions: sessions,
		logger:   logger,
	}
}

// Invoke performs one vAPI operation and returns the decoded logical result.
// On a 401-class failure the cached session token is invalidated and the call
// is retried exactly once with a fresh token; a second failure propagates.
func (c *Client) Invoke(ctx context.Context, op Operation, target Target, params Params) (any, error) {
	result, err := c.attempt(ctx, op, target, params)
	if err == nil {
		return result, nil
	}
	if !isUnauthorized(err) {
		return nil, fmt.Errorf("invoke %s %s: %w", op, target, err)
	}

	c.logger.Warn("received 401 from vCenter, clearing session token and retrying once",
		"operation", string(op), "target", string(target))
	c.sessions.Invalidate()

	result, retryErr := c.attempt(ctx, op, target, params)
	if retryErr != nil {
		return nil, fmt.Errorf("invoke %s %s after session refresh: %w", op, target, retryErr)
	}
	return result, nil
}

func (c *Client) attempt(ctx context.Context, op Operation, target Target, params Params) (any, error) {
	endpoint, err := endpointFor(target)
	if err != nil {
		return nil, err
	}

	var (
		method = http.MethodGet
		path   = endpoint
		body   []byte
	)

	switch op {
	case OpList:
		path = endpoint + listQuery(params)
	case OpGet:
		path = endpoint + getQuery(target, params)
	case OpAction:
		method = http.MethodPost
		path, body, err = actionRequest(endpoint, params)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported operation %q", op)
	}

	token, err := c.sessions.Token(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("vAPI request", "method", method, "path", path)

	raw, err := c.do(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}
	return unwrapEnvelope(raw)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, token string) (any, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(sessionHeader, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	// Some successful writes come back with an empty body; treat it as an
	// empty object rather than a parse failure.
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return map[string]any{}, nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return parsed, nil
}

// unwrapEnvelope resolves the three response shapes the upstream emits: a
// "result"-wrapped object, a bare array, or a plain object. An "error" field
// takes precedence and fails the call with the extracted message.
func unwrapEnvelope(parsed any) (any, error) {
	obj, isObject := parsed.(map[string]any)
	if isObject {
		if errField, ok := obj["error"]; ok {
			message := "Unknown vAPI error"
			if errObj, ok := errField.(map[string]any); ok {
				if msg, ok := errObj["message"].(string); ok && msg != "" {
					message = msg
				}
			}
			return nil, &UpstreamError{Message: message}
		}
		if result, ok := obj["result"]; ok {
			return result, nil
		}
	}
	return parsed, nil
}

func endpointFor(target Target) (string, error) {
	switch target {
	case TargetCluster:
		return "/api/vcenter/cluster", nil
	case TargetResourcePool:
		return "/api/vcenter/resource-pool", nil
	case TargetVM:
		return "/api/vcenter/vm", nil
	case TargetDatacenter:
		return "/api/vcenter/datacenter", nil
	case TargetHost:
		return "/api/vcenter/host", nil
	case TargetDatastore:
		return "/api/vcenter/datastore", nil
	case TargetApplianceVersion:
		return "/api/appliance/system/version", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
}

func listQuery(params Params) string {
	var parts []string
	if params.Cluster != "" {
		parts = append(parts, "clusters="+params.Cluster)
	}
	if params.ResourcePool != "" {
		parts = append(parts, "resource_pools="+params.ResourcePool)
	}
	if len(parts) == 0 {
		return ""
	}
	return "?" + strings.Join(parts, "&")
}

func getQuery(target Target, params Params) string {
	switch target {
	case TargetVM:
		if params.VM != "" {
			return "?filter.vms=" + params.VM
		}
	case TargetDatastore:
		if params.Datastore != "" {
			return "?datastores=" + params.Datastore
		}
	}
	return ""
}

func actionRequest(endpoint string, params Params) (string, []byte, error) {
	if params.VM == "" {
		return "", nil, fmt.Errorf("action requires a vm id")
	}

	switch params.Action {
	case ActionStart, ActionStop, ActionReset:
		return endpoint + "/" + params.VM + "/power/" + params.Action, nil, nil
	case ActionReboot, ActionShutdown:
		return endpoint + "/" + params.VM + "/guest/power/" + params.Action, nil, nil
	case ActionRelocate:
		body, err := json.Marshal(map[string]string{"host": params.Host})
		if err != nil {
			return "", nil, fmt.Errorf("marshal relocate spec: %w", err)
		}
		return endpoint + "/" + params.VM + "/action/relocate", body, nil
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownAction, params.Action)
	}
}
