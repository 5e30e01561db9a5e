package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/spec-kit/token-authority/internal/config"
)

// PermissionResult is the permission authority's verdict. Detail keeps the
// authority's data block intact so the verdict travels to the caller
// unchanged, extra fields included.
type PermissionResult struct {
	Has         bool           `json:"has"`
	Permissions []string       `json:"permissions"`
	Detail      map[string]any `json:"-"`
}

// MarshalJSON relays the authority's data block verbatim when present.
func (r *PermissionResult) MarshalJSON() ([]byte, error) {
	if r.Detail != nil {
		return json.Marshal(r.Detail)
	}
	type plain PermissionResult
	return json.Marshal((*plain)(r))
}

// PermissionClient talks to the external permission authority.
type PermissionClient struct {
	client  *retryablehttp.Client
	baseURL string
}

// NewPermissionClient builds the client.
func NewPermissionClient(client *retryablehttp.Client, cfg config.UpstreamConfig) *PermissionClient {
	return &PermissionClient{client: client, baseURL: cfg.PermissionURL}
}

type permissionRequest struct {
	Identity    int64    `json:"identity"`
	Service     string   `json:"service"`
	Permissions []string `json:"permissions"`
}

// Has asks whether the identity holds the named permissions within the owning
// service. A "does not have" verdict is a successful call; only transport and
// upstream envelope failures are errors.
func (c *PermissionClient) Has(ctx context.Context, identity int64, service string, permissions []string) (*PermissionResult, error) {
	endpoint := c.baseURL + "/v1/permission/has"
	body := permissionRequest{Identity: identity, Service: service, Permissions: permissions}

	data, err := CallJSON(ctx, c.client, "permission-authority", http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}

	var result PermissionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("permission-authority: decode verdict: %w", err)
	}
	if err := json.Unmarshal(data, &result.Detail); err != nil {
		return nil, fmt.Errorf("permission-authority: decode detail: %w", err)
	}
	return &result, nil
}
