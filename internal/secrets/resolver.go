package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/spec-kit/token-authority/internal/config"
	"github.com/spec-kit/token-authority/internal/upstream"
)

// Resolver fetches secret material by key name from the external secret
// provider. Pure lookup: no caching, no state. Correctness of signing and
// verification rides on always seeing the provider's current value.
type Resolver struct {
	client  *retryablehttp.Client
	baseURL string
}

// NewResolver builds a resolver against the configured provider.
func NewResolver(client *retryablehttp.Client, cfg config.SecretsConfig) *Resolver {
	return &Resolver{client: client, baseURL: cfg.ProviderURL}
}

type secretPayload struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Resolve returns the secret stored under keyName. Provider failures relay
// verbatim to the caller.
func (r *Resolver) Resolve(ctx context.Context, keyName string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/v1/config/get?key=%s", r.baseURL, url.QueryEscape(keyName))

	data, err := upstream.CallJSON(ctx, r.client, "secret-provider", http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var payload secretPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("secret-provider: decode payload: %w", err)
	}
	if payload.Value == "" {
		return nil, fmt.Errorf("secret-provider: empty value for key %s", keyName)
	}
	return []byte(payload.Value), nil
}
