package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/spec-kit/token-authority/internal/config"
)

// IdentityClient resolves "describe this identity" lookups against whichever
// service a token names as its owner. Services are located by substituting the
// service name into the configured URL template.
type IdentityClient struct {
	client      *retryablehttp.Client
	urlTemplate string
}

// NewIdentityClient builds the client.
func NewIdentityClient(client *retryablehttp.Client, cfg config.UpstreamConfig) *IdentityClient {
	return &IdentityClient{client: client, urlTemplate: cfg.IdentityURLTemplate}
}

type whoisthisRequest struct {
	Identity *int64 `json:"identity,omitempty"`
}

// Whoisthis asks the owning service to describe the identity. The description
// is opaque to the authority and relayed as-is.
func (c *IdentityClient) Whoisthis(ctx context.Context, service string, identity *int64) (json.RawMessage, error) {
	endpoint := fmt.Sprintf(c.urlTemplate, service) + "/whoisthis"
	body := whoisthisRequest{Identity: identity}

	return CallJSON(ctx, c.client, "identity:"+service, http.MethodPost, endpoint, body)
}
