package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/spec-kit/token-authority/internal/config"
	apperrors "github.com/spec-kit/token-authority/pkg/util/errorutil"
)

// Envelope is the response convention shared by every collaborator: the secret
// provider, the permission authority and the identity-owning services.
type Envelope struct {
	Code int             `json:"code"`
	I18n string          `json:"i18n,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewHTTPClient builds the shared retrying HTTP client. Retries cover
// transport-level flakiness only; application-level failures relay verbatim
// and are never retried.
func NewHTTPClient(cfg config.UpstreamConfig) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient = cleanhttp.DefaultPooledClient()
	client.HTTPClient.Timeout = cfg.Timeout()
	client.RetryMax = cfg.RetryMax
	client.Logger = nil
	return client
}

// CallJSON performs one collaborator request and returns the envelope's data
// on success. A non-200 envelope (or HTTP status) becomes an UpstreamError
// carrying the collaborator's body verbatim.
func CallJSON(ctx context.Context, client *retryablehttp.Client, source, method, url string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", source, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", source, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", source, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewUpstreamError(source, resp.StatusCode, raw)
	}

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%s: decode envelope: %w", source, err)
	}
	if envelope.Code != http.StatusOK {
		return nil, apperrors.NewUpstreamError(source, envelope.Code, raw)
	}
	return envelope.Data, nil
}
