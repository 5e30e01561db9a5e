package events

import (
	"time"

	"github.com/spec-kit/token-authority/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTokenGenerated EventType = "token_generated"
	EventTokenRevoked   EventType = "token_revoked"
)

// Event represents a lifecycle event emitted by the token authority.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Actor     string      `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TokenGeneratedPayload payload.
type TokenGeneratedPayload struct {
	Service   string        `json:"service"`
	Identity  *int64        `json:"identity,omitempty"`
	ExpiresIn domain.Expiry `json:"expires_in"`
}

// TokenRevokedPayload payload. Scope names the revocation operation (token,
// service, creator); Count is how many records the operation flagged.
type TokenRevokedPayload struct {
	Scope   string `json:"scope"`
	Service string `json:"service,omitempty"`
	Count   int    `json:"count"`
}
