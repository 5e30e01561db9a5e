package dto

import (
	"time"

	"github.com/spec-kit/token-authority/internal/domain"
)

// GenerateRequest payload for token issuance.
type GenerateRequest struct {
	Payload   map[string]any `json:"payload"`
	Identity  *int64         `json:"identity"`
	Service   string         `json:"service"`
	ExpiresIn string         `json:"expiresIn"`
}

// GenerateResponse returns the signed token and its expiry label.
type GenerateResponse struct {
	Token     string `json:"token"`
	ExpiresIn string `json:"expiresIn"`
}

// TokenRequest carries a single opaque token.
type TokenRequest struct {
	Token string `json:"token"`
}

// DeleteByServiceRequest payload for service-scoped revocation.
type DeleteByServiceRequest struct {
	Service string `json:"service"`
}

// SearchRequest payload for paginated enumeration.
type SearchRequest struct {
	Service *string `json:"service"`
	Page    int     `json:"page"`
	Limit   int     `json:"limit"`
}

// WhoisthisRequest payload for composite resolution.
type WhoisthisRequest struct {
	Token       string   `json:"token"`
	Permissions []string `json:"permissions"`
}

// TokenRecordResponse is one ledger row in a search page.
type TokenRecordResponse struct {
	ID        int64      `json:"id"`
	Token     string     `json:"token"`
	Identity  *int64     `json:"identity,omitempty"`
	Service   string     `json:"service"`
	ExpiresIn string     `json:"expiresIn"`
	CreatedBy string     `json:"createdBy"`
	Deleted   bool       `json:"deleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// FromRecord maps a ledger record onto the wire shape.
func FromRecord(record domain.TokenRecord) TokenRecordResponse {
	return TokenRecordResponse{
		ID:        record.ID,
		Token:     record.Token,
		Identity:  record.Identity,
		Service:   record.Service,
		ExpiresIn: string(record.ExpiresIn),
		CreatedBy: record.CreatedBy,
		Deleted:   record.Deleted,
		DeletedAt: record.DeletedAt,
		CreatedAt: record.CreatedAt,
	}
}
