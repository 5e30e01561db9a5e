package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/token-authority/internal/auth"
	"github.com/spec-kit/token-authority/internal/config"
	"github.com/spec-kit/token-authority/internal/domain"
	"github.com/spec-kit/token-authority/internal/events"
	"github.com/spec-kit/token-authority/internal/repository"
	"github.com/spec-kit/token-authority/internal/token"
	"github.com/spec-kit/token-authority/internal/upstream"
	apperrors "github.com/spec-kit/token-authority/pkg/util/errorutil"
)

// SecretResolver fetches signing secret material by key name.
type SecretResolver interface {
	Resolve(ctx context.Context, keyName string) ([]byte, error)
}

// RevocationCache is the fast path in front of the ledger's soft-delete
// flags. Positives only; a miss means "consult the ledger".
type RevocationCache interface {
	MarkRevoked(ctx context.Context, tokens []string)
	IsRevoked(ctx context.Context, token string) bool
}

// TokenService orchestrates the public token authority operations.
type TokenService struct {
	ledger      repository.TokenLedger
	codec       *token.Codec
	secrets     SecretResolver
	resolver    *AccessResolver
	revocations RevocationCache
	dispatcher  events.Dispatcher
	signingKey  string
	logger      *zap.Logger
}

// Dependencies encapsulates collaborator requirements for the token service.
type Dependencies struct {
	Ledger      repository.TokenLedger
	Secrets     SecretResolver
	Resolver    *AccessResolver
	Revocations RevocationCache
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewTokenService builds the service.
func NewTokenService(cfg config.Config, deps Dependencies) *TokenService {
	return &TokenService{
		ledger:      deps.Ledger,
		codec:       token.NewCodec(),
		secrets:     deps.Secrets,
		resolver:    deps.Resolver,
		revocations: deps.Revocations,
		dispatcher:  deps.Dispatcher,
		signingKey:  cfg.Secrets.SigningKey,
		logger:      deps.Logger,
	}
}

// GenerateInput carries the issuance request.
type GenerateInput struct {
	Payload   map[string]any
	Identity  *int64
	Service   string
	ExpiresIn domain.Expiry
}

// GenerateResult is the issuance outcome.
type GenerateResult struct {
	Token     string
	ExpiresIn domain.Expiry
}

// Generate signs a token for the caller and records it in the ledger. The
// injected identity/creator/service claims win over caller payload keys of
// the same name.
func (s *TokenService) Generate(ctx context.Context, actor string, input GenerateInput) (*GenerateResult, error) {
	creator := auth.NormalizeActor(actor)

	secret, err := s.secrets.Resolve(ctx, s.signingKey)
	if err != nil {
		return nil, err
	}

	claims := domain.Claims{}
	for k, v := range input.Payload {
		claims[k] = v
	}
	if input.Identity != nil {
		claims["identity"] = *input.Identity
	}
	claims["creator"] = creator
	claims["service"] = input.Service

	signed, err := s.codec.Sign(claims, secret, input.ExpiresIn)
	if err != nil {
		return nil, err
	}

	record := &domain.TokenRecord{
		Token:     signed,
		Identity:  input.Identity,
		Service:   input.Service,
		ExpiresIn: input.ExpiresIn,
		CreatedBy: creator,
	}
	if err := s.ledger.Insert(ctx, record); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventTokenGenerated, creator, events.TokenGeneratedPayload{
		Service:   input.Service,
		Identity:  input.Identity,
		ExpiresIn: input.ExpiresIn,
	})

	return &GenerateResult{Token: signed, ExpiresIn: input.ExpiresIn}, nil
}

// Payload verifies a token and returns its decoded claims. Expired, invalid
// and revoked tokens map to their distinct user-facing classifications.
func (s *TokenService) Payload(ctx context.Context, tokenStr string) (domain.Claims, error) {
	claims, signed, err := s.verify(ctx, tokenStr)
	if err != nil {
		return nil, err
	}
	if err := s.checkRevocation(ctx, signed); err != nil {
		return nil, err
	}
	return claims, nil
}

// DeleteByToken revokes one of the caller's tokens. Revoking a token the
// caller does not own is indistinguishable from revoking a missing one.
func (s *TokenService) DeleteByToken(ctx context.Context, actor, tokenStr string) error {
	creator := auth.NormalizeActor(actor)
	signed := strings.TrimSpace(tokenStr)

	revoked, err := s.ledger.SoftDeleteByToken(ctx, signed, creator)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewTokenNotFound()
		}
		return err
	}

	s.revocations.MarkRevoked(ctx, revoked)
	s.publish(ctx, events.EventTokenRevoked, creator, events.TokenRevokedPayload{
		Scope: "token",
		Count: len(revoked),
	})
	return nil
}

// DeleteByService revokes every token the caller created for a service.
// Revoking nothing is a success.
func (s *TokenService) DeleteByService(ctx context.Context, actor, service string) error {
	creator := auth.NormalizeActor(actor)

	revoked, err := s.ledger.SoftDeleteByService(ctx, service, creator)
	if err != nil {
		return err
	}

	s.revocations.MarkRevoked(ctx, revoked)
	s.publish(ctx, events.EventTokenRevoked, creator, events.TokenRevokedPayload{
		Scope:   "service",
		Service: service,
		Count:   len(revoked),
	})
	return nil
}

// DeleteByCreator revokes every token the caller ever created.
func (s *TokenService) DeleteByCreator(ctx context.Context, actor string) error {
	creator := auth.NormalizeActor(actor)

	revoked, err := s.ledger.SoftDeleteByCreator(ctx, creator)
	if err != nil {
		return err
	}

	s.revocations.MarkRevoked(ctx, revoked)
	s.publish(ctx, events.EventTokenRevoked, creator, events.TokenRevokedPayload{
		Scope: "creator",
		Count: len(revoked),
	})
	return nil
}

// PageMeta describes one search result page. Total is the full filtered set
// size; Last is the highest page number with content.
type PageMeta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Last  int   `json:"last"`
}

// SearchResult is one page of the caller's ledger records.
type SearchResult struct {
	Records []domain.TokenRecord
	Meta    PageMeta
}

// Search enumerates the caller's issued tokens, most recent first. Soft
// deleted records stay visible; the Deleted flag tells them apart.
func (s *TokenService) Search(ctx context.Context, actor string, service *string, page, limit int) (*SearchResult, error) {
	creator := auth.NormalizeActor(actor)

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	records, total, err := s.ledger.Search(ctx, repository.SearchFilter{
		CreatedBy: creator,
		Service:   service,
		Limit:     limit,
		Offset:    (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}

	return &SearchResult{
		Records: records,
		Meta: PageMeta{
			Page:  page,
			Limit: limit,
			Total: total,
			Last:  int(math.Ceil(float64(total) / float64(limit))),
		},
	}, nil
}

// WhoisthisResult combines decoded claims, the permission verdict and the
// owning service's identity description.
type WhoisthisResult struct {
	Payload     domain.Claims
	Permissions *upstream.PermissionResult
	Whoisthis   json.RawMessage
}

// Whoisthis verifies a token and resolves who it belongs to and what it may
// do, in one composite operation.
func (s *TokenService) Whoisthis(ctx context.Context, tokenStr string, permissions []string) (*WhoisthisResult, error) {
	claims, signed, err := s.verify(ctx, tokenStr)
	if err != nil {
		return nil, err
	}
	if err := s.checkRevocation(ctx, signed); err != nil {
		return nil, err
	}

	decision, err := s.resolver.Resolve(ctx, permissions, claims)
	if err != nil {
		return nil, err
	}

	return &WhoisthisResult{
		Payload:     decision.Claims,
		Permissions: decision.Permissions,
		Whoisthis:   decision.Whoisthis,
	}, nil
}

// verify resolves the signing secret and decodes the token, mapping codec
// failures to their user-facing classifications.
func (s *TokenService) verify(ctx context.Context, tokenStr string) (domain.Claims, string, error) {
	signed := strings.TrimSpace(tokenStr)

	secret, err := s.secrets.Resolve(ctx, s.signingKey)
	if err != nil {
		return nil, "", err
	}

	claims, err := s.codec.Verify(signed, secret)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpired):
			return nil, "", apperrors.NewTokenExpired()
		case errors.Is(err, token.ErrInvalid):
			return nil, "", apperrors.NewTokenInvalid()
		default:
			return nil, "", err
		}
	}
	return claims, signed, nil
}

// checkRevocation rejects soft-deleted tokens: cache first, ledger on a miss.
// A ledger hit backfills the cache. Tokens the ledger has never seen pass;
// the signature already vouches for them.
func (s *TokenService) checkRevocation(ctx context.Context, signed string) error {
	if s.revocations.IsRevoked(ctx, signed) {
		return apperrors.NewTokenRevoked()
	}

	record, err := s.ledger.GetByToken(ctx, signed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	if record.Deleted {
		s.revocations.MarkRevoked(ctx, []string{signed})
		return apperrors.NewTokenRevoked()
	}
	return nil
}

func (s *TokenService) publish(ctx context.Context, eventType events.EventType, actor string, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Actor:     actor,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
