package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-authority/internal/api/dto"
	"github.com/spec-kit/token-authority/internal/auth"
	"github.com/spec-kit/token-authority/internal/domain"
	"github.com/spec-kit/token-authority/internal/service"
	apperrors "github.com/spec-kit/token-authority/pkg/util/errorutil"
)

// TokensHandler exposes the token authority operations.
type TokensHandler struct {
	tokens *service.TokenService
}

// NewTokensHandler constructs handler.
func NewTokensHandler(tokens *service.TokenService) *TokensHandler {
	return &TokensHandler{tokens: tokens}
}

// Generate handles POST /v1/token/generate.
func (h *TokensHandler) Generate(c *fiber.Ctx) error {
	var req dto.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Service == "" {
		return apperrors.NewValidationError("service required", nil)
	}
	if req.Identity != nil && *req.Identity < 1 {
		return apperrors.NewValidationError("identity must be positive", nil)
	}

	expiry := domain.Expiry(req.ExpiresIn)
	if req.ExpiresIn == "" {
		expiry = domain.ExpiryAlways
	}
	if !expiry.Valid() {
		return apperrors.NewValidationError("unknown expiresIn value", map[string]any{"expiresIn": req.ExpiresIn})
	}

	actor, _ := auth.ActorFromContext(c)
	result, err := h.tokens.Generate(c.UserContext(), actor, service.GenerateInput{
		Payload:   req.Payload,
		Identity:  req.Identity,
		Service:   req.Service,
		ExpiresIn: expiry,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"code": http.StatusOK,
		"i18n": "TOKEN_GENERATED",
		"data": dto.GenerateResponse{Token: result.Token, ExpiresIn: string(result.ExpiresIn)},
	})
}

// Payload handles POST /v1/token/payload.
func (h *TokensHandler) Payload(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Token == "" {
		return apperrors.NewValidationError("token required", nil)
	}

	claims, err := h.tokens.Payload(c.UserContext(), req.Token)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"code": http.StatusOK,
		"i18n": "TOKEN_PAYLOAD",
		"data": claims,
	})
}

// DeleteByToken handles DELETE /v1/token/delete/token.
func (h *TokensHandler) DeleteByToken(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Token == "" {
		return apperrors.NewValidationError("token required", nil)
	}

	actor, _ := auth.ActorFromContext(c)
	if err := h.tokens.DeleteByToken(c.UserContext(), actor, req.Token); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"code": http.StatusOK})
}

// DeleteByService handles DELETE /v1/token/delete/service.
func (h *TokensHandler) DeleteByService(c *fiber.Ctx) error {
	var req dto.DeleteByServiceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Service == "" {
		return apperrors.NewValidationError("service required", nil)
	}

	actor, _ := auth.ActorFromContext(c)
	if err := h.tokens.DeleteByService(c.UserContext(), actor, req.Service); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"code": http.StatusOK})
}

// DeleteByCreator handles DELETE /v1/token/delete/creator.
func (h *TokensHandler) DeleteByCreator(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	if err := h.tokens.DeleteByCreator(c.UserContext(), actor); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"code": http.StatusOK})
}

// Search handles POST /v1/token/search.
func (h *TokensHandler) Search(c *fiber.Ctx) error {
	var req dto.SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Page < 0 || req.Limit < 0 {
		return apperrors.NewValidationError("page and limit must be positive", nil)
	}

	actor, _ := auth.ActorFromContext(c)
	result, err := h.tokens.Search(c.UserContext(), actor, req.Service, req.Page, req.Limit)
	if err != nil {
		return err
	}

	records := make([]dto.TokenRecordResponse, 0, len(result.Records))
	for _, record := range result.Records {
		records = append(records, dto.FromRecord(record))
	}

	return c.JSON(fiber.Map{
		"code": http.StatusOK,
		"i18n": "TOKENS_FOUND",
		"meta": result.Meta,
		"data": records,
	})
}

// Whoisthis handles POST /v1/token/whoisthis.
func (h *TokensHandler) Whoisthis(c *fiber.Ctx) error {
	var req dto.WhoisthisRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Token == "" {
		return apperrors.NewValidationError("token required", nil)
	}

	result, err := h.tokens.Whoisthis(c.UserContext(), req.Token, req.Permissions)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"code": http.StatusOK,
		"i18n": "TOKEN_PAYLOAD",
		"data": fiber.Map{
			"payload":     result.Payload,
			"permissions": result.Permissions,
			"whoisthis":   result.Whoisthis,
		},
	})
}
