package errorutil_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/token-authority/pkg/util/errorutil"
)

func TestToDomainErrorPassesThroughClassifications(t *testing.T) {
	err := apperrors.NewTokenExpired()
	domainErr := apperrors.ToDomainError(err)
	require.Equal(t, "TOKEN_EXPIRED", domainErr.Code)
	require.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus)
}

func TestToDomainErrorCollapsesUnknownErrors(t *testing.T) {
	domainErr := apperrors.ToDomainError(errors.New("pool exhausted"))
	require.Equal(t, "INTERNAL_ERROR", domainErr.Code)
	require.Equal(t, http.StatusInternalServerError, domainErr.HTTPStatus)
	// The underlying cause stays wrapped for logging, not for the caller.
	require.EqualError(t, domainErr.Unwrap(), "pool exhausted")
}

func TestUpstreamErrorCarriesBodyVerbatim(t *testing.T) {
	body := []byte(`{"code":500,"i18n":"CONFIG_UNAVAILABLE"}`)
	err := apperrors.NewUpstreamError("secret-provider", 500, body)

	upstreamErr, ok := apperrors.AsUpstream(err)
	require.True(t, ok)
	require.Equal(t, "secret-provider", upstreamErr.Source)
	require.Equal(t, 500, upstreamErr.Status)
	require.JSONEq(t, string(body), string(upstreamErr.Body))
}

func TestAccessDeniedCarriesDetail(t *testing.T) {
	detail := map[string]any{"has": false, "missing": []string{"read"}}
	domainErr := apperrors.ToDomainError(apperrors.NewAccessDenied(detail))
	require.Equal(t, "ACCESS_DENIED", domainErr.Code)
	require.Equal(t, http.StatusForbidden, domainErr.HTTPStatus)
	require.Equal(t, detail, domainErr.Details)
}
