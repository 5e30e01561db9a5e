package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/token-authority/internal/config"
	"github.com/spec-kit/token-authority/internal/domain"
	"github.com/spec-kit/token-authority/internal/repository/repofake"
	"github.com/spec-kit/token-authority/internal/service"
	"github.com/spec-kit/token-authority/internal/upstream"
	apperrors "github.com/spec-kit/token-authority/pkg/util/errorutil"
)

const testSigningKey = "JWT_SECRET"

var testSecret = []byte("service-test-secret")

type fakeSecrets struct {
	secret []byte
	err    error
}

func (f *fakeSecrets) Resolve(_ context.Context, _ string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.secret, nil
}

type fakePermissions struct {
	mu       sync.Mutex
	result   *upstream.PermissionResult
	err      error
	called   bool
	gotPerms []string
}

func (f *fakePermissions) Has(_ context.Context, _ int64, _ string, permissions []string) (*upstream.PermissionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = true
	f.gotPerms = permissions
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeIdentities struct {
	mu     sync.Mutex
	result json.RawMessage
	err    error
	called bool
}

func (f *fakeIdentities) Whoisthis(_ context.Context, _ string, _ *int64) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeRevocations struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func newFakeRevocations() *fakeRevocations {
	return &fakeRevocations{revoked: make(map[string]bool)}
}

func (f *fakeRevocations) MarkRevoked(_ context.Context, tokens []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tokens {
		f.revoked[t] = true
	}
}

func (f *fakeRevocations) IsRevoked(_ context.Context, token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[token]
}

type fixture struct {
	ledger      *repofake.FakeTokenLedger
	secrets     *fakeSecrets
	permissions *fakePermissions
	identities  *fakeIdentities
	revocations *fakeRevocations
	service     *service.TokenService
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	ledger := repofake.NewFakeTokenLedger()
	secrets := &fakeSecrets{secret: testSecret}
	permissions := &fakePermissions{result: &upstream.PermissionResult{Has: true, Permissions: []string{"read"}}}
	identities := &fakeIdentities{result: json.RawMessage(`{"name":"Alice Example"}`)}
	revocations := newFakeRevocations()

	cfg := config.Config{Secrets: config.SecretsConfig{SigningKey: testSigningKey}}
	svc := service.NewTokenService(cfg, service.Dependencies{
		Ledger:      ledger,
		Secrets:     secrets,
		Resolver:    service.NewAccessResolver(permissions, identities),
		Revocations: revocations,
	})

	return &fixture{
		ledger:      ledger,
		secrets:     secrets,
		permissions: permissions,
		identities:  identities,
		revocations: revocations,
		service:     svc,
	}
}

func (f *fixture) generate(t *testing.T, actor, svcName string, identity *int64, expiry domain.Expiry) string {
	t.Helper()
	result, err := f.service.Generate(context.Background(), actor, service.GenerateInput{
		Payload:   map[string]any{},
		Identity:  identity,
		Service:   svcName,
		ExpiresIn: expiry,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	return result.Token
}

func identityPtr(v int64) *int64 { return &v }

func TestGenerateAndPayloadLifecycle(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	// Actor identity is normalized before signing and storage.
	tok := f.generate(t, "  Alice  ", "billing", nil, domain.Expiry1H)

	claims, err := f.service.Payload(ctx, tok)
	require.NoError(t, err)
	require.Equal(t, "alice", claims["creator"])
	require.Equal(t, "billing", claims["service"])

	require.NoError(t, f.service.DeleteByToken(ctx, "alice", tok))

	// Second revoke finds nothing left to flag.
	err = f.service.DeleteByToken(ctx, "alice", tok)
	require.Equal(t, "TOKEN_NOT_FOUND", apperrors.ToDomainError(err).Code)

	// A revoked token no longer resolves.
	_, err = f.service.Payload(ctx, tok)
	require.Equal(t, "TOKEN_REVOKED", apperrors.ToDomainError(err).Code)
}

func TestDeleteByTokenOwnershipIsolation(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	tok := f.generate(t, "alice", "billing", nil, domain.ExpiryAlways)

	err := f.service.DeleteByToken(ctx, "bob", tok)
	require.Equal(t, "TOKEN_NOT_FOUND", apperrors.ToDomainError(err).Code)

	// The record is untouched and still resolves.
	claims, err := f.service.Payload(ctx, tok)
	require.NoError(t, err)
	require.Equal(t, "alice", claims["creator"])
}

func TestGeneratePropagatesSecretFailureVerbatim(t *testing.T) {
	f := setupFixture(t)
	f.secrets.err = apperrors.NewUpstreamError("secret-provider", 500, []byte(`{"code":500}`))

	_, err := f.service.Generate(context.Background(), "alice", service.GenerateInput{
		Service:   "billing",
		ExpiresIn: domain.ExpiryAlways,
	})
	upstreamErr, ok := apperrors.AsUpstream(err)
	require.True(t, ok)
	require.Equal(t, "secret-provider", upstreamErr.Source)
}

func TestPayloadClassifications(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"service": "billing",
		"exp":     jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	expiredStr, err := expired.SignedString(testSecret)
	require.NoError(t, err)

	_, err = f.service.Payload(ctx, expiredStr)
	require.Equal(t, "TOKEN_EXPIRED", apperrors.ToDomainError(err).Code)

	_, err = f.service.Payload(ctx, "definitely.not.valid")
	require.Equal(t, "TOKEN_INVALID", apperrors.ToDomainError(err).Code)
}

func TestDeleteByServicePermissiveAndScoped(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	billing1 := f.generate(t, "alice", "billing", nil, domain.ExpiryAlways)
	billing2 := f.generate(t, "alice", "billing", nil, domain.ExpiryAlways)
	shipping := f.generate(t, "alice", "shipping", nil, domain.ExpiryAlways)
	bobBilling := f.generate(t, "bob", "billing", nil, domain.ExpiryAlways)

	// Nothing matches: still a success.
	require.NoError(t, f.service.DeleteByService(ctx, "carol", "billing"))

	require.NoError(t, f.service.DeleteByService(ctx, "alice", "billing"))

	for _, revoked := range []string{billing1, billing2} {
		_, err := f.service.Payload(ctx, revoked)
		require.Equal(t, "TOKEN_REVOKED", apperrors.ToDomainError(err).Code)
	}
	for _, alive := range []string{shipping, bobBilling} {
		_, err := f.service.Payload(ctx, alive)
		require.NoError(t, err)
	}
}

func TestDeleteByCreatorRevokesEverything(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	one := f.generate(t, "alice", "billing", nil, domain.ExpiryAlways)
	two := f.generate(t, "alice", "shipping", nil, domain.ExpiryAlways)
	other := f.generate(t, "bob", "billing", nil, domain.ExpiryAlways)

	require.NoError(t, f.service.DeleteByCreator(ctx, "alice"))

	for _, revoked := range []string{one, two} {
		_, err := f.service.Payload(ctx, revoked)
		require.Equal(t, "TOKEN_REVOKED", apperrors.ToDomainError(err).Code)
	}
	_, err := f.service.Payload(ctx, other)
	require.NoError(t, err)
}

func TestSearchPagination(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		f.generate(t, "alice", "billing", nil, domain.ExpiryAlways)
	}
	f.generate(t, "bob", "billing", nil, domain.ExpiryAlways)

	result, err := f.service.Search(ctx, "alice", nil, 2, 10)
	require.NoError(t, err)

	require.Equal(t, 10, f.ledger.LastLimit)
	require.Equal(t, 10, f.ledger.LastOffset)
	require.Len(t, result.Records, 10)
	require.Equal(t, int64(25), result.Meta.Total)
	require.Equal(t, 3, result.Meta.Last)
	require.Equal(t, 2, result.Meta.Page)

	// Defaults apply when page/limit are unset.
	result, err = f.service.Search(ctx, "alice", nil, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.Meta.Page)
	require.Equal(t, 10, result.Meta.Limit)
}

func TestSearchKeepsSoftDeletedVisible(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	tok := f.generate(t, "alice", "billing", nil, domain.ExpiryAlways)
	require.NoError(t, f.service.DeleteByToken(ctx, "alice", tok))

	result, err := f.service.Search(ctx, "alice", nil, 1, 10)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.True(t, result.Records[0].Deleted)
	require.NotNil(t, result.Records[0].DeletedAt)
}

func TestSearchFiltersByService(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	f.generate(t, "alice", "billing", nil, domain.ExpiryAlways)
	f.generate(t, "alice", "shipping", nil, domain.ExpiryAlways)

	svcName := "billing"
	result, err := f.service.Search(ctx, "alice", &svcName, 1, 10)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.Equal(t, "billing", result.Records[0].Service)
	require.Equal(t, int64(1), result.Meta.Total)
}

func TestWhoisthisFullSuccess(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	tok := f.generate(t, "alice", "billing", identityPtr(42), domain.Expiry1H)

	result, err := f.service.Whoisthis(ctx, tok, []string{"read"})
	require.NoError(t, err)

	require.Equal(t, "alice", result.Payload["creator"])
	require.True(t, result.Permissions.Has)
	require.JSONEq(t, `{"name":"Alice Example"}`, string(result.Whoisthis))

	require.True(t, f.permissions.called)
	require.Equal(t, []string{"read"}, f.permissions.gotPerms)
	require.True(t, f.identities.called)
}

func TestWhoisthisDeniedDiscardsIdentity(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	f.permissions.result = &upstream.PermissionResult{
		Has:    false,
		Detail: map[string]any{"has": false, "missing": []any{"read"}},
	}

	tok := f.generate(t, "alice", "billing", identityPtr(42), domain.Expiry1H)

	_, err := f.service.Whoisthis(ctx, tok, []string{"read"})
	domainErr := apperrors.ToDomainError(err)
	require.Equal(t, "ACCESS_DENIED", domainErr.Code)
	require.Equal(t, f.permissions.result.Detail, domainErr.Details)

	// Both calls were launched concurrently; the identity result computed and
	// then discarded, never exposed.
	require.True(t, f.identities.called)
	require.NotContains(t, domainErr.Details, "name")
}

func TestWhoisthisEmptyPermissionsAutoGrant(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	// A real check would fail loudly; the auto-grant shortcut must not call it.
	f.permissions.err = errors.New("permission authority must not be consulted")

	tok := f.generate(t, "alice", "billing", identityPtr(42), domain.Expiry1H)

	result, err := f.service.Whoisthis(ctx, tok, nil)
	require.NoError(t, err)
	require.False(t, f.permissions.called)
	require.True(t, result.Permissions.Has)
	require.Empty(t, result.Permissions.Permissions)
}

func TestWhoisthisMissingIdentitySkipsCheck(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	f.permissions.err = errors.New("permission authority must not be consulted")

	tok := f.generate(t, "alice", "billing", nil, domain.Expiry1H)

	result, err := f.service.Whoisthis(ctx, tok, []string{"read"})
	require.NoError(t, err)
	require.False(t, f.permissions.called)
	require.True(t, result.Permissions.Has)
}

func TestWhoisthisPermissionFailurePropagates(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	f.permissions.err = apperrors.NewUpstreamError("permission-authority", 500, []byte(`{"code":500}`))

	tok := f.generate(t, "alice", "billing", identityPtr(42), domain.Expiry1H)

	_, err := f.service.Whoisthis(ctx, tok, []string{"read"})
	upstreamErr, ok := apperrors.AsUpstream(err)
	require.True(t, ok)
	require.Equal(t, "permission-authority", upstreamErr.Source)
}

func TestWhoisthisIdentityFailurePropagates(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	f.identities.err = apperrors.NewUpstreamError("identity:billing", 500, []byte(`{"code":500}`))

	tok := f.generate(t, "alice", "billing", identityPtr(42), domain.Expiry1H)

	_, err := f.service.Whoisthis(ctx, tok, []string{"read"})
	upstreamErr, ok := apperrors.AsUpstream(err)
	require.True(t, ok)
	require.Equal(t, "identity:billing", upstreamErr.Source)
}

func TestWhoisthisRejectsRevokedToken(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	tok := f.generate(t, "alice", "billing", identityPtr(42), domain.Expiry1H)
	require.NoError(t, f.service.DeleteByToken(ctx, "alice", tok))

	_, err := f.service.Whoisthis(ctx, tok, nil)
	require.Equal(t, "TOKEN_REVOKED", apperrors.ToDomainError(err).Code)
}
