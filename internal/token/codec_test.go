package token_test

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/token-authority/internal/domain"
	"github.com/spec-kit/token-authority/internal/token"
)

var testSecret = []byte("unit-test-secret")

func TestSignVerifyRoundTrip(t *testing.T) {
	codec := token.NewCodec()

	claims := domain.Claims{
		"identity": int64(42),
		"creator":  "alice",
		"service":  "billing",
		"plan":     "pro",
	}

	signed, err := codec.Sign(claims, testSecret, domain.ExpiryAlways)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	decoded, err := codec.Verify(signed, testSecret)
	require.NoError(t, err)
	require.Equal(t, "alice", decoded["creator"])
	require.Equal(t, "billing", decoded["service"])
	require.Equal(t, "pro", decoded["plan"])

	id, ok := decoded.Identity()
	require.True(t, ok)
	require.Equal(t, int64(42), id)

	// "always" must not embed an expiry claim.
	_, hasExp := decoded["exp"]
	require.False(t, hasExp)
}

func TestVerifyBoundedExpiryEmbedsWindow(t *testing.T) {
	codec := token.NewCodec()

	signed, err := codec.Sign(domain.Claims{"service": "billing"}, testSecret, domain.Expiry1H)
	require.NoError(t, err)

	decoded, err := codec.Verify(signed, testSecret)
	require.NoError(t, err)

	exp, ok := decoded["exp"].(float64)
	require.True(t, ok)
	require.InDelta(t, time.Now().Add(time.Hour).Unix(), int64(exp), 5)
}

func TestVerifyExpiredClassifiedAsExpired(t *testing.T) {
	codec := token.NewCodec()

	// Sign a token whose window already elapsed.
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"service": "billing",
		"iat":     jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		"exp":     jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	signed, err := expired.SignedString(testSecret)
	require.NoError(t, err)

	_, err = codec.Verify(signed, testSecret)
	require.ErrorIs(t, err, token.ErrExpired)
}

func TestVerifyTamperedClassifiedAsInvalid(t *testing.T) {
	codec := token.NewCodec()

	signed, err := codec.Sign(domain.Claims{"service": "billing"}, testSecret, domain.Expiry1H)
	require.NoError(t, err)

	// Flip a byte in the signature segment.
	tampered := []byte(signed)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	_, err = codec.Verify(string(tampered), testSecret)
	require.ErrorIs(t, err, token.ErrInvalid)
	require.NotErrorIs(t, err, token.ErrExpired)
}

func TestVerifyWrongSecretClassifiedAsInvalid(t *testing.T) {
	codec := token.NewCodec()

	signed, err := codec.Sign(domain.Claims{"service": "billing"}, testSecret, domain.ExpiryAlways)
	require.NoError(t, err)

	_, err = codec.Verify(signed, []byte("a different secret"))
	require.ErrorIs(t, err, token.ErrInvalid)
}

func TestVerifyGarbageClassifiedAsInvalid(t *testing.T) {
	codec := token.NewCodec()

	_, err := codec.Verify("not.a.token", testSecret)
	require.ErrorIs(t, err, token.ErrInvalid)
}

func TestExpiryEnum(t *testing.T) {
	for _, e := range []domain.Expiry{
		domain.Expiry1H, domain.Expiry2H, domain.Expiry3H, domain.Expiry6H,
		domain.Expiry12H, domain.Expiry1D, domain.Expiry1W, domain.Expiry1M,
		domain.Expiry1Y, domain.ExpiryAlways,
	} {
		require.True(t, e.Valid(), string(e))
	}
	require.False(t, domain.Expiry("5m").Valid())

	d, bounded := domain.Expiry1M.Duration()
	require.True(t, bounded)
	require.Equal(t, 30*24*time.Hour, d)

	_, bounded = domain.ExpiryAlways.Duration()
	require.False(t, bounded)
}
