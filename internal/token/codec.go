package token

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/token-authority/internal/domain"
)

// ErrExpired reports a structurally valid token whose validity window elapsed.
var ErrExpired = errors.New("token expired")

// ErrInvalid reports a malformed token or one with a bad signature.
var ErrInvalid = errors.New("token invalid")

// Codec signs and verifies bearer tokens. The signing secret is supplied per
// call; it belongs to the external secret provider, not to this component.
type Codec struct{}

// NewCodec builds a codec.
func NewCodec() *Codec {
	return &Codec{}
}

// Sign produces a compact signed token carrying the claims. A bounded expiry
// embeds exp/iat; "always" embeds neither and the token never expires on its
// own.
func (c *Codec) Sign(claims domain.Claims, secret []byte, expiry domain.Expiry) (string, error) {
	mapped := jwt.MapClaims{}
	for k, v := range claims {
		mapped[k] = v
	}

	if d, bounded := expiry.Duration(); bounded {
		now := time.Now()
		mapped["iat"] = jwt.NewNumericDate(now)
		mapped["exp"] = jwt.NewNumericDate(now.Add(d))
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, mapped)
	return tok.SignedString(secret)
}

// Verify decodes a signed token and returns its claims. Failures are exactly
// one of ErrExpired or ErrInvalid; no other verification outcome exists.
func (c *Codec) Verify(tokenStr string, secret []byte) (domain.Claims, error) {
	parsed, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	mapped, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	return domain.Claims(mapped), nil
}
