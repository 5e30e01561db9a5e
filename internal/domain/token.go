package domain

import "time"

// Expiry enumerates the validity windows a caller may request for a token.
type Expiry string

const (
	Expiry1H     Expiry = "1h"
	Expiry2H     Expiry = "2h"
	Expiry3H     Expiry = "3h"
	Expiry6H     Expiry = "6h"
	Expiry12H    Expiry = "12h"
	Expiry1D     Expiry = "1d"
	Expiry1W     Expiry = "1w"
	Expiry1M     Expiry = "1m"
	Expiry1Y     Expiry = "1y"
	ExpiryAlways Expiry = "always"
)

// expiryDurations maps each bounded window to its wall-clock duration.
// "1m" is one month (30 days), "1y" is 365 days.
var expiryDurations = map[Expiry]time.Duration{
	Expiry1H:  time.Hour,
	Expiry2H:  2 * time.Hour,
	Expiry3H:  3 * time.Hour,
	Expiry6H:  6 * time.Hour,
	Expiry12H: 12 * time.Hour,
	Expiry1D:  24 * time.Hour,
	Expiry1W:  7 * 24 * time.Hour,
	Expiry1M:  30 * 24 * time.Hour,
	Expiry1Y:  365 * 24 * time.Hour,
}

// Valid reports whether the value is a member of the expiry enumeration.
func (e Expiry) Valid() bool {
	if e == ExpiryAlways {
		return true
	}
	_, ok := expiryDurations[e]
	return ok
}

// Duration returns the wall-clock validity window. The second return is false
// for "always", which embeds no expiry at all.
func (e Expiry) Duration() (time.Duration, bool) {
	d, ok := expiryDurations[e]
	return d, ok
}

// TokenRecord is a ledger row for an issued token. The signed token string is
// the only artifact handed back to callers; the remaining columns mirror the
// claims the authority injected so revocation and search never need to decode
// the token itself.
type TokenRecord struct {
	ID        int64
	Token     string
	Identity  *int64
	Service   string
	ExpiresIn Expiry
	CreatedBy string
	Deleted   bool
	DeletedAt *time.Time
	CreatedAt time.Time
}

// Claims is the decoded content of a signed token: the caller-supplied payload
// plus the injected identity, creator and service fields.
type Claims map[string]any

// Identity extracts the injected identity claim, if present and positive.
func (c Claims) Identity() (int64, bool) {
	switch v := c["identity"].(type) {
	case float64:
		if v > 0 {
			return int64(v), true
		}
	case int64:
		if v > 0 {
			return v, true
		}
	}
	return 0, false
}

// Service extracts the injected service claim.
func (c Claims) Service() (string, bool) {
	s, ok := c["service"].(string)
	return s, ok && s != ""
}

// Creator extracts the injected creator claim.
func (c Claims) Creator() (string, bool) {
	s, ok := c["creator"].(string)
	return s, ok && s != ""
}
