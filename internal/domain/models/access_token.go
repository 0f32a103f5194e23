package models

import "time"

// AccessToken is the metadata record persisted alongside a signed bearer
// token. It exists for revocation and introspection lookups only; normal
// resource-server validation relies on signature and expiry.
type AccessToken struct {
	JTI       string     `json:"jti" db:"jti"`
	ClientID  string     `json:"client_id" db:"client_id"`
	UserID    *string    `json:"user_id,omitempty" db:"user_id"`
	Scope     string     `json:"scope" db:"scope"`
	GrantType string     `json:"grant_type" db:"grant_type"`
	Audience  string     `json:"audience,omitempty" db:"audience"`
	IssuedAt  time.Time  `json:"issued_at" db:"issued_at"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

// Active reports whether the token is neither revoked nor expired.
func (t *AccessToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
