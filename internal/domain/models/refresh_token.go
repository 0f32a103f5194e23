package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the persisted record of an opaque refresh token. Only the
// SHA-256 hash of the raw token is stored. Tokens form rotation families: at
// most one active generation per family, and presenting a rotated token
// revokes the whole family.
type RefreshToken struct {
	TokenHash  string     `json:"-" db:"token_hash"`
	ClientID   string     `json:"client_id" db:"client_id"`
	UserID     string     `json:"user_id" db:"user_id"`
	Scope      string     `json:"scope" db:"scope"`
	FamilyID   uuid.UUID  `json:"family_id" db:"family_id"`
	Generation int        `json:"generation" db:"generation"`
	IssuedAt   time.Time  `json:"issued_at" db:"issued_at"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	RotatedAt  *time.Time `json:"rotated_at,omitempty" db:"rotated_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

// Active reports whether the token may still be exchanged: not rotated, not
// revoked and not expired.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RotatedAt == nil && t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
