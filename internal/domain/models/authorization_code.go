package models

import "time"

// AuthorizationCode is a single-use code bound 1:1 to an AuthorizationRequest.
// UsedAt is set at most once; a second redemption attempt is a reuse event.
type AuthorizationCode struct {
	Code                string     `json:"code" db:"code"`
	RequestID           string     `json:"request_id" db:"request_id"`
	ClientID            string     `json:"client_id" db:"client_id"`
	UserID              string     `json:"user_id" db:"user_id"`
	RedirectURI         string     `json:"redirect_uri" db:"redirect_uri"`
	Scope               string     `json:"scope" db:"scope"`
	Nonce               string     `json:"nonce" db:"nonce"`
	CodeChallenge       string     `json:"code_challenge" db:"code_challenge"`
	CodeChallengeMethod string     `json:"code_challenge_method" db:"code_challenge_method"`
	ExpiresAt           time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt              *time.Time `json:"used_at,omitempty" db:"used_at"`
}

// Expired reports whether the code's lifetime has passed at the given moment.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
