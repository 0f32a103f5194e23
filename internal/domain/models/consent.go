package models

import (
	"slices"
	"time"
)

// Consent accumulates the scopes a user has granted to a client across
// authorization rounds. The granted set only grows unless explicitly revoked.
type Consent struct {
	UserID        string    `json:"user_id" db:"user_id"`
	ClientID      string    `json:"client_id" db:"client_id"`
	GrantedScopes []string  `json:"granted_scopes" db:"granted_scopes"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Covers reports whether every requested scope is already granted.
func (c *Consent) Covers(scopes []string) bool {
	for _, s := range scopes {
		if !slices.Contains(c.GrantedScopes, s) {
			return false
		}
	}
	return true
}

// Merge returns the union of the granted set and the given scopes,
// preserving the order of first appearance.
func (c *Consent) Merge(scopes []string) []string {
	merged := slices.Clone(c.GrantedScopes)
	for _, s := range scopes {
		if !slices.Contains(merged, s) {
			merged = append(merged, s)
		}
	}
	return merged
}
