package models

import (
	"fmt"
	"time"
)

// AuthRequestStatus is a lifecycle state of an AuthorizationRequest.
type AuthRequestStatus string

const (
	AuthRequestPending   AuthRequestStatus = "pending"
	AuthRequestConsented AuthRequestStatus = "consented"
	AuthRequestDenied    AuthRequestStatus = "denied"
	AuthRequestExpired   AuthRequestStatus = "expired"
	AuthRequestUsed      AuthRequestStatus = "used"
)

// authRequestTransitions encodes the allowed status graph. Anything not
// listed here is rejected instead of overwritten.
var authRequestTransitions = map[AuthRequestStatus][]AuthRequestStatus{
	AuthRequestPending:   {AuthRequestConsented, AuthRequestDenied, AuthRequestExpired},
	AuthRequestConsented: {AuthRequestUsed},
	AuthRequestDenied:    {},
	AuthRequestExpired:   {},
	AuthRequestUsed:      {},
}

// CanTransition reports whether moving from s to next is a legal transition.
func (s AuthRequestStatus) CanTransition(next AuthRequestStatus) bool {
	for _, allowed := range authRequestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s AuthRequestStatus) Terminal() bool {
	return len(authRequestTransitions[s]) == 0
}

// AuthorizationRequest is the per-request ephemeral record created by the
// authorize endpoint. Immutable except for Status, UserID and
// ConsentedScopes, which change only through Transition and consent binding.
type AuthorizationRequest struct {
	ID                  string            `json:"request_id"`
	ClientID            string            `json:"client_id"`
	UserID              string            `json:"user_id,omitempty"`
	ResponseType        string            `json:"response_type"`
	RedirectURI         string            `json:"redirect_uri"`
	Scope               string            `json:"scope"`
	State               string            `json:"state,omitempty"`
	Nonce               string            `json:"nonce,omitempty"`
	CodeChallenge       string            `json:"code_challenge,omitempty"`
	CodeChallengeMethod string            `json:"code_challenge_method,omitempty"`
	Status              AuthRequestStatus `json:"status"`
	ConsentedScopes     []string          `json:"consented_scopes,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	ExpiresAt           time.Time         `json:"expires_at"`
}

// Expired reports whether the request's lifetime has passed at the given moment.
func (r *AuthorizationRequest) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Transition moves the request into the next status or fails if the status
// graph forbids it. Each terminal state is reached exactly once.
func (r *AuthorizationRequest) Transition(next AuthRequestStatus) error {
	if !r.Status.CanTransition(next) {
		return fmt.Errorf("authorization request %s: illegal transition %s -> %s", r.ID, r.Status, next)
	}
	r.Status = next
	return nil
}
