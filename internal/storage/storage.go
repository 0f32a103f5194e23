package storage

import "errors"

var (
	ErrClientNotFound      = errors.New("client not found")
	ErrAuthRequestNotFound = errors.New("authorization request not found")
	ErrAuthCodeNotFound    = errors.New("authorization code not found")
	ErrAuthCodeUsed        = errors.New("authorization code already used")
	ErrTokenNotFound       = errors.New("token not found")
	ErrTokenRotated        = errors.New("refresh token already rotated")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrTokenExpired        = errors.New("token is expired")
	ErrConsentNotFound     = errors.New("consent not found")
	ErrKeyNotFound         = errors.New("signing key not found")
)
