package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"authd/internal/domain/models"
	"authd/internal/lib/jwt"
	"authd/internal/lib/oautherr"
	"authd/internal/lib/pkce"
	"authd/internal/services/registry"
	"authd/internal/services/token/interfaces"
	"authd/internal/storage"
)

// Grant types the token endpoint dispatches on.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
)

// Token implements the token endpoint grants plus revocation, introspection
// and userinfo.
type Token struct {
	log        *slog.Logger
	registry   *registry.Registry
	store      interfaces.TokenStorage
	requests   interfaces.AuthRequestStorage
	codec      *jwt.Codec
	claims     interfaces.ClaimsProvider
	audit      auditSink
	accessTTL  time.Duration
	refreshTTL time.Duration
}

type auditSink interface {
	LogOAuthEvent(eventType string, metadata map[string]any)
}

// New returns a new instance of the Token service
func New(
	log *slog.Logger,
	reg *registry.Registry,
	store interfaces.TokenStorage,
	requests interfaces.AuthRequestStorage,
	codec *jwt.Codec,
	claims interfaces.ClaimsProvider,
	audit auditSink,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) *Token {
	return &Token{
		log:        log,
		registry:   reg,
		store:      store,
		requests:   requests,
		codec:      codec,
		claims:     claims,
		audit:      audit,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Credentials carries what the transport extracted from the request: the
// client_id and, for confidential clients, the secret from Basic auth or
// the form body.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// ExchangeParams is a token-endpoint form, flattened.
type ExchangeParams struct {
	GrantType    string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
	Scope        string
	Audience     string
}

// Response is the token-endpoint success body.
type Response struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope"`
}

// AuthenticateClient resolves the client and verifies its credentials.
// Confidential clients must present their secret; public clients must not.
func (t *Token) AuthenticateClient(ctx context.Context, creds Credentials) (*models.Client, error) {
	const op = "token.AuthenticateClient"

	client, err := t.registry.ResolveClient(ctx, creds.ClientID)
	if err != nil {
		return nil, err
	}
	if client.IsPublic {
		if creds.ClientSecret != "" {
			return nil, oautherr.New(oautherr.CodeInvalidClient, "public clients have no secret")
		}
		return client, nil
	}
	if creds.ClientSecret == "" {
		return nil, oautherr.New(oautherr.CodeInvalidClient, "client authentication required")
	}
	if err := bcrypt.CompareHashAndPassword(client.SecretHash, []byte(creds.ClientSecret)); err != nil {
		t.log.Warn("client secret mismatch", slog.String("op", op), slog.String("client_id", client.ID))
		t.audit.LogOAuthEvent("client_auth_failed", map[string]any{"client_id": client.ID})
		return nil, oautherr.New(oautherr.CodeInvalidClient, "invalid client credentials")
	}
	return client, nil
}

// Exchange dispatches a token-endpoint call to its grant handler.
func (t *Token) Exchange(ctx context.Context, client *models.Client, p ExchangeParams) (*Response, error) {
	if !client.AllowsGrantType(p.GrantType) {
		return nil, oautherr.Newf(oautherr.CodeUnauthorizedClient, "client may not use grant type %q", p.GrantType)
	}
	switch p.GrantType {
	case GrantAuthorizationCode:
		return t.exchangeCode(ctx, client, p)
	case GrantRefreshToken:
		return t.refresh(ctx, client, p)
	case GrantClientCredentials:
		return t.clientCredentials(ctx, client, p)
	default:
		return nil, oautherr.Newf(oautherr.CodeUnsupportedGrantType, "unsupported grant type %q", p.GrantType)
	}
}

func (t *Token) exchangeCode(ctx context.Context, client *models.Client, p ExchangeParams) (*Response, error) {
	const op = "token.exchangeCode"
	logger := t.log.With(slog.String("op", op), slog.String("client_id", client.ID))

	if p.Code == "" {
		return nil, oautherr.New(oautherr.CodeInvalidRequest, "code is required")
	}

	// The claim, the validations and the inserts share one transaction: a
	// rejection rolls the claim back, so a failed exchange never burns the
	// code.
	var resp *Response
	claimed, err := t.store.ExchangeAuthCode(ctx, p.Code, func(code *models.AuthorizationCode) (*models.AccessToken, *models.RefreshToken, error) {
		if code.ClientID != client.ID {
			return nil, nil, oautherr.New(oautherr.CodeInvalidGrant, "authorization code was issued to another client")
		}
		if code.Expired(time.Now()) {
			return nil, nil, oautherr.New(oautherr.CodeInvalidGrant, "authorization code expired")
		}
		if p.RedirectURI != code.RedirectURI {
			return nil, nil, oautherr.New(oautherr.CodeInvalidGrant, "redirect_uri does not match the authorization request")
		}

		if code.CodeChallenge != "" {
			if p.CodeVerifier == "" {
				return nil, nil, oautherr.New(oautherr.CodeInvalidGrant, "code_verifier is required")
			}
			if !pkce.ValidVerifier(p.CodeVerifier) {
				return nil, nil, oautherr.New(oautherr.CodeInvalidGrant, "code_verifier length is out of bounds")
			}
			if !pkce.Verify(p.CodeVerifier, code.CodeChallenge, code.CodeChallengeMethod) {
				t.audit.LogOAuthEvent("pkce_verification_failed", map[string]any{
					"client_id": client.ID,
				})
				return nil, nil, oautherr.New(oautherr.CodeInvalidGrant, "code_verifier does not match")
			}
		} else if p.CodeVerifier != "" {
			return nil, nil, oautherr.New(oautherr.CodeInvalidGrant, "no code_challenge was bound to this code")
		}

		scopes := registry.ParseScope(code.Scope)
		userID := code.UserID

		accessToken, jti, expiresAt, err := t.codec.MintAccessToken(ctx, jwt.AccessTokenParams{
			ClientID: client.ID,
			UserID:   &userID,
			Scope:    code.Scope,
			TTL:      t.accessTTL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("mint access token: %w", err)
		}

		now := time.Now()
		accessRecord := &models.AccessToken{
			JTI:       jti,
			ClientID:  client.ID,
			UserID:    &userID,
			Scope:     code.Scope,
			GrantType: GrantAuthorizationCode,
			IssuedAt:  now,
			ExpiresAt: expiresAt,
		}

		// A refresh token is part of the grant only when the user approved
		// offline_access and the client may redeem it.
		var rawRefresh string
		var refreshRecord *models.RefreshToken
		if slices.Contains(scopes, "offline_access") && client.AllowsGrantType(GrantRefreshToken) {
			rawRefresh, err = jwt.NewRefreshToken()
			if err != nil {
				return nil, nil, fmt.Errorf("mint refresh token: %w", err)
			}
			refreshRecord = &models.RefreshToken{
				TokenHash:  jwt.HashRefreshToken(rawRefresh),
				ClientID:   client.ID,
				UserID:     userID,
				Scope:      code.Scope,
				FamilyID:   uuid.New(),
				Generation: 1,
				IssuedAt:   now,
				ExpiresAt:  now.Add(t.refreshTTL),
			}
		}

		resp = &Response{
			AccessToken:  accessToken,
			TokenType:    "Bearer",
			ExpiresIn:    int64(t.accessTTL.Seconds()),
			RefreshToken: rawRefresh,
			Scope:        code.Scope,
		}
		if slices.Contains(scopes, "openid") {
			idToken, err := t.mintIDToken(ctx, client.ID, userID, code.Nonce, scopes)
			if err != nil {
				return nil, nil, fmt.Errorf("mint id token: %w", err)
			}
			resp.IDToken = idToken
		}
		return accessRecord, refreshRecord, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAuthCodeUsed):
			// Replayed code: the first exchange may have handed tokens to an
			// attacker, so everything derived for this user and client goes.
			t.revokeCodeDerivatives(ctx, claimed, logger)
			return nil, oautherr.New(oautherr.CodeInvalidGrant, "authorization code already used")
		case errors.Is(err, storage.ErrAuthCodeNotFound):
			return nil, oautherr.New(oautherr.CodeInvalidGrant, "unknown authorization code")
		default:
			var oerr *oautherr.Error
			if errors.As(err, &oerr) {
				return nil, err
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	t.markRequestUsed(ctx, claimed.RequestID, logger)

	t.audit.LogOAuthEvent("tokens_issued", map[string]any{
		"client_id":  client.ID,
		"grant_type": GrantAuthorizationCode,
		"scope":      claimed.Scope,
	})
	logger.Info("authorization code exchanged", slog.String("scope", claimed.Scope))
	return resp, nil
}

// markRequestUsed closes the originating authorization request. The record
// is ephemeral and may have expired already, so failures only log.
func (t *Token) markRequestUsed(ctx context.Context, requestID string, logger *slog.Logger) {
	request, err := t.requests.AuthRequest(ctx, requestID)
	if err != nil {
		if !errors.Is(err, storage.ErrAuthRequestNotFound) {
			logger.Warn("failed to load authorization request", slog.String("error", err.Error()))
		}
		return
	}
	if err := request.Transition(models.AuthRequestUsed); err != nil {
		logger.Warn("authorization request in unexpected state", slog.String("error", err.Error()))
		return
	}
	if err := t.requests.UpdateAuthRequest(ctx, request); err != nil {
		logger.Warn("failed to update authorization request", slog.String("error", err.Error()))
	}
}

// revokeCodeDerivatives tears down every token derived from a replayed code:
// the user-client access tokens and every live refresh token across families.
func (t *Token) revokeCodeDerivatives(ctx context.Context, code *models.AuthorizationCode, logger *slog.Logger) {
	if code == nil {
		return
	}
	revokedAccess, err := t.store.RevokeUserClientTokens(ctx, code.UserID, code.ClientID)
	if err != nil {
		logger.Error("failed to revoke access tokens after code replay", slog.String("error", err.Error()))
	}
	revokedRefresh, err := t.store.RevokeUserClientRefreshTokens(ctx, code.UserID, code.ClientID)
	if err != nil {
		logger.Error("failed to revoke refresh tokens after code replay", slog.String("error", err.Error()))
	}
	t.audit.LogOAuthEvent("authorization_code_replayed", map[string]any{
		"client_id":       code.ClientID,
		"revoked_access":  revokedAccess,
		"revoked_refresh": revokedRefresh,
	})
	logger.Warn("authorization code replay detected",
		slog.Int64("revoked_access", revokedAccess),
		slog.Int64("revoked_refresh", revokedRefresh),
	)
}

func (t *Token) refresh(ctx context.Context, client *models.Client, p ExchangeParams) (*Response, error) {
	const op = "token.refresh"
	logger := t.log.With(slog.String("op", op), slog.String("client_id", client.ID))

	if p.RefreshToken == "" {
		return nil, oautherr.New(oautherr.CodeInvalidRequest, "refresh_token is required")
	}

	// The rotation marker, the validations and the successor insert share
	// one transaction: any rejection rolls the marker back, so a third
	// party's failed request leaves the owner's token intact.
	hash := jwt.HashRefreshToken(p.RefreshToken)
	var resp *Response
	var generation int
	old, err := t.store.RotateRefreshToken(ctx, hash, func(old *models.RefreshToken) (*models.RefreshToken, *models.AccessToken, error) {
		if old.ClientID != client.ID {
			return nil, nil, oautherr.New(oautherr.CodeInvalidGrant, "refresh token was issued to another client")
		}
		if time.Now().After(old.ExpiresAt) {
			return nil, nil, oautherr.New(oautherr.CodeInvalidGrant, "refresh token expired")
		}

		grantedScopes := registry.ParseScope(old.Scope)
		effectiveScopes := grantedScopes
		if p.Scope != "" {
			requested := registry.ParseScope(p.Scope)
			if !registry.Subset(requested, grantedScopes) {
				return nil, nil, oautherr.New(oautherr.CodeInvalidScope, "requested scope exceeds the original grant")
			}
			effectiveScopes = requested
		}
		effectiveScope := registry.JoinScope(effectiveScopes)

		accessToken, jti, expiresAt, err := t.codec.MintAccessToken(ctx, jwt.AccessTokenParams{
			ClientID: client.ID,
			UserID:   &old.UserID,
			Scope:    effectiveScope,
			TTL:      t.accessTTL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("mint access token: %w", err)
		}

		rawRefresh, err := jwt.NewRefreshToken()
		if err != nil {
			return nil, nil, fmt.Errorf("mint refresh token: %w", err)
		}

		now := time.Now()
		accessRecord := &models.AccessToken{
			JTI:       jti,
			ClientID:  client.ID,
			UserID:    &old.UserID,
			Scope:     effectiveScope,
			GrantType: GrantRefreshToken,
			IssuedAt:  now,
			ExpiresAt: expiresAt,
		}
		// The successor keeps the original grant scope so a narrowed
		// exchange does not permanently shrink the grant.
		next := &models.RefreshToken{
			TokenHash:  jwt.HashRefreshToken(rawRefresh),
			ClientID:   client.ID,
			UserID:     old.UserID,
			Scope:      old.Scope,
			FamilyID:   old.FamilyID,
			Generation: old.Generation + 1,
			IssuedAt:   now,
			ExpiresAt:  now.Add(t.refreshTTL),
		}
		generation = next.Generation

		// An ID token is never reissued on refresh; clients re-authorize
		// to get a fresh identity assertion.
		resp = &Response{
			AccessToken:  accessToken,
			TokenType:    "Bearer",
			ExpiresIn:    int64(t.accessTTL.Seconds()),
			RefreshToken: rawRefresh,
			Scope:        effectiveScope,
		}
		return next, accessRecord, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTokenNotFound):
			return nil, oautherr.New(oautherr.CodeInvalidGrant, "unknown refresh token")
		case errors.Is(err, storage.ErrTokenRevoked), errors.Is(err, storage.ErrTokenRotated):
			// The stored record names the owner. A third party presenting
			// it is turned away here, before any reuse handling, so it
			// cannot trigger a family teardown it does not own.
			if old != nil && old.ClientID != client.ID {
				return nil, oautherr.New(oautherr.CodeInvalidGrant, "refresh token was issued to another client")
			}
			if errors.Is(err, storage.ErrTokenRevoked) {
				return nil, oautherr.New(oautherr.CodeInvalidGrant, "refresh token has been revoked")
			}
			// A rotated token came back: someone holds a stale copy, and we
			// cannot tell which party is legitimate. Kill the family.
			if old != nil {
				revoked, ferr := t.store.RevokeFamily(ctx, old.FamilyID)
				if ferr != nil {
					logger.Error("failed to revoke token family", slog.String("error", ferr.Error()))
				}
				t.audit.LogOAuthEvent("refresh_reuse_detected", map[string]any{
					"client_id": old.ClientID,
					"family_id": old.FamilyID.String(),
					"revoked":   revoked,
				})
				logger.Warn("refresh token reuse detected, family revoked",
					slog.String("family_id", old.FamilyID.String()),
					slog.Int64("revoked", revoked),
				)
			}
			return nil, oautherr.New(oautherr.CodeInvalidGrant, "refresh token has been rotated")
		default:
			var oerr *oautherr.Error
			if errors.As(err, &oerr) {
				return nil, err
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	t.audit.LogOAuthEvent("tokens_issued", map[string]any{
		"client_id":  client.ID,
		"grant_type": GrantRefreshToken,
		"family_id":  old.FamilyID.String(),
		"generation": generation,
	})
	logger.Info("refresh token rotated",
		slog.String("family_id", old.FamilyID.String()),
		slog.Int("generation", generation),
	)
	return resp, nil
}

func (t *Token) clientCredentials(ctx context.Context, client *models.Client, p ExchangeParams) (*Response, error) {
	const op = "token.clientCredentials"
	logger := t.log.With(slog.String("op", op), slog.String("client_id", client.ID))

	if !client.IsConfidential {
		return nil, oautherr.New(oautherr.CodeUnauthorizedClient, "client_credentials requires a confidential client")
	}

	scopes := registry.ParseScope(p.Scope)
	if len(scopes) == 0 {
		// Default to the client's allowed set minus identity scopes, which
		// can never ride on a machine token.
		for _, s := range client.AllowedScopes {
			if s == "openid" || s == "profile" || s == "email" {
				continue
			}
			scopes = append(scopes, s)
		}
	}
	validation := t.registry.ValidateScopes(scopes, client, GrantClientCredentials)
	if !validation.Valid {
		return nil, oautherr.Newf(oautherr.CodeInvalidScope, "%v", validation.Errors)
	}
	if p.Audience != "" && !client.AllowsAudience(p.Audience) {
		return nil, oautherr.Newf(oautherr.CodeInvalidRequest, "audience %q is not permitted for this client", p.Audience)
	}

	scope := registry.JoinScope(validation.Scopes)
	accessToken, jti, expiresAt, err := t.codec.MintAccessToken(ctx, jwt.AccessTokenParams{
		ClientID: client.ID,
		Scope:    scope,
		Audience: p.Audience,
		TTL:      t.accessTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	record := &models.AccessToken{
		JTI:       jti,
		ClientID:  client.ID,
		Scope:     scope,
		GrantType: GrantClientCredentials,
		Audience:  p.Audience,
		IssuedAt:  time.Now(),
		ExpiresAt: expiresAt,
	}
	if err := t.store.IssueTokens(ctx, record, nil); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	t.audit.LogOAuthEvent("tokens_issued", map[string]any{
		"client_id":  client.ID,
		"grant_type": GrantClientCredentials,
		"scope":      scope,
	})
	logger.Info("client credentials token issued", slog.String("scope", scope))

	return &Response{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(t.accessTTL.Seconds()),
		Scope:       scope,
	}, nil
}

func (t *Token) mintIDToken(ctx context.Context, clientID, userID, nonce string, scopes []string) (string, error) {
	extra := map[string]any{}
	if identity := identityOnly(scopes); len(identity) > 0 && t.claims != nil {
		resolved, err := t.claims.UserClaims(ctx, userID, identity)
		if err != nil {
			// Profile claims are decoration on the ID token; the userinfo
			// endpoint remains the authoritative path for them.
			t.log.Warn("claims provider unavailable, minting id token without profile claims",
				slog.String("error", err.Error()))
		} else {
			extra = resolved
		}
	}
	return t.codec.MintIDToken(ctx, jwt.IDTokenParams{
		ClientID:    clientID,
		UserID:      userID,
		Nonce:       nonce,
		ExtraClaims: extra,
		TTL:         t.accessTTL,
	})
}

func identityOnly(scopes []string) []string {
	var out []string
	for _, s := range scopes {
		if s == "profile" || s == "email" {
			out = append(out, s)
		}
	}
	return out
}

// Revoke implements RFC 7009 semantics: the endpoint always reports success
// so it cannot be used as a token-validity oracle. A token belonging to a
// different client is silently ignored.
func (t *Token) Revoke(ctx context.Context, client *models.Client, rawToken string) error {
	const op = "token.Revoke"
	logger := t.log.With(slog.String("op", op), slog.String("client_id", client.ID))

	if rawToken == "" {
		return nil
	}

	// Refresh tokens are opaque, so the hash lookup goes first.
	hash := jwt.HashRefreshToken(rawToken)
	if record, err := t.store.RefreshTokenByHash(ctx, hash); err == nil {
		if record.ClientID != client.ID {
			return nil
		}
		// Revoking any member takes the whole family with it.
		if _, err := t.store.RevokeFamily(ctx, record.FamilyID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		t.audit.LogOAuthEvent("refresh_token_revoked", map[string]any{
			"client_id": client.ID,
			"family_id": record.FamilyID.String(),
		})
		logger.Info("refresh token family revoked", slog.String("family_id", record.FamilyID.String()))
		return nil
	} else if !errors.Is(err, storage.ErrTokenNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}

	// Not a refresh token: decode the JWT without verifying the signature.
	// The persisted record is the authority here; a forged jti hits nothing.
	claims, err := t.codec.DecodeUnverified(rawToken)
	if err != nil {
		return nil
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil
	}
	record, err := t.store.AccessToken(ctx, jti)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if record.ClientID != client.ID {
		return nil
	}
	if err := t.store.RevokeAccessToken(ctx, jti); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	t.audit.LogOAuthEvent("access_token_revoked", map[string]any{
		"client_id": client.ID,
		"jti":       jti,
	})
	logger.Info("access token revoked", slog.String("jti", jti))
	return nil
}

// Introspection is the RFC 7662 response, trimmed to non-identifying
// claims: the subject stays out so the endpoint leaks no PII. All fields
// but Active are omitted for inactive tokens.
type Introspection struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
}

// Introspect reports the state of a token to its owning confidential
// client. Tokens of other clients, unknown tokens and garbage all come back
// as {"active": false}.
func (t *Token) Introspect(ctx context.Context, client *models.Client, rawToken string) (*Introspection, error) {
	const op = "token.Introspect"

	if !client.IsConfidential {
		return nil, oautherr.New(oautherr.CodeInvalidClient, "introspection requires a confidential client")
	}
	inactive := &Introspection{Active: false}
	if rawToken == "" {
		return inactive, nil
	}

	now := time.Now()

	hash := jwt.HashRefreshToken(rawToken)
	if record, err := t.store.RefreshTokenByHash(ctx, hash); err == nil {
		if record.ClientID != client.ID || !record.Active(now) {
			return inactive, nil
		}
		return &Introspection{
			Active:    true,
			Scope:     record.Scope,
			ClientID:  record.ClientID,
			TokenType: "refresh_token",
			Exp:       record.ExpiresAt.Unix(),
			Iat:       record.IssuedAt.Unix(),
		}, nil
	} else if !errors.Is(err, storage.ErrTokenNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	claims, err := t.codec.DecodeUnverified(rawToken)
	if err != nil {
		return inactive, nil
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return inactive, nil
	}
	record, err := t.store.AccessToken(ctx, jti)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return inactive, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if record.ClientID != client.ID || !record.Active(now) {
		return inactive, nil
	}

	return &Introspection{
		Active:    true,
		Scope:     record.Scope,
		ClientID:  record.ClientID,
		TokenType: "access_token",
		Exp:       record.ExpiresAt.Unix(),
		Iat:       record.IssuedAt.Unix(),
	}, nil
}

// Userinfo resolves OIDC claims for the user behind a bearer access token.
// The token must verify, carry the openid scope, belong to a user and not
// have been revoked.
func (t *Token) Userinfo(ctx context.Context, bearer string) (map[string]any, error) {
	const op = "token.Userinfo"

	claims, err := t.codec.ParseAndVerify(ctx, bearer)
	if err != nil {
		return nil, oautherr.New(oautherr.CodeInvalidRequest, "invalid access token")
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil, oautherr.New(oautherr.CodeInvalidRequest, "invalid access token")
	}

	record, err := t.store.AccessToken(ctx, jti)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, oautherr.New(oautherr.CodeInvalidRequest, "unknown access token")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !record.Active(time.Now()) {
		return nil, oautherr.New(oautherr.CodeInvalidRequest, "access token is no longer active")
	}
	if record.UserID == nil {
		return nil, oautherr.New(oautherr.CodeInvalidRequest, "token is not bound to a user")
	}

	scopes := registry.ParseScope(record.Scope)
	if !slices.Contains(scopes, "openid") {
		return nil, oautherr.New(oautherr.CodeInsufficientScope, "openid scope is required")
	}

	result := map[string]any{"sub": *record.UserID}
	if identity := identityOnly(scopes); len(identity) > 0 && t.claims != nil {
		resolved, err := t.claims.UserClaims(ctx, *record.UserID, identity)
		if err != nil {
			t.log.Error("claims provider failed", slog.String("op", op), slog.String("error", err.Error()))
			return nil, oautherr.New(oautherr.CodeServerError, "claims are temporarily unavailable")
		}
		for k, v := range resolved {
			if k == "sub" {
				continue
			}
			result[k] = v
		}
	}
	return result, nil
}
