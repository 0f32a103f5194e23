package authorize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"time"

	"github.com/google/uuid"

	"authd/internal/api/audit"
	"authd/internal/domain/models"
	"authd/internal/lib/oautherr"
	"authd/internal/lib/pkce"
	"authd/internal/services/authorize/interfaces"
	"authd/internal/services/registry"
	"authd/internal/storage"
)

// Action values a consent submission may carry.
const (
	ActionApprove = "approve"
	ActionDeny    = "deny"
)

// Authorize owns the authorization-request state machine: request creation,
// consent handling, trusted-client auto-approval and code minting.
type Authorize struct {
	log        *slog.Logger
	registry   *registry.Registry
	requests   interfaces.AuthRequestStorage
	codes      interfaces.AuthCodeStorage
	consents   interfaces.ConsentStorage
	audit      audit.Sink
	requestTTL time.Duration
	codeTTL    time.Duration
}

// New returns a new instance of the Authorize service
func New(
	log *slog.Logger,
	reg *registry.Registry,
	requests interfaces.AuthRequestStorage,
	codes interfaces.AuthCodeStorage,
	consents interfaces.ConsentStorage,
	auditSink audit.Sink,
	requestTTL time.Duration,
	codeTTL time.Duration,
) *Authorize {
	return &Authorize{
		log:        log,
		registry:   reg,
		requests:   requests,
		codes:      codes,
		consents:   consents,
		audit:      auditSink,
		requestTTL: requestTTL,
		codeTTL:    codeTTL,
	}
}

// CreateParams carries the query parameters of an authorize call.
type CreateParams struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// DecisionKind tells the transport layer where to send the user next.
type DecisionKind int

const (
	// DecisionLogin: no authenticated user, redirect to first-party login.
	DecisionLogin DecisionKind = iota
	// DecisionConsent: a pending request awaits the consent UI.
	DecisionConsent
	// DecisionCode: the request was auto-approved and a code is ready.
	DecisionCode
	// DecisionError: validation failed after the redirect URI was trusted,
	// so the error goes back to the client via redirect.
	DecisionError
)

// Decision is the outcome of an authorize call.
type Decision struct {
	Kind        DecisionKind
	Request     *models.AuthorizationRequest
	RedirectURL string
}

// CreateRequest validates an authorize call and creates the pending
// authorization request. Validation failures before the redirect URI is
// trusted are returned as errors for the transport to render directly;
// anything after is safe to send back to the client's redirect URI.
func (a *Authorize) CreateRequest(ctx context.Context, p CreateParams) (*models.AuthorizationRequest, *models.Client, error) {
	const op = "authorize.CreateRequest"
	logger := a.log.With(slog.String("op", op), slog.String("client_id", p.ClientID))

	client, err := a.registry.ResolveClient(ctx, p.ClientID)
	if err != nil {
		return nil, nil, err
	}
	// Redirect URI is matched exactly against the registered set before
	// anything is ever redirected to it.
	if !client.AllowsRedirectURI(p.RedirectURI) {
		logger.Warn("redirect uri not registered", slog.String("redirect_uri", p.RedirectURI))
		return nil, nil, oautherr.New(oautherr.CodeInvalidRequest, "redirect_uri is not registered for this client")
	}

	if p.ResponseType != "code" {
		return nil, client, oautherr.Newf(oautherr.CodeUnsupportedResponseType, "unsupported response type: %s", p.ResponseType)
	}
	if !client.AllowsResponseType(p.ResponseType) {
		return nil, client, oautherr.New(oautherr.CodeUnauthorizedClient, "client may not use response_type=code")
	}

	requestedScopes := registry.ParseScope(p.Scope)
	if len(requestedScopes) == 0 {
		return nil, client, oautherr.New(oautherr.CodeInvalidScope, "scope is required")
	}
	validation := a.registry.ValidateScopes(requestedScopes, client, "authorization_code")
	if !validation.Valid {
		return nil, client, oautherr.Newf(oautherr.CodeInvalidScope, "%v", validation.Errors)
	}

	// Public clients cannot hold a secret, so PKCE is their only binding.
	if client.IsPublic && p.CodeChallenge == "" {
		return nil, client, oautherr.New(oautherr.CodeInvalidRequest, "code_challenge is required for public clients")
	}
	if p.CodeChallenge != "" && p.CodeChallengeMethod != pkce.MethodS256 {
		return nil, client, oautherr.Newf(oautherr.CodeInvalidRequest, "code_challenge_method %q is not supported, use S256", p.CodeChallengeMethod)
	}

	now := time.Now()
	request := &models.AuthorizationRequest{
		ID:                  uuid.NewString(),
		ClientID:            client.ID,
		ResponseType:        p.ResponseType,
		RedirectURI:         p.RedirectURI,
		Scope:               registry.JoinScope(validation.Scopes),
		State:               p.State,
		Nonce:               p.Nonce,
		CodeChallenge:       p.CodeChallenge,
		CodeChallengeMethod: p.CodeChallengeMethod,
		Status:              models.AuthRequestPending,
		CreatedAt:           now,
		ExpiresAt:           now.Add(a.requestTTL),
	}
	if err := a.requests.SaveAuthRequest(ctx, request); err != nil {
		return nil, client, fmt.Errorf("%s: %w", op, err)
	}

	a.audit.LogOAuthEvent("authorization_request_created", map[string]any{
		"request_id": request.ID,
		"client_id":  client.ID,
		"scope":      request.Scope,
	})
	logger.Info("authorization request created", slog.String("request_id", request.ID))
	return request, client, nil
}

// Begin runs the full authorize step for an optionally authenticated user:
// create the pending request, then decide between login redirect, consent
// UI, or a programmatic approval for trusted clients whose consent already
// covers the requested scopes.
func (a *Authorize) Begin(ctx context.Context, p CreateParams, userID string) (*Decision, error) {
	request, client, err := a.CreateRequest(ctx, p)
	if err != nil {
		// With a resolved client and a registered redirect URI the error is
		// safe to deliver by redirect; otherwise it is rendered directly.
		if client != nil {
			redirect, rerr := oautherr.From(err).RedirectURL(p.RedirectURI, p.State)
			if rerr != nil {
				return nil, err
			}
			return &Decision{Kind: DecisionError, RedirectURL: redirect}, nil
		}
		return nil, err
	}

	if userID == "" {
		return &Decision{Kind: DecisionLogin, Request: request}, nil
	}

	if client.IsTrusted {
		if covered, err := a.consentCovers(ctx, userID, client.ID, registry.ParseScope(request.Scope)); err == nil && covered {
			redirect, err := a.Consent(ctx, ConsentParams{
				RequestID: request.ID,
				UserID:    userID,
				Action:    ActionApprove,
			})
			if err != nil {
				return nil, err
			}
			return &Decision{Kind: DecisionCode, Request: request, RedirectURL: redirect}, nil
		}
	}

	return &Decision{Kind: DecisionConsent, Request: request}, nil
}

// ScopeGrant pairs a requested scope with the description the consent page
// shows for it. Scopes without fixed metadata render with an empty
// description.
type ScopeGrant struct {
	Scope       string `json:"scope"`
	Description string `json:"description,omitempty"`
}

// Prompt is what the consent UI renders for a pending request.
type Prompt struct {
	RequestID  string       `json:"request_id"`
	ClientID   string       `json:"client_id"`
	ClientName string       `json:"client_name"`
	Scopes     []ScopeGrant `json:"scopes"`
	ExpiresAt  time.Time    `json:"expires_at"`
}

// ConsentPrompt resolves a pending request into the consent-page payload:
// the requesting client and every scope awaiting approval, described.
func (a *Authorize) ConsentPrompt(ctx context.Context, requestID string) (*Prompt, error) {
	const op = "authorize.ConsentPrompt"

	request, err := a.requests.AuthRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, storage.ErrAuthRequestNotFound) {
			return nil, oautherr.New(oautherr.CodeInvalidRequest, "unknown authorization request")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if request.Expired(time.Now()) {
		if err := request.Transition(models.AuthRequestExpired); err == nil {
			_ = a.requests.UpdateAuthRequest(ctx, request)
		}
		return nil, oautherr.New(oautherr.CodeInvalidRequest, "authorization request expired")
	}
	if request.Status != models.AuthRequestPending {
		return nil, oautherr.New(oautherr.CodeInvalidRequest, "authorization request already handled")
	}

	client, err := a.registry.ResolveClient(ctx, request.ClientID)
	if err != nil {
		return nil, err
	}

	scopes := registry.ParseScope(request.Scope)
	grants := make([]ScopeGrant, 0, len(scopes))
	for _, scope := range scopes {
		description, _ := a.registry.DescribeScope(scope)
		grants = append(grants, ScopeGrant{Scope: scope, Description: description})
	}
	return &Prompt{
		RequestID:  request.ID,
		ClientID:   client.ID,
		ClientName: client.Name,
		Scopes:     grants,
		ExpiresAt:  request.ExpiresAt,
	}, nil
}

// ConsentParams carries a consent-UI submission.
type ConsentParams struct {
	RequestID string
	UserID    string
	Action    string
	Scopes    []string
}

// Consent applies the user's decision to a pending request and returns the
// redirect URL for the client: either carrying an authorization code or an
// access_denied error. Only pending requests can be acted on; the first
// consent binds the user to the request and any other user is rejected.
func (a *Authorize) Consent(ctx context.Context, p ConsentParams) (string, error) {
	const op = "authorize.Consent"
	logger := a.log.With(slog.String("op", op), slog.String("request_id", p.RequestID))

	request, err := a.requests.AuthRequest(ctx, p.RequestID)
	if err != nil {
		if errors.Is(err, storage.ErrAuthRequestNotFound) {
			return "", oautherr.New(oautherr.CodeInvalidRequest, "unknown authorization request")
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if p.UserID == "" {
		return "", oautherr.New(oautherr.CodeInvalidRequest, "authentication required")
	}
	if request.UserID != "" && request.UserID != p.UserID {
		logger.Warn("consent attempted by a different user", slog.String("request_id", request.ID))
		a.audit.LogOAuthEvent("consent_user_mismatch", map[string]any{
			"request_id": request.ID,
			"client_id":  request.ClientID,
		})
		return "", oautherr.New(oautherr.CodeInvalidRequest, "authorization request is bound to another session")
	}

	if request.Expired(time.Now()) {
		if err := request.Transition(models.AuthRequestExpired); err == nil {
			_ = a.requests.UpdateAuthRequest(ctx, request)
		}
		return "", oautherr.New(oautherr.CodeInvalidRequest, "authorization request expired")
	}
	if request.Status != models.AuthRequestPending {
		return "", oautherr.New(oautherr.CodeInvalidRequest, "authorization request already handled")
	}

	switch p.Action {
	case ActionDeny:
		return a.deny(ctx, request, p.UserID)
	case ActionApprove:
		return a.approve(ctx, request, p.UserID, p.Scopes)
	default:
		return "", oautherr.Newf(oautherr.CodeInvalidRequest, "unknown consent action %q", p.Action)
	}
}

func (a *Authorize) deny(ctx context.Context, request *models.AuthorizationRequest, userID string) (string, error) {
	const op = "authorize.deny"

	request.UserID = userID
	if err := request.Transition(models.AuthRequestDenied); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := a.requests.UpdateAuthRequest(ctx, request); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	a.audit.LogOAuthEvent("authorization_denied", map[string]any{
		"request_id": request.ID,
		"client_id":  request.ClientID,
	})
	denied := oautherr.New(oautherr.CodeAccessDenied, "the user denied the request")
	return denied.RedirectURL(request.RedirectURI, request.State)
}

func (a *Authorize) approve(ctx context.Context, request *models.AuthorizationRequest, userID string, selected []string) (string, error) {
	const op = "authorize.approve"
	logger := a.log.With(slog.String("op", op), slog.String("request_id", request.ID))

	requested := registry.ParseScope(request.Scope)
	granted := selected
	if len(granted) == 0 {
		granted = requested
	}
	// Consent can narrow but never widen the requested set.
	granted = intersect(granted, requested)
	// An identity scope cannot be silently dropped once requested: the client
	// expects an ID token for this round.
	if slices.Contains(requested, "openid") && !slices.Contains(granted, "openid") {
		granted = append(granted, "openid")
	}
	if len(granted) == 0 {
		return "", oautherr.New(oautherr.CodeInvalidScope, "no scopes granted")
	}

	request.UserID = userID
	request.ConsentedScopes = granted
	if err := request.Transition(models.AuthRequestConsented); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := a.recordConsent(ctx, userID, request.ClientID, granted); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	code := &models.AuthorizationCode{
		Code:                uuid.NewString(),
		RequestID:           request.ID,
		ClientID:            request.ClientID,
		UserID:              userID,
		RedirectURI:         request.RedirectURI,
		Scope:               registry.JoinScope(granted),
		Nonce:               request.Nonce,
		CodeChallenge:       request.CodeChallenge,
		CodeChallengeMethod: request.CodeChallengeMethod,
		ExpiresAt:           time.Now().Add(a.codeTTL),
	}
	if err := a.codes.SaveAuthCode(ctx, code); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := a.requests.UpdateAuthRequest(ctx, request); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	a.audit.LogOAuthEvent("authorization_code_issued", map[string]any{
		"request_id": request.ID,
		"client_id":  request.ClientID,
		"scope":      code.Scope,
	})
	logger.Info("authorization code issued", slog.String("scope", code.Scope))

	return codeRedirectURL(request.RedirectURI, code.Code, request.State)
}

// consentCovers reports whether the user's stored consent already covers all
// requested scopes.
func (a *Authorize) consentCovers(ctx context.Context, userID, clientID string, scopes []string) (bool, error) {
	consent, err := a.consents.Consent(ctx, userID, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrConsentNotFound) {
			return false, nil
		}
		return false, err
	}
	return consent.Covers(scopes), nil
}

// recordConsent merges the newly granted scopes into the stored set.
func (a *Authorize) recordConsent(ctx context.Context, userID, clientID string, granted []string) error {
	consent, err := a.consents.Consent(ctx, userID, clientID)
	if err != nil {
		if !errors.Is(err, storage.ErrConsentNotFound) {
			return err
		}
		consent = &models.Consent{UserID: userID, ClientID: clientID}
	}
	return a.consents.SaveConsent(ctx, userID, clientID, consent.Merge(granted))
}

func codeRedirectURL(redirectURI, code, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("parse redirect uri: %w", err)
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func intersect(selected, requested []string) []string {
	var result []string
	for _, scope := range selected {
		if slices.Contains(requested, scope) && !slices.Contains(result, scope) {
			result = append(result, scope)
		}
	}
	return result
}
