package authorize

import (
	"context"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authd/internal/domain/models"
	"authd/internal/lib/oautherr"
	"authd/internal/lib/pkce"
	"authd/internal/services/registry"
	"authd/internal/storage"
)

type fakeClients struct {
	clients map[string]*models.Client
}

func (f *fakeClients) Client(_ context.Context, clientID string) (*models.Client, error) {
	client, ok := f.clients[clientID]
	if !ok {
		return nil, storage.ErrClientNotFound
	}
	return client, nil
}

type fakeRequestStore struct {
	requests map[string]*models.AuthorizationRequest
}

func (f *fakeRequestStore) SaveAuthRequest(_ context.Context, r *models.AuthorizationRequest) error {
	cp := *r
	f.requests[r.ID] = &cp
	return nil
}

func (f *fakeRequestStore) AuthRequest(_ context.Context, id string) (*models.AuthorizationRequest, error) {
	r, ok := f.requests[id]
	if !ok {
		return nil, storage.ErrAuthRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRequestStore) UpdateAuthRequest(_ context.Context, r *models.AuthorizationRequest) error {
	cp := *r
	f.requests[r.ID] = &cp
	return nil
}

type fakeCodeStore struct {
	codes map[string]*models.AuthorizationCode
}

func (f *fakeCodeStore) SaveAuthCode(_ context.Context, c *models.AuthorizationCode) error {
	f.codes[c.Code] = c
	return nil
}

type fakeConsentStore struct {
	consents map[string]*models.Consent
}

func consentKey(userID, clientID string) string { return userID + "|" + clientID }

func (f *fakeConsentStore) Consent(_ context.Context, userID, clientID string) (*models.Consent, error) {
	c, ok := f.consents[consentKey(userID, clientID)]
	if !ok {
		return nil, storage.ErrConsentNotFound
	}
	return c, nil
}

func (f *fakeConsentStore) SaveConsent(_ context.Context, userID, clientID string, scopes []string) error {
	f.consents[consentKey(userID, clientID)] = &models.Consent{
		UserID:        userID,
		ClientID:      clientID,
		GrantedScopes: scopes,
	}
	return nil
}

type fakeAudit struct {
	events []string
}

func (f *fakeAudit) LogOAuthEvent(eventType string, _ map[string]any) {
	f.events = append(f.events, eventType)
}

type fixture struct {
	service  *Authorize
	requests *fakeRequestStore
	codes    *fakeCodeStore
	consents *fakeConsentStore
	audit    *fakeAudit
}

func newFixture(clients ...*models.Client) *fixture {
	byID := make(map[string]*models.Client, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
	}
	requests := &fakeRequestStore{requests: map[string]*models.AuthorizationRequest{}}
	codes := &fakeCodeStore{codes: map[string]*models.AuthorizationCode{}}
	consents := &fakeConsentStore{consents: map[string]*models.Consent{}}
	auditSink := &fakeAudit{}

	reg := registry.New(slog.Default(), &fakeClients{clients: byID})
	service := New(slog.Default(), reg, requests, codes, consents, auditSink, 10*time.Minute, time.Minute)
	return &fixture{service: service, requests: requests, codes: codes, consents: consents, audit: auditSink}
}

func confidentialClient() *models.Client {
	return &models.Client{
		ID:             "web-app",
		Name:           "Web App",
		RedirectURIs:   []string{"https://app.example.test/callback"},
		ResponseTypes:  []string{"code"},
		GrantTypes:     []string{"authorization_code", "refresh_token"},
		AllowedScopes:  []string{"inventory:read"},
		IsVerified:     true,
		IsConfidential: true,
	}
}

func publicClient() *models.Client {
	c := confidentialClient()
	c.ID = "spa"
	c.IsConfidential = false
	c.IsPublic = true
	return c
}

func validParams(clientID string) CreateParams {
	return CreateParams{
		ResponseType: "code",
		ClientID:     clientID,
		RedirectURI:  "https://app.example.test/callback",
		Scope:        "openid inventory:read",
		State:        "xyz",
		Nonce:        "n-abc",
	}
}

func TestCreateRequest_HappyPath(t *testing.T) {
	f := newFixture(confidentialClient())

	request, client, err := f.service.CreateRequest(context.Background(), validParams("web-app"))
	require.NoError(t, err)
	require.NotNil(t, client)

	assert.Equal(t, models.AuthRequestPending, request.Status)
	assert.Equal(t, "web-app", request.ClientID)
	assert.Equal(t, "openid inventory:read", request.Scope)
	assert.Empty(t, request.UserID)
	assert.Contains(t, f.requests.requests, request.ID)
}

func TestCreateRequest_UnregisteredRedirectURI(t *testing.T) {
	f := newFixture(confidentialClient())

	p := validParams("web-app")
	p.RedirectURI = "https://evil.example.test/callback"
	_, client, err := f.service.CreateRequest(context.Background(), p)
	require.Error(t, err)
	// No client means the transport must not redirect.
	assert.Nil(t, client)
}

func TestCreateRequest_PKCERequiredForPublicClients(t *testing.T) {
	f := newFixture(publicClient())

	p := validParams("spa")
	_, _, err := f.service.CreateRequest(context.Background(), p)
	require.Error(t, err)
	assert.Equal(t, oautherr.CodeInvalidRequest, oautherr.From(err).Code)

	p.CodeChallenge = pkce.Challenge("averylongverifiervalueaveylongverifiervalue43")
	p.CodeChallengeMethod = pkce.MethodS256
	_, _, err = f.service.CreateRequest(context.Background(), p)
	require.NoError(t, err)
}

func TestCreateRequest_RejectsPlainPKCE(t *testing.T) {
	f := newFixture(confidentialClient())

	p := validParams("web-app")
	p.CodeChallenge = "not-a-hash"
	p.CodeChallengeMethod = "plain"
	_, _, err := f.service.CreateRequest(context.Background(), p)
	require.Error(t, err)
	assert.Equal(t, oautherr.CodeInvalidRequest, oautherr.From(err).Code)
}

func TestCreateRequest_UnsupportedResponseType(t *testing.T) {
	f := newFixture(confidentialClient())

	p := validParams("web-app")
	p.ResponseType = "token"
	_, client, err := f.service.CreateRequest(context.Background(), p)
	require.Error(t, err)
	// The redirect URI checked out, so this error may travel by redirect.
	assert.NotNil(t, client)
	assert.Equal(t, oautherr.CodeUnsupportedResponseType, oautherr.From(err).Code)
}

func TestBegin_RedirectsValidationErrors(t *testing.T) {
	f := newFixture(confidentialClient())

	p := validParams("web-app")
	p.ResponseType = "token"
	decision, err := f.service.Begin(context.Background(), p, "")
	require.NoError(t, err)
	assert.Equal(t, DecisionError, decision.Kind)

	u, err := url.Parse(decision.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "unsupported_response_type", u.Query().Get("error"))
	assert.Equal(t, "xyz", u.Query().Get("state"))
}

func TestBegin_AnonymousUserGoesToLogin(t *testing.T) {
	f := newFixture(confidentialClient())

	decision, err := f.service.Begin(context.Background(), validParams("web-app"), "")
	require.NoError(t, err)
	assert.Equal(t, DecisionLogin, decision.Kind)
}

func TestBegin_AuthenticatedUserGoesToConsent(t *testing.T) {
	f := newFixture(confidentialClient())

	decision, err := f.service.Begin(context.Background(), validParams("web-app"), "user-1")
	require.NoError(t, err)
	assert.Equal(t, DecisionConsent, decision.Kind)
}

func TestBegin_TrustedClientAutoApproval(t *testing.T) {
	client := confidentialClient()
	client.IsTrusted = true
	f := newFixture(client)
	ctx := context.Background()

	// No prior consent: still the consent screen, trusted or not.
	decision, err := f.service.Begin(ctx, validParams("web-app"), "user-1")
	require.NoError(t, err)
	assert.Equal(t, DecisionConsent, decision.Kind)

	require.NoError(t, f.consents.SaveConsent(ctx, "user-1", "web-app", []string{"openid", "inventory:read"}))

	decision, err = f.service.Begin(ctx, validParams("web-app"), "user-1")
	require.NoError(t, err)
	assert.Equal(t, DecisionCode, decision.Kind)

	u, err := url.Parse(decision.RedirectURL)
	require.NoError(t, err)
	assert.NotEmpty(t, u.Query().Get("code"))
	assert.Equal(t, "xyz", u.Query().Get("state"))
}

func TestConsent_ApproveMintsCode(t *testing.T) {
	f := newFixture(confidentialClient())
	ctx := context.Background()

	request, _, err := f.service.CreateRequest(ctx, validParams("web-app"))
	require.NoError(t, err)

	redirect, err := f.service.Consent(ctx, ConsentParams{
		RequestID: request.ID,
		UserID:    "user-1",
		Action:    ActionApprove,
	})
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	code := u.Query().Get("code")
	require.NotEmpty(t, code)
	assert.Equal(t, "xyz", u.Query().Get("state"))

	stored := f.codes.codes[code]
	require.NotNil(t, stored)
	assert.Equal(t, "user-1", stored.UserID)
	assert.Equal(t, "openid inventory:read", stored.Scope)
	assert.Equal(t, "n-abc", stored.Nonce)

	updated, err := f.requests.AuthRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuthRequestConsented, updated.Status)
	assert.Equal(t, "user-1", updated.UserID)

	consent, err := f.consents.Consent(ctx, "user-1", "web-app")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"openid", "inventory:read"}, consent.GrantedScopes)
}

func TestConsent_NarrowedScopesKeepOpenid(t *testing.T) {
	f := newFixture(confidentialClient())
	ctx := context.Background()

	request, _, err := f.service.CreateRequest(ctx, validParams("web-app"))
	require.NoError(t, err)

	redirect, err := f.service.Consent(ctx, ConsentParams{
		RequestID: request.ID,
		UserID:    "user-1",
		Action:    ActionApprove,
		Scopes:    []string{"inventory:read"},
	})
	require.NoError(t, err)

	u, _ := url.Parse(redirect)
	stored := f.codes.codes[u.Query().Get("code")]
	require.NotNil(t, stored)
	assert.ElementsMatch(t, []string{"openid", "inventory:read"}, registry.ParseScope(stored.Scope))
}

func TestConsent_DenyRedirectsWithAccessDenied(t *testing.T) {
	f := newFixture(confidentialClient())
	ctx := context.Background()

	request, _, err := f.service.CreateRequest(ctx, validParams("web-app"))
	require.NoError(t, err)

	redirect, err := f.service.Consent(ctx, ConsentParams{
		RequestID: request.ID,
		UserID:    "user-1",
		Action:    ActionDeny,
	})
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.Equal(t, "access_denied", u.Query().Get("error"))
	assert.Equal(t, "xyz", u.Query().Get("state"))

	updated, err := f.requests.AuthRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuthRequestDenied, updated.Status)
}

func TestConsent_SecondDecisionRejected(t *testing.T) {
	f := newFixture(confidentialClient())
	ctx := context.Background()

	request, _, err := f.service.CreateRequest(ctx, validParams("web-app"))
	require.NoError(t, err)

	_, err = f.service.Consent(ctx, ConsentParams{RequestID: request.ID, UserID: "user-1", Action: ActionApprove})
	require.NoError(t, err)

	_, err = f.service.Consent(ctx, ConsentParams{RequestID: request.ID, UserID: "user-1", Action: ActionApprove})
	require.Error(t, err)
	assert.Equal(t, oautherr.CodeInvalidRequest, oautherr.From(err).Code)
}

func TestConsent_DifferentUserRejected(t *testing.T) {
	f := newFixture(confidentialClient())
	ctx := context.Background()

	request, _, err := f.service.CreateRequest(ctx, validParams("web-app"))
	require.NoError(t, err)

	stored := f.requests.requests[request.ID]
	stored.UserID = "user-1"

	_, err = f.service.Consent(ctx, ConsentParams{RequestID: request.ID, UserID: "user-2", Action: ActionApprove})
	require.Error(t, err)
	assert.Contains(t, f.audit.events, "consent_user_mismatch")
}

func TestConsent_ExpiredRequest(t *testing.T) {
	f := newFixture(confidentialClient())
	ctx := context.Background()

	request, _, err := f.service.CreateRequest(ctx, validParams("web-app"))
	require.NoError(t, err)

	stored := f.requests.requests[request.ID]
	stored.ExpiresAt = time.Now().Add(-time.Minute)

	_, err = f.service.Consent(ctx, ConsentParams{RequestID: request.ID, UserID: "user-1", Action: ActionApprove})
	require.Error(t, err)

	updated, err := f.requests.AuthRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuthRequestExpired, updated.Status)
}

func TestConsent_UnknownRequest(t *testing.T) {
	f := newFixture(confidentialClient())

	_, err := f.service.Consent(context.Background(), ConsentParams{RequestID: "missing", UserID: "user-1", Action: ActionApprove})
	require.Error(t, err)
	assert.Equal(t, oautherr.CodeInvalidRequest, oautherr.From(err).Code)
}

func TestConsentPrompt(t *testing.T) {
	f := newFixture(confidentialClient())
	ctx := context.Background()

	request, _, err := f.service.CreateRequest(ctx, validParams("web-app"))
	require.NoError(t, err)

	prompt, err := f.service.ConsentPrompt(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, request.ID, prompt.RequestID)
	assert.Equal(t, "web-app", prompt.ClientID)
	assert.Equal(t, "Web App", prompt.ClientName)
	require.Len(t, prompt.Scopes, 2)
	assert.Equal(t, "openid", prompt.Scopes[0].Scope)
	assert.NotEmpty(t, prompt.Scopes[0].Description)
	assert.Equal(t, "inventory:read", prompt.Scopes[1].Scope)
	assert.Empty(t, prompt.Scopes[1].Description)

	_, err = f.service.ConsentPrompt(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, oautherr.CodeInvalidRequest, oautherr.From(err).Code)
}

func TestConsentPrompt_HandledRequestRejected(t *testing.T) {
	f := newFixture(confidentialClient())
	ctx := context.Background()

	request, _, err := f.service.CreateRequest(ctx, validParams("web-app"))
	require.NoError(t, err)
	_, err = f.service.Consent(ctx, ConsentParams{RequestID: request.ID, UserID: "user-1", Action: ActionApprove})
	require.NoError(t, err)

	_, err = f.service.ConsentPrompt(ctx, request.ID)
	require.Error(t, err)
	assert.Equal(t, oautherr.CodeInvalidRequest, oautherr.From(err).Code)
}
