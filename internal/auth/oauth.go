package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/savaki/release-pipeline/internal/authz"
)

const (
	cookieName = "release-console"

	sessionState   = "state"
	sessionProfile = "profile"
	sessionToken   = "access_token"
)

// Profile is the subset of ID token claims the console cares about.
type Profile struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Authenticator runs the OAuth2 code flow against a Provider and keeps
// the resulting profile in an encrypted session cookie.
type Authenticator struct {
	provider     Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config oauth2.Config
	store        *sessions.CookieStore
	callbackURL  string
	authorizer   *authz.Authorizer
}

// Config configures a console Authenticator.
type Config struct {
	Provider     Provider
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Authorizer   *authz.Authorizer
	SessionKeys  [][]byte
	Insecure     bool // drops the Secure cookie flag for http://localhost
}

// New discovers the provider's OIDC configuration and builds an
// Authenticator around it.
func New(ctx context.Context, config Config) (*Authenticator, error) {
	logger := zerolog.Ctx(ctx)

	issuer := config.Provider.IssuerURL()
	logger.Info().
		Str("provider", config.Provider.Name()).
		Str("issuer", issuer).
		Msg("Initializing OIDC provider")

	oidcProvider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed for %s: %w", issuer, err)
	}

	endpoint := oidcProvider.Endpoint()
	if override, ok := config.Provider.Endpoint(); ok {
		endpoint = override
	}

	keys := config.SessionKeys
	if len(keys) == 0 {
		logger.Warn().Msg("No session keys provided, generating ephemeral fallback key")
		fallback := make([]byte, 32)
		if _, err := rand.Read(fallback); err != nil {
			return nil, fmt.Errorf("failed to generate fallback session key: %w", err)
		}
		keys = [][]byte{fallback}
	}

	// multiple keys support rotation: encrypt with the first, decrypt
	// with any
	store := sessions.NewCookieStore(keys...)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   !config.Insecure,
		SameSite: http.SameSiteLaxMode,
	}

	logger.Info().
		Int("session_keys", len(keys)).
		Str("provider", config.Provider.Name()).
		Msg("Authenticator ready")

	return &Authenticator{
		provider: config.Provider,
		verifier: oidcProvider.Verifier(&oidc.Config{ClientID: config.ClientID}),
		oauth2Config: oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.CallbackURL,
			Endpoint:     endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		store:       store,
		callbackURL: config.CallbackURL,
		authorizer:  config.Authorizer,
	}, nil
}

// newState returns a random value binding the login redirect to the
// callback.
func newState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// HandleLogin stores a state nonce in the session and redirects to the
// provider's authorize endpoint.
func (a *Authenticator) HandleLogin(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	if a.IsNoOp() {
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	state, err := newState()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to generate state")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// decrypt errors are fine here, a fresh session replaces any stale
	// cookie
	session, _ := a.store.Get(r, cookieName)
	session.Values[sessionState] = state
	if err := session.Save(r, w); err != nil {
		logger.Error().Err(err).Msg("Failed to save session")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	logger.Info().Str("provider", a.provider.Name()).Msg("Redirecting to provider for login")
	http.Redirect(w, r, a.oauth2Config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the code flow: checks the state nonce,
// exchanges the code, verifies the ID token, runs authorization, and
// stores the profile in the session.
func (a *Authenticator) HandleCallback(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	if a.IsNoOp() {
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	session, err := a.store.Get(r, cookieName)
	if err != nil {
		logger.Warn().Str("error", err.Error()).Msg("Session cookie error in callback, restarting login")
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return
	}

	expected, _ := session.Values[sessionState].(string)
	if expected == "" || r.URL.Query().Get("state") != expected {
		logger.Error().Msg("State mismatch in callback")
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		logger.Error().Msg("Callback is missing the authorization code")
		http.Error(w, "Code not found", http.StatusBadRequest)
		return
	}

	profile, accessToken, err := a.fetchIdentity(r.Context(), code)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to establish identity from callback")
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}

	if a.authorizer != nil {
		err := a.authorizer.Authorize(authz.Profile{
			Sub:   profile.Sub,
			Name:  profile.Name,
			Email: profile.Email,
		})
		if err != nil {
			logger.Warn().
				Str("sub", profile.Sub).
				Str("email", profile.Email).
				Err(err).
				Msg("User authorization failed")
			http.Error(w, fmt.Sprintf("Access denied: %v", err), http.StatusForbidden)
			return
		}
	}

	encoded, err := json.Marshal(profile)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to marshal profile")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	session.Values[sessionProfile] = string(encoded)
	session.Values[sessionToken] = accessToken
	delete(session.Values, sessionState)

	if err := session.Save(r, w); err != nil {
		logger.Error().Err(err).Msg("Failed to save session")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	logger.Info().Str("sub", profile.Sub).Msg("User authenticated")
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// fetchIdentity exchanges the authorization code and verifies the ID
// token it came back with.
func (a *Authenticator) fetchIdentity(ctx context.Context, code string) (*Profile, string, error) {
	token, err := a.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("code exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, "", fmt.Errorf("no id_token in token response")
	}

	idToken, err := a.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, "", fmt.Errorf("id token verification failed: %w", err)
	}

	var profile Profile
	if err := idToken.Claims(&profile); err != nil {
		return nil, "", fmt.Errorf("failed to extract claims: %w", err)
	}

	return &profile, token.AccessToken, nil
}

// HandleLogout clears the session and redirects to the provider logout
// endpoint when the provider has one.
func (a *Authenticator) HandleLogout(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	if a.IsNoOp() {
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	session, _ := a.store.Get(r, cookieName)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		logger.Error().Err(err).Msg("Failed to clear session")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	callback, err := url.Parse(a.callbackURL)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse callback URL")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	returnTo := callback.Scheme + "://" + callback.Host
	logger.Info().Str("provider", a.provider.Name()).Msg("Logging out user")
	http.Redirect(w, r, a.provider.LogoutURL(a.oauth2Config.ClientID, returnTo), http.StatusTemporaryRedirect)
}
