package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// DefaultTimeout bounds every token-endpoint round trip.
const DefaultTimeout = 10 * time.Second

// Scopes is the fixed scope set requested at login.
var Scopes = []string{
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopeStreaming,
}

// ExchangerConfig configures an Exchanger.
type ExchangerConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// AuthURL and TokenURL default to the Spotify accounts service.
	AuthURL  string
	TokenURL string

	// HTTPClient is used for token requests. Defaults to a client with DefaultTimeout.
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Exchanger performs the authorization-code and refresh grants against the
// token endpoint and records successful results in the CredentialStore.
type Exchanger struct {
	config     oauth2.Config
	httpClient *http.Client
	store      *CredentialStore
	logger     *log.Logger
	now        func() time.Time
}

// NewExchanger creates an Exchanger writing to store.
func NewExchanger(store *CredentialStore, cfg ExchangerConfig) *Exchanger {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = spotifyauth.AuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Exchanger{
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
				// Spotify accepts client credentials in the form body.
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		store:      store,
		logger:     logger,
		now:        time.Now,
	}
}

// AuthURL returns the provider authorization URL the browser is sent to.
func (e *Exchanger) AuthURL(state string) string {
	return e.config.AuthCodeURL(state)
}

// RedirectURI returns the configured callback URL.
func (e *Exchanger) RedirectURI() string {
	return e.config.RedirectURL
}

// ExchangeCode trades an authorization code for a credential.
// A rejected exchange or a response without a refresh token leaves the store untouched.
func (e *Exchanger) ExchangeCode(ctx context.Context, code, redirectURI string) (Credential, error) {
	if strings.TrimSpace(code) == "" {
		return Credential{}, &Error{Kind: KindProviderRejected, Detail: "missing authorization code"}
	}

	conf := e.config
	if redirectURI != "" {
		conf.RedirectURL = redirectURI
	}

	token, err := conf.Exchange(e.clientContext(ctx), code)
	if err != nil {
		e.logger.Warn("authorization code exchange rejected", "err", describe(err))
		return Credential{}, &Error{Kind: KindProviderRejected, Detail: describe(err), Err: err}
	}

	if token.RefreshToken == "" {
		e.logger.Warn("authorization code exchange returned no refresh token")
		return Credential{}, ErrMissingRefreshToken
	}

	cred := Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ObtainedAt:   e.now(),
	}
	e.store.Set(cred)

	e.logger.Info("authorization code exchanged", "expiry", token.Expiry)
	return cred, nil
}

// Refresh obtains a new access token using refreshToken.
// The refresh token is kept unless the provider issues a replacement.
func (e *Exchanger) Refresh(ctx context.Context, refreshToken string) (Credential, error) {
	if refreshToken == "" {
		return Credential{}, &Error{Kind: KindRefreshFailed, Detail: "no refresh token held"}
	}

	src := e.config.TokenSource(e.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		e.logger.Warn("token refresh failed", "err", describe(err))
		return Credential{}, &Error{Kind: KindRefreshFailed, Detail: describe(err), Err: err}
	}
	if token.AccessToken == "" {
		return Credential{}, &Error{Kind: KindRefreshFailed, Detail: "response missing access_token"}
	}

	cred := Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: refreshToken,
		ObtainedAt:   e.now(),
	}
	if token.RefreshToken != "" {
		cred.RefreshToken = token.RefreshToken
	}
	e.store.Set(cred)

	e.logger.Info("access token refreshed", "rotated", cred.RefreshToken != refreshToken)
	return cred, nil
}

// clientContext makes the oauth2 package use the bounded-timeout client.
func (e *Exchanger) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}

// describe renders a token-endpoint failure as a short human string.
func describe(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		switch {
		case re.ErrorCode != "" && re.ErrorDescription != "":
			return fmt.Sprintf("%s: %s", re.ErrorCode, re.ErrorDescription)
		case re.ErrorCode != "":
			return re.ErrorCode
		case re.Response != nil:
			return fmt.Sprintf("token endpoint returned HTTP %d", re.Response.StatusCode)
		}
	}
	return err.Error()
}
