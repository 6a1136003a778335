package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Identity is the profile returned by a provider after a successful exchange.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

// Provider performs the OAuth 2 handoff for one identity provider.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (Identity, error)
}

// OAuthProvider is an authorization-code provider whose profile comes from a userinfo endpoint.
type OAuthProvider struct {
	name        string
	oauth       *oauth2.Config
	http        *resty.Client
	userInfoURL string
}

// NewOAuthProvider creates a provider. name is matched case-insensitively.
func NewOAuthProvider(name string, cfg *oauth2.Config, userInfoURL string) *OAuthProvider {
	return &OAuthProvider{
		name:        strings.ToLower(name),
		oauth:       cfg,
		http:        resty.New().SetTimeout(10 * time.Second),
		userInfoURL: userInfoURL,
	}
}

// GoogleConfig holds the client registration for google sign-in.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	UserInfoURL  string
}

// NewGoogle returns the "google" provider.
func NewGoogle(cfg GoogleConfig) *OAuthProvider {
	return NewOAuthProvider("google", &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     endpoints.Google,
		Scopes:       []string{"openid", "email", "profile"},
	}, cfg.UserInfoURL)
}

func (p *OAuthProvider) Name() string { return p.name }

func (p *OAuthProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the code for an access token and fetches the user's profile.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (Identity, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to exchange code: %w", err)
	}

	var id Identity
	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(token.AccessToken).
		SetResult(&id).
		Get(p.userInfoURL)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to fetch user info: %w", err)
	}
	if resp.IsError() {
		return Identity{}, fmt.Errorf("failed to fetch user info: status %d", resp.StatusCode())
	}
	if id.Subject == "" {
		return Identity{}, errors.New("user info has no subject")
	}

	return id, nil
}
