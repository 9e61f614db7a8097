package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/upb/auth-service/config"
	"golang.org/x/oauth2"
)

// Identity is what a provider tells us about the account holder
type Identity struct {
	ProviderAccountID string
	Email             string
	Login             string
}

// Provider runs the authorization code flow against one identity provider
type Provider interface {
	Name() string
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	FetchIdentity(ctx context.Context, tok *oauth2.Token) (*Identity, error)
}

// Endpoints locates a provider's authorization, token and userinfo URLs
type Endpoints struct {
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// Option customizes a provider
type Option func(*codeFlow)

// WithEndpoints points the provider at different URLs
func WithEndpoints(e Endpoints) Option {
	return func(c *codeFlow) {
		c.oauth.Endpoint = oauth2.Endpoint{AuthURL: e.AuthURL, TokenURL: e.TokenURL}
		c.userInfoURL = e.UserInfoURL
	}
}

// WithHTTPClient overrides the client used for token and userinfo calls
func WithHTTPClient(client *http.Client) Option {
	return func(c *codeFlow) { c.httpClient = client }
}

// codeFlow is the part of the code flow every provider shares
type codeFlow struct {
	name        string
	oauth       *oauth2.Config
	userInfoURL string
	authScheme  string
	httpClient  *http.Client
}

func newCodeFlow(name string, cfg config.OAuthProviderConfig, e Endpoints, scopes []string, authScheme string, opts []Option) *codeFlow {
	c := &codeFlow{
		name: name,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint:     oauth2.Endpoint{AuthURL: e.AuthURL, TokenURL: e.TokenURL},
		},
		userInfoURL: e.UserInfoURL,
		authScheme:  authScheme,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *codeFlow) Name() string {
	return c.name
}

func (c *codeFlow) AuthorizeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

func (c *codeFlow) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s code exchange failed: %w", c.name, err)
	}
	return tok, nil
}

// fetchUserInfo GETs the userinfo endpoint and decodes the body into out
func (c *codeFlow) fetchUserInfo(ctx context.Context, tok *oauth2.Token, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return fmt.Errorf("create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", c.authScheme+" "+tok.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s userinfo request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s userinfo failed: status %d, body: %s", c.name, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s userinfo: %w", c.name, err)
	}
	return nil
}
