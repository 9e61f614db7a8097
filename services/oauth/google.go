package oauth

import (
	"context"
	"fmt"

	"github.com/upb/auth-service/config"
	"golang.org/x/oauth2"
)

const ProviderGoogle = "google"

var googleEndpoints = Endpoints{
	AuthURL:     "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL:    "https://oauth2.googleapis.com/token",
	UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
}

// Google signs users in with their Google account via OpenID Connect userinfo
type Google struct {
	*codeFlow
}

func NewGoogle(cfg config.OAuthProviderConfig, opts ...Option) *Google {
	return &Google{codeFlow: newCodeFlow(ProviderGoogle, cfg, googleEndpoints,
		[]string{"openid", "email", "profile"}, "Bearer", opts)}
}

type googleUserInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

func (g *Google) FetchIdentity(ctx context.Context, tok *oauth2.Token) (*Identity, error) {
	var info googleUserInfo
	if err := g.fetchUserInfo(ctx, tok, &info); err != nil {
		return nil, err
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("google userinfo has no subject")
	}
	return &Identity{ProviderAccountID: info.Sub, Email: info.Email, Login: info.Email}, nil
}
