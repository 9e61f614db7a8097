package oauth

import (
	"context"
	"fmt"

	"github.com/upb/auth-service/config"
	"golang.org/x/oauth2"
)

const ProviderYandex = "yandex"

var yandexEndpoints = Endpoints{
	AuthURL:     "https://oauth.yandex.ru/authorize",
	TokenURL:    "https://oauth.yandex.ru/token",
	UserInfoURL: "https://login.yandex.ru/info?format=json",
}

// Yandex signs users in with Yandex ID. Its userinfo endpoint expects the
// "OAuth" authorization scheme rather than "Bearer".
type Yandex struct {
	*codeFlow
}

func NewYandex(cfg config.OAuthProviderConfig, opts ...Option) *Yandex {
	return &Yandex{codeFlow: newCodeFlow(ProviderYandex, cfg, yandexEndpoints, nil, "OAuth", opts)}
}

type yandexUserInfo struct {
	ID           string `json:"id"`
	Login        string `json:"login"`
	DefaultEmail string `json:"default_email"`
}

func (y *Yandex) FetchIdentity(ctx context.Context, tok *oauth2.Token) (*Identity, error) {
	var info yandexUserInfo
	if err := y.fetchUserInfo(ctx, tok, &info); err != nil {
		return nil, err
	}
	if info.ID == "" {
		return nil, fmt.Errorf("yandex userinfo has no id")
	}
	return &Identity{ProviderAccountID: info.ID, Email: info.DefaultEmail, Login: info.Login}, nil
}
