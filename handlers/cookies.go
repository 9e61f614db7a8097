package handlers

import (
	"net/http"
	"time"

	"github.com/upb/auth-service/config"
)

const (
	// RefreshCookieName carries the refresh token between login and refresh
	RefreshCookieName = "refresh_token"

	// StateCookieName carries the OAuth state between login and callback
	StateCookieName   = "oauth_state"
	stateCookiePath   = "/api/v1/oauth"
	stateCookieMaxAge = 600
)

// RefreshCookie writes and clears the refresh token cookie
type RefreshCookie struct {
	Secure bool
	Path   string
	MaxAge time.Duration
}

// NewRefreshCookie builds cookie settings that live as long as a refresh token
func NewRefreshCookie(cfg config.CookieConfig, refreshTTL time.Duration) RefreshCookie {
	path := cfg.Path
	if path == "" {
		path = "/"
	}
	return RefreshCookie{Secure: cfg.Secure, Path: path, MaxAge: refreshTTL}
}

// Set stores the refresh token
func (c RefreshCookie) Set(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     c.Path,
		MaxAge:   int(c.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear expires the refresh token cookie
func (c RefreshCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     c.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func readRefreshCookie(r *http.Request) string {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// The provider redirects back cross-site, so the state cookie must be Lax
// to be sent with the callback.
func setStateCookie(w http.ResponseWriter, value string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    value,
		Path:     stateCookiePath,
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearStateCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     stateCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
