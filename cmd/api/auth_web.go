package main

import (
	"net/http"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
	refreshCookiePath  = "/v1/users"
)

// setAuthCookies sets access + refresh tokens as HttpOnly cookies so browser
// clients never handle them in JS.
func (app *application) setAuthCookies(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, app.authCookie(accessTokenCookie, accessToken, "/", int(app.config.auth.token.accessTokenExp.Seconds())))
	http.SetCookie(w, app.authCookie(refreshTokenCookie, refreshToken, refreshCookiePath, int(app.config.auth.token.refreshTokenExp.Seconds())))
}

func (app *application) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, app.authCookie(accessTokenCookie, "", "/", -1))
	http.SetCookie(w, app.authCookie(refreshTokenCookie, "", refreshCookiePath, -1))
}

func (app *application) authCookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   app.config.cookieDomain,
		HttpOnly: true,
		Secure:   app.config.env == "production",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

// cookieValue returns the named cookie's value or "".
func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
