package checkout

import (
	"net/http"
	"time"
)

const (
	// CookieName binds a checkout to the browser that opened its page.
	CookieName = "orderbot_checkout"
	// CookieMaxAge bounds how long a checkout page can be left open.
	CookieMaxAge = 15 * time.Minute
)

func setCheckoutCookie(w http.ResponseWriter, token, nonce string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    nonce,
		Path:     "/checkout/" + token,
		MaxAge:   int(CookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearCheckoutCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/checkout/" + token,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func checkoutCookie(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
