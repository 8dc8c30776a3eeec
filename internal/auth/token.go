package auth

import (
	"net/http"
	"strings"
)

const (
	jwtCookie   = "jwt"
	tokenCookie = "token"
	bearer      = "Bearer "
)

// TokenFromRequest returns the first token found in cookie jwt, cookie token,
// then the Authorization header. Empty when none is present.
func TokenFromRequest(r *http.Request) string {
	cookies := ParseCookieHeader(r.Header.Get("Cookie"))
	if t := cookies[jwtCookie]; t != "" {
		return t
	}
	if t := cookies[tokenCookie]; t != "" {
		return t
	}

	header := r.Header.Get("Authorization")
	if len(header) > len(bearer) && strings.EqualFold(header[:len(bearer)], bearer) {
		return strings.TrimSpace(header[len(bearer):])
	}
	return ""
}

// ParseCookieHeader splits on ';' then on the first '='. Values are kept verbatim,
// unlike http.Request.Cookies which drops values with characters outside the cookie grammar.
func ParseCookieHeader(header string) map[string]string {
	cookies := make(map[string]string)
	for _, part := range strings.Split(header, ";") {
		name, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found || name == "" {
			continue
		}
		if _, exists := cookies[name]; !exists {
			cookies[name] = strings.TrimSpace(value)
		}
	}
	return cookies
}
