package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad auth header")
)

const bearerScheme = "Bearer"

func bearerTokenFromHeader(header http.Header) (string, error) {
	values := header.Values(echo.HeaderAuthorization)
	if len(values) == 0 {
		return "", errMissingAuthorization
	}
	return bearerTokenFromString(values[0])
}

func bearerTokenFromString(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errMissingAuthorization
	}
	scheme, token, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return "", errBadAuthorization
	}
	return compactToken(strings.TrimSpace(token))
}

// bearerTokenFromCookie reads the session cookie, which carries the same
// compact JWT a bearer header would.
func bearerTokenFromCookie(r *http.Request, name string) (string, error) {
	if name == "" {
		return "", errMissingAuthorization
	}
	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", errMissingAuthorization
	}
	return compactToken(cookie.Value)
}

func compactToken(token string) (string, error) {
	if token == "" || strings.Count(token, ".") != 2 {
		return "", errBadAuthorization
	}
	return token, nil
}
