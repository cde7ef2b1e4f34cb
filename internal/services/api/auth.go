package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"redpen/internal/platform/config"
	perr "redpen/internal/platform/errors"
	"redpen/internal/platform/net/middleware"
)

// tokenAuth is a static bearer token guard for operational endpoints.
// A nil AuthPort disables the check entirely
type tokenAuth struct {
	token string
}

// newTokenAuth reads TOKEN under the given config; empty means auth off
func newTokenAuth(cfg config.Conf) middleware.AuthPort {
	t := strings.TrimSpace(cfg.MayString("TOKEN", ""))
	if t == "" {
		return nil
	}
	return &tokenAuth{token: t}
}

// Parse implements middleware.AuthPort
func (a *tokenAuth) Parse(r *http.Request) (userID string, tenantID string, err error) {
	const scheme = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, scheme) {
		return "", "", perr.Unauthorizedf("missing bearer token")
	}
	got := strings.TrimSpace(strings.TrimPrefix(h, scheme))
	if subtle.ConstantTimeCompare([]byte(got), []byte(a.token)) != 1 {
		return "", "", perr.Unauthorizedf("invalid token")
	}
	return "operator", "", nil
}
