package middleware

// identity.go defines helpers shared across middleware files. The account
// address set by JWTAuth is used to build per-caller rate limit keys; when
// no token is present "anon" is used so unauthenticated view traffic still
// buckets sensibly.

import (
	"github.com/labstack/echo/v4"
)

// currentAccount extracts the authenticated account address from the Echo
// context. It returns "anon" when no account is set.
func currentAccount(c echo.Context) string {
	if v := c.Get("account"); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "anon"
}
