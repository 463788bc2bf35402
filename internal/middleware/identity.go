package middleware

// identity.go defines helper functions shared across middleware files. The
// JWTAuth middleware stores the token's subject claim under "user_id"; since
// JSON numbers decode to float64, the value may arrive as a float64, a
// string, or a native integer depending on how it was set.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// userID extracts a user identifier from the Echo context. It returns
// "anon" when no user is authenticated or the claim has an unexpected type.
func userID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	}
	return "anon"
}
