package middleware

import (
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medilink/telehealth/internal/platform/apperr"
)

const maxHeaderValue = 8 << 10

var markupInQuery = regexp.MustCompile(`(?i)(<script|javascript\s*:|on[a-z]+\s*=)`)

// Sanitize rejects requests carrying path traversal, NUL bytes, header
// splitting or markup in query parameters. Rejections are validation errors
// and are rendered by the application's error handler.
func Sanitize(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if reason := inspectRequest(c); reason != "" {
				logger.Warn().
					Str("path", c.Request().URL.Path).
					Str("remote_ip", c.RealIP()).
					Str("reason", reason).
					Msg("request rejected by sanitizer")
				return apperr.Validation("malformed request: %s", reason)
			}
			return next(c)
		}
	}
}

func inspectRequest(c echo.Context) string {
	u := c.Request().URL
	for _, p := range []string{u.Path, u.RawPath} {
		if hasTraversal(p) {
			return "path traversal"
		}
		if hasNUL(p) {
			return "null byte in path"
		}
	}

	for name, values := range c.Request().Header {
		for _, v := range values {
			if len(v) > maxHeaderValue {
				return "header " + name + " too large"
			}
			if strings.ContainsAny(v, "\r\n") {
				return "line break in header " + name
			}
		}
	}

	for key, values := range u.Query() {
		if hasNUL(key) || markupInQuery.MatchString(key) {
			return "invalid query parameter name"
		}
		for _, v := range values {
			if hasNUL(v) {
				return "null byte in query parameter " + key
			}
			if markupInQuery.MatchString(v) {
				return "markup in query parameter " + key
			}
		}
	}
	return ""
}

func hasTraversal(s string) bool {
	l := strings.ToLower(s)
	return strings.Contains(l, "..") || strings.Contains(l, "%2e%2e") || strings.Contains(l, "%252e")
}

func hasNUL(s string) bool {
	return strings.ContainsRune(s, 0) || strings.Contains(strings.ToLower(s), "%00")
}
