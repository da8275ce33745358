package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route paths that bypass bearer authentication. The
// websocket endpoint authenticates during its own handshake.
var publicPaths = map[string]bool{
	"/health":                true,
	"/health/db":             true,
	"/api/health":            true,
	"/api/auth/register":     true,
	"/api/auth/login":        true,
	"/api/doctors/available": true,
	"/ws":                    true,
}

// AuthSkipper returns true for requests whose route should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given route path bypasses authentication.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
