package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths are the route patterns reachable without a bearer token.
var publicPaths = map[string]bool{
	"/health":                        true,
	"/health/db":                     true,
	"/metrics":                       true,
	"/api/v1/token-auth":             true,
	"/api/v1/users/register-patient": true,
	"/api/v1/users/register-doctor":  true,
}

// AuthSkipper reports whether the matched route is public.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
