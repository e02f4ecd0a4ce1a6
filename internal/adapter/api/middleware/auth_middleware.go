package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"supportdesk/internal/domain/entity"
	"supportdesk/internal/infrastructure/firebase"
)

type AuthMiddleware struct {
	authClient *firebase.AuthClient
}

func NewAuthMiddleware(authClient *firebase.AuthClient) *AuthMiddleware {
	return &AuthMiddleware{
		authClient: authClient,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := BearerToken(c)
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is required")
		}

		identity, err := m.authClient.VerifyToken(c.Request().Context(), token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		c.Set("identity", identity)
		return next(c)
	}
}

// BearerToken extracts the credential from the Authorization header or,
// for websocket upgrades where browsers cannot set headers, from the
// `token` query parameter.
func BearerToken(c echo.Context) string {
	if header := c.Request().Header.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return c.QueryParam("token")
}

// IdentityFrom returns the authenticated identity set by Authenticate.
func IdentityFrom(c echo.Context) (entity.Identity, bool) {
	identity, ok := c.Get("identity").(entity.Identity)
	return identity, ok
}
