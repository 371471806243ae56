package httpapi

import (
	"fmt"
	"strings"

	"github.com/expensebook/expensebook/internal/common"
	"github.com/expensebook/expensebook/internal/server/auth"
	"github.com/gofiber/fiber/v2"
)

type ctxKey string

const identityKey ctxKey = "identity"

// accessTokenGuard admits requests carrying a valid access token, taken from
// the accessToken cookie or else from an "Authorization: Bearer" header.
func (s *Server) accessTokenGuard(c *fiber.Ctx) error {
	token := c.Cookies(common.AccessTokenCookieName)
	if token == "" {
		token = bearerToken(c.Get(common.AuthorizationHeaderName))
	}
	if token == "" {
		return fmt.Errorf("%w: unauthorized request", common.ErrorUnauthorized)
	}

	id, err := s.deps.Tokens.VerifyAccess(token)
	if err != nil {
		return err
	}

	c.Locals(identityKey, id)
	return c.Next()
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// identityFrom returns the identity attached by accessTokenGuard.
func identityFrom(c *fiber.Ctx) (auth.Identity, error) {
	id, ok := c.Locals(identityKey).(auth.Identity)
	if !ok || id.UserID == "" {
		return auth.Identity{}, fmt.Errorf("%w: unauthorized request", common.ErrorUnauthorized)
	}
	return id, nil
}
