package httpapi

import (
	"time"

	"github.com/expensebook/expensebook/internal/common"
	"github.com/expensebook/expensebook/internal/server/services"
	"github.com/gofiber/fiber/v2"
)

type cookieSettings struct {
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func (s *Server) setSessionCookies(c *fiber.Ctx, pair services.TokenPair) {
	c.Cookie(s.sessionCookie(common.AccessTokenCookieName, pair.AccessToken, s.cookies.accessTTL))
	c.Cookie(s.sessionCookie(common.RefreshTokenCookieName, pair.RefreshToken, s.cookies.refreshTTL))
}

func (s *Server) clearSessionCookies(c *fiber.Ctx) {
	for _, name := range []string{common.AccessTokenCookieName, common.RefreshTokenCookieName} {
		cookie := s.sessionCookie(name, "", 0)
		cookie.Expires = time.Unix(0, 0)
		c.Cookie(cookie)
	}
}

func (s *Server) sessionCookie(name, value string, ttl time.Duration) *fiber.Cookie {
	cookie := &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		Secure:   s.cookies.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
	if ttl > 0 {
		cookie.MaxAge = int(ttl.Seconds())
	}
	return cookie
}
