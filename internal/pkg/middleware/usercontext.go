package middleware

import (
	"strconv"

	"github.com/arminiranpour/cnaghsh/internal/pkg/session"
	"github.com/arminiranpour/cnaghsh/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
)

// UserContext resolves the acting user from the session cookie and stores it
// on the request. Auth itself (login, registration) lives outside this
// service; the session only carries the already-authenticated identity.
func UserContext(c *fiber.Ctx) error {
	userCtx := usercontext.UserContext{}

	if raw := session.GetSessionValue(c, usercontext.KeyUserID); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil && id > 0 {
			userCtx.UserID = uint(id)
			userCtx.Username = session.GetSessionValue(c, usercontext.KeyUsername)
			userCtx.IsLoggedIn = true
			userCtx.IsAdmin = session.GetSessionValue(c, usercontext.KeyIsAdmin) == "true"
		}
	}

	usercontext.SetUserContext(c, userCtx)
	return c.Next()
}
