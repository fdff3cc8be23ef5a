package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	ownerIDHeader = "X-Owner-ID"
	ownerIDLocal  = "owner_id"
	maxOwnerIDLen = 128
)

// Owner reads the member identity forwarded by the gateway and stores it in
// the request locals. Requests without it are rejected.
func Owner() fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := strings.TrimSpace(c.Get(ownerIDHeader))
		if owner == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing "+ownerIDHeader+" header")
		}
		if len(owner) > maxOwnerIDLen {
			return fiber.NewError(http.StatusBadRequest, "owner id too long")
		}
		c.Locals(ownerIDLocal, owner)
		return c.Next()
	}
}

// OwnerID returns the member identity set by Owner, or "" outside member routes.
func OwnerID(c *fiber.Ctx) string {
	owner, _ := c.Locals(ownerIDLocal).(string)
	return owner
}
