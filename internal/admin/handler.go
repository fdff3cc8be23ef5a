package admin

import (
	"github.com/gofiber/fiber/v2"
)

// Handler exposes the snapshot endpoints.
type Handler struct {
	reporter *Reporter
}

// NewHandler constructs an admin snapshot handler.
func NewHandler(reporter *Reporter) *Handler {
	return &Handler{reporter: reporter}
}

// System returns the system snapshot.
func (h *Handler) System(c *fiber.Ctx) error {
	return c.JSON(h.reporter.SystemSnapshot(c.UserContext()))
}

// User returns one member's snapshot.
func (h *Handler) User(c *fiber.Ctx) error {
	ownerID := c.Params("ownerId")
	if ownerID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "owner id is required")
	}
	return c.JSON(h.reporter.UserSnapshot(c.UserContext(), ownerID))
}
