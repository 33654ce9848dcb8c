package audit

import (
	"context"

	"edustack-web/internal/domain"
	"edustack-web/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Lister reads back recorded access events.
type Lister interface {
	Recent(ctx context.Context, userID string, limit int) ([]domain.AccessEvent, error)
}

// Handlers serves the access audit trail. Mounted behind RequireSuperAdmin.
type Handlers struct {
	Events Lister
}

// List GET /api/v1/audit/access-events?user_id=&limit=
func (h *Handlers) List(c *fiber.Ctx) error {
	events, err := h.Events.Recent(c.UserContext(), c.Query("user_id"), c.QueryInt("limit"))
	if err != nil {
		log.Error().Err(err).Msg("audit: list access events")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Access events", fiber.Map{"events": events}, fiber.Map{"count": len(events)})
}
