package navigation

import (
	navsvc "edustack-web/internal/application/navigation"
	"edustack-web/internal/application/permissions"
	"edustack-web/internal/middleware"
	"edustack-web/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers serves the dashboard menu.
type Handlers struct {
	Menus navsvc.Menus
}

// Get GET /api/v1/navigation: categories and links the session may see.
// Mounted behind RequireAuth.
func (h *Handlers) Get(c *fiber.Ctx) error {
	snap := middleware.GetSnapshot(c)
	menu := h.Menus.Menu(permissions.New(snap))
	return response.Success(c, "Navigation", fiber.Map{
		"selectedSchoolId": snap.SelectedSchoolID,
		"categories":       menu,
	}, nil)
}
