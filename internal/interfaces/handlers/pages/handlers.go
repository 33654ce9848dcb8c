package pages

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"edustack-web/internal/application/gate"
	navsvc "edustack-web/internal/application/navigation"
	"edustack-web/internal/application/permissions"
	authhandler "edustack-web/internal/interfaces/handlers/auth"
	"edustack-web/internal/middleware"
	"edustack-web/internal/pkg/constants"
	"edustack-web/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const (
	// maxWatch bounds one access stream; clients reconnect after it.
	maxWatch         = 30 * time.Minute
	defaultHeartbeat = 15 * time.Second
)

// Handlers renders the page shells the dashboard client hydrates.
type Handlers struct {
	Menus     navsvc.Menus
	Heartbeat time.Duration // gate watch keep-alive interval
}

// Page returns the handler for one gated dashboard page. It runs only after
// the page gate allowed the request.
func (h *Handlers) Page(link navsvc.Link) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap := middleware.GetSnapshot(c)
		return response.Success(c, link.Label, fiber.Map{
			"page":    fiber.Map{"href": link.Href, "label": link.Label},
			"session": authhandler.NewSessionView(snap),
			"menu":    h.Menus.Menu(permissions.New(snap)),
		}, nil)
	}
}

// Home sends a signed-in user to the first page their menu offers. Mounted
// behind RequireLogin.
func (h *Handlers) Home(c *fiber.Ctx) error {
	snap := middleware.GetSnapshot(c)
	for _, cat := range h.Menus.Menu(permissions.New(snap)) {
		if len(cat.Links) > 0 {
			return c.Redirect(cat.Links[0].Href, fiber.StatusFound)
		}
	}
	return c.Redirect(constants.NotAuthorizedRoute, fiber.StatusFound)
}

// NotAuthorized is where the gate sends signed-in users lacking a role.
func (h *Handlers) NotAuthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"status":  "error",
		"page":    fiber.Map{"href": constants.NotAuthorizedRoute, "label": "Not Authorized"},
		"message": "You do not have permission to view this page",
		"links":   fiber.Map{"home": constants.MultiSchoolDashboard, "login": constants.LoginRoute},
	})
}

// Login is the public sign-in page. Signed-in visitors get their session
// back so the client can skip the form.
func (h *Handlers) Login(c *fiber.Ctx) error {
	snap := middleware.GetState(c).Snapshot()
	return response.Success(c, "Login", fiber.Map{
		"page":    fiber.Map{"href": constants.LoginRoute, "label": "Login"},
		"session": authhandler.NewSessionView(snap),
	}, nil)
}

// Watch GET /api/v1/gate/watch?path=<page> streams the access decision of a
// mounted page as server-sent events. A "decision" event follows every
// change; when access is lost a "redirect" event names the route to
// replace the view with and the stream ends. Comment heartbeats detect
// clients that went away. The stream also ends when the session is
// dropped from the registry; clients reconnect to follow its successor.
func (h *Handlers) Watch(c *fiber.Ctx) error {
	link, ok := h.page(c.Query("path"))
	if !ok {
		return response.NotFound(c, "Unknown page")
	}
	rule := gate.Roles(link.Required()...)
	if link.AllAuthenticated {
		rule = gate.SignedIn()
	}
	st := middleware.GetState(c)
	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithTimeout(context.Background(), maxWatch)
		defer cancel()
		routes := make(chan string, 1)
		nav := gate.NavigatorFunc(func(route string) { routes <- route })
		decisions := gate.Watch(ctx, st, rule, nav)
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case d, open := <-decisions:
				if !open {
					return
				}
				writeEvent(w, "decision", d.String())
				if d.Redirects() {
					writeEvent(w, "redirect", <-routes)
					_ = w.Flush()
					return
				}
				if err := w.Flush(); err != nil {
					log.Debug().Err(err).Msg("gate watch: client went away")
					return
				}
			case <-ticker.C:
				_, _ = w.WriteString(": ping\n\n")
				if err := w.Flush(); err != nil {
					log.Debug().Err(err).Msg("gate watch: client went away")
					return
				}
			}
		}
	})
	return nil
}

func (h *Handlers) page(href string) (navsvc.Link, bool) {
	for _, l := range h.Menus.Pages() {
		if l.Href == href {
			return l, true
		}
	}
	return navsvc.Link{}, false
}

func writeEvent(w *bufio.Writer, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
