package middleware

import (
	"context"
	"time"

	"edustack-web/internal/application/audit"
	"edustack-web/internal/application/gate"
	"edustack-web/internal/pkg/constants"
	"edustack-web/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// DecisionCounter counts gate decisions (metrics).
type DecisionCounter interface {
	GateDecided(decision string)
}

// GateConfig wires the page gates.
type GateConfig struct {
	Audit       audit.Recorder
	Metrics     DecisionCounter
	WaitTimeout time.Duration
}

// RequireRoles guards a page: it waits for the session, then renders when
// the user holds one of required (super admins always pass), redirects to
// the login page when nobody is logged in and to the not-authorized page
// otherwise. A session still loading at the timeout gets a 503.
func RequireRoles(cfg GateConfig, required ...constants.Role) fiber.Handler {
	return guard(cfg, required, gate.Roles(required...))
}

// RequireLogin guards a page every signed-in user may see.
func RequireLogin(cfg GateConfig) fiber.Handler {
	return guard(cfg, nil, gate.SignedIn())
}

func guard(cfg GateConfig, required []constants.Role, rule gate.Rule) fiber.Handler {
	wait := cfg.WaitTimeout
	if wait <= 0 {
		wait = defaultWaitTimeout
	}
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), wait)
		defer cancel()
		snap, err := GetState(c).WaitReady(ctx)
		d := gate.Pending
		if err == nil {
			d = rule(snap)
		}
		if cfg.Metrics != nil {
			cfg.Metrics.GateDecided(d.String())
		}

		switch {
		case d == gate.Allow:
			c.Locals(SnapshotLocal, snap)
			return c.Next()
		case d.Redirects():
			log.Info().Str("trace_id", GetTraceID(c)).Str("path", c.Path()).
				Str("decision", d.String()).Msg("gate: redirecting")
			if cfg.Audit != nil {
				if err := cfg.Audit.Record(c.UserContext(), GetSessionID(c), c.Path(), d, snap, required); err != nil {
					log.Warn().Err(err).Str("path", c.Path()).Msg("gate: record access event")
				}
			}
			return c.Redirect(d.Target(), fiber.StatusFound)
		default:
			log.Warn().Err(err).Str("trace_id", GetTraceID(c)).Str("path", c.Path()).Msg("gate: session still loading")
			return response.Loading(c)
		}
	}
}
