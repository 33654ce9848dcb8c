package middleware

import (
	"context"
	"time"

	"edustack-web/internal/application/permissions"
	"edustack-web/internal/application/session"
	"edustack-web/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const (
	SnapshotLocal      = "session_snapshot"
	defaultWaitTimeout = 5 * time.Second
)

// RequireAuth waits for the session and answers 401 when nobody is logged
// in. API routes use it; pages use RequireRoles or RequireLogin.
func RequireAuth(wait time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := waitReady(c, wait)
		if err != nil {
			return response.Loading(c)
		}
		if !snap.Authenticated {
			return response.Unauthorized(c, "Not authenticated")
		}
		c.Locals(SnapshotLocal, snap)
		return c.Next()
	}
}

// RequireSuperAdmin is RequireAuth plus a 403 for everyone but super admins.
func RequireSuperAdmin(wait time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := waitReady(c, wait)
		if err != nil {
			return response.Loading(c)
		}
		if !snap.Authenticated {
			return response.Unauthorized(c, "Not authenticated")
		}
		if !permissions.New(snap).IsSuperAdmin() {
			return response.Forbidden(c, "User is Forbidden from performing this action")
		}
		c.Locals(SnapshotLocal, snap)
		return c.Next()
	}
}

// GetSnapshot returns the snapshot a guard admitted the request with, or
// the current one when no guard ran.
func GetSnapshot(c *fiber.Ctx) session.Snapshot {
	if snap, ok := c.Locals(SnapshotLocal).(session.Snapshot); ok {
		return snap
	}
	return GetState(c).Snapshot()
}

func waitReady(c *fiber.Ctx, wait time.Duration) (session.Snapshot, error) {
	if wait <= 0 {
		wait = defaultWaitTimeout
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), wait)
	defer cancel()
	snap, err := GetState(c).WaitReady(ctx)
	if err != nil {
		log.Warn().Err(err).Str("trace_id", GetTraceID(c)).Str("path", c.Path()).Msg("session not ready before timeout")
	}
	return snap, err
}
