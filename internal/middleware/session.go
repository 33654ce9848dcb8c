package middleware

import (
	"context"
	"time"

	"edustack-web/internal/application/session"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionConfig configures the session middleware and its cookie.
type SessionConfig struct {
	Registry          *session.Registry
	MaxAge            time.Duration
	InitTimeout       time.Duration
	RetryBackoff      time.Duration
	AllowCrossSiteDev bool
	IsProduction      bool
}

const (
	SessionCookieName = "edustack.sid"
	sessionIDLocal    = "session_id"
	sessionStateLocal = "session_state"
	defaultMaxAge     = 7 * 24 * time.Hour
	defaultBackoff    = 5 * time.Second
)

// Session attaches the browser session's State to the request. A State
// seen for the first time starts initializing in the background; gates
// and handlers wait for it to become Ready. A State whose last
// initialization failed transiently (auth API or Redis unreachable) is
// initialized again once RetryBackoff has passed. Requests without a
// cookie get an anonymous State.
func Session(cfg SessionConfig) fiber.Handler {
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return func(c *fiber.Ctx) error {
		sessionID := c.Cookies(SessionCookieName)
		if sessionID == "" || cfg.Registry == nil {
			setSession(c, "", session.NewAnonymous())
			return c.Next()
		}
		st := cfg.Registry.Get(sessionID)
		switch {
		case st.Phase() == session.Uninitialized:
			go initialize(cfg, sessionID, st)
		case st.Retry(backoff):
			log.Info().Str("session_id_prefix", truncate(sessionID, 8)).Msg("session: retrying initialization")
			go initialize(cfg, sessionID, st)
		}
		setSession(c, sessionID, st)
		return c.Next()
	}
}

func initialize(cfg SessionConfig, sessionID string, st *session.State) {
	timeout := cfg.InitTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := st.Initialize(ctx); err != nil {
		log.Error().Err(err).Str("session_id_prefix", truncate(sessionID, 8)).Msg("session: initialize failed")
	}
}

func setSession(c *fiber.Ctx, sessionID string, st *session.State) {
	c.Locals(sessionIDLocal, sessionID)
	c.Locals(sessionStateLocal, st)
}

// GetState returns the request's session State. It is never nil once the
// Session middleware ran.
func GetState(c *fiber.Ctx) *session.State {
	if st, ok := c.Locals(sessionStateLocal).(*session.State); ok {
		return st
	}
	return session.NewAnonymous()
}

// GetSessionID returns the current session id ("" for anonymous requests).
func GetSessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals(sessionIDLocal).(string)
	return sid
}

// RegenerateSessionID binds a fresh session id and State from reg to the
// request. The caller sets the cookie.
func RegenerateSessionID(c *fiber.Ctx, reg *session.Registry) (string, *session.State) {
	newID := uuid.New().String()
	st := reg.Get(newID)
	setSession(c, newID, st)
	return newID, st
}

// SessionCookieConfig returns the session cookie options (value left empty).
func SessionCookieConfig(cfg SessionConfig) fiber.Cookie {
	sameSite := fiber.CookieSameSiteLaxMode
	if cfg.AllowCrossSiteDev {
		sameSite = fiber.CookieSameSiteNoneMode
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	return fiber.Cookie{
		Name:     SessionCookieName,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HTTPOnly: true,
		Secure:   cfg.IsProduction || cfg.AllowCrossSiteDev,
		SameSite: sameSite,
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
