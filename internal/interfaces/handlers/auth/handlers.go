package auth

import (
	"context"
	"errors"
	"strings"

	"edustack-web/internal/application/permissions"
	"edustack-web/internal/application/session"
	"edustack-web/internal/infrastructure/authapi"
	"edustack-web/internal/infrastructure/identitystore"
	"edustack-web/internal/middleware"
	"edustack-web/internal/pkg/response"
	"edustack-web/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Authenticator exchanges credentials for an identity (the REST API).
type Authenticator interface {
	Login(ctx context.Context, emailOrUsername, password string) (*session.Identity, error)
}

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	API      Authenticator
	Registry *session.Registry
	Rdb      *redis.Client
	Config   middleware.SessionConfig
}

// LoginRequest accepts either field name for the login handle.
type LoginRequest struct {
	EmailOrUsername string `json:"emailOrUsername"`
	Email           string `json:"email"`
	Password        string `json:"password"`
}

// SelectSchoolRequest body for PATCH /select-school.
type SelectSchoolRequest struct {
	SchoolID string `json:"schoolId"`
}

// SessionView is the client-facing shape of a session snapshot.
type SessionView struct {
	Authenticated    bool                 `json:"authenticated"`
	User             *session.User        `json:"user"`
	Memberships      []session.Membership `json:"memberships"`
	SelectedSchoolID string               `json:"selectedSchoolId"`
	CurrentRole      string               `json:"currentRole"`
	IsSuperAdmin     bool                 `json:"isSuperAdmin"`
	IsStaff          bool                 `json:"isStaff"`
}

// NewSessionView derives the view and role flags from snap.
func NewSessionView(snap session.Snapshot) SessionView {
	ev := permissions.New(snap)
	v := SessionView{
		Authenticated:    snap.Authenticated,
		User:             snap.User,
		Memberships:      snap.Memberships,
		SelectedSchoolID: snap.SelectedSchoolID,
		IsSuperAdmin:     ev.IsSuperAdmin(),
		IsStaff:          ev.IsStaff(),
	}
	if v.Memberships == nil {
		v.Memberships = []session.Membership{}
	}
	if role, ok := ev.CurrentRole(); ok {
		v.CurrentRole = role.String()
	}
	return v
}

// Login POST /api/v1/auth/login: authenticate against the API, start a
// fresh session, set the cookie.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Email or username and password are required")
	}
	handle := strings.TrimSpace(req.EmailOrUsername)
	if handle == "" {
		handle = strings.TrimSpace(req.Email)
	}
	if handle == "" || req.Password == "" {
		return response.BadRequest(c, "Email or username and password are required")
	}
	if !validation.IsValidLoginHandle(handle) {
		return response.BadRequest(c, "Invalid email or username")
	}

	id, err := h.API.Login(c.UserContext(), handle, req.Password)
	if err != nil {
		return loginError(c, err)
	}

	// Drop whatever session the browser had before.
	if oldID := middleware.GetSessionID(c); oldID != "" {
		if err := middleware.GetState(c).Clear(c.UserContext()); err != nil {
			log.Warn().Err(err).Msg("auth/login: clear previous session")
		}
		h.Registry.Remove(oldID)
	}

	sessionID, st := middleware.RegenerateSessionID(c, h.Registry)
	if err := st.Establish(c.UserContext(), *id); err != nil {
		h.Registry.Remove(sessionID)
		if errors.Is(err, session.ErrMalformedIdentity) {
			return response.Error(c, "Auth service returned an invalid identity", fiber.StatusBadGateway, nil)
		}
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = sessionID
	c.Cookie(&cookie)

	log.Info().Str("user_id", id.User.ID).Int("memberships", len(id.Memberships)).Msg("auth/login: success")
	return response.Success(c, "Login successful", fiber.Map{"session": NewSessionView(st.Snapshot())}, nil)
}

func loginError(c *fiber.Ctx, err error) error {
	var apiErr *authapi.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		return response.Unauthorized(c, apiErr.Message)
	case errors.Is(err, session.ErrMalformedIdentity):
		log.Error().Err(err).Msg("auth/login: malformed identity from auth service")
		return response.Error(c, "Auth service returned an invalid identity", fiber.StatusBadGateway, nil)
	default:
		log.Error().Err(err).Msg("auth/login: auth service unavailable")
		return response.Error(c, "Auth service unavailable", fiber.StatusBadGateway, nil)
	}
}

// Me GET /api/v1/auth/me: the current session. Mounted behind RequireAuth.
func (h *Handlers) Me(c *fiber.Ctx) error {
	return response.Success(c, "Authenticated", fiber.Map{"session": NewSessionView(middleware.GetSnapshot(c))}, nil)
}

// SelectSchool PATCH /api/v1/auth/select-school: switch the active tenant.
// Unknown ids leave the selection unchanged and answer 400.
func (h *Handlers) SelectSchool(c *fiber.Ctx) error {
	var req SelectSchoolRequest
	if err := c.BodyParser(&req); err != nil || req.SchoolID == "" {
		return response.BadRequest(c, "schoolId is required")
	}
	if !validation.IsValidSchoolID(req.SchoolID) {
		return response.BadRequest(c, "Invalid schoolId")
	}
	st := middleware.GetState(c)
	if !st.SetSelectedSchool(c.UserContext(), req.SchoolID) {
		return response.BadRequest(c, "School is not one of your memberships")
	}
	return response.Success(c, "School selected", fiber.Map{"session": NewSessionView(st.Snapshot())}, nil)
}

// Logout DELETE /api/v1/auth/logout: clear the session and its cookie.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	sessionID := middleware.GetSessionID(c)
	if sessionID != "" {
		if err := middleware.GetState(c).Clear(c.UserContext()); err != nil {
			log.Warn().Err(err).Msg("auth/logout: erase persisted identity")
		}
		h.Registry.Remove(sessionID)
	}
	h.clearCookie(c)
	return response.Success(c, "Logged out successfully", nil, nil)
}

// LogoutEverywhere DELETE /api/v1/auth/sessions: end every session of the
// current user. Mounted behind RequireAuth.
func (h *Handlers) LogoutEverywhere(c *fiber.Ctx) error {
	snap := middleware.GetSnapshot(c)
	if snap.User == nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	removed, err := identitystore.DestroyUserSessions(c.UserContext(), h.Rdb, snap.User.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", snap.User.ID).Msg("auth/sessions: destroy user sessions")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	for _, sid := range removed {
		h.Registry.Remove(sid)
	}
	current := middleware.GetSessionID(c)
	if current != "" {
		_ = middleware.GetState(c).Clear(c.UserContext())
		h.Registry.Remove(current)
	}
	h.clearCookie(c)
	return response.Success(c, "All sessions ended", fiber.Map{"sessions": len(removed)}, nil)
}

func (h *Handlers) clearCookie(c *fiber.Ctx) {
	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = ""
	cookie.MaxAge = -1
	c.Cookie(&cookie)
}
