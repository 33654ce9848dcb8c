package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"edustack-web/internal/application/gate"
	"edustack-web/internal/application/session"
	"edustack-web/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu sync.Mutex
	id *session.Identity
}

func (m *memStore) Load(context.Context) (*session.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id, nil
}

func (m *memStore) Save(_ context.Context, id *session.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *id
	m.id = &cp
	return nil
}

func (m *memStore) Erase(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = nil
	return nil
}

// funcVerifier delegates to fn.
type funcVerifier func(ctx context.Context, token string) (*session.Identity, error)

func (f funcVerifier) Verify(ctx context.Context, token string) (*session.Identity, error) {
	return f(ctx, token)
}

type recordedEvent struct {
	sessionID string
	path      string
	decision  gate.Decision
	required  []constants.Role
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *fakeRecorder) Record(_ context.Context, sessionID, path string, d gate.Decision, _ session.Snapshot, required []constants.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{sessionID, path, d, required})
	return nil
}

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (f *fakeCounter) GateDecided(d string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	f.counts[d]++
}

type fixture struct {
	reg      *session.Registry
	stores   map[string]*memStore
	recorder *fakeRecorder
	counter  *fakeCounter
	app      *fiber.App
}

func newFixture(t *testing.T, verifier session.Verifier) *fixture {
	f := &fixture{
		stores:   map[string]*memStore{},
		recorder: &fakeRecorder{},
		counter:  &fakeCounter{},
	}
	if verifier == nil {
		verifier = funcVerifier(func(context.Context, string) (*session.Identity, error) {
			return nil, session.ErrUnauthenticated
		})
	}
	var mu sync.Mutex
	f.reg = session.NewRegistry(session.RegistryConfig{
		Size: 16,
		Stores: func(sid string) session.Store {
			mu.Lock()
			defer mu.Unlock()
			if s, ok := f.stores[sid]; ok {
				return s
			}
			s := &memStore{}
			f.stores[sid] = s
			return s
		},
		Verifier: verifier,
	})

	cfg := GateConfig{Audit: f.recorder, Metrics: f.counter, WaitTimeout: time.Second}
	app := fiber.New()
	app.Use(Tracing())
	app.Use(Session(SessionConfig{Registry: f.reg, RetryBackoff: time.Nanosecond}))
	app.Get("/admin", RequireRoles(cfg, constants.Admin), ok)
	app.Get("/teach", RequireRoles(cfg, constants.Teacher, constants.Admin), ok)
	app.Get("/profile", RequireLogin(cfg), ok)
	app.Get("/api/me", RequireAuth(time.Second), ok)
	app.Get("/api/audit", RequireSuperAdmin(time.Second), ok)
	f.app = app
	return f
}

func ok(c *fiber.Ctx) error {
	snap := GetSnapshot(c)
	return c.JSON(fiber.Map{"authenticated": snap.Authenticated})
}

func (f *fixture) login(t *testing.T, sid string, id session.Identity) {
	require.NoError(t, f.reg.Get(sid).Establish(context.Background(), id))
}

func (f *fixture) get(t *testing.T, path, sid string) (int, string) {
	req := httptest.NewRequest("GET", path, nil)
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sid})
	}
	resp, err := f.app.Test(req, 5000)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header.Get("Location")
}

func teacher() session.Identity {
	return session.Identity{
		Token:       "tok",
		User:        session.User{ID: "u1"},
		Memberships: []session.Membership{{SchoolID: "S1", Role: constants.Teacher, Active: true}},
	}
}

func TestRequireRoles_AnonymousRedirectsToLogin(t *testing.T) {
	f := newFixture(t, nil)
	status, loc := f.get(t, "/admin", "")
	assert.Equal(t, fiber.StatusFound, status)
	assert.Equal(t, constants.LoginRoute, loc)
	require.Len(t, f.recorder.events, 1)
	assert.Equal(t, gate.Login, f.recorder.events[0].decision)
	assert.Equal(t, 1, f.counter.counts["login"])
}

func TestRequireRoles_MissingRoleRedirectsToNotAuthorized(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t, "sid-1", teacher())

	status, loc := f.get(t, "/admin", "sid-1")
	assert.Equal(t, fiber.StatusFound, status)
	assert.Equal(t, constants.NotAuthorizedRoute, loc)
	require.Len(t, f.recorder.events, 1)
	ev := f.recorder.events[0]
	assert.Equal(t, "sid-1", ev.sessionID)
	assert.Equal(t, "/admin", ev.path)
	assert.Equal(t, []constants.Role{constants.Admin}, ev.required)
	assert.Equal(t, 1, f.counter.counts["deny"])
}

func TestRequireRoles_AnyRoleSuffices(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t, "sid-1", teacher())

	status, _ := f.get(t, "/teach", "sid-1")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, f.recorder.events)
	assert.Equal(t, 1, f.counter.counts["allow"])
}

func TestRequireRoles_SuperAdminBypass(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t, "sid-s", session.Identity{Token: "t", User: session.User{ID: "root", IsSuperAdmin: true}})

	status, _ := f.get(t, "/admin", "sid-s")
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = f.get(t, "/api/audit", "sid-s")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestRequireRoles_SessionStillLoading(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	f := newFixture(t, funcVerifier(func(ctx context.Context, _ string) (*session.Identity, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, context.Canceled
	}))
	f.stores["slow"] = &memStore{id: &session.Identity{Token: "tok", User: session.User{ID: "u1"}}}
	f.app = fiber.New()
	f.app.Use(Session(SessionConfig{Registry: f.reg}))
	f.app.Get("/admin", RequireRoles(GateConfig{Audit: f.recorder, Metrics: f.counter, WaitTimeout: 50 * time.Millisecond}, constants.Admin), ok)

	status, loc := f.get(t, "/admin", "slow")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Empty(t, loc)
	assert.Empty(t, f.recorder.events)
	assert.Equal(t, 1, f.counter.counts["pending"])
}

func TestSession_InitializesPersistedIdentity(t *testing.T) {
	id := teacher()
	f := newFixture(t, funcVerifier(func(context.Context, string) (*session.Identity, error) {
		return &id, nil
	}))
	f.stores["known"] = &memStore{id: &session.Identity{Token: "tok", User: session.User{ID: "u1"}}}

	status, _ := f.get(t, "/teach", "known")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, session.Ready, f.reg.Get("known").Phase())
}

func TestSession_RetriesAfterTransientVerifyFailure(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	id := teacher()
	f := newFixture(t, funcVerifier(func(context.Context, string) (*session.Identity, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil, errors.New("auth api: 502 Bad Gateway")
		}
		return &id, nil
	}))
	f.stores["flaky"] = &memStore{id: &session.Identity{Token: "tok", User: session.User{ID: "u1"}}}

	status, loc := f.get(t, "/teach", "flaky")
	assert.Equal(t, fiber.StatusFound, status)
	assert.Equal(t, constants.LoginRoute, loc)
	assert.Equal(t, session.OutcomeFailed, f.reg.Get("flaky").LastOutcome())
	assert.NotNil(t, f.stores["flaky"].id, "persisted identity survives the outage")

	status, _ = f.get(t, "/teach", "flaky")
	assert.Equal(t, fiber.StatusOK, status)
	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()
}

func TestSession_NoRetryAfterRejection(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	f := newFixture(t, funcVerifier(func(context.Context, string) (*session.Identity, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil, session.ErrUnauthenticated
	}))
	f.stores["gone"] = &memStore{id: &session.Identity{Token: "tok", User: session.User{ID: "u1"}}}

	for i := 0; i < 2; i++ {
		status, loc := f.get(t, "/teach", "gone")
		assert.Equal(t, fiber.StatusFound, status)
		assert.Equal(t, constants.LoginRoute, loc)
	}
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}

func TestRequireLogin(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t, "sid-1", session.Identity{Token: "t", User: session.User{ID: "u2"}})

	status, _ := f.get(t, "/profile", "sid-1")
	assert.Equal(t, fiber.StatusOK, status)
	status, loc := f.get(t, "/profile", "")
	assert.Equal(t, fiber.StatusFound, status)
	assert.Equal(t, constants.LoginRoute, loc)
}

func TestRequireAuth(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t, "sid-1", teacher())

	status, _ := f.get(t, "/api/me", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = f.get(t, "/api/me", "sid-1")
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = f.get(t, "/api/audit", "sid-1")
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestTracing_ReusesValidTraceID(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(GetTraceID(c)) })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-Id", "7c9e6679-7425-40de-944b-e07fc1f90ae7")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "7c9e6679-7425-40de-944b-e07fc1f90ae7", resp.Header.Get("X-Trace-Id"))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-Id", "not-a-uuid")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-uuid", resp.Header.Get("X-Trace-Id"))
}
