package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"edustack-web/internal/config"
	"edustack-web/internal/domain"
	"edustack-web/internal/middleware"
	"edustack-web/internal/pkg/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const teacherBody = `{"success":true,"message":"ok","data":{
  "userData":{"id":"u1","email":"t@school.test","username":"tee"},
  "userSchools":[{"schoolId":"S1","role":"teacher","school":{"isActive":true}}],
  "token":"tok-1"}}`

const parentBody = `{"success":true,"message":"ok","data":{
  "userData":{"id":"p1","email":"p@home.test","username":"mum"},
  "userSchools":[{"schoolId":"S1","role":"PARENT","school":{"isActive":true}}],
  "token":"tok-2"}}`

type testApp struct {
	app *fiber.App
	db  *gorm.DB
}

func setupApp(t *testing.T) *testApp {
	return setupAppAs(t, teacherBody)
}

func setupAppAs(t *testing.T, identityBody string) *testApp {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login", "/api/auth/me":
			_, _ = w.Write([]byte(identityBody))
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.AccessEvent{}))
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
		api.Close()
	})

	cfg := &config.Config{
		Env:              "test",
		AuthAPIBaseURL:   api.URL + "/api",
		AuthAPITimeout:   2 * time.Second,
		SessionTTL:       time.Hour,
		SessionCacheSize: 100,
		GateWaitTimeout:  2 * time.Second,
		HealthAdminKey:   "k",
	}
	return &testApp{app: Build(cfg, rdb, db), db: db}
}

func (a *testApp) do(t *testing.T, method, path, sid string, body interface{}) *http.Response {
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sid})
	}
	resp, err := a.app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func (a *testApp) login(t *testing.T) string {
	resp := a.do(t, "POST", "/api/v1/auth/login", "", map[string]string{"emailOrUsername": "tee", "password": "pw"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	for _, ck := range resp.Cookies() {
		if ck.Name == middleware.SessionCookieName {
			return ck.Value
		}
	}
	t.Fatal("no session cookie")
	return ""
}

func TestCreateApp_RequiresRedis(t *testing.T) {
	_, _, _, err := CreateApp(&config.Config{})
	assert.ErrorIs(t, err, ErrRedisRequired)
}

func TestPages_AnonymousGoesToLogin(t *testing.T) {
	a := setupApp(t)
	resp := a.do(t, "GET", constants.ExamsManage, "", nil)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, constants.LoginRoute, resp.Header.Get("Location"))

	resp = a.do(t, "GET", constants.LoginRoute, "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestPages_TeacherFlow(t *testing.T) {
	a := setupApp(t)
	sid := a.login(t)

	resp := a.do(t, "GET", constants.ExamsManage, sid, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = a.do(t, "GET", constants.Profile, sid, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = a.do(t, "GET", constants.FinanceDashboard, sid, nil)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, constants.NotAuthorizedRoute, resp.Header.Get("Location"))

	var events []domain.AccessEvent
	require.NoError(t, a.db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, constants.FinanceDashboard, events[0].Path)
	assert.Equal(t, "deny", events[0].Decision)

	resp = a.do(t, "GET", "/", sid, nil)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.NotEqual(t, constants.NotAuthorizedRoute, resp.Header.Get("Location"))

	resp = a.do(t, "GET", "/api/v1/audit/access-events", sid, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestMetrics_CountsDecisions(t *testing.T) {
	a := setupApp(t)
	a.do(t, "GET", constants.FinanceDashboard, "", nil)

	resp := a.do(t, "GET", "/metrics", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), `edustack_gate_decisions_total{decision="login"} 1`))
}

func TestNavigation_RequiresSession(t *testing.T) {
	a := setupApp(t)
	resp := a.do(t, "GET", "/api/v1/navigation", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	sid := a.login(t)
	resp = a.do(t, "GET", "/api/v1/navigation", sid, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestHealthJSON(t *testing.T) {
	a := setupApp(t)
	resp := a.do(t, "GET", "/health/json", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestPages_ParentReachesSelfService(t *testing.T) {
	a := setupAppAs(t, parentBody)
	sid := a.login(t)

	resp := a.do(t, "GET", constants.StudentInvoices, sid, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = a.do(t, "GET", constants.FinanceInvoices, sid, nil)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, constants.NotAuthorizedRoute, resp.Header.Get("Location"))

	resp = a.do(t, "GET", "/", sid, nil)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, constants.StudentProfile, resp.Header.Get("Location"))
}

func TestPages_TeacherDeniedSelfService(t *testing.T) {
	a := setupApp(t)
	sid := a.login(t)

	resp := a.do(t, "GET", constants.StudentInvoices, sid, nil)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, constants.NotAuthorizedRoute, resp.Header.Get("Location"))
}

func TestGateWatch_Mounted(t *testing.T) {
	a := setupApp(t)
	resp := a.do(t, "GET", "/api/v1/gate/watch?path="+constants.StudentInvoices, "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "event: decision\ndata: login\n\nevent: redirect\ndata: /login\n\n", string(body))

	resp = a.do(t, "GET", "/api/v1/gate/watch?path=/nowhere", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
