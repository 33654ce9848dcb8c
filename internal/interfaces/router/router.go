package router

import (
	"errors"
	"net/http"

	auditsvc "edustack-web/internal/application/audit"
	healthsvc "edustack-web/internal/application/health"
	navsvc "edustack-web/internal/application/navigation"
	"edustack-web/internal/application/session"
	"edustack-web/internal/config"
	"edustack-web/internal/infrastructure/authapi"
	"edustack-web/internal/infrastructure/database"
	"edustack-web/internal/infrastructure/identitystore"
	"edustack-web/internal/infrastructure/metrics"
	audithandler "edustack-web/internal/interfaces/handlers/audit"
	authhandler "edustack-web/internal/interfaces/handlers/auth"
	healthhandler "edustack-web/internal/interfaces/handlers/health"
	navhandler "edustack-web/internal/interfaces/handlers/navigation"
	pagehandler "edustack-web/internal/interfaces/handlers/pages"
	"edustack-web/internal/middleware"
	"edustack-web/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ErrRedisRequired is returned when REDIS_URL is missing.
var ErrRedisRequired = errors.New("REDIS_URL is required")

// CreateApp wires the web service: sessions, page gates, auth endpoints and
// health. The database is optional and only backs the access audit log.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil, nil, ErrRedisRequired
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	rdb := redis.NewClient(opt)

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
	}

	app := Build(cfg, rdb, db)
	return app, db, rdb, nil
}

// Build assembles the Fiber app over already-open connections.
func Build(cfg *config.Config, rdb *redis.Client, db *gorm.DB) *fiber.App {
	api := &authapi.Client{
		BaseURL: cfg.AuthAPIBaseURL,
		HTTP:    &http.Client{Timeout: cfg.AuthAPITimeout},
	}

	var registry *session.Registry
	m := metrics.NewDefault(func() float64 {
		if registry == nil {
			return 0
		}
		return float64(registry.Len())
	})
	registry = session.NewRegistry(session.RegistryConfig{
		Size:     cfg.SessionCacheSize,
		TTL:      cfg.SessionTTL,
		Stores:   identitystore.Factory(rdb, cfg.SessionTTL),
		Verifier: api,
		Observer: m,
	})

	var recorder auditsvc.Recorder = auditsvc.Nop{}
	var gormRecorder *auditsvc.GormRecorder
	if db != nil {
		gormRecorder = &auditsvc.GormRecorder{DB: db}
		recorder = gormRecorder
	} else {
		log.Info().Msg("DATABASE_URL not set, access audit log disabled")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.NewErrorHandler(rdb),
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.HealthMarker(rdb))

	sessionCfg := middleware.SessionConfig{
		Registry:          registry,
		MaxAge:            cfg.SessionTTL,
		InitTimeout:       cfg.AuthAPITimeout,
		RetryBackoff:      cfg.SessionRetryBackoff,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.IsProduction(),
	}
	app.Use(middleware.Session(sessionCfg))

	// Health and metrics
	hh := &healthhandler.Handlers{
		Deps: healthsvc.Deps{
			Rdb:          rdb,
			AuthAPI:      api,
			LiveSessions: registry.Len,
		},
		HealthAdminKey: cfg.HealthAdminKey,
	}
	if db != nil {
		hh.Deps.DB = &database.Pinger{DB: db}
	}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/metrics", m.Handler())

	wait := cfg.GateWaitTimeout
	requireAuth := middleware.RequireAuth(wait)

	// Auth API
	ah := &authhandler.Handlers{API: api, Registry: registry, Rdb: rdb, Config: sessionCfg}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/login", ah.Login)
	authGroup.Get("/me", requireAuth, ah.Me)
	authGroup.Patch("/select-school", requireAuth, ah.SelectSchool)
	authGroup.Delete("/logout", ah.Logout)
	authGroup.Delete("/sessions", requireAuth, ah.LogoutEverywhere)

	menus := navsvc.DefaultMenus
	nh := &navhandler.Handlers{Menus: menus}
	ph := &pagehandler.Handlers{Menus: menus}
	app.Get("/api/v1/navigation", requireAuth, nh.Get)
	app.Get("/api/v1/gate/watch", ph.Watch)

	if gormRecorder != nil {
		auh := &audithandler.Handlers{Events: gormRecorder}
		app.Get("/api/v1/audit/access-events", middleware.RequireSuperAdmin(wait), auh.List)
	}

	// Pages
	app.Get(constants.LoginRoute, ph.Login)
	app.Get(constants.NotAuthorizedRoute, ph.NotAuthorized)

	gateCfg := middleware.GateConfig{Audit: recorder, Metrics: m, WaitTimeout: wait}
	for _, link := range menus.Pages() {
		guard := middleware.RequireRoles(gateCfg, link.Required()...)
		if link.AllAuthenticated {
			guard = middleware.RequireLogin(gateCfg)
		}
		app.Get(link.Href, guard, ph.Page(link))
	}
	app.Get("/", middleware.RequireLogin(gateCfg), ph.Home)

	return app
}

// Handler adapts the Fiber app to net/http (serverless entry points).
func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
