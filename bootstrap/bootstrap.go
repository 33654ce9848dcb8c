package bootstrap

import (
	"edustack-web/internal/config"
	"edustack-web/internal/interfaces/router"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for serverless entry points (they cannot import
// internal packages from outside the module tree, so they go through here).
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	app, _, _, err := router.CreateApp(cfg)
	return app, err
}
