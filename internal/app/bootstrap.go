package app

import (
	"context"
	"fmt"
	"strings"

	"job-sync/internal/config"
	"job-sync/internal/delivery/http/handler"
	"job-sync/internal/delivery/http/middleware"
	"job-sync/internal/delivery/http/routes"
	"job-sync/internal/pkg/logger"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type App struct {
	Fiber     *fiber.App
	Container *Container
}

func New(c *Container) *App {
	f := fiber.New(fiber.Config{AppName: c.Config.App.AppName})

	registerGlobalMiddleware(f, c)
	registerRoutes(f, c)

	return &App{Fiber: f, Container: c}
}

// Bootstrap builds the container, applies migrations and recovers runs a
// previous process abandoned. The returned cleanup closes every dependency.
func Bootstrap(ctx context.Context, cfg config.Config, log logger.Logger) (*App, func() error, error) {
	c, err := NewContainer(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if err := c.Migrate(ctx); err != nil {
		_ = c.Close()
		return nil, nil, err
	}
	c.RecoverAbandonedRuns(ctx)

	a := New(c)
	c.Log.Info("http app ready",
		zap.String("env", cfg.App.Environment),
		zap.Strings("sources", c.Sources.Names()),
		zap.Bool("redis", c.Redis.Available()),
	)
	return a, c.Close, nil
}

func registerGlobalMiddleware(app *fiber.App, c *Container) {
	if app == nil {
		return
	}

	accessMw := middleware.NewAccessLogMiddleware(c.Log, c.Metrics)
	app.Use(accessMw.Middleware())

	errMw := middleware.NewErrorMiddleware(c.Log)
	app.Use(errMw.Middleware())
}

func registerRoutes(app *fiber.App, c *Container) {
	if app == nil {
		return
	}

	h := routes.Handlers{
		Health: handler.NewHealthHandler(c.DB),
		Jobs:   handler.NewJobsHandler(c.JobList),
		Sync:   handler.NewSyncHandler(c.SyncTrigger, c.SyncStatus),
		Admin:  handler.NewAdminHandler(c.JobAdmin),
	}
	auth := middleware.NewTriggerAuthMiddleware(c.Config.Trigger.Secret, c.JWT)
	metrics := adaptor.HTTPHandler(promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}))

	routes.NewRegistry(h, auth, metrics).Register(app)
}

func ListenAddr(port string) (string, error) {
	p := strings.TrimSpace(port)
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	if strings.HasPrefix(p, ":") {
		return p, nil
	}
	return ":" + p, nil
}
