package admin

import (
	"errors"
	"io"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"entity-admin/internal/auth"
	"entity-admin/internal/config"
	"entity-admin/internal/engine"
	"entity-admin/internal/logger"
	"entity-admin/internal/metrics"
)

// Options assembles the admin application.
type Options struct {
	Config  *config.Config
	Service *engine.Service
	Logger  *zap.Logger
	// AccessLog receives one line per request; nil means stdout.
	AccessLog io.Writer
}

// NewApp builds the Fiber application serving the admin API under the
// configured path prefix, plus /health and /metrics.
func NewApp(opts Options) *fiber.App {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	accessLog := opts.AccessLog
	if accessLog == nil {
		accessLog = os.Stdout
	}

	app := fiber.New(fiber.Config{
		AppName:               "entity-admin",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
		BodyLimit:             bodyLimit(cfg.Storage.MaxFileSize),
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
		Output: accessLog,
	}))
	app.Use(requestContext(log))
	if cfg.Metrics.Enabled {
		metrics.Register()
		app.Use(countRequests)
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group(cfg.Admin.PathPrefix)
	secured := api
	if cfg.Auth.Enabled {
		// Login is registered before the middleware and never reaches it.
		auth.RegisterAuthRoutes(api, auth.NewAuthHandler(cfg.Auth, log))
		secured = api.Group("", auth.AuthMiddleware(cfg.Auth.JWTSecret), auth.RequireAdmin())
	}

	engine.RegisterRecordRoutes(secured, engine.NewHandler(opts.Service))
	RegisterMetadataRoutes(secured, NewHandler(opts.Service))
	return app
}

// requestContext tags each request with an id and puts a request-scoped
// logger into the user context seen by the service and store.
func requestContext(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, id)
		reqLog := log.With(zap.String("request_id", id))
		c.SetUserContext(logger.ContextWithLogger(c.UserContext(), reqLog))
		return c.Next()
	}
}

func countRequests(c *fiber.Ctx) error {
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		status = engine.AsAppError(err).Status
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
	}
	metrics.HTTPRequestsTotal.WithLabelValues(c.Method(), c.Route().Path, strconv.Itoa(status)).Inc()
	return err
}

func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if appErr := engine.AsAppError(err); appErr.Status >= 500 {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}
		return engine.ErrorHandler(c, err)
	}
}

// bodyLimit leaves room for multipart framing around the largest upload.
func bodyLimit(maxFile int64) int {
	const overhead = 1 << 20
	if maxFile <= 0 {
		return fiber.DefaultBodyLimit
	}
	return int(maxFile) + overhead
}
