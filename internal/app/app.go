package app

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"nbrender/internal/domain"
	"nbrender/internal/handlers"
	"nbrender/internal/metrics"
	u "nbrender/internal/utils"
)

// Deps are the collaborators the HTTP app is built from.
type Deps struct {
	Config   u.Config
	Renderer handlers.Renderer
	// Metrics may be nil, which disables request metrics and the metrics route.
	Metrics *metrics.Recorder
}

// SetupApp creates and configures a new Fiber app instance
func SetupApp(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:               deps.Config.Server.Prefork,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := err.Error()

			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
				msg = e.Message
			}

			stage, _ := domain.StageOf(err)
			u.Warn("Request failed",
				"path", c.Path(),
				"status", code,
				"stage", string(stage),
				"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
				"message", msg,
			)

			return c.Status(code).JSON(domain.ErrorResponse{Detail: msg})
		},
	})

	RegisterMiddleware(app, deps.Metrics)
	RegisterRoutes(app, deps)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// RegisterRoutes mounts all route handlers to the app
func RegisterRoutes(app *fiber.App, deps Deps) {
	h := handlers.NewRenderHandler(deps.Renderer)

	app.Post("/render", h.HandleRender)
	if deps.Config.PDF.Enabled {
		app.Post("/render/pdf", h.HandleRenderPDF)
	}

	if deps.Config.Metrics.Enabled && deps.Metrics != nil {
		app.Get(deps.Config.Metrics.Path, adaptor.HTTPHandler(deps.Metrics.Handler()))
	}
	app.Get("/monitor", monitor.New())
}
