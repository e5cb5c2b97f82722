package app

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/xid"

	"nbrender/internal/metrics"
	u "nbrender/internal/utils"
)

// RegisterMiddleware attaches global middleware to the app
func RegisterMiddleware(app *fiber.App, rec *metrics.Recorder) {
	// Outside recover so recovered panics are counted as 500s.
	if rec != nil {
		app.Use(metricsMiddleware(rec))
	}

	// Panics become a 500 with a detail body like any other failure.
	app.Use(recover.New())

	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint:  "/ops/health",
		ReadinessEndpoint: "/ops/ready",
	}))

	app.Use(func(c *fiber.Ctx) error {
		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" {
			requestID = c.GetRespHeader(fiber.HeaderXRequestID)
		}
		u.Info("Incoming request", "method", c.Method(), "path", c.Path(), "request_id", requestID)
		return c.Next()
	})
}

// metricsMiddleware records request counts and latency per route pattern.
func metricsMiddleware(rec *metrics.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		rec.IncreaseActiveRequests()
		defer rec.DecreaseActiveRequests()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				status = e.Code
			}
		}
		rec.ObserveRequest(c.Route().Path, strconv.Itoa(status), time.Since(start))
		return err
	}
}
