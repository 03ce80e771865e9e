package cli

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/seuros/funnel/internal/logging"
)

// createFiberConfig returns Fiber configuration.
func createFiberConfig(appName string, views fiber.Views) fiber.Config {
	return fiber.Config{
		AppName:      appName,
		Views:        views,
		ErrorHandler: errorHandler,
	}
}

// errorHandler answers unhandled errors with the relay's JSON envelope so
// callers never receive an HTML error page.
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		logging.L().Error("request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}
