package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	fiberzap "github.com/gofiber/contrib/v3/zap"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seuros/funnel/internal/config"
	"github.com/seuros/funnel/internal/handlers"
	"github.com/seuros/funnel/internal/logging"
	"github.com/seuros/funnel/internal/middleware"
	"github.com/seuros/funnel/internal/relay"
)

const shutdownTimeout = 10 * time.Second

var (
	servePort        string
	serveTrackingURL string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve landing pages and the tracking relay",
	Long: `Start the HTTP server.

Routes:
  GET  /, /:slug              landing page with the default phone number
  POST /api/track             relay a tracking event to the pixel API
  GET  /api/track/pixel.gif   relay an event from query parameters
  GET  /healthz               liveness probe

The pixel ID is read from BIGO_PIXEL_ID on every request.

Examples:
  funnel serve
  funnel serve --port 8080`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// listen starts the server (can be replaced in tests)
var listen = func(app *fiber.App, addr string) error {
	return app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func runServe(ctx context.Context) error {
	cfg, err := config.LoadWithOverrides(servePort, serveTrackingURL)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logging.SetLevel(cfg.LogLevel)
	log := logging.L()
	if config.PixelID() == "" {
		log.Warn(config.PixelIDEnv + " is not set; tracking events will be rejected until it is")
	}

	tracker := relay.New(relay.Config{
		Endpoint: cfg.TrackingAPIURL,
		PixelID:  config.PixelID,
	})
	app := newServer(cfg, tracker)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	addr := ":" + cfg.Port
	go func() {
		log.Info("server listening",
			zap.String("addr", addr),
			zap.String("tracking_api", cfg.TrackingAPIURL),
		)
		errCh <- listen(app, addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// newRequestID generates ids for requests that arrive without one (can be
// replaced in tests)
var newRequestID = uuid.NewString

// accessLogFields are the fiberzap fields logged per request.
var accessLogFields = []string{"requestId", "ip", "latency", "status", "method", "url"}

// newServer wires routes and middleware.
func newServer(cfg *config.Config, tracker handlers.Tracker) *fiber.App {
	app := fiber.New(createFiberConfig("funnel", handlers.NewViews()))

	app.Use(recover.New(recover.Config{
		EnableStackTrace:  true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			logging.L().Error("handler panicked",
				zap.String("path", c.Path()),
				zap.String("request_id", requestid.FromContext(c)),
				zap.Any("panic", e),
				zap.Stack("stack"),
			)
		},
	}))
	app.Use(requestid.New(requestid.Config{
		Generator: func() string { return newRequestID() },
	}))
	app.Use(fiberzap.New(fiberzap.Config{
		Logger: logging.L(),
		Fields: accessLogFields,
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/healthz"
		},
	}))
	app.Use(middleware.InjectScript(cfg.InjectScriptPaths))

	app.Get("/healthz", handlers.HandleHealth)
	app.Post(relay.TrackPath, middleware.SameOrigin(cfg.TrustedOrigins), handlers.HandleTrack(tracker))
	app.Get(relay.TrackPath+"/pixel.gif", handlers.HandlePixel(tracker))

	landing := handlers.HandleLanding(handlers.Landing{
		DefaultNumber:   cfg.DefaultPhoneNumber,
		NumberPoolTag:   cfg.NumberPoolTag,
		Poll:            cfg.Poll,
		MinCallDuration: cfg.MinCallDuration,
	})
	app.Get("/", landing)
	app.Get("/:slug", landing)

	return app
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Port to listen on (overrides PORT and config file)")
	serveCmd.Flags().StringVar(&serveTrackingURL, "tracking-url", "", "Pixel API endpoint (overrides TRACKING_API_URL)")

	RootCmd.AddCommand(serveCmd)
}
