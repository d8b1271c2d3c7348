// Package web serves the kiosk HTTP API: menu, session control, order
// state, and a websocket feed of live session events.
package web

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/cafevoz/cafevoz/internal/metrics"
	"github.com/cafevoz/cafevoz/pkg/menu"
	"github.com/cafevoz/cafevoz/pkg/session"
)

// Server is the kiosk API server.
type Server struct {
	app    *fiber.App
	logger *slog.Logger

	ctrl    *session.Controller
	catalog *menu.Catalog
	metrics *metrics.Metrics

	events *Hub
}

// NewServer wires the routes and subscribes the event hub to the
// controller. m may be nil to disable request counting.
func NewServer(ctrl *session.Controller, catalog *menu.Catalog, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		logger:  logger,
		ctrl:    ctrl,
		catalog: catalog,
		metrics: m,
		events:  newHub(logger),
	}

	ctrl.OnEvent(func(ev session.Event) {
		s.events.BroadcastJSON(ev)
	})

	app := fiber.New(fiber.Config{
		AppName:               "cafevoz",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	if m != nil {
		app.Use(func(c *fiber.Ctx) error {
			err := c.Next()
			m.RecordHTTPRequest(c.Method(), c.Path(), strconv.Itoa(c.Response().StatusCode()))
			return err
		})
	}

	app.Get("/healthz", s.handleHealth)

	api := app.Group("/api")
	api.Get("/menu", s.handleMenu)
	api.Get("/status", s.handleStatus)
	api.Post("/session/start", s.handleStart)
	api.Post("/session/stop", s.handleStop)
	api.Post("/order/clear", s.handleClearOrder)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	go s.events.Run(hubCtx)

	go func() {
		<-ctx.Done()
		s.app.Shutdown()
	}()

	s.logger.Info("api server started", "addr", addr)
	return s.app.Listen(addr)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Events exposes the broadcast hub.
func (s *Server) Events() *Hub {
	return s.events
}
