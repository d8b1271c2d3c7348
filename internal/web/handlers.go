package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/cafevoz/cafevoz/pkg/order"
	"github.com/cafevoz/cafevoz/pkg/session"
)

// statusResponse is the /api/status payload.
type statusResponse struct {
	State      session.State `json:"state"`
	Status     string        `json:"status"`
	Transcript string        `json:"transcript"`
	Order      []order.Line  `json:"order"`
	Total      float64       `json:"total"`
}

func (s *Server) snapshot() statusResponse {
	lines, total := s.ctrl.Order()
	if lines == nil {
		lines = []order.Line{}
	}
	return statusResponse{
		State:      s.ctrl.State(),
		Status:     s.ctrl.Status(),
		Transcript: s.ctrl.Transcript(),
		Order:      lines,
		Total:      total,
	}
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleMenu(c *fiber.Ctx) error {
	return c.JSON(s.catalog.ByCategory())
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.snapshot())
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	sess, err := s.ctrl.Start(c.Context())
	if err != nil {
		s.logger.Error("session start failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":  err.Error(),
			"status": s.ctrl.Status(),
		})
	}
	return c.JSON(fiber.Map{
		"session_id": sess.ID(),
		"state":      sess.State(),
		"status":     sess.Status(),
	})
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	// Stop blocks through parse and confirmation, so the response
	// carries the final order.
	s.ctrl.Stop()
	return c.JSON(s.snapshot())
}

func (s *Server) handleClearOrder(c *fiber.Ctx) error {
	s.ctrl.ClearOrder()
	return c.JSON(s.snapshot())
}

// handleEventsWS streams session events. The current snapshot is sent
// first so late joiners render immediately.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	c.WriteJSON(s.snapshot())

	client := newHubClient(s.events, c)
	client.run()
}
