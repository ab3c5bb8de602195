package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-camview/pkg/camera"
	"github.com/teslashibe/go-camview/pkg/hub"
	"gocv.io/x/gocv"
)

// frameQuality is the JPEG quality of /api/frame.
const frameQuality = 90

// PauseRequest is the request body for /api/pause.
// A missing Paused field toggles.
type PauseRequest struct {
	Paused *bool `json:"paused"`
}

// errorStatus maps session errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, camera.ErrInvalidRegion):
		return fiber.StatusBadRequest
	case errors.Is(err, camera.ErrReadFailed), errors.Is(err, camera.ErrEmptyFrame), errors.Is(err, camera.ErrClosed):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(errorStatus(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// handleStatus returns the viewer state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// handlePause sets or toggles the paused state
func (s *Server) handlePause(c *fiber.Ctx) error {
	var req PauseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid body: " + err.Error(),
			})
		}
	}

	var err error
	if req.Paused == nil {
		_, err = s.session.Toggle()
	} else {
		err = s.session.SetPaused(*req.Paused)
	}
	if err != nil {
		return fail(c, err)
	}

	st := s.Status()
	s.log.Info("pause set remotely", "paused", st.Paused)
	s.BroadcastStatus()
	return c.JSON(st)
}

// handleSnapshot writes a snapshot pair
func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	snap, err := s.session.SaveImage()
	if err != nil {
		s.log.Error("remote snapshot failed", "error", err)
		return fail(c, err)
	}
	s.log.Info("snapshot saved", "output", snap.Output, "edges", snap.Edges)
	return c.JSON(snap)
}

// handleFrame returns the current frame as JPEG
func (s *Server) handleFrame(c *fiber.Ctx) error {
	frame, err := s.session.GetFrame()
	defer frame.Close()
	if err != nil {
		return fail(c, err)
	}

	data, err := camera.EncodeJPEG(frame, frameQuality)
	if err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	return c.Send(data)
}

// handleEdges returns the current edge map as PNG
func (s *Server) handleEdges(c *fiber.Ctx) error {
	edges, err := s.session.GetEdges()
	defer edges.Close()
	if err != nil {
		return fail(c, err)
	}
	return sendPNG(c, edges)
}

// handleCrop returns a region of the current frame as PNG
func (s *Server) handleCrop(c *fiber.Ctx) error {
	r := camera.Region{
		X:      c.QueryInt("x"),
		Y:      c.QueryInt("y"),
		Width:  c.QueryInt("width"),
		Height: c.QueryInt("height"),
	}

	crop, err := s.session.GetCropped(r.X, r.Y, r.Width, r.Height)
	defer crop.Close()
	if err != nil {
		return fail(c, err)
	}
	return sendPNG(c, crop)
}

// handleGetConfig returns the capture configuration
func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	if s.manager == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "config manager not configured",
		})
	}
	return c.JSON(s.manager.GetConfigJSON())
}

// handleUpdateConfig applies a partial update or preset
func (s *Server) handleUpdateConfig(c *fiber.Ctx) error {
	if s.manager == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "config manager not configured",
		})
	}

	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body: " + err.Error(),
		})
	}

	if err := s.manager.UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	s.log.Info("config updated remotely", "params", params)
	return c.JSON(s.manager.GetConfigJSON())
}

// handlePresets lists preset names
func (s *Server) handlePresets(c *fiber.Ctx) error {
	return c.JSON(camera.PresetNames())
}

// handleFramesWS streams preview frames
func (s *Server) handleFramesWS(c *websocket.Conn) {
	hub.NewClient(s.frameHub, c).Run()
}

// handleStatusWS sends the current status, then streams updates
func (s *Server) handleStatusWS(c *websocket.Conn) {
	// The write pump is not running yet, so this write cannot race it.
	if err := c.WriteJSON(s.Status()); err != nil {
		return
	}
	hub.NewClient(s.statusHub, c).Run()
}

func sendPNG(c *fiber.Ctx, m gocv.Mat) error {
	data, err := camera.EncodePNG(m)
	if err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(data)
}
