package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ExportHandler writes meeting artifacts locally and optionally to Google Drive
type ExportHandler struct {
	svc     MeetingService
	timeout time.Duration
}

// NewExportHandler creates a new export handler
func NewExportHandler(svc MeetingService, timeout time.Duration) *ExportHandler {
	return &ExportHandler{svc: svc, timeout: timeout}
}

// ExportRequest represents the request body
type ExportRequest struct {
	Drive bool `json:"drive"`
}

// Handle exports the meeting transcript and subtitles
func (h *ExportHandler) Handle(c *fiber.Ctx) error {
	id, err := meetingID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req ExportRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorResponse(c, badRequest("ERR_INVALID_BODY", "Invalid request body"))
		}
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	res, err := h.svc.Export(ctx, id, req.Drive)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(res)
}
