package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/meeting-stt/internal/apperr"
	"github.com/codebuildervaibhav/meeting-stt/internal/meeting"
	"github.com/codebuildervaibhav/meeting-stt/internal/storage"
)

// MeetingService is the meeting workflow the HTTP surface drives.
// *meeting.Service implements it.
type MeetingService interface {
	NewMeetingID() int64
	UploadNew(ctx context.Context, files []meeting.Audio, languageCode string) (*meeting.UploadResult, error)
	Upload(ctx context.Context, meetingID int64, files []meeting.Audio, languageCode string) (*meeting.UploadResult, error)
	Complete(ctx context.Context, meetingID int64) (string, error)
	Transcript(ctx context.Context, meetingID int64) (*meeting.TranscriptView, error)
	Subtitles(ctx context.Context, meetingID int64) (*meeting.SubtitleView, error)
	Chunks(ctx context.Context, meetingID int64) (*meeting.ChunksView, error)
	Snapshot(ctx context.Context, meetingID int64, poll bool) (*meeting.SnapshotView, error)
	MergedAudio(ctx context.Context, meetingID int64) (*meeting.MergedAudio, error)
	Export(ctx context.Context, meetingID int64, toDrive bool) (*meeting.ExportResult, error)
	ListMeetings(ctx context.Context, limit int) ([]storage.MeetingSummary, error)
}

// RegisterRoutes mounts the meeting API under /api/stt and the chunk
// streaming socket under /ws/meetings/:id.
func RegisterRoutes(app *fiber.App, uploads *UploadHandler, meetings *MeetingHandler, exports *ExportHandler, stream *StreamHandler) {
	api := app.Group("/api/stt")

	api.Post("/chunks", uploads.HandleNewMeeting)
	api.Post("/chunks/batch", uploads.HandleNewMeetingBatch)
	api.Post("/meetings/:id/chunks", uploads.HandleAppend)
	api.Post("/meetings/:id/chunks/batch", uploads.HandleAppendBatch)

	api.Get("/meetings", meetings.HandleList)
	api.Post("/meetings/:id/complete", meetings.HandleComplete)
	api.Get("/meetings/:id/snapshot", meetings.HandleSnapshot)
	api.Get("/meetings/:id/transcript", meetings.HandleTranscript)
	api.Get("/meetings/:id/subtitles", meetings.HandleSubtitles)
	api.Get("/meetings/:id/chunks", meetings.HandleChunks)
	api.Get("/meetings/:id/audio/merged", meetings.HandleMergedAudio)

	api.Post("/meetings/:id/export", exports.Handle)

	if stream != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/meetings/:id", websocket.New(stream.Handle))
	}
}

// meetingID parses the :id route parameter.
func meetingID(c *fiber.Ctx) (int64, error) {
	raw := c.Params("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid meeting id %q", raw)
	}
	return id, nil
}

// requestError is a client mistake caught in the handler itself.
type requestError struct {
	status int
	code   string
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(code, format string, args ...any) error {
	return &requestError{status: fiber.StatusBadRequest, code: code, msg: fmt.Sprintf(format, args...)}
}

// classify maps an error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	var rerr *requestError
	switch {
	case errors.As(err, &rerr):
		return rerr.status, rerr.code
	case apperr.IsValidation(err):
		return fiber.StatusBadRequest, "ERR_VALIDATION"
	case apperr.IsNotFound(err):
		return fiber.StatusNotFound, "ERR_NOT_FOUND"
	case apperr.IsFatalConfig(err):
		return fiber.StatusInternalServerError, "ERR_CONFIG"
	case apperr.IsParsing(err):
		return fiber.StatusInternalServerError, "ERR_PARSE"
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "ERR_TIMEOUT"
	}
	return fiber.StatusInternalServerError, "ERR_INTERNAL"
}

func errorResponse(c *fiber.Ctx, err error) error {
	status, code := classify(err)
	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "code", code, "error", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
