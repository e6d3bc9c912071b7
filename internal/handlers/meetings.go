package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-stt/internal/meeting"
)

// MeetingHandler serves polling and the read views of a meeting.
type MeetingHandler struct {
	svc     MeetingService
	timeout time.Duration
}

// NewMeetingHandler creates a new meeting handler
func NewMeetingHandler(svc MeetingService, timeout time.Duration) *MeetingHandler {
	return &MeetingHandler{svc: svc, timeout: timeout}
}

func (h *MeetingHandler) context(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), h.timeout)
}

// HandleList lists recent meetings.
func (h *MeetingHandler) HandleList(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()

	meetings, err := h.svc.ListMeetings(ctx, c.QueryInt("limit", 50))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(meetings)
}

// HandleComplete polls the meeting's unfinished chunks once.
func (h *MeetingHandler) HandleComplete(c *fiber.Ctx) error {
	id, err := meetingID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	ctx, cancel := h.context(c)
	defer cancel()

	status, err := h.svc.Complete(ctx, id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"meetingId": id,
		"status":    status,
	})
}

// HandleSnapshot returns status, transcript, cues and chunks together.
// ?poll=true polls the meeting first.
func (h *MeetingHandler) HandleSnapshot(c *fiber.Ctx) error {
	id, err := meetingID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	ctx, cancel := h.context(c)
	defer cancel()

	snap, err := h.svc.Snapshot(ctx, id, c.QueryBool("poll", false))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(snap)
}

func (h *MeetingHandler) HandleTranscript(c *fiber.Ctx) error {
	id, err := meetingID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	ctx, cancel := h.context(c)
	defer cancel()

	view, err := h.svc.Transcript(ctx, id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(view)
}

// HandleSubtitles returns the meeting cues as JSON, SRT or WebVTT.
func (h *MeetingHandler) HandleSubtitles(c *fiber.Ctx) error {
	id, err := meetingID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	format, err := meeting.ParseFormat(c.Query("format"))
	if err != nil {
		return errorResponse(c, err)
	}
	ctx, cancel := h.context(c)
	defer cancel()

	view, err := h.svc.Subtitles(ctx, id)
	if err != nil {
		return errorResponse(c, err)
	}

	switch format {
	case meeting.FormatSRT:
		c.Set(fiber.HeaderContentType, "application/x-subrip; charset=utf-8")
		return c.SendString(meeting.RenderSRT(view.Cues))
	case meeting.FormatVTT:
		c.Set(fiber.HeaderContentType, "text/vtt; charset=utf-8")
		return c.SendString(meeting.RenderVTT(view.Cues))
	}
	return c.JSON(view)
}

func (h *MeetingHandler) HandleChunks(c *fiber.Ctx) error {
	id, err := meetingID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	ctx, cancel := h.context(c)
	defer cancel()

	view, err := h.svc.Chunks(ctx, id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(view)
}

// HandleMergedAudio streams the whole meeting's audio for playback.
func (h *MeetingHandler) HandleMergedAudio(c *fiber.Ctx) error {
	id, err := meetingID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	ctx, cancel := h.context(c)
	defer cancel()

	audio, err := h.svc.MergedAudio(ctx, id)
	if err != nil {
		return errorResponse(c, err)
	}
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="%s"`, audio.FileName))
	c.Set(fiber.HeaderContentType, audio.ContentType)
	return c.Send(audio.Data)
}
