package handlers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-stt/internal/media"
	"github.com/codebuildervaibhav/meeting-stt/internal/meeting"
)

// UploadHandler handles chunk uploads
type UploadHandler struct {
	svc       MeetingService
	maxSizeMB int
	maxFiles  int
	timeout   time.Duration
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(svc MeetingService, maxSizeMB, maxFiles int, timeout time.Duration) *UploadHandler {
	return &UploadHandler{
		svc:       svc,
		maxSizeMB: maxSizeMB,
		maxFiles:  maxFiles,
		timeout:   timeout,
	}
}

// HandleNewMeeting uploads one chunk into a freshly issued meeting.
func (h *UploadHandler) HandleNewMeeting(c *fiber.Ctx) error {
	return h.single(c, 0)
}

// HandleAppend uploads one chunk into an existing meeting.
func (h *UploadHandler) HandleAppend(c *fiber.Ctx) error {
	id, err := meetingID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	return h.single(c, id)
}

// HandleNewMeetingBatch uploads several chunks, in form order, into a new meeting.
func (h *UploadHandler) HandleNewMeetingBatch(c *fiber.Ctx) error {
	return h.batch(c, 0)
}

// HandleAppendBatch uploads several chunks, in form order, into an existing meeting.
func (h *UploadHandler) HandleAppendBatch(c *fiber.Ctx) error {
	id, err := meetingID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	return h.batch(c, id)
}

func (h *UploadHandler) single(c *fiber.Ctx, id int64) error {
	file, err := c.FormFile("audioFile")
	if err != nil {
		return errorResponse(c, badRequest("ERR_NO_FILE", "No file uploaded"))
	}
	audio, err := h.read(file)
	if err != nil {
		return errorResponse(c, err)
	}

	res, err := h.upload(c, id, []meeting.Audio{audio})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(res.Chunks[0])
}

func (h *UploadHandler) batch(c *fiber.Ctx, id int64) error {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["audioFiles"]) == 0 {
		return errorResponse(c, badRequest("ERR_NO_FILE", "No files uploaded"))
	}
	files := form.File["audioFiles"]
	if h.maxFiles > 0 && len(files) > h.maxFiles {
		return errorResponse(c, badRequest("ERR_TOO_MANY_FILES", "Too many files (max %d)", h.maxFiles))
	}

	audios := make([]meeting.Audio, 0, len(files))
	for _, f := range files {
		audio, err := h.read(f)
		if err != nil {
			return errorResponse(c, err)
		}
		audios = append(audios, audio)
	}

	res, err := h.upload(c, id, audios)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(res)
}

func (h *UploadHandler) upload(c *fiber.Ctx, id int64, audios []meeting.Audio) (*meeting.UploadResult, error) {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	lang := c.FormValue("languageCode")
	if id == 0 {
		return h.svc.UploadNew(ctx, audios, lang)
	}
	return h.svc.Upload(ctx, id, audios, lang)
}

// read validates and loads one multipart file.
func (h *UploadHandler) read(file *multipart.FileHeader) (meeting.Audio, error) {
	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	if file.Size > maxSize {
		return meeting.Audio{}, badRequest("ERR_FILE_TOO_LARGE", "File too large (max %dMB)", h.maxSizeMB)
	}

	// Browser recorders often post blobs without an extension.
	if filepath.Ext(file.Filename) != "" && !media.ValidateAudioFormat(file.Filename) {
		return meeting.Audio{}, badRequest("ERR_INVALID_FORMAT", "Unsupported audio format: %s", file.Filename)
	}

	f, err := file.Open()
	if err != nil {
		return meeting.Audio{}, fmt.Errorf("open upload %s: %w", file.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return meeting.Audio{}, fmt.Errorf("read upload %s: %w", file.Filename, err)
	}
	return meeting.Audio{Name: file.Filename, Data: data}, nil
}
