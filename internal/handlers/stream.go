package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/meeting-stt/internal/meeting"
)

// Control messages understood on the stream socket. Binary frames append to
// the current chunk; text frames are one of these.
const (
	msgChunk = "CHUNK"
	msgPoll  = "POLL"
	msgEnd   = "END"
	langPfx  = "LANG "
)

// StreamHandler lets a recorder push chunks over one WebSocket and poll the
// meeting on the same connection.
type StreamHandler struct {
	svc      MeetingService
	maxBytes int
	timeout  time.Duration
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(svc MeetingService, maxSizeMB int, timeout time.Duration) *StreamHandler {
	return &StreamHandler{
		svc:      svc,
		maxBytes: maxSizeMB * 1024 * 1024,
		timeout:  timeout,
	}
}

// streamSession holds the state of one socket: the target meeting, the
// chunk being buffered and the language for its uploads.
type streamSession struct {
	id        string
	svc       MeetingService
	meetingID int64
	language  string
	buffer    bytes.Buffer
	maxBytes  int
}

// Handle processes WebSocket connections on /ws/meetings/:id. The id "new"
// starts a new meeting.
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	s := &streamSession{
		id:       uuid.New().String(),
		svc:      h.svc,
		maxBytes: h.maxBytes,
	}
	if raw := c.Params("id"); raw == "new" {
		s.meetingID = h.svc.NewMeetingID()
	} else {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeJSON(c, streamError("ERR_VALIDATION", fmt.Sprintf("invalid meeting id %q", raw)))
			return
		}
		s.meetingID = id
	}

	slog.Info("websocket connection established", "session", s.id, "meeting", s.meetingID)
	writeJSON(c, map[string]any{"meetingId": s.meetingID, "session": s.id})

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			slog.Debug("websocket read ended", "session", s.id, "error", err)
			break
		}

		if messageType == websocket.BinaryMessage {
			if reply := s.append(message); reply != nil {
				writeJSON(c, reply)
			}
			continue
		}
		if messageType != websocket.TextMessage {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		reply, done := s.control(ctx, strings.TrimSpace(string(message)))
		cancel()
		if reply != nil {
			writeJSON(c, reply)
		}
		if done {
			break
		}
	}

	if s.buffer.Len() > 0 {
		slog.Warn("stream closed with unflushed audio", "session", s.id, "meeting", s.meetingID, "bytes", s.buffer.Len())
	}
}

// append buffers a binary frame and returns an error reply when the chunk
// grows past the upload limit.
func (s *streamSession) append(frame []byte) any {
	if s.maxBytes > 0 && s.buffer.Len()+len(frame) > s.maxBytes {
		s.buffer.Reset()
		return streamError("ERR_FILE_TOO_LARGE", fmt.Sprintf("chunk exceeds %d bytes, discarded", s.maxBytes))
	}
	s.buffer.Write(frame)
	return nil
}

// control handles one text frame. done reports that the socket should close.
func (s *streamSession) control(ctx context.Context, msg string) (reply any, done bool) {
	switch {
	case msg == msgChunk:
		return s.flush(ctx), false

	case msg == msgPoll:
		snap, err := s.svc.Snapshot(ctx, s.meetingID, true)
		if err != nil {
			return errorReply(err), false
		}
		return snap, false

	case msg == msgEnd:
		if s.buffer.Len() > 0 {
			if r := s.flush(ctx); isError(r) {
				return r, true
			}
		}
		snap, err := s.svc.Snapshot(ctx, s.meetingID, false)
		if err != nil {
			return errorReply(err), true
		}
		return snap, true

	case strings.HasPrefix(msg, langPfx):
		s.language = strings.TrimSpace(strings.TrimPrefix(msg, langPfx))
		return nil, false
	}
	return streamError("ERR_UNKNOWN_MESSAGE", fmt.Sprintf("unknown control message %q", msg)), false
}

// flush uploads the buffered bytes as the meeting's next chunk.
func (s *streamSession) flush(ctx context.Context) any {
	if s.buffer.Len() == 0 {
		return streamError("ERR_NO_FILE", "no audio buffered")
	}
	data := bytes.Clone(s.buffer.Bytes())
	s.buffer.Reset()

	res, err := s.svc.Upload(ctx, s.meetingID, []meeting.Audio{{Name: "stream.webm", Data: data}}, s.language)
	if err != nil {
		slog.Error("stream chunk upload failed", "session", s.id, "meeting", s.meetingID, "error", err)
		return errorReply(err)
	}
	return res.Chunks[0]
}

type streamErr struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func streamError(code, msg string) streamErr {
	return streamErr{Error: msg, Code: code}
}

func errorReply(err error) streamErr {
	_, code := classify(err)
	return streamError(code, err.Error())
}

func isError(reply any) bool {
	_, ok := reply.(streamErr)
	return ok
}

func writeJSON(c *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode websocket reply", "error", err)
		return
	}
	if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("websocket write failed", "error", err)
	}
}
