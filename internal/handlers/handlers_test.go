package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-stt/internal/apperr"
	"github.com/codebuildervaibhav/meeting-stt/internal/meeting"
	"github.com/codebuildervaibhav/meeting-stt/internal/storage"
	"github.com/codebuildervaibhav/meeting-stt/internal/types"
)

type fakeService struct {
	uploads   [][]meeting.Audio
	uploadIDs []int64
	langs     []string
	polls     []bool
	exports   []bool
	err       error
	merged    *meeting.MergedAudio
	cues      []types.MeetingCue
}

func (f *fakeService) NewMeetingID() int64 { return 1000 }

func (f *fakeService) UploadNew(ctx context.Context, files []meeting.Audio, lang string) (*meeting.UploadResult, error) {
	return f.Upload(ctx, f.NewMeetingID(), files, lang)
}

func (f *fakeService) Upload(_ context.Context, id int64, files []meeting.Audio, lang string) (*meeting.UploadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.uploads = append(f.uploads, files)
	f.uploadIDs = append(f.uploadIDs, id)
	f.langs = append(f.langs, lang)
	res := &meeting.UploadResult{MeetingID: id, UploadedCount: len(files)}
	for i := range files {
		res.Chunks = append(res.Chunks, meeting.UploadedChunk{MeetingID: id, ChunkSeq: i + 1, JobID: "op"})
	}
	return res, nil
}

func (f *fakeService) Complete(context.Context, int64) (string, error) {
	return types.MeetingWait, f.err
}

func (f *fakeService) Transcript(_ context.Context, id int64) (*meeting.TranscriptView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &meeting.TranscriptView{MeetingID: id, Transcript: "SPEAKER_1: hi."}, nil
}

func (f *fakeService) Subtitles(_ context.Context, id int64) (*meeting.SubtitleView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &meeting.SubtitleView{MeetingID: id, Cues: f.cues}, nil
}

func (f *fakeService) Chunks(_ context.Context, id int64) (*meeting.ChunksView, error) {
	return &meeting.ChunksView{MeetingID: id}, f.err
}

func (f *fakeService) Snapshot(_ context.Context, id int64, poll bool) (*meeting.SnapshotView, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.polls = append(f.polls, poll)
	return &meeting.SnapshotView{MeetingID: id, Status: types.MeetingWait}, nil
}

func (f *fakeService) MergedAudio(context.Context, int64) (*meeting.MergedAudio, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.merged, nil
}

func (f *fakeService) Export(_ context.Context, id int64, toDrive bool) (*meeting.ExportResult, error) {
	f.exports = append(f.exports, toDrive)
	return &meeting.ExportResult{MeetingID: id, LocalPath: "/x.txt"}, f.err
}

func (f *fakeService) ListMeetings(context.Context, int) ([]storage.MeetingSummary, error) {
	return []storage.MeetingSummary{{MeetingID: 1, TotalChunks: 2}}, f.err
}

func newTestApp(svc *fakeService) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app,
		NewUploadHandler(svc, 1, 3, time.Minute),
		NewMeetingHandler(svc, time.Minute),
		NewExportHandler(svc, time.Minute),
		nil,
	)
	return app
}

type part struct {
	field, name, data string
}

func multipartRequest(t *testing.T, url string, parts []part, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, p := range parts {
		fw, err := w.CreateFormFile(p.field, p.name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(p.data))
	}
	for k, v := range fields {
		w.WriteField(k, v)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, []byte, http.Header) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body, resp.Header
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var out struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("body %q: %v", body, err)
	}
	return out.Code
}

func TestUpload_NewMeeting(t *testing.T) {
	svc := &fakeService{}
	app := newTestApp(svc)

	req := multipartRequest(t, "/api/stt/chunks",
		[]part{{"audioFile", "chunk.webm", "abc"}},
		map[string]string{"languageCode": "en-US"})
	status, body, _ := do(t, app, req)
	if status != 200 {
		t.Fatalf("status %d: %s", status, body)
	}

	var got meeting.UploadedChunk
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if got.MeetingID != 1000 || got.ChunkSeq != 1 {
		t.Errorf("response = %+v", got)
	}
	if string(svc.uploads[0][0].Data) != "abc" || svc.langs[0] != "en-US" {
		t.Errorf("service got %q lang %q", svc.uploads[0][0].Data, svc.langs[0])
	}
}

func TestUpload_BatchKeepsFormOrder(t *testing.T) {
	svc := &fakeService{}
	app := newTestApp(svc)

	req := multipartRequest(t, "/api/stt/meetings/42/chunks/batch", []part{
		{"audioFiles", "1.webm", "one"},
		{"audioFiles", "2.webm", "two"},
		{"audioFiles", "blob", "three"},
	}, nil)
	status, body, _ := do(t, app, req)
	if status != 200 {
		t.Fatalf("status %d: %s", status, body)
	}
	if svc.uploadIDs[0] != 42 {
		t.Errorf("meeting id = %d", svc.uploadIDs[0])
	}
	var got []string
	for _, a := range svc.uploads[0] {
		got = append(got, string(a.Data))
	}
	if strings.Join(got, ",") != "one,two,three" {
		t.Errorf("order = %v", got)
	}
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
		code string
	}{
		{"no file", func(t *testing.T) *http.Request {
			return multipartRequest(t, "/api/stt/chunks", nil, map[string]string{"x": "y"})
		}, "ERR_NO_FILE"},
		{"bad format", func(t *testing.T) *http.Request {
			return multipartRequest(t, "/api/stt/chunks", []part{{"audioFile", "a.mp3", "x"}}, nil)
		}, "ERR_INVALID_FORMAT"},
		{"too large", func(t *testing.T) *http.Request {
			return multipartRequest(t, "/api/stt/chunks", []part{{"audioFile", "a.webm", strings.Repeat("x", 1024*1024+1)}}, nil)
		}, "ERR_FILE_TOO_LARGE"},
		{"too many", func(t *testing.T) *http.Request {
			return multipartRequest(t, "/api/stt/chunks/batch", []part{
				{"audioFiles", "1.webm", "a"}, {"audioFiles", "2.webm", "b"},
				{"audioFiles", "3.webm", "c"}, {"audioFiles", "4.webm", "d"},
			}, nil)
		}, "ERR_TOO_MANY_FILES"},
		{"bad meeting id", func(t *testing.T) *http.Request {
			return multipartRequest(t, "/api/stt/meetings/abc/chunks", []part{{"audioFile", "a.webm", "x"}}, nil)
		}, "ERR_VALIDATION"},
	}
	for _, tt := range tests {
		svc := &fakeService{}
		status, body, _ := do(t, newTestApp(svc), tt.req(t))
		if status != 400 || errorCode(t, body) != tt.code {
			t.Errorf("%s: got %d %s, want 400 %s", tt.name, status, body, tt.code)
		}
		if len(svc.uploads) != 0 {
			t.Errorf("%s: service was called", tt.name)
		}
	}
}

func TestSnapshot_PollFlag(t *testing.T) {
	svc := &fakeService{}
	app := newTestApp(svc)

	for _, url := range []string{"/api/stt/meetings/7/snapshot", "/api/stt/meetings/7/snapshot?poll=true"} {
		status, body, _ := do(t, app, httptest.NewRequest(http.MethodGet, url, nil))
		if status != 200 {
			t.Fatalf("%s: status %d: %s", url, status, body)
		}
	}
	if len(svc.polls) != 2 || svc.polls[0] || !svc.polls[1] {
		t.Errorf("poll flags = %v, want [false true]", svc.polls)
	}
}

func TestSubtitles_Formats(t *testing.T) {
	svc := &fakeService{cues: []types.MeetingCue{{ChunkSeq: 2, StartMs: 5000, EndMs: 5900, Text: "bye.", Speaker: "2"}}}
	app := newTestApp(svc)

	status, body, hdr := do(t, app, httptest.NewRequest(http.MethodGet, "/api/stt/meetings/7/subtitles?format=srt", nil))
	if status != 200 || !strings.HasPrefix(hdr.Get("Content-Type"), "application/x-subrip") {
		t.Fatalf("srt: %d %s", status, hdr.Get("Content-Type"))
	}
	if !strings.Contains(string(body), "00:00:05,000 --> 00:00:05,900\nSPEAKER_2: bye.") {
		t.Errorf("srt body = %q", body)
	}

	status, body, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/api/stt/meetings/7/subtitles", nil))
	var view meeting.SubtitleView
	if status != 200 || json.Unmarshal(body, &view) != nil || len(view.Cues) != 1 {
		t.Errorf("json: %d %s", status, body)
	}

	status, body, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/api/stt/meetings/7/subtitles?format=ass", nil))
	if status != 400 || errorCode(t, body) != "ERR_VALIDATION" {
		t.Errorf("bad format: %d %s", status, body)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.NotFound("meeting 7 has no audio"), 404, "ERR_NOT_FOUND"},
		{apperr.Validation("bad ref"), 400, "ERR_VALIDATION"},
		{apperr.FatalConfig("chunk 2 has no duration"), 500, "ERR_CONFIG"},
		{apperr.Parsing(nil, "no alternatives"), 500, "ERR_PARSE"},
		{context.DeadlineExceeded, 504, "ERR_TIMEOUT"},
		{io.ErrUnexpectedEOF, 500, "ERR_INTERNAL"},
	}
	for _, tt := range tests {
		app := newTestApp(&fakeService{err: tt.err})
		status, body, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/stt/meetings/7/transcript", nil))
		if status != tt.status || errorCode(t, body) != tt.code {
			t.Errorf("%v: got %d %s, want %d %s", tt.err, status, body, tt.status, tt.code)
		}
	}
}

func TestMergedAudio(t *testing.T) {
	svc := &fakeService{merged: &meeting.MergedAudio{FileName: "meeting_7_merged.webm", ContentType: "audio/webm", Data: []byte("AUDIO")}}
	status, body, hdr := do(t, newTestApp(svc), httptest.NewRequest(http.MethodGet, "/api/stt/meetings/7/audio/merged", nil))
	if status != 200 || string(body) != "AUDIO" {
		t.Fatalf("got %d %q", status, body)
	}
	if hdr.Get("Content-Type") != "audio/webm" || !strings.Contains(hdr.Get("Content-Disposition"), "meeting_7_merged.webm") {
		t.Errorf("headers = %v", hdr)
	}
}

func TestExport(t *testing.T) {
	svc := &fakeService{}
	app := newTestApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/stt/meetings/7/export", strings.NewReader(`{"drive":true}`))
	req.Header.Set("Content-Type", "application/json")
	status, body, _ := do(t, app, req)
	if status != 200 {
		t.Fatalf("status %d: %s", status, body)
	}

	status, _, _ = do(t, app, httptest.NewRequest(http.MethodPost, "/api/stt/meetings/7/export", nil))
	if status != 200 {
		t.Fatalf("empty body status %d", status)
	}
	if len(svc.exports) != 2 || !svc.exports[0] || svc.exports[1] {
		t.Errorf("drive flags = %v, want [true false]", svc.exports)
	}
}

func TestCompleteAndList(t *testing.T) {
	app := newTestApp(&fakeService{})

	status, body, _ := do(t, app, httptest.NewRequest(http.MethodPost, "/api/stt/meetings/7/complete", nil))
	if status != 200 || !strings.Contains(string(body), `"status":"WAIT"`) {
		t.Errorf("complete: %d %s", status, body)
	}

	status, body, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/api/stt/meetings?limit=5", nil))
	if status != 200 || !strings.Contains(string(body), `"totalChunks":2`) {
		t.Errorf("list: %d %s", status, body)
	}
}
