package meeting

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codebuildervaibhav/meeting-stt/internal/apperr"
	"github.com/codebuildervaibhav/meeting-stt/internal/media"
	"github.com/codebuildervaibhav/meeting-stt/internal/storage"
	"github.com/codebuildervaibhav/meeting-stt/internal/stt"
	"github.com/codebuildervaibhav/meeting-stt/internal/types"
)

const (
	audioContentType = "audio/webm"
	dateLayout       = "2006-01-02"
)

// Store persists chunk rows and their cues. *storage.MetadataDB implements it.
type Store interface {
	NextChunkSeq(ctx context.Context, meetingID int64) (int, error)
	InsertChunks(ctx context.Context, chunks []*types.ChunkState) error
	ListChunks(ctx context.Context, meetingID int64) ([]types.ChunkState, error)
	MarkResubmitted(ctx context.Context, chunkID int64, jobHandle, errorMessage string) error
	MarkDone(ctx context.Context, chunk types.ChunkState, transcript string, cues []types.Cue) error
	ChunkCues(ctx context.Context, chunkID int64) ([]types.Cue, error)
	ListMeetings(ctx context.Context, limit int) ([]storage.MeetingSummary, error)
}

// Poller decides the next state of one PROCESSING chunk. *stt.Machine implements it.
type Poller interface {
	Poll(ctx context.Context, chunk types.ChunkState) (stt.Outcome, error)
}

// Archiver writes export artifacts locally. *storage.LocalStorage implements it.
type Archiver interface {
	SaveExport(exp *types.MeetingExport) (string, error)
}

// Publisher uploads export artifacts to a remote folder. *storage.DriveClient implements it.
type Publisher interface {
	Upload(ctx context.Context, exp *types.MeetingExport) (string, error)
}

// Config wires a Service. Cache, Archive and Drive are optional; merged
// audio is cached in Objects when Cache is nil.
type Config struct {
	Store             Store
	Objects           storage.ObjectStore
	Cache             storage.ObjectStore
	Provider          stt.Provider
	Poller            Poller
	Prober            media.Prober
	Concat            media.Concatenator
	Archive           Archiver
	Drive             Publisher
	DefaultLanguage   string
	UploadConcurrency int
}

// Service runs uploads, polls and read views for meetings. Every operation on
// one meeting is serialized; different meetings run in parallel.
type Service struct {
	store       Store
	objects     storage.ObjectStore
	cache       storage.ObjectStore
	provider    stt.Provider
	poller      Poller
	prober      media.Prober
	concat      media.Concatenator
	archive     Archiver
	drive       Publisher
	language    string
	concurrency int
	locks       *lockSet

	now    func() time.Time
	jitter func() int64
}

func NewService(cfg Config) *Service {
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = 4
	}
	if cfg.Cache == nil {
		cfg.Cache = cfg.Objects
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "ko-KR"
	}
	return &Service{
		store:       cfg.Store,
		objects:     cfg.Objects,
		cache:       cfg.Cache,
		provider:    cfg.Provider,
		poller:      cfg.Poller,
		prober:      cfg.Prober,
		concat:      cfg.Concat,
		archive:     cfg.Archive,
		drive:       cfg.Drive,
		language:    cfg.DefaultLanguage,
		concurrency: cfg.UploadConcurrency,
		locks:       newLockSet(),
		now:         time.Now,
		jitter:      func() int64 { return rand.Int63n(1000) },
	}
}

// Audio is one uploaded audio chunk.
type Audio struct {
	Name string
	Data []byte
}

// UploadedChunk describes a chunk accepted for recognition.
type UploadedChunk struct {
	MeetingID int64  `json:"meetingId"`
	ChunkSeq  int    `json:"chunkSeq"`
	JobID     string `json:"jobId"`
	AudioURI  string `json:"audioUri"`
}

// UploadResult describes a batch upload.
type UploadResult struct {
	MeetingID     int64           `json:"meetingId"`
	UploadedCount int             `json:"uploadedCount"`
	Chunks        []UploadedChunk `json:"chunks"`
}

// NewMeetingID issues an id from the wall clock plus three random digits.
func (s *Service) NewMeetingID() int64 {
	return s.now().UnixMilli()*1000 + s.jitter()
}

// UploadNew starts a new meeting with the given chunks.
func (s *Service) UploadNew(ctx context.Context, files []Audio, languageCode string) (*UploadResult, error) {
	return s.Upload(ctx, s.NewMeetingID(), files, languageCode)
}

// Upload appends chunks to a meeting in input order. Each chunk is probed,
// stored and submitted; rows are inserted only when all of them succeed.
func (s *Service) Upload(ctx context.Context, meetingID int64, files []Audio, languageCode string) (*UploadResult, error) {
	if meetingID <= 0 {
		return nil, apperr.Validation("invalid meeting id %d", meetingID)
	}
	if len(files) == 0 {
		return nil, apperr.Validation("no audio files")
	}
	for i, f := range files {
		if len(f.Data) == 0 {
			return nil, apperr.Validation("audio file %d (%s) is empty", i+1, f.Name)
		}
	}
	if strings.TrimSpace(languageCode) == "" {
		languageCode = s.language
	}

	unlock := s.locks.Lock(meetingID)
	defer unlock()

	first, err := s.store.NextChunkSeq(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	today := s.now().Format(dateLayout)
	chunks := make([]*types.ChunkState, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, f := range files {
		i, f := i, f
		seq := first + i
		g.Go(func() error {
			c, err := s.stage(gctx, meetingID, seq, today, f, languageCode)
			if err != nil {
				return fmt.Errorf("chunk %d (%s): %w", seq, f.Name, err)
			}
			chunks[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.store.InsertChunks(ctx, chunks); err != nil {
		return nil, err
	}

	out := &UploadResult{MeetingID: meetingID, UploadedCount: len(chunks)}
	for _, c := range chunks {
		slog.Info("chunk uploaded", "meeting", meetingID, "chunk", c.ChunkSeq, "job", c.JobHandle, "durationMs", c.DurationMs)
		out.Chunks = append(out.Chunks, UploadedChunk{
			MeetingID: meetingID,
			ChunkSeq:  c.ChunkSeq,
			JobID:     c.JobHandle,
			AudioURI:  c.AudioRef,
		})
	}
	return out, nil
}

func (s *Service) stage(ctx context.Context, meetingID int64, seq int, date string, f Audio, lang string) (*types.ChunkState, error) {
	durationMs, err := s.prober.Probe(ctx, f.Data)
	if err != nil {
		return nil, fmt.Errorf("probe duration: %w", err)
	}

	key := fmt.Sprintf("%s/meet_%d/in/chunk_%d.webm", date, meetingID, seq)
	ref, err := s.objects.Put(ctx, f.Data, key, audioContentType)
	if err != nil {
		return nil, err
	}

	handle, err := s.provider.Submit(ctx, ref, lang, stt.JobContext{MeetingID: meetingID, Date: date})
	if err != nil {
		return nil, fmt.Errorf("submit job: %w", err)
	}

	return &types.ChunkState{
		MeetingID:    meetingID,
		ChunkSeq:     seq,
		AudioRef:     ref,
		JobHandle:    handle,
		DurationMs:   durationMs,
		Status:       types.StatusProcessing,
		LanguageCode: lang,
		CreatedDate:  date,
	}, nil
}

// Complete polls the meeting's unfinished chunks in chunkSeq order. It stops
// at the first chunk that is still running or had to be resubmitted and
// reports WAIT; DONE is reported only when every chunk is DONE.
func (s *Service) Complete(ctx context.Context, meetingID int64) (string, error) {
	unlock := s.locks.Lock(meetingID)
	defer unlock()
	return s.complete(ctx, meetingID)
}

func (s *Service) complete(ctx context.Context, meetingID int64) (string, error) {
	chunks, err := s.store.ListChunks(ctx, meetingID)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return types.MeetingWait, nil
	}

	for _, ch := range chunks {
		if ch.IsDone() {
			continue
		}

		outcome, err := s.poller.Poll(ctx, ch)
		if err != nil {
			return "", fmt.Errorf("poll chunk %d: %w", ch.ChunkSeq, err)
		}

		switch o := outcome.(type) {
		case stt.Completed:
			if err := s.store.MarkDone(ctx, ch, o.Transcript, o.Cues); err != nil {
				return "", err
			}
			slog.Info("chunk done", "meeting", meetingID, "chunk", ch.ChunkSeq, "cues", len(o.Cues))
		case stt.Resubmitted:
			if err := s.store.MarkResubmitted(ctx, ch.ID, o.JobHandle, o.ErrorMessage); err != nil {
				return "", err
			}
			slog.Info("chunk resubmitted", "meeting", meetingID, "chunk", ch.ChunkSeq, "job", o.JobHandle)
			return types.MeetingWait, nil
		case stt.Running:
			return types.MeetingWait, nil
		default:
			return "", fmt.Errorf("poll chunk %d: unexpected outcome %T", ch.ChunkSeq, outcome)
		}
	}
	return types.MeetingDone, nil
}

// TranscriptView is the meeting transcript so far.
type TranscriptView struct {
	MeetingID  int64  `json:"meetingId"`
	Transcript string `json:"transcript"`
	Counts
}

// SubtitleView is the meeting cue list so far.
type SubtitleView struct {
	MeetingID int64              `json:"meetingId"`
	Cues      []types.MeetingCue `json:"cues"`
	Counts
}

// ChunkView is one chunk in the chunk list.
type ChunkView struct {
	ChunkSeq     int               `json:"chunkSeq"`
	Status       types.ChunkStatus `json:"status"`
	AudioURL     string            `json:"audioUrl"`
	DurationMs   int64             `json:"durationMs"`
	Transcript   *string           `json:"transcript"`
	ErrorMessage *string           `json:"errorMessage,omitempty"`
}

// ChunksView lists a meeting's chunks.
type ChunksView struct {
	MeetingID int64       `json:"meetingId"`
	Chunks    []ChunkView `json:"chunks"`
	Counts
}

// SnapshotView combines status, transcript, cues and chunks.
type SnapshotView struct {
	MeetingID  int64              `json:"meetingId"`
	Status     string             `json:"status"`
	Transcript string             `json:"transcript"`
	Cues       []types.MeetingCue `json:"cues"`
	Chunks     []ChunkView        `json:"chunks"`
	Counts
}

// MergedAudioPath is the HTTP path serving a meeting's merged audio.
func MergedAudioPath(meetingID int64) string {
	return fmt.Sprintf("/api/stt/meetings/%d/audio/merged", meetingID)
}

func (s *Service) listLocked(ctx context.Context, meetingID int64) ([]types.ChunkState, error) {
	unlock := s.locks.Lock(meetingID)
	defer unlock()
	return s.store.ListChunks(ctx, meetingID)
}

// Transcript returns the transcript of the DONE chunks.
func (s *Service) Transcript(ctx context.Context, meetingID int64) (*TranscriptView, error) {
	chunks, err := s.listLocked(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	return &TranscriptView{
		MeetingID:  meetingID,
		Transcript: BuildTranscript(chunks),
		Counts:     CountChunks(chunks),
	}, nil
}

// Subtitles returns the meeting cue list of the DONE chunks.
func (s *Service) Subtitles(ctx context.Context, meetingID int64) (*SubtitleView, error) {
	unlock := s.locks.Lock(meetingID)
	defer unlock()

	chunks, err := s.store.ListChunks(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	cues, err := s.subtitles(ctx, chunks)
	if err != nil {
		return nil, err
	}
	return &SubtitleView{MeetingID: meetingID, Cues: cues, Counts: CountChunks(chunks)}, nil
}

func (s *Service) subtitles(ctx context.Context, chunks []types.ChunkState) ([]types.MeetingCue, error) {
	cues, err := BuildSubtitles(chunks, func(ch types.ChunkState) ([]types.Cue, error) {
		return s.store.ChunkCues(ctx, ch.ID)
	})
	if err != nil {
		return nil, err
	}
	if cues == nil {
		cues = []types.MeetingCue{}
	}
	return cues, nil
}

// Chunks lists the meeting's chunks with their status.
func (s *Service) Chunks(ctx context.Context, meetingID int64) (*ChunksView, error) {
	chunks, err := s.listLocked(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	return &ChunksView{MeetingID: meetingID, Chunks: chunkViews(chunks), Counts: CountChunks(chunks)}, nil
}

func chunkViews(chunks []types.ChunkState) []ChunkView {
	out := make([]ChunkView, 0, len(chunks))
	for _, ch := range chunks {
		out = append(out, ChunkView{
			ChunkSeq:     ch.ChunkSeq,
			Status:       ch.Status,
			AudioURL:     MergedAudioPath(ch.MeetingID),
			DurationMs:   ch.DurationMs,
			Transcript:   ch.Transcript,
			ErrorMessage: ch.ErrorMessage,
		})
	}
	return out
}

// Snapshot returns every view of a meeting at once. With poll set the
// meeting is polled first and its result becomes the status; otherwise the
// status is DONE only when there is at least one chunk and all are DONE.
func (s *Service) Snapshot(ctx context.Context, meetingID int64, poll bool) (*SnapshotView, error) {
	unlock := s.locks.Lock(meetingID)
	defer unlock()

	status := ""
	if poll {
		st, err := s.complete(ctx, meetingID)
		if err != nil {
			return nil, err
		}
		status = st
	}

	chunks, err := s.store.ListChunks(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	counts := CountChunks(chunks)
	if !poll {
		status = types.MeetingWait
		if counts.TotalChunks > 0 && counts.CompletedChunks == counts.TotalChunks {
			status = types.MeetingDone
		}
	}

	cues, err := s.subtitles(ctx, chunks)
	if err != nil {
		return nil, err
	}
	return &SnapshotView{
		MeetingID:  meetingID,
		Status:     status,
		Transcript: BuildTranscript(chunks),
		Cues:       cues,
		Chunks:     chunkViews(chunks),
		Counts:     counts,
	}, nil
}

// MergedAudio is a meeting's chunks joined into one file.
type MergedAudio struct {
	FileName    string
	ContentType string
	Data        []byte
}

// MergedAudio concatenates every chunk's source audio in chunkSeq order.
// Results are cached per chunk count; chunks are immutable once uploaded.
func (s *Service) MergedAudio(ctx context.Context, meetingID int64) (*MergedAudio, error) {
	chunks, err := s.listLocked(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, apperr.NotFound("meeting %d has no audio", meetingID)
	}

	out := &MergedAudio{
		FileName:    fmt.Sprintf("meeting_%d_merged.webm", meetingID),
		ContentType: audioContentType,
	}

	cacheKey := fmt.Sprintf("meet_%d/merged/%d.webm", meetingID, len(chunks))
	if data, err := s.cache.Get(ctx, s.cache.URI(cacheKey)); err == nil {
		out.Data = data
		return out, nil
	} else if !apperr.IsNotFound(err) {
		slog.Warn("merged audio cache read failed", "meeting", meetingID, "error", err)
	}

	inputs := make([][]byte, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, ch := range chunks {
		i, ch := i, ch
		g.Go(func() error {
			data, err := s.objects.Get(gctx, ch.AudioRef)
			if err != nil {
				return fmt.Errorf("chunk %d audio: %w", ch.ChunkSeq, err)
			}
			inputs[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged, err := s.concat.Concat(ctx, inputs)
	if err != nil {
		return nil, err
	}
	if len(chunks) > 1 {
		if _, err := s.cache.Put(ctx, merged, cacheKey, audioContentType); err != nil {
			slog.Warn("merged audio cache write failed", "meeting", meetingID, "error", err)
		}
	}
	out.Data = merged
	return out, nil
}

// ExportResult locates the artifacts written by Export.
type ExportResult struct {
	MeetingID int64  `json:"meetingId"`
	LocalPath string `json:"localPath,omitempty"`
	DriveURL  string `json:"driveUrl,omitempty"`
}

// Export writes the meeting transcript and SRT locally and, when toDrive is
// set and Drive is configured, uploads them to Drive.
func (s *Service) Export(ctx context.Context, meetingID int64, toDrive bool) (*ExportResult, error) {
	if s.archive == nil && !toDrive {
		return nil, apperr.Validation("no export target configured")
	}
	if toDrive && s.drive == nil {
		return nil, apperr.Validation("drive export is not configured")
	}

	unlock := s.locks.Lock(meetingID)
	chunks, err := s.store.ListChunks(ctx, meetingID)
	var cues []types.MeetingCue
	if err == nil {
		cues, err = s.subtitles(ctx, chunks)
	}
	unlock()
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, apperr.NotFound("meeting %d not found", meetingID)
	}

	counts := CountChunks(chunks)
	exp := &types.MeetingExport{
		MeetingID:       meetingID,
		Transcript:      BuildTranscript(chunks),
		SRT:             RenderSRT(cues),
		TotalChunks:     counts.TotalChunks,
		CompletedChunks: counts.CompletedChunks,
		CueCount:        len(cues),
		ExportedAt:      s.now(),
	}
	for _, ch := range chunks {
		if ch.IsDone() {
			exp.DurationMs += ch.DurationMs
		}
	}

	res := &ExportResult{MeetingID: meetingID}
	if s.archive != nil {
		path, err := s.archive.SaveExport(exp)
		if err != nil {
			return nil, err
		}
		res.LocalPath = path
	}
	if toDrive {
		url, err := s.drive.Upload(ctx, exp)
		if err != nil {
			return nil, err
		}
		res.DriveURL = url
	}
	slog.Info("meeting exported", "meeting", meetingID, "local", res.LocalPath, "drive", res.DriveURL)
	return res, nil
}

// ListMeetings lists recent meetings, newest first.
func (s *Service) ListMeetings(ctx context.Context, limit int) ([]storage.MeetingSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.store.ListMeetings(ctx, limit)
}
