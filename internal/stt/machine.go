package stt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codebuildervaibhav/meeting-stt/internal/apperr"
	"github.com/codebuildervaibhav/meeting-stt/internal/transcript"
	"github.com/codebuildervaibhav/meeting-stt/internal/types"
)

// Outcome is the result of polling one chunk. It is one of Running,
// Completed or Resubmitted.
type Outcome interface {
	isOutcome()
}

// Running means the job has not finished; nothing changes.
type Running struct{}

// Completed carries the chunk's transcript and its full cue set.
type Completed struct {
	Transcript string
	Cues       []types.Cue
}

// Resubmitted means the job failed and a new one was started.
type Resubmitted struct {
	JobHandle    string
	ErrorMessage string
}

func (Running) isOutcome()     {}
func (Completed) isOutcome()   {}
func (Resubmitted) isOutcome() {}

// Fetcher loads raw result bytes by object reference.
type Fetcher interface {
	Get(ctx context.Context, ref string) ([]byte, error)
}

// Machine decides the next state of a PROCESSING chunk. It performs the
// provider and fetch calls but never touches persistence.
type Machine struct {
	provider        Provider
	fetcher         Fetcher
	defaultLanguage string
}

func NewMachine(provider Provider, fetcher Fetcher, defaultLanguage string) *Machine {
	return &Machine{
		provider:        provider,
		fetcher:         fetcher,
		defaultLanguage: defaultLanguage,
	}
}

// Poll queries the chunk's job once. A failed job is resubmitted exactly once.
// Provider, fetch and parse errors are returned as is.
func (m *Machine) Poll(ctx context.Context, chunk types.ChunkState) (Outcome, error) {
	st, err := m.provider.Status(ctx, chunk.JobHandle)
	if err != nil {
		return nil, fmt.Errorf("job status %s: %w", chunk.JobHandle, err)
	}

	switch st.State {
	case JobRunning:
		return Running{}, nil

	case JobFailed:
		slog.Warn("recognition job failed, resubmitting",
			"meeting", chunk.MeetingID, "chunk", chunk.ChunkSeq, "job", chunk.JobHandle,
			"error", &apperr.TransientJobError{Msg: st.Message})
		lang := chunk.LanguageCode
		if strings.TrimSpace(lang) == "" {
			lang = m.defaultLanguage
		}
		handle, err := m.provider.Submit(ctx, chunk.AudioRef, lang, JobContext{
			MeetingID: chunk.MeetingID,
			Date:      chunk.CreatedDate,
		})
		if err != nil {
			return nil, fmt.Errorf("resubmit chunk %d: %w", chunk.ChunkSeq, err)
		}
		return Resubmitted{JobHandle: handle, ErrorMessage: st.Message}, nil

	case JobDone:
		res, err := m.collect(ctx, st.ResultRefs)
		if err != nil {
			return nil, err
		}
		if res.Dropped > 0 {
			slog.Warn("untimed words dropped",
				"meeting", chunk.MeetingID, "chunk", chunk.ChunkSeq, "words", res.Dropped)
		}
		return Completed{Transcript: res.Transcript, Cues: res.Cues}, nil
	}
	return nil, fmt.Errorf("job %s: unknown state %v", chunk.JobHandle, st.State)
}

func (m *Machine) collect(ctx context.Context, refs []string) (*transcript.ChunkResult, error) {
	files := make([]*transcript.FileResult, 0, len(refs))
	for _, ref := range refs {
		data, err := m.fetcher.Get(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("read result %s: %w", ref, err)
		}
		f, err := transcript.ParseFile(data)
		if err != nil {
			return nil, fmt.Errorf("result %s: %w", ref, err)
		}
		files = append(files, f)
	}
	return transcript.BuildChunkResult(files), nil
}
