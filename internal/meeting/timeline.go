package meeting

import (
	"github.com/codebuildervaibhav/meeting-stt/internal/apperr"
	"github.com/codebuildervaibhav/meeting-stt/internal/transcript"
	"github.com/codebuildervaibhav/meeting-stt/internal/types"
)

// Counts reports how far a meeting has progressed.
type Counts struct {
	TotalChunks     int `json:"totalChunks"`
	CompletedChunks int `json:"completedChunks"`
}

// CountChunks counts chunks by status. The slice is not cached anywhere.
func CountChunks(chunks []types.ChunkState) Counts {
	c := Counts{TotalChunks: len(chunks)}
	for _, ch := range chunks {
		if ch.IsDone() {
			c.CompletedChunks++
		}
	}
	return c
}

// BuildTranscript joins the transcripts of DONE chunks in chunkSeq order.
// chunks must already be ordered by chunkSeq.
func BuildTranscript(chunks []types.ChunkState) string {
	parts := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		if !ch.IsDone() || ch.Transcript == nil {
			continue
		}
		parts = append(parts, *ch.Transcript)
	}
	return transcript.JoinTranscripts(parts)
}

// CueSource loads the chunk-local cues of a DONE chunk.
type CueSource func(chunk types.ChunkState) ([]types.Cue, error)

// BuildSubtitles shifts each DONE chunk's cues by the summed probed durations
// of the DONE chunks before it. A DONE chunk without a positive duration
// aborts the whole build with a FatalConfigError.
func BuildSubtitles(chunks []types.ChunkState, cuesFor CueSource) ([]types.MeetingCue, error) {
	var (
		out    []types.MeetingCue
		offset int64
	)
	for _, ch := range chunks {
		if !ch.IsDone() {
			continue
		}
		if ch.DurationMs <= 0 {
			return nil, apperr.FatalConfig("chunk %d of meeting %d has no positive duration (%d ms)",
				ch.ChunkSeq, ch.MeetingID, ch.DurationMs)
		}

		cues, err := cuesFor(ch)
		if err != nil {
			return nil, err
		}
		for _, c := range cues {
			out = append(out, types.MeetingCue{
				ChunkSeq: ch.ChunkSeq,
				StartMs:  c.StartMs + offset,
				EndMs:    c.EndMs + offset,
				Text:     c.Text,
				Speaker:  c.Speaker,
			})
		}
		offset += ch.DurationMs
	}
	return out, nil
}
