package transcript

import (
	"encoding/json"

	"github.com/codebuildervaibhav/meeting-stt/internal/apperr"
	"github.com/codebuildervaibhav/meeting-stt/internal/types"
)

// nativeResult mirrors the recognizer's native output file:
// results[*].alternatives[0].words[*]
type nativeResult struct {
	Results []struct {
		Alternatives []struct {
			Words []RawWord `json:"words"`
		} `json:"alternatives"`
	} `json:"results"`
}

// FileResult is the parsed content of one raw result file.
type FileResult struct {
	Transcript string
	Words      []types.WordSegment
	// Dropped counts leading untimed words of results that never saw a timed word.
	Dropped int
}

// ChunkResult is the transcript and cues derived from every file of one job.
type ChunkResult struct {
	Transcript string
	Cues       []types.Cue
	Dropped    int
}

// ParseFile parses a raw result file. Any deviation from the expected shape is
// a ParsingError; no partial result is returned.
func ParseFile(data []byte) (*FileResult, error) {
	var raw nativeResult
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperr.Parsing(err, "decode recognition result")
	}

	out := &FileResult{}
	var lines []string
	for i, res := range raw.Results {
		if len(res.Alternatives) == 0 {
			return nil, apperr.Parsing(nil, "result %d has no alternatives", i)
		}
		norm := NewNormalizer()
		var lb LineBuilder
		for _, w := range res.Alternatives[0].Words {
			tok, segs, err := norm.Add(w)
			if err != nil {
				return nil, err
			}
			lb.Add(tok.Speaker, tok.Word)
			out.Words = append(out.Words, segs...)
		}
		out.Dropped += norm.Pending()
		lines = append(lines, lb.Lines()...)
	}
	out.Transcript = JoinTranscripts(lines)
	return out, nil
}

// BuildChunkResult combines the files of one job: transcripts are joined with
// newlines and cues are segmented per file, then concatenated in file order.
func BuildChunkResult(files []*FileResult) *ChunkResult {
	out := &ChunkResult{}
	parts := make([]string, 0, len(files))
	for _, f := range files {
		parts = append(parts, f.Transcript)
		out.Cues = append(out.Cues, BuildCues(f.Words)...)
		out.Dropped += f.Dropped
	}
	out.Transcript = JoinTranscripts(parts)
	return out
}
