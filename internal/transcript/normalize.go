package transcript

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/codebuildervaibhav/meeting-stt/internal/apperr"
	"github.com/codebuildervaibhav/meeting-stt/internal/types"
)

// DefaultSpeaker is used when no word before the current one carried a numeric tag.
const DefaultSpeaker = "0"

var firstNumber = regexp.MustCompile(`\d+`)

// RawWord is one word entry as emitted by the recognizer.
// Offsets are "<decimal-seconds>s" strings; empty means unknown.
type RawWord struct {
	Word         string `json:"word"`
	SpeakerLabel string `json:"speakerLabel"`
	StartOffset  string `json:"startOffset"`
	EndOffset    string `json:"endOffset"`
}

// Token is a word with its resolved speaker, in emission order.
type Token struct {
	Speaker string
	Word    string
}

// NormalizeSpeaker returns the first run of digits in label, or "" if there is none.
func NormalizeSpeaker(label string) string {
	return firstNumber.FindString(label)
}

// ResolveSpeaker applies the speaker fallback: the label's digits, else the
// previous word's speaker, else DefaultSpeaker.
func ResolveSpeaker(label, previous string) string {
	if id := NormalizeSpeaker(label); id != "" {
		return id
	}
	if previous != "" {
		return previous
	}
	return DefaultSpeaker
}

// maxOffsetSeconds bounds offsets well below the int64 millisecond range.
const maxOffsetSeconds = math.MaxInt64 / 1000 / 1024

// ParseOffset converts "1.234s" into milliseconds.
// ok is false when the offset is absent.
func ParseOffset(text string) (ms int64, ok bool, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false, nil
	}
	seconds, err := strconv.ParseFloat(strings.TrimSuffix(text, "s"), 64)
	if err != nil {
		return 0, false, apperr.Parsing(err, "invalid offset %q", text)
	}
	if math.IsNaN(seconds) || seconds < 0 || seconds > maxOffsetSeconds {
		return 0, false, apperr.Parsing(nil, "offset out of range %q", text)
	}
	return int64(math.Round(seconds * 1000)), true, nil
}

// Normalizer repairs word timings for the words of a single recognition result.
// The zero value is not ready; use NewNormalizer.
type Normalizer struct {
	pending     []types.WordSegment
	prevEndMs   int64
	lastSpeaker string
}

func NewNormalizer() *Normalizer {
	return &Normalizer{prevEndMs: -1}
}

// Add normalizes the next raw word. It returns the word's resolved token and the
// segments that became fully timed by this word, in original order.
// Leading words without any timing are held back until the first timed word.
func (n *Normalizer) Add(raw RawWord) (Token, []types.WordSegment, error) {
	tok := Token{
		Speaker: ResolveSpeaker(raw.SpeakerLabel, n.lastSpeaker),
		Word:    strings.TrimSpace(raw.Word),
	}
	n.lastSpeaker = tok.Speaker

	start, hasStart, err := ParseOffset(raw.StartOffset)
	if err != nil {
		return tok, nil, err
	}
	end, hasEnd, err := ParseOffset(raw.EndOffset)
	if err != nil {
		return tok, nil, err
	}

	if !hasStart && !hasEnd && n.prevEndMs < 0 {
		n.pending = append(n.pending, types.WordSegment{Speaker: tok.Speaker, Word: tok.Word})
		return tok, nil, nil
	}

	start, end = repairTiming(start, hasStart, end, hasEnd, n.prevEndMs)
	out := backfill(n.pending, start)
	n.pending = nil
	out = append(out, types.WordSegment{StartMs: start, EndMs: end, Speaker: tok.Speaker, Word: tok.Word})
	n.prevEndMs = end
	return tok, out, nil
}

// Pending returns how many untimed words are still waiting for a timed word.
// Words still pending when a result ends are dropped.
func (n *Normalizer) Pending() int {
	return len(n.pending)
}

// repairTiming fills in unknown offsets. prevEnd < 0 means no segment was emitted yet.
func repairTiming(start int64, hasStart bool, end int64, hasEnd bool, prevEnd int64) (int64, int64) {
	if !hasStart {
		if prevEnd >= 0 {
			start = prevEnd
		} else {
			start = max(0, end-1)
		}
	}
	if !hasEnd || end <= start {
		end = start + 1
	}
	return start, end
}

// backfill places pending words in consecutive 1ms slots just before start.
func backfill(pending []types.WordSegment, start int64) []types.WordSegment {
	if len(pending) == 0 {
		return nil
	}
	base := max(0, start-int64(len(pending)))
	out := make([]types.WordSegment, 0, len(pending)+1)
	for i, p := range pending {
		p.StartMs = base + int64(i)
		p.EndMs = p.StartMs + 1
		out = append(out, p)
	}
	return out
}
