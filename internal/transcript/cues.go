package transcript

import (
	"cmp"
	"slices"
	"strings"

	"github.com/codebuildervaibhav/meeting-stt/internal/types"
)

// BuildCues segments words into subtitle cues. Words are processed sorted by
// (start, end); a cue closes on a speaker change or after a word ending in ".".
// The input slice is not modified.
func BuildCues(words []types.WordSegment) []types.Cue {
	sorted := slices.Clone(words)
	slices.SortStableFunc(sorted, func(a, b types.WordSegment) int {
		if a.StartMs != b.StartMs {
			return cmp.Compare(a.StartMs, b.StartMs)
		}
		return cmp.Compare(a.EndMs, b.EndMs)
	})

	var (
		cues []types.Cue
		acc  cueAccumulator
	)
	for _, w := range sorted {
		switch {
		case !acc.open:
			acc.start(w)
		case acc.speaker != w.Speaker:
			cues = append(cues, acc.close())
			acc.start(w)
		default:
			acc.endMs = max(acc.endMs, w.EndMs)
		}
		acc.appendWord(w.Word)
		if strings.HasSuffix(w.Word, ".") {
			cues = append(cues, acc.close())
		}
	}
	if acc.open {
		cues = append(cues, acc.close())
	}
	return cues
}

type cueAccumulator struct {
	open    bool
	speaker string
	startMs int64
	endMs   int64
	text    strings.Builder
}

func (a *cueAccumulator) start(w types.WordSegment) {
	a.open = true
	a.speaker = w.Speaker
	a.startMs = w.StartMs
	a.endMs = w.EndMs
	a.text.Reset()
}

func (a *cueAccumulator) appendWord(word string) {
	if a.text.Len() > 0 {
		a.text.WriteByte(' ')
	}
	a.text.WriteString(word)
}

func (a *cueAccumulator) close() types.Cue {
	c := types.Cue{
		StartMs: a.startMs,
		EndMs:   a.endMs,
		Text:    strings.TrimSpace(a.text.String()),
		Speaker: a.speaker,
	}
	a.open = false
	a.text.Reset()
	return c
}
