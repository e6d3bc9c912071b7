package transcript

import "strings"

// LineBuilder groups words into "SPEAKER_<id>: ..." lines, opening a new line
// whenever the speaker changes.
type LineBuilder struct {
	lines   []string
	current strings.Builder
	speaker string
	open    bool
}

// Add appends word spoken by speaker.
func (b *LineBuilder) Add(speaker, word string) {
	if b.open && speaker == b.speaker {
		b.current.WriteByte(' ')
		b.current.WriteString(word)
		return
	}
	b.flush()
	b.open = true
	b.speaker = speaker
	b.current.WriteString("SPEAKER_")
	b.current.WriteString(speaker)
	b.current.WriteString(": ")
	b.current.WriteString(word)
}

// Lines closes the open line and returns every line built so far.
func (b *LineBuilder) Lines() []string {
	b.flush()
	return b.lines
}

func (b *LineBuilder) flush() {
	if !b.open {
		return
	}
	b.lines = append(b.lines, strings.TrimSpace(b.current.String()))
	b.current.Reset()
	b.open = false
}

// JoinTranscripts concatenates transcripts with single newlines, skipping the
// separator while nothing has been written yet, and trims the result.
func JoinTranscripts(parts []string) string {
	var sb strings.Builder
	for _, p := range parts {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(p)
	}
	return strings.TrimSpace(sb.String())
}
