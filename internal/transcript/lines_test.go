package transcript

import (
	"strings"
	"testing"
)

func TestLineBuilder(t *testing.T) {
	tests := []struct {
		name  string
		words [][2]string
		want  []string
	}{
		{"empty", nil, nil},
		{"single speaker", [][2]string{{"1", "hello"}, {"1", "world."}}, []string{"SPEAKER_1: hello world."}},
		{
			"speaker change",
			[][2]string{{"1", "hi"}, {"2", "hey"}, {"2", "there"}, {"1", "ok"}},
			[]string{"SPEAKER_1: hi", "SPEAKER_2: hey there", "SPEAKER_1: ok"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b LineBuilder
			for _, w := range tt.words {
				b.Add(w[0], w[1])
			}
			got := b.Lines()
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLineBuilder_LinesIsIdempotent(t *testing.T) {
	var b LineBuilder
	b.Add("1", "a")
	first := b.Lines()
	second := b.Lines()
	if len(first) != 1 || len(second) != 1 {
		t.Errorf("expected one line on both calls, got %d and %d", len(first), len(second))
	}
}

func TestJoinTranscripts(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{nil, ""},
		{[]string{"a"}, "a"},
		{[]string{"a", "b"}, "a\nb"},
		{[]string{"", "b"}, "b"},
		{[]string{"a", ""}, "a"},
		{[]string{"  a", "b  "}, "a\nb"},
	}
	for _, tt := range tests {
		if got := JoinTranscripts(tt.parts); got != tt.want {
			t.Errorf("JoinTranscripts(%q) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}
