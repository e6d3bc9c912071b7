package media

import (
	"bytes"
	"context"
	"testing"
)

func TestParseProbeDuration(t *testing.T) {
	tests := []struct {
		output  string
		want    int64
		wantErr bool
	}{
		{"5.000000\n", 5000, false},
		{"2.9995", 3000, false},
		{" 0.001 ", 1, false},
		{"0.0004", 0, true},
		{"0", 0, true},
		{"-1.5", 0, true},
		{"N/A", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseProbeDuration(tt.output)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseProbeDuration(%q) error = %v, wantErr %v", tt.output, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseProbeDuration(%q) = %d, want %d", tt.output, got, tt.want)
		}
	}
}

func TestConcatList(t *testing.T) {
	got := ConcatList([]string{"/tmp/a.webm", "/tmp/it's.webm"})
	want := "file '/tmp/a.webm'\nfile '/tmp/it'\\''s.webm'\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConcat_SingleInputPassesThrough(t *testing.T) {
	f := NewFFmpeg(t.TempDir(), "", "", "")
	in := []byte("webm-bytes")
	out, err := f.Concat(context.Background(), [][]byte{in})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, in) {
		t.Errorf("got %q, want input unchanged", out)
	}
}

func TestConcat_Empty(t *testing.T) {
	f := NewFFmpeg(t.TempDir(), "", "", "")
	if _, err := f.Concat(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestValidateAudioFormat(t *testing.T) {
	tests := map[string]bool{
		"chunk.webm": true,
		"CHUNK.WEBM": true,
		"a.ogg":      true,
		"a.mp3":      false,
		"noext":      false,
	}
	for name, want := range tests {
		if got := ValidateAudioFormat(name); got != want {
			t.Errorf("ValidateAudioFormat(%q) = %v, want %v", name, got, want)
		}
	}
}
