package media

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Prober measures the playback duration of an audio blob.
type Prober interface {
	Probe(ctx context.Context, audio []byte) (int64, error)
}

// Concatenator joins audio blobs of the same codec in order.
type Concatenator interface {
	Concat(ctx context.Context, inputs [][]byte) ([]byte, error)
}

// FFmpeg probes and concatenates audio with the ffprobe/ffmpeg binaries.
// Scratch files live in tempDir and are removed after each call.
type FFmpeg struct {
	tempDir string
	ffmpeg  string
	ffprobe string
	ext     string
}

// NewFFmpeg creates a runner. Empty binary paths resolve from PATH.
func NewFFmpeg(tempDir, ffmpegPath, ffprobePath, ext string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if ext == "" {
		ext = ".webm"
	}
	return &FFmpeg{tempDir: tempDir, ffmpeg: ffmpegPath, ffprobe: ffprobePath, ext: ext}
}

// Probe returns the duration of audio in milliseconds.
func (f *FFmpeg) Probe(ctx context.Context, audio []byte) (int64, error) {
	path := filepath.Join(f.tempDir, fmt.Sprintf("probe_%s%s", uuid.New().String(), f.ext))
	if err := os.WriteFile(path, audio, 0644); err != nil {
		return 0, fmt.Errorf("failed to write probe input: %w", err)
	}
	defer os.Remove(path)

	cmd := exec.CommandContext(ctx, f.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=nokey=1:noprint_wrappers=1",
		path,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w\nOutput: %s", err, string(output))
	}
	return ParseProbeDuration(string(output))
}

// ParseProbeDuration converts ffprobe's seconds output to milliseconds.
func ParseProbeDuration(output string) (int64, error) {
	text := strings.TrimSpace(output)
	seconds, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected ffprobe output %q: %w", text, err)
	}
	ms := int64(math.Round(seconds * 1000))
	if ms <= 0 {
		return 0, fmt.Errorf("invalid probed duration %q", text)
	}
	return ms, nil
}

// Concat joins inputs with the concat demuxer and stream copy, so no input is
// re-encoded. A single input is returned unchanged.
func (f *FFmpeg) Concat(ctx context.Context, inputs [][]byte) ([]byte, error) {
	switch len(inputs) {
	case 0:
		return nil, fmt.Errorf("nothing to concatenate")
	case 1:
		return inputs[0], nil
	}

	dir, err := os.MkdirTemp(f.tempDir, "merge_")
	if err != nil {
		return nil, fmt.Errorf("failed to create merge directory: %w", err)
	}
	defer os.RemoveAll(dir)

	paths := make([]string, len(inputs))
	for i, data := range inputs {
		p, err := filepath.Abs(filepath.Join(dir, fmt.Sprintf("chunk_%d%s", i+1, f.ext)))
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(p, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write chunk %d: %w", i+1, err)
		}
		paths[i] = p
	}

	listPath := filepath.Join(dir, "concat-inputs.txt")
	if err := os.WriteFile(listPath, []byte(ConcatList(paths)), 0644); err != nil {
		return nil, fmt.Errorf("failed to write concat list: %w", err)
	}

	outPath := filepath.Join(dir, "merged"+f.ext)
	cmd := exec.CommandContext(ctx, f.ffmpeg,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-fflags", "+genpts",
		outPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg merge failed: %w\nOutput: %s", err, string(output))
	}
	return os.ReadFile(outPath)
}

// ConcatList renders the concat demuxer input file for paths.
func ConcatList(paths []string) string {
	var sb strings.Builder
	for _, p := range paths {
		sb.WriteString("file '")
		sb.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		sb.WriteString("'\n")
	}
	return sb.String()
}

// ValidateAudioFormat checks if the file format is supported
func ValidateAudioFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	supportedFormats := []string{".webm", ".ogg", ".opus"}

	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
