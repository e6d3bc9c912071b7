package meeting

import (
	"fmt"
	"strings"

	"github.com/codebuildervaibhav/meeting-stt/internal/apperr"
	"github.com/codebuildervaibhav/meeting-stt/internal/types"
)

// Subtitle output formats.
const (
	FormatJSON = "json"
	FormatSRT  = "srt"
	FormatVTT  = "vtt"
)

// ParseFormat validates a requested subtitle format. Empty means JSON.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatSRT, FormatVTT:
		return f, nil
	default:
		return "", apperr.Validation("unsupported subtitle format %q", s)
	}
}

// formatTimestamp renders ms as HH:MM:SS<sep>mmm.
func formatTimestamp(ms int64, sep string) string {
	if ms < 0 {
		ms = 0
	}
	hours := ms / 3_600_000
	minutes := ms / 60_000 % 60
	secs := ms / 1000 % 60
	millis := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, secs, sep, millis)
}

func cueText(c types.MeetingCue) string {
	return fmt.Sprintf("SPEAKER_%s: %s", c.Speaker, c.Text)
}

// RenderSRT renders cues as a SubRip document.
func RenderSRT(cues []types.MeetingCue) string {
	var sb strings.Builder
	for i, c := range cues {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n",
			i+1, formatTimestamp(c.StartMs, ","), formatTimestamp(c.EndMs, ","), cueText(c))
	}
	return sb.String()
}

// RenderVTT renders cues as a WebVTT document.
func RenderVTT(cues []types.MeetingCue) string {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")
	for _, c := range cues {
		fmt.Fprintf(&sb, "%s --> %s\n%s\n\n",
			formatTimestamp(c.StartMs, "."), formatTimestamp(c.EndMs, "."), cueText(c))
	}
	return sb.String()
}
