package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codebuildervaibhav/meeting-stt/internal/types"
)

// LocalStorage handles saving meeting exports to the local filesystem
type LocalStorage struct {
	outputDir string
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(outputDir string) *LocalStorage {
	return &LocalStorage{
		outputDir: outputDir,
	}
}

// SaveExport writes transcript, subtitles and metadata under a dated directory
// and returns the transcript path.
func (ls *LocalStorage) SaveExport(exp *types.MeetingExport) (string, error) {
	// outputs/2025/01/23/
	t := exp.ExportedAt
	dateDir := filepath.Join(ls.outputDir,
		fmt.Sprintf("%d", t.Year()),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", t.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %w", err)
	}

	baseFilename := exportBaseName(exp)
	txtPath := filepath.Join(dateDir, baseFilename+".txt")
	srtPath := filepath.Join(dateDir, baseFilename+".srt")
	metaPath := filepath.Join(dateDir, baseFilename+"_meta.json")

	if err := os.WriteFile(txtPath, []byte(exp.Transcript), 0644); err != nil {
		return "", fmt.Errorf("failed to save transcript: %w", err)
	}
	if err := os.WriteFile(srtPath, []byte(exp.SRT), 0644); err != nil {
		return "", fmt.Errorf("failed to save subtitles: %w", err)
	}

	meta := exportMetadata(exp)
	meta["local_path"] = txtPath
	meta["srt_path"] = srtPath

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, metaJSON, 0644); err != nil {
		return "", fmt.Errorf("failed to save metadata: %w", err)
	}

	return txtPath, nil
}

// exportBaseName: 20250123_143022_meeting_1737612345000123
func exportBaseName(exp *types.MeetingExport) string {
	return fmt.Sprintf("%s_meeting_%d", exp.ExportedAt.Format("20060102_150405"), exp.MeetingID)
}

func exportMetadata(exp *types.MeetingExport) map[string]interface{} {
	return map[string]interface{}{
		"meeting_id":       exp.MeetingID,
		"total_chunks":     exp.TotalChunks,
		"completed_chunks": exp.CompletedChunks,
		"cue_count":        exp.CueCount,
		"duration_ms":      exp.DurationMs,
		"exported_at":      exp.ExportedAt,
	}
}
