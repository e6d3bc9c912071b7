package cleanup

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Scheduler removes ffprobe/ffmpeg scratch files left behind in the temp
// directory, for example after a crash mid-merge.
type Scheduler struct {
	tempDir  string
	interval time.Duration
	maxAge   time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(tempDir string, intervalMinutes, maxAgeHours int) *Scheduler {
	return &Scheduler{
		tempDir:  tempDir,
		interval: time.Duration(intervalMinutes) * time.Minute,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
		stopChan: make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval.
func (s *Scheduler) Start() {
	slog.Info("running initial temp file cleanup", "dir", s.tempDir)
	s.Sweep(time.Now())

	ticker := time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case now := <-ticker.C:
				s.Sweep(now)
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	slog.Info("cleanup scheduler started", "interval", s.interval, "maxAge", s.maxAge)
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		slog.Info("cleanup scheduler stopped")
	})
}

// Sweep removes files older than maxAge and then any directories the sweep
// left empty. It returns the number of files and bytes removed.
func (s *Scheduler) Sweep(now time.Time) (int, int64) {
	var (
		deletedCount int
		deletedSize  int64
		dirs         []string
	)

	err := filepath.Walk(s.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != s.tempDir {
				dirs = append(dirs, path)
			}
			return nil
		}

		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			return nil
		}
		size := info.Size()
		if err := os.Remove(path); err != nil {
			slog.Warn("failed to delete old temp file", "path", path, "error", err)
			return nil
		}
		deletedCount++
		deletedSize += size
		slog.Debug("deleted old temp file", "file", filepath.Base(path), "age", age.Round(time.Minute), "bytes", size)
		return nil
	})
	if err != nil {
		slog.Error("error during cleanup", "error", err)
	}

	// Deepest first so nested scratch dirs collapse in one pass.
	for i := len(dirs) - 1; i >= 0; i-- {
		if entries, err := os.ReadDir(dirs[i]); err == nil && len(entries) == 0 {
			os.Remove(dirs[i])
		}
	}

	if deletedCount > 0 {
		slog.Info("cleanup complete", "files", deletedCount, "freedMB", float64(deletedSize)/(1024*1024))
	}
	return deletedCount, deletedSize
}

// EnsureTempDirExists creates the temp directory if it doesn't exist
func EnsureTempDirExists(tempDir string) error {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return err
	}
	slog.Info("temp directory ready", "dir", tempDir)
	return nil
}
