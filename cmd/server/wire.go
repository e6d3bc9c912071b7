package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/codebuildervaibhav/meeting-stt/internal/config"
	"github.com/codebuildervaibhav/meeting-stt/internal/media"
	"github.com/codebuildervaibhav/meeting-stt/internal/meeting"
	"github.com/codebuildervaibhav/meeting-stt/internal/storage"
	"github.com/codebuildervaibhav/meeting-stt/internal/stt"
)

// components holds what wire builds and what must be closed on exit.
type components struct {
	cfg     *config.Config
	service *meeting.Service
	db      *storage.MetadataDB
	cache   *storage.BadgerStore
}

func (a *components) Close() {
	if err := a.cache.Close(); err != nil {
		slog.Warn("failed to close object cache", "error", err)
	}
	if err := a.db.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}

// loadConfig loads and validates configuration and sets up logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := cfg.SlogLevel()
	setupLogging(level)
	return cfg, nil
}

// wire builds every component. withDrive enables the Drive export client,
// which may run an interactive OAuth flow on first use.
func wire(ctx context.Context, cfg *config.Config, withDrive bool) (*components, error) {
	if err := os.MkdirAll(cfg.Storage.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	httpClient, err := storage.NewGoogleHTTPClient(ctx, cfg.Google.CredentialsFile, storage.CloudPlatformScope)
	if err != nil {
		return nil, err
	}

	gcsStore, err := storage.NewGCSStore(ctx, httpClient, cfg.Storage.Bucket)
	if err != nil {
		return nil, err
	}

	cache, err := storage.NewBadgerStore(cfg.Storage.LocalPath, cfg.Storage.Bucket)
	if err != nil {
		return nil, err
	}

	objects, err := storage.NewMux(storage.SchemeGCS, map[string]storage.ObjectStore{
		storage.SchemeGCS:   gcsStore,
		storage.SchemeLocal: cache,
	})
	if err != nil {
		cache.Close()
		return nil, err
	}

	db, err := storage.NewMetadataDB(cfg.Storage.Database)
	if err != nil {
		cache.Close()
		return nil, err
	}

	provider := stt.NewGoogleProvider(httpClient, stt.GoogleConfig{
		ProjectID:         cfg.Google.ProjectID,
		Location:          cfg.Google.Location,
		OutputBucket:      cfg.Storage.Bucket,
		Model:             cfg.STT.Model,
		Encoding:          cfg.STT.Encoding,
		SampleRateHertz:   cfg.STT.SampleRateHertz,
		AudioChannelCount: cfg.STT.AudioChannelCount,
		MinSpeakers:       cfg.STT.MinSpeakers,
		MaxSpeakers:       cfg.STT.MaxSpeakers,
		Endpoint:          cfg.Google.SpeechEndpoint,
		SubmitsPerMinute:  cfg.STT.SubmitsPerMinute,
	})
	ff := media.NewFFmpeg(cfg.Storage.TempDir, cfg.Media.FFmpegPath, cfg.Media.FFprobePath, ".webm")

	svcCfg := meeting.Config{
		Store:             db,
		Objects:           objects,
		Cache:             cache,
		Provider:          provider,
		Poller:            stt.NewMachine(provider, objects, cfg.STT.DefaultLanguage),
		Prober:            ff,
		Concat:            ff,
		Archive:           storage.NewLocalStorage(cfg.Storage.OutputDir),
		DefaultLanguage:   cfg.STT.DefaultLanguage,
		UploadConcurrency: cfg.Media.UploadConcurrency,
	}

	// Google Drive client (optional - may fail if credentials not set up)
	if withDrive && cfg.DriveEnabled() {
		driveClient, err := storage.NewDriveClient(ctx,
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cfg.GoogleDrive.FolderName,
		)
		if err != nil {
			slog.Warn("Google Drive not available, exports are saved locally only", "error", err)
		} else {
			svcCfg.Drive = driveClient
			slog.Info("Google Drive export enabled", "folder", cfg.GoogleDrive.FolderName)
		}
	}

	return &components{
		cfg:     cfg,
		service: meeting.NewService(svcCfg),
		db:      db,
		cache:   cache,
	}, nil
}
