package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/codebuildervaibhav/meeting-stt/internal/apperr"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port                  int    `yaml:"port"`
		Host                  string `yaml:"host"`
		RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	} `yaml:"server"`

	Google struct {
		CredentialsFile string `yaml:"credentials_file"`
		ProjectID       string `yaml:"project_id"`
		Location        string `yaml:"location"`
		SpeechEndpoint  string `yaml:"speech_endpoint"`
	} `yaml:"google"`

	STT struct {
		Model             string `yaml:"model"`
		DefaultLanguage   string `yaml:"default_language"`
		Encoding          string `yaml:"encoding"`
		SampleRateHertz   int    `yaml:"sample_rate_hertz"`
		AudioChannelCount int    `yaml:"audio_channel_count"`
		MinSpeakers       int    `yaml:"min_speakers"`
		MaxSpeakers       int    `yaml:"max_speakers"`
		SubmitsPerMinute  int    `yaml:"submits_per_minute"`
	} `yaml:"stt"`

	Storage struct {
		Bucket    string `yaml:"bucket"`
		LocalPath string `yaml:"local_path"`
		TempDir   string `yaml:"temp_dir"`
		OutputDir string `yaml:"output_dir"`
		Database  string `yaml:"database"`
	} `yaml:"storage"`

	Media struct {
		FFmpegPath        string `yaml:"ffmpeg_path"`
		FFprobePath       string `yaml:"ffprobe_path"`
		UploadConcurrency int    `yaml:"upload_concurrency"`
	} `yaml:"media"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
		MaxBatchFiles int `yaml:"max_batch_files"`
	} `yaml:"limits"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns a Config with every default filled in.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	setString(&c.Server.Host, "0.0.0.0")
	setInt(&c.Server.Port, 8080)
	setInt(&c.Server.RequestTimeoutSeconds, 120)

	setString(&c.Google.Location, "us")

	setString(&c.STT.Model, "chirp_3")
	setString(&c.STT.DefaultLanguage, "ko-KR")
	setString(&c.STT.Encoding, "WEBM_OPUS")
	setInt(&c.STT.SampleRateHertz, 48000)
	setInt(&c.STT.AudioChannelCount, 1)
	setInt(&c.STT.MinSpeakers, 2)
	setInt(&c.STT.MaxSpeakers, 6)

	setString(&c.Storage.LocalPath, "./data/objects")
	setString(&c.Storage.TempDir, "./temp")
	setString(&c.Storage.OutputDir, "./exports")
	setString(&c.Storage.Database, "./data/meetings.db")

	setInt(&c.Media.UploadConcurrency, 4)

	setInt(&c.Cleanup.IntervalMinutes, 30)
	setInt(&c.Cleanup.MaxAgeHours, 6)

	setString(&c.GoogleDrive.TokenFile, "./config/token.json")
	setString(&c.GoogleDrive.FolderName, "Meeting Transcripts")

	setInt(&c.Limits.MaxFileSizeMB, 200)
	setInt(&c.Limits.MaxBatchFiles, 50)

	setString(&c.Log.Level, "info")
}

// Load reads the YAML file at path, loads .env into the process environment,
// applies MEETSTT_* overrides and fills defaults. A missing file is an error
// only when path is non-empty.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	c := &Config{}
	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(file, c); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"MEETSTT_HOST":               &c.Server.Host,
		"MEETSTT_GOOGLE_CREDENTIALS": &c.Google.CredentialsFile,
		"MEETSTT_PROJECT_ID":         &c.Google.ProjectID,
		"MEETSTT_LOCATION":           &c.Google.Location,
		"MEETSTT_BUCKET":             &c.Storage.Bucket,
		"MEETSTT_DATABASE":           &c.Storage.Database,
		"MEETSTT_TEMP_DIR":           &c.Storage.TempDir,
		"MEETSTT_DEFAULT_LANGUAGE":   &c.STT.DefaultLanguage,
		"MEETSTT_DRIVE_CREDENTIALS":  &c.GoogleDrive.CredentialsFile,
		"MEETSTT_LOG_LEVEL":          &c.Log.Level,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	if c.Google.CredentialsFile == "" {
		if v, ok := lookup("GOOGLE_APPLICATION_CREDENTIALS"); ok {
			c.Google.CredentialsFile = v
		}
	}
	if v, ok := lookup("MEETSTT_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return apperr.FatalConfig("MEETSTT_PORT=%q is not a number", v)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return apperr.FatalConfig("server.port %d out of range", c.Server.Port)
	}
	if c.Google.ProjectID == "" {
		return apperr.FatalConfig("google.project_id is required")
	}
	if c.Storage.Bucket == "" {
		return apperr.FatalConfig("storage.bucket is required for recognition output")
	}
	if c.STT.MinSpeakers > c.STT.MaxSpeakers {
		return apperr.FatalConfig("stt.min_speakers %d exceeds max_speakers %d", c.STT.MinSpeakers, c.STT.MaxSpeakers)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses log.level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(c.Log.Level))); err != nil {
		return 0, apperr.FatalConfig("log.level %q: %v", c.Log.Level, err)
	}
	return lvl, nil
}

// DriveEnabled reports whether Drive credentials were configured.
func (c *Config) DriveEnabled() bool {
	return c.GoogleDrive.CredentialsFile != ""
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}
