package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
)

// GoogleConfig configures batch recognition on Speech-to-Text v2.
type GoogleConfig struct {
	ProjectID         string
	Location          string
	OutputBucket      string
	Model             string
	Encoding          string
	SampleRateHertz   int
	AudioChannelCount int
	MinSpeakers       int
	MaxSpeakers       int
	// Endpoint overrides https://<location>-speech.googleapis.com/v2
	Endpoint         string
	SubmitsPerMinute int
}

// GoogleProvider runs batchRecognize jobs that write native JSON results to GCS.
type GoogleProvider struct {
	client   *http.Client
	cfg      GoogleConfig
	endpoint string
	limiter  *rate.Limiter
}

// NewGoogleProvider creates a provider on top of an authorized HTTP client.
func NewGoogleProvider(client *http.Client, cfg GoogleConfig) *GoogleProvider {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s-speech.googleapis.com/v2", cfg.Location)
	}
	limit := rate.Inf
	if cfg.SubmitsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.SubmitsPerMinute) / 60.0)
	}
	return &GoogleProvider{
		client:   client,
		cfg:      cfg,
		endpoint: strings.TrimSuffix(endpoint, "/"),
		limiter:  rate.NewLimiter(limit, 1),
	}
}

type recognizeRequest struct {
	Config                  recognitionConfig `json:"config"`
	Files                   []fileMetadata    `json:"files"`
	RecognitionOutputConfig outputConfig      `json:"recognitionOutputConfig"`
}

type recognitionConfig struct {
	Model                  string             `json:"model"`
	LanguageCodes          []string           `json:"languageCodes"`
	ExplicitDecodingConfig decodingConfig     `json:"explicitDecodingConfig"`
	Features               recognitionFeature `json:"features"`
}

type decodingConfig struct {
	Encoding          string `json:"encoding"`
	SampleRateHertz   int    `json:"sampleRateHertz"`
	AudioChannelCount int    `json:"audioChannelCount"`
}

type recognitionFeature struct {
	EnableWordTimeOffsets bool              `json:"enableWordTimeOffsets"`
	DiarizationConfig     diarizationConfig `json:"diarizationConfig"`
}

type diarizationConfig struct {
	MinSpeakerCount int `json:"minSpeakerCount"`
	MaxSpeakerCount int `json:"maxSpeakerCount"`
}

type fileMetadata struct {
	URI string `json:"uri"`
}

type outputConfig struct {
	GcsOutputConfig struct {
		URI string `json:"uri"`
	} `json:"gcsOutputConfig"`
	OutputFormatConfig struct {
		Native struct{} `json:"native"`
	} `json:"outputFormatConfig"`
}

type rpcStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type operation struct {
	Name     string          `json:"name"`
	Done     bool            `json:"done"`
	Error    *rpcStatus      `json:"error"`
	Response *batchRecognize `json:"response"`
}

type batchRecognize struct {
	Results map[string]struct {
		Error              *rpcStatus `json:"error"`
		CloudStorageResult *struct {
			URI string `json:"uri"`
		} `json:"cloudStorageResult"`
	} `json:"results"`
}

// Submit starts a batchRecognize job for audioRef and returns the operation name.
func (p *GoogleProvider) Submit(ctx context.Context, audioRef, languageCode string, jc JobContext) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("submit rate limiter: %w", err)
	}

	req := recognizeRequest{
		Config: recognitionConfig{
			Model:         p.cfg.Model,
			LanguageCodes: []string{languageCode},
			ExplicitDecodingConfig: decodingConfig{
				Encoding:          p.cfg.Encoding,
				SampleRateHertz:   p.cfg.SampleRateHertz,
				AudioChannelCount: p.cfg.AudioChannelCount,
			},
			Features: recognitionFeature{
				EnableWordTimeOffsets: true,
				DiarizationConfig: diarizationConfig{
					MinSpeakerCount: p.cfg.MinSpeakers,
					MaxSpeakerCount: p.cfg.MaxSpeakers,
				},
			},
		},
		Files: []fileMetadata{{URI: audioRef}},
	}
	req.RecognitionOutputConfig.GcsOutputConfig.URI = fmt.Sprintf("gs://%s/%s/meet_%d/out/",
		p.cfg.OutputBucket, jc.Date, jc.MeetingID)

	url := fmt.Sprintf("%s/projects/%s/locations/%s/recognizers/_:batchRecognize",
		p.endpoint, p.cfg.ProjectID, p.cfg.Location)

	var op operation
	if err := p.do(ctx, http.MethodPost, url, req, &op); err != nil {
		return "", fmt.Errorf("batchRecognize: %w", err)
	}
	if op.Name == "" {
		return "", fmt.Errorf("batchRecognize: empty operation name")
	}
	slog.Debug("recognition job submitted", "audio", audioRef, "operation", op.Name)
	return op.Name, nil
}

// Status fetches the long-running operation. Operation-level and file-level
// errors are both reported as JobFailed.
func (p *GoogleProvider) Status(ctx context.Context, handle string) (JobStatus, error) {
	var op operation
	if err := p.do(ctx, http.MethodGet, p.endpoint+"/"+handle, nil, &op); err != nil {
		return JobStatus{}, fmt.Errorf("get operation: %w", err)
	}
	if !op.Done {
		return JobStatus{State: JobRunning}, nil
	}
	if op.Error != nil {
		return JobStatus{State: JobFailed, Message: op.Error.Message}, nil
	}
	if op.Response == nil {
		return JobStatus{State: JobDone}, nil
	}

	keys := make([]string, 0, len(op.Response.Results))
	for k := range op.Response.Results {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	refs := make([]string, 0, len(keys))
	for _, k := range keys {
		fr := op.Response.Results[k]
		if fr.Error != nil {
			return JobStatus{State: JobFailed, Message: fr.Error.Message}, nil
		}
		if fr.CloudStorageResult == nil || fr.CloudStorageResult.URI == "" {
			return JobStatus{}, fmt.Errorf("operation %s: file %s has no result uri", handle, k)
		}
		refs = append(refs, fr.CloudStorageResult.URI)
	}
	return JobStatus{State: JobDone, ResultRefs: refs}, nil
}

func (p *GoogleProvider) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
