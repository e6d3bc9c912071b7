package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *GoogleProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewGoogleProvider(srv.Client(), GoogleConfig{
		ProjectID:         "proj",
		Location:          "us-central1",
		OutputBucket:      "bucket",
		Model:             "chirp_3",
		Encoding:          "WEBM_OPUS",
		SampleRateHertz:   48000,
		AudioChannelCount: 1,
		MinSpeakers:       2,
		MaxSpeakers:       6,
		Endpoint:          srv.URL + "/v2",
	})
}

func TestGoogleProvider_Submit(t *testing.T) {
	var got recognizeRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/v2/projects/proj/locations/us-central1/recognizers/_:batchRecognize" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"name":"projects/proj/locations/us-central1/operations/42"}`))
	})

	handle, err := p.Submit(context.Background(), "gs://bucket/in/chunk_1.webm", "ko-KR",
		JobContext{MeetingID: 99, Date: "2026-02-25"})
	if err != nil {
		t.Fatal(err)
	}
	if handle != "projects/proj/locations/us-central1/operations/42" {
		t.Errorf("handle = %q", handle)
	}
	if got.RecognitionOutputConfig.GcsOutputConfig.URI != "gs://bucket/2026-02-25/meet_99/out/" {
		t.Errorf("output uri = %q", got.RecognitionOutputConfig.GcsOutputConfig.URI)
	}
	if len(got.Files) != 1 || got.Files[0].URI != "gs://bucket/in/chunk_1.webm" {
		t.Errorf("files = %+v", got.Files)
	}
	if !got.Config.Features.EnableWordTimeOffsets || got.Config.LanguageCodes[0] != "ko-KR" {
		t.Errorf("config = %+v", got.Config)
	}
}

func TestGoogleProvider_SubmitHTTPError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	})
	if _, err := p.Submit(context.Background(), "gs://b/a", "en-US", JobContext{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestGoogleProvider_Status(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantState JobState
		wantRefs  []string
		wantMsg   string
	}{
		{"running", `{"name":"op","done":false}`, JobRunning, nil, ""},
		{"operation error", `{"name":"op","done":true,"error":{"code":3,"message":"bad audio"}}`, JobFailed, nil, "bad audio"},
		{
			"file error",
			`{"done":true,"response":{"results":{"gs://b/a.webm":{"error":{"code":3,"message":"decode"}}}}}`,
			JobFailed, nil, "decode",
		},
		{
			"done",
			`{"done":true,"response":{"results":{
				"gs://b/z.webm":{"cloudStorageResult":{"uri":"gs://b/out/z.json"}},
				"gs://b/a.webm":{"cloudStorageResult":{"uri":"gs://b/out/a.json"}}}}}`,
			JobDone, []string{"gs://b/out/a.json", "gs://b/out/z.json"}, "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v2/projects/proj/operations/1" {
					t.Errorf("path = %s", r.URL.Path)
				}
				w.Write([]byte(tt.body))
			})
			st, err := p.Status(context.Background(), "projects/proj/operations/1")
			if err != nil {
				t.Fatal(err)
			}
			if st.State != tt.wantState || st.Message != tt.wantMsg {
				t.Errorf("got %+v", st)
			}
			if len(st.ResultRefs) != len(tt.wantRefs) {
				t.Fatalf("refs = %v, want %v", st.ResultRefs, tt.wantRefs)
			}
			for i := range tt.wantRefs {
				if st.ResultRefs[i] != tt.wantRefs[i] {
					t.Errorf("ref %d = %q, want %q", i, st.ResultRefs[i], tt.wantRefs[i])
				}
			}
		})
	}
}
