package stt

import (
	"context"
	"errors"
	"testing"

	"github.com/codebuildervaibhav/meeting-stt/internal/apperr"
	"github.com/codebuildervaibhav/meeting-stt/internal/types"
)

type fakeProvider struct {
	status    map[string]JobStatus
	statusErr error
	submitted []string
	languages []string
	next      string
}

func (f *fakeProvider) Submit(_ context.Context, audioRef, languageCode string, _ JobContext) (string, error) {
	f.submitted = append(f.submitted, audioRef)
	f.languages = append(f.languages, languageCode)
	return f.next, nil
}

func (f *fakeProvider) Status(_ context.Context, handle string) (JobStatus, error) {
	if f.statusErr != nil {
		return JobStatus{}, f.statusErr
	}
	return f.status[handle], nil
}

type mapFetcher map[string][]byte

func (m mapFetcher) Get(_ context.Context, ref string) ([]byte, error) {
	data, ok := m[ref]
	if !ok {
		return nil, apperr.NotFound("object %s", ref)
	}
	return data, nil
}

func chunk(handle string) types.ChunkState {
	return types.ChunkState{
		MeetingID:    7,
		ChunkSeq:     1,
		AudioRef:     "gs://bucket/in/chunk_1.webm",
		JobHandle:    handle,
		Status:       types.StatusProcessing,
		LanguageCode: "en-US",
		CreatedDate:  "2026-01-02",
	}
}

func TestPoll_Running(t *testing.T) {
	p := &fakeProvider{status: map[string]JobStatus{"op1": {State: JobRunning}}}
	m := NewMachine(p, mapFetcher{}, "ko-KR")

	out, err := m.Poll(context.Background(), chunk("op1"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out.(Running); !ok {
		t.Fatalf("expected Running, got %T", out)
	}
	if len(p.submitted) != 0 {
		t.Errorf("running job must not be resubmitted")
	}
}

func TestPoll_FailedResubmitsOnce(t *testing.T) {
	p := &fakeProvider{
		status: map[string]JobStatus{"op1": {State: JobFailed, Message: "quota"}},
		next:   "op2",
	}
	m := NewMachine(p, mapFetcher{}, "ko-KR")

	out, err := m.Poll(context.Background(), chunk("op1"))
	if err != nil {
		t.Fatal(err)
	}
	res, ok := out.(Resubmitted)
	if !ok {
		t.Fatalf("expected Resubmitted, got %T", out)
	}
	if res.JobHandle != "op2" || res.ErrorMessage != "quota" {
		t.Errorf("got %+v", res)
	}
	if len(p.submitted) != 1 || p.submitted[0] != "gs://bucket/in/chunk_1.webm" {
		t.Errorf("submitted = %v", p.submitted)
	}
	if p.languages[0] != "en-US" {
		t.Errorf("language = %q", p.languages[0])
	}
}

func TestPoll_FailedUsesDefaultLanguage(t *testing.T) {
	p := &fakeProvider{status: map[string]JobStatus{"op1": {State: JobFailed}}, next: "op2"}
	m := NewMachine(p, mapFetcher{}, "ko-KR")
	c := chunk("op1")
	c.LanguageCode = " "

	if _, err := m.Poll(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	if p.languages[0] != "ko-KR" {
		t.Errorf("language = %q, want ko-KR", p.languages[0])
	}
}

func TestPoll_Completed(t *testing.T) {
	p := &fakeProvider{status: map[string]JobStatus{
		"op1": {State: JobDone, ResultRefs: []string{"gs://b/out/a.json", "gs://b/out/b.json"}},
	}}
	f := mapFetcher{
		"gs://b/out/a.json": []byte(`{"results":[{"alternatives":[{"words":[
			{"word":"hi.","speakerLabel":"1","startOffset":"0s","endOffset":"1.2s"}]}]}]}`),
		"gs://b/out/b.json": []byte(`{"results":[{"alternatives":[{"words":[
			{"word":"bye.","speakerLabel":"2","startOffset":"2s","endOffset":"2.5s"}]}]}]}`),
	}
	m := NewMachine(p, f, "ko-KR")

	out, err := m.Poll(context.Background(), chunk("op1"))
	if err != nil {
		t.Fatal(err)
	}
	res, ok := out.(Completed)
	if !ok {
		t.Fatalf("expected Completed, got %T", out)
	}
	if res.Transcript != "SPEAKER_1: hi.\nSPEAKER_2: bye." {
		t.Errorf("transcript = %q", res.Transcript)
	}
	want := []types.Cue{
		{StartMs: 0, EndMs: 1200, Text: "hi.", Speaker: "1"},
		{StartMs: 2000, EndMs: 2500, Text: "bye.", Speaker: "2"},
	}
	if len(res.Cues) != len(want) {
		t.Fatalf("cues = %+v", res.Cues)
	}
	for i := range want {
		if res.Cues[i] != want[i] {
			t.Errorf("cue %d = %+v, want %+v", i, res.Cues[i], want[i])
		}
	}
}

func TestPoll_CompletedWithoutFiles(t *testing.T) {
	p := &fakeProvider{status: map[string]JobStatus{"op1": {State: JobDone}}}
	m := NewMachine(p, mapFetcher{}, "ko-KR")

	out, err := m.Poll(context.Background(), chunk("op1"))
	if err != nil {
		t.Fatal(err)
	}
	res := out.(Completed)
	if res.Transcript != "" || len(res.Cues) != 0 {
		t.Errorf("expected empty completion, got %+v", res)
	}
}

func TestPoll_Errors(t *testing.T) {
	tests := []struct {
		name  string
		p     *fakeProvider
		f     mapFetcher
		check func(error) bool
	}{
		{
			name:  "status error",
			p:     &fakeProvider{statusErr: errors.New("boom")},
			check: func(err error) bool { return err != nil },
		},
		{
			name:  "missing result",
			p:     &fakeProvider{status: map[string]JobStatus{"op1": {State: JobDone, ResultRefs: []string{"gs://b/x"}}}},
			f:     mapFetcher{},
			check: apperr.IsNotFound,
		},
		{
			name:  "bad schema",
			p:     &fakeProvider{status: map[string]JobStatus{"op1": {State: JobDone, ResultRefs: []string{"gs://b/x"}}}},
			f:     mapFetcher{"gs://b/x": []byte(`{"results":[{"alternatives":[]}]}`)},
			check: apperr.IsParsing,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(tt.p, tt.f, "ko-KR")
			out, err := m.Poll(context.Background(), chunk("op1"))
			if !tt.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
			if out != nil {
				t.Errorf("expected no outcome, got %T", out)
			}
		})
	}
}
