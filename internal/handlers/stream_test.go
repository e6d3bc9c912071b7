package handlers

import (
	"context"
	"testing"

	"github.com/codebuildervaibhav/meeting-stt/internal/meeting"
)

func newSession(svc *fakeService, maxBytes int) *streamSession {
	return &streamSession{id: "s1", svc: svc, meetingID: 9, maxBytes: maxBytes}
}

func TestStreamSession_ChunkFlush(t *testing.T) {
	svc := &fakeService{}
	s := newSession(svc, 0)
	ctx := context.Background()

	if reply, _ := s.control(ctx, "LANG en-US"); reply != nil {
		t.Errorf("LANG reply = %v", reply)
	}
	s.append([]byte("ab"))
	s.append([]byte("cd"))

	reply, done := s.control(ctx, msgChunk)
	if done {
		t.Fatal("CHUNK closed the session")
	}
	chunk, ok := reply.(meeting.UploadedChunk)
	if !ok || chunk.MeetingID != 9 {
		t.Fatalf("reply = %#v", reply)
	}
	if string(svc.uploads[0][0].Data) != "abcd" || svc.langs[0] != "en-US" {
		t.Errorf("uploaded %q lang %q", svc.uploads[0][0].Data, svc.langs[0])
	}
	if s.buffer.Len() != 0 {
		t.Errorf("buffer not reset")
	}

	reply, _ = s.control(ctx, msgChunk)
	if e, ok := reply.(streamErr); !ok || e.Code != "ERR_NO_FILE" {
		t.Errorf("empty flush reply = %#v", reply)
	}
}

func TestStreamSession_PollAndEnd(t *testing.T) {
	svc := &fakeService{}
	s := newSession(svc, 0)
	ctx := context.Background()

	reply, done := s.control(ctx, msgPoll)
	if _, ok := reply.(*meeting.SnapshotView); !ok || done {
		t.Fatalf("POLL reply = %#v, done %v", reply, done)
	}

	s.append([]byte("tail"))
	reply, done = s.control(ctx, msgEnd)
	if !done {
		t.Fatal("END did not close the session")
	}
	if _, ok := reply.(*meeting.SnapshotView); !ok {
		t.Fatalf("END reply = %#v", reply)
	}
	if len(svc.uploads) != 1 || string(svc.uploads[0][0].Data) != "tail" {
		t.Errorf("END did not flush the buffered chunk: %v", svc.uploads)
	}
	if len(svc.polls) != 2 || !svc.polls[0] || svc.polls[1] {
		t.Errorf("poll flags = %v, want [true false]", svc.polls)
	}
}

func TestStreamSession_Limits(t *testing.T) {
	s := newSession(&fakeService{}, 4)
	if reply := s.append([]byte("abc")); reply != nil {
		t.Fatalf("reply = %v", reply)
	}
	reply := s.append([]byte("de"))
	if e, ok := reply.(streamErr); !ok || e.Code != "ERR_FILE_TOO_LARGE" {
		t.Errorf("overflow reply = %#v", reply)
	}
	if s.buffer.Len() != 0 {
		t.Errorf("oversized chunk kept")
	}

	reply, done := s.control(context.Background(), "HELLO")
	if e, ok := reply.(streamErr); !ok || e.Code != "ERR_UNKNOWN_MESSAGE" || done {
		t.Errorf("unknown reply = %#v", reply)
	}
}
