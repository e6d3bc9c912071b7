package types

import "time"

// ChunkStatus is the processing state of one uploaded chunk.
type ChunkStatus string

// Chunk status constants. StatusError is only observed inside a single poll;
// it is never persisted.
const (
	StatusProcessing ChunkStatus = "PROCESSING"
	StatusDone       ChunkStatus = "DONE"
	StatusError      ChunkStatus = "ERROR"
)

// Meeting completion values reported by a poll or a snapshot
const (
	MeetingDone = "DONE"
	MeetingWait = "WAIT"
)

// WordSegment is one fully timed recognized word
type WordSegment struct {
	StartMs int64
	EndMs   int64
	Speaker string
	Word    string
}

// Cue is a subtitle span in chunk-local time
type Cue struct {
	StartMs int64  `json:"startMs"`
	EndMs   int64  `json:"endMs"`
	Text    string `json:"text"`
	Speaker string `json:"speaker"`
}

// MeetingCue is a cue shifted onto the meeting timeline
type MeetingCue struct {
	ChunkSeq int    `json:"chunkSeq"`
	StartMs  int64  `json:"startMs"`
	EndMs    int64  `json:"endMs"`
	Text     string `json:"text"`
	Speaker  string `json:"speaker"`
}

// ChunkState is the persisted row for one chunk of a meeting
type ChunkState struct {
	ID           int64
	MeetingID    int64
	ChunkSeq     int
	AudioRef     string
	JobHandle    string
	DurationMs   int64
	Status       ChunkStatus
	Transcript   *string
	ErrorMessage *string
	LanguageCode string
	CreatedDate  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsDone reports whether the chunk reached its terminal state.
func (c *ChunkState) IsDone() bool {
	return c.Status == StatusDone
}

// MeetingExport is the set of artifacts written when a meeting is exported
type MeetingExport struct {
	MeetingID       int64
	Transcript      string
	SRT             string
	TotalChunks     int
	CompletedChunks int
	CueCount        int
	DurationMs      int64
	ExportedAt      time.Time
}
