package stt

import "context"

// JobState is the coarse state of an external recognition job.
type JobState int

const (
	JobRunning JobState = iota
	JobDone
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobRunning:
		return "running"
	case JobDone:
		return "done"
	case JobFailed:
		return "failed"
	}
	return "unknown"
}

// JobStatus is the answer of Provider.Status.
// ResultRefs is set for JobDone, Message for JobFailed.
type JobStatus struct {
	State      JobState
	ResultRefs []string
	Message    string
}

// JobContext carries the placement information of a job's output.
type JobContext struct {
	MeetingID int64
	Date      string
}

// Provider submits recognition jobs and reports their status.
type Provider interface {
	Submit(ctx context.Context, audioRef, languageCode string, jc JobContext) (string, error)
	Status(ctx context.Context, handle string) (JobStatus, error)
}
