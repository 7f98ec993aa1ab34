// Package transcription defines the interface for asynchronous speech-to-text
// backends and common job types. Providers submit audio and are polled for a
// result; they never block on the transcription itself.
package transcription

import "context"

// Job status values as reported by providers.
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobError      = "error"
)

// Utterance is one diarized stretch of speech. Offsets are milliseconds.
type Utterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Start   int64  `json:"start"`
	End     int64  `json:"end"`
}

// Job is the provider's view of a submitted transcription request.
type Job struct {
	// ID is the provider's handle for the request.
	ID string `json:"id"`
	// Status is the raw provider status string.
	Status string `json:"status"`
	// Utterances is set once the job completes.
	Utterances []Utterance `json:"utterances,omitempty"`
	// Error carries the provider's error message for failed jobs.
	Error string `json:"error,omitempty"`
	// AudioDuration is the recording length in seconds, when known.
	AudioDuration float64 `json:"audio_duration,omitempty"`
}

// Completed reports whether the job finished successfully.
func (j *Job) Completed() bool { return j.Status == JobCompleted }

// Failed reports whether the provider gave up on the job.
func (j *Job) Failed() bool { return j.Status == JobError }

// Provider is the interface that transcription backends must implement.
type Provider interface {
	// Name returns the provider's registered name.
	Name() string

	// IsAvailable checks whether the backend is reachable and configured.
	IsAvailable(ctx context.Context) bool

	// Submit sends local audio for transcription with speaker diarization
	// enabled and returns the provider's job id without waiting for a result.
	Submit(ctx context.Context, audioPath string) (string, error)

	// GetJob fetches the current state of a submitted job.
	GetJob(ctx context.Context, jobID string) (*Job, error)
}
