package assemblyai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sparklabs/spark/internal/transcription"
)

// =============================================================================
// Test Helpers
// =============================================================================

func writeAudioFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.m4a")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func newTestProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewProvider(Config{BaseURL: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	return p
}

// =============================================================================
// Config Tests
// =============================================================================

// TestNewProvider_RequiresAPIKey tests the missing-credential rejection
func TestNewProvider_RequiresAPIKey(t *testing.T) {
	if _, err := NewProvider(Config{}); err == nil {
		t.Error("NewProvider() error = nil, want missing api_key error")
	}
}

// TestConfig_ApplyDefaults tests zero-value fills
func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.BaseURL != defaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, defaultBaseURL)
	}
	if cfg.Timeout != defaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, defaultTimeout)
	}
	if cfg.UploadTimeout != defaultUploadTimeout {
		t.Errorf("UploadTimeout = %v, want %v", cfg.UploadTimeout, defaultUploadTimeout)
	}
}

// =============================================================================
// Submit Tests
// =============================================================================

// TestSubmit_UploadsThenCreatesTranscript tests the two-step submission
func TestSubmit_UploadsThenCreatesTranscript(t *testing.T) {
	var uploadedBody string
	var transcriptReq map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "test-key" {
			t.Errorf("Authorization = %q, want the raw api key", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		uploadedBody = string(body)
		_ = json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/audio-1"})
	})
	mux.HandleFunc("/v2/transcript", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&transcriptReq); err != nil {
			t.Errorf("decode transcript request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "tr-1", "status": "queued"})
	})

	p := newTestProvider(t, mux)
	path := writeAudioFile(t, "raw audio bytes")

	jobID, err := p.Submit(context.Background(), path)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if jobID != "tr-1" {
		t.Errorf("jobID = %q, want tr-1", jobID)
	}
	if uploadedBody != "raw audio bytes" {
		t.Errorf("uploaded body = %q, want the file contents", uploadedBody)
	}
	if transcriptReq["audio_url"] != "https://cdn.example/audio-1" {
		t.Errorf("audio_url = %v, want the upload response URL", transcriptReq["audio_url"])
	}
	if transcriptReq["speaker_labels"] != true {
		t.Errorf("speaker_labels = %v, want true", transcriptReq["speaker_labels"])
	}
}

// TestSubmit_UploadFailure tests error propagation from the upload step
func TestSubmit_UploadFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/upload", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"bad audio"}`, http.StatusBadRequest)
	})
	p := newTestProvider(t, mux)

	_, err := p.Submit(context.Background(), writeAudioFile(t, "x"))
	if err == nil {
		t.Error("Submit() error = nil, want upload failure")
	}
}

// TestSubmit_MissingFile tests the local file error
func TestSubmit_MissingFile(t *testing.T) {
	p := newTestProvider(t, http.NewServeMux())

	_, err := p.Submit(context.Background(), filepath.Join(t.TempDir(), "absent.m4a"))
	if err == nil {
		t.Error("Submit() error = nil, want open failure")
	}
}

// =============================================================================
// GetJob Tests
// =============================================================================

// TestGetJob_MapsCompletedTranscript tests the response mapping
func TestGetJob_MapsCompletedTranscript(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/transcript/tr-1", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":             "tr-1",
			"status":         "completed",
			"audio_duration": 61.44,
			"utterances": []map[string]any{
				{"speaker": "A", "text": "hello", "start": 120, "end": 900},
				{"speaker": "B", "text": "hi there", "start": 950, "end": 2100},
			},
		})
	})
	p := newTestProvider(t, mux)

	job, err := p.GetJob(context.Background(), "tr-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if !job.Completed() {
		t.Errorf("Completed() = false for status %q", job.Status)
	}
	if job.AudioDuration != 61.44 {
		t.Errorf("AudioDuration = %v, want 61.44", job.AudioDuration)
	}
	if len(job.Utterances) != 2 {
		t.Fatalf("len(Utterances) = %d, want 2", len(job.Utterances))
	}
	want := transcription.Utterance{Speaker: "B", Text: "hi there", Start: 950, End: 2100}
	if job.Utterances[1] != want {
		t.Errorf("Utterances[1] = %+v, want %+v", job.Utterances[1], want)
	}
}

// TestGetJob_MapsError tests the failed-job mapping
func TestGetJob_MapsError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/transcript/tr-2", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "tr-2",
			"status": "error",
			"error":  "file does not appear to contain audio",
		})
	})
	p := newTestProvider(t, mux)

	job, err := p.GetJob(context.Background(), "tr-2")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if !job.Failed() {
		t.Errorf("Failed() = false for status %q", job.Status)
	}
	if job.Error != "file does not appear to contain audio" {
		t.Errorf("Error = %q, want the provider message", job.Error)
	}
}

// TestGetJob_Non2xx tests the HTTP error path
func TestGetJob_Non2xx(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/transcript/tr-3", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})
	p := newTestProvider(t, mux)

	if _, err := p.GetJob(context.Background(), "tr-3"); err == nil {
		t.Error("GetJob() error = nil, want non-2xx failure")
	}
}
