// Package assemblyai implements transcription.Provider against the
// AssemblyAI v2 REST API: upload the audio bytes, create a transcript with
// speaker diarization, then poll the transcript resource.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sparklabs/spark/internal/transcription"
)

const (
	// ProviderName is the registered name for the AssemblyAI provider.
	ProviderName = "assemblyai"

	defaultBaseURL       = "https://api.assemblyai.com"
	defaultTimeout       = 30 * time.Second
	defaultUploadTimeout = 5 * time.Minute
)

// Config holds configuration for the AssemblyAI provider.
type Config struct {
	BaseURL       string        `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	APIKey        string        `json:"api_key" yaml:"api_key" mapstructure:"api_key"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	UploadTimeout time.Duration `json:"upload_timeout" yaml:"upload_timeout" mapstructure:"upload_timeout"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.UploadTimeout == 0 {
		c.UploadTimeout = defaultUploadTimeout
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("assemblyai: api_key is required")
	}
	return nil
}

// Provider implements transcription.Provider using the AssemblyAI v2 API.
type Provider struct {
	cfg          Config
	client       *http.Client
	uploadClient *http.Client
}

// NewProvider creates a new AssemblyAI provider.
func NewProvider(cfg Config) (*Provider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Provider{
		cfg:          cfg,
		client:       &http.Client{Timeout: cfg.Timeout},
		uploadClient: &http.Client{Timeout: cfg.UploadTimeout},
	}, nil
}

// Factory returns a transcription.Factory that creates AssemblyAI providers
// from a generic settings map.
func Factory() transcription.Factory {
	return func(settings map[string]any) (transcription.Provider, error) {
		cfg := Config{}
		if v, ok := settings["base_url"].(string); ok {
			cfg.BaseURL = v
		}
		if v, ok := settings["api_key"].(string); ok {
			cfg.APIKey = v
		}
		if v, ok := settings["timeout"].(time.Duration); ok {
			cfg.Timeout = v
		}
		if v, ok := settings["upload_timeout"].(time.Duration); ok {
			cfg.UploadTimeout = v
		}
		return NewProvider(cfg)
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable reports whether the provider is configured and the API answers.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	if p.cfg.APIKey == "" {
		return false
	}
	req, err := p.newRequest(ctx, http.MethodGet, "/v2/transcript?limit=1", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// Submit uploads the local audio file and creates a diarized transcript job.
func (p *Provider) Submit(ctx context.Context, audioPath string) (string, error) {
	audioURL, err := p.upload(ctx, audioPath)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]any{
		"audio_url":      audioURL,
		"speaker_labels": true,
	})
	if err != nil {
		return "", err
	}

	req, err := p.newRequest(ctx, http.MethodPost, "/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var created struct {
		ID string `json:"id"`
	}
	if err := p.do(p.client, req, &created); err != nil {
		return "", fmt.Errorf("create transcript: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("create transcript: empty id in response")
	}
	return created.ID, nil
}

// GetJob fetches the transcript resource and maps it to a Job.
func (p *Provider) GetJob(ctx context.Context, jobID string) (*transcription.Job, error) {
	req, err := p.newRequest(ctx, http.MethodGet, "/v2/transcript/"+jobID, nil)
	if err != nil {
		return nil, err
	}

	var raw struct {
		ID            string  `json:"id"`
		Status        string  `json:"status"`
		Error         string  `json:"error"`
		AudioDuration float64 `json:"audio_duration"`
		Utterances    []struct {
			Speaker string `json:"speaker"`
			Text    string `json:"text"`
			Start   int64  `json:"start"`
			End     int64  `json:"end"`
		} `json:"utterances"`
	}
	if err := p.do(p.client, req, &raw); err != nil {
		return nil, fmt.Errorf("get transcript %s: %w", jobID, err)
	}

	job := &transcription.Job{
		ID:            raw.ID,
		Status:        raw.Status,
		Error:         raw.Error,
		AudioDuration: raw.AudioDuration,
	}
	for _, u := range raw.Utterances {
		job.Utterances = append(job.Utterances, transcription.Utterance{
			Speaker: u.Speaker,
			Text:    u.Text,
			Start:   u.Start,
			End:     u.End,
		})
	}
	return job, nil
}

// upload streams the file bytes to the upload endpoint and returns the
// temporary audio URL AssemblyAI assigns.
func (p *Provider) upload(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	req, err := p.newRequest(ctx, http.MethodPost, "/v2/upload", f)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	var uploaded struct {
		UploadURL string `json:"upload_url"`
	}
	if err := p.do(p.uploadClient, req, &uploaded); err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	if uploaded.UploadURL == "" {
		return "", fmt.Errorf("upload audio: empty upload_url in response")
	}
	return uploaded.UploadURL, nil
}

func (p *Provider) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", p.cfg.APIKey)
	return req, nil
}

func (p *Provider) do(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("assemblyai returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
