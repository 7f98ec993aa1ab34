// Package tokens counts tokens over transcript text using the tiktoken
// encoding for the configured model.
package tokens

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/sparklabs/spark/internal/logger"
	"github.com/sparklabs/spark/internal/storage"
)

// DefaultModel is the encoding used for transcript token counts.
const DefaultModel = "gpt-4o"

// Counter counts tokens in a piece of text.
type Counter interface {
	Count(text string) int
}

// TranscriptText joins diarized segments into the canonical
// "SPEAKER: text" per-line form used for token counting.
func TranscriptText(segments []storage.Segment) string {
	lines := make([]string, len(segments))
	for i, s := range segments {
		lines[i] = s.Speaker + ": " + s.Text
	}
	return strings.Join(lines, "\n")
}

// CountTranscript counts tokens over the full transcript text.
func CountTranscript(c Counter, segments []storage.Segment) int {
	return c.Count(TranscriptText(segments))
}

// TiktokenCounter counts with the model's BPE encoding, falling back to a
// bytes/4 estimate if the encoding cannot be initialized (e.g. no cached
// vocabulary and no network).
type TiktokenCounter struct {
	model string
	once  sync.Once
	enc   *tiktoken.Tiktoken
}

// NewCounter creates a counter for the given model. Empty model uses
// DefaultModel.
func NewCounter(model string) *TiktokenCounter {
	if model == "" {
		model = DefaultModel
	}
	return &TiktokenCounter{model: model}
}

// Count returns the token count for text.
func (c *TiktokenCounter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(c.model)
		if err != nil {
			logger.Warn("Token encoding unavailable, using estimate", map[string]interface{}{
				"model": c.model,
				"error": err.Error(),
			})
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return Estimate(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Estimate approximates a token count at four bytes per token.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
