package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session status values. Transitions are monotonic forward:
// uploading -> processing -> {ready|failed}. Ready and failed are terminal.
const (
	StatusUploading  = "uploading"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// TerminalStatuses are the states a session never leaves.
var TerminalStatuses = []string{StatusReady, StatusFailed}

// Session is one uploaded recording and its processing lifecycle.
type Session struct {
	ID          string       `gorm:"primaryKey" json:"id"`
	FileName    string       `gorm:"not null" json:"fileName"`
	FilePath    string       `gorm:"not null" json:"filePath"`
	Status      string       `gorm:"not null;default:uploading;index" json:"status"`
	AssemblyID  *string      `json:"assemblyId"`
	Duration    *int64       `json:"duration"` // milliseconds
	TokenCount  int          `gorm:"not null;default:0" json:"tokenCount"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Transcripts []Transcript `gorm:"foreignKey:SessionID" json:"transcripts,omitempty"`
	Questions   []Question   `gorm:"foreignKey:SessionID" json:"questions,omitempty"`
}

// TableName specifies the table name for Session.
func (Session) TableName() string { return "sessions" }

// BeforeCreate generates a UUID if not already set.
func (s *Session) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// IsTerminal reports whether the session can no longer change status.
func (s *Session) IsTerminal() bool {
	return s.Status == StatusReady || s.Status == StatusFailed
}

// Segment is one diarized utterance of a transcript. Offsets are in
// milliseconds from the start of the recording.
type Segment struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Start   int64  `json:"start"`
	End     int64  `json:"end"`
}

// Transcript is the diarized text output for a session. Segments are stored
// as a JSON array; SpeakerAIsPrimary is the only field mutated post-creation.
type Transcript struct {
	ID                string    `gorm:"primaryKey" json:"id"`
	SessionID         string    `gorm:"not null;index" json:"sessionId"`
	Segments          string    `gorm:"not null" json:"segments"`
	SpeakerAIsPrimary bool      `gorm:"column:speaker_a_is_primary;not null;default:true" json:"speakerAIsPrimary"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Transcript.
func (Transcript) TableName() string { return "transcripts" }

// BeforeCreate generates a UUID if not already set.
func (t *Transcript) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// DecodeSegments unmarshals the stored segment JSON.
func (t *Transcript) DecodeSegments() ([]Segment, error) {
	var segs []Segment
	if err := json.Unmarshal([]byte(t.Segments), &segs); err != nil {
		return nil, err
	}
	return segs, nil
}

// EncodeSegments marshals segments for storage.
func EncodeSegments(segs []Segment) (string, error) {
	if segs == nil {
		segs = []Segment{}
	}
	b, err := json.Marshal(segs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Question is one submitted question and its answer. Insert-only.
type Question struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"not null;index" json:"sessionId"`
	Question   string    `gorm:"not null" json:"question"`
	Answer     string    `gorm:"not null" json:"answer"`
	TokenCount int       `gorm:"not null;default:0" json:"tokenCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName specifies the table name for Question.
func (Question) TableName() string { return "questions" }

// BeforeCreate generates a UUID if not already set.
func (q *Question) BeforeCreate(_ *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	return nil
}
