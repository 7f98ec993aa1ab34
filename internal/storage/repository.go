package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrTerminalStatus is returned when an update would move a session out of a
// terminal state.
var ErrTerminalStatus = errors.New("session status is terminal")

// Repository is the data-access layer over the gorm database.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repository over an open database.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db.GormDB}
}

// --- Sessions ---

// CreateSession inserts a new session row.
func (r *Repository) CreateSession(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// GetSession loads a session with its transcripts and questions.
func (r *Repository) GetSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	err := r.db.WithContext(ctx).
		Preload("Transcripts").
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSessionLean loads a session row without associations.
func (r *Repository) GetSessionLean(ctx context.Context, id string) (*Session, error) {
	var s Session
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSessions returns all sessions, newest first.
func (r *Repository) ListSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// MarkSessionProcessing records the external job id and moves the session to
// processing. Terminal sessions are left untouched.
func (r *Repository) MarkSessionProcessing(ctx context.Context, id, assemblyID string) error {
	return r.updateSession(ctx, id, map[string]interface{}{
		"status":      StatusProcessing,
		"assembly_id": assemblyID,
	})
}

// MarkSessionFailed moves the session to failed. Terminal sessions are left
// untouched.
func (r *Repository) MarkSessionFailed(ctx context.Context, id string) error {
	return r.updateSession(ctx, id, map[string]interface{}{
		"status": StatusFailed,
	})
}

// updateSession applies updates guarded against terminal states so status
// transitions stay monotonic.
func (r *Repository) updateSession(ctx context.Context, id string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&Session{}).
		Where("id = ? AND status NOT IN ?", id, TerminalStatuses).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either the row is missing or it is terminal; distinguish for callers.
		var count int64
		if err := r.db.WithContext(ctx).Model(&Session{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrTerminalStatus
	}
	return nil
}

// FinalizeSession atomically inserts the transcript and moves the session to
// ready with duration and token count. It is idempotent: if the session has
// already left processing, nothing is written and created is false.
func (r *Repository) FinalizeSession(ctx context.Context, sessionID, segments string, durationMs int64, tokenCount int) (created bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Session{}).
			Where("id = ? AND status = ?", sessionID, StatusProcessing).
			Updates(map[string]interface{}{
				"status":      StatusReady,
				"duration":    durationMs,
				"token_count": tokenCount,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already finalized (or failed); do not insert a second transcript.
			return nil
		}

		t := &Transcript{
			SessionID:         sessionID,
			Segments:          segments,
			SpeakerAIsPrimary: true,
		}
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

// --- Transcripts ---

// LatestTranscript returns the most recent transcript for a session.
func (r *Repository) LatestTranscript(ctx context.Context, sessionID string) (*Transcript, error) {
	var t Transcript
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SwapSpeakerFlag inverts the speaker-identity flag on a transcript and
// returns the updated row.
func (r *Repository) SwapSpeakerFlag(ctx context.Context, transcriptID string) (*Transcript, error) {
	res := r.db.WithContext(ctx).
		Model(&Transcript{}).
		Where("id = ?", transcriptID).
		Update("speaker_a_is_primary", gorm.Expr("NOT speaker_a_is_primary"))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	var t Transcript
	if err := r.db.WithContext(ctx).First(&t, "id = ?", transcriptID).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// --- Questions ---

// CreateQuestion inserts a new question row.
func (r *Repository) CreateQuestion(ctx context.Context, q *Question) error {
	return r.db.WithContext(ctx).Create(q).Error
}

// ListQuestions returns a session's questions, oldest first.
func (r *Repository) ListQuestions(ctx context.Context, sessionID string) ([]Question, error) {
	var questions []Question
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}
