// Package session drives a session through its lifecycle:
// upload -> submit -> poll -> finalize, plus speaker swaps and Q&A.
package session

import (
	"context"
	"errors"
	"math"

	"github.com/sparklabs/spark/internal/apperrors"
	"github.com/sparklabs/spark/internal/llm"
	"github.com/sparklabs/spark/internal/logger"
	"github.com/sparklabs/spark/internal/storage"
	"github.com/sparklabs/spark/internal/tokens"
	"github.com/sparklabs/spark/internal/transcription"
)

// Service orchestrates sessions against the store, the transcription
// provider, and the answer collaborator.
type Service struct {
	repo     *storage.Repository
	provider transcription.Provider
	answerer llm.Provider
	counter  tokens.Counter
	log      *logger.Logger
}

// NewService creates the lifecycle service.
func NewService(repo *storage.Repository, provider transcription.Provider, answerer llm.Provider, counter tokens.Counter, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		answerer: answerer,
		counter:  counter,
		log:      log.WithComponent("session"),
	}
}

// Create persists a session for a stored upload and submits it for
// transcription. On submission failure the session is marked failed and is
// not retried.
func (s *Service) Create(ctx context.Context, fileName, filePath string) (*storage.Session, error) {
	sess := &storage.Session{
		FileName: fileName,
		FilePath: filePath,
		Status:   storage.StatusUploading,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, apperrors.Database(err)
	}

	jobID, err := s.provider.Submit(ctx, filePath)
	if err != nil {
		s.log.Error("Transcription submit failed", map[string]interface{}{
			logger.FieldSessionID: sess.ID,
			logger.FieldError:     err.Error(),
		})
		if markErr := s.repo.MarkSessionFailed(ctx, sess.ID); markErr != nil {
			s.log.Error("Failed to mark session failed", map[string]interface{}{
				logger.FieldSessionID: sess.ID,
				logger.FieldError:     markErr.Error(),
			})
		}
		return nil, apperrors.External("transcription", err)
	}

	if err := s.repo.MarkSessionProcessing(ctx, sess.ID, jobID); err != nil {
		return nil, apperrors.Database(err)
	}

	s.log.Info("Session submitted for transcription", map[string]interface{}{
		logger.FieldSessionID: sess.ID,
		logger.FieldJobID:     jobID,
	})

	sess.Status = storage.StatusProcessing
	sess.AssemblyID = &jobID
	return sess, nil
}

// StatusResult is the outcome of a status check.
type StatusResult struct {
	// Session is the current persisted session (with associations).
	Session *storage.Session
	// AssemblyStatus is the provider's raw status while a job is running.
	AssemblyStatus string
	// ProviderError is set when the reconcile against the provider itself
	// failed transiently; persisted state is untouched in that case.
	ProviderError string
}

// Status reconciles a processing session with the transcription provider.
// Terminal sessions, and sessions without a job id, are returned unchanged.
// Transient provider errors are swallowed: the last-known persisted state
// comes back annotated, with no mutation.
func (s *Service) Status(ctx context.Context, id string) (*StatusResult, error) {
	sess, err := s.getSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if sess.Status != storage.StatusProcessing || sess.AssemblyID == nil {
		return &StatusResult{Session: sess}, nil
	}

	job, err := s.provider.GetJob(ctx, *sess.AssemblyID)
	if err != nil {
		s.log.Warn("Provider status check failed", map[string]interface{}{
			logger.FieldSessionID: sess.ID,
			logger.FieldJobID:     *sess.AssemblyID,
			logger.FieldError:     err.Error(),
		})
		return &StatusResult{Session: sess, ProviderError: err.Error()}, nil
	}

	switch {
	case job.Completed():
		if err := s.finalize(ctx, sess, job); err != nil {
			return nil, err
		}
	case job.Failed():
		s.log.Warn("Transcription job failed", map[string]interface{}{
			logger.FieldSessionID: sess.ID,
			logger.FieldJobID:     job.ID,
			logger.FieldError:     job.Error,
		})
		if err := s.repo.MarkSessionFailed(ctx, sess.ID); err != nil && !errors.Is(err, storage.ErrTerminalStatus) {
			return nil, apperrors.Database(err)
		}
	default:
		// Still queued or processing at the provider.
		return &StatusResult{Session: sess, AssemblyStatus: job.Status}, nil
	}

	updated, err := s.getSession(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &StatusResult{Session: updated}
	if job.Failed() {
		res.ProviderError = job.Error
	}
	return res, nil
}

// finalize stores the transcript and marks the session ready. Idempotent:
// a session that already left processing is not touched again.
func (s *Service) finalize(ctx context.Context, sess *storage.Session, job *transcription.Job) error {
	segments := parseUtterances(job)
	encoded, err := storage.EncodeSegments(segments)
	if err != nil {
		return apperrors.Internal(err)
	}

	tokenCount := tokens.CountTranscript(s.counter, segments)
	durationMs := int64(math.Round(job.AudioDuration * 1000))

	created, err := s.repo.FinalizeSession(ctx, sess.ID, encoded, durationMs, tokenCount)
	if err != nil {
		return apperrors.Database(err)
	}
	if created {
		s.log.Info("Session transcription finalized", map[string]interface{}{
			logger.FieldSessionID: sess.ID,
			"segments":            len(segments),
			"token_count":         tokenCount,
			"duration_ms":         durationMs,
		})
	}
	return nil
}

// parseUtterances maps the provider's per-utterance output onto stored
// segments, preserving order.
func parseUtterances(job *transcription.Job) []storage.Segment {
	segments := make([]storage.Segment, 0, len(job.Utterances))
	for _, u := range job.Utterances {
		segments = append(segments, storage.Segment{
			Speaker: u.Speaker,
			Text:    u.Text,
			Start:   u.Start,
			End:     u.End,
		})
	}
	return segments
}

// SwapSpeakers inverts the speaker-identity flag on the session's transcript.
func (s *Service) SwapSpeakers(ctx context.Context, sessionID string) (*storage.Transcript, error) {
	if _, err := s.getLean(ctx, sessionID); err != nil {
		return nil, err
	}

	t, err := s.repo.LatestTranscript(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NotFound("Transcript")
	}
	if err != nil {
		return nil, apperrors.Database(err)
	}

	swapped, err := s.repo.SwapSpeakerFlag(ctx, t.ID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return swapped, nil
}

// AskQuestion consults the answer collaborator and persists the exchange.
func (s *Service) AskQuestion(ctx context.Context, sessionID, question string) (*storage.Question, error) {
	if _, err := s.getLean(ctx, sessionID); err != nil {
		return nil, err
	}

	resp, err := s.answerer.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: question}},
	})
	if err != nil {
		return nil, apperrors.External("answer", err)
	}

	q := &storage.Question{
		SessionID:  sessionID,
		Question:   question,
		Answer:     resp.Content,
		TokenCount: resp.Usage.TotalTokens,
	}
	if err := s.repo.CreateQuestion(ctx, q); err != nil {
		return nil, apperrors.Database(err)
	}
	return q, nil
}

// List returns all sessions, newest first.
func (s *Service) List(ctx context.Context) ([]storage.Session, error) {
	sessions, err := s.repo.ListSessions(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return sessions, nil
}

// Get returns a session with transcripts and questions.
func (s *Service) Get(ctx context.Context, id string) (*storage.Session, error) {
	return s.getSession(ctx, id)
}

// Questions returns a session's Q&A history, oldest first.
func (s *Service) Questions(ctx context.Context, sessionID string) ([]storage.Question, error) {
	questions, err := s.repo.ListQuestions(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return questions, nil
}

func (s *Service) getSession(ctx context.Context, id string) (*storage.Session, error) {
	sess, err := s.repo.GetSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NotFound("Session")
	}
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return sess, nil
}

func (s *Service) getLean(ctx context.Context, id string) (*storage.Session, error) {
	sess, err := s.repo.GetSessionLean(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NotFound("Session")
	}
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return sess, nil
}
