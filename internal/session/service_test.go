package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sparklabs/spark/internal/apperrors"
	"github.com/sparklabs/spark/internal/llm"
	"github.com/sparklabs/spark/internal/logger"
	"github.com/sparklabs/spark/internal/storage"
	"github.com/sparklabs/spark/internal/transcription"
)

// =============================================================================
// Test Helpers
// =============================================================================

// fakeProvider is a scriptable transcription.Provider.
type fakeProvider struct {
	submitID  string
	submitErr error
	job       *transcription.Job
	jobErr    error
	getCalls  int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) IsAvailable(_ context.Context) bool { return true }

func (f *fakeProvider) Submit(_ context.Context, _ string) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.submitID, nil
}

func (f *fakeProvider) GetJob(_ context.Context, _ string) (*transcription.Job, error) {
	f.getCalls++
	if f.jobErr != nil {
		return nil, f.jobErr
	}
	return f.job, nil
}

// wordCounter counts whitespace-separated words, deterministic for tests.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(strings.Fields(text))
}

func newTestService(t *testing.T, provider transcription.Provider) (*Service, *storage.Repository) {
	t.Helper()

	cfg := storage.Config{Path: ":memory:", MaxOpenConns: 1, MaxRetries: 1}
	db, err := storage.Open(context.Background(), cfg, logger.NewDefault("test"))
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	if err := db.AutoMigrate(&storage.Session{}, &storage.Transcript{}, &storage.Question{}); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := storage.NewRepository(db)
	svc := NewService(repo, provider, llm.NewPlaceholder(), wordCounter{}, logger.NewDefault("test"))
	return svc, repo
}

// =============================================================================
// Create Tests
// =============================================================================

// TestCreate_SubmitsAndMovesToProcessing tests the happy path
func TestCreate_SubmitsAndMovesToProcessing(t *testing.T) {
	svc, repo := newTestService(t, &fakeProvider{submitID: "job-1"})
	ctx := context.Background()

	sess, err := svc.Create(ctx, "call.m4a", "data/uploads/call.m4a")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sess.Status != storage.StatusProcessing {
		t.Errorf("Status = %q, want %q", sess.Status, storage.StatusProcessing)
	}
	if sess.AssemblyID == nil || *sess.AssemblyID != "job-1" {
		t.Errorf("AssemblyID = %v, want job-1", sess.AssemblyID)
	}

	stored, err := repo.GetSessionLean(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSessionLean() error = %v", err)
	}
	if stored.Status != storage.StatusProcessing {
		t.Errorf("stored Status = %q, want %q", stored.Status, storage.StatusProcessing)
	}
}

// TestCreate_SubmitFailureMarksFailed tests that a rejected submit is terminal
func TestCreate_SubmitFailureMarksFailed(t *testing.T) {
	svc, repo := newTestService(t, &fakeProvider{submitErr: errors.New("api down")})
	ctx := context.Background()

	_, err := svc.Create(ctx, "call.m4a", "data/uploads/call.m4a")
	if err == nil {
		t.Fatal("Create() error = nil, want external error")
	}
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeExternalService {
		t.Errorf("error = %v, want an external-service AppError", err)
	}

	sessions, err := repo.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("len(sessions) = %d, want 1", len(sessions))
	}
	if sessions[0].Status != storage.StatusFailed {
		t.Errorf("Status = %q, want %q", sessions[0].Status, storage.StatusFailed)
	}
}

// =============================================================================
// Status Tests
// =============================================================================

// TestStatus_TerminalSessionSkipsProvider tests that ready sessions are returned as-is
func TestStatus_TerminalSessionSkipsProvider(t *testing.T) {
	provider := &fakeProvider{submitID: "job-1", job: &transcription.Job{ID: "job-1", Status: transcription.JobCompleted}}
	svc, _ := newTestService(t, provider)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "call.m4a", "p/call.m4a")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Status(ctx, sess.ID); err != nil {
		t.Fatalf("first Status() error = %v", err)
	}

	callsAfterFinalize := provider.getCalls
	res, err := svc.Status(ctx, sess.ID)
	if err != nil {
		t.Fatalf("second Status() error = %v", err)
	}
	if res.Session.Status != storage.StatusReady {
		t.Errorf("Status = %q, want %q", res.Session.Status, storage.StatusReady)
	}
	if provider.getCalls != callsAfterFinalize {
		t.Errorf("provider polled %d extra times for a terminal session", provider.getCalls-callsAfterFinalize)
	}
}

// TestStatus_CompletedJobFinalizes tests transcript creation on completion
func TestStatus_CompletedJobFinalizes(t *testing.T) {
	provider := &fakeProvider{
		submitID: "job-1",
		job: &transcription.Job{
			ID:     "job-1",
			Status: transcription.JobCompleted,
			Utterances: []transcription.Utterance{
				{Speaker: "A", Text: "hello there", Start: 0, End: 900},
				{Speaker: "B", Text: "hi", Start: 950, End: 1200},
			},
			AudioDuration: 12.3456,
		},
	}
	svc, _ := newTestService(t, provider)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "call.m4a", "p/call.m4a")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	res, err := svc.Status(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if res.Session.Status != storage.StatusReady {
		t.Fatalf("Status = %q, want %q", res.Session.Status, storage.StatusReady)
	}
	if res.Session.Duration == nil || *res.Session.Duration != 12346 {
		t.Errorf("Duration = %v, want 12346 (rounded ms)", res.Session.Duration)
	}
	// "A: hello there\nB: hi" is five words under the test counter.
	if res.Session.TokenCount != 5 {
		t.Errorf("TokenCount = %d, want 5", res.Session.TokenCount)
	}
	if len(res.Session.Transcripts) != 1 {
		t.Fatalf("len(Transcripts) = %d, want 1", len(res.Session.Transcripts))
	}

	segments, err := res.Session.Transcripts[0].DecodeSegments()
	if err != nil {
		t.Fatalf("DecodeSegments() error = %v", err)
	}
	if len(segments) != 2 || segments[0].Speaker != "A" || segments[1].End != 1200 {
		t.Errorf("segments = %+v, want the two submitted utterances in order", segments)
	}
}

// TestStatus_FailedJobMarksFailed tests the provider-error terminal path
func TestStatus_FailedJobMarksFailed(t *testing.T) {
	provider := &fakeProvider{
		submitID: "job-1",
		job:      &transcription.Job{ID: "job-1", Status: transcription.JobError, Error: "audio unreadable"},
	}
	svc, _ := newTestService(t, provider)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "call.m4a", "p/call.m4a")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	res, err := svc.Status(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if res.Session.Status != storage.StatusFailed {
		t.Errorf("Status = %q, want %q", res.Session.Status, storage.StatusFailed)
	}
	if res.ProviderError != "audio unreadable" {
		t.Errorf("ProviderError = %q, want %q", res.ProviderError, "audio unreadable")
	}
}

// TestStatus_RunningJobLeavesStateAlone tests the still-processing path
func TestStatus_RunningJobLeavesStateAlone(t *testing.T) {
	provider := &fakeProvider{
		submitID: "job-1",
		job:      &transcription.Job{ID: "job-1", Status: transcription.JobProcessing},
	}
	svc, _ := newTestService(t, provider)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "call.m4a", "p/call.m4a")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	res, err := svc.Status(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if res.Session.Status != storage.StatusProcessing {
		t.Errorf("Status = %q, want %q", res.Session.Status, storage.StatusProcessing)
	}
	if res.AssemblyStatus != transcription.JobProcessing {
		t.Errorf("AssemblyStatus = %q, want %q", res.AssemblyStatus, transcription.JobProcessing)
	}
}

// TestStatus_TransientProviderErrorIsSwallowed tests that a poll failure mutates nothing
func TestStatus_TransientProviderErrorIsSwallowed(t *testing.T) {
	provider := &fakeProvider{submitID: "job-1"}
	svc, _ := newTestService(t, provider)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "call.m4a", "p/call.m4a")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	provider.jobErr = errors.New("timeout")
	res, err := svc.Status(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Status() error = %v, want transient errors swallowed", err)
	}
	if res.Session.Status != storage.StatusProcessing {
		t.Errorf("Status = %q, want %q", res.Session.Status, storage.StatusProcessing)
	}
	if res.ProviderError == "" {
		t.Error("ProviderError is empty, want the swallowed error message")
	}
}

// TestStatus_UnknownSession tests the not-found error
func TestStatus_UnknownSession(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{})

	_, err := svc.Status(context.Background(), "does-not-exist")
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.HTTPStatus != 404 {
		t.Errorf("error = %v, want AppError with HTTPStatus 404", err)
	}
}

// =============================================================================
// SwapSpeakers Tests
// =============================================================================

// TestSwapSpeakers_TogglesFlag tests one swap
func TestSwapSpeakers_TogglesFlag(t *testing.T) {
	provider := &fakeProvider{
		submitID: "job-1",
		job:      &transcription.Job{ID: "job-1", Status: transcription.JobCompleted, AudioDuration: 1},
	}
	svc, _ := newTestService(t, provider)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "call.m4a", "p/call.m4a")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Status(ctx, sess.ID); err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	swapped, err := svc.SwapSpeakers(ctx, sess.ID)
	if err != nil {
		t.Fatalf("SwapSpeakers() error = %v", err)
	}
	if swapped.SpeakerAIsPrimary {
		t.Error("SpeakerAIsPrimary = true after swap, want false")
	}
}

// TestSwapSpeakers_NoTranscript tests the missing-transcript error
func TestSwapSpeakers_NoTranscript(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{submitID: "job-1"})
	ctx := context.Background()

	sess, err := svc.Create(ctx, "call.m4a", "p/call.m4a")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = svc.SwapSpeakers(ctx, sess.ID)
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.HTTPStatus != 404 {
		t.Fatalf("error = %v, want AppError with HTTPStatus 404", err)
	}
	if appErr.Message != "Transcript not found" {
		t.Errorf("Message = %q, want %q", appErr.Message, "Transcript not found")
	}
}

// =============================================================================
// Question Tests
// =============================================================================

// TestAskQuestion_PersistsPlaceholderAnswer tests the stubbed Q&A path
func TestAskQuestion_PersistsPlaceholderAnswer(t *testing.T) {
	svc, repo := newTestService(t, &fakeProvider{submitID: "job-1"})
	ctx := context.Background()

	sess, err := svc.Create(ctx, "call.m4a", "p/call.m4a")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	q, err := svc.AskQuestion(ctx, sess.ID, "What was the outcome?")
	if err != nil {
		t.Fatalf("AskQuestion() error = %v", err)
	}
	if q.Answer != llm.PlaceholderAnswer {
		t.Errorf("Answer = %q, want the placeholder answer", q.Answer)
	}

	questions, err := repo.ListQuestions(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListQuestions() error = %v", err)
	}
	if len(questions) != 1 {
		t.Errorf("len(questions) = %d, want 1", len(questions))
	}
}

// TestAskQuestion_UnknownSession tests the not-found error
func TestAskQuestion_UnknownSession(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{})

	_, err := svc.AskQuestion(context.Background(), "does-not-exist", "anything?")
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.HTTPStatus != 404 {
		t.Errorf("error = %v, want AppError with HTTPStatus 404", err)
	}
}
