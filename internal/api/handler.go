package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sparklabs/spark/internal/apperrors"
	"github.com/sparklabs/spark/internal/logger"
	"github.com/sparklabs/spark/internal/session"
	"github.com/sparklabs/spark/internal/validation"
)

// UploadConfig controls where and what the upload endpoint accepts.
type UploadConfig struct {
	// Dir is where audio files are stored.
	Dir string `yaml:"dir" mapstructure:"dir"`
	// MaxSize caps a single upload, e.g. "100MB".
	MaxSize string `yaml:"max_size" mapstructure:"max_size"`
}

// ApplyDefaults fills zero-valued fields.
func (c *UploadConfig) ApplyDefaults() {
	if c.Dir == "" {
		c.Dir = "data/uploads"
	}
	if c.MaxSize == "" {
		c.MaxSize = "100MB"
	}
}

// Handler holds the dependencies for all API routes.
type Handler struct {
	svc      *session.Service
	uploads  UploadConfig
	maxBytes int64
	log      *logger.Logger
}

// NewHandler creates the API handler.
func NewHandler(svc *session.Service, uploads UploadConfig, maxBytes int64, log *logger.Logger) *Handler {
	uploads.ApplyDefaults()
	return &Handler{
		svc:      svc,
		uploads:  uploads,
		maxBytes: maxBytes,
		log:      log.WithComponent("api"),
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Spark API is running",
	})
}

// ListSessions returns all sessions, newest first.
func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// acceptedMIMEPrefixes are the content types an M4A upload may carry.
var acceptedMIMEPrefixes = []string{
	"audio/m4a",
	"audio/x-m4a",
	"audio/mp4",
	"video/mp4", // some browsers tag M4A containers as video/mp4
}

// CreateSession validates the uploaded audio, stores it, and starts
// transcription. Non-conforming uploads are rejected before any persistence.
func (h *Handler) CreateSession(c *gin.Context) {
	file, err := c.FormFile("audio")
	if err != nil {
		h.respondError(c, apperrors.MissingField("audio file"))
		return
	}

	if err := validateAudioUpload(file, h.maxBytes); err != nil {
		h.respondError(c, err)
		return
	}

	storedPath, err := h.storeUpload(file)
	if err != nil {
		h.respondError(c, err)
		return
	}

	sess, err := h.svc.Create(c.Request.Context(), file.Filename, storedPath)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": sess})
}

// validateAudioUpload enforces the M4A extension/MIME restriction and the
// size cap.
func validateAudioUpload(file *multipart.FileHeader, maxBytes int64) error {
	if maxBytes > 0 && file.Size > maxBytes {
		return apperrors.InvalidInput(fmt.Sprintf("file too large (max %dMB)", maxBytes/(1024*1024)))
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".m4a" {
		return apperrors.InvalidInput("only M4A audio files are allowed")
	}

	contentType := file.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/octet-stream" {
		ok := false
		for _, prefix := range acceptedMIMEPrefixes {
			if strings.HasPrefix(contentType, prefix) {
				ok = true
				break
			}
		}
		if !ok {
			return apperrors.InvalidInput("only M4A audio files are allowed")
		}
	}
	return nil
}

// storeUpload writes the uploaded file under the uploads dir with a
// uuid-based name and returns the stored path.
func (h *Handler) storeUpload(file *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(h.uploads.Dir, 0o755); err != nil {
		return "", apperrors.Internal(err)
	}

	storedPath := filepath.Join(h.uploads.Dir, uuid.New().String()+".m4a")

	src, err := file.Open()
	if err != nil {
		return "", apperrors.Internal(err)
	}
	defer src.Close()

	dst, err := os.Create(storedPath)
	if err != nil {
		return "", apperrors.Internal(err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(storedPath)
		return "", apperrors.Internal(err)
	}

	h.log.Debug("Upload stored", map[string]interface{}{
		"file_name": file.Filename,
		"path":      storedPath,
		"size":      file.Size,
	})
	return storedPath, nil
}

// GetSession returns a session with its transcripts and questions.
func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// SessionStatus reconciles a processing session with the provider and
// returns the current state.
func (h *Handler) SessionStatus(c *gin.Context) {
	res, err := h.svc.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	body := gin.H{"session": res.Session}
	if res.AssemblyStatus != "" {
		body["assemblyStatus"] = res.AssemblyStatus
	}
	if res.ProviderError != "" {
		body["error"] = res.ProviderError
	}
	c.JSON(http.StatusOK, body)
}

// SwapSpeakers inverts the speaker-identity flag on the session's transcript.
func (h *Handler) SwapSpeakers(c *gin.Context) {
	transcript, err := h.svc.SwapSpeakers(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcript": transcript})
}

type createQuestionRequest struct {
	Question string `json:"question" validate:"required"`
}

// CreateQuestion submits a question and returns the stored Q&A exchange.
func (h *Handler) CreateQuestion(c *gin.Context) {
	var req createQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.MissingField("question"))
		return
	}
	if err := validation.Validate(req); err != nil {
		h.respondError(c, err)
		return
	}

	q, err := h.svc.AskQuestion(c.Request.Context(), c.Param("id"), req.Question)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"question": q})
}

// ListQuestions returns a session's Q&A history, oldest first.
func (h *Handler) ListQuestions(c *gin.Context) {
	questions, err := h.svc.Questions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

// respondError maps an error to the flat client body, logging causes
// server-side only.
func (h *Handler) respondError(c *gin.Context, err error) {
	if appErr, ok := apperrors.AsAppError(err); ok {
		if appErr.Cause != nil {
			h.log.Error("Request error", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"code":  string(appErr.Code),
				"error": appErr.Cause.Error(),
			})
		}
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}

	h.log.Error("Unexpected error", map[string]interface{}{
		"path":  c.Request.URL.Path,
		"error": err.Error(),
	})
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
