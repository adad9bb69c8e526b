// Package api exposes the task manager over HTTP.
package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/yonatanl/tamlil/internal/summarize"
	"github.com/yonatanl/tamlil/internal/task"
)

// Per-IP rate limits. Submissions spawn heavyweight background work and the
// AI endpoints spend model quota, so both get tighter limits than the
// read-only routes, which are unlimited.
const (
	submitRateLimit = 10
	aiRateLimit     = 20
	rateLimitWindow = time.Minute
)

// Handler carries the dependencies of the HTTP surface.
type Handler struct {
	manager *task.Manager
	gemini  *summarize.Gemini // nil when AI features are disabled

	uploadDir      string
	outputDir      string
	maxUploadBytes int64
	diarization    bool

	logger *slog.Logger
}

// New creates the HTTP handler set. gemini may be nil.
func New(
	manager *task.Manager,
	gemini *summarize.Gemini,
	uploadDir, outputDir string,
	maxUploadBytes int64,
	diarization bool,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		manager:        manager,
		gemini:         gemini,
		uploadDir:      uploadDir,
		outputDir:      outputDir,
		maxUploadBytes: maxUploadBytes,
		diarization:    diarization,
		logger:         logger,
	}
}

// Routes builds the router with standard middleware and all endpoints.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(submitRateLimit, rateLimitWindow))
		r.Post("/start", h.Start)
		r.Post("/upload", h.Upload)
	})

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(aiRateLimit, rateLimitWindow))
		r.Post("/ask", h.Ask)
		r.Post("/study", h.StudyMaterial)
	})

	r.Get("/status/{taskID}", h.Status)
	r.Get("/history", h.History)
	r.Get("/health", h.Health)
	r.Get("/preview/{taskID}", h.Preview)
	r.Get("/download/{taskID}", h.Download)
	r.Get("/export/{taskID}/docx", h.ExportDocx)

	return r
}

type startRequest struct {
	URL      string `json:"url"`
	TestMode bool   `json:"test_mode"`
}

type submitResponse struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Filename string `json:"filename,omitempty"`
}

// Start submits a transcription task for a remote URL.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := validateURL(req.URL); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.manager.Submit(task.SubmitRequest{URL: req.URL, TestMode: req.TestMode})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, submitResponse{TaskID: id, Status: string(task.StatusQueued)})
}

// Upload accepts a media file and submits it as a local-path task.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "upload too large or malformed")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer func() { _ = file.Close() }()

	if header.Filename == "" {
		respondError(w, http.StatusBadRequest, "no file selected")
		return
	}
	if err := validateUploadName(header.Filename); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if header.Size == 0 {
		respondError(w, http.StatusBadRequest, "file is empty")
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.logger.Error("failed to create upload directory", "error", err)
		respondError(w, http.StatusInternalServerError, "file save failed")
		return
	}

	// The extension is taken from the validated original name before
	// sanitizing, which can strip it entirely (a fully non-ASCII stem
	// sanitizes to nothing). Timestamp plus a random suffix keeps
	// same-named and same-second uploads apart.
	ext := strings.ToLower(filepath.Ext(header.Filename))
	stem := sanitizeFilename(strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename)))
	if stem == "" {
		stem = "upload"
	}
	unique := fmt.Sprintf("%s_%d_%s%s", stem, time.Now().Unix(), uuid.NewString()[:8], ext)
	dest := filepath.Join(h.uploadDir, unique)

	out, err := os.Create(dest)
	if err != nil {
		h.logger.Error("failed to create upload file", "path", dest, "error", err)
		respondError(w, http.StatusInternalServerError, "file save failed")
		return
	}
	written, err := io.Copy(out, file)
	closeErr := out.Close()
	if err != nil || closeErr != nil || written == 0 {
		_ = os.Remove(dest)
		respondError(w, http.StatusInternalServerError, "file save failed")
		return
	}

	id, err := h.manager.Submit(task.SubmitRequest{LocalPath: dest})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("file uploaded", "filename", unique, "bytes", written)
	respondJSON(w, http.StatusOK, submitResponse{
		TaskID:   id,
		Status:   string(task.StatusQueued),
		Filename: unique,
	})
}

// Status returns the current state of one task.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	t, ok := h.manager.GetStatus(chi.URLParam(r, "taskID"))
	if !ok {
		respondError(w, http.StatusNotFound, "task not found")
		return
	}
	respondJSON(w, http.StatusOK, t)
}

type historyResponse struct {
	Tasks []task.Task `json:"tasks"`
	Count int         `json:"count"`
}

// History returns all tasks, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	tasks := h.manager.GetAll()
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	respondJSON(w, http.StatusOK, historyResponse{Tasks: tasks, Count: len(tasks)})
}

type healthResponse struct {
	Status     string          `json:"status"`
	Service    string          `json:"service"`
	Timestamp  time.Time       `json:"timestamp"`
	QueueDepth int             `json:"queue_depth"`
	TotalTasks int             `json:"total_tasks"`
	Features   map[string]bool `json:"features"`
}

// Health reports liveness and feature flags for load balancers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{
		Status:     "healthy",
		Service:    "tamlil",
		Timestamp:  time.Now().UTC(),
		QueueDepth: h.manager.QueueDepth(),
		TotalTasks: len(h.manager.GetAll()),
		Features: map[string]bool{
			"ai_enabled":  h.gemini != nil,
			"diarization": h.diarization,
		},
	})
}

type previewResponse struct {
	TaskID   string `json:"task_id"`
	Text     string `json:"text"`
	Filename string `json:"filename,omitempty"`
}

// Preview returns the transcript text of a completed task.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	t, text, errStatus, errMsg := h.completedTranscript(chi.URLParam(r, "taskID"))
	if errMsg != "" {
		respondError(w, errStatus, errMsg)
		return
	}
	respondJSON(w, http.StatusOK, previewResponse{
		TaskID:   t.ID,
		Text:     text,
		Filename: filepath.Base(t.Result.TranscriptPath),
	})
}

// Download serves the transcript text file of a completed task.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	t, ok := h.manager.GetStatus(chi.URLParam(r, "taskID"))
	if !ok {
		respondError(w, http.StatusNotFound, "task not found")
		return
	}
	if t.Status != task.StatusCompleted || t.Result == nil {
		respondError(w, http.StatusBadRequest, "task not completed")
		return
	}
	path := t.Result.TranscriptPath
	if path == "" {
		respondError(w, http.StatusNotFound, "file not found")
		return
	}
	if !pathWithin(path, []string{h.outputDir, h.uploadDir}) {
		h.logger.Warn("blocked path traversal attempt", "path", path)
		respondError(w, http.StatusForbidden, "access denied")
		return
	}
	if _, err := os.Stat(path); err != nil {
		respondError(w, http.StatusNotFound, "file not found")
		return
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

// completedTranscript resolves a task id to its transcript text, falling
// back to the on-disk artifact when the in-memory record carries no text.
func (h *Handler) completedTranscript(id string) (task.Task, string, int, string) {
	t, ok := h.manager.GetStatus(id)
	if !ok {
		return t, "", http.StatusNotFound, "task not found"
	}
	if t.Status != task.StatusCompleted || t.Result == nil {
		return t, "", http.StatusBadRequest, "transcription not completed"
	}
	if t.Result.Text != "" {
		return t, t.Result.Text, 0, ""
	}
	if t.Result.TranscriptPath != "" {
		data, err := os.ReadFile(t.Result.TranscriptPath)
		if err == nil {
			return t, string(data), 0, ""
		}
		h.logger.Error("failed to read transcript file",
			"task_id", id, "path", t.Result.TranscriptPath, "error", err)
	}
	return t, "", http.StatusNotFound, "transcript not available"
}
