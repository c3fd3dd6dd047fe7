package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/maauso/slideshow-api/internal/job"
	"github.com/maauso/slideshow-api/internal/transition"
)

// defaultMaxBodyBytes caps request bodies when no limit is configured.
const defaultMaxBodyBytes int64 = 68 << 20

// errUnsupportedMedia is returned for uploads that are neither named nor
// sniffed as an accepted format.
var errUnsupportedMedia = errors.New("unsupported media type")

// mediaKind lists the formats accepted for one kind of upload.
type mediaKind struct {
	mimes []string
	exts  []string
}

var (
	imageKind = mediaKind{mimes: []string{"image/png", "image/jpeg"}, exts: []string{".png", ".jpg", ".jpeg"}}
	audioKind = mediaKind{mimes: []string{"audio/mpeg", "audio/wav"}, exts: []string{".mp3", ".wav"}}
)

// accepts reports whether either the name or the content matches. Damaged
// files with a valid name pass so the pipeline can skip them with a warning.
func (k mediaKind) accepts(name string, mt *mimetype.MIME) bool {
	if slices.Contains(k.exts, strings.ToLower(filepath.Ext(name))) {
		return true
	}
	return slices.ContainsFunc(k.mimes, mt.Is)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.RenderService
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
	maxBodyBytes       int64

	// Background renders run under baseCtx and are tracked by jobs.
	baseCtx context.Context
	jobs    sync.WaitGroup
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithMaxBodyBytes limits the size of request bodies.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// WithBaseContext sets the context background renders run under.
// Cancelling it cancels every render still in flight.
func WithBaseContext(ctx context.Context) HandlerOption {
	return func(h *Handlers) {
		if ctx != nil {
			h.baseCtx = ctx
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.RenderService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
		maxBodyBytes:       defaultMaxBodyBytes,
		baseCtx:            context.Background(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Wait blocks until every background render has returned or ctx is done.
func (h *Handlers) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), "REQUEST_TOO_LARGE")
			return
		}
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	input, err := h.renderInput(req)
	if err != nil {
		if errors.Is(err, errUnsupportedMedia) {
			writeError(w, http.StatusUnsupportedMediaType, err.Error(), "UNSUPPORTED_MEDIA_TYPE")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	// Create job first (synchronously)
	createdJob, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// The render outlives the request, so it runs under the handler's base context.
	if h.enableAsyncProcess {
		jobID := createdJob.ID
		h.jobs.Go(func() {
			if _, processErr := h.service.ProcessExistingJob(h.baseCtx, jobID, input); processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		})
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.Int("images", len(req.Images)),
		slog.String("transition", createdJob.Transition),
	)

	w.Header().Set("Location", "/jobs/"+createdJob.ID)
	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// renderInput decodes the uploads of a validated request.
func (h *Handlers) renderInput(req CreateJobRequest) (job.RenderInput, error) {
	kind := transition.Kind(req.Transition)
	if req.Transition == 0 {
		kind = transition.Fade
	}
	input := job.RenderInput{
		Images:         make([]job.Upload, 0, len(req.Images)),
		Transition:     kind,
		FrameDuration:  time.Duration(req.FrameDurationSec * float64(time.Second)),
		FPS:            req.FPS,
		CoverText:      req.CoverText,
		DisableCover:   req.DisableCover,
		OutputFilename: req.OutputFilename,
		PushToS3:       req.PushToS3,
	}

	for i, f := range req.Images {
		up, err := decodeUpload(f, fmt.Sprintf("image_%03d", i+1), imageKind)
		if err != nil {
			return job.RenderInput{}, fmt.Errorf("images[%d]: %w", i, err)
		}
		input.Images = append(input.Images, up)
	}

	if req.Audio != nil {
		up, err := decodeUpload(*req.Audio, "audio", audioKind)
		if err != nil {
			return job.RenderInput{}, fmt.Errorf("audio: %w", err)
		}
		input.Audio = &up
	}
	return input, nil
}

// decodeUpload decodes the payload and gives it a file name. A missing
// extension is filled in from the sniffed content type.
func decodeUpload(f FileUpload, fallback string, kind mediaKind) (job.Upload, error) {
	data, err := base64.StdEncoding.DecodeString(f.DataBase64)
	if err != nil {
		return job.Upload{}, fmt.Errorf("invalid base64: %w", err)
	}

	mt := mimetype.Detect(data)
	name := filepath.Base(f.Name)
	if f.Name == "" {
		name = fallback
	}
	if filepath.Ext(name) == "" {
		name += mt.Extension()
	}
	if !kind.accepts(name, mt) {
		return job.Upload{}, fmt.Errorf("%w: %s (%s)", errUnsupportedMedia, name, mt.String())
	}
	return job.Upload{Name: name, Data: data}, nil
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, ok := h.findJob(w, r, jobID)
	if !ok {
		return
	}

	resp := JobResponse{
		ID:             foundJob.ID,
		Status:         string(foundJob.Status),
		Progress:       foundJob.Progress,
		Error:          foundJob.Error,
		Warnings:       foundJob.Warnings,
		Transition:     foundJob.Transition,
		ImageCount:     foundJob.ImageCount,
		FrameCount:     foundJob.FrameCount,
		DurationSec:    foundJob.VideoDuration.Seconds(),
		OutputFilename: foundJob.OutputFilename,
		VideoURL:       foundJob.VideoURL,
		CreatedAt:      foundJob.CreatedAt,
		Links:          JobLinks{Self: "/jobs/" + foundJob.ID},
	}
	if !foundJob.CompletedAt.IsZero() {
		completed := foundJob.CompletedAt
		resp.CompletedAt = &completed
	}

	// Link the video only once it exists locally
	if foundJob.Status == job.StatusCompleted && foundJob.OutputVideoPath != "" {
		resp.Links.Video = "/jobs/" + foundJob.ID + "/video"
		resp.Links.Delete = "/jobs/" + foundJob.ID + "/video/delete"
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetJobVideo handles GET /jobs/{id}/video requests by streaming the MP4.
func (h *Handlers) GetJobVideo(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, ok := h.findJob(w, r, jobID)
	if !ok {
		return
	}

	if foundJob.Status != job.StatusCompleted {
		writeError(w, http.StatusConflict, "job is not completed", "JOB_NOT_COMPLETED")
		return
	}
	if foundJob.OutputVideoPath == "" {
		writeError(w, http.StatusNotFound, "video not available", "VIDEO_NOT_FOUND")
		return
	}
	if _, err := os.Stat(foundJob.OutputVideoPath); err != nil {
		h.logger.Error("output video missing",
			slog.String("job_id", jobID),
			slog.String("path", foundJob.OutputVideoPath),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusNotFound, "video not available", "VIDEO_NOT_FOUND")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": foundJob.OutputFilename,
	}))
	http.ServeFile(w, r, foundJob.OutputVideoPath)
}

// DeleteJobVideo handles POST /jobs/{id}/video/delete requests.
func (h *Handlers) DeleteJobVideo(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	err := h.service.DeleteJobVideo(r.Context(), jobID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrNoVideo):
		writeError(w, http.StatusNotFound, "job has no video", "VIDEO_NOT_FOUND")
	case errors.Is(err, job.ErrJobNotFinished):
		writeError(w, http.StatusConflict, "job is still running", "JOB_NOT_FINISHED")
	default:
		h.logger.Error("failed to delete job video",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete video", "VIDEO_DELETE_FAILED")
	}
}

func (h *Handlers) findJob(w http.ResponseWriter, r *http.Request, jobID string) (*job.Job, bool) {
	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return nil, false
	}
	return foundJob, true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
