package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/slideshow-api/internal/audio"
	"github.com/maauso/slideshow-api/internal/encode"
	"github.com/maauso/slideshow-api/internal/media"
	"github.com/maauso/slideshow-api/internal/metrics"
	"github.com/maauso/slideshow-api/internal/storage"
	"github.com/maauso/slideshow-api/internal/timeline"
	"github.com/maauso/slideshow-api/internal/transition"
)

// DefaultOutputFilename is used when a request does not name its output.
const DefaultOutputFilename = "output.mp4"

var (
	// ErrNoVideo is returned when a job has no output video to serve or delete.
	ErrNoVideo = errors.New("job has no video")
	// ErrJobNotFinished is returned when deleting the video of a running job.
	ErrJobNotFinished = errors.New("job is not finished")
)

// Upload is one submitted file.
type Upload struct {
	// Name is the original file name; its extension is kept in the workspace.
	Name string
	Data []byte
}

// RenderInput contains the parameters of one slideshow render.
type RenderInput struct {
	// Images are rendered in order. Undecodable images are skipped with a warning.
	Images []Upload
	// Audio is optional. Undecodable audio yields a silent video and a warning.
	Audio *Upload
	// Transition selects the effect between frames.
	Transition transition.Kind
	// FrameDuration overrides the configured per-frame duration when positive.
	FrameDuration time.Duration
	// FPS overrides the configured frame rate when positive.
	FPS int
	// CoverText overrides the configured caption. An empty string draws no caption.
	CoverText *string
	// DisableCover skips the cover frame.
	DisableCover bool
	// OutputFilename is reduced to a base name; defaults to output.mp4.
	OutputFilename string
	// PushToS3 uploads the finished video.
	PushToS3 bool
}

// RenderOutput contains the result of a finished render.
type RenderOutput struct {
	JobID     string
	Status    Status
	VideoPath string
	VideoURL  string
	Frames    int
	Duration  time.Duration
	Warnings  []string
}

// RenderService drives a job through normalize, cover, assemble, audio sync,
// encode and upload. Each run works inside its own storage workspace, which
// is released on every exit path.
type RenderService struct {
	repo    Repository
	store   storage.Storage
	cover   *media.CoverSynthesizer
	loader  audio.Loader
	encoder encode.Encoder
	cfg     media.RenderConfig
	logger  *slog.Logger

	normalizeWorkers int
	outputDir        string
	jobTimeout       time.Duration
	releaseTimeout   time.Duration
}

// ServiceOption configures a RenderService.
type ServiceOption func(*RenderService)

// WithNormalizeWorkers bounds how many images are decoded and normalized at once.
func WithNormalizeWorkers(n int) ServiceOption {
	return func(s *RenderService) {
		if n > 0 {
			s.normalizeWorkers = n
		}
	}
}

// WithOutputDir sets where finished videos are written.
func WithOutputDir(dir string) ServiceOption {
	return func(s *RenderService) {
		if dir != "" {
			s.outputDir = dir
		}
	}
}

// WithJobTimeout bounds a single render. Zero disables the limit.
func WithJobTimeout(d time.Duration) ServiceOption {
	return func(s *RenderService) {
		if d >= 0 {
			s.jobTimeout = d
		}
	}
}

// NewRenderService creates a new RenderService.
func NewRenderService(
	repo Repository,
	store storage.Storage,
	cover *media.CoverSynthesizer,
	loader audio.Loader,
	encoder encode.Encoder,
	cfg media.RenderConfig,
	logger *slog.Logger,
	opts ...ServiceOption,
) *RenderService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &RenderService{
		repo:             repo,
		store:            store,
		cover:            cover,
		loader:           loader,
		encoder:          encoder,
		cfg:              cfg,
		logger:           logger,
		normalizeWorkers: 4,
		outputDir:        filepath.Join(os.TempDir(), "slideshow-output"),
		jobTimeout:       10 * time.Minute,
		releaseTimeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := cover.FontErr(); err != nil {
		logger.Warn("caption font unavailable, using built-in face",
			slog.String("error", err.Error()),
		)
	}
	return s
}

// OutputDir returns the directory finished videos are written to.
func (s *RenderService) OutputDir() string {
	return s.outputDir
}

// CreateJob creates a new job and persists it to the repository.
// The job is created in IN_QUEUE status, ready for processing.
func (s *RenderService) CreateJob(ctx context.Context, input RenderInput) (*Job, error) {
	job := New()
	job.ImageCount = len(input.Images)
	job.Transition = input.Transition.String()
	job.OutputFilename = OutputFilename(input.OutputFilename)
	job.PushToS3 = input.PushToS3

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.Int("images", job.ImageCount),
		slog.String("transition", job.Transition),
		slog.Bool("has_audio", input.Audio != nil),
		slog.Bool("push_to_s3", input.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *RenderService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// Render creates a job and renders it synchronously.
func (s *RenderService) Render(ctx context.Context, input RenderInput) (*RenderOutput, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.ProcessExistingJob(ctx, job.ID, input)
}

// ProcessExistingJob renders a job previously created with CreateJob and
// records the outcome on it.
func (s *RenderService) ProcessExistingJob(ctx context.Context, jobID string, input RenderInput) (*RenderOutput, error) {
	if _, err := s.repo.Update(ctx, jobID, (*Job).Start); err != nil {
		return nil, fmt.Errorf("start job %s: %w", jobID, err)
	}

	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	started := time.Now()
	out, runErr := s.run(ctx, jobID, input)

	// The outcome must be stored even if ctx is already done.
	saveCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		status := failureStatus(runErr)
		metrics.JobsTotal.WithLabelValues(string(status)).Inc()
		s.logger.Error("render failed",
			slog.String("job_id", jobID),
			slog.String("status", string(status)),
			slog.Duration("elapsed", time.Since(started)),
			slog.String("error", runErr.Error()),
		)
		if _, err := s.repo.Update(saveCtx, jobID, func(j *Job) error {
			return j.Abort(status, runErr.Error())
		}); err != nil {
			s.logger.Error("failed to record job failure",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
		return nil, runErr
	}

	job, err := s.repo.Update(saveCtx, jobID, func(j *Job) error {
		j.SetResult(out.Frames, out.Duration)
		j.SetOutput(out.VideoPath, out.VideoURL)
		return j.Complete()
	})
	if err != nil {
		return nil, fmt.Errorf("complete job %s: %w", jobID, err)
	}
	metrics.JobsTotal.WithLabelValues(string(StatusCompleted)).Inc()

	s.logger.Info("render completed",
		slog.String("job_id", jobID),
		slog.String("output", out.VideoPath),
		slog.Int("frames", out.Frames),
		slog.Duration("video_duration", out.Duration),
		slog.Int("warnings", len(job.Warnings)),
		slog.Duration("elapsed", time.Since(started)),
	)

	out.Status = job.Status
	out.Warnings = job.Warnings
	return out, nil
}

// run executes the pipeline for one job inside a fresh workspace.
func (s *RenderService) run(ctx context.Context, jobID string, in RenderInput) (*RenderOutput, error) {
	cfg, spec, err := s.runConfig(in)
	if err != nil {
		return nil, err
	}

	ws, err := s.store.NewWorkspace(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	defer s.release(ctx, ws)

	imagePaths, audioPath, err := s.saveUploads(ctx, ws, in)
	if err != nil {
		return nil, err
	}
	s.progress(ctx, jobID, 10)

	// Normalize
	stageStart := time.Now()
	frames, firstIdx, err := s.normalizeAll(ctx, jobID, cfg, in.Images, imagePaths)
	if err != nil {
		return nil, err
	}
	observeStage(metrics.StageNormalize, stageStart)
	if len(frames) == 0 {
		return nil, media.ErrEmptyInput
	}
	s.progress(ctx, jobID, 40)

	// Cover
	if !in.DisableCover {
		stageStart = time.Now()
		cover, err := s.makeCover(ctx, jobID, cfg, in, in.Images[firstIdx].Name, imagePaths[firstIdx])
		if err != nil {
			return nil, err
		}
		frames = append([]media.Frame{cover}, frames...)
		observeStage(metrics.StageCover, stageStart)
	}
	if err := ws.CleanupTemp(ctx, imagePaths); err != nil {
		s.logger.Warn("failed to remove image uploads",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
	s.progress(ctx, jobID, 50)

	// Assemble
	stageStart = time.Now()
	tl, err := timeline.Assemble(frames, spec, cfg.FPS)
	if err != nil {
		return nil, err
	}
	for _, idx := range tl.Clamped() {
		metrics.ClampedTransitionsTotal.Inc()
		s.warn(ctx, jobID, fmt.Sprintf("transition into frame %d shortened to fit the adjacent frame", idx))
	}
	observeStage(metrics.StageAssemble, stageStart)
	s.progress(ctx, jobID, 60)

	// Audio
	var wavPath string
	if audioPath != "" {
		stageStart = time.Now()
		wavPath, err = s.syncAudio(ctx, jobID, ws, tl, audioPath)
		if err != nil {
			return nil, err
		}
		observeStage(metrics.StageAudio, stageStart)
	}
	s.progress(ctx, jobID, 70)

	// Encode
	outPath := filepath.Join(s.outputDir, jobID, OutputFilename(in.OutputFilename))
	stageStart = time.Now()
	res, err := s.encoder.Encode(ctx, encode.Request{
		Timeline:   tl,
		AudioPath:  wavPath,
		OutputPath: outPath,
	})
	if err != nil {
		s.removeOutput(jobID)
		return nil, err
	}
	observeStage(metrics.StageEncode, stageStart)
	s.progress(ctx, jobID, 95)

	out := &RenderOutput{
		JobID:     jobID,
		VideoPath: outPath,
		Frames:    res.Frames,
		Duration:  res.Duration,
	}

	// Upload
	if in.PushToS3 {
		stageStart = time.Now()
		url, err := s.upload(ctx, jobID, outPath)
		if err != nil {
			s.removeOutput(jobID)
			return nil, err
		}
		out.VideoURL = url
		observeStage(metrics.StageUpload, stageStart)
	}

	return out, nil
}

// runConfig applies per-request overrides to the service configuration.
func (s *RenderService) runConfig(in RenderInput) (media.RenderConfig, transition.Spec, error) {
	cfg := s.cfg
	switch {
	case in.FrameDuration > 0:
		cfg.FrameDuration = in.FrameDuration
	case in.FrameDuration < 0:
		return cfg, transition.Spec{}, fmt.Errorf("%w: frame duration must be positive, got %s", media.ErrConfiguration, in.FrameDuration)
	}
	switch {
	case in.FPS > 0:
		cfg.FPS = in.FPS
	case in.FPS < 0:
		return cfg, transition.Spec{}, fmt.Errorf("%w: fps must be positive, got %d", media.ErrConfiguration, in.FPS)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, transition.Spec{}, err
	}

	spec, err := transition.NewSpec(in.Transition, cfg.TransitionDuration)
	if err != nil {
		return cfg, transition.Spec{}, err
	}
	if len(in.Images) == 0 {
		return cfg, transition.Spec{}, media.ErrEmptyInput
	}
	return cfg, spec, nil
}

func (s *RenderService) saveUploads(ctx context.Context, ws *storage.Workspace, in RenderInput) ([]string, string, error) {
	paths := make([]string, len(in.Images))
	for i, up := range in.Images {
		p, err := ws.SaveTemp(ctx, uploadName(up.Name, fmt.Sprintf("image_%03d", i)), bytes.NewReader(up.Data))
		if err != nil {
			return nil, "", fmt.Errorf("save image %d: %w", i, err)
		}
		paths[i] = p
	}

	if in.Audio == nil {
		return paths, "", nil
	}
	p, err := ws.SaveTemp(ctx, uploadName(in.Audio.Name, "audio"), bytes.NewReader(in.Audio.Data))
	if err != nil {
		return nil, "", fmt.Errorf("save audio: %w", err)
	}
	return paths, p, nil
}

// normalizeAll decodes and normalizes images concurrently. Frames keep the
// request order; undecodable images are dropped with a warning. firstIdx is
// the request index of the first surviving image.
func (s *RenderService) normalizeAll(ctx context.Context, jobID string, cfg media.RenderConfig, uploads []Upload, paths []string) ([]media.Frame, int, error) {
	normalizer := media.NewNormalizer(cfg)
	results := make([]media.Frame, len(paths))
	decodeErrs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.normalizeWorkers)
	for i := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, _, err := media.LoadImage(uploads[i].Name, paths[i])
			if err == nil {
				results[i], err = normalizer.Normalize(img)
			}
			if errors.Is(err, media.ErrDecode) {
				decodeErrs[i] = err
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	frames := make([]media.Frame, 0, len(results))
	firstIdx := -1
	for i, f := range results {
		if decodeErrs[i] != nil {
			metrics.SkippedInputsTotal.WithLabelValues("image").Inc()
			s.warn(ctx, jobID, "skipped image: "+decodeErrs[i].Error())
			continue
		}
		if firstIdx < 0 {
			firstIdx = i
		}
		frames = append(frames, f)
	}
	return frames, firstIdx, nil
}

func (s *RenderService) makeCover(ctx context.Context, jobID string, cfg media.RenderConfig, in RenderInput, name, path string) (media.Frame, error) {
	caption := cfg.CoverText
	if in.CoverText != nil {
		caption = *in.CoverText
	}
	if caption != "" && s.cover.FontErr() != nil {
		s.warn(ctx, jobID, "caption drawn with fallback font: "+s.cover.FontErr().Error())
	}

	img, _, err := media.LoadImage(name, path)
	if err != nil {
		return media.Frame{}, fmt.Errorf("load cover image: %w", err)
	}
	cover, err := s.cover.MakeCover(img, caption)
	if err != nil {
		return media.Frame{}, fmt.Errorf("make cover: %w", err)
	}
	cover.Duration = cfg.FrameDuration
	return cover, nil
}

// syncAudio loads the audio upload, fits it to the timeline and writes the
// result into the workspace. Undecodable audio is a warning, not an error.
func (s *RenderService) syncAudio(ctx context.Context, jobID string, ws *storage.Workspace, tl *timeline.Timeline, audioPath string) (string, error) {
	track, err := s.loader.Load(ctx, audioPath)
	if cleanupErr := ws.CleanupTemp(ctx, []string{audioPath}); cleanupErr != nil {
		s.logger.Warn("failed to remove audio upload",
			slog.String("job_id", jobID),
			slog.String("error", cleanupErr.Error()),
		)
	}
	if err != nil {
		if errors.Is(err, media.ErrDecode) {
			metrics.SkippedInputsTotal.WithLabelValues("audio").Inc()
			s.warn(ctx, jobID, "skipped audio, video will be silent: "+err.Error())
			return "", nil
		}
		return "", fmt.Errorf("load audio: %w", err)
	}

	if _, err := timeline.SyncAudio(tl, track); err != nil {
		return "", fmt.Errorf("sync audio: %w", err)
	}

	wavPath := ws.Path("soundtrack.wav")
	if err := tl.Audio().SaveWAV(wavPath); err != nil {
		return "", fmt.Errorf("write soundtrack: %w", err)
	}
	return wavPath, nil
}

func (s *RenderService) upload(ctx context.Context, jobID, path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path is produced by the encoder
	if err != nil {
		return "", fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	key := fmt.Sprintf("videos/%s/%s", jobID, filepath.Base(path))
	url, err := s.store.UploadToS3(ctx, key, f)
	if err != nil {
		return "", fmt.Errorf("upload output: %w", err)
	}
	s.logger.Info("video uploaded to S3",
		slog.String("job_id", jobID),
		slog.String("url", url),
	)
	return url, nil
}

// DeleteJobVideo removes the local output of a finished job.
func (s *RenderService) DeleteJobVideo(ctx context.Context, jobID string) error {
	var path string
	_, err := s.repo.Update(ctx, jobID, func(j *Job) error {
		if !j.IsTerminal() {
			return ErrJobNotFinished
		}
		if j.OutputVideoPath == "" {
			return ErrNoVideo
		}
		path = j.OutputVideoPath
		j.ClearOutput()
		return nil
	})
	if err != nil {
		return err
	}

	if err := os.RemoveAll(filepath.Dir(path)); err != nil {
		return fmt.Errorf("remove video: %w", err)
	}
	s.logger.Info("job video deleted",
		slog.String("job_id", jobID),
		slog.String("path", path),
	)
	return nil
}

// release removes the run workspace even when ctx is already cancelled.
func (s *RenderService) release(ctx context.Context, ws *storage.Workspace) {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.releaseTimeout)
	defer cancel()
	if err := ws.Release(relCtx); err != nil {
		s.logger.Warn("failed to release workspace",
			slog.String("job_id", ws.RunID()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *RenderService) removeOutput(jobID string) {
	if err := os.RemoveAll(filepath.Join(s.outputDir, jobID)); err != nil {
		s.logger.Warn("failed to remove output",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *RenderService) warn(ctx context.Context, jobID, msg string) {
	s.logger.Warn(msg, slog.String("job_id", jobID))
	if _, err := s.repo.Update(ctx, jobID, func(j *Job) error {
		j.AddWarning(msg)
		return nil
	}); err != nil {
		s.logger.Error("failed to record warning",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *RenderService) progress(ctx context.Context, jobID string, pct int) {
	if _, err := s.repo.Update(ctx, jobID, func(j *Job) error {
		j.UpdateProgress(pct)
		return nil
	}); err != nil {
		s.logger.Debug("failed to update progress",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// OutputFilename reduces name to a safe .mp4 base name.
func OutputFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(strings.ReplaceAll(name, `\`, "/")))
	if base == "." || base == "/" || base == "" {
		return DefaultOutputFilename
	}
	if !strings.EqualFold(filepath.Ext(base), ".mp4") {
		base = strings.TrimSuffix(base, filepath.Ext(base)) + ".mp4"
	}
	if base == ".mp4" {
		return DefaultOutputFilename
	}
	return base
}

func uploadName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return filepath.Base(name)
}

func failureStatus(err error) Status {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimedOut
	case errors.Is(err, context.Canceled):
		return StatusCancelled
	default:
		return StatusFailed
	}
}

func observeStage(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
