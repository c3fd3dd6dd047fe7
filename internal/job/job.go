// Package job provides the Job aggregate for slideshow render jobs and the
// RenderService that drives a job through the pipeline.
package job

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/slideshow-api/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job was accepted and waits to be rendered.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the job is being rendered.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the video was produced.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the render aborted with an error.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the caller went away before the render finished.
	StatusCancelled Status = "CANCELLED"
	// StatusTimedOut indicates the render exceeded the job timeout.
	StatusTimedOut Status = "TIMED_OUT"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled, StatusTimedOut},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
	StatusTimedOut:  {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Job represents a slideshow render job aggregate.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job. It also names the run workspace.
	ID string
	// Status is the current job state.
	Status Status
	// Progress is the percentage of completion (0-100).
	Progress int
	// Error contains any error message if the job did not complete.
	Error string
	// Warnings lists recoverable problems, such as skipped images.
	Warnings []string
	// Transition is the name of the transition used between frames.
	Transition string
	// ImageCount is the number of images submitted.
	ImageCount int
	// FrameCount is the number of encoded video frames.
	FrameCount int
	// VideoDuration is the length of the produced video.
	VideoDuration time.Duration
	// OutputFilename is the sanitized file name requested by the caller.
	OutputFilename string
	// OutputVideoPath is the path to the final output video.
	OutputVideoPath string
	// PushToS3 indicates whether to upload the result to S3.
	PushToS3 bool
	// VideoURL is the S3 URL if PushToS3 was true.
	VideoURL string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		Warnings:  make([]string, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	// Set timestamps based on state
	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted:
		j.CompletedAt = j.UpdatedAt
		j.Progress = 100
	case StatusFailed, StatusCancelled, StatusTimedOut:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
// Returns ErrInvalidTransition if the job is not in IN_QUEUE state.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) Fail(errMsg string) error {
	return j.Abort(StatusFailed, errMsg)
}

// Cancel transitions the job to CANCELLED state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// Timeout transitions the job to TIMED_OUT state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) Timeout() error {
	return j.TransitionTo(StatusTimedOut)
}

// Abort moves the job to a terminal failure status and records why.
// The message is kept only if the transition succeeds.
func (j *Job) Abort(status Status, errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if status == StatusCompleted {
		return ErrInvalidTransition
	}
	if err := j.transitionLocked(status); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// AddWarning records a recoverable problem.
func (j *Job) AddWarning(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Warnings = append(j.Warnings, msg)
	j.UpdatedAt = time.Now()
}

// UpdateProgress sets the progress percentage (0-100).
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// SetResult records what the encoder produced.
func (j *Job) SetResult(frames int, duration time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.FrameCount = frames
	j.VideoDuration = duration
	j.UpdatedAt = time.Now()
}

// SetOutput sets the output video path and optional S3 URL.
func (j *Job) SetOutput(videoPath, videoURL string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputVideoPath = videoPath
	j.VideoURL = videoURL
	j.UpdatedAt = time.Now()
}

// ClearOutput clears the output video path and URL.
// This is used when deleting the job's video file.
func (j *Job) ClearOutput() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputVideoPath = ""
	j.VideoURL = ""
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(validTransitions[j.Status]) == 0
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:              j.ID,
		Status:          j.Status,
		Progress:        j.Progress,
		Error:           j.Error,
		Warnings:        slices.Clone(j.Warnings),
		Transition:      j.Transition,
		ImageCount:      j.ImageCount,
		FrameCount:      j.FrameCount,
		VideoDuration:   j.VideoDuration,
		OutputFilename:  j.OutputFilename,
		OutputVideoPath: j.OutputVideoPath,
		PushToS3:        j.PushToS3,
		VideoURL:        j.VideoURL,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
}
