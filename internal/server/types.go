// Package server provides the HTTP server for the slideshow API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// FileUpload is one base64-encoded file in a request.
type FileUpload struct {
	// Name is the original file name. Its extension selects the decoder;
	// when missing, the extension is sniffed from the content.
	Name string `json:"name,omitempty" validate:"omitempty,max=255"`
	// DataBase64 is the base64-encoded file content.
	DataBase64 string `json:"data_base64" validate:"required,base64"`
}

// CreateJobRequest is the HTTP request body for creating a new job.
type CreateJobRequest struct {
	// Images are rendered in order, after the cover.
	Images []FileUpload `json:"images" validate:"required,min=1,max=200,dive"`
	// Audio is the optional soundtrack (mp3 or wav).
	Audio *FileUpload `json:"audio,omitempty"`
	// Transition is 1 (fade), 2 (slide right) or 3 (slide down). Omitted means fade.
	Transition int `json:"transition" validate:"omitempty,oneof=1 2 3"`
	// FrameDurationSec overrides how long each still is shown.
	FrameDurationSec float64 `json:"frame_duration_sec,omitempty" validate:"omitempty,gt=0,lte=60"`
	// FPS overrides the output frame rate.
	FPS int `json:"fps,omitempty" validate:"omitempty,min=1,max=120"`
	// CoverText overrides the configured caption. An empty string draws none.
	CoverText *string `json:"cover_text,omitempty" validate:"omitempty,max=200"`
	// DisableCover skips the cover frame.
	DisableCover bool `json:"disable_cover"`
	// OutputFilename names the produced video; defaults to output.mp4.
	OutputFilename string `json:"output_filename,omitempty" validate:"omitempty,max=255"`
	// PushToS3 indicates whether to upload the final video to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobLinks points at the resources of a finished job.
type JobLinks struct {
	Self   string `json:"self"`
	Video  string `json:"video,omitempty"`
	Delete string `json:"delete_video,omitempty"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// Warnings lists skipped inputs and other recoverable problems.
	Warnings []string `json:"warnings"`
	// Transition is the transition used between frames.
	Transition string `json:"transition"`
	// ImageCount is the number of submitted images.
	ImageCount int `json:"image_count"`
	// FrameCount is the number of encoded video frames.
	FrameCount int `json:"frame_count,omitempty"`
	// DurationSec is the video length in seconds.
	DurationSec float64 `json:"duration_sec,omitempty"`
	// OutputFilename is the name the video is served under.
	OutputFilename string `json:"output_filename"`
	// VideoURL is the S3 URL of the output video (if push_to_s3=true and completed).
	VideoURL string `json:"video_url,omitempty"`
	// CreatedAt is when the job was accepted.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is set once the job reaches a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Links lists related endpoints.
	Links JobLinks `json:"links"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
