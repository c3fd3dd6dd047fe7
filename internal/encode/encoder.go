// Package encode turns an assembled timeline into an MP4 file.
package encode

import (
	"context"
	"time"

	"github.com/maauso/slideshow-api/internal/timeline"
)

// Request is one encode job.
type Request struct {
	Timeline *timeline.Timeline
	// AudioPath is a wav already fitted to the timeline. Empty encodes video only.
	AudioPath string
	// OutputPath is where the MP4 is written.
	OutputPath string
}

// Result describes a finished encode.
type Result struct {
	Path     string
	Frames   int
	Duration time.Duration
}

// Encoder produces the output video for a Request.
// Failures wrap media.ErrEncode.
type Encoder interface {
	Encode(ctx context.Context, req Request) (Result, error)
}
