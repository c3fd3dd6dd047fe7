// Package transition composites adjacent slideshow frames. Each supported
// kind is a Transition strategy; Apply folds frames into a Composite whose
// layers can be rendered at any point in time.
package transition

import (
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"

	"github.com/maauso/slideshow-api/internal/media"
)

// Kind selects a transition. The numeric values are part of the public API.
type Kind int

// Supported transition kinds.
const (
	Fade       Kind = 1
	SlideRight Kind = 2
	SlideDown  Kind = 3
)

func (k Kind) String() string {
	switch k {
	case Fade:
		return "fade"
	case SlideRight:
		return "slide_right"
	case SlideDown:
		return "slide_down"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseKind accepts either the numeric selector ("1".."3") or the name.
func ParseKind(s string) (Kind, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(v); err == nil {
		k := Kind(n)
		if _, ok := registry[k]; ok {
			return k, nil
		}
		return 0, fmt.Errorf("%w: unsupported transition %d", media.ErrConfiguration, n)
	}
	switch strings.NewReplacer("-", "_", " ", "_").Replace(v) {
	case "fade":
		return Fade, nil
	case "slide_right", "slideright":
		return SlideRight, nil
	case "slide_down", "slidedown":
		return SlideDown, nil
	}
	return 0, fmt.Errorf("%w: unsupported transition %q", media.ErrConfiguration, s)
}

// Spec is the transition kind plus the overlap between two adjacent frames.
// It is shared by every pair in a timeline.
type Spec struct {
	Kind     Kind
	Duration time.Duration
}

// NewSpec validates kind and duration.
func NewSpec(kind Kind, d time.Duration) (Spec, error) {
	if _, err := For(kind); err != nil {
		return Spec{}, err
	}
	if d < 0 {
		return Spec{}, fmt.Errorf("%w: transition duration must not be negative, got %s", media.ErrConfiguration, d)
	}
	return Spec{Kind: kind, Duration: d}, nil
}

func (s Spec) String() string {
	return fmt.Sprintf("%s/%s", s.Kind, s.Duration)
}

// Transition draws an entering frame over whatever is already in dst.
// progress runs from 0 (entry starts) to 1 (frame fully settled).
type Transition interface {
	Kind() Kind
	Draw(dst *image.RGBA, src *image.NRGBA, progress float64)
}

var registry = map[Kind]Transition{
	Fade:       fade{},
	SlideRight: slideRight{},
	SlideDown:  slideDown{},
}

// For returns the strategy registered for kind.
func For(kind Kind) (Transition, error) {
	t, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported transition %s", media.ErrConfiguration, kind)
	}
	return t, nil
}

// Kinds lists the supported kinds in selector order.
func Kinds() []Kind {
	return []Kind{Fade, SlideRight, SlideDown}
}

func clampProgress(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
