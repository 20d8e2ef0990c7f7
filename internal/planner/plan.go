// Package planner implements the composition planner of spec.md §4.5:
// given a composition request, build a validated argument vector for the
// codec tool. There is no single filter-graph shape shared across modes,
// so each mode gets its own builder; Plan dispatches and validates the
// result before returning it.
package planner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/forgemedia/mediajobs/internal/validation"
)

// Mode is one of the composition modes spec.md §4.5 enumerates.
type Mode string

const (
	ModeConcat              Mode = "concat"
	ModeExtractAndConcat    Mode = "extract_and_concat"
	ModeAudioVideoSubtitle  Mode = "audio_video_subtitle"
	ModePictureInPicture    Mode = "picture_in_picture"
	ModeMultiOverlay        Mode = "multi_overlay"
	ModeSideBySide          Mode = "side_by_side"
	ModeSideBySideAudioMix  Mode = "side_by_side_audio_mix"
	ModeSlideshow           Mode = "slideshow"
	ModeAudioOnly           Mode = "audio_only"
	ModeWatermark           Mode = "watermark"
	ModeColorFilter         Mode = "color_filter"
)

// Source is one input to a composition, carrying the decoded dimensions the
// planner needs for aspect-preserving placement (populated by the executor
// via a prior ffprobe call; the planner itself never probes).
type Source struct {
	Path   string
	Dims   Dimensions
	Start  float64 // extract_and_concat: sub-range start, seconds
	End    float64 // extract_and_concat: sub-range end, seconds (0 = EOF)
	GainDB float64 // side_by_side_audio_mix: per-source gain weight [0,2]
}

// Layout is the side_by_side geometry.
type Layout string

const (
	LayoutHorizontal Layout = "horizontal"
	LayoutVertical   Layout = "vertical"
	LayoutGrid2x2    Layout = "grid_2x2"
	Layout1Above2    Layout = "one_above_two"
)

// OverlayPlacement configures picture_in_picture / multi_overlay / watermark
// positioning.
type OverlayPlacement struct {
	Position string // preset name: top_left, top_right, bottom_left, bottom_right, center
	ScalePct float64
	Alpha    float64 // 0..1, 1 = opaque
	ZOrder   int
}

// Request is the full composition request; only the fields relevant to Mode
// need be populated (the HTTP handler validates which before calling Plan).
type Request struct {
	Mode    Mode
	Sources []Source
	Layout  Layout

	SubtitlePath string // audio_video_subtitle

	Overlays []OverlayPlacement // picture_in_picture (len 1) / multi_overlay (len <=5)

	// slideshow
	FrameDurSec float64
	FadeDurSec  float64
	AudioPath   string

	// watermark
	WatermarkImagePath string
	WatermarkText      string
	WatermarkFont      string
	WatermarkFontSize  int
	WatermarkFillColor string

	// color/filter
	Brightness, Contrast, Saturation, Gamma float64
	BlurRadius, SharpenAmount                float64
	Temperature, Tint, Highlights, Shadows, Vibrance float64

	// audio_only
	VolumeDB    float64
	MixWeights  []float64
	CrossfadeS  float64
	OutputExt   string

	OutputPath string
}

// Plan is the validated result: the argv to hand the runner, plus whether
// the mode requires a pre-normalization pass (heterogeneous concat inputs).
type Plan struct {
	Argv               []string
	NeedsNormalization bool
}

// Plan builds and validates the argv for req (spec.md §4.5's mode table).
func Plan(codecTool string, req Request) (*Plan, error) {
	var argv []string
	var err error

	switch req.Mode {
	case ModeConcat:
		argv, err = planConcat(req)
	case ModeExtractAndConcat:
		argv, err = planExtractAndConcat(req)
	case ModeAudioVideoSubtitle:
		argv, err = planAudioVideoSubtitle(req)
	case ModePictureInPicture:
		argv, err = planPictureInPicture(req)
	case ModeMultiOverlay:
		argv, err = planMultiOverlay(req)
	case ModeSideBySide, ModeSideBySideAudioMix:
		argv, err = planSideBySide(req)
	case ModeSlideshow:
		argv, err = planSlideshow(req)
	case ModeAudioOnly:
		argv, err = planAudioOnly(req)
	case ModeWatermark:
		argv, err = planWatermark(req)
	case ModeColorFilter:
		argv, err = planColorFilter(req)
	default:
		return nil, fmt.Errorf("unknown composition mode %q", req.Mode)
	}
	if err != nil {
		return nil, err
	}

	if err := ValidateArgv(argv); err != nil {
		return nil, err
	}

	return &Plan{
		Argv:               argv,
		NeedsNormalization: req.Mode == ModeConcat && heterogeneous(req.Sources),
	}, nil
}

// heterogeneous reports whether sources disagree on resolution. Only Dims
// are compared: frame-rate and codec differences are not detected here or in
// the executor, so they do not trigger normalization.
func heterogeneous(sources []Source) bool {
	if len(sources) < 2 {
		return false
	}
	first := sources[0].Dims
	for _, s := range sources[1:] {
		if s.Dims != first {
			return true
		}
	}
	return false
}

func validateSourcePath(p string) error {
	if p == "" {
		return fmt.Errorf("empty source path")
	}
	return validation.ArgvToken(p, "~")
}

// ConcatListPath returns the concat-demuxer list file path for outputPath:
// outputPath + ".concat.txt".
func ConcatListPath(outputPath string) string {
	return outputPath + ".concat.txt"
}

// ConcatListFile renders the ffmpeg concat-demuxer list file content for
// paths, in order, escaping embedded single quotes as '\''. The executor
// writes this to <output>.concat.txt before invoking the argv Plan returns
// for ModeConcat/ModeExtractAndConcat.
func ConcatListFile(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(filepath.ToSlash(p), "'", `'\''`))
	}
	return b.String()
}
