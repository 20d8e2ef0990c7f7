// Package executor implements the four task-family pipelines of spec.md
// §4.6: transcription, download, keyframe extraction, and composition. Each
// runs on its own goroutine (spec.md §5's "one worker task per accepted
// job"), driven by internal/workers.Pool and reporting progress/results
// through internal/task.Registry.
package executor

import (
	"github.com/forgemedia/mediajobs/internal/cache"
	"github.com/forgemedia/mediajobs/internal/classify"
	"github.com/forgemedia/mediajobs/internal/config"
	"github.com/forgemedia/mediajobs/internal/hardware"
	"github.com/forgemedia/mediajobs/internal/logging"
	"github.com/forgemedia/mediajobs/internal/runner"
	"github.com/forgemedia/mediajobs/internal/task"
)

// Deps bundles the collaborators every executor needs.
type Deps struct {
	Config    *config.Config
	Registry  *task.Registry
	Runner    *runner.Runner
	Cache     *cache.Cache
	Hardware  *hardware.Prober
	ErrorRing *classify.Ring
	Log       *logging.Logger
}

// TranscriptionParams is POST /generate_text_from_video's body.
type TranscriptionParams struct {
	VideoURL string `json:"video_url"`
}

// Segment is one timed transcription segment.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult is spec.md §4.6's transcription return shape.
type TranscriptionResult struct {
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
	SRTText  string    `json:"srt_text"`
}

// DownloadParams is POST /download_video's body.
type DownloadParams struct {
	VideoURL string `json:"video_url"`
	Quality  string `json:"quality"`
	Format   string `json:"format"`
}

// DownloadResult is spec.md §4.6's download return shape.
type DownloadResult struct {
	FilePath              string `json:"file_path"`
	ActualFormat          string `json:"actual_format"`
	ActualResolution      string `json:"actual_resolution"`
	FileSize              int64  `json:"file_size"`
	AvailableFormatCount  int    `json:"available_format_count"`
}

// KeyframeParams is POST /extract_keyframes's body.
type KeyframeParams struct {
	VideoURL   string   `json:"video_url"`
	Method     string   `json:"method"` // interval|timestamps|keyframes|count
	Interval   float64  `json:"interval"`
	Timestamps []float64 `json:"timestamps"`
	Count      int      `json:"count"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Format     string   `json:"format"` // jpg|png
	Quality    int      `json:"quality"`
}

// Frame is one extracted still.
type Frame struct {
	Timestamp float64 `json:"timestamp"`
	Filename  string  `json:"filename"`
	SizeBytes int64   `json:"size_bytes"`
}

// KeyframeResult is spec.md §4.6's keyframe-extraction return shape.
type KeyframeResult struct {
	Title       string  `json:"title"`
	Duration    float64 `json:"duration"`
	TotalFrames int     `json:"total_frames"`
	Frames      []Frame `json:"frames"`
}

// CompositionVideoInput is one entry of POST /compose_video's videos[]. The
// overlay placement fields are only read for picture_in_picture/multi_overlay
// (one entry per overlaid source, in z-order).
type CompositionVideoInput struct {
	Source string  `json:"video_url"`
	Start  float64 `json:"start,omitempty"`
	End    float64 `json:"end,omitempty"`
	GainDB float64 `json:"gain_db,omitempty"`

	OverlayPosition string  `json:"overlay_position,omitempty"` // top_left|top_right|bottom_left|bottom_right|center
	OverlayScalePct float64 `json:"overlay_scale_pct,omitempty"`
	OverlayAlpha    float64 `json:"overlay_alpha,omitempty"`
}

// CompositionParams is POST /compose_video's body.
type CompositionParams struct {
	CompositionType string                  `json:"composition_type"`
	Videos          []CompositionVideoInput `json:"videos"`
	AudioFile       string                  `json:"audio_file,omitempty"`
	SubtitleFile    string                  `json:"subtitle_file,omitempty"`
	Layout          string                  `json:"layout,omitempty"`
	TransitionType  string                  `json:"transition_type,omitempty"`
	OutputFormat    string                  `json:"output_format"`
	OutputQuality   string                  `json:"output_quality"`
	OutputSettings  map[string]float64      `json:"output_settings,omitempty"`

	// watermark
	WatermarkImage     string `json:"watermark_image,omitempty"`
	WatermarkText      string `json:"watermark_text,omitempty"`
	WatermarkFont      string `json:"watermark_font,omitempty"`
	WatermarkFontSize  int    `json:"watermark_font_size,omitempty"`
	WatermarkFillColor string `json:"watermark_fill_color,omitempty"`
	WatermarkPosition  string `json:"watermark_position,omitempty"`

	// audio_only
	VolumeDB   float64   `json:"volume_db,omitempty"`
	MixWeights []float64 `json:"mix_weights,omitempty"`
	CrossfadeS float64   `json:"crossfade_s,omitempty"`
}

// CompositionResult is spec.md §4.6's composition return shape.
type CompositionResult struct {
	OutputFile            string  `json:"output_file"`
	Width                 int     `json:"width"`
	Height                int     `json:"height"`
	Duration              float64 `json:"duration"`
	FileSizeBytes         int64   `json:"file_size_bytes"`
	ProcessingTimeS       float64 `json:"processing_time_s"`
	UsedAcceleratedEncoder bool   `json:"used_accelerated_encoder"`
}
