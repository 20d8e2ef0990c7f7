package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forgemedia/mediajobs/internal/classify"
	"github.com/forgemedia/mediajobs/internal/task"
	"github.com/forgemedia/mediajobs/internal/validation"
)

const (
	minFrameDim = 64
	maxFrameDim = 4096
)

// ExtractKeyframes runs spec.md §4.6's four keyframe-extraction modes.
func (d Deps) ExtractKeyframes(ctx context.Context, id task.ID, params KeyframeParams) {
	d.begin(id)

	if err := validation.Source(params.VideoURL); err != nil {
		d.fail(id, classify.New(classify.InputValidation, err.Error(), err))
		return
	}
	width, height := params.Width, params.Height
	if width == 0 {
		width = 1280
	}
	if height == 0 {
		height = 720
	}
	if width < minFrameDim || width > maxFrameDim || height < minFrameDim || height > maxFrameDim {
		d.fail(id, classify.New(classify.InputValidation, "width/height must be within [64,4096]", nil))
		return
	}
	format := params.Format
	if format == "" {
		format = "jpg"
	}
	if format != "jpg" && format != "png" {
		d.fail(id, classify.New(classify.InputValidation, "format must be jpg or png", nil))
		return
	}
	quality := params.Quality
	if quality <= 0 {
		quality = 85
	}

	localPath := params.VideoURL
	if isURL(params.VideoURL) {
		var dlDir string
		var err error
		localPath, dlDir, err = d.downloadToScratch(ctx, id, params.VideoURL, "best", "mp4")
		if err != nil {
			d.fail(id, classify.Classify(err))
			return
		}
		defer cleanupDir(dlDir)
	}

	info, err := probeMedia(ctx, d.Runner, d.Config.Tools.CodecProbe, localPath)
	if err != nil {
		d.fail(id, classify.Classify(err))
		return
	}

	timestamps, err := selectTimestamps(params, info.Duration)
	if err != nil {
		d.fail(id, classify.New(classify.InputValidation, err.Error(), err))
		return
	}

	// outDir is not a registered temp path: it is the permanent serving
	// location for /keyframe_image and /keyframe_thumbnail (see
	// internal/httpapi/files.go), reclaimed by the janitor's keyframes TTL
	// sweep rather than task-terminal cleanup.
	outDir := filepath.Join(d.Config.Server.ScratchRoot, "keyframes", string(id))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		d.fail(id, classify.New(classify.FileSystem, "failed to create keyframe directory", err))
		return
	}

	frames := make([]Frame, 0, len(timestamps))
	for i, ts := range timestamps {
		filename := fmt.Sprintf("frame_%03d.%s", i, format)
		outPath := filepath.Join(outDir, filename)
		argv := []string{
			"-y", "-ss", fmt.Sprintf("%g", ts), "-i", localPath,
			"-frames:v", "1", "-vf", fmt.Sprintf("scale=%d:%d", width, height),
		}
		if format == "jpg" {
			argv = append(argv, "-q:v", fmt.Sprintf("%d", qualityToJPEGScale(quality)))
		}
		argv = append(argv, outPath)

		if _, err := d.Runner.Run(ctx, d.Config.Tools.Codec, argv, runnerOptsFor(d, id, 2*time.Minute)); err != nil {
			_ = os.RemoveAll(outDir)
			d.fail(id, classify.Classify(err))
			return
		}
		fi, statErr := os.Stat(outPath)
		var size int64
		if statErr == nil {
			size = fi.Size()
		}
		frames = append(frames, Frame{Timestamp: ts, Filename: filename, SizeBytes: size})

		pct := 10 + (i+1)*80/maxIntLocal(len(timestamps), 1)
		setProgress(d, id, pct, fmt.Sprintf("extracted frame %d/%d", i+1, len(timestamps)))
	}

	if err := buildContactSheet(ctx, d, id, outDir, frames, width, height); err != nil {
		d.Log.Warn("contact sheet generation failed", map[string]interface{}{"task_id": string(id), "error": err.Error()})
	}

	d.complete(id, KeyframeResult{
		Title:       filepath.Base(localPath),
		Duration:    info.Duration,
		TotalFrames: len(frames),
		Frames:      frames,
	})
}

// qualityToJPEGScale maps spec.md's 1-100 "quality" (higher is better) onto
// ffmpeg's -q:v JPEG scale (2-31, lower is better).
func qualityToJPEGScale(quality int) int {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	return 2 + (100-quality)*29/99
}

func selectTimestamps(params KeyframeParams, duration float64) ([]float64, error) {
	switch params.Method {
	case "timestamps":
		if len(params.Timestamps) == 0 {
			return nil, fmt.Errorf("timestamps method requires at least one timestamp")
		}
		return params.Timestamps, nil
	case "count":
		count := params.Count
		if count <= 0 {
			count = 10
		}
		if duration <= 0 {
			return nil, fmt.Errorf("count method requires a known duration")
		}
		out := make([]float64, count)
		step := duration / float64(count+1)
		for i := range out {
			out[i] = step * float64(i+1)
		}
		return out, nil
	case "keyframes":
		// Scene-change detection is not performed: this method spaces 10
		// timestamps evenly, as the "count" method does, and ignores
		// params.Count.
		return selectTimestamps(KeyframeParams{Method: "count", Count: 10}, duration)
	case "interval", "":
		interval := params.Interval
		if interval <= 0 {
			interval = 30
		}
		if duration <= 0 {
			return []float64{0}, nil
		}
		var out []float64
		for t := 0.0; t < duration; t += interval {
			out = append(out, t)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown keyframe method %q", params.Method)
	}
}

func maxIntLocal(a, b int) int {
	if a > b {
		return a
	}
	return b
}
