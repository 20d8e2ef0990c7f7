package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/forgemedia/mediajobs/internal/planner"
	"github.com/forgemedia/mediajobs/internal/runner"
)

// probeResult is the subset of ffprobe's -of json output the executors
// need: container duration plus the first video stream's dimensions/codec
// and the first audio stream's codec.
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// mediaInfo is the distilled probe result used across executors.
type mediaInfo struct {
	Duration   float64
	Dims       planner.Dimensions
	VideoCodec string
	AudioCodec string
	FPS        float64
}

// probeMedia invokes the codec tool's probe sub-invocation (spec.md §6
// "validated by first probing with the tool's metadata sub-invocation").
func probeMedia(ctx context.Context, r *runner.Runner, probeTool, path string) (mediaInfo, error) {
	argv := []string{"-v", "error", "-show_format", "-show_streams", "-of", "json", path}
	out, err := r.Probe(ctx, probeTool, argv, 30*time.Second)
	if err != nil {
		return mediaInfo{}, err
	}

	var pr probeResult
	if err := json.Unmarshal([]byte(out), &pr); err != nil {
		return mediaInfo{}, fmt.Errorf("parse probe output for %s: %w", path, err)
	}

	info := mediaInfo{}
	if d, err := strconv.ParseFloat(pr.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	for _, s := range pr.Streams {
		switch s.CodecType {
		case "video":
			if info.Dims.Width == 0 {
				info.Dims = planner.Dimensions{Width: s.Width, Height: s.Height}
				info.VideoCodec = s.CodecName
				info.FPS = parseFrameRate(s.AvgFrameRate)
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		}
	}
	return info, nil
}

func parseFrameRate(s string) float64 {
	var num, den float64
	if n, err := fmt.Sscanf(s, "%f/%f", &num, &den); n == 2 && err == nil && den != 0 {
		return num / den
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return 0
}
