package executor

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/forgemedia/mediajobs/internal/task"
)

// contactSheetFilename is the composite thumbnail's fixed name within a
// keyframe task's output directory, read by GET /keyframe_thumbnail/{id}.
const contactSheetFilename = "contact_sheet.jpg"

// buildContactSheet composes the extracted frames into a single grid image
// (spec.md §4.6 "also emit a composite contact-sheet thumbnail") using
// ffmpeg's tile filter over the already-written frame files.
func buildContactSheet(ctx context.Context, d Deps, id task.ID, outDir string, frames []Frame, frameWidth, frameHeight int) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to compose into a contact sheet")
	}
	cols := int(math.Ceil(math.Sqrt(float64(len(frames)))))
	rows := int(math.Ceil(float64(len(frames)) / float64(cols)))

	// ffmpeg's tile filter consumes a single multi-frame input stream, so
	// the frames are read via the printf-style sequence pattern matching their uniform
	// "frame_%03d.<ext>" naming in ExtractKeyframes.
	pattern := filepath.Join(outDir, "frame_%03d"+filepath.Ext(frames[0].Filename))
	outPath := filepath.Join(outDir, contactSheetFilename)

	thumbW := frameWidth / 4
	thumbH := frameHeight / 4
	if thumbW < 32 {
		thumbW = 32
	}
	if thumbH < 32 {
		thumbH = 32
	}

	argv := []string{
		"-y", "-i", pattern,
		"-vf", fmt.Sprintf("scale=%d:%d,tile=%dx%d", thumbW, thumbH, cols, rows),
		"-frames:v", "1",
		outPath,
	}
	_, err := d.Runner.Run(ctx, d.Config.Tools.Codec, argv, runnerOptsFor(d, id, 2*time.Minute))
	return err
}
