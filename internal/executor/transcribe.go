package executor

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/forgemedia/mediajobs/internal/classify"
	"github.com/forgemedia/mediajobs/internal/subtitle"
	"github.com/forgemedia/mediajobs/internal/task"
	"github.com/forgemedia/mediajobs/internal/validation"
)

// initialPromptHint is the fixed initial-prompt spec.md §4.6 calls for,
// biasing the speech-to-text model toward punctuated, well-cased output.
const initialPromptHint = "The following is a clear, well-punctuated transcript."

// whisperSegment mirrors the subset of a whisper-style JSON transcript this
// executor reads.
type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperOutput struct {
	Language string           `json:"language"`
	Segments []whisperSegment `json:"segments"`
}

// Transcribe runs spec.md §4.6's transcription pipeline: validate the
// source, resolve it to a local audio file (downloading first if it's a
// URL), run speech-to-text with the fixed prompt hint, and assemble a
// timed-subtitle record.
func (d Deps) Transcribe(ctx context.Context, id task.ID, params TranscriptionParams) {
	d.begin(id)

	if err := validation.Source(params.VideoURL); err != nil {
		d.fail(id, classify.New(classify.InputValidation, err.Error(), err))
		return
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

	outDir, err := os.MkdirTemp(filepath.Join(d.Config.Server.ScratchRoot, "output"), string(id)+"-")
	if err != nil {
		d.fail(id, classify.New(classify.FileSystem, "failed to create output directory", err))
		return
	}
	d.registerTemp(id, outDir)

	setProgress(d, id, 10, "transcribing")

	argv := []string{
		localPath,
		"--model", "base",
		"--output_format", "json",
		"--output_dir", outDir,
		"--initial_prompt", initialPromptHint,
	}
	if _, err := d.Runner.Run(ctx, d.Config.Tools.SpeechToText, argv, runnerOptsFor(d, id, 25*time.Minute)); err != nil {
		d.fail(id, classify.Classify(err))
		return
	}

	jsonPath := filepath.Join(outDir, trimExt(filepath.Base(localPath))+".json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		d.fail(id, classify.New(classify.Processing, "speech-to-text produced no output file", err))
		return
	}
	var wo whisperOutput
	if err := json.Unmarshal(data, &wo); err != nil {
		d.fail(id, classify.New(classify.Processing, "failed to parse speech-to-text output", err))
		return
	}

	segments := make([]Segment, len(wo.Segments))
	srtSegs := make([]subtitle.Segment, len(wo.Segments))
	for i, s := range wo.Segments {
		segments[i] = Segment{Start: s.Start, End: s.End, Text: s.Text}
		srtSegs[i] = subtitle.Segment{
			Start: secondsToDuration(s.Start),
			End:   secondsToDuration(s.End),
			Text:  s.Text,
		}
	}

	d.complete(id, TranscriptionResult{
		Language: wo.Language,
		Duration: info.Duration,
		Segments: segments,
		SRTText:  subtitle.RenderSRT(srtSegs),
	})
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func trimExt(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func cleanupDir(dir string) {
	if dir != "" {
		_ = os.RemoveAll(dir)
	}
}
