package executor

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/forgemedia/mediajobs/internal/classify"
	"github.com/forgemedia/mediajobs/internal/runner"
	"github.com/forgemedia/mediajobs/internal/task"
)

// begin marks a task running (spec.md §3 invariant: status transitions are
// totally ordered, pending -> running -> terminal).
func (d Deps) begin(id task.ID) {
	running := task.StatusRunning
	d.Registry.Update(id, task.Patch{Status: &running, SetStarted: true})
}

// fail transitions the task to failed with te. Registry.Update's terminal
// transition removes every registered temp path from disk and kills any
// live child process before returning, so fail itself does no cleanup.
func (d Deps) fail(id task.ID, te *classify.TaskError) {
	d.Registry.Fail(id, te)
	if d.ErrorRing != nil {
		d.ErrorRing.Add(te, string(id), nil)
	}
	d.Log.Warn("task failed", map[string]interface{}{"task_id": string(id), "kind": te.Kind.String(), "message": te.Message})
}

// complete transitions the task to completed with result.
func (d Deps) complete(id task.ID, result interface{}) {
	completed := task.StatusCompleted
	progress := 100
	d.Registry.Update(id, task.Patch{Status: &completed, Progress: &progress, Result: result, SetFinished: true})
}

// registerTemp records a scratch path the task owns, so the janitor or a
// failure path can sweep it (spec.md §3 temp_paths).
func (d Deps) registerTemp(id task.ID, path string) {
	d.Registry.Update(id, task.Patch{AddTempPath: path})
}

func setProgress(d Deps, id task.ID, pct int, msg string) {
	d.Registry.Update(id, task.Patch{Progress: &pct, Message: &msg})
}

// runnerOptsFor builds runner.Options wired to stream progress into id's
// task record (spec.md §4.4 step 3).
func runnerOptsFor(d Deps, id task.ID, timeout time.Duration) runner.Options {
	return runner.Options{
		Timeout:       timeout,
		GracefulGrace: d.Config.Runner.GracefulKillGrace,
		TaskID:        id,
		Registry:      d.Registry,
		OnProgress: func(progress int, message string) {
			d.Log.Debug("progress", map[string]interface{}{"task_id": string(id), "progress": progress})
		},
	}
}

// downloadToScratch invokes the downloader tool against a remote source,
// returning the downloaded file's local path and its containing scratch
// directory (the caller should remove it once done, unless it's being kept
// as the task's durable output).
func (d Deps) downloadToScratch(ctx context.Context, id task.ID, videoURL, quality, format string) (localPath, dir string, err error) {
	dir, err = os.MkdirTemp(filepath.Join(d.Config.Server.ScratchRoot, "downloads"), string(id)+"-")
	if err != nil {
		return "", "", classify.New(classify.FileSystem, "failed to create download directory", err)
	}

	argv := []string{
		videoURL,
		"-f", formatSelector(quality),
		"--merge-output-format", format,
		"-o", filepath.Join(dir, "source.%(ext)s"),
	}
	if err := d.runDownloaderWithRetry(ctx, id, argv); err != nil {
		_ = os.RemoveAll(dir)
		return "", "", err
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		_ = os.RemoveAll(dir)
		return "", "", classify.New(classify.Processing, "downloader produced no output file", err)
	}
	return filepath.Join(dir, entries[0].Name()), dir, nil
}

// runDownloaderWithRetry invokes the downloader tool, retrying on
// classify.Network failures (DNS hiccups, connection resets, transient
// upstream 5xx) with exponential backoff capped at 3 attempts. Any other
// failure kind returns immediately without retrying.
func (d Deps) runDownloaderWithRetry(ctx context.Context, id task.ID, argv []string) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		_, err := d.Runner.Run(ctx, d.Config.Tools.Downloader, argv, runnerOptsFor(d, id, 20*time.Minute))
		if err == nil {
			return nil
		}
		if classify.Classify(err).Kind != classify.Network {
			return backoff.Permanent(err)
		}
		d.Log.Warn("retrying download after network failure", map[string]interface{}{
			"task_id": string(id), "attempt": attempt, "error": err.Error(),
		})
		return err
	}, policy)
}

// formatSelector translates spec.md §4.6's quality enum into a yt-dlp
// format-selector expression.
func formatSelector(quality string) string {
	switch quality {
	case "worst":
		return "worst"
	case "1080p":
		return "bestvideo[height<=1080]+bestaudio/best[height<=1080]"
	case "720p":
		return "bestvideo[height<=720]+bestaudio/best[height<=720]"
	case "480p":
		return "bestvideo[height<=480]+bestaudio/best[height<=480]"
	default:
		return "bestvideo+bestaudio/best"
	}
}
