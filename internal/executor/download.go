package executor

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/forgemedia/mediajobs/internal/classify"
	"github.com/forgemedia/mediajobs/internal/task"
	"github.com/forgemedia/mediajobs/internal/validation"
)

var allowedQualities = map[string]bool{"best": true, "worst": true, "1080p": true, "720p": true, "480p": true}
var allowedFormats = map[string]bool{"mp4": true, "webm": true, "mkv": true}

// Download runs spec.md §4.6's download pipeline: validate the request,
// invoke the downloader, and report the resulting file. No per-request
// free-disk or download-size check is made here; only the admission
// controller's free-disk check runs before the task starts.
func (d Deps) Download(ctx context.Context, id task.ID, params DownloadParams) {
	d.begin(id)

	if err := validation.Source(params.VideoURL); err != nil {
		d.fail(id, classify.New(classify.InputValidation, err.Error(), err))
		return
	}
	quality := params.Quality
	if quality == "" {
		quality = "best"
	}
	format := params.Format
	if format == "" {
		format = "mp4"
	}
	if !allowedQualities[quality] {
		d.fail(id, classify.New(classify.InputValidation, "unsupported quality", nil))
		return
	}
	if !allowedFormats[format] {
		d.fail(id, classify.New(classify.InputValidation, "unsupported format", nil))
		return
	}

	setProgress(d, id, 5, "starting download")

	localPath, dir, err := d.downloadToScratch(ctx, id, params.VideoURL, quality, format)
	if err != nil {
		d.fail(id, classify.Classify(err))
		return
	}
	d.registerTemp(id, dir)

	info, err := probeMedia(ctx, d.Runner, d.Config.Tools.CodecProbe, localPath)
	if err != nil {
		d.fail(id, classify.Classify(err))
		return
	}

	fi, err := os.Stat(localPath)
	if err != nil {
		d.fail(id, classify.New(classify.FileSystem, "downloaded file missing", err))
		return
	}

	finalDir := filepath.Join(d.Config.Server.ScratchRoot, "downloads", string(id))
	if err := os.MkdirAll(finalDir, 0o755); err != nil {
		d.fail(id, classify.New(classify.FileSystem, "failed to create final download directory", err))
		return
	}
	finalPath := filepath.Join(finalDir, filepath.Base(localPath))
	if err := os.Rename(localPath, finalPath); err != nil {
		d.fail(id, classify.New(classify.FileSystem, "failed to move downloaded file to final location", err))
		return
	}

	d.complete(id, DownloadResult{
		FilePath:             finalPath,
		ActualFormat:         filepath.Ext(finalPath),
		ActualResolution:     resolutionString(info.Dims.Width, info.Dims.Height),
		FileSize:             fi.Size(),
		AvailableFormatCount: 0, // the downloader's format listing is a separate probe this pipeline doesn't run by default
	})
}

func resolutionString(w, h int) string {
	if w == 0 || h == 0 {
		return ""
	}
	return strconv.Itoa(w) + "x" + strconv.Itoa(h)
}
