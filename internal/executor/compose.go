package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forgemedia/mediajobs/internal/cache"
	"github.com/forgemedia/mediajobs/internal/classify"
	"github.com/forgemedia/mediajobs/internal/planner"
	"github.com/forgemedia/mediajobs/internal/task"
	"github.com/forgemedia/mediajobs/internal/validation"
)

var modeByCompositionType = map[string]planner.Mode{
	"concat":                  planner.ModeConcat,
	"extract_and_concat":      planner.ModeExtractAndConcat,
	"audio_video_subtitle":    planner.ModeAudioVideoSubtitle,
	"picture_in_picture":      planner.ModePictureInPicture,
	"multi_overlay":           planner.ModeMultiOverlay,
	"side_by_side":            planner.ModeSideBySide,
	"side_by_side_audio_mix":  planner.ModeSideBySideAudioMix,
	"slideshow":               planner.ModeSlideshow,
	"audio_only":              planner.ModeAudioOnly,
	"watermark":                planner.ModeWatermark,
	"color_filter":            planner.ModeColorFilter,
}

var layoutByName = map[string]planner.Layout{
	"horizontal":     planner.LayoutHorizontal,
	"vertical":       planner.LayoutVertical,
	"grid_2x2":       planner.LayoutGrid2x2,
	"one_above_two":  planner.Layout1Above2,
}

// Compose runs spec.md §4.5/§4.6's composition pipeline: resolve every input
// source to a local file (downloading URLs on every call; the cache is not
// consulted for inputs), probe their dimensions, hand the request to the
// composition planner, normalize concat inputs of differing resolution if
// required, and run the resulting argv through the codec tool.
func (d Deps) Compose(ctx context.Context, id task.ID, params CompositionParams) {
	d.begin(id)
	start := time.Now()

	mode, ok := modeByCompositionType[params.CompositionType]
	if !ok {
		d.fail(id, classify.New(classify.InputValidation, fmt.Sprintf("unknown composition_type %q", params.CompositionType), nil))
		return
	}
	if len(params.Videos) == 0 && mode != planner.ModeAudioOnly {
		d.fail(id, classify.New(classify.InputValidation, "videos must contain at least one entry", nil))
		return
	}

	workDir, err := os.MkdirTemp(filepath.Join(d.Config.Server.ScratchRoot, "temp_composition"), string(id)+"-")
	if err != nil {
		d.fail(id, classify.New(classify.FileSystem, "failed to create composition work directory", err))
		return
	}
	d.registerTemp(id, workDir)

	setProgress(d, id, 5, "resolving inputs")

	sources := make([]planner.Source, 0, len(params.Videos))
	for i, v := range params.Videos {
		local, err := d.resolveSource(ctx, id, v.Source, workDir, i)
		if err != nil {
			d.fail(id, classify.Classify(err))
			return
		}
		info, err := probeMedia(ctx, d.Runner, d.Config.Tools.CodecProbe, local)
		if err != nil {
			d.fail(id, classify.Classify(err))
			return
		}
		sources = append(sources, planner.Source{
			Path:   local,
			Dims:   info.Dims,
			Start:  v.Start,
			End:    v.End,
			GainDB: v.GainDB,
		})
	}

	var audioPath string
	if params.AudioFile != "" {
		audioPath, err = d.resolveSource(ctx, id, params.AudioFile, workDir, -1)
		if err != nil {
			d.fail(id, classify.Classify(err))
			return
		}
	}
	var subtitlePath string
	if params.SubtitleFile != "" {
		subtitlePath, err = d.resolveSource(ctx, id, params.SubtitleFile, workDir, -2)
		if err != nil {
			d.fail(id, classify.Classify(err))
			return
		}
	}

	outExt := params.OutputFormat
	if outExt == "" {
		outExt = "mp4"
	}
	outputPath := filepath.Join(workDir, "output."+outExt)

	req := planner.Request{
		Mode:         mode,
		Sources:      sources,
		Layout:       layoutByName[params.Layout],
		SubtitlePath: subtitlePath,
		AudioPath:    audioPath,
		OutputPath:   outputPath,
		OutputExt:    outExt,

		WatermarkImagePath: params.WatermarkImage,
		WatermarkText:      params.WatermarkText,
		WatermarkFont:      params.WatermarkFont,
		WatermarkFontSize:  params.WatermarkFontSize,
		WatermarkFillColor: params.WatermarkFillColor,

		VolumeDB:   params.VolumeDB,
		MixWeights: params.MixWeights,
		CrossfadeS: params.CrossfadeS,
	}
	applyOutputSettings(&req, params.OutputSettings)

	if mode == planner.ModePictureInPicture || mode == planner.ModeMultiOverlay {
		req.Overlays = make([]planner.OverlayPlacement, len(params.Videos))
		for i, v := range params.Videos {
			req.Overlays[i] = planner.OverlayPlacement{
				Position: orDefault(v.OverlayPosition, "bottom_right"),
				ScalePct: orDefaultF(v.OverlayScalePct, 25),
				Alpha:    orDefaultF(v.OverlayAlpha, 1),
				ZOrder:   i,
			}
		}
	}
	if req.WatermarkImagePath != "" || req.WatermarkText != "" {
		req.WatermarkFillColor = orDefault(req.WatermarkFillColor, "white")
	}

	if mode == planner.ModeConcat || mode == planner.ModeExtractAndConcat {
		listContent := planner.ConcatListFile(pathsOf(sources))
		listPath := planner.ConcatListPath(outputPath)
		if err := os.WriteFile(listPath, []byte(listContent), 0o644); err != nil {
			d.fail(id, classify.New(classify.FileSystem, "failed to write concat list file", err))
			return
		}
	}

	setProgress(d, id, 15, "planning")
	plan, err := planner.Plan(d.Config.Tools.Codec, req)
	if err != nil {
		d.fail(id, classify.New(classify.InputValidation, err.Error(), err))
		return
	}

	if plan.NeedsNormalization {
		setProgress(d, id, 20, "normalizing heterogeneous inputs")
		if err := d.normalizeSources(ctx, id, workDir, sources); err != nil {
			d.fail(id, classify.Classify(err))
			return
		}
		listContent := planner.ConcatListFile(pathsOf(sources))
		if err := os.WriteFile(planner.ConcatListPath(outputPath), []byte(listContent), 0o644); err != nil {
			d.fail(id, classify.New(classify.FileSystem, "failed to write concat list file", err))
			return
		}
	}

	setProgress(d, id, 30, "composing")
	usedAccelerated := d.Hardware != nil && d.Hardware.Preferred() != ""
	if _, err := d.Runner.Run(ctx, d.Config.Tools.Codec, plan.Argv, runnerOptsFor(d, id, 45*time.Minute)); err != nil {
		d.fail(id, classify.Classify(err))
		return
	}

	info, err := probeMedia(ctx, d.Runner, d.Config.Tools.CodecProbe, outputPath)
	if err != nil {
		d.fail(id, classify.Classify(err))
		return
	}
	fi, err := os.Stat(outputPath)
	if err != nil {
		d.fail(id, classify.New(classify.FileSystem, "composition produced no output file", err))
		return
	}

	finalDir := filepath.Join(d.Config.Server.ScratchRoot, "compositions", string(id))
	if err := os.MkdirAll(finalDir, 0o755); err != nil {
		d.fail(id, classify.New(classify.FileSystem, "failed to create final composition directory", err))
		return
	}
	finalPath := filepath.Join(finalDir, filepath.Base(outputPath))
	if err := os.Rename(outputPath, finalPath); err != nil {
		d.fail(id, classify.New(classify.FileSystem, "failed to move composed file to final location", err))
		return
	}

	if d.Cache != nil {
		if fp, ferr := cache.Fingerprint(finalPath); ferr == nil {
			_ = d.Cache.Put(cache.Entry{
				Fingerprint: fp,
				Kind:        cache.KindArtifact,
				Path:        finalPath,
				SizeBytes:   fi.Size(),
				Origin:      params.CompositionType,
				ParamsHash:  cache.ParamsHash(fmt.Sprintf("%s|%s|%v", params.CompositionType, params.Layout, params.OutputSettings)),
			})
		}
	}

	d.complete(id, CompositionResult{
		OutputFile:             finalPath,
		Width:                  info.Dims.Width,
		Height:                 info.Dims.Height,
		Duration:               info.Duration,
		FileSizeBytes:          fi.Size(),
		ProcessingTimeS:        time.Since(start).Seconds(),
		UsedAcceleratedEncoder: usedAccelerated,
	})
}

// resolveSource turns a video_url-or-local-path source into a local file
// path. A local path is validated and returned as is; a URL is downloaded
// into scratch on every call and staged in workDir. The metadata cache is
// not consulted, so a URL fetched before is downloaded again.
func (d Deps) resolveSource(ctx context.Context, id task.ID, source, workDir string, idx int) (string, error) {
	if err := validation.Source(source); err != nil {
		return "", classify.New(classify.InputValidation, err.Error(), err)
	}
	if !isURL(source) {
		if err := validation.ScratchPath(d.Config.Server.ScratchRoot, source); err != nil {
			return "", classify.New(classify.InputValidation, err.Error(), err)
		}
		return source, nil
	}

	local, dlDir, err := d.downloadToScratch(ctx, id, source, "best", "mp4")
	if err != nil {
		return "", err
	}
	dest := filepath.Join(workDir, fmt.Sprintf("input_%d%s", idx, filepath.Ext(local)))
	if err := os.Rename(local, dest); err != nil {
		return "", classify.New(classify.FileSystem, "failed to stage downloaded input", err)
	}
	cleanupDir(dlDir)
	return dest, nil
}

// normalizeSources re-encodes each source whose resolution differs from the
// first source's into workDir/normalized_<i>.mp4 and points that entry of
// sources at the new file, for concat inputs the planner flagged as
// heterogeneous. Frame rate and codec are not compared (spec.md
// §4.5 "Mismatched resolutions/fps/codecs across concat inputs require a
// normalization pass before the concat demuxer can run").
func (d Deps) normalizeSources(ctx context.Context, id task.ID, workDir string, sources []planner.Source) error {
	if len(sources) == 0 {
		return nil
	}
	target := sources[0].Dims
	cell := planner.CellFor([]planner.Dimensions{target})
	filter := planner.ScalePadFilter(cell)

	for i := range sources {
		if sources[i].Dims == target {
			continue
		}
		normalized := filepath.Join(workDir, fmt.Sprintf("normalized_%d.mp4", i))
		argv := []string{
			"-y", "-i", sources[i].Path,
			"-vf", filter,
			"-c:a", "aac",
			normalized,
		}
		if _, err := d.Runner.Run(ctx, d.Config.Tools.Codec, argv, runnerOptsFor(d, id, 15*time.Minute)); err != nil {
			return err
		}
		sources[i].Path = normalized
		sources[i].Dims = target
	}
	return nil
}

func applyOutputSettings(req *planner.Request, settings map[string]float64) {
	if settings == nil {
		return
	}
	if v, ok := settings["brightness"]; ok {
		req.Brightness = v
	}
	if v, ok := settings["contrast"]; ok {
		req.Contrast = v
	}
	if v, ok := settings["saturation"]; ok {
		req.Saturation = v
	}
	if v, ok := settings["gamma"]; ok {
		req.Gamma = v
	}
	if v, ok := settings["blur_radius"]; ok {
		req.BlurRadius = v
	}
	if v, ok := settings["sharpen_amount"]; ok {
		req.SharpenAmount = v
	}
	if v, ok := settings["temperature"]; ok {
		req.Temperature = v
	}
	if v, ok := settings["tint"]; ok {
		req.Tint = v
	}
	if v, ok := settings["highlights"]; ok {
		req.Highlights = v
	}
	if v, ok := settings["shadows"]; ok {
		req.Shadows = v
	}
	if v, ok := settings["vibrance"]; ok {
		req.Vibrance = v
	}
	if v, ok := settings["frame_duration_s"]; ok {
		req.FrameDurSec = v
	}
	if v, ok := settings["fade_duration_s"]; ok {
		req.FadeDurSec = v
	}
}

func pathsOf(sources []planner.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.Path
	}
	return out
}

func orDefaultF(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
