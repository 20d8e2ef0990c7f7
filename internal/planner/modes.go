package planner

import (
	"fmt"
	"strings"

	"github.com/forgemedia/mediajobs/internal/validation"
)

// planConcat builds spec.md §4.5's concat mode: stream-copy via an
// indirection list file when inputs agree, otherwise normalization happens
// upstream (NeedsNormalization) and this argv still concats the (now
// uniform) inputs by the same indirection-file method.
func planConcat(req Request) ([]string, error) {
	if len(req.Sources) < 2 {
		return nil, fmt.Errorf("concat requires at least 2 sources")
	}
	listPath := ConcatListPath(req.OutputPath)
	for _, s := range req.Sources {
		if err := validateSourcePath(s.Path); err != nil {
			return nil, err
		}
	}
	return []string{
		"-y", "-f", "concat", "-safe", "0", "-i", listPath,
		"-c", "copy", req.OutputPath,
	}, nil
}

// planExtractAndConcat cuts each (source, [start,end]) sub-range losslessly
// then concats (spec.md §4.5). Sub-range cuts are expressed as a
// filter_complex trim+concat graph so the whole mode is one invocation.
func planExtractAndConcat(req Request) ([]string, error) {
	if len(req.Sources) == 0 {
		return nil, fmt.Errorf("extract_and_concat requires at least 1 source")
	}
	argv := []string{"-y"}
	var filters []string
	var vlabels, alabels []string
	for i, s := range req.Sources {
		if err := validateSourcePath(s.Path); err != nil {
			return nil, err
		}
		argv = append(argv, "-i", s.Path)
		end := s.End
		trimExpr := fmt.Sprintf("trim=start=%g", s.Start)
		if end > s.Start {
			trimExpr = fmt.Sprintf("trim=start=%g:end=%g", s.Start, end)
		}
		vlabel, alabel := fmt.Sprintf("v%d", i), fmt.Sprintf("a%d", i)
		filters = append(filters,
			fmt.Sprintf("[%d:v]%s,setpts=PTS-STARTPTS[%s]", i, trimExpr, vlabel),
			fmt.Sprintf("[%d:a]a%s,asetpts=PTS-STARTPTS[%s]", i, trimExpr, alabel),
		)
		vlabels = append(vlabels, "["+vlabel+"]")
		alabels = append(alabels, "["+alabel+"]")
	}
	n := len(req.Sources)
	filters = append(filters, fmt.Sprintf("%s%sconcat=n=%d:v=1:a=1[outv][outa]",
		strings.Join(vlabels, ""), strings.Join(alabels, ""), n))
	argv = append(argv, "-filter_complex", strings.Join(filters, ";"),
		"-map", "[outv]", "-map", "[outa]", req.OutputPath)
	return argv, nil
}

// planAudioVideoSubtitle muxes video + audio, optionally burning in a
// subtitle file (spec.md §4.5).
func planAudioVideoSubtitle(req Request) ([]string, error) {
	if len(req.Sources) < 2 {
		return nil, fmt.Errorf("audio_video_subtitle requires a video source and an audio source")
	}
	video, audio := req.Sources[0], req.Sources[1]
	if err := validateSourcePath(video.Path); err != nil {
		return nil, err
	}
	if err := validateSourcePath(audio.Path); err != nil {
		return nil, err
	}
	argv := []string{"-y", "-i", video.Path, "-i", audio.Path}
	if req.SubtitlePath != "" {
		if err := validateSourcePath(req.SubtitlePath); err != nil {
			return nil, err
		}
		argv = append(argv, "-vf", fmt.Sprintf("subtitles=%s", escapeFilterPath(req.SubtitlePath)))
	}
	argv = append(argv, "-map", "0:v:0", "-map", "1:a:0", "-shortest", req.OutputPath)
	return argv, nil
}

// planPictureInPicture overlays one scaled/alpha-mixed source onto the main
// video at a configured in-bounds position (spec.md §4.5).
func planPictureInPicture(req Request) ([]string, error) {
	if len(req.Sources) != 2 || len(req.Overlays) != 1 {
		return nil, fmt.Errorf("picture_in_picture requires 2 sources and 1 overlay placement")
	}
	return buildOverlayArgv(req.Sources, req.Overlays, req.OutputPath)
}

// planMultiOverlay applies up to 5 overlays in z-order (spec.md §4.5).
func planMultiOverlay(req Request) ([]string, error) {
	if len(req.Sources) < 2 || len(req.Overlays) == 0 || len(req.Overlays) > 5 {
		return nil, fmt.Errorf("multi_overlay requires a main source plus 1-5 overlays")
	}
	if len(req.Sources) != len(req.Overlays)+1 {
		return nil, fmt.Errorf("multi_overlay requires one source per overlay plus the main source")
	}
	ordered := append([]OverlayPlacement(nil), req.Overlays...)
	sortByZOrder(ordered)
	return buildOverlayArgv(req.Sources, ordered, req.OutputPath)
}

func sortByZOrder(o []OverlayPlacement) {
	for i := 1; i < len(o); i++ {
		for j := i; j > 0 && o[j].ZOrder < o[j-1].ZOrder; j-- {
			o[j], o[j-1] = o[j-1], o[j]
		}
	}
}

func buildOverlayArgv(sources []Source, overlays []OverlayPlacement, outputPath string) ([]string, error) {
	argv := []string{"-y"}
	for _, s := range sources {
		if err := validateSourcePath(s.Path); err != nil {
			return nil, err
		}
		argv = append(argv, "-i", s.Path)
	}
	var filters []string
	base := "[0:v]"
	for i, ov := range overlays {
		srcIdx := i + 1
		scaled := fmt.Sprintf("ov%d", i)
		filters = append(filters, fmt.Sprintf("[%d:v]scale=iw*%g:ih*%g%s[%s]",
			srcIdx, ov.ScalePct, ov.ScalePct, alphaSuffix(ov.Alpha), scaled))
		x, y := positionExpr(ov.Position)
		out := fmt.Sprintf("ovl%d", i)
		if i == len(overlays)-1 {
			out = "outv"
		}
		filters = append(filters, fmt.Sprintf("%s[%s]overlay=%s:%s[%s]", base, scaled, x, y, out))
		base = "[" + out + "]"
	}
	argv = append(argv, "-filter_complex", strings.Join(filters, ";"),
		"-map", "[outv]", "-map", "0:a:0?", "-shortest", outputPath)
	return argv, nil
}

func alphaSuffix(alpha float64) string {
	if alpha >= 1 {
		return ""
	}
	return fmt.Sprintf(",format=yuva420p,colorchannelmixer=aa=%g", alpha)
}

func positionExpr(preset string) (x, y string) {
	switch preset {
	case "top_left":
		return "10", "10"
	case "top_right":
		return "main_w-overlay_w-10", "10"
	case "bottom_left":
		return "10", "main_h-overlay_h-10"
	case "bottom_right":
		return "main_w-overlay_w-10", "main_h-overlay_h-10"
	default: // center
		return "(main_w-overlay_w)/2", "(main_h-overlay_h)/2"
	}
}

// planSideBySide lays out 2-4 sources into the requested grid, each cell
// aspect-preserved via ScalePadFilter (spec.md §4.5). The audio-mix variant
// additionally mixes per-source gains instead of dropping to the first
// source's audio.
func planSideBySide(req Request) ([]string, error) {
	n := len(req.Sources)
	if n < 2 || n > 4 {
		return nil, fmt.Errorf("side_by_side requires 2-4 sources")
	}
	argv := []string{"-y"}
	for _, s := range req.Sources {
		if err := validateSourcePath(s.Path); err != nil {
			return nil, err
		}
		argv = append(argv, "-i", s.Path)
	}

	cell := CellFor(dimsOf(req.Sources))
	var filters []string
	var padded []string
	for i := range req.Sources {
		label := fmt.Sprintf("p%d", i)
		filters = append(filters, fmt.Sprintf("[%d:v]%s[%s]", i, ScalePadFilter(cell), label))
		padded = append(padded, "["+label+"]")
	}

	layoutFilter, err := stackFilter(req.Layout, n, padded)
	if err != nil {
		return nil, err
	}
	filters = append(filters, layoutFilter)

	if req.Mode == ModeSideBySideAudioMix {
		var ins []string
		var weights []string
		for i, s := range req.Sources {
			ins = append(ins, fmt.Sprintf("[%d:a]volume=%g[a%d]", i, gainOrDefault(s.GainDB), i))
			weights = append(weights, fmt.Sprintf("[a%d]", i))
		}
		filters = append(filters, ins...)
		filters = append(filters, fmt.Sprintf("%samix=inputs=%d[outa]", strings.Join(weights, ""), n))
		argv = append(argv, "-filter_complex", strings.Join(filters, ";"),
			"-map", "[outv]", "-map", "[outa]", req.OutputPath)
	} else {
		argv = append(argv, "-filter_complex", strings.Join(filters, ";"),
			"-map", "[outv]", "-map", "0:a:0?", "-shortest", req.OutputPath)
	}
	return argv, nil
}

func gainOrDefault(g float64) float64 {
	if g <= 0 {
		return 1
	}
	return g
}

func dimsOf(sources []Source) []Dimensions {
	out := make([]Dimensions, len(sources))
	for i, s := range sources {
		out[i] = s.Dims
	}
	return out
}

func stackFilter(layout Layout, n int, labels []string) (string, error) {
	joined := strings.Join(labels, "")
	switch layout {
	case LayoutHorizontal:
		return fmt.Sprintf("%shstack=inputs=%d[outv]", joined, n), nil
	case LayoutVertical:
		return fmt.Sprintf("%svstack=inputs=%d[outv]", joined, n), nil
	case LayoutGrid2x2:
		if n != 4 {
			return "", fmt.Errorf("grid_2x2 layout requires exactly 4 sources")
		}
		return fmt.Sprintf("%sxstack=inputs=4:layout=0_0|w0_0|0_h0|w0_h0[outv]", joined), nil
	case Layout1Above2:
		if n != 3 {
			return "", fmt.Errorf("one_above_two layout requires exactly 3 sources")
		}
		return fmt.Sprintf("%s[%s]hstack=inputs=2[bottom];%s[bottom]vstack=inputs=2[outv]",
			labels[1], strings.Trim(labels[2], "[]"), labels[0]), nil
	default:
		return "", fmt.Errorf("unknown side_by_side layout %q", layout)
	}
}

// planSlideshow standardizes each still image (scale+pad, SAR 1:1, 30fps),
// holds for frame_dur, concats, with optional crossfade and audio mux
// (spec.md §4.5).
func planSlideshow(req Request) ([]string, error) {
	if len(req.Sources) == 0 {
		return nil, fmt.Errorf("slideshow requires at least 1 image")
	}
	frameDur := req.FrameDurSec
	if frameDur <= 0 {
		frameDur = 3
	}
	cell := CellFor(dimsOf(req.Sources))

	argv := []string{"-y"}
	for _, s := range req.Sources {
		if err := validateSourcePath(s.Path); err != nil {
			return nil, err
		}
		argv = append(argv, "-loop", "1", "-t", fmt.Sprintf("%g", frameDur), "-i", s.Path)
	}
	hasAudio := req.AudioPath != ""
	if hasAudio {
		if err := validateSourcePath(req.AudioPath); err != nil {
			return nil, err
		}
		argv = append(argv, "-i", req.AudioPath)
	}

	var filters []string
	var labels []string
	for i := range req.Sources {
		label := fmt.Sprintf("s%d", i)
		filters = append(filters, fmt.Sprintf("[%d:v]%s,fps=30[%s]", i, ScalePadFilter(cell), label))
		labels = append(labels, "["+label+"]")
	}
	if req.FadeDurSec > 0 && len(labels) > 1 {
		filters = append(filters, crossfadeChain(labels, frameDur, req.FadeDurSec))
	} else {
		filters = append(filters, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[outv]", strings.Join(labels, ""), len(labels)))
	}

	argv = append(argv, "-filter_complex", strings.Join(filters, ";"), "-map", "[outv]")
	if hasAudio {
		argv = append(argv, "-map", fmt.Sprintf("%d:a:0", len(req.Sources)), "-shortest")
	}
	argv = append(argv, req.OutputPath)
	return argv, nil
}

func crossfadeChain(labels []string, frameDur, fadeDur float64) string {
	var b strings.Builder
	prev := strings.Trim(labels[0], "[]")
	offset := frameDur - fadeDur
	for i := 1; i < len(labels); i++ {
		cur := strings.Trim(labels[i], "[]")
		out := fmt.Sprintf("xf%d", i)
		if i == len(labels)-1 {
			out = "outv"
		}
		fmt.Fprintf(&b, "[%s][%s]xfade=transition=fade:duration=%g:offset=%g[%s]", prev, cur, fadeDur, offset, out)
		if i < len(labels)-1 {
			b.WriteString(";")
		}
		prev = out
		offset += frameDur - fadeDur
	}
	return b.String()
}

// planAudioOnly covers spec.md §4.5's audio-only transforms: volume change,
// format convert, extract from video, multi-track mix, crossfade. No
// fade-in or fade-out is applied.
func planAudioOnly(req Request) ([]string, error) {
	if len(req.Sources) == 0 {
		return nil, fmt.Errorf("audio_only requires at least 1 source")
	}
	argv := []string{"-y"}
	for _, s := range req.Sources {
		if err := validateSourcePath(s.Path); err != nil {
			return nil, err
		}
		argv = append(argv, "-i", s.Path)
	}

	switch {
	case len(req.Sources) == 1 && req.VolumeDB != 0:
		argv = append(argv, "-af", fmt.Sprintf("volume=%gdB", req.VolumeDB), "-vn", req.OutputPath)
	case len(req.Sources) == 1:
		argv = append(argv, "-vn", req.OutputPath)
	case len(req.Sources) > 1 && len(req.MixWeights) == len(req.Sources) && req.CrossfadeS <= 0:
		if len(req.Sources) > 10 {
			return nil, fmt.Errorf("audio_only mix supports at most 10 tracks")
		}
		var ins []string
		for i, w := range req.MixWeights {
			if w < 0 || w > 10 {
				return nil, fmt.Errorf("mix weight %g out of range [0,10]", w)
			}
			ins = append(ins, fmt.Sprintf("[%d:a]volume=%g[m%d]", i, w, i))
		}
		var labels []string
		for i := range req.MixWeights {
			labels = append(labels, fmt.Sprintf("[m%d]", i))
		}
		filter := strings.Join(ins, ";") + ";" + fmt.Sprintf("%samix=inputs=%d[outa]", strings.Join(labels, ""), len(labels))
		argv = append(argv, "-filter_complex", filter, "-map", "[outa]", req.OutputPath)
	case len(req.Sources) == 2 && req.CrossfadeS > 0:
		if req.CrossfadeS < 0.1 || req.CrossfadeS > 10 {
			return nil, fmt.Errorf("crossfade duration %g out of range [0.1,10]", req.CrossfadeS)
		}
		argv = append(argv, "-filter_complex",
			fmt.Sprintf("[0:a][1:a]acrossfade=d=%g[outa]", req.CrossfadeS),
			"-map", "[outa]", req.OutputPath)
	default:
		return nil, fmt.Errorf("unsupported audio_only combination of sources/weights/crossfade")
	}
	return argv, nil
}

// planWatermark overlays an image or burns in text (spec.md §4.5).
func planWatermark(req Request) ([]string, error) {
	if len(req.Sources) != 1 {
		return nil, fmt.Errorf("watermark requires exactly 1 source")
	}
	if err := validateSourcePath(req.Sources[0].Path); err != nil {
		return nil, err
	}
	argv := []string{"-y", "-i", req.Sources[0].Path}

	if req.WatermarkImagePath != "" {
		if err := validateSourcePath(req.WatermarkImagePath); err != nil {
			return nil, err
		}
		argv = append(argv, "-i", req.WatermarkImagePath)
		scale := req.WatermarkFontSize // reused as scale pct for images when >0
		scalePct := 1.0
		if scale > 0 {
			scalePct = float64(scale) / 100
		}
		x, y := positionExpr(req.WatermarkPosition())
		alpha := 1.0
		if len(req.Overlays) > 0 {
			alpha = req.Overlays[0].Alpha
		}
		filter := fmt.Sprintf("[1:v]scale=iw*%g:ih*%g%s[wm];[0:v][wm]overlay=%s:%s[outv]",
			scalePct, scalePct, alphaSuffix(alpha), x, y)
		argv = append(argv, "-filter_complex", filter, "-map", "[outv]", "-map", "0:a:0?", "-c:a", "copy", req.OutputPath)
		return argv, nil
	}

	if req.WatermarkText != "" {
		if err := validation.FilterGraphText(req.WatermarkText); err != nil {
			return nil, err
		}
		font := req.WatermarkFont
		if font == "" {
			font = "sans"
		}
		size := req.WatermarkFontSize
		if size <= 0 {
			size = 24
		}
		fill := req.WatermarkFillColor
		if fill == "" {
			fill = "white"
		}
		x, y := positionExpr(req.WatermarkPosition())
		text := escapeDrawtext(req.WatermarkText)
		vf := fmt.Sprintf("drawtext=font=%s:text='%s':fontsize=%d:fontcolor=%s:x=%s:y=%s:box=1:boxcolor=black@0.4",
			font, text, size, fill, x, y)
		argv = append(argv, "-vf", vf, "-c:a", "copy", req.OutputPath)
		return argv, nil
	}

	return nil, fmt.Errorf("watermark requires either an image path or text")
}

// WatermarkPosition returns the overlay position preset from Overlays[0] if
// present, else "center".
func (r Request) WatermarkPosition() string {
	if len(r.Overlays) > 0 && r.Overlays[0].Position != "" {
		return r.Overlays[0].Position
	}
	return "center"
}

// planColorFilter composes the color/filter chain and copies audio
// (spec.md §4.5).
func planColorFilter(req Request) ([]string, error) {
	if len(req.Sources) != 1 {
		return nil, fmt.Errorf("color_filter requires exactly 1 source")
	}
	if err := validateSourcePath(req.Sources[0].Path); err != nil {
		return nil, err
	}
	var parts []string
	if req.Brightness != 0 || req.Contrast != 0 || req.Saturation != 0 || req.Gamma != 0 {
		parts = append(parts, fmt.Sprintf("eq=brightness=%g:contrast=%g:saturation=%g:gamma=%g",
			req.Brightness, orDefault(req.Contrast, 1), orDefault(req.Saturation, 1), orDefault(req.Gamma, 1)))
	}
	if req.BlurRadius > 0 {
		parts = append(parts, fmt.Sprintf("gblur=sigma=%g", req.BlurRadius))
	}
	if req.SharpenAmount > 0 {
		parts = append(parts, fmt.Sprintf("unsharp=5:5:%g", req.SharpenAmount))
	}
	if req.Temperature != 0 || req.Tint != 0 {
		parts = append(parts, fmt.Sprintf("colorbalance=rs=%g:gs=%g", req.Temperature/100, req.Tint/100))
	}
	if req.Highlights != 0 || req.Shadows != 0 {
		parts = append(parts, fmt.Sprintf("curves=master='0/0 0.5/%g 1/%g'",
			0.5+req.Shadows/200, 1+req.Highlights/200))
	}
	if req.Vibrance != 0 {
		parts = append(parts, fmt.Sprintf("vibrance=intensity=%g", req.Vibrance/100))
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("color_filter requires at least one adjustment")
	}
	argv := []string{"-y", "-i", req.Sources[0].Path, "-vf", strings.Join(parts, ","), "-c:a", "copy", req.OutputPath}
	return argv, nil
}

func orDefault(v, d float64) float64 {
	if v == 0 {
		return d
	}
	return v
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, `\`, `\\`)
	p = strings.ReplaceAll(p, ":", `\:`)
	return p
}

func escapeDrawtext(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", `\'`)
	s = strings.ReplaceAll(s, ":", `\:`)
	return s
}
