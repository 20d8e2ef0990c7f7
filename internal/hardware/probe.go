// Package hardware implements the hardware-capability layer of spec.md
// §4.9: on first use, probe the codec tool for an accelerated encoder and
// cache the result so the runner can rewrite argv to prefer it.
//
// Grounded on the teacher's pattern of shelling out to an external tool and
// checking its exit code (pkg/resilience/connection_manager.go's
// health-check-by-probe idiom), applied here to ffmpeg encoder probing
// instead of network endpoint health.
package hardware

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Encoder names ffmpeg would report in `-encoders`, platform-ordered per
// spec.md §4.9 ({nvenc, qsv, amf, videotoolbox} x {h264, hevc}).
var candidatePriority = []string{
	"h264_nvenc", "hevc_nvenc",
	"h264_qsv", "hevc_qsv",
	"h264_amf", "hevc_amf",
	"h264_videotoolbox", "hevc_videotoolbox",
}

// tuning holds the idiomatic rate-control/preset flags for an accelerated
// encoder family, substituted in place of the software encoder's flags.
type tuning struct {
	presetFlag string // e.g. "-preset"
	preset     string // fast|medium|slow equivalent
	rateFlags  []string
}

var tuningByEncoder = map[string]tuning{
	"h264_nvenc":         {"-preset", "medium", []string{"-rc", "vbr", "-cq", "23"}},
	"hevc_nvenc":         {"-preset", "medium", []string{"-rc", "vbr", "-cq", "25"}},
	"h264_qsv":           {"-preset", "medium", []string{"-global_quality", "23"}},
	"hevc_qsv":           {"-preset", "medium", []string{"-global_quality", "25"}},
	"h264_amf":           {"-quality", "balanced", []string{"-rc", "cqp", "-qp_i", "23", "-qp_p", "23"}},
	"hevc_amf":           {"-quality", "balanced", []string{"-rc", "cqp", "-qp_i", "25", "-qp_p", "25"}},
	"h264_videotoolbox":  {"-profile:v", "high", []string{"-q:v", "60"}},
	"hevc_videotoolbox":  {"-profile:v", "main", []string{"-q:v", "60"}},
}

// Prober caches the probe result so it runs at most once per process.
type Prober struct {
	ffmpegPath string
	probeTimeout time.Duration

	once      sync.Once
	available []string // accepted encoders, in priority order
	preferred string   // available[0], or "" if none
}

// New creates a Prober that shells out to ffmpegPath.
func New(ffmpegPath string) *Prober {
	return &Prober{ffmpegPath: ffmpegPath, probeTimeout: 10 * time.Second}
}

// Preferred returns the best available accelerated encoder name, or "" if
// none passed probing. Probing happens lazily on first call.
func (p *Prober) Preferred() string {
	p.once.Do(p.probeAll)
	return p.preferred
}

// Available returns all accepted accelerated encoders, in priority order.
func (p *Prober) Available() []string {
	p.once.Do(p.probeAll)
	out := make([]string, len(p.available))
	copy(out, p.available)
	return out
}

func (p *Prober) probeAll() {
	for _, name := range candidatePriority {
		if p.probeOne(name) {
			p.available = append(p.available, name)
		}
	}
	if len(p.available) > 0 {
		p.preferred = p.available[0]
	}
}

// probeOne runs a minimal one-second synthetic encode with encoder name and
// accepts it iff the process exits zero and produces a non-empty file.
func (p *Prober) probeOne(name string) bool {
	out, err := os.CreateTemp("", "hwprobe-*.mp4")
	if err != nil {
		return false
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	ctx, cancel := context.WithTimeout(context.Background(), p.probeTimeout)
	defer cancel()

	argv := []string{
		"-y", "-f", "lavfi", "-i", "color=c=black:s=64x64:d=1",
		"-c:v", name, "-frames:v", "1", outPath,
	}
	cmd := exec.CommandContext(ctx, p.ffmpegPath, argv...)
	if err := cmd.Run(); err != nil {
		return false
	}
	info, err := os.Stat(outPath)
	return err == nil && info.Size() > 0
}

// RewriteArgv substitutes the "-c:v <name>" flag and its adjacent tuning
// flags with the preferred accelerated encoder, if any. If no accelerated
// encoder is available, or argv has no "-c:v" flag, the argv is returned
// unchanged (spec.md §4.9).
func (p *Prober) RewriteArgv(argv []string) []string {
	preferred := p.Preferred()
	if preferred == "" {
		return argv
	}
	t, ok := tuningByEncoder[preferred]
	if !ok {
		return argv
	}
	hasCodec := false
	for _, a := range argv {
		if a == "-c:v" {
			hasCodec = true
			break
		}
	}
	if !hasCodec {
		return argv
	}

	out := make([]string, 0, len(argv)+4)
	strippedFlags := map[string]bool{
		"-preset": true, "-profile:v": true, "-quality": true,
		"-rc": true, "-cq": true, "-qp_i": true, "-qp_p": true,
		"-global_quality": true, "-q:v": true,
	}
	for i := 0; i < len(argv); i++ {
		switch {
		case argv[i] == "-c:v" && i+1 < len(argv):
			out = append(out, "-c:v", preferred)
			i++
		case strippedFlags[argv[i]] && i+1 < len(argv):
			i++ // drop the flag and its value; re-added below
		default:
			out = append(out, argv[i])
		}
	}
	out = append(out, t.presetFlag, t.preset)
	out = append(out, t.rateFlags...)
	return out
}
