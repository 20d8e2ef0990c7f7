package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreferredReturnsEmptyWhenCodecToolIsMissing(t *testing.T) {
	p := New("/nonexistent/ffmpeg-binary")
	assert.Equal(t, "", p.Preferred())
	assert.Empty(t, p.Available())
}

func TestRewriteArgvUnchangedWithoutAcceleratedEncoder(t *testing.T) {
	p := New("/nonexistent/ffmpeg-binary")
	argv := []string{"-i", "in.mp4", "-c:v", "libx264", "-preset", "fast", "out.mp4"}
	assert.Equal(t, argv, p.RewriteArgv(argv))
}

// preProbed fakes a completed probe so RewriteArgv's substitution logic can
// be exercised without shelling out to a real accelerated encoder.
func preProbed(preferred string, available ...string) *Prober {
	p := &Prober{}
	p.once.Do(func() {})
	p.preferred = preferred
	p.available = available
	return p
}

func TestRewriteArgvSubstitutesPreferredEncoderAndTuning(t *testing.T) {
	p := preProbed("h264_nvenc", "h264_nvenc")
	argv := []string{"-i", "in.mp4", "-c:v", "libx264", "-preset", "fast", "out.mp4"}
	out := p.RewriteArgv(argv)

	assert.Contains(t, out, "h264_nvenc")
	assert.NotContains(t, out, "libx264")
	assert.Contains(t, out, "-rc")
	assert.Contains(t, out, "vbr")
	assert.Contains(t, out, "out.mp4")
}

func TestAvailableReturnsDefensiveCopy(t *testing.T) {
	p := preProbed("h264_nvenc", "h264_nvenc")
	got := p.Available()
	got[0] = "tampered"
	assert.Equal(t, "h264_nvenc", p.Available()[0])
}
