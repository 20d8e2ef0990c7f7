package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgemedia/mediajobs/internal/classify"
	"github.com/forgemedia/mediajobs/internal/logging"
	"github.com/forgemedia/mediajobs/internal/task"
)

func TestFormatSelectorMapsQualityToExpression(t *testing.T) {
	assert.Equal(t, "worst", formatSelector("worst"))
	assert.Equal(t, "bestvideo[height<=1080]+bestaudio/best[height<=1080]", formatSelector("1080p"))
	assert.Equal(t, "bestvideo[height<=720]+bestaudio/best[height<=720]", formatSelector("720p"))
	assert.Equal(t, "bestvideo[height<=480]+bestaudio/best[height<=480]", formatSelector("480p"))
	assert.Equal(t, "bestvideo+bestaudio/best", formatSelector(""))
	assert.Equal(t, "bestvideo+bestaudio/best", formatSelector("unknown"))
}

func TestParseFrameRateHandlesFractionAndPlainForms(t *testing.T) {
	assert.Equal(t, 30.0, parseFrameRate("30/1"))
	assert.InDelta(t, 29.97, parseFrameRate("30000/1001"), 0.01)
	assert.Equal(t, 25.0, parseFrameRate("25"))
	assert.Equal(t, 0.0, parseFrameRate("0/0"))
	assert.Equal(t, 0.0, parseFrameRate("not-a-rate"))
}

func newTestDeps(t *testing.T) (Deps, *task.Registry) {
	t.Helper()
	log := logging.New(logging.DefaultConfig())
	registry := task.New(log, time.Minute)
	return Deps{Registry: registry, ErrorRing: classify.NewRing(10), Log: log}, registry
}

func TestBeginTransitionsTaskToRunning(t *testing.T) {
	d, registry := newTestDeps(t)
	id := registry.Create(task.FamilyDownload, nil)

	d.begin(id)

	snap, ok := registry.Get(id)
	require.True(t, ok)
	assert.Equal(t, task.StatusRunning, snap.Status)
	assert.False(t, snap.StartedAt.IsZero())
}

func TestCompleteSetsResultAndFullProgress(t *testing.T) {
	d, registry := newTestDeps(t)
	id := registry.Create(task.FamilyKeyframe, nil)

	d.complete(id, map[string]string{"path": "/out.jpg"})

	snap, _ := registry.Get(id)
	assert.Equal(t, task.StatusCompleted, snap.Status)
	assert.Equal(t, 100, snap.Progress)
	assert.NotNil(t, snap.Result)
}

func TestFailRecordsErrorInRingAndRegistry(t *testing.T) {
	d, registry := newTestDeps(t)
	id := registry.Create(task.FamilyTranscription, nil)

	te := classify.New(classify.FFmpegError, "encode failed", nil)
	d.fail(id, te)

	snap, _ := registry.Get(id)
	assert.Equal(t, task.StatusFailed, snap.Status)

	recent := d.ErrorRing.Recent(10)
	require.Len(t, recent, 1)
	assert.Equal(t, string(id), recent[0].TaskID)
}

func TestRegisterTempAddsScratchPathToTask(t *testing.T) {
	d, registry := newTestDeps(t)
	id := registry.Create(task.FamilyComposition, nil)

	d.registerTemp(id, "/scratch/a")

	assert.Contains(t, registry.TempPaths(id), "/scratch/a")
}
