package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgemedia/mediajobs/internal/classify"
	"github.com/forgemedia/mediajobs/internal/logging"
)

func newTestRegistry() *Registry {
	return New(logging.New(logging.DefaultConfig()), time.Hour)
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	r := newTestRegistry()
	id := r.Create(FamilyDownload, map[string]string{"video_url": "https://example.com/v.mp4"})

	snap, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, FamilyDownload, snap.Family)
	assert.Equal(t, StatusRunning, snap.Status)
	assert.Equal(t, 0, snap.Progress)
}

func TestGetUnknownIDReturnsFalse(t *testing.T) {
	r := newTestRegistry()
	_, ok := r.Get(ID("does-not-exist"))
	assert.False(t, ok)
}

func TestUpdateProgressIsMonotonicNonDecreasing(t *testing.T) {
	r := newTestRegistry()
	id := r.Create(FamilyKeyframe, nil)

	p80 := 80
	require.True(t, r.Update(id, Patch{Progress: &p80}))
	p40 := 40
	require.True(t, r.Update(id, Patch{Progress: &p40}))

	snap, _ := r.Get(id)
	assert.Equal(t, 80, snap.Progress)
}

func TestUpdateOnTerminalTaskIsNoOp(t *testing.T) {
	r := newTestRegistry()
	id := r.Create(FamilyTranscription, nil)
	r.Fail(id, classify.New(classify.Processing, "boom", nil))

	msg := "should not land"
	ok := r.Update(id, Patch{Message: &msg})
	assert.False(t, ok)

	snap, _ := r.Get(id)
	assert.NotEqual(t, msg, snap.Message)
}

func TestCompletingATaskClearsTempPathsAndSetsResult(t *testing.T) {
	r := newTestRegistry()
	id := r.Create(FamilyComposition, nil)
	require.True(t, r.Update(id, Patch{AddTempPath: "/tmp/scratch-1"}))
	assert.Len(t, r.TempPaths(id), 1)

	completed := StatusCompleted
	require.True(t, r.Update(id, Patch{Status: &completed, Result: "done"}))

	snap, _ := r.Get(id)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, "done", snap.Result)
	assert.Empty(t, r.TempPaths(id))
}

func TestCancelStopsNonTerminalTaskAndIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	id := r.Create(FamilyDownload, nil)

	assert.True(t, r.Cancel(id))
	snap, _ := r.Get(id)
	assert.Equal(t, StatusCancelled, snap.Status)

	assert.False(t, r.Cancel(id))
}

func TestCancelUnknownTaskReturnsFalse(t *testing.T) {
	r := newTestRegistry()
	assert.False(t, r.Cancel(ID("nope")))
}

func TestCountActiveByFamilyAndActiveCount(t *testing.T) {
	r := newTestRegistry()
	r.Create(FamilyDownload, nil)
	id2 := r.Create(FamilyDownload, nil)
	r.Create(FamilyKeyframe, nil)
	r.Cancel(id2)

	counts := r.CountActiveByFamily()
	assert.Equal(t, 1, counts[FamilyDownload])
	assert.Equal(t, 1, counts[FamilyKeyframe])
	assert.Equal(t, 2, r.ActiveCount())
}

func TestPurgeRemovesTerminalRecord(t *testing.T) {
	r := newTestRegistry()
	id := r.Create(FamilyDownload, nil)
	r.Cancel(id)

	assert.True(t, r.Purge(id))
	assert.False(t, r.Exists(id))
}

func TestFailRecordsClassifiedError(t *testing.T) {
	r := newTestRegistry()
	id := r.Create(FamilyTranscription, nil)
	r.Fail(id, classify.New(classify.FFmpegError, "encode failed", nil))

	snap, _ := r.Get(id)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "FFmpegError", snap.Error.Kind)
	assert.Equal(t, StatusFailed, snap.Status)
}
