package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgemedia/mediajobs/internal/logging"
)

func openTestCache(t *testing.T, maxBytes int64, idleTTL time.Duration) *Cache {
	t.Helper()
	c, err := Open(t.TempDir(), maxBytes, idleTTL, 0, logging.New(logging.DefaultConfig()))
	require.NoError(t, err)
	return c
}

func TestPutAndGetArtifactRoundTrip(t *testing.T) {
	c := openTestCache(t, 1<<30, time.Hour)

	err := c.Put(Entry{Fingerprint: "fp1", Kind: KindArtifact, ParamsHash: "ph1", SizeBytes: 100, Path: "/tmp/out.mp4"})
	require.NoError(t, err)

	e, ok := c.GetArtifact("fp1", "ph1")
	require.True(t, ok)
	assert.Equal(t, int64(100), e.SizeBytes)

	_, ok = c.GetArtifact("fp1", "other-params")
	assert.False(t, ok)
}

func TestGetMetadataMissReturnsFalse(t *testing.T) {
	c := openTestCache(t, 1<<30, time.Hour)
	_, ok := c.GetMetadata("unknown")
	assert.False(t, ok)

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Misses)
}

func TestEvictionIsLRUUnderSizeCeiling(t *testing.T) {
	c := openTestCache(t, 150, time.Hour)

	require.NoError(t, c.Put(Entry{Fingerprint: "a", Kind: KindMetadata, SizeBytes: 100}))
	require.NoError(t, c.Put(Entry{Fingerprint: "b", Kind: KindMetadata, SizeBytes: 100}))

	_, aStillThere := c.GetMetadata("a")
	assert.False(t, aStillThere)
	_, bStillThere := c.GetMetadata("b")
	assert.True(t, bStillThere)

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Evictions)
}

func TestSweepExpiredRemovesIdleEntriesOnly(t *testing.T) {
	c := openTestCache(t, 1<<30, 10*time.Millisecond)
	require.NoError(t, c.Put(Entry{Fingerprint: "old", Kind: KindMetadata, SizeBytes: 1}))

	time.Sleep(20 * time.Millisecond)
	removed := c.SweepExpired()
	assert.Equal(t, 1, removed)

	_, ok := c.GetMetadata("old")
	assert.False(t, ok)
}

func TestClearResetsCacheState(t *testing.T) {
	c := openTestCache(t, 1<<30, time.Hour)
	require.NoError(t, c.Put(Entry{Fingerprint: "a", Kind: KindMetadata, SizeBytes: 1}))
	require.NoError(t, c.Clear())

	stats := c.Stats()
	assert.Equal(t, 0, stats.Entries)
	assert.EqualValues(t, 0, stats.TotalBytes)
}

func TestPathForLayoutBySubdir(t *testing.T) {
	c := openTestCache(t, 1<<30, time.Hour)
	metaPath := c.PathFor(KindMetadata, false, "fp", "", ".json")
	assert.Equal(t, filepath.Join(c.root, subdirMetadata, "fp.json"), metaPath)

	thumbPath := c.PathFor(KindArtifact, true, "fp", "ph", ".jpg")
	assert.Equal(t, filepath.Join(c.root, subdirThumbnails, "fp-ph.jpg"), thumbPath)
}

func TestFingerprintIsStableForUnchangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	f1, err := Fingerprint(path)
	require.NoError(t, err)
	f2, err := Fingerprint(path)
	require.NoError(t, err)
	assert.Equal(t, f1, f2)
}

func TestParamsHashIsDeterministicAndDistinguishesInput(t *testing.T) {
	assert.Equal(t, ParamsHash("a=1,b=2"), ParamsHash("a=1,b=2"))
	assert.NotEqual(t, ParamsHash("a=1,b=2"), ParamsHash("a=1,b=3"))
}
