package subtitle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRhythmFallbackSplitsSentencesAndOffsetsByLeadIn(t *testing.T) {
	segs := RhythmFallback("Hello world. This is a test.", 0)
	require.Len(t, segs, 2)
	assert.Equal(t, 1*time.Second, segs[0].Start)
	assert.True(t, segs[0].End > segs[0].Start)
	assert.Equal(t, segs[0].End, segs[1].Start)
}

func TestRhythmFallbackEmptyTextProducesNoSegments(t *testing.T) {
	assert.Nil(t, RhythmFallback("   ", 0))
}

func TestRhythmFallbackBoundsDurationsWithTargetDuration(t *testing.T) {
	segs := RhythmFallback("Short. Another short one.", 10*time.Second)
	require.NotEmpty(t, segs)
	for _, s := range segs {
		d := s.End - s.Start
		assert.GreaterOrEqual(t, d, 1500*time.Millisecond)
		assert.LessOrEqual(t, d, 6*time.Second)
	}
}

func TestAcousticAlignMergesCandidatesTowardScriptSimilarity(t *testing.T) {
	script := []string{"hello world", "goodbye now"}
	words := []Word{
		{Text: "Hello", Start: 0, End: time.Second},
		{Text: "world.", Start: time.Second, End: 2 * time.Second},
		{Text: "Goodbye", Start: 3 * time.Second, End: 4 * time.Second},
		{Text: "now.", Start: 4 * time.Second, End: 5 * time.Second},
	}
	segs := AcousticAlign(script, words)
	require.Len(t, segs, 2)
	assert.Equal(t, "hello world", segs[0].Text)
	assert.Equal(t, time.Duration(0), segs[0].Start)
	assert.Equal(t, 2*time.Second, segs[0].End)
}

func TestAcousticAlignFallsBackWhenCandidatesExhausted(t *testing.T) {
	script := []string{"one", "two", "three"}
	words := []Word{{Text: "one.", Start: 0, End: time.Second}}
	segs := AcousticAlign(script, words)
	require.Len(t, segs, 3)
	assert.Equal(t, "two", segs[1].Text)
	assert.Equal(t, segs[0].End, segs[1].Start)
}

func TestRenderSRTFormat(t *testing.T) {
	segs := []Segment{{Start: 0, End: 1500 * time.Millisecond, Text: "hi"}}
	out := RenderSRT(segs)
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:01,500\nhi\n\n", out)
}

func TestSplitScriptMatchesRhythmSentenceBoundaries(t *testing.T) {
	assert.Equal(t, []string{"One", "Two", "Three"}, SplitScript("One. Two!\nThree?"))
}
