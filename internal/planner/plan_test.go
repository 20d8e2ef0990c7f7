package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanConcatRequiresAtLeastTwoSources(t *testing.T) {
	_, err := Plan("ffmpeg", Request{Mode: ModeConcat, Sources: []Source{{Path: "a.mp4"}}, OutputPath: "out.mp4"})
	assert.Error(t, err)
}

func TestPlanConcatBuildsListFileArgv(t *testing.T) {
	p, err := Plan("ffmpeg", Request{
		Mode:       ModeConcat,
		Sources:    []Source{{Path: "a.mp4"}, {Path: "b.mp4"}},
		OutputPath: "out.mp4",
	})
	require.NoError(t, err)
	assert.Contains(t, p.Argv, ConcatListPath("out.mp4"))
	assert.Contains(t, p.Argv, "out.mp4")
}

func TestPlanRejectsUnknownMode(t *testing.T) {
	_, err := Plan("ffmpeg", Request{Mode: Mode("nonsense"), OutputPath: "out.mp4"})
	assert.Error(t, err)
}

func TestPlanNeedsNormalizationOnHeterogeneousConcatSources(t *testing.T) {
	p, err := Plan("ffmpeg", Request{
		Mode: ModeConcat,
		Sources: []Source{
			{Path: "a.mp4", Dims: Dimensions{Width: 1920, Height: 1080}},
			{Path: "b.mp4", Dims: Dimensions{Width: 1280, Height: 720}},
		},
		OutputPath: "out.mp4",
	})
	require.NoError(t, err)
	assert.True(t, p.NeedsNormalization)
}

func TestPlanRejectsShellMetacharSourcePath(t *testing.T) {
	_, err := Plan("ffmpeg", Request{
		Mode:       ModeConcat,
		Sources:    []Source{{Path: "a; rm -rf /"}, {Path: "b.mp4"}},
		OutputPath: "out.mp4",
	})
	assert.Error(t, err)
}

func TestConcatListFileFormatsOneLinePerPath(t *testing.T) {
	out := ConcatListFile([]string{"a.mp4", "b.mp4"})
	assert.Equal(t, "file 'a.mp4'\nfile 'b.mp4'\n", out)
}

func TestCellForTakesMaxOfEachDimensionRoundedEven(t *testing.T) {
	cell := CellFor([]Dimensions{{Width: 1921, Height: 1079}, {Width: 1280, Height: 1081}})
	assert.Equal(t, Dimensions{Width: 1920, Height: 1080}, cell)
}

func TestScalePadFilterContainsExpectedOperations(t *testing.T) {
	filter := ScalePadFilter(Dimensions{Width: 640, Height: 360})
	assert.Contains(t, filter, "scale=640:360")
	assert.Contains(t, filter, "pad=640:360")
	assert.Contains(t, filter, "setsar=1:1")
}

func TestValidateArgvAllowsMetacharsOnlyInFilterGraph(t *testing.T) {
	assert.NoError(t, ValidateArgv([]string{"-vf", "scale=640:360;pad=iw:ih"}))
	assert.Error(t, ValidateArgv([]string{"-i", "in.mp4; rm -rf /"}))
}
