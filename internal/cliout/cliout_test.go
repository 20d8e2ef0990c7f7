package cliout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuggestionMatchesKnownErrorPatterns(t *testing.T) {
	cases := []struct {
		msg      string
		contains string
	}{
		{"exec: \"ffmpeg\": executable file not found in $PATH", "install ffmpeg"},
		{"listen tcp :8080: bind: address already in use", "already listening"},
		{"parse config file: unexpected end of JSON input", "not valid JSON"},
		{"write /data/cache/x: no space left on device", "scratch or cache volume is full"},
		{"open /data: permission denied", "filesystem permissions"},
		{"something unrelated exploded", "check the error message above"},
	}
	for _, c := range cases {
		assert.Contains(t, Suggestion(errors.New(c.msg)), c.contains)
	}
}

func TestSuggestionReturnsEmptyForNilError(t *testing.T) {
	assert.Equal(t, "", Suggestion(nil))
}

func TestFormatIncludesErrorAndSuggestion(t *testing.T) {
	out := Format(errors.New("bind: address already in use"))
	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, "Suggestion:")
	assert.Contains(t, out, "already listening")
}

func TestFormatReturnsEmptyForNilError(t *testing.T) {
	assert.Equal(t, "", Format(nil))
}
