package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevelAndFormat(t *testing.T) {
	lvl, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, WarnLevel, lvl)

	_, err = ParseLevel("bogus")
	assert.Error(t, err)

	assert.Equal(t, JSONFormat, ParseFormat("JSON"))
	assert.Equal(t, TextFormat, ParseFormat(""))
}

func TestLoggerRespectsMinimumLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: WarnLevel, Format: TextFormat, Output: &buf})

	log.Info("should not appear")
	assert.Empty(t, buf.String())

	log.Warn("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestLoggerJSONFormatEmitsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: DebugLevel, Format: JSONFormat, Output: &buf})

	log.Info("task started", map[string]interface{}{"task_id": "abc123"})

	var entry Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "task started", entry.Message)
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "abc123", entry.Fields["task_id"])
}

func TestWithComponentAndWithMergeFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(&Config{Level: DebugLevel, Format: JSONFormat, Output: &buf})
	scoped := base.WithComponent("sampler").With(map[string]interface{}{"request_id": "r1"})

	scoped.Debug("sampling", map[string]interface{}{"cpu_pct": 12.5})

	var entry Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sampler", entry.Component)
	assert.Equal(t, "r1", entry.Fields["request_id"])
	assert.Equal(t, 12.5, entry.Fields["cpu_pct"])
}

func TestFormatTextIncludesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: InfoLevel, Format: TextFormat, Output: &buf}).WithComponent("janitor")
	log.Info("swept", map[string]interface{}{"removed": 3})

	line := buf.String()
	assert.True(t, strings.Contains(line, "janitor:"))
	assert.True(t, strings.Contains(line, "swept"))
	assert.True(t, strings.Contains(line, "removed=3"))
}
