package usage

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/anything-ai/anything-ai/internal/config"
	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenCounter struct {
	input, output int
}

func (c *tokenCounter) RecordTokens(model string, input, output int) {
	c.input += input
	c.output += output
}

func TestRecord(t *testing.T) {
	var buf bytes.Buffer
	counter := &tokenCounter{}
	r := NewRecorderWriter(&buf, counter)

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.Record(models.UsageRecord{Timestamp: ts, Model: "gemini-test", InputTokens: 12, OutputTokens: 30, DurationMs: 850})
	r.Record(models.UsageRecord{Timestamp: ts, Model: "gemini-test", InputTokens: 1, OutputTokens: 2, DurationMs: 10})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "usage", entry["message"])
	assert.Equal(t, "gemini-test", entry["model"])
	assert.Equal(t, float64(42), entry["totalTokens"])
	assert.Equal(t, float64(850), entry["durationMs"])
	assert.Equal(t, "2024-05-01T12:00:00.000Z", entry["timestamp"])

	assert.Equal(t, 13, counter.input)
	assert.Equal(t, 32, counter.output)
	assert.NoError(t, r.Close())
}

func TestNewRecorderCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "usage.jsonl")
	r, err := NewRecorder(&config.UsageConfig{Path: path}, nil)
	require.NoError(t, err)

	r.Record(models.UsageRecord{Timestamp: time.Now(), Model: "m", InputTokens: 1, OutputTokens: 1})
	require.NoError(t, r.Close())
	assert.FileExists(t, path)
}
