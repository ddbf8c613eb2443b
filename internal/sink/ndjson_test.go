package sink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLines_OnePerLineInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	records := []map[string]any{
		{"adId": 1, "spend": 12.5},
		{"adId": 2},
		{"adId": 3},
	}

	require.NoError(t, WriteLines(records, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"adId":1`)
	assert.Contains(t, lines[1], `"adId":2`)
	assert.Contains(t, lines[2], `"adId":3`)
}

func TestWriteLines_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, WriteLines([]map[string]any{}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestReadLines_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rt.json")
	records := []map[string]any{
		{"adId": float64(1), "status": "ACTIVE"},
		{"adId": float64(2), "spend": 0.25},
	}
	require.NoError(t, WriteLines(records, path))

	got, err := ReadLines[map[string]any](path)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestReadLines_SkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.json")
	require.NoError(t, os.WriteFile(path, []byte("{\"a\":1}\n\n{\"a\":2}\n"), 0o644))

	got, err := ReadLines[map[string]any](path)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestReadLines_MalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{\"a\":1}\nnot json\n"), 0o644))

	_, err := ReadLines[map[string]any](path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadLines_MissingFile(t *testing.T) {
	_, err := ReadLines[map[string]any](filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
