package device

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"healthsync/internal/health"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const export = `[
  {"uuid":"A","metric":"step_count","startMs":1000,"endMs":2000,"quantity":120,"unit":"count","sourceName":"Watch"},
  {"uuid":"B","metric":"step_count","startMs":5000,"endMs":6000,"quantity":80,"unit":"count"},
  {"uuid":"C","metric":"sleep_segment","startMs":1500,"endMs":9000,"categoryCode":3,"unit":"ms"}
]`

func newSource(t *testing.T) *FileSource {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "export.json")
	require.NoError(t, os.WriteFile(path, []byte(export), 0644))
	return &FileSource{
		ExportPath: path,
		WritesPath: filepath.Join(dir, "out", "writes.jsonl"),
		Now:        func() time.Time { return time.UnixMilli(42) },
	}
}

func TestFileSource_Permissions(t *testing.T) {
	ctx := context.Background()
	src := newSource(t)

	ok, err := src.IsAvailable(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = src.RequestReadPermission(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = src.RequestWritePermission(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	missing := &FileSource{ExportPath: filepath.Join(t.TempDir(), "nope.json")}
	ok, err = missing.IsAvailable(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = missing.RequestWritePermission(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileSource_FetchFiltersByMetricAndWindow(t *testing.T) {
	src := newSource(t)
	got, err := src.FetchSamples(context.Background(), health.MetricStepCount, 0, 4000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].UUID)
	assert.Equal(t, "Watch", got[0].SourceName)

	sleep, err := src.FetchSamples(context.Background(), health.MetricSleepSegment, 0, 10000)
	require.NoError(t, err)
	require.Len(t, sleep, 1)
	require.NotNil(t, sleep[0].CategoryCode)
	assert.Equal(t, 3, *sleep[0].CategoryCode)
}

func TestFileSource_ApplyWrite(t *testing.T) {
	ctx := context.Background()
	src := newSource(t)
	_, err := src.RequestWritePermission(ctx)
	require.NoError(t, err)

	in := health.WriteIntent{WriteIntentPayload: health.WriteIntentPayload{
		ExternalID:  "meal-1",
		Metric:      health.MetricDietaryEnergy,
		StartTimeMs: 3000,
		EndTimeMs:   3500,
		ValueNumber: 500,
		Unit:        "kcal",
	}}
	res, err := src.ApplyWrite(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, health.IntentApplied, res.Status)
	assert.NotEmpty(t, res.DeviceUUID)

	got, err := src.FetchSamples(ctx, health.MetricDietaryEnergy, 0, 4000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, res.DeviceUUID, got[0].UUID)
	assert.Equal(t, 500.0, *got[0].Quantity)

	in.Metric = health.MetricStepCount
	res, err = src.ApplyWrite(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, health.IntentSkipped, res.Status)

	in.Metric = health.MetricActiveEnergy
	in.ValueNumber = -1
	res, err = src.ApplyWrite(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, health.IntentFailed, res.Status)
	assert.Equal(t, "invalid_value", res.ErrorCode)
}
