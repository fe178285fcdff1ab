package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"healthsync/internal/pullsync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_OnceThenLastAndFailureExitCode(t *testing.T) {
	var ingests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/health/ingest":
			// first upload hits a transient failure and is retried
			if ingests.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"error":"warming up"}`))
				return
			}
			_, _ = w.Write([]byte(`{"inserted":1,"deduped":0,"recomputedDays":["2024-05-01"],"serverTimeMs":1}`))
		case "/health/write-intents/pending":
			_, _ = w.Write([]byte(`{"data":{"items":[],"nextCursor":null},"meta":{}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	export := filepath.Join(dir, "export.json")
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC).UnixMilli()
	body, err := json.Marshal([]map[string]any{{
		"uuid": "s1", "metric": "step_count", "startMs": start, "endMs": start + 60_000, "quantity": 120, "unit": "count",
	}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(export, body, 0o644))

	t.Setenv("HEALTH_API_BASE_URL", srv.URL)
	t.Setenv("HEALTH_API_TOKEN", "t")
	t.Setenv("HEALTH_EXPORT_PATH", export)
	t.Setenv("HEALTH_WRITES_PATH", filepath.Join(dir, "writes.jsonl"))
	t.Setenv("HEALTH_TIMEZONE", "UTC")
	t.Setenv("AGENT_STORE", "sqlite")
	t.Setenv("AGENT_SQLITE_PATH", filepath.Join(dir, "agent.db"))
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	require.Equal(t, 0, run([]string{"-once"}, &out))
	var res pullsync.RunResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	require.NotNil(t, res.Summary)
	assert.Empty(t, res.Error)
	assert.Equal(t, 1, res.Summary.Inserted)
	assert.Equal(t, int32(2), ingests.Load())

	// the store was closed by the first run and is readable again
	out.Reset()
	require.Equal(t, 0, run([]string{"-last"}, &out))
	var last pullsync.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &last))
	assert.Equal(t, 1, last.Inserted)

	require.NoError(t, os.Remove(export))
	out.Reset()
	assert.Equal(t, 1, run([]string{"-once"}, &out))
	res = pullsync.RunResult{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "Health data is not available on this device", res.Error)
}

func TestRun_BadFlag(t *testing.T) {
	assert.Equal(t, 2, run([]string{"-nope"}, &bytes.Buffer{}))
}
