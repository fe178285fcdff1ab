package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"healthsync/internal/config"
	"healthsync/internal/db"
	"healthsync/internal/http/handler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const token = "test-token"

var fixedNow = time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, bearer string) *httptest.Server {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrateAndIndexes(gdb, zap.NewNop()))

	srv := httptest.NewServer(NewRouter(Deps{
		Config: config.Config{BearerToken: bearer, PublicBaseURL: "https://api.example"},
		DB:     gdb,
		Log:    zap.NewNop(),
		Now:    func() time.Time { return fixedNow },
	}))
	t.Cleanup(func() {
		srv.Close()
		_ = sqlDB.Close()
	})
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res.StatusCode, out
}

func sample(key string, at time.Time, steps float64) map[string]any {
	return map[string]any{
		"sampleKey":   key,
		"metric":      "step_count",
		"startTimeMs": at.UnixMilli(),
		"endTimeMs":   at.Add(time.Minute).UnixMilli(),
		"valueNumber": steps,
		"unit":        "count",
		"timezone":    "UTC",
	}
}

func TestOpenAPIIsPublic(t *testing.T) {
	srv := newTestServer(t, token)
	res, err := srv.Client().Get(srv.URL + "/health/openapi.json")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var doc map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&doc))
	assert.Equal(t, "3.1.0", doc["openapi"])
	servers := doc["servers"].([]any)
	assert.Equal(t, "https://api.example", servers[0].(map[string]any)["url"])
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	srv := newTestServer(t, token)
	res, err := srv.Client().Get(srv.URL + "/health/capabilities")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	unconfigured := newTestServer(t, "")
	code, body := call(t, unconfigured, http.MethodGet, "/health/capabilities", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "API bearer token is not configured", body["error"])
}

func TestIngestAndRead(t *testing.T) {
	srv := newTestServer(t, token)

	req := map[string]any{
		"deviceId": "ios-device-1",
		"samples": []any{
			sample("s1", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), 100),
			sample("s2", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), 200),
			sample("s3", time.Date(2024, 4, 30, 10, 0, 0, 0, time.UTC), 50),
		},
	}
	code, body := call(t, srv, http.MethodPost, "/health/ingest", req)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, 3.0, body["inserted"])
	assert.Equal(t, []any{"2024-04-30", "2024-05-01"}, body["recomputedDays"])
	assert.Equal(t, float64(fixedNow.UnixMilli()), body["serverTimeMs"])

	code, body = call(t, srv, http.MethodPost, "/health/ingest", req)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0.0, body["inserted"])
	assert.Equal(t, 3.0, body["deduped"])

	code, body = call(t, srv, http.MethodGet, "/health/daily?from=2024-04-30&to=2024-05-01", nil)
	require.Equal(t, http.StatusOK, code)
	items := body["items"].([]any)
	require.Len(t, items, 2)
	steps := items[1].(map[string]any)["metrics"].(map[string]any)["step_count"].(map[string]any)
	assert.Equal(t, 300.0, steps["total"])

	code, body = call(t, srv, http.MethodGet, fmt.Sprintf("/health/raw?metric=step_count&fromMs=0&toMs=%d&limit=2", fixedNow.UnixMilli()), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 2)
	assert.NotNil(t, body["nextCursor"])

	code, body = call(t, srv, http.MethodGet, "/health/summary/daily?day=2024-05-01", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"query": "daily_summary", "timezone": "UTC"}, body["meta"])
	activity := body["data"].(map[string]any)["metrics"].(map[string]any)["activity"].(map[string]any)
	assert.Equal(t, 300.0, activity["stepCount"])

	code, body = call(t, srv, http.MethodGet, "/health/summary/yesterday?timezone=UTC", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "2024-05-01", body["data"].(map[string]any)["dayKey"])

	code, body = call(t, srv, http.MethodGet, "/health/summary/range?from=2024-04-29&to=2024-05-01", nil)
	require.Equal(t, http.StatusOK, code)
	totals := body["data"].(map[string]any)["totals"].(map[string]any)
	assert.Equal(t, 3.0, totals["days"])
	assert.Equal(t, 350.0, totals["totalSteps"])
}

func TestIngestErrors(t *testing.T) {
	srv := newTestServer(t, token)

	code, body := call(t, srv, http.MethodPost, "/health/ingest", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid JSON body", body["error"])

	code, body = call(t, srv, http.MethodPost, "/health/ingest", map[string]any{"samples": []any{}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "deviceId is required", body["error"])

	code, body = call(t, srv, http.MethodPost, "/health/ingest", map[string]any{"deviceId": "d", "samples": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "samples must be an array", body["error"])

	big := make([]any, 501)
	for i := range big {
		big[i] = sample(fmt.Sprintf("k%d", i), fixedNow, 1)
	}
	code, _ = call(t, srv, http.MethodPost, "/health/ingest", map[string]any{"deviceId": "d", "samples": big})
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)

	// oversized batches are rejected on size before any sample is decoded
	mistyped := make([]any, 501)
	for i := range mistyped {
		mistyped[i] = map[string]any{"startTimeMs": "not-a-number"}
	}
	code, body = call(t, srv, http.MethodPost, "/health/ingest", map[string]any{"deviceId": "d", "samples": mistyped})
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.Contains(t, body["error"], "Batch exceeds maximum size of 500")

	code, body = call(t, srv, http.MethodPost, "/health/ingest", map[string]any{"deviceId": "d", "samples": mistyped[:1]})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Each sample must be an object with typed fields", body["error"])

	huge := `{"deviceId":"d","samples":["` + strings.Repeat("x", handler.MaxBodyBytes) + `"]}`
	code, body = call(t, srv, http.MethodPost, "/health/ingest", huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.Equal(t, "Request body too large", body["error"])

	bad := sample("bad key!", fixedNow, 1)
	code, _ = call(t, srv, http.MethodPost, "/health/ingest", map[string]any{"deviceId": "d", "samples": []any{bad}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, srv, http.MethodGet, "/health/daily?from=2024-05-02&to=2024-05-01", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = call(t, srv, http.MethodGet, "/health/raw?metric=step_count&fromMs=0&toMs=1&limit=501", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "limit must be <= 500", body["error"])

	code, _ = call(t, srv, http.MethodGet, "/health/raw?metric=pulse&fromMs=0&toMs=1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStructuredQuery(t *testing.T) {
	srv := newTestServer(t, token)

	code, body := call(t, srv, http.MethodPost, "/health/query", map[string]any{
		"intent":    "range_summary",
		"from":      "2024-05-01",
		"to":        "2024-05-02",
		"timezone":  "Europe/Berlin",
		"utterance": "how was my week",
	})
	require.Equal(t, http.StatusOK, code, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, "how was my week", data["utterance"])
	assert.Equal(t, "range_summary", data["intent"])
	assert.Equal(t, "structured_health_query", body["meta"].(map[string]any)["query"])
	assert.Equal(t, "Europe/Berlin", body["meta"].(map[string]any)["timezone"])

	code, body = call(t, srv, http.MethodPost, "/health/query", map[string]any{
		"intent": "range_summary", "from": "0001-01-01", "to": "9999-12-31",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "range must span at most 366 days", body["error"])

	code, body = call(t, srv, http.MethodGet, "/health/summary/range?from=0001-01-01&to=9999-12-31", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "range must span at most 366 days", body["error"])

	code, body = call(t, srv, http.MethodPost, "/health/query", map[string]any{"intent": "weather"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.True(t, strings.HasPrefix(body["error"].(string), "intent must be"))

	code, _ = call(t, srv, http.MethodPost, "/health/query", map[string]any{"intent": "daily_summary", "day": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, srv, http.MethodPost, "/health/query", map[string]any{"intent": "yesterday_summary", "timezone": ""})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = call(t, srv, http.MethodGet, "/health/capabilities", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2.0, body["meta"].(map[string]any)["version"])
}

func TestWriteIntentFlow(t *testing.T) {
	srv := newTestServer(t, token)

	intent := map[string]any{
		"externalId":  "meal-42",
		"metric":      "dietary_energy_kcal",
		"startTimeMs": fixedNow.Add(-time.Hour).UnixMilli(),
		"endTimeMs":   fixedNow.UnixMilli(),
		"valueNumber": 640,
		"unit":        "kcal",
		"timezone":    "UTC",
		"tags":        []string{"dinner"},
	}
	code, body := call(t, srv, http.MethodPost, "/health/write-intents", intent)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["data"].(map[string]any)["created"])

	code, _ = call(t, srv, http.MethodGet, "/health/write-intents/pending", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = call(t, srv, http.MethodGet, "/health/write-intents/pending?limit=10", nil)
	require.Equal(t, http.StatusOK, code)
	page := body["data"].(map[string]any)
	assert.Len(t, page["items"], 1)
	assert.Nil(t, page["nextCursor"])

	code, body = call(t, srv, http.MethodPost, "/health/write-intents/ack", map[string]any{
		"externalId":    "meal-42",
		"status":        "applied",
		"healthkitUuid": "HK-9",
	})
	require.Equal(t, http.StatusOK, code)
	applied := body["data"].(map[string]any)["intent"].(map[string]any)
	assert.Equal(t, "applied", applied["status"])
	assert.Equal(t, "HK-9", applied["healthkitUuid"])

	code, body = call(t, srv, http.MethodGet, "/health/write-intents?status=applied", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"].(map[string]any)["items"], 1)

	code, _ = call(t, srv, http.MethodPost, "/health/write-intents/ack", map[string]any{"externalId": "nope", "status": "applied"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, srv, http.MethodPost, "/health/write-intents/ack", map[string]any{"externalId": "meal-42", "status": "done"})
	assert.Equal(t, http.StatusBadRequest, code)

	intent["metric"] = "step_count"
	code, _ = call(t, srv, http.MethodPost, "/health/write-intents", intent)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLiveEndpoint(t *testing.T) {
	srv := newTestServer(t, token)
	res, err := srv.Client().Get(srv.URL + "/live")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
