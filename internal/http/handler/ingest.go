package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"healthsync/internal/health"
	"healthsync/internal/ingest"

	"go.uber.org/zap"
)

type IngestHandler struct {
	Svc *ingest.Service
	Log *zap.Logger
}

type ingestReq struct {
	DeviceID string          `json:"deviceId"`
	Samples  json.RawMessage `json:"samples"`
}

func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestReq
	if err := decodeBody(w, r, &req); err != nil {
		fail(w, r, h.Log, err)
		return
	}
	if strings.TrimSpace(req.DeviceID) == "" {
		writeError(w, http.StatusBadRequest, "deviceId is required")
		return
	}
	raw := bytes.TrimSpace(req.Samples)
	if len(raw) == 0 || raw[0] != '[' {
		writeError(w, http.StatusBadRequest, "samples must be an array")
		return
	}
	// size first so an oversized batch is 413 whatever its contents
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		writeError(w, http.StatusBadRequest, "samples must be an array")
		return
	}
	if len(items) > health.MaxIngestBatchSize {
		fail(w, r, h.Log, ingest.BatchTooLarge())
		return
	}
	samples := make([]health.Sample, len(items))
	for i, item := range items {
		if err := json.Unmarshal(item, &samples[i]); err != nil {
			writeError(w, http.StatusBadRequest, "Each sample must be an object with typed fields")
			return
		}
	}

	res, err := h.Svc.Ingest(r.Context(), req.DeviceID, samples)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *IngestHandler) Daily(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("from") == "" || q.Get("to") == "" {
		writeError(w, http.StatusBadRequest, "from and to query parameters are required")
		return
	}
	rows, err := h.Svc.ListDaily(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}

	items := make([]health.DailyView, len(rows))
	for i, row := range rows {
		items[i] = row.View()
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *IngestHandler) Raw(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	metric := health.Metric(q.Get("metric"))
	if !metric.Valid() {
		writeError(w, http.StatusBadRequest, "metric must be a valid HealthMetric")
		return
	}
	fromMs, err := intParam(q, "fromMs", nil, nil, nil)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	toMs, err := intParam(q, "toMs", nil, nil, nil)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	limit, err := intParam(q, "limit", i64(health.DefaultRawPageSize), i64(1), i64(health.MaxRawPageSize))
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}

	page, err := h.Svc.ListRaw(r.Context(), ingest.RawQuery{
		Metric: metric,
		FromMs: fromMs,
		ToMs:   toMs,
		Limit:  int(limit),
		Cursor: q.Get("cursor"),
	})
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
