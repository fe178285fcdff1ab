package handler

import (
	"net/http"
	"strings"
)

type MetaHandler struct {
	PublicBaseURL string
}

func (h *MetaHandler) Capabilities(w http.ResponseWriter, r *http.Request) {
	tzInput := "IANA timezone (optional, default UTC)"
	caps := map[string]any{
		"query": map[string]any{
			"name":        "structured_health_query",
			"endpoint":    "/health/query",
			"description": "Single intent-based endpoint for assistants. Send an intent with typed parameters.",
			"intents": []map[string]any{
				{"name": "daily_summary", "required": []string{"day"}},
				{"name": "range_summary", "required": []string{"from", "to"}},
				{"name": "yesterday_summary", "required": []string{}},
			},
		},
		"summaries": []map[string]any{
			{
				"name":        "daily_summary",
				"endpoint":    "/health/summary/daily",
				"description": "Deterministic summary for a single day.",
				"input":       map[string]string{"day": "YYYY-MM-DD", "timezone": tzInput},
			},
			{
				"name":        "range_summary",
				"endpoint":    "/health/summary/range",
				"description": "Per-day summaries plus totals for an inclusive range.",
				"input":       map[string]string{"from": "YYYY-MM-DD", "to": "YYYY-MM-DD", "timezone": tzInput},
			},
			{
				"name":        "yesterday_summary",
				"endpoint":    "/health/summary/yesterday",
				"description": "Summary of the previous calendar day in the given timezone.",
				"input":       map[string]string{"timezone": tzInput},
			},
		},
		"writes": []map[string]any{
			{"name": "queue_calorie_write", "endpoint": "/health/write-intents", "description": "Queue an idempotent calorie write keyed by externalId."},
			{"name": "list_pending_write_intents", "endpoint": "/health/write-intents/pending", "description": "List due intents for the device to apply."},
			{"name": "ack_write_intent", "endpoint": "/health/write-intents/ack", "description": "Report an apply outcome: applied, failed or skipped."},
		},
	}
	writeData(w, caps, map[string]any{"query": "capabilities", "version": 2})
}

func (h *MetaHandler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, OpenAPIDocument(h.PublicBaseURL))
}

type apiParam struct {
	name     string
	typ      string
	required bool
}

type apiOp struct {
	path, method, tag, summary, id string
	params                         []apiParam
	body                           string
	response                       string
}

var apiOps = []apiOp{
	{path: "/health/ingest", method: "post", tag: "ingest", summary: "Store raw health samples idempotently", id: "healthIngest", body: "IngestRequest", response: "IngestResponse"},
	{path: "/health/daily", method: "get", tag: "ingest", summary: "List daily rollups", id: "healthDaily",
		params: []apiParam{{"from", "string", true}, {"to", "string", true}}, response: "DailyList"},
	{path: "/health/raw", method: "get", tag: "ingest", summary: "Page through raw samples of one metric", id: "healthRaw",
		params: []apiParam{{"metric", "string", true}, {"fromMs", "integer", true}, {"toMs", "integer", true}, {"limit", "integer", false}, {"cursor", "string", false}}, response: "RawPage"},
	{path: "/health/summary/daily", method: "get", tag: "summary", summary: "Summary for one day", id: "healthSummaryDaily",
		params: []apiParam{{"day", "string", true}, {"timezone", "string", false}}, response: "DailySummaryEnvelope"},
	{path: "/health/summary/range", method: "get", tag: "summary", summary: "Summaries for a day range", id: "healthSummaryRange",
		params: []apiParam{{"from", "string", true}, {"to", "string", true}, {"timezone", "string", false}}, response: "RangeSummaryEnvelope"},
	{path: "/health/summary/yesterday", method: "get", tag: "summary", summary: "Summary for yesterday", id: "healthSummaryYesterday",
		params: []apiParam{{"timezone", "string", false}}, response: "DailySummaryEnvelope"},
	{path: "/health/query", method: "post", tag: "summary", summary: "Structured intent query", id: "healthQuery", body: "StructuredQuery", response: "Envelope"},
	{path: "/health/write-intents", method: "post", tag: "write-intents", summary: "Upsert a write intent by externalId", id: "healthWriteIntentUpsert", body: "WriteIntentPayload", response: "Envelope"},
	{path: "/health/write-intents", method: "get", tag: "write-intents", summary: "List write intents by status", id: "healthWriteIntentList",
		params: []apiParam{{"status", "string", false}, {"limit", "integer", false}}, response: "Envelope"},
	{path: "/health/write-intents/pending", method: "get", tag: "write-intents", summary: "List due pending write intents", id: "healthWriteIntentPending",
		params: []apiParam{{"limit", "integer", true}, {"cursor", "string", false}}, response: "Envelope"},
	{path: "/health/write-intents/ack", method: "post", tag: "write-intents", summary: "Acknowledge a write intent", id: "healthWriteIntentAck", body: "AckRequest", response: "Envelope"},
	{path: "/health/capabilities", method: "get", tag: "meta", summary: "Capabilities for automated clients", id: "healthCapabilities", response: "Envelope"},
}

func ref(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

func jsonContent(schema any) map[string]any {
	return map[string]any{"application/json": map[string]any{"schema": schema}}
}

// OpenAPIDocument describes the /health API. The document itself is served unauthenticated.
func OpenAPIDocument(baseURL string) map[string]any {
	server := strings.TrimSpace(baseURL)
	if server == "" {
		server = "http://localhost:8080"
	}

	paths := map[string]map[string]any{}
	for _, op := range apiOps {
		o := map[string]any{
			"tags":        []string{op.tag},
			"summary":     op.summary,
			"operationId": op.id,
			"responses": map[string]any{
				"200": map[string]any{"description": "OK", "content": jsonContent(ref(op.response))},
				"400": map[string]any{"description": "Validation error", "content": jsonContent(ref("Error"))},
				"401": map[string]any{"description": "Missing or malformed bearer token", "content": jsonContent(ref("Error"))},
				"403": map[string]any{"description": "Invalid bearer token", "content": jsonContent(ref("Error"))},
			},
		}
		if len(op.params) > 0 {
			ps := make([]map[string]any, 0, len(op.params))
			for _, p := range op.params {
				ps = append(ps, map[string]any{
					"name":     p.name,
					"in":       "query",
					"required": p.required,
					"schema":   map[string]string{"type": p.typ},
				})
			}
			o["parameters"] = ps
		}
		if op.body != "" {
			o["requestBody"] = map[string]any{"required": true, "content": jsonContent(ref(op.body))}
		}
		if paths[op.path] == nil {
			paths[op.path] = map[string]any{}
		}
		paths[op.path][op.method] = o
	}
	paths["/health/openapi.json"] = map[string]any{
		"get": map[string]any{
			"tags":        []string{"meta"},
			"summary":     "This document",
			"operationId": "healthOpenApi",
			"security":    []any{},
			"responses":   map[string]any{"200": map[string]any{"description": "OpenAPI document"}},
		},
	}

	str := map[string]string{"type": "string"}
	integer := map[string]string{"type": "integer"}
	number := map[string]string{"type": "number"}
	obj := func(required []string, props map[string]any) map[string]any {
		return map[string]any{"type": "object", "required": required, "properties": props}
	}
	metrics := []string{"step_count", "active_energy_kcal", "dietary_energy_kcal", "resting_heart_rate_bpm", "hrv_sdnn_ms", "body_mass_kg", "body_fat_percent", "sleep_segment"}

	schemas := map[string]any{
		"Error":    obj([]string{"error"}, map[string]any{"error": str}),
		"Envelope": obj([]string{"data", "meta"}, map[string]any{"data": map[string]any{}, "meta": map[string]string{"type": "object"}}),
		"Sample": obj([]string{"sampleKey", "metric", "startTimeMs", "endTimeMs", "unit", "timezone"}, map[string]any{
			"sampleKey":      map[string]any{"type": "string", "pattern": `^[A-Za-z0-9._:|\-]{1,200}$`},
			"metric":         map[string]any{"type": "string", "enum": metrics},
			"startTimeMs":    integer,
			"endTimeMs":      integer,
			"valueNumber":    number,
			"categoryValue":  map[string]any{"type": "string", "enum": []string{"inBed", "asleep", "awake", "asleepREM", "asleepCore", "asleepDeep"}},
			"unit":           str,
			"sourceName":     str,
			"sourceBundleId": str,
			"timezone":       str,
		}),
		"IngestRequest": obj([]string{"deviceId", "samples"}, map[string]any{
			"deviceId": str,
			"samples":  map[string]any{"type": "array", "maxItems": 500, "items": ref("Sample")},
		}),
		"IngestResponse": obj([]string{"inserted", "deduped", "recomputedDays", "serverTimeMs"}, map[string]any{
			"inserted":       integer,
			"deduped":        integer,
			"recomputedDays": map[string]any{"type": "array", "items": str},
			"serverTimeMs":   integer,
		}),
		"DailyList": obj([]string{"items"}, map[string]any{"items": map[string]any{"type": "array", "items": map[string]string{"type": "object"}}}),
		"RawPage": obj([]string{"items", "nextCursor"}, map[string]any{
			"items":      map[string]any{"type": "array", "items": ref("Sample")},
			"nextCursor": map[string]any{"type": []string{"string", "null"}},
		}),
		"DailySummaryEnvelope": ref("Envelope"),
		"RangeSummaryEnvelope": ref("Envelope"),
		"StructuredQuery": obj([]string{"intent"}, map[string]any{
			"intent":    map[string]any{"type": "string", "enum": []string{"daily_summary", "range_summary", "yesterday_summary"}},
			"day":       str,
			"from":      str,
			"to":        str,
			"timezone":  str,
			"utterance": str,
		}),
		"WriteIntentPayload": obj([]string{"externalId", "metric", "startTimeMs", "endTimeMs", "valueNumber", "unit", "timezone"}, map[string]any{
			"externalId":     str,
			"metric":         map[string]any{"type": "string", "enum": []string{"active_energy_kcal", "dietary_energy_kcal"}},
			"startTimeMs":    integer,
			"endTimeMs":      integer,
			"valueNumber":    number,
			"unit":           str,
			"timezone":       str,
			"note":           str,
			"sourceName":     str,
			"sourceBundleId": str,
			"tags":           map[string]any{"type": "array", "items": str},
		}),
		"AckRequest": obj([]string{"externalId", "status"}, map[string]any{
			"externalId":    str,
			"status":        map[string]any{"type": "string", "enum": []string{"applied", "failed", "skipped"}},
			"appliedAtMs":   integer,
			"healthkitUuid": str,
			"errorCode":     str,
			"errorMessage":  str,
		}),
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":       "healthsync API",
			"summary":     "Health sample ingestion, deterministic summaries and a device write-back queue.",
			"version":     "2.0.0",
			"description": "All routes except this document require a static bearer token.",
		},
		"servers":  []map[string]string{{"url": server}},
		"security": []map[string][]string{{"bearerAuth": {}}},
		"tags": []map[string]string{
			{"name": "ingest", "description": "Raw ingest and raw/daily reads."},
			{"name": "summary", "description": "Deterministic summaries."},
			{"name": "write-intents", "description": "Device write-back queue."},
			{"name": "meta", "description": "Discovery."},
		},
		"paths": paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"bearerAuth": map[string]string{"type": "http", "scheme": "bearer"},
			},
			"schemas": schemas,
		},
	}
}
