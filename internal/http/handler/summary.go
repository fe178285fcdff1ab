package handler

import (
	"net/http"
	"strings"

	"healthsync/internal/health"
	"healthsync/internal/summary"

	"go.uber.org/zap"
)

type SummaryHandler struct {
	Svc *summary.Service
	Log *zap.Logger
}

func timezoneParam(r *http.Request) (string, error) {
	return summary.NormalizeTimezone(r.URL.Query().Get("timezone"))
}

func (h *SummaryHandler) Daily(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r.URL.Query(), "day")
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	tz, err := timezoneParam(r)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}

	out, err := h.Svc.Daily(r.Context(), day, tz)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	writeData(w, out, map[string]any{"query": "daily_summary", "timezone": tz})
}

func (h *SummaryHandler) Range(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := dayParam(q, "from")
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	to, err := dayParam(q, "to")
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	tz, err := timezoneParam(r)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}

	out, err := h.Svc.Range(r.Context(), from, to, tz)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	writeData(w, out, map[string]any{"query": "range_summary", "timezone": tz})
}

func (h *SummaryHandler) Yesterday(w http.ResponseWriter, r *http.Request) {
	tz, err := timezoneParam(r)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	out, err := h.Svc.Yesterday(r.Context(), tz)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	writeData(w, out, map[string]any{"query": "yesterday_summary", "timezone": tz})
}

type queryReq struct {
	Intent    string  `json:"intent"`
	Day       string  `json:"day"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Timezone  *string `json:"timezone"`
	Utterance *string `json:"utterance"`
}

type queryResult struct {
	Intent    string  `json:"intent"`
	Utterance *string `json:"utterance,omitempty"`
	Summary   any     `json:"summary"`
}

// Query is the single typed entry point for assistants: one intent plus its parameters.
func (h *SummaryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryReq
	if err := decodeBody(w, r, &req); err != nil {
		fail(w, r, h.Log, err)
		return
	}
	if strings.TrimSpace(req.Intent) == "" {
		writeError(w, http.StatusBadRequest, "intent is required")
		return
	}

	tz := "UTC"
	if req.Timezone != nil {
		if strings.TrimSpace(*req.Timezone) == "" {
			writeError(w, http.StatusBadRequest, "timezone must be a non-empty string")
			return
		}
		var err error
		if tz, err = summary.NormalizeTimezone(*req.Timezone); err != nil {
			fail(w, r, h.Log, err)
			return
		}
	}

	var (
		out any
		err error
	)
	switch req.Intent {
	case "daily_summary":
		if _, err = health.ParseDayKey(req.Day); err == nil {
			out, err = h.Svc.Daily(r.Context(), req.Day, tz)
		}
	case "range_summary":
		if _, err = health.DayRange(req.From, req.To); err == nil {
			out, err = h.Svc.Range(r.Context(), req.From, req.To, tz)
		}
	case "yesterday_summary":
		out, err = h.Svc.Yesterday(r.Context(), tz)
	default:
		writeError(w, http.StatusBadRequest, "intent must be daily_summary, range_summary, or yesterday_summary")
		return
	}
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}

	writeData(w, queryResult{Intent: req.Intent, Utterance: req.Utterance, Summary: out}, map[string]any{
		"query":    "structured_health_query",
		"intent":   req.Intent,
		"timezone": tz,
	})
}
