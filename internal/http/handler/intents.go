package handler

import (
	"net/http"
	"time"

	"healthsync/internal/health"
	"healthsync/internal/intents"

	"go.uber.org/zap"
)

type IntentHandler struct {
	Repo *intents.Repo
	Log  *zap.Logger
	Now  func() time.Time
}

func (h *IntentHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *IntentHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var p health.WriteIntentPayload
	if err := decodeBody(w, r, &p); err != nil {
		fail(w, r, h.Log, err)
		return
	}
	res, err := h.Repo.Upsert(r.Context(), p)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	writeData(w, res, map[string]any{"query": "upsert_write_intent"})
}

func (h *IntentHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q, "limit", nil, i64(1), i64(health.MaxIntentPageSize))
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	page, err := h.Repo.ListPending(r.Context(), int(limit), q.Get("cursor"), h.now().UnixMilli())
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	writeData(w, page, map[string]any{"query": "pending_write_intents"})
}

func (h *IntentHandler) Ack(w http.ResponseWriter, r *http.Request) {
	var req health.AckRequest
	if err := decodeBody(w, r, &req); err != nil {
		fail(w, r, h.Log, err)
		return
	}
	in, err := h.Repo.Ack(r.Context(), req)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	writeData(w, map[string]any{"intent": in}, map[string]any{"query": "ack_write_intent"})
}

// List is the operator view of intents filtered by status.
func (h *IntentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q, "limit", i64(50), i64(1), i64(health.MaxIntentPageSize))
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	status := health.IntentStatus(q.Get("status"))
	items, err := h.Repo.ListByStatus(r.Context(), status, int(limit))
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	meta := map[string]any{"query": "write_intent_statuses"}
	if status != "" {
		meta["status"] = string(status)
	}
	writeData(w, map[string]any{"items": items}, meta)
}
