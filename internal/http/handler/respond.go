package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"healthsync/internal/health"
	"healthsync/internal/ingest"
	"healthsync/internal/intents"

	"go.uber.org/zap"
)

// MaxBodyBytes bounds any JSON request body; a full ingest batch of
// MaxIngestBatchSize samples fits well inside it.
const MaxBodyBytes = 4 << 20

var errBodyTooLarge = errors.New("Request body too large")

type envelope struct {
	Data any            `json:"data"`
	Meta map[string]any `json:"meta"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, data any, meta map[string]any) {
	writeJSON(w, http.StatusOK, envelope{Data: data, Meta: meta})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps domain errors to statuses. Anything unrecognized is logged and
// reported without detail.
func fail(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	switch {
	case health.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ingest.ErrBatchTooLarge), errors.Is(err, errBodyTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, intents.ErrNotFound):
		writeError(w, http.StatusNotFound, "Intent not found")
	default:
		if log != nil {
			log.Error("request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
		}
		writeError(w, http.StatusInternalServerError, "server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return errBodyTooLarge
		}
		return health.Invalidf("Invalid JSON body")
	}
	return nil
}

// intParam reads an integer query parameter. def is used when the parameter
// is absent; a nil def makes it required.
func intParam(q url.Values, name string, def *int64, lo, hi *int64) (int64, error) {
	raw := q.Get(name)
	if raw == "" {
		if def == nil {
			return 0, health.Invalidf("%s is required", name)
		}
		return *def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, health.Invalidf("%s must be an integer", name)
	}
	if lo != nil && v < *lo {
		return 0, health.Invalidf("%s must be >= %d", name, *lo)
	}
	if hi != nil && v > *hi {
		return 0, health.Invalidf("%s must be <= %d", name, *hi)
	}
	return v, nil
}

func i64(v int64) *int64 { return &v }

func dayParam(q url.Values, name string) (string, error) {
	v := q.Get(name)
	if v == "" {
		return "", health.Invalidf("%s is required", name)
	}
	if _, err := health.ParseDayKey(v); err != nil {
		return "", err
	}
	return v, nil
}
