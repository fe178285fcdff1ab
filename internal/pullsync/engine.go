package pullsync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"healthsync/internal/client"
	"healthsync/internal/device"
	"healthsync/internal/health"
	"healthsync/internal/writeback"

	"go.uber.org/zap"
)

// Uploader sends one batch to the ingestion endpoint, retrying transient
// failures itself; client.Client configured with a RetryPolicy satisfies it.
type Uploader interface {
	Ingest(ctx context.Context, deviceID string, samples []health.Sample) (client.IngestResult, error)
}

// WriteBacker runs the reverse channel after a sync.
type WriteBacker interface {
	Run(ctx context.Context) (writeback.Result, error)
}

type MetricStats struct {
	Metric        health.Metric `json:"metric"`
	Fetched       int           `json:"fetched"`
	Uploaded      int           `json:"uploaded"`
	Inserted      int           `json:"inserted"`
	Deduped       int           `json:"deduped"`
	CursorStartMs int64         `json:"cursorStartMs"`
	CursorEndMs   int64         `json:"cursorEndMs"`
	Error         string        `json:"error,omitempty"`
}

type Summary struct {
	StartedAtMs    int64            `json:"startedAtMs"`
	CompletedAtMs  int64            `json:"completedAtMs"`
	Inserted       int              `json:"inserted"`
	Deduped        int              `json:"deduped"`
	RecomputedDays []string         `json:"recomputedDays"`
	Metrics        []MetricStats    `json:"metrics"`
	WriteBack      writeback.Result `json:"writeBack"`
	WriteBackError string           `json:"writeBackError,omitempty"`
}

type RunResult struct {
	Supported  bool     `json:"supported"`
	Authorized bool     `json:"authorized"`
	Summary    *Summary `json:"summary,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type Engine struct {
	Source    device.Source
	API       Uploader
	State     *State
	WriteBack WriteBacker // optional
	Timezone  string
	Log       *zap.Logger
	Now       func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Run syncs every metric in order. A failing metric keeps its old cursor and
// does not stop the others; write-back runs last and never fails the run.
func (e *Engine) Run(ctx context.Context) RunResult {
	log := e.Log
	if log == nil {
		log = zap.NewNop()
	}

	if e.Source == nil {
		return RunResult{Error: "no device health source is configured"}
	}
	available, err := e.Source.IsAvailable(ctx)
	if err != nil || !available {
		return RunResult{Supported: true, Error: "Health data is not available on this device"}
	}
	authorized, err := e.Source.RequestReadPermission(ctx)
	if err != nil || !authorized {
		return RunResult{Supported: true, Error: "Health permissions were not granted"}
	}

	deviceID, err := e.State.DeviceID(ctx)
	if err != nil {
		return RunResult{Supported: true, Authorized: true, Error: fmt.Sprintf("device id: %v", err)}
	}

	tz := e.Timezone
	if tz == "" {
		tz = "UTC"
	}

	sum := Summary{StartedAtMs: e.now().UnixMilli(), Metrics: make([]MetricStats, 0, len(health.Metrics))}
	days := map[string]struct{}{}
	var failures []string

	for _, m := range health.Metrics {
		st, err := e.syncMetric(ctx, deviceID, m, tz, days)
		if err != nil {
			st.Error = err.Error()
			failures = append(failures, fmt.Sprintf("%s: %v", m, err))
			log.Warn("metric sync failed", zap.String("metric", string(m)), zap.Error(err))
		} else {
			log.Debug("metric synced",
				zap.String("metric", string(m)),
				zap.Int("fetched", st.Fetched),
				zap.Int("inserted", st.Inserted),
				zap.Int("deduped", st.Deduped),
			)
		}
		sum.Inserted += st.Inserted
		sum.Deduped += st.Deduped
		sum.Metrics = append(sum.Metrics, st)
	}

	sum.RecomputedDays = make([]string, 0, len(days))
	for d := range days {
		sum.RecomputedDays = append(sum.RecomputedDays, d)
	}
	sort.Strings(sum.RecomputedDays)

	if e.WriteBack != nil {
		wb, err := e.WriteBack.Run(ctx)
		sum.WriteBack = wb
		if err != nil {
			sum.WriteBackError = err.Error()
			log.Warn("write-back failed", zap.Error(err))
		}
	}

	sum.CompletedAtMs = e.now().UnixMilli()
	if err := e.State.SaveSummary(ctx, sum); err != nil {
		log.Warn("save sync summary failed", zap.Error(err))
	}

	log.Info("health sync done",
		zap.String("device_id", deviceID),
		zap.Int("inserted", sum.Inserted),
		zap.Int("deduped", sum.Deduped),
		zap.Int("recomputed_days", len(sum.RecomputedDays)),
		zap.Int("failed_metrics", len(failures)),
	)

	res := RunResult{Supported: true, Authorized: true, Summary: &sum}
	if len(failures) > 0 {
		res.Error = strings.Join(failures, "; ")
	}
	return res
}

func (e *Engine) syncMetric(ctx context.Context, deviceID string, m health.Metric, tz string, days map[string]struct{}) (MetricStats, error) {
	prev, err := e.State.Cursor(ctx, m)
	if err != nil {
		return MetricStats{Metric: m}, fmt.Errorf("read cursor: %w", err)
	}
	w := BuildWindow(prev, e.now().UnixMilli())
	st := MetricStats{Metric: m, CursorStartMs: prev, CursorEndMs: w.ToMs}

	raws, err := e.Source.FetchSamples(ctx, m, w.FromMs, w.ToMs)
	if err != nil {
		return st, fmt.Errorf("fetch samples: %w", err)
	}
	samples := Normalize(m, raws, tz)
	st.Fetched = len(samples)

	for _, batch := range chunk(samples, BatchSize) {
		res, err := e.API.Ingest(ctx, deviceID, batch)
		if err != nil {
			return st, fmt.Errorf("upload: %w", err)
		}
		st.Uploaded += len(batch)
		st.Inserted += res.Inserted
		st.Deduped += res.Deduped
		for _, d := range res.RecomputedDays {
			days[d] = struct{}{}
		}
	}

	if err := e.State.SetCursor(ctx, m, w.ToMs); err != nil {
		return st, fmt.Errorf("write cursor: %w", err)
	}
	return st, nil
}
