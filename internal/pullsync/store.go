package pullsync

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"healthsync/internal/health"
	"healthsync/internal/kvstore"

	"github.com/google/uuid"
)

const (
	cursorKeyPrefix = "health-sync-cursor:"
	lastSummaryKey  = "health-last-sync-summary"
	deviceIDKey     = "health-device-id"
	DeviceIDPrefix  = "healthsync-device-"
)

// State keeps per-metric cursors, the device id and the last run summary in
// the agent's key-value store.
type State struct {
	KV kvstore.Store
}

func CursorKey(m health.Metric) string { return cursorKeyPrefix + string(m) }

// Cursor returns the last confirmed window end for m; unreadable values count as 0.
func (s *State) Cursor(ctx context.Context, m health.Metric) (int64, error) {
	raw, err := s.KV.Get(ctx, CursorKey(m))
	if errors.Is(err, kvstore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, nil
	}
	return int64(v), nil
}

func (s *State) SetCursor(ctx context.Context, m health.Metric, endMs int64) error {
	return s.KV.Set(ctx, CursorKey(m), strconv.FormatInt(endMs, 10))
}

// DeviceID returns the stored device id, creating one on first use.
func (s *State) DeviceID(ctx context.Context) (string, error) {
	raw, err := s.KV.Get(ctx, deviceIDKey)
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		return "", err
	}
	if id := strings.TrimSpace(raw); id != "" {
		return id, nil
	}
	id := DeviceIDPrefix + uuid.NewString()
	if err := s.KV.Set(ctx, deviceIDKey, id); err != nil {
		return "", err
	}
	return id, nil
}

// LastSummary returns nil when no run has been recorded or the stored value is unreadable.
func (s *State) LastSummary(ctx context.Context) (*Summary, error) {
	raw, err := s.KV.Get(ctx, lastSummaryKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sum Summary
	if err := json.Unmarshal([]byte(raw), &sum); err != nil {
		return nil, nil
	}
	valid := sum.Metrics[:0]
	for _, m := range sum.Metrics {
		if m.Metric.Valid() {
			valid = append(valid, m)
		}
	}
	sum.Metrics = valid
	return &sum, nil
}

func (s *State) SaveSummary(ctx context.Context, sum Summary) error {
	b, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	return s.KV.Set(ctx, lastSummaryKey, string(b))
}
