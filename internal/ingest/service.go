package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"healthsync/internal/health"
	"healthsync/internal/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrBatchTooLarge = errors.New("batch too large")

// BatchTooLarge wraps ErrBatchTooLarge with the client-facing message.
func BatchTooLarge() error {
	return fmt.Errorf("%w: Batch exceeds maximum size of %d", ErrBatchTooLarge, health.MaxIngestBatchSize)
}

type Service struct {
	DB  *gorm.DB
	Log *zap.Logger
	Now func() time.Time
}

type Result struct {
	Inserted       int      `json:"inserted"`
	Deduped        int      `json:"deduped"`
	RecomputedDays []string `json:"recomputedDays"`
	ServerTimeMs   int64    `json:"serverTimeMs"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) log() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

// Ingest stores every sample whose key is not yet known, then rebuilds the
// rollup of each day that received a new sample. One invalid sample rejects
// the whole batch before anything is written.
func (s *Service) Ingest(ctx context.Context, deviceID string, samples []health.Sample) (Result, error) {
	if strings.TrimSpace(deviceID) == "" {
		return Result{}, health.Invalidf("deviceId is required")
	}
	if len(samples) > health.MaxIngestBatchSize {
		return Result{}, BatchTooLarge()
	}

	prepared := make([]health.PreparedSample, 0, len(samples))
	for i, smp := range samples {
		p, err := health.Prepare(smp)
		if err != nil {
			return Result{}, fmt.Errorf("samples[%d]: %w", i, err)
		}
		prepared = append(prepared, p)
	}

	nowMs := s.now().UnixMilli()
	var inserted, deduped int
	var days []string

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected := map[string]struct{}{}

		for _, p := range prepared {
			row := newRawSample(deviceID, p, nowMs)
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "sample_key"}},
				DoNothing: true,
			}).Create(&row)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				deduped++
				continue
			}
			inserted++
			affected[p.DayKey] = struct{}{}
		}

		days = make([]string, 0, len(affected))
		for d := range affected {
			days = append(days, d)
		}
		sort.Strings(days)

		if err := lockDays(tx, days); err != nil {
			return fmt.Errorf("lock days: %w", err)
		}
		// recompute after all inserts so each rollup sees the full raw set
		for _, d := range days {
			if err := recomputeDay(tx, d, nowMs); err != nil {
				return fmt.Errorf("recompute %s: %w", d, err)
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	metrics.SamplesInserted.Add(float64(inserted))
	metrics.SamplesDeduped.Add(float64(deduped))
	s.log().Info("ingest",
		zap.String("device_id", deviceID),
		zap.Int("inserted", inserted),
		zap.Int("deduped", deduped),
		zap.Strings("recomputed_days", days),
	)

	return Result{
		Inserted:       inserted,
		Deduped:        deduped,
		RecomputedDays: days,
		ServerTimeMs:   nowMs,
	}, nil
}

const dayLockPrefix = "health-day:"

// lockDays takes a transaction-scoped advisory lock per day so concurrent
// ingests touching the same day rebuild its rollup one after another, each
// reading the raw rows the other committed. days must be sorted. SQLite
// already admits a single writer at a time.
func lockDays(tx *gorm.DB, days []string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	for _, d := range days {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", dayLockPrefix+d).Error; err != nil {
			return err
		}
	}
	return nil
}

func recomputeDay(tx *gorm.DB, day string, nowMs int64) error {
	var rows []RawSample
	if err := tx.Where("day_key = ?", day).
		Order("metric asc, start_time_ms asc, sample_key asc").
		Find(&rows).Error; err != nil {
		return err
	}

	if len(rows) == 0 {
		if err := tx.Where("day_key = ?", day).Delete(&DailyMetric{}).Error; err != nil {
			return err
		}
		metrics.RollupsDeleted.Inc()
		return nil
	}

	samples := make([]health.PreparedSample, len(rows))
	for i, r := range rows {
		samples[i] = r.prepared()
	}

	row := DailyMetric{DailyRollup: health.BuildDailyRollup(day, samples[0].Timezone, samples, nowMs)}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day_key"}},
		UpdateAll: true,
	}).Create(&row).Error; err != nil {
		return err
	}
	metrics.RollupsRecomputed.Inc()
	return nil
}

// ListDaily returns stored rollups with from <= dayKey <= to, ascending.
func (s *Service) ListDaily(ctx context.Context, from, to string) ([]health.DailyRollup, error) {
	start, err := health.ParseDayKey(from)
	if err != nil {
		return nil, err
	}
	end, err := health.ParseDayKey(to)
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, health.Invalidf("from must be <= to")
	}

	var rows []DailyMetric
	if err := s.DB.WithContext(ctx).
		Where("day_key >= ? AND day_key <= ?", from, to).
		Order("day_key asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]health.DailyRollup, len(rows))
	for i, r := range rows {
		out[i] = r.DailyRollup
	}
	return out, nil
}

// GetDaily returns the rollup for one day, or nil when none is stored.
func (s *Service) GetDaily(ctx context.Context, day string) (*health.DailyRollup, error) {
	rows, err := s.ListDaily(ctx, day, day)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

type RawQuery struct {
	Metric health.Metric
	FromMs int64
	ToMs   int64
	Limit  int
	Cursor string
}

type RawItem struct {
	health.PreparedSample
	IngestedAtMs int64  `json:"ingestedAtMs"`
	DeviceID     string `json:"deviceId"`
}

type RawPage struct {
	Items      []RawItem `json:"items"`
	NextCursor *string   `json:"nextCursor"`
}

// ListRaw pages through one metric's samples in ascending start time. The
// cursor is opaque to callers and encodes the last (start_time_ms, id) seen.
func (s *Service) ListRaw(ctx context.Context, q RawQuery) (RawPage, error) {
	if !q.Metric.Valid() {
		return RawPage{}, health.Invalidf("metric must be a valid HealthMetric")
	}
	if q.FromMs > q.ToMs {
		return RawPage{}, health.Invalidf("fromMs must be <= toMs")
	}
	if q.Limit < 1 || q.Limit > health.MaxRawPageSize {
		return RawPage{}, health.Invalidf("limit must be between 1 and %d", health.MaxRawPageSize)
	}

	db := s.DB.WithContext(ctx).
		Where("metric = ? AND start_time_ms >= ? AND start_time_ms <= ?", q.Metric, q.FromMs, q.ToMs)
	if q.Cursor != "" {
		start, id, err := decodeCursor(q.Cursor)
		if err != nil {
			return RawPage{}, err
		}
		db = db.Where("(start_time_ms > ? OR (start_time_ms = ? AND id > ?))", start, start, id)
	}

	var rows []RawSample
	if err := db.Order("start_time_ms asc, id asc").Limit(q.Limit + 1).Find(&rows).Error; err != nil {
		return RawPage{}, err
	}

	page := RawPage{Items: make([]RawItem, 0, min(len(rows), q.Limit))}
	if len(rows) > q.Limit {
		rows = rows[:q.Limit]
		last := rows[len(rows)-1]
		c := encodeCursor(last.StartTimeMs, last.ID)
		page.NextCursor = &c
	}
	for _, r := range rows {
		page.Items = append(page.Items, RawItem{
			PreparedSample: r.prepared(),
			IngestedAtMs:   r.IngestedAtMs,
			DeviceID:       r.DeviceID,
		})
	}
	return page, nil
}

func encodeCursor(startMs int64, id uint64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("%d:%d", startMs, id)))
}

func decodeCursor(c string) (int64, uint64, error) {
	b, err := base64.RawURLEncoding.DecodeString(c)
	if err != nil {
		return 0, 0, health.Invalidf("invalid cursor")
	}
	startRaw, idRaw, ok := strings.Cut(string(b), ":")
	if !ok {
		return 0, 0, health.Invalidf("invalid cursor")
	}
	start, err := strconv.ParseInt(startRaw, 10, 64)
	if err != nil {
		return 0, 0, health.Invalidf("invalid cursor")
	}
	id, err := strconv.ParseUint(idRaw, 10, 64)
	if err != nil {
		return 0, 0, health.Invalidf("invalid cursor")
	}
	return start, id, nil
}
