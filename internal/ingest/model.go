package ingest

import (
	"fmt"

	"healthsync/internal/health"

	"gorm.io/gorm"
)

// RawSample is append-only. SampleKey is the idempotence key.
type RawSample struct {
	ID             uint64             `gorm:"primaryKey"`
	SampleKey      string             `gorm:"uniqueIndex;not null"`
	DeviceID       string             `gorm:"not null"`
	Metric         health.Metric      `gorm:"type:text;not null"`
	StartTimeMs    int64              `gorm:"not null"`
	EndTimeMs      int64              `gorm:"not null"`
	ValueNumber    *float64           `gorm:"type:double precision"`
	CategoryValue  *health.SleepStage `gorm:"type:text"`
	Unit           string             `gorm:"not null"`
	SourceName     *string            `gorm:"type:text"`
	SourceBundleID *string            `gorm:"type:text"`
	Timezone       string             `gorm:"not null"`
	DayKey         string             `gorm:"not null"`
	IngestedAtMs   int64              `gorm:"not null"`
}

func (RawSample) TableName() string { return "health_raw_samples" }

func newRawSample(deviceID string, p health.PreparedSample, ingestedAtMs int64) RawSample {
	return RawSample{
		SampleKey:      p.SampleKey,
		DeviceID:       deviceID,
		Metric:         p.Metric,
		StartTimeMs:    p.StartTimeMs,
		EndTimeMs:      p.EndTimeMs,
		ValueNumber:    p.ValueNumber,
		CategoryValue:  p.CategoryValue,
		Unit:           p.Unit,
		SourceName:     optional(p.SourceName),
		SourceBundleID: optional(p.SourceBundleID),
		Timezone:       p.Timezone,
		DayKey:         p.DayKey,
		IngestedAtMs:   ingestedAtMs,
	}
}

func (r RawSample) prepared() health.PreparedSample {
	return health.PreparedSample{
		Sample: health.Sample{
			SampleKey:      r.SampleKey,
			Metric:         r.Metric,
			StartTimeMs:    r.StartTimeMs,
			EndTimeMs:      r.EndTimeMs,
			ValueNumber:    r.ValueNumber,
			CategoryValue:  r.CategoryValue,
			Unit:           r.Unit,
			SourceName:     deref(r.SourceName),
			SourceBundleID: deref(r.SourceBundleID),
			Timezone:       r.Timezone,
		},
		DayKey: r.DayKey,
	}
}

// DailyMetric stores one rollup per day_key (unique index created in Migrate).
type DailyMetric struct {
	ID                 uint64 `gorm:"primaryKey"`
	health.DailyRollup `gorm:"embedded"`
}

func (DailyMetric) TableName() string { return "health_daily_metrics" }

func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&RawSample{}, &DailyMetric{}); err != nil {
		return err
	}

	stmts := []string{
		`create unique index if not exists uq_daily_metrics_day on health_daily_metrics(day_key);`,
		`create index if not exists idx_raw_metric_start on health_raw_samples(metric, start_time_ms, id);`,
		`create index if not exists idx_raw_day_metric on health_raw_samples(day_key, metric);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
