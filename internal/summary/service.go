package summary

import (
	"context"
	"strings"
	"time"

	"healthsync/internal/health"
)

// RollupReader is the storage the summaries read from; ingest.Service satisfies it.
type RollupReader interface {
	ListDaily(ctx context.Context, from, to string) ([]health.DailyRollup, error)
}

type Service struct {
	Rollups RollupReader
	Now     func() time.Time
}

func (s *Service) nowMs() int64 {
	if s.Now != nil {
		return s.Now().UnixMilli()
	}
	return time.Now().UnixMilli()
}

// NormalizeTimezone defaults a blank timezone to UTC and checks that it loads.
func NormalizeTimezone(tz string) (string, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return "UTC", nil
	}
	if _, err := health.LoadLocation(tz); err != nil {
		return "", err
	}
	return tz, nil
}

func (s *Service) Daily(ctx context.Context, day, timezone string) (Daily, error) {
	if _, err := health.ParseDayKey(day); err != nil {
		return Daily{}, err
	}
	tz, err := NormalizeTimezone(timezone)
	if err != nil {
		return Daily{}, err
	}
	return s.day(ctx, day, tz, s.nowMs())
}

func (s *Service) Range(ctx context.Context, from, to, timezone string) (Range, error) {
	tz, err := NormalizeTimezone(timezone)
	if err != nil {
		return Range{}, err
	}
	if _, err := health.DayRange(from, to); err != nil {
		return Range{}, err
	}
	rows, err := s.Rollups.ListDaily(ctx, from, to)
	if err != nil {
		return Range{}, err
	}
	return SummarizeRange(rows, from, to, tz, s.nowMs())
}

func (s *Service) Yesterday(ctx context.Context, timezone string) (Daily, error) {
	tz, err := NormalizeTimezone(timezone)
	if err != nil {
		return Daily{}, err
	}
	now := s.nowMs()
	day, err := YesterdayDayKey(tz, now)
	if err != nil {
		return Daily{}, err
	}
	return s.day(ctx, day, tz, now)
}

func (s *Service) day(ctx context.Context, day, tz string, nowMs int64) (Daily, error) {
	rows, err := s.Rollups.ListDaily(ctx, day, day)
	if err != nil {
		return Daily{}, err
	}
	r := health.EmptyRollup(day, tz, nowMs)
	if len(rows) > 0 {
		r = rows[0]
	}
	return SummarizeDay(r), nil
}
