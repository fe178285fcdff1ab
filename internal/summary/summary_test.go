package summary

import (
	"context"
	"testing"
	"time"

	"healthsync/internal/health"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hourMs = int64(time.Hour / time.Millisecond)

func codes(d Daily) []string {
	out := make([]string, 0, len(d.Insights))
	for _, in := range d.Insights {
		out = append(out, in.Code)
	}
	return out
}

func TestSleepBandBoundaries(t *testing.T) {
	cases := []struct {
		asleepMs int64
		want     SleepBand
	}{
		{69 * hourMs / 10, SleepShort},
		{7 * hourMs, SleepTarget},
		{9 * hourMs, SleepTarget},
		{91 * hourMs / 10, SleepExtended},
	}
	for _, c := range cases {
		r := health.EmptyRollup("2024-05-01", "UTC", 0)
		r.SleepSampleCount = 1
		r.SleepTotalAsleepMs = c.asleepMs
		assert.Equal(t, c.want, SummarizeDay(r).Derived.SleepBand, c.asleepMs)
	}
}

func TestActivityBandBoundaries(t *testing.T) {
	cases := []struct {
		kcal float64
		want ActivityBand
	}{
		{299, ActivityLow},
		{300, ActivityModerate},
		{800, ActivityModerate},
		{801, ActivityHigh},
	}
	for _, c := range cases {
		r := health.EmptyRollup("2024-05-01", "UTC", 0)
		r.ActiveEnergyKcalSamples = 1
		r.ActiveEnergyKcalTotal = c.kcal
		assert.Equal(t, c.want, SummarizeDay(r).Derived.ActiveCaloriesBand, c.kcal)
	}
}

func TestSummarizeDay_SleepEfficiency(t *testing.T) {
	r := health.EmptyRollup("2024-05-01", "UTC", 0)
	r.SleepSampleCount = 2
	r.SleepTotalAsleepMs = 7 * hourMs
	assert.Equal(t, 0.0, SummarizeDay(r).Metrics.Sleep.SleepEfficiency)

	r.SleepInBedMs = 8 * hourMs
	d := SummarizeDay(r)
	assert.Equal(t, 0.875, d.Metrics.Sleep.SleepEfficiency)
	assert.Equal(t, 8.0, d.Metrics.Sleep.InBedHours)
	assert.Equal(t, 7.0, d.Metrics.Sleep.AsleepHours)
}

func TestSummarizeDay_Insights(t *testing.T) {
	r := health.EmptyRollup("2024-05-01", "UTC", 0)
	r.SleepSampleCount = 3
	r.SleepTotalAsleepMs = 8 * hourMs
	r.ActiveEnergyKcalSamples = 4
	r.ActiveEnergyKcalTotal = 950
	r.DietaryEnergyKcalSamples = 1
	r.DietaryEnergyKcalTotal = 2100.456
	r.RestingHeartRateSamples = 2
	r.RestingHeartRateAvg = 72.346
	r.HrvSdnnSamples = 1
	r.HrvSdnnAvg = 40

	d := SummarizeDay(r)
	assert.Equal(t, []string{"sleep_on_target", "high_activity", "elevated_resting_hr", "healthy_hrv"}, codes(d))
	assert.Equal(t, 1150.46, d.Derived.CalorieBalanceKcal)
	assert.Equal(t, 72.35, d.Metrics.Recovery.RestingHeartRateBpm.Average)
}

func TestSummarizeDay_NoDataOnlyWhenEveryCountIsZero(t *testing.T) {
	empty := SummarizeDay(health.EmptyRollup("2024-05-01", "UTC", 9))
	assert.Equal(t, []string{"sleep_below_target", "low_activity", "no_data"}, codes(empty))
	assert.Equal(t, int64(9), empty.RecomputedAtMs)

	r := health.EmptyRollup("2024-05-01", "UTC", 0)
	r.BodyFatPercentSamples = 1
	r.BodyFatPercentAvg = 18
	assert.NotContains(t, codes(SummarizeDay(r)), "no_data")

	// a heart rate sample with a low average still counts as data
	r = health.EmptyRollup("2024-05-01", "UTC", 0)
	r.RestingHeartRateSamples = 1
	r.RestingHeartRateAvg = 55
	assert.NotContains(t, codes(SummarizeDay(r)), "no_data")
	assert.NotContains(t, codes(SummarizeDay(r)), "elevated_resting_hr")
}

func TestSummarizeRange_FillsGaps(t *testing.T) {
	d1 := health.EmptyRollup("2024-05-01", "UTC", 1)
	d1.StepCountSamples, d1.StepCountTotal = 1, 1000
	d1.SleepSampleCount, d1.SleepTotalAsleepMs, d1.SleepInBedMs = 1, 8*hourMs, 8*hourMs
	d3 := health.EmptyRollup("2024-05-03", "UTC", 1)
	d3.StepCountSamples, d3.StepCountTotal = 1, 500.5

	out, err := SummarizeRange([]health.DailyRollup{d3, d1}, "2024-05-01", "2024-05-03", "Europe/Berlin", 77)
	require.NoError(t, err)
	require.Len(t, out.Days, 3)
	assert.Equal(t, "2024-05-01", out.Days[0].DayKey)
	assert.Equal(t, "2024-05-02", out.Days[1].DayKey)
	assert.Equal(t, "Europe/Berlin", out.Days[1].Timezone)
	assert.Equal(t, int64(77), out.Days[1].RecomputedAtMs)
	assert.Contains(t, codes(out.Days[1]), "no_data")
	assert.Equal(t, "2024-05-03", out.Days[2].DayKey)

	assert.Equal(t, 3, out.Totals.Days)
	assert.Equal(t, 1500.5, out.Totals.TotalSteps)
	assert.Equal(t, 2.67, out.Totals.AverageSleepHours)
	assert.Equal(t, 0.333, out.Totals.AverageSleepEfficiency)
}

func TestSummarizeRange_RejectsInvertedRange(t *testing.T) {
	_, err := SummarizeRange(nil, "2024-05-02", "2024-05-01", "UTC", 0)
	assert.True(t, health.IsValidation(err))
}

func TestYesterdayDayKey(t *testing.T) {
	// 2024-03-10 07:30 UTC is still March 9 in Los Angeles, on the DST switch day
	now := time.Date(2024, 3, 10, 7, 30, 0, 0, time.UTC).UnixMilli()

	la, err := YesterdayDayKey("America/Los_Angeles", now)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-08", la)

	utc, err := YesterdayDayKey("UTC", now)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09", utc)

	jan, err := YesterdayDayKey("UTC", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
	require.NoError(t, err)
	assert.Equal(t, "2023-12-31", jan)

	_, err = YesterdayDayKey("Bad/Zone", now)
	assert.True(t, health.IsValidation(err))
}

type fakeRollups struct {
	rows []health.DailyRollup
}

func (f fakeRollups) ListDaily(_ context.Context, from, to string) ([]health.DailyRollup, error) {
	var out []health.DailyRollup
	for _, r := range f.rows {
		if r.DayKey >= from && r.DayKey <= to {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestService(t *testing.T) {
	stored := health.EmptyRollup("2024-05-01", "UTC", 5)
	stored.StepCountSamples, stored.StepCountTotal = 1, 42
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	svc := &Service{Rollups: fakeRollups{rows: []health.DailyRollup{stored}}, Now: func() time.Time { return now }}
	ctx := context.Background()

	y, err := svc.Yesterday(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", y.DayKey)
	assert.Equal(t, 42.0, y.Metrics.Activity.StepCount)

	d, err := svc.Daily(ctx, "2024-04-30", "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", d.Timezone)
	assert.Equal(t, now.UnixMilli(), d.RecomputedAtMs)

	_, err = svc.Daily(ctx, "2024-4-30", "UTC")
	assert.True(t, health.IsValidation(err))

	_, err = svc.Range(ctx, "2024-05-01", "2024-05-02", "Not/AZone")
	assert.True(t, health.IsValidation(err))

	r, err := svc.Range(ctx, "2024-04-30", "2024-05-02", "UTC")
	require.NoError(t, err)
	assert.Equal(t, 3, r.Totals.Days)
	assert.Equal(t, 42.0, r.Totals.TotalSteps)
}
