package summary

import (
	"math"

	"healthsync/internal/health"
)

type SleepBand string

const (
	SleepShort    SleepBand = "short"
	SleepTarget   SleepBand = "target"
	SleepExtended SleepBand = "extended"
)

type ActivityBand string

const (
	ActivityLow      ActivityBand = "low"
	ActivityModerate ActivityBand = "moderate"
	ActivityHigh     ActivityBand = "high"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityGood  Severity = "good"
	SeverityWatch Severity = "watch"
)

type Insight struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

type Sleep struct {
	SampleCount     int     `json:"sampleCount"`
	InBedHours      float64 `json:"inBedHours"`
	AsleepHours     float64 `json:"asleepHours"`
	AwakeHours      float64 `json:"awakeHours"`
	RemHours        float64 `json:"remHours"`
	CoreHours       float64 `json:"coreHours"`
	DeepHours       float64 `json:"deepHours"`
	SleepEfficiency float64 `json:"sleepEfficiency"`
}

type Activity struct {
	StepCount           float64 `json:"stepCount"`
	ActiveCaloriesKcal  float64 `json:"activeCaloriesKcal"`
	DietaryCaloriesKcal float64 `json:"dietaryCaloriesKcal"`
}

type Stat struct {
	Average     float64 `json:"average"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	SampleCount int     `json:"sampleCount"`
}

type Recovery struct {
	RestingHeartRateBpm Stat `json:"restingHeartRateBpm"`
	HrvSdnnMs           Stat `json:"hrvSdnnMs"`
}

type Body struct {
	BodyMassKg     Stat `json:"bodyMassKg"`
	BodyFatPercent Stat `json:"bodyFatPercent"`
}

type Metrics struct {
	Sleep    Sleep    `json:"sleep"`
	Activity Activity `json:"activity"`
	Recovery Recovery `json:"recovery"`
	Body     Body     `json:"body"`
}

type Derived struct {
	CalorieBalanceKcal float64      `json:"calorieBalanceKcal"`
	ActiveCaloriesBand ActivityBand `json:"activeCaloriesBand"`
	SleepBand          SleepBand    `json:"sleepBand"`
}

type Daily struct {
	DayKey         string    `json:"dayKey"`
	Timezone       string    `json:"timezone"`
	Metrics        Metrics   `json:"metrics"`
	Derived        Derived   `json:"derived"`
	Insights       []Insight `json:"insights"`
	RecomputedAtMs int64     `json:"recomputedAtMs"`
}

type Totals struct {
	Days                     int     `json:"days"`
	TotalSteps               float64 `json:"totalSteps"`
	TotalActiveCaloriesKcal  float64 `json:"totalActiveCaloriesKcal"`
	TotalDietaryCaloriesKcal float64 `json:"totalDietaryCaloriesKcal"`
	AverageSleepHours        float64 `json:"averageSleepHours"`
	AverageSleepEfficiency   float64 `json:"averageSleepEfficiency"`
}

type Range struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Timezone string  `json:"timezone"`
	Days     []Daily `json:"days"`
	Totals   Totals  `json:"totals"`
}

const msPerHour = 60 * 60 * 1000

func round(v float64, decimals int) float64 {
	m := math.Pow(10, float64(decimals))
	return math.Round(v*m) / m
}

func hours(ms int64) float64 { return round(float64(ms)/msPerHour, 2) }

func sleepBand(asleepHours float64) SleepBand {
	switch {
	case asleepHours < 7:
		return SleepShort
	case asleepHours > 9:
		return SleepExtended
	default:
		return SleepTarget
	}
}

func activityBand(activeKcal float64) ActivityBand {
	switch {
	case activeKcal < 300:
		return ActivityLow
	case activeKcal > 800:
		return ActivityHigh
	default:
		return ActivityModerate
	}
}

func stat(avg, lo, hi float64, n int) Stat {
	return Stat{Average: round(avg, 2), Min: round(lo, 2), Max: round(hi, 2), SampleCount: n}
}

// SummarizeDay derives bands and insights from one rollup. The sleep band is
// taken from the rounded asleep hours.
func SummarizeDay(r health.DailyRollup) Daily {
	asleep := hours(r.SleepTotalAsleepMs)

	var efficiency float64
	if r.SleepInBedMs > 0 {
		efficiency = round(float64(r.SleepTotalAsleepMs)/float64(r.SleepInBedMs), 3)
	}

	sb := sleepBand(asleep)
	ab := activityBand(r.ActiveEnergyKcalTotal)

	insights := []Insight{}
	switch sb {
	case SleepShort:
		insights = append(insights, Insight{"sleep_below_target", SeverityWatch, "Sleep was below 7 hours. Consider prioritizing recovery today."})
	case SleepTarget:
		insights = append(insights, Insight{"sleep_on_target", SeverityGood, "Sleep duration was within the target range."})
	}
	switch ab {
	case ActivityHigh:
		insights = append(insights, Insight{"high_activity", SeverityGood, "Active calorie burn was high."})
	case ActivityLow:
		insights = append(insights, Insight{"low_activity", SeverityInfo, "Active calorie burn was low."})
	}
	if r.RestingHeartRateSamples > 0 && r.RestingHeartRateAvg > 70 {
		insights = append(insights, Insight{"elevated_resting_hr", SeverityWatch, "Average resting heart rate was elevated."})
	}
	if r.HrvSdnnSamples > 0 && r.HrvSdnnAvg >= 40 {
		insights = append(insights, Insight{"healthy_hrv", SeverityGood, "HRV was in a strong range."})
	}
	if !r.HasData() {
		insights = append(insights, Insight{"no_data", SeverityInfo, "No health data was available for this day."})
	}

	return Daily{
		DayKey:   r.DayKey,
		Timezone: r.Timezone,
		Metrics: Metrics{
			Sleep: Sleep{
				SampleCount:     r.SleepSampleCount,
				InBedHours:      hours(r.SleepInBedMs),
				AsleepHours:     asleep,
				AwakeHours:      hours(r.SleepAwakeMs),
				RemHours:        hours(r.SleepAsleepRemMs),
				CoreHours:       hours(r.SleepAsleepCoreMs),
				DeepHours:       hours(r.SleepAsleepDeepMs),
				SleepEfficiency: efficiency,
			},
			Activity: Activity{
				StepCount:           round(r.StepCountTotal, 2),
				ActiveCaloriesKcal:  round(r.ActiveEnergyKcalTotal, 2),
				DietaryCaloriesKcal: round(r.DietaryEnergyKcalTotal, 2),
			},
			Recovery: Recovery{
				RestingHeartRateBpm: stat(r.RestingHeartRateAvg, r.RestingHeartRateMin, r.RestingHeartRateMax, r.RestingHeartRateSamples),
				HrvSdnnMs:           stat(r.HrvSdnnAvg, r.HrvSdnnMin, r.HrvSdnnMax, r.HrvSdnnSamples),
			},
			Body: Body{
				BodyMassKg:     stat(r.BodyMassKgAvg, r.BodyMassKgMin, r.BodyMassKgMax, r.BodyMassKgSamples),
				BodyFatPercent: stat(r.BodyFatPercentAvg, r.BodyFatPercentMin, r.BodyFatPercentMax, r.BodyFatPercentSamples),
			},
		},
		Derived: Derived{
			CalorieBalanceKcal: round(r.DietaryEnergyKcalTotal-r.ActiveEnergyKcalTotal, 2),
			ActiveCaloriesBand: ab,
			SleepBand:          sb,
		},
		Insights:       insights,
		RecomputedAtMs: r.RecomputedAtMs,
	}
}

// SummarizeRange summarizes every day from..to inclusive. Days without a
// stored rollup are filled with an empty one so the list has no gaps.
func SummarizeRange(rollups []health.DailyRollup, from, to, timezone string, nowMs int64) (Range, error) {
	keys, err := health.DayRange(from, to)
	if err != nil {
		return Range{}, err
	}

	byDay := make(map[string]health.DailyRollup, len(rollups))
	for _, r := range rollups {
		byDay[r.DayKey] = r
	}

	out := Range{From: from, To: to, Timezone: timezone, Days: make([]Daily, 0, len(keys))}
	var steps, active, dietary, sleepHours, efficiency float64
	for _, k := range keys {
		r, ok := byDay[k]
		if !ok {
			r = health.EmptyRollup(k, timezone, nowMs)
		}
		d := SummarizeDay(r)
		out.Days = append(out.Days, d)

		steps += d.Metrics.Activity.StepCount
		active += d.Metrics.Activity.ActiveCaloriesKcal
		dietary += d.Metrics.Activity.DietaryCaloriesKcal
		sleepHours += d.Metrics.Sleep.AsleepHours
		efficiency += d.Metrics.Sleep.SleepEfficiency
	}

	n := len(out.Days)
	out.Totals = Totals{
		Days:                     n,
		TotalSteps:               round(steps, 2),
		TotalActiveCaloriesKcal:  round(active, 2),
		TotalDietaryCaloriesKcal: round(dietary, 2),
	}
	if n > 0 {
		out.Totals.AverageSleepHours = round(sleepHours/float64(n), 2)
		out.Totals.AverageSleepEfficiency = round(efficiency/float64(n), 3)
	}
	return out, nil
}

// YesterdayDayKey is the calendar day before today in timezone.
func YesterdayDayKey(timezone string, nowMs int64) (string, error) {
	today, err := health.DayKey(nowMs, timezone)
	if err != nil {
		return "", err
	}
	return health.AddDays(today, -1)
}
