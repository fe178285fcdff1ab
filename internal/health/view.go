package health

type AdditiveView struct {
	Total       float64 `json:"total"`
	SampleCount int     `json:"sampleCount"`
	Unit        string  `json:"unit"`
}

type StatisticalView struct {
	Average     float64 `json:"average"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	SampleCount int     `json:"sampleCount"`
	Unit        string  `json:"unit"`
}

type SleepView struct {
	SampleCount   int    `json:"sampleCount"`
	InBedMs       int64  `json:"inBedMs"`
	AsleepMs      int64  `json:"asleepMs"`
	AwakeMs       int64  `json:"awakeMs"`
	AsleepRemMs   int64  `json:"asleepRemMs"`
	AsleepCoreMs  int64  `json:"asleepCoreMs"`
	AsleepDeepMs  int64  `json:"asleepDeepMs"`
	TotalAsleepMs int64  `json:"totalAsleepMs"`
	Unit          string `json:"unit"`
}

type DailyMetricsView struct {
	StepCount           AdditiveView    `json:"step_count"`
	ActiveEnergyKcal    AdditiveView    `json:"active_energy_kcal"`
	DietaryEnergyKcal   AdditiveView    `json:"dietary_energy_kcal"`
	RestingHeartRateBpm StatisticalView `json:"resting_heart_rate_bpm"`
	HrvSdnnMs           StatisticalView `json:"hrv_sdnn_ms"`
	BodyMassKg          StatisticalView `json:"body_mass_kg"`
	BodyFatPercent      StatisticalView `json:"body_fat_percent"`
	SleepSegment        SleepView       `json:"sleep_segment"`
}

// DailyView is the per-metric shape returned by the daily listing.
type DailyView struct {
	DayKey         string           `json:"dayKey"`
	Timezone       string           `json:"timezone"`
	Metrics        DailyMetricsView `json:"metrics"`
	RecomputedAtMs int64            `json:"recomputedAtMs"`
}

func (r DailyRollup) View() DailyView {
	return DailyView{
		DayKey:   r.DayKey,
		Timezone: r.Timezone,
		Metrics: DailyMetricsView{
			StepCount:           AdditiveView{Total: r.StepCountTotal, SampleCount: r.StepCountSamples, Unit: "count"},
			ActiveEnergyKcal:    AdditiveView{Total: r.ActiveEnergyKcalTotal, SampleCount: r.ActiveEnergyKcalSamples, Unit: "kcal"},
			DietaryEnergyKcal:   AdditiveView{Total: r.DietaryEnergyKcalTotal, SampleCount: r.DietaryEnergyKcalSamples, Unit: "kcal"},
			RestingHeartRateBpm: StatisticalView{Average: r.RestingHeartRateAvg, Min: r.RestingHeartRateMin, Max: r.RestingHeartRateMax, SampleCount: r.RestingHeartRateSamples, Unit: "count/min"},
			HrvSdnnMs:           StatisticalView{Average: r.HrvSdnnAvg, Min: r.HrvSdnnMin, Max: r.HrvSdnnMax, SampleCount: r.HrvSdnnSamples, Unit: "ms"},
			BodyMassKg:          StatisticalView{Average: r.BodyMassKgAvg, Min: r.BodyMassKgMin, Max: r.BodyMassKgMax, SampleCount: r.BodyMassKgSamples, Unit: "kg"},
			BodyFatPercent:      StatisticalView{Average: r.BodyFatPercentAvg, Min: r.BodyFatPercentMin, Max: r.BodyFatPercentMax, SampleCount: r.BodyFatPercentSamples, Unit: "%"},
			SleepSegment: SleepView{
				SampleCount:   r.SleepSampleCount,
				InBedMs:       r.SleepInBedMs,
				AsleepMs:      r.SleepAsleepMs,
				AwakeMs:       r.SleepAwakeMs,
				AsleepRemMs:   r.SleepAsleepRemMs,
				AsleepCoreMs:  r.SleepAsleepCoreMs,
				AsleepDeepMs:  r.SleepAsleepDeepMs,
				TotalAsleepMs: r.SleepTotalAsleepMs,
				Unit:          "ms",
			},
		},
		RecomputedAtMs: r.RecomputedAtMs,
	}
}
