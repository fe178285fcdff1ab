package health

// DailyRollup is the per-day aggregate derived wholesale from that day's raw samples.
type DailyRollup struct {
	DayKey   string `json:"dayKey"`
	Timezone string `json:"timezone"`

	StepCountTotal          float64 `json:"stepCountTotal"`
	StepCountSamples        int     `json:"stepCountSamples"`
	ActiveEnergyKcalTotal   float64 `json:"activeEnergyKcalTotal"`
	ActiveEnergyKcalSamples int     `json:"activeEnergyKcalSamples"`

	DietaryEnergyKcalTotal   float64 `json:"dietaryEnergyKcalTotal"`
	DietaryEnergyKcalSamples int     `json:"dietaryEnergyKcalSamples"`

	RestingHeartRateAvg     float64 `json:"restingHeartRateAvg"`
	RestingHeartRateMin     float64 `json:"restingHeartRateMin"`
	RestingHeartRateMax     float64 `json:"restingHeartRateMax"`
	RestingHeartRateSamples int     `json:"restingHeartRateSamples"`

	HrvSdnnAvg     float64 `json:"hrvSdnnAvg"`
	HrvSdnnMin     float64 `json:"hrvSdnnMin"`
	HrvSdnnMax     float64 `json:"hrvSdnnMax"`
	HrvSdnnSamples int     `json:"hrvSdnnSamples"`

	BodyMassKgAvg     float64 `json:"bodyMassKgAvg"`
	BodyMassKgMin     float64 `json:"bodyMassKgMin"`
	BodyMassKgMax     float64 `json:"bodyMassKgMax"`
	BodyMassKgSamples int     `json:"bodyMassKgSamples"`

	BodyFatPercentAvg     float64 `json:"bodyFatPercentAvg"`
	BodyFatPercentMin     float64 `json:"bodyFatPercentMin"`
	BodyFatPercentMax     float64 `json:"bodyFatPercentMax"`
	BodyFatPercentSamples int     `json:"bodyFatPercentSamples"`

	SleepSampleCount   int   `json:"sleepSampleCount"`
	SleepInBedMs       int64 `json:"sleepInBedMs"`
	SleepAsleepMs      int64 `json:"sleepAsleepMs"`
	SleepAwakeMs       int64 `json:"sleepAwakeMs"`
	SleepAsleepRemMs   int64 `json:"sleepAsleepRemMs"`
	SleepAsleepCoreMs  int64 `json:"sleepAsleepCoreMs"`
	SleepAsleepDeepMs  int64 `json:"sleepAsleepDeepMs"`
	SleepTotalAsleepMs int64 `json:"sleepTotalAsleepMs"`

	RecomputedAtMs int64 `json:"recomputedAtMs"`
}

// EmptyRollup is the placeholder for a day with no stored data.
func EmptyRollup(dayKey, timezone string, nowMs int64) DailyRollup {
	return DailyRollup{DayKey: dayKey, Timezone: timezone, RecomputedAtMs: nowMs}
}

// HasData reports whether any metric has at least one sample.
func (r DailyRollup) HasData() bool {
	return r.StepCountSamples > 0 ||
		r.ActiveEnergyKcalSamples > 0 ||
		r.DietaryEnergyKcalSamples > 0 ||
		r.RestingHeartRateSamples > 0 ||
		r.HrvSdnnSamples > 0 ||
		r.BodyMassKgSamples > 0 ||
		r.BodyFatPercentSamples > 0 ||
		r.SleepSampleCount > 0
}

type stat struct {
	sum, min, max float64
	count         int
}

func (s *stat) add(v float64) {
	if s.count == 0 {
		s.min, s.max = v, v
	} else {
		s.min = min(s.min, v)
		s.max = max(s.max, v)
	}
	s.sum += v
	s.count++
}

func (s stat) avg() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

// BuildDailyRollup recomputes a day's rollup from scratch. The result depends only
// on the arguments, so callers must pass samples in a deterministic order for
// float sums to be reproducible.
func BuildDailyRollup(dayKey, timezone string, samples []PreparedSample, recomputedAtMs int64) DailyRollup {
	r := DailyRollup{DayKey: dayKey, Timezone: timezone, RecomputedAtMs: recomputedAtMs}
	var hr, hrv, mass, fat stat

	for _, s := range samples {
		if s.Metric == MetricSleepSegment {
			if s.CategoryValue == nil {
				continue
			}
			addSleep(&r, *s.CategoryValue, max(0, s.EndTimeMs-s.StartTimeMs))
			continue
		}
		if s.ValueNumber == nil {
			continue
		}
		v := *s.ValueNumber
		switch s.Metric {
		case MetricStepCount:
			r.StepCountTotal += v
			r.StepCountSamples++
		case MetricActiveEnergy:
			r.ActiveEnergyKcalTotal += v
			r.ActiveEnergyKcalSamples++
		case MetricDietaryEnergy:
			r.DietaryEnergyKcalTotal += v
			r.DietaryEnergyKcalSamples++
		case MetricRestingHeartRate:
			hr.add(v)
		case MetricHRVSdnn:
			hrv.add(v)
		case MetricBodyMass:
			mass.add(v)
		case MetricBodyFat:
			fat.add(v)
		}
	}

	r.RestingHeartRateAvg, r.RestingHeartRateMin, r.RestingHeartRateMax, r.RestingHeartRateSamples = hr.avg(), hr.min, hr.max, hr.count
	r.HrvSdnnAvg, r.HrvSdnnMin, r.HrvSdnnMax, r.HrvSdnnSamples = hrv.avg(), hrv.min, hrv.max, hrv.count
	r.BodyMassKgAvg, r.BodyMassKgMin, r.BodyMassKgMax, r.BodyMassKgSamples = mass.avg(), mass.min, mass.max, mass.count
	r.BodyFatPercentAvg, r.BodyFatPercentMin, r.BodyFatPercentMax, r.BodyFatPercentSamples = fat.avg(), fat.min, fat.max, fat.count

	// inBed and awake are not sleep
	r.SleepTotalAsleepMs = r.SleepAsleepMs + r.SleepAsleepRemMs + r.SleepAsleepCoreMs + r.SleepAsleepDeepMs
	return r
}

func addSleep(r *DailyRollup, stage SleepStage, d int64) {
	r.SleepSampleCount++
	switch stage {
	case SleepInBed:
		r.SleepInBedMs += d
	case SleepAwake:
		r.SleepAwakeMs += d
	case SleepAsleep:
		r.SleepAsleepMs += d
	case SleepAsleepREM:
		r.SleepAsleepRemMs += d
	case SleepAsleepCore:
		r.SleepAsleepCoreMs += d
	case SleepAsleepDeep:
		r.SleepAsleepDeepMs += d
	}
}
