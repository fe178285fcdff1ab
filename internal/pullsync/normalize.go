package pullsync

import (
	"math"

	"healthsync/internal/device"
	"healthsync/internal/health"
)

// Device sleep analysis codes.
const (
	sleepCodeInBed = iota
	sleepCodeAsleep
	sleepCodeAwake
	sleepCodeAsleepCore
	sleepCodeAsleepDeep
	sleepCodeAsleepREM
)

// SleepStageForCode maps a device sleep code; ok is false for unknown codes.
func SleepStageForCode(code int) (health.SleepStage, bool) {
	switch code {
	case sleepCodeInBed:
		return health.SleepInBed, true
	case sleepCodeAsleep:
		return health.SleepAsleep, true
	case sleepCodeAwake:
		return health.SleepAwake, true
	case sleepCodeAsleepCore:
		return health.SleepAsleepCore, true
	case sleepCodeAsleepDeep:
		return health.SleepAsleepDeep, true
	case sleepCodeAsleepREM:
		return health.SleepAsleepREM, true
	}
	return "", false
}

func SampleKey(metric health.Metric, deviceUUID string) string {
	return string(metric) + ":" + deviceUUID
}

// Normalize converts device samples into upload shape. Samples the server
// would reject (inverted window, missing or non-finite value, unknown sleep
// code) are dropped so one bad reading cannot fail a whole batch.
func Normalize(metric health.Metric, raws []device.RawSample, timezone string) []health.Sample {
	out := make([]health.Sample, 0, len(raws))
	for _, r := range raws {
		if r.EndMs < r.StartMs {
			continue
		}
		s := health.Sample{
			SampleKey:      SampleKey(metric, r.UUID),
			Metric:         metric,
			StartTimeMs:    r.StartMs,
			EndTimeMs:      r.EndMs,
			Unit:           r.Unit,
			SourceName:     r.SourceName,
			SourceBundleID: r.SourceBundleID,
			Timezone:       timezone,
		}

		if metric.Categorical() {
			if r.CategoryCode == nil {
				continue
			}
			stage, ok := SleepStageForCode(*r.CategoryCode)
			if !ok {
				continue
			}
			s.CategoryValue = &stage
			s.Unit = "ms"
		} else {
			if r.Quantity == nil || math.IsNaN(*r.Quantity) || math.IsInf(*r.Quantity, 0) {
				continue
			}
			v := *r.Quantity
			s.ValueNumber = &v
		}

		if !health.ValidSampleKey(s.SampleKey) || s.Unit == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
