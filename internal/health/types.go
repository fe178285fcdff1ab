package health

// Metric is one of the tracked sample kinds.
type Metric string

const (
	MetricStepCount        Metric = "step_count"
	MetricActiveEnergy     Metric = "active_energy_kcal"
	MetricDietaryEnergy    Metric = "dietary_energy_kcal"
	MetricRestingHeartRate Metric = "resting_heart_rate_bpm"
	MetricHRVSdnn          Metric = "hrv_sdnn_ms"
	MetricBodyMass         Metric = "body_mass_kg"
	MetricBodyFat          Metric = "body_fat_percent"
	MetricSleepSegment     Metric = "sleep_segment"
)

// Metrics is the sync order used by the agent.
var Metrics = []Metric{
	MetricStepCount,
	MetricActiveEnergy,
	MetricDietaryEnergy,
	MetricRestingHeartRate,
	MetricHRVSdnn,
	MetricBodyMass,
	MetricBodyFat,
	MetricSleepSegment,
}

func (m Metric) Valid() bool {
	for _, c := range Metrics {
		if c == m {
			return true
		}
	}
	return false
}

// Categorical reports whether samples of m carry a sleep stage instead of a number.
func (m Metric) Categorical() bool { return m == MetricSleepSegment }

// Writable reports whether the device accepts write intents for m.
func (m Metric) Writable() bool {
	return m == MetricActiveEnergy || m == MetricDietaryEnergy
}

// SleepStage is the canonical label of a sleep segment.
type SleepStage string

const (
	SleepInBed      SleepStage = "inBed"
	SleepAsleep     SleepStage = "asleep"
	SleepAwake      SleepStage = "awake"
	SleepAsleepREM  SleepStage = "asleepREM"
	SleepAsleepCore SleepStage = "asleepCore"
	SleepAsleepDeep SleepStage = "asleepDeep"
)

var SleepStages = []SleepStage{
	SleepInBed,
	SleepAsleep,
	SleepAwake,
	SleepAsleepREM,
	SleepAsleepCore,
	SleepAsleepDeep,
}

func (s SleepStage) Valid() bool {
	for _, c := range SleepStages {
		if c == s {
			return true
		}
	}
	return false
}

// Sample is one observation as uploaded by a device.
type Sample struct {
	SampleKey      string      `json:"sampleKey"`
	Metric         Metric      `json:"metric"`
	StartTimeMs    int64       `json:"startTimeMs"`
	EndTimeMs      int64       `json:"endTimeMs"`
	ValueNumber    *float64    `json:"valueNumber,omitempty"`
	CategoryValue  *SleepStage `json:"categoryValue,omitempty"`
	Unit           string      `json:"unit"`
	SourceName     string      `json:"sourceName,omitempty"`
	SourceBundleID string      `json:"sourceBundleId,omitempty"`
	Timezone       string      `json:"timezone"`
}

// PreparedSample is a validated Sample with its day key resolved.
type PreparedSample struct {
	Sample
	DayKey string `json:"dayKey"`
}

const (
	MaxIngestBatchSize = 500
	MaxRawPageSize     = 500
	DefaultRawPageSize = 100
)
