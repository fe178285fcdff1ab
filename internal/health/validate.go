package health

import (
	"math"
	"regexp"
	"strings"
)

var sampleKeyRe = regexp.MustCompile(`^[A-Za-z0-9._:|\-]{1,200}$`)

func ValidSampleKey(key string) bool { return sampleKeyRe.MatchString(key) }

// Prepare validates s and resolves its day key from the start time in the
// sample's own timezone.
func Prepare(s Sample) (PreparedSample, error) {
	if !ValidSampleKey(s.SampleKey) {
		return PreparedSample{}, Invalidf("Invalid sampleKey format")
	}
	if !s.Metric.Valid() {
		return PreparedSample{}, Invalidf("Invalid metric %q", s.Metric)
	}
	if s.EndTimeMs < s.StartTimeMs {
		return PreparedSample{}, Invalidf("endTimeMs must be >= startTimeMs (sampleKey %s)", s.SampleKey)
	}
	if strings.TrimSpace(s.Unit) == "" {
		return PreparedSample{}, Invalidf("unit is required (sampleKey %s)", s.SampleKey)
	}
	if strings.TrimSpace(s.Timezone) == "" {
		return PreparedSample{}, Invalidf("timezone is required (sampleKey %s)", s.SampleKey)
	}

	if s.Metric.Categorical() {
		if s.CategoryValue == nil {
			return PreparedSample{}, Invalidf("categoryValue is required for sleep_segment (sampleKey %s)", s.SampleKey)
		}
		if !s.CategoryValue.Valid() {
			return PreparedSample{}, Invalidf("Invalid sleep category value %q", *s.CategoryValue)
		}
		if s.ValueNumber != nil {
			return PreparedSample{}, Invalidf("valueNumber is not allowed for sleep_segment (sampleKey %s)", s.SampleKey)
		}
	} else {
		if s.ValueNumber == nil || math.IsNaN(*s.ValueNumber) || math.IsInf(*s.ValueNumber, 0) {
			return PreparedSample{}, Invalidf("valueNumber is required and must be finite for numeric metrics (sampleKey %s)", s.SampleKey)
		}
		if s.CategoryValue != nil {
			return PreparedSample{}, Invalidf("categoryValue is only allowed for sleep_segment (sampleKey %s)", s.SampleKey)
		}
	}

	day, err := DayKey(s.StartTimeMs, s.Timezone)
	if err != nil {
		return PreparedSample{}, err
	}
	return PreparedSample{Sample: s, DayKey: day}, nil
}
