package health

import (
	"math"
	"strings"
)

type IntentStatus string

const (
	IntentPending IntentStatus = "pending"
	IntentApplied IntentStatus = "applied"
	IntentFailed  IntentStatus = "failed"
	IntentSkipped IntentStatus = "skipped"
)

func (s IntentStatus) Valid() bool {
	switch s {
	case IntentPending, IntentApplied, IntentFailed, IntentSkipped:
		return true
	}
	return false
}

// ValidAck reports whether s may be reported by a device acknowledgement.
func (s IntentStatus) ValidAck() bool {
	return s == IntentApplied || s == IntentFailed || s == IntentSkipped
}

const MaxIntentPageSize = 200

// WriteIntentPayload is what a caller submits. ExternalID is the idempotence key.
type WriteIntentPayload struct {
	ExternalID     string   `json:"externalId"`
	Metric         Metric   `json:"metric"`
	StartTimeMs    int64    `json:"startTimeMs"`
	EndTimeMs      int64    `json:"endTimeMs"`
	ValueNumber    float64  `json:"valueNumber"`
	Unit           string   `json:"unit"`
	Timezone       string   `json:"timezone"`
	Note           string   `json:"note,omitempty"`
	SourceName     string   `json:"sourceName,omitempty"`
	SourceBundleID string   `json:"sourceBundleId,omitempty"`
	Tags           []string `json:"tags"`
}

func (p WriteIntentPayload) Validate() error {
	if strings.TrimSpace(p.ExternalID) == "" {
		return Invalidf("externalId is required")
	}
	if !p.Metric.Writable() {
		return Invalidf("metric must be active_energy_kcal or dietary_energy_kcal")
	}
	if p.EndTimeMs < p.StartTimeMs {
		return Invalidf("endTimeMs must be >= startTimeMs")
	}
	if math.IsNaN(p.ValueNumber) || math.IsInf(p.ValueNumber, 0) {
		return Invalidf("valueNumber must be a finite number")
	}
	if strings.TrimSpace(p.Unit) == "" {
		return Invalidf("unit is required")
	}
	if _, err := LoadLocation(p.Timezone); err != nil {
		return err
	}
	return nil
}

// WriteIntent is a payload plus its delivery lifecycle.
type WriteIntent struct {
	IntentID string `json:"intentId"`
	WriteIntentPayload
	Status          IntentStatus `json:"status"`
	AttemptCount    int          `json:"attemptCount"`
	CreatedAtMs     int64        `json:"createdAtMs"`
	UpdatedAtMs     int64        `json:"updatedAtMs"`
	NextRetryAtMs   int64        `json:"nextRetryAtMs"`
	LastAttemptAtMs *int64       `json:"lastAttemptAtMs,omitempty"`
	HealthkitUUID   string       `json:"healthkitUuid,omitempty"`
	FailureCode     string       `json:"failureCode,omitempty"`
	FailureMessage  string       `json:"failureMessage,omitempty"`
	AppliedAtMs     *int64       `json:"appliedAtMs,omitempty"`
}

type WriteIntentPage struct {
	Items      []WriteIntent `json:"items"`
	NextCursor *string       `json:"nextCursor"`
}

// AckRequest reports the device-side outcome of one intent.
type AckRequest struct {
	ExternalID    string       `json:"externalId"`
	Status        IntentStatus `json:"status"`
	AppliedAtMs   *int64       `json:"appliedAtMs,omitempty"`
	HealthkitUUID string       `json:"healthkitUuid,omitempty"`
	ErrorCode     string       `json:"errorCode,omitempty"`
	ErrorMessage  string       `json:"errorMessage,omitempty"`
}

func (a AckRequest) Validate() error {
	if strings.TrimSpace(a.ExternalID) == "" {
		return Invalidf("externalId is required")
	}
	if !a.Status.ValidAck() {
		return Invalidf("status must be applied, failed, or skipped")
	}
	return nil
}
