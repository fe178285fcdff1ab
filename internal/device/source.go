package device

import (
	"context"

	"healthsync/internal/health"
)

// RawSample is a reading as the device store reports it, before normalization.
// Quantity is set for numeric metrics, CategoryCode for sleep.
type RawSample struct {
	UUID           string        `json:"uuid"`
	Metric         health.Metric `json:"metric"`
	StartMs        int64         `json:"startMs"`
	EndMs          int64         `json:"endMs"`
	Quantity       *float64      `json:"quantity,omitempty"`
	CategoryCode   *int          `json:"categoryCode,omitempty"`
	Unit           string        `json:"unit"`
	SourceName     string        `json:"sourceName,omitempty"`
	SourceBundleID string        `json:"sourceBundleId,omitempty"`
}

// WriteResult is the device outcome of applying one write intent.
type WriteResult struct {
	Status       health.IntentStatus
	DeviceUUID   string
	ErrorCode    string
	ErrorMessage string
}

// Source is the device health store as seen by the sync engines.
type Source interface {
	IsAvailable(ctx context.Context) (bool, error)
	RequestReadPermission(ctx context.Context) (bool, error)
	RequestWritePermission(ctx context.Context) (bool, error)
	// FetchSamples returns samples of metric whose start falls in [fromMs, toMs].
	FetchSamples(ctx context.Context, metric health.Metric, fromMs, toMs int64) ([]RawSample, error)
	ApplyWrite(ctx context.Context, intent health.WriteIntent) (WriteResult, error)
}
