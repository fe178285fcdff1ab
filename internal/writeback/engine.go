package writeback

import (
	"context"
	"fmt"
	"time"

	"healthsync/internal/device"
	"healthsync/internal/health"

	"go.uber.org/zap"
)

const DefaultPageSize = 50

// Queue is the server side of the write-intent channel; client.Client satisfies it.
type Queue interface {
	ListPendingWriteIntents(ctx context.Context, limit int, cursor string) (health.WriteIntentPage, error)
	AckWriteIntent(ctx context.Context, ack health.AckRequest) (health.WriteIntent, error)
}

type Result struct {
	TotalPulled int `json:"totalPulled"`
	Applied     int `json:"applied"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
}

type Engine struct {
	Device   device.Source
	Queue    Queue
	Log      *zap.Logger
	Now      func() time.Time
	PageSize int
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Run applies every due intent on the device and acknowledges each outcome
// before moving on. Without write permission it does nothing.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	log := e.Log
	if log == nil {
		log = zap.NewNop()
	}
	var res Result

	granted, err := e.Device.RequestWritePermission(ctx)
	if err != nil {
		return res, fmt.Errorf("request write permission: %w", err)
	}
	if !granted {
		log.Info("write-back skipped: permission not granted")
		return res, nil
	}

	pageSize := e.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	cursor := ""
	for {
		page, err := e.Queue.ListPendingWriteIntents(ctx, pageSize, cursor)
		if err != nil {
			return res, fmt.Errorf("list pending intents: %w", err)
		}
		res.TotalPulled += len(page.Items)

		for _, in := range page.Items {
			ack := e.apply(ctx, log, in)
			if _, err := e.Queue.AckWriteIntent(ctx, ack); err != nil {
				return res, fmt.Errorf("ack %s: %w", in.ExternalID, err)
			}
			switch ack.Status {
			case health.IntentApplied:
				res.Applied++
			case health.IntentFailed:
				res.Failed++
			default:
				res.Skipped++
			}
		}

		if page.NextCursor == nil || *page.NextCursor == "" {
			break
		}
		cursor = *page.NextCursor
	}

	log.Info("write-back done",
		zap.Int("pulled", res.TotalPulled),
		zap.Int("applied", res.Applied),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

func (e *Engine) apply(ctx context.Context, log *zap.Logger, in health.WriteIntent) health.AckRequest {
	out, err := e.Device.ApplyWrite(ctx, in)
	if err != nil {
		log.Warn("apply write failed", zap.String("external_id", in.ExternalID), zap.Error(err))
		return health.AckRequest{
			ExternalID:   in.ExternalID,
			Status:       health.IntentFailed,
			ErrorCode:    "apply_error",
			ErrorMessage: err.Error(),
		}
	}

	ack := health.AckRequest{
		ExternalID:    in.ExternalID,
		Status:        out.Status,
		HealthkitUUID: out.DeviceUUID,
		ErrorCode:     out.ErrorCode,
		ErrorMessage:  out.ErrorMessage,
	}
	switch out.Status {
	case health.IntentApplied:
		at := e.now().UnixMilli()
		ack.AppliedAtMs = &at
	case health.IntentFailed, health.IntentSkipped:
	default:
		ack.Status = health.IntentFailed
		ack.ErrorCode = "invalid_status"
		ack.ErrorMessage = fmt.Sprintf("device reported status %q", out.Status)
	}
	return ack
}
