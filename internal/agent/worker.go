package agent

import (
	"context"
	"time"

	"healthsync/internal/pullsync"

	"go.uber.org/zap"
)

const DefaultInterval = 15 * time.Minute

// Syncer is one full sync pass; pullsync.Engine satisfies it.
type Syncer interface {
	Run(ctx context.Context) pullsync.RunResult
}

// Worker runs a sync immediately and then on every tick until ctx is done.
type Worker struct {
	ID       string
	Sync     Syncer
	Interval time.Duration
	Log      *zap.Logger
}

func (w *Worker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.Once(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Once(ctx)
		}
	}
}

// Once runs a single sync pass and logs its outcome.
func (w *Worker) Once(ctx context.Context) pullsync.RunResult {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}

	start := time.Now()
	res := w.Sync.Run(ctx)

	fields := []zap.Field{
		zap.String("worker", w.ID),
		zap.Bool("supported", res.Supported),
		zap.Bool("authorized", res.Authorized),
		zap.Duration("duration", time.Since(start)),
	}
	if res.Summary != nil {
		fields = append(fields,
			zap.Int("inserted", res.Summary.Inserted),
			zap.Int("deduped", res.Summary.Deduped),
			zap.Int("write_back_applied", res.Summary.WriteBack.Applied),
		)
	}

	switch {
	case res.Error == "":
		log.Info("sync pass done", fields...)
	case !res.Authorized:
		log.Error("sync pass aborted", append(fields, zap.String("error", res.Error))...)
	default:
		log.Warn("sync pass finished with errors", append(fields, zap.String("error", res.Error))...)
	}
	return res
}
