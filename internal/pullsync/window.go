package pullsync

import "time"

const (
	// Overlap re-fetches the tail of the last synced window to pick up
	// late-arriving or backdated samples.
	Overlap   = 24 * time.Hour
	BatchSize = 500
)

// Window is the inclusive [FromMs, ToMs] fetch range for one metric.
type Window struct {
	FromMs int64
	ToMs   int64
}

// BuildWindow starts from zero when nothing has been synced yet.
func BuildWindow(cursorMs, nowMs int64) Window {
	if cursorMs <= 0 {
		return Window{FromMs: 0, ToMs: nowMs}
	}
	return Window{FromMs: max(0, cursorMs-Overlap.Milliseconds()), ToMs: nowMs}
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for i := 0; i < len(items); i += size {
		out = append(out, items[i:min(i+size, len(items))])
	}
	return out
}
