package device

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"healthsync/internal/health"

	"github.com/google/uuid"
)

// FileSource reads samples from a JSON export (an array of RawSample) and
// appends applied writes to a JSON-lines file. Applied writes are returned by
// later fetches, the same way a device store reports its own entries.
type FileSource struct {
	ExportPath string
	WritesPath string
	Now        func() time.Time

	mu sync.Mutex
}

// appliedWrite is one line of the writes file.
type appliedWrite struct {
	RawSample
	ExternalID  string `json:"externalId"`
	AppliedAtMs int64  `json:"appliedAtMs"`
}

func (f *FileSource) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func (f *FileSource) IsAvailable(_ context.Context) (bool, error) {
	_, err := os.Stat(f.ExportPath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (f *FileSource) RequestReadPermission(_ context.Context) (bool, error) {
	file, err := os.Open(f.ExportPath)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, file.Close()
}

func (f *FileSource) RequestWritePermission(_ context.Context) (bool, error) {
	if f.WritesPath == "" {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(f.WritesPath), 0755); err != nil {
		return false, nil
	}
	return true, nil
}

func (f *FileSource) FetchSamples(_ context.Context, metric health.Metric, fromMs, toMs int64) ([]RawSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.readExport()
	if err != nil {
		return nil, err
	}
	writes, err := f.readWrites()
	if err != nil {
		return nil, err
	}
	all = append(all, writes...)

	out := make([]RawSample, 0, len(all))
	for _, s := range all {
		if s.Metric == metric && s.StartMs >= fromMs && s.StartMs <= toMs {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *FileSource) ApplyWrite(_ context.Context, in health.WriteIntent) (WriteResult, error) {
	if !in.Metric.Writable() {
		return WriteResult{
			Status:       health.IntentSkipped,
			ErrorCode:    "unsupported_metric",
			ErrorMessage: fmt.Sprintf("metric %s cannot be written", in.Metric),
		}, nil
	}
	if in.ValueNumber < 0 {
		return WriteResult{
			Status:       health.IntentFailed,
			ErrorCode:    "invalid_value",
			ErrorMessage: "valueNumber must be >= 0",
		}, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	value := in.ValueNumber
	w := appliedWrite{
		RawSample: RawSample{
			UUID:           uuid.NewString(),
			Metric:         in.Metric,
			StartMs:        in.StartTimeMs,
			EndMs:          in.EndTimeMs,
			Quantity:       &value,
			Unit:           in.Unit,
			SourceName:     in.SourceName,
			SourceBundleID: in.SourceBundleID,
		},
		ExternalID:  in.ExternalID,
		AppliedAtMs: f.now().UnixMilli(),
	}

	file, err := os.OpenFile(f.WritesPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return WriteResult{}, fmt.Errorf("open writes file: %w", err)
	}
	defer file.Close()
	if err := json.NewEncoder(file).Encode(w); err != nil {
		return WriteResult{}, fmt.Errorf("append write: %w", err)
	}

	return WriteResult{Status: health.IntentApplied, DeviceUUID: w.UUID}, nil
}

func (f *FileSource) readExport() ([]RawSample, error) {
	b, err := os.ReadFile(f.ExportPath)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	var out []RawSample
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse export: %w", err)
	}
	return out, nil
}

func (f *FileSource) readWrites() ([]RawSample, error) {
	if f.WritesPath == "" {
		return nil, nil
	}
	file, err := os.Open(f.WritesPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open writes file: %w", err)
	}
	defer file.Close()

	var out []RawSample
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var w appliedWrite
		if err := json.Unmarshal(sc.Bytes(), &w); err != nil {
			return nil, fmt.Errorf("parse writes file: %w", err)
		}
		out = append(out, w.RawSample)
	}
	return out, sc.Err()
}
