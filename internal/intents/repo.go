package intents

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"healthsync/internal/health"
	"healthsync/internal/metrics"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("intent not found")

type Repo struct {
	DB  *gorm.DB
	Now func() time.Time
}

type UpsertResult struct {
	Created bool               `json:"created"`
	Intent  health.WriteIntent `json:"intent"`
}

func (r *Repo) nowMs() int64 {
	if r.Now != nil {
		return r.Now().UnixMilli()
	}
	return time.Now().UnixMilli()
}

// Upsert inserts a new pending intent or replaces the content of an existing
// one, resetting its lifecycle to pending with no attempts.
func (r *Repo) Upsert(ctx context.Context, p health.WriteIntentPayload) (UpsertResult, error) {
	if err := p.Validate(); err != nil {
		return UpsertResult{}, err
	}
	tags := NormalizeTags(p.Tags)

	now := r.nowMs()
	var out UpsertResult

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec Record
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("external_id = ?", p.ExternalID).
			First(&rec).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			rec = Record{
				ExternalID:     p.ExternalID,
				Metric:         p.Metric,
				StartTimeMs:    p.StartTimeMs,
				EndTimeMs:      p.EndTimeMs,
				ValueNumber:    p.ValueNumber,
				Unit:           p.Unit,
				Timezone:       p.Timezone,
				Note:           optional(p.Note),
				SourceName:     optional(p.SourceName),
				SourceBundleID: optional(p.SourceBundleID),
				Tags:           tags,
				Status:         health.IntentPending,
				CreatedAtMs:    now,
				UpdatedAtMs:    now,
				NextRetryAtMs:  now,
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "external_id"}},
				DoNothing: true,
			}).Create(&rec)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				out = UpsertResult{Created: true, Intent: rec.Intent()}
				return nil
			}
			// a concurrent first upsert won the insert; reset its row instead
			rec = Record{}
			err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("external_id = ?", p.ExternalID).
				First(&rec).Error
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&Record{}).Where("id = ?", rec.ID).Updates(map[string]any{
			"metric":             p.Metric,
			"start_time_ms":      p.StartTimeMs,
			"end_time_ms":        p.EndTimeMs,
			"value_number":       p.ValueNumber,
			"unit":               p.Unit,
			"timezone":           p.Timezone,
			"note":               optional(p.Note),
			"source_name":        optional(p.SourceName),
			"source_bundle_id":   optional(p.SourceBundleID),
			"tags":               tags,
			"status":             health.IntentPending,
			"attempt_count":      0,
			"updated_at_ms":      now,
			"next_retry_at_ms":   now,
			"last_attempt_at_ms": nil,
			"healthkit_uuid":     nil,
			"failure_code":       nil,
			"failure_message":    nil,
			"applied_at_ms":      nil,
		}).Error; err != nil {
			return err
		}

		if err := tx.First(&rec, rec.ID).Error; err != nil {
			return err
		}
		out = UpsertResult{Created: false, Intent: rec.Intent()}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}

	metrics.IntentUpserts.WithLabelValues(strconv.FormatBool(out.Created)).Inc()
	return out, nil
}

// ListPending pages through intents that are pending and due at nowMs, in id order.
func (r *Repo) ListPending(ctx context.Context, limit int, cursor string, nowMs int64) (health.WriteIntentPage, error) {
	if limit < 1 || limit > health.MaxIntentPageSize {
		return health.WriteIntentPage{}, health.Invalidf("limit must be between 1 and %d", health.MaxIntentPageSize)
	}

	db := r.DB.WithContext(ctx).
		Where("status = ? AND next_retry_at_ms <= ?", health.IntentPending, nowMs)
	if cursor != "" {
		afterID, err := decodeCursor(cursor)
		if err != nil {
			return health.WriteIntentPage{}, err
		}
		db = db.Where("id > ?", afterID)
	}

	var rows []Record
	if err := db.Order("id asc").Limit(limit + 1).Find(&rows).Error; err != nil {
		return health.WriteIntentPage{}, err
	}

	page := health.WriteIntentPage{Items: make([]health.WriteIntent, 0, min(len(rows), limit))}
	if len(rows) > limit {
		rows = rows[:limit]
		c := encodeCursor(rows[len(rows)-1].ID)
		page.NextCursor = &c
	}
	for _, rec := range rows {
		page.Items = append(page.Items, rec.Intent())
	}
	return page, nil
}

// Ack records a device outcome. A failure is rescheduled with backoff rather
// than stored as failed.
func (r *Repo) Ack(ctx context.Context, req health.AckRequest) (health.WriteIntent, error) {
	if err := req.Validate(); err != nil {
		return health.WriteIntent{}, err
	}

	now := r.nowMs()
	var out health.WriteIntent

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec Record
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("external_id = ?", req.ExternalID).
			First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		updates := map[string]any{
			"updated_at_ms":      now,
			"last_attempt_at_ms": now,
		}
		switch req.Status {
		case health.IntentApplied:
			appliedAt := now
			if req.AppliedAtMs != nil {
				appliedAt = *req.AppliedAtMs
			}
			updates["status"] = health.IntentApplied
			updates["applied_at_ms"] = appliedAt
			updates["healthkit_uuid"] = optional(req.HealthkitUUID)
			updates["failure_code"] = nil
			updates["failure_message"] = nil
		case health.IntentSkipped:
			updates["status"] = health.IntentSkipped
			updates["failure_code"] = nil
			updates["failure_message"] = nil
		case health.IntentFailed:
			updates["status"] = health.IntentPending
			updates["attempt_count"] = rec.AttemptCount + 1
			updates["next_retry_at_ms"] = now + Backoff(rec.AttemptCount).Milliseconds()
			updates["failure_code"] = optional(req.ErrorCode)
			updates["failure_message"] = optional(req.ErrorMessage)
		}

		if err := tx.Model(&Record{}).Where("id = ?", rec.ID).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.First(&rec, rec.ID).Error; err != nil {
			return err
		}
		out = rec.Intent()
		return nil
	})
	if err != nil {
		return health.WriteIntent{}, err
	}

	metrics.IntentAcks.WithLabelValues(string(req.Status)).Inc()
	return out, nil
}

// ListByStatus returns up to limit intents, oldest first. An empty status lists all.
func (r *Repo) ListByStatus(ctx context.Context, status health.IntentStatus, limit int) ([]health.WriteIntent, error) {
	if limit < 1 || limit > health.MaxIntentPageSize {
		return nil, health.Invalidf("limit must be between 1 and %d", health.MaxIntentPageSize)
	}
	db := r.DB.WithContext(ctx)
	if status != "" {
		if !status.Valid() {
			return nil, health.Invalidf("status must be pending, applied, failed, or skipped")
		}
		db = db.Where("status = ?", status)
	}

	var rows []Record
	if err := db.Order("created_at_ms asc, id asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]health.WriteIntent, len(rows))
	for i, rec := range rows {
		out[i] = rec.Intent()
	}
	return out, nil
}

func encodeCursor(id uint64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatUint(id, 10)))
}

func decodeCursor(c string) (uint64, error) {
	b, err := base64.RawURLEncoding.DecodeString(c)
	if err != nil {
		return 0, health.Invalidf("invalid cursor")
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0, health.Invalidf("invalid cursor")
	}
	return id, nil
}
