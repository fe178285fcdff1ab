package intents

import (
	"database/sql/driver"
	"fmt"
	"strconv"

	"healthsync/internal/health"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Tags is stored as text[] on Postgres and as the same array literal in text elsewhere.
type Tags []string

func (Tags) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		t = Tags{}
	}
	return pq.StringArray(t).Value()
}

func (t *Tags) Scan(src any) error {
	return (*pq.StringArray)(t).Scan(src)
}

// Record is one write intent row. Status is never failed in storage: a failed
// attempt goes back to pending with a later NextRetryAtMs.
type Record struct {
	ID             uint64              `gorm:"primaryKey"`
	ExternalID     string              `gorm:"uniqueIndex;not null"`
	Metric         health.Metric       `gorm:"type:text;not null"`
	StartTimeMs    int64               `gorm:"not null"`
	EndTimeMs      int64               `gorm:"not null"`
	ValueNumber    float64             `gorm:"type:double precision;not null"`
	Unit           string              `gorm:"not null"`
	Timezone       string              `gorm:"not null"`
	Note           *string             `gorm:"type:text"`
	SourceName     *string             `gorm:"type:text"`
	SourceBundleID *string             `gorm:"type:text"`
	Tags           Tags                `gorm:"not null"`
	Status         health.IntentStatus `gorm:"type:text;not null"`
	AttemptCount   int                 `gorm:"not null"`

	CreatedAtMs     int64 `gorm:"not null"`
	UpdatedAtMs     int64 `gorm:"not null"`
	NextRetryAtMs   int64 `gorm:"not null"`
	LastAttemptAtMs *int64

	HealthkitUUID  *string `gorm:"column:healthkit_uuid;type:text"`
	FailureCode    *string `gorm:"type:text"`
	FailureMessage *string `gorm:"type:text"`
	AppliedAtMs    *int64
}

func (Record) TableName() string { return "health_write_intents" }

func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&Record{}); err != nil {
		return err
	}
	stmts := []string{
		`create index if not exists idx_intents_due on health_write_intents(status, next_retry_at_ms, id);`,
		`create index if not exists idx_intents_status_created on health_write_intents(status, created_at_ms);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}
	return nil
}

func (r Record) Intent() health.WriteIntent {
	tags := []string(r.Tags)
	if tags == nil {
		tags = []string{}
	}
	return health.WriteIntent{
		IntentID: strconv.FormatUint(r.ID, 10),
		WriteIntentPayload: health.WriteIntentPayload{
			ExternalID:     r.ExternalID,
			Metric:         r.Metric,
			StartTimeMs:    r.StartTimeMs,
			EndTimeMs:      r.EndTimeMs,
			ValueNumber:    r.ValueNumber,
			Unit:           r.Unit,
			Timezone:       r.Timezone,
			Note:           deref(r.Note),
			SourceName:     deref(r.SourceName),
			SourceBundleID: deref(r.SourceBundleID),
			Tags:           tags,
		},
		Status:          r.Status,
		AttemptCount:    r.AttemptCount,
		CreatedAtMs:     r.CreatedAtMs,
		UpdatedAtMs:     r.UpdatedAtMs,
		NextRetryAtMs:   r.NextRetryAtMs,
		LastAttemptAtMs: r.LastAttemptAtMs,
		HealthkitUUID:   deref(r.HealthkitUUID),
		FailureCode:     deref(r.FailureCode),
		FailureMessage:  deref(r.FailureMessage),
		AppliedAtMs:     r.AppliedAtMs,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
