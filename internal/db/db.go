package db

import (
	"fmt"

	"healthsync/internal/ingest"
	"healthsync/internal/intents"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB, log *zap.Logger) error {
	// Tables plus the portable indexes each package relies on
	if err := ingest.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate samples: %w", err)
	}
	if err := intents.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate write intents: %w", err)
	}

	if gdb.Dialector.Name() != "postgres" {
		return nil
	}

	// Postgres only
	stmts := []string{
		`create index if not exists idx_intents_tags on health_write_intents using gin (tags);`,
		`create index if not exists idx_daily_metrics_recomputed on health_daily_metrics(recomputed_at_ms desc);`,
		`create index if not exists idx_raw_device_ingested on health_raw_samples(device_id, ingested_at_ms desc);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	log.Info("migrations applied", zap.Int("extra_indexes", len(stmts)))
	return nil
}
