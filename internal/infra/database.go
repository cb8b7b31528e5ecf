package infra

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tillcore/internal/model"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies the idempotent SQL patches that GORM
// cannot express on its own (partial unique indexes, covering indexes for the
// reconciliation sums).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// RunMigrations creates / updates all tables and applies schema patches.
// Also used by the integration suite against a throwaway container.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.CashSession{},
		&model.CashMovement{},
		&model.CashCount{},
		&model.Order{},
		&model.PaymentIntent{},
		&model.Payment{},
		&model.PaymentTransaction{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot express.
// The two partial unique indexes are the database-level backstop for the
// single-OPEN-row rules: at most one OPEN session per (tenant, station) and
// at most one OPEN intent per (tenant, order). The service layer checks the
// same rules first, the index catches concurrent writers that slip past the
// read. Each statement is guarded so re-running on a patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'ux_cash_sessions_open') THEN
		    CREATE UNIQUE INDEX ux_cash_sessions_open
		        ON cash_sessions (tenant_id, station_id)
		        WHERE status = 'OPEN';
		  END IF;
		END $$`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'ux_payment_intents_open') THEN
		    CREATE UNIQUE INDEX ux_payment_intents_open
		        ON payment_intents (tenant_id, order_id)
		        WHERE status = 'OPEN';
		  END IF;
		END $$`,
		// covering index for the captured/refunded sums on the reconcile path
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_payments_order') THEN
		    CREATE INDEX idx_payments_order
		        ON payments (tenant_id, order_id, status);
		  END IF;
		END $$`,
		// session close aggregates payments by session
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_payments_session') THEN
		    CREATE INDEX idx_payments_session
		        ON payments (session_id)
		        WHERE session_id IS NOT NULL;
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
