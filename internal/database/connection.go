// internal/database/connection.go
package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/machinesoul11/yg-backend-sub001/internal/config"
	"github.com/machinesoul11/yg-backend-sub001/internal/models"
)

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("database connection established")
	return db, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("closing database connection")
	}
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("running database migrations")

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	if err := Migrate(db); err != nil {
		return err
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logrus.Info("database migrations completed")
	return nil
}

// Migrate runs the schema auto-migration only. Tests call this directly
// against sqlite, where the postgres extension and index DDL do not apply.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.IPAsset{},
		&models.OwnershipRecord{},
		&models.License{},
		&models.LicenseStatusEvent{},
		&models.Approval{},
		&models.Amendment{},
		&models.Extension{},
		&models.RenewalOffer{},
		&models.Transaction{},
		&models.Notification{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// License indexes: conflict candidacy is always queried by asset,
		// status and date window.
		"CREATE INDEX IF NOT EXISTS idx_licenses_asset_status ON licenses(asset_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_licenses_brand_status ON licenses(brand_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_licenses_dates ON licenses(start_date, end_date)",
		"CREATE INDEX IF NOT EXISTS idx_licenses_parent ON licenses(parent_license_id)",
		"CREATE INDEX IF NOT EXISTS idx_licenses_end_status ON licenses(end_date, status)",

		// Status history is read per license, in order
		"CREATE INDEX IF NOT EXISTS idx_status_events_license ON license_status_events(license_id, created_at)",

		// Approvals by subject
		"CREATE INDEX IF NOT EXISTS idx_approvals_subject ON approvals(subject_type, subject_id)",
		"CREATE INDEX IF NOT EXISTS idx_approvals_approver ON approvals(approver_id, decision)",

		// Amendment/extension worklists
		"CREATE INDEX IF NOT EXISTS idx_amendments_license_status ON amendments(license_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_amendments_deadline ON amendments(status, approval_deadline)",
		"CREATE INDEX IF NOT EXISTS idx_extensions_license_status ON extensions(license_id, status)",

		// Renewal offers due for expiry sweep
		"CREATE INDEX IF NOT EXISTS idx_renewal_offers_license_status ON renewal_offers(license_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_renewal_offers_expiry ON renewal_offers(status, expires_at)",

		// Ownership lookups at an instant
		"CREATE INDEX IF NOT EXISTS idx_ownership_asset_dates ON ownership_records(asset_id, start_date, end_date)",

		// Billing and audit
		"CREATE INDEX IF NOT EXISTS idx_transactions_license ON transactions(license_id, transaction_type)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			logrus.WithError(err).Warnf("failed to create index: %s", index)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
