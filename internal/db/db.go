package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"childcare-scheduling-backend/config"
	"childcare-scheduling-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.EnableConstraints && cfg.Driver != "sqlite" {
		log.Println("Applying PostgreSQL-specific constraints...")
		if err := applyPostgresDDL(db); err != nil {
			log.Printf("Warning: failed to apply some PostgreSQL DDL: %v. Continuing without them.", err)
		}
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate creates or updates every table of the scheduling core.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.AvailabilitySlot{},
		&model.Booking{},
		&model.BookingTransition{},
		&model.Reservation{},
		&model.CaregiverProfile{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

func applyPostgresDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS btree_gist;",

		// Booking status must stay inside the lifecycle's vocabulary.
		"DO $$ BEGIN " +
			"ALTER TABLE bookings ADD CONSTRAINT bookings_status_valid " +
			"CHECK (status IN ('PENDING','CONFIRMED','IN_PROGRESS','COMPLETED','CANCELLED')); " +
			"EXCEPTION WHEN duplicate_object THEN NULL; END $$;",

		"DO $$ BEGIN " +
			"ALTER TABLE bookings ADD CONSTRAINT bookings_window_valid CHECK (start_at < end_at); " +
			"EXCEPTION WHEN duplicate_object THEN NULL; END $$;",

		// Range index for overlap queries on a caregiver's calendar ([) bounds).
		"CREATE INDEX IF NOT EXISTS idx_slots_caregiver_period ON availability_slots " +
			"USING GIST (caregiver_id, tstzrange(start_at, end_at, '[)'));",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
