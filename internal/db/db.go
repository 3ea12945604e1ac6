package db

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"housekeeping-backend/config"
	"housekeeping-backend/internal/model"
)

// Models lists every table the service owns, in migration order.
var Models = []any{
	&model.Facility{},
	&model.Staff{},
	&model.Room{},
	&model.Booking{},
	&model.HousekeepingTask{},
	&model.InventoryItem{},
	&model.InventoryTransaction{},
	&model.RoomRecipe{},
	&model.PushSubscription{},
}

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := db.AutoMigrate(Models...); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	if cfg.EnableConstraints {
		log.Println("Applying booking and task constraints...")
		if err := applyConstraintDDL(db); err != nil {
			log.Printf("Warning: failed to apply some constraint DDL: %v. Continuing without them.", err)
		}
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// applyConstraintDDL moves the two invariants the engine relies on into
// PostgreSQL: no overlapping live bookings per room, and at most one open
// task per room.
func applyConstraintDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS btree_gist;",

		"ALTER TABLE bookings " +
			"ADD CONSTRAINT bookings_stay_valid CHECK (checkin_time < checkout_time);",

		// Half-open stays: touching bookings do not conflict.
		"ALTER TABLE bookings ADD CONSTRAINT bookings_no_overlap EXCLUDE USING GIST (" +
			"facility_name WITH =, room_code WITH =, " +
			"tstzrange(checkin_time, checkout_time, '[)') WITH &&" +
			") WHERE (status NOT IN ('Cancelled', 'CheckedOut'));",

		"CREATE UNIQUE INDEX IF NOT EXISTS idx_task_one_open_per_room " +
			"ON housekeeping_tasks (facility_id, room_code) WHERE status <> 'Done';",

		"CREATE INDEX IF NOT EXISTS idx_inventory_transactions_created_at_desc " +
			"ON inventory_transactions (created_at DESC);",
	}

	// Constraints already present on a restart fail individually; keep going.
	var failed []error
	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			failed = append(failed, fmt.Errorf("DDL failed on %q: %w", ddl, err))
		}
	}
	return errors.Join(failed...)
}
