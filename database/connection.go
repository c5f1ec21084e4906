package database

import (
	"fmt"
	"log"
	"time"

	"github.com/mmlink/ispbot-backend/internal/config"
	"github.com/mmlink/ispbot-backend/internal/storage"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the postgres connection pool
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.InstanceConnectionName != "" {
		log.Printf("Connecting to Cloud SQL via socket: %s", cfg.InstanceConnectionName)
	} else {
		log.Println("Connecting to PostgreSQL")
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		// Unique violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Println("✅ Database connected successfully!")
	return db, nil
}

// Migrate creates or updates every table the store uses
func Migrate(db *gorm.DB) error {
	log.Println("🔄 Running database migrations...")
	if err := db.AutoMigrate(storage.Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Println("✅ Database migrations completed!")
	return nil
}
