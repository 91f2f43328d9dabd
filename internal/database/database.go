package database

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fleetwatch/internal/models"
)

// Open connects to the sqlite database at path and migrates the schema.
func Open(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.AlertRule{},
		&models.EscalationPolicy{},
		&models.NotificationChannel{},
		&models.AlertInstance{},
		&models.Device{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

// Close releases the underlying connection.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
