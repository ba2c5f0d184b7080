package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vaais251/Smobile-market-place/internal/config"
	"github.com/vaais251/Smobile-market-place/internal/domain"
)

// Open connects to Postgres when DATABASE_URL is set, otherwise to a local
// SQLite file for development.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	if cfg.DatabaseURL != "" {
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logrus.Info("Connected to Postgres")
		return db, nil
	}

	db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", cfg.SQLitePath, err)
	}
	logrus.WithField("path", cfg.SQLitePath).Info("Opened SQLite database")
	return db, nil
}

// Migrate creates or updates the schema for every model the service owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.User{},
		&domain.Listing{},
		&domain.Order{},
		&domain.ChatRoom{},
		&domain.ChatParticipant{},
		&domain.Message{},
	)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	logrus.Info("Database migration completed")
	return nil
}
